// Package hashutil provides the stable hashing and tokenisation primitives
// shared by the filter parser, network matcher, and cosmetic filter cache.
package hashutil

import "github.com/cespare/xxhash/v2"

// Hash is a 64-bit value produced by a stable, non-cryptographic hash of a
// byte string. Stability across runs and platforms is required because
// hashes are persisted by the serialization format.
type Hash = uint64

// EmptyHash is reserved as the sentinel for "no token" / "untokenised
// bucket" slots in open-addressed hash tables.
const EmptyHash Hash = 0

// FastHash returns the stable hash of s.
func FastHash(s string) Hash {
	return xxhash.Sum64String(s)
}

// FastHashBytes returns the stable hash of b.
func FastHashBytes(b []byte) Hash {
	return xxhash.Sum64(b)
}

// BinLookup reports whether elt is present in the sorted slice arr.
func BinLookup(arr []Hash, elt Hash) bool {
	lo, hi := 0, len(arr)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case arr[mid] == elt:
			return true
		case arr[mid] < elt:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}
