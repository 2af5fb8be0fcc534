package hashutil

// TokenSelector tracks token usage across a filter-list build so the
// indexer can prefer the least-used token as a bucket key, spreading load
// rather than piling every rule under a handful of popular tokens like
// "http" or "com".
type TokenSelector struct {
	usage map[Hash]uint64
}

// worstTokens and badTokens push the small set of low-value tokens to the
// back of the selection regardless of how often they have actually been
// used, since their presence in a URL carries almost no discriminating
// power.
var worstTokens = map[Hash]struct{}{
	FastHash("https"): {},
}

var badTokens = map[Hash]struct{}{
	FastHash("http"): {},
	FastHash("www"):  {},
	FastHash("com"):  {},
}

// NewTokenSelector returns an empty selector. The seed argument is accepted
// for construction-site parity with callers that thread a build identifier
// through; it has no effect on selection.
func NewTokenSelector(seed int) *TokenSelector {
	return &TokenSelector{usage: make(map[Hash]uint64)}
}

// weight ranks a token for selection purposes: lower is more preferred.
// Regular tokens are ranked by how many times they have been used (fewer
// uses = lower = more preferred); "bad" tokens are always ranked worse than
// any regular token, and "worst" tokens worse than bad ones.
func (s *TokenSelector) weight(tok Hash) uint64 {
	count := s.usage[tok]
	if _, worst := worstTokens[tok]; worst {
		return ^uint64(0)
	}
	if _, bad := badTokens[tok]; bad {
		return (^uint64(0) / 2) + count
	}
	return count
}

// SelectLeastUsedToken returns the token from hashes with the lowest
// selection weight. An empty slice, or a slice containing only the empty
// hash, returns EmptyHash.
func (s *TokenSelector) SelectLeastUsedToken(hashes []Hash) Hash {
	best := EmptyHash
	bestWeight := ^uint64(0)
	found := false

	for _, h := range hashes {
		if h == EmptyHash {
			continue
		}
		w := s.weight(h)
		if !found || w < bestWeight {
			found = true
			bestWeight = w
			best = h
		}
	}
	if !found {
		return EmptyHash
	}
	return best
}

// RecordUsage increments tok's usage count, making it less preferred on
// subsequent SelectLeastUsedToken calls relative to tokens used fewer
// times.
func (s *TokenSelector) RecordUsage(tok Hash) {
	s.usage[tok]++
}
