// Package filterlist implements the indexed, tokenised network matcher
// (spec §4.3-4.4): the seven NetworkFilterList buckets and the Blocker that
// orchestrates them into a single check(request) decision.
package filterlist

import (
	"github.com/bnema/goblock/hashutil"
	"github.com/bnema/goblock/rules"
)

// NetworkFilterList is a token -> filter-bucket index for one semantic
// class of rules. Filters that yield no useful token are kept in the
// untokenised bucket, scanned on every lookup regardless of the request's
// own tokens.
type NetworkFilterList struct {
	buckets     map[hashutil.Hash][]*rules.NetworkFilter
	untokenised []*rules.NetworkFilter
}

// NewNetworkFilterList indexes filters, selecting one bucket token per
// filter via selector (spec §4.3's "prefer the least-used token" policy).
// A filter with no token candidates at all goes to the untokenised bucket.
func NewNetworkFilterList(filters []*rules.NetworkFilter, selector *hashutil.TokenSelector) *NetworkFilterList {
	list := &NetworkFilterList{buckets: make(map[hashutil.Hash][]*rules.NetworkFilter)}
	for _, f := range filters {
		candidates := f.TokenCandidates()
		tok := selector.SelectLeastUsedToken(candidates)
		if tok == hashutil.EmptyHash {
			f.SetSelectedToken(hashutil.EmptyHash)
			list.untokenised = append(list.untokenised, f)
			continue
		}
		selector.RecordUsage(tok)
		f.SetSelectedToken(tok)
		list.buckets[tok] = append(list.buckets[tok], f)
	}
	return list
}

// RegexMatcher evaluates a regex-bodied filter's pattern against a URL. It
// is injected so this package owns the lazy/evicting regex cache (spec
// §4.4a/§5) without rules needing a regex engine dependency.
type RegexMatcher func(pattern, url string) bool

// FindMatch iterates the request's tokens plus the untokenised bucket and
// returns the first filter whose bucket membership and Matches() agree.
// Result is stable across calls for the same inputs, per spec §4.4 step 3.
func (l *NetworkFilterList) FindMatch(req *rules.Request, regexMatch RegexMatcher) *rules.NetworkFilter {
	for _, f := range l.untokenised {
		if f.MatchesWithRegex(req, regexMatch) {
			return f
		}
	}
	for _, tok := range req.Tokens() {
		bucket, ok := l.buckets[tok]
		if !ok {
			continue
		}
		for _, f := range bucket {
			if f.MatchesWithRegex(req, regexMatch) {
				return f
			}
		}
	}
	return nil
}

// FindMatchWhere is FindMatch restricted to filters for which pred returns
// true, used by the tagged-filters list to additionally require an active
// tag.
func (l *NetworkFilterList) FindMatchWhere(req *rules.Request, regexMatch RegexMatcher, pred func(*rules.NetworkFilter) bool) *rules.NetworkFilter {
	for _, f := range l.untokenised {
		if pred(f) && f.MatchesWithRegex(req, regexMatch) {
			return f
		}
	}
	for _, tok := range req.Tokens() {
		for _, f := range l.buckets[tok] {
			if pred(f) && f.MatchesWithRegex(req, regexMatch) {
				return f
			}
		}
	}
	return nil
}

// FindAllMatches is like FindMatch but collects every matching filter,
// used by the csp list where spec §4.4 requires collecting *all* matches
// rather than the first.
func (l *NetworkFilterList) FindAllMatches(req *rules.Request, regexMatch RegexMatcher) []*rules.NetworkFilter {
	var out []*rules.NetworkFilter
	seen := make(map[uint32]bool)
	add := func(f *rules.NetworkFilter) {
		if !seen[f.ID] {
			seen[f.ID] = true
			out = append(out, f)
		}
	}
	for _, f := range l.untokenised {
		if f.MatchesWithRegex(req, regexMatch) {
			add(f)
		}
	}
	for _, tok := range req.Tokens() {
		for _, f := range l.buckets[tok] {
			if f.MatchesWithRegex(req, regexMatch) {
				add(f)
			}
		}
	}
	return out
}
