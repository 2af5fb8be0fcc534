package rules

import (
	"sort"
	"strings"

	"github.com/bnema/goblock/hashutil"
)

// NetworkFilterMask packs a NetworkFilter's request-type set plus its
// option flags into a single 32-bit bitset, per the data model.
type NetworkFilterMask uint32

// Bits 0 through typeCount-1 are reserved for RequestType membership; flags
// start above that range.
const (
	MaskThirdParty NetworkFilterMask = 1 << (iota + 16)
	MaskFirstParty
	MaskHostnameAnchor
	MaskLeftAnchor
	MaskRightAnchor
	MaskCaseSensitive
	MaskException
	MaskImportant
	MaskIsRedirect
	MaskIsRedirectURL
	MaskGenericHide
	MaskIsCSP
	MaskIsRegex
	MaskIsHostnameRegex
	MaskIsCompleteRegex
)

func requestTypeBit(t RequestType) NetworkFilterMask {
	return NetworkFilterMask(1) << uint32(t)
}

// Has reports whether every bit in flag is set in m.
func (m NetworkFilterMask) Has(flag NetworkFilterMask) bool {
	return m&flag == flag
}

// AllowsType reports whether t is in the mask's allowed-type set. A mask
// with no type bits set at all allows every type (the common case: most
// rules carry no explicit $script/$image/... restriction).
func (m NetworkFilterMask) AllowsType(t RequestType) bool {
	typeMask := NetworkFilterMask(1<<uint32(typeCount)) - 1
	if m&typeMask == 0 {
		return true
	}
	return m.Has(requestTypeBit(t))
}

// NetworkFilter is the compiled form of one network rule.
type NetworkFilter struct {
	Mask NetworkFilterMask

	Hostname string

	FilterPart FilterPart

	OptDomains    []Hash // sorted
	OptNotDomains []Hash // sorted
	DenyAllow     []Hash // sorted; request hostnames exempted from this rule

	Redirect string
	CSP      string
	Tag      string

	ID uint32

	RawLine string // kept only when constructed with debug=true

	selectedToken Hash
}

// NewNetworkFilterID derives the stable rule identity used for
// deduplication and serialization cross-reference: the hash of the raw
// source line.
func NewNetworkFilterID(rawLine string) uint32 {
	return uint32(hashutil.FastHash(rawLine))
}

// Validate checks the invariants from the data model: at most one of
// redirect/csp may be set, important implies not-exception, and a rule
// with neither a body nor a hostname is rejected.
func (f *NetworkFilter) Validate() error {
	if f.Redirect != "" && f.CSP != "" {
		return &ParseError{Kind: ErrUnsupportedSyntax, Reason: "a rule cannot set both redirect and csp"}
	}
	if f.Mask.Has(MaskImportant) && f.Mask.Has(MaskException) {
		return &ParseError{Kind: ErrNegatedImportant, Reason: "important exception rules are not supported"}
	}
	if f.Hostname == "" {
		if _, empty := f.FilterPart.(EmptyPart); empty {
			return &ParseError{Kind: ErrEmptyRule}
		}
	}
	return nil
}

// TokenCandidates returns the tokens the indexer may choose from when
// selecting this filter's bucket key: the hostname tokens (skipping the
// first token, since the hostname-anchor already constrains it) plus the
// body tokens.
func (f *NetworkFilter) TokenCandidates() []Hash {
	var out []Hash
	if f.Hostname != "" {
		out = append(out, hashutil.TokenizeFilter(f.Hostname, true, false)...)
	}
	skipFirst := f.Mask.Has(MaskHostnameAnchor) && f.Hostname != ""
	skipLast := !f.Mask.Has(MaskRightAnchor)
	switch part := f.FilterPart.(type) {
	case SimplePart:
		out = append(out, hashutil.TokenizeFilter(part.Pattern, skipFirst, skipLast)...)
	case AnyOfPart:
		for _, alt := range part.Alternates {
			out = append(out, hashutil.TokenizeFilter(alt, skipFirst, skipLast)...)
		}
	}
	return out
}

// SetSelectedToken records the bucket key this filter was indexed under.
func (f *NetworkFilter) SetSelectedToken(tok Hash) { f.selectedToken = tok }

// SelectedToken returns the bucket key this filter was indexed under.
func (f *NetworkFilter) SelectedToken() Hash { return f.selectedToken }

// Matches reports whether f applies to req, checking in cheap-to-expensive
// order: third-party policy, request-type bit, domain include/exclude,
// scheme, and finally the pattern body. Regex-bodied filters (IsRegex) are
// never matched here, since regex compilation/caching is the network
// matcher's responsibility (see MatchesWithRegex); callers outside the
// matcher get a conservative "no match" for such rules.
func (f *NetworkFilter) Matches(req *Request) bool {
	return f.MatchesWithRegex(req, nil)
}

// MatchesWithRegex is Matches plus an injected regex tester, used by the
// network matcher to evaluate IsRegex filters against its shared,
// idle-evicting regex cache without this package needing to depend on a
// regex engine itself.
func (f *NetworkFilter) MatchesWithRegex(req *Request, regexMatch func(pattern, url string) bool) bool {
	if !f.matchesPrefix(req) {
		return false
	}
	if f.Mask.Has(MaskIsRegex) {
		if regexMatch == nil {
			return false
		}
		if f.Hostname != "" && !hostnameMatches(req.Hostname, f.Hostname) {
			return false
		}
		return regexMatch(f.RegexBody(), req.URL)
	}
	return f.matchesBody(req)
}

func (f *NetworkFilter) matchesPrefix(req *Request) bool {
	if f.Mask.Has(MaskThirdParty) && !req.IsThirdParty {
		return false
	}
	if f.Mask.Has(MaskFirstParty) && req.IsThirdParty {
		return false
	}
	if !f.Mask.AllowsType(req.Type) {
		return false
	}
	if !f.matchesDomains(req) {
		return false
	}
	if !f.matchesDenyAllow(req) {
		return false
	}
	return f.matchesScheme(req)
}

// matchesDenyAllow reports whether the request's own hostname is exempted
// from this rule via a denyallow= option: if any dotted suffix of
// req.Hostname is in DenyAllow, the rule does not apply to this request.
func (f *NetworkFilter) matchesDenyAllow(req *Request) bool {
	if len(f.DenyAllow) == 0 {
		return true
	}
	for _, h := range DottedSuffixHashes(req.Hostname) {
		if hashutil.BinLookup(f.DenyAllow, h) {
			return false
		}
	}
	return true
}

// RegexBody returns the raw regular-expression source for an IsRegex
// filter (the text between the original '/'...'/' delimiters).
func (f *NetworkFilter) RegexBody() string {
	if sp, ok := f.FilterPart.(SimplePart); ok {
		return sp.Pattern
	}
	return ""
}

func (f *NetworkFilter) matchesScheme(req *Request) bool {
	// Rules carry no explicit scheme restriction beyond what $document/type
	// options already encode; supported schemes are pre-validated on
	// Request construction.
	return req.IsSupported
}

func (f *NetworkFilter) matchesDomains(req *Request) bool {
	if len(f.OptNotDomains) == 0 && len(f.OptDomains) == 0 {
		return true
	}
	hashes := req.SourceHostnameHashes()
	for _, h := range hashes {
		if hashutil.BinLookup(f.OptNotDomains, h) {
			return false
		}
	}
	if len(f.OptDomains) == 0 {
		return true
	}
	for _, h := range hashes {
		if hashutil.BinLookup(f.OptDomains, h) {
			return true
		}
	}
	return false
}

func (f *NetworkFilter) matchesBody(req *Request) bool {
	if f.Hostname != "" {
		if !hostnameMatches(req.Hostname, f.Hostname) {
			return false
		}
	}

	switch part := f.FilterPart.(type) {
	case EmptyPart:
		return true
	case SimplePart:
		return matchPatternPart(req.URL, part.Pattern, f.Mask)
	case AnyOfPart:
		cursor := req.URL
		for _, alt := range part.Alternates {
			idx := strings.Index(cursor, alt)
			if idx < 0 {
				return false
			}
			cursor = cursor[idx+len(alt):]
		}
		return true
	}
	return false
}

// matchPatternPart checks a single literal body against url, honouring the
// left/right anchor flags: a left anchor requires the pattern to be a
// prefix, a right anchor requires it to be a suffix, and with neither it is
// a plain substring search.
func matchPatternPart(url, pattern string, mask NetworkFilterMask) bool {
	switch {
	case mask.Has(MaskLeftAnchor) && mask.Has(MaskRightAnchor):
		return url == pattern
	case mask.Has(MaskLeftAnchor):
		return strings.HasPrefix(url, pattern)
	case mask.Has(MaskRightAnchor):
		return strings.HasSuffix(url, pattern)
	default:
		return strings.Contains(url, pattern)
	}
}

// hostnameMatches reports whether reqHostname ends with filterHostname on a
// label boundary (i.e. is equal to it or is a subdomain of it).
func hostnameMatches(reqHostname, filterHostname string) bool {
	if reqHostname == filterHostname {
		return true
	}
	if !strings.HasSuffix(reqHostname, filterHostname) {
		return false
	}
	boundary := len(reqHostname) - len(filterHostname) - 1
	return boundary >= 0 && reqHostname[boundary] == '.'
}

// SortHashes sorts a slice of hashes in place, as required for the
// binary-search domain lookups.
func SortHashes(h []Hash) {
	sort.Slice(h, func(i, j int) bool { return h[i] < h[j] })
}
