package filterlist

import (
	"strings"
	"time"

	"github.com/bnema/goblock/hashutil"
	"github.com/bnema/goblock/internal/metrics"
	"github.com/bnema/goblock/resources"
	"github.com/bnema/goblock/rules"
)

// BlockerResult is the outcome of one Blocker.Check call (spec §4.4, §6.1).
type BlockerResult struct {
	Matched   bool
	Important bool
	Redirect  string
	Exception *rules.NetworkFilter
	Filter    *rules.NetworkFilter
	CSP       string
	Error     error
}

// Blocker orchestrates the seven NetworkFilterLists in the fixed
// precedence of spec §4.4: importants, (tagged), filters, exceptions,
// redirects, csp.
type Blocker struct {
	filters       *NetworkFilterList
	exceptions    *NetworkFilterList
	importants    *NetworkFilterList
	redirects     *NetworkFilterList
	csp           *NetworkFilterList
	filtersTagged *NetworkFilterList
	genericHide   *NetworkFilterList

	regexCache *RegexCache
	resources  *resources.Storage

	tagsEnabled map[string]bool
	recorder    *metrics.Recorder
}

// NewBlocker partitions set.Network into the seven lists and builds their
// token indices, sharing one TokenSelector across all seven so bucket load
// is spread consistently over the whole build rather than per-list. rec may
// be nil; every recorder call on a nil *metrics.Recorder is a safe no-op.
func NewBlocker(set *rules.FilterSet, store *resources.Storage, regexIdleTimeout time.Duration, rec *metrics.Recorder) *Blocker {
	var filtersIn, exceptionsIn, importantsIn, redirectsIn, cspIn, taggedIn, genericHideIn []*rules.NetworkFilter

	for _, nf := range set.Network {
		switch {
		case nf.Mask.Has(rules.MaskImportant):
			importantsIn = append(importantsIn, nf)
		case nf.Mask.Has(rules.MaskException):
			exceptionsIn = append(exceptionsIn, nf)
		case nf.Tag != "":
			taggedIn = append(taggedIn, nf)
		default:
			filtersIn = append(filtersIn, nf)
		}

		if nf.Mask.Has(rules.MaskIsRedirect) {
			redirectsIn = append(redirectsIn, nf)
		}
		if nf.Mask.Has(rules.MaskIsCSP) {
			cspIn = append(cspIn, nf)
		}
		if nf.Mask.Has(rules.MaskGenericHide) && nf.Mask.Has(rules.MaskException) {
			genericHideIn = append(genericHideIn, nf)
		}
	}

	selector := hashutil.NewTokenSelector(0)
	return &Blocker{
		filters:       NewNetworkFilterList(filtersIn, selector),
		exceptions:    NewNetworkFilterList(exceptionsIn, selector),
		importants:    NewNetworkFilterList(importantsIn, selector),
		redirects:     NewNetworkFilterList(redirectsIn, selector),
		csp:           NewNetworkFilterList(cspIn, selector),
		filtersTagged: NewNetworkFilterList(taggedIn, selector),
		genericHide:   NewNetworkFilterList(genericHideIn, selector),
		regexCache:    NewRegexCache(regexIdleTimeout, rec),
		resources:     store,
		tagsEnabled:   make(map[string]bool),
		recorder:      rec,
	}
}

// EnableTags marks tags as active; rules carrying any other tag stay inert.
func (b *Blocker) EnableTags(tags []string) {
	for _, t := range tags {
		b.tagsEnabled[t] = true
	}
}

// DisableTags deactivates tags.
func (b *Blocker) DisableTags(tags []string) {
	for _, t := range tags {
		delete(b.tagsEnabled, t)
	}
}

// UseTags replaces the active tag set wholesale.
func (b *Blocker) UseTags(tags []string) {
	b.tagsEnabled = make(map[string]bool, len(tags))
	b.EnableTags(tags)
}

// TagExists reports whether tag is currently enabled.
func (b *Blocker) TagExists(tag string) bool {
	return b.tagsEnabled[tag]
}

// EnabledTags returns every currently active tag, for callers that need to
// enumerate the full set (e.g. serialization).
func (b *Blocker) EnabledTags() []string {
	tags := make([]string, 0, len(b.tagsEnabled))
	for t := range b.tagsEnabled {
		tags = append(tags, t)
	}
	return tags
}

func (b *Blocker) match(list *NetworkFilterList, req *rules.Request) *rules.NetworkFilter {
	return list.FindMatch(req, b.regexCache.Match)
}

// Check implements the spec §4.4 precedence algorithm.
func (b *Blocker) Check(req *rules.Request) BlockerResult {
	start := time.Now()
	result := b.check(req)
	b.recorder.RecordCheck(checkOutcome(result), time.Since(start))
	return result
}

func checkOutcome(r BlockerResult) string {
	switch {
	case r.Important:
		return "important"
	case r.Exception != nil:
		return "exception"
	case r.Matched:
		return "blocked"
	default:
		return "allowed"
	}
}

func (b *Blocker) check(req *rules.Request) BlockerResult {
	if f := b.match(b.importants, req); f != nil {
		return BlockerResult{Matched: true, Important: true, Filter: f}
	}

	var blocking *rules.NetworkFilter
	if len(b.tagsEnabled) > 0 {
		blocking = b.filtersTagged.FindMatchWhere(req, b.regexCache.Match, func(f *rules.NetworkFilter) bool {
			return b.tagsEnabled[f.Tag]
		})
	}
	if blocking == nil {
		blocking = b.match(b.filters, req)
	}
	if blocking == nil {
		return BlockerResult{Matched: false}
	}

	result := BlockerResult{Matched: true, Filter: blocking}

	if exc := b.match(b.exceptions, req); exc != nil {
		result.Matched = false
		result.Exception = exc
	}

	if result.Matched && blocking.Mask.Has(rules.MaskIsRedirect) && b.resources != nil {
		if redirected := b.match(b.redirects, req); redirected != nil {
			uri, err := b.resources.RenderRedirect(redirected.Redirect)
			if err != nil {
				result.Error = err
			} else {
				result.Redirect = uri
			}
		}
	}

	if policies := b.csp.FindAllMatches(req, b.regexCache.Match); len(policies) > 0 {
		parts := make([]string, 0, len(policies))
		for _, p := range policies {
			parts = append(parts, p.CSP)
		}
		result.CSP = strings.Join(parts, ";")
	}

	return result
}

// GenericHideExempted reports whether a $generichide exception applies to
// req's page, used by the cosmetic cache to suppress generic selectors.
func (b *Blocker) GenericHideExempted(req *rules.Request) bool {
	return b.match(b.genericHide, req) != nil
}
