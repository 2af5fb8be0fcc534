// Package cosmetic implements the hostname/entity-indexed cosmetic filter
// cache (spec §4.5): generic class/id fast paths, specific hide/unhide and
// script-injection bins, procedural actions, and the memoised base
// stylesheet.
package cosmetic

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/bnema/goblock/hashutil"
	"github.com/bnema/goblock/internal/metrics"
	"github.com/bnema/goblock/resources"
	"github.com/bnema/goblock/rules"
)

// UrlCosmeticResources is the per-page result of a Resources query (spec
// §6.1's url_cosmetic_resources).
type UrlCosmeticResources struct {
	HideSelectors     []string
	ProceduralActions []string
	Exceptions        []string
	InjectedScript    string
	Generichide       bool
}

// Cache is the cosmetic filter store. All query methods are read-only and
// safe for concurrent use; AddFilters mutates and must be externally serialised by
// the caller (the engine's write lock), per spec §5.
type Cache struct {
	mu sync.RWMutex

	simpleClassRules  map[string]bool
	simpleIDRules     map[string]bool
	complexClassRules map[string][]string
	complexIDRules    map[string][]string
	miscGeneric       map[string]bool // emitted in sorted order by baseStylesheet

	hide                     map[hashutil.Hash][]string
	unhide                   map[hashutil.Hash][]string
	injectScript             map[hashutil.Hash][]*rules.CosmeticFilter
	uninjectScript           map[hashutil.Hash][]*rules.CosmeticFilter
	proceduralAction         map[hashutil.Hash][]*rules.CosmeticFilter
	proceduralActionExempted map[hashutil.Hash][]*rules.CosmeticFilter

	resources   *resources.Storage
	permissions rules.Permission
	recorder    *metrics.Recorder

	stylesheetMu    sync.Mutex
	stylesheet      string
	stylesheetValid bool
}

// NewCache returns an empty cosmetic filter cache. store resolves scriptlet
// and dependency payloads for injected-script rendering; permissions
// ceilings which scriptlets this cache is allowed to inject. rec may be
// nil; stylesheet-rebuild counting is purely observational.
func NewCache(store *resources.Storage, permissions rules.Permission, rec *metrics.Recorder) *Cache {
	return &Cache{
		simpleClassRules:         make(map[string]bool),
		simpleIDRules:            make(map[string]bool),
		complexClassRules:        make(map[string][]string),
		complexIDRules:           make(map[string][]string),
		miscGeneric:              make(map[string]bool),
		hide:                     make(map[hashutil.Hash][]string),
		unhide:                   make(map[hashutil.Hash][]string),
		injectScript:             make(map[hashutil.Hash][]*rules.CosmeticFilter),
		uninjectScript:           make(map[hashutil.Hash][]*rules.CosmeticFilter),
		proceduralAction:         make(map[hashutil.Hash][]*rules.CosmeticFilter),
		proceduralActionExempted: make(map[hashutil.Hash][]*rules.CosmeticFilter),
		resources:                store,
		permissions:              permissions,
		recorder:                 rec,
	}
}

// AddFilters bins every cosmetic filter in filters into the cache.
func (c *Cache) AddFilters(filters []*rules.CosmeticFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range filters {
		c.addLocked(f)
	}
	c.invalidateStylesheet()
}

func (c *Cache) addLocked(f *rules.CosmeticFilter) {
	if f.IsGeneric() {
		c.addGenericLocked(f)
		return
	}
	c.addSpecificLocked(f)
}

func (c *Cache) addGenericLocked(f *rules.CosmeticFilter) {
	if f.Mask.Has(rules.CosmeticMaskIsSimple) {
		switch {
		case f.Mask.Has(rules.CosmeticMaskIsClassSelector):
			c.simpleClassRules[f.Key] = true
			return
		case f.Mask.Has(rules.CosmeticMaskIsIDSelector):
			c.simpleIDRules[f.Key] = true
			return
		}
	}
	if plain, ok := f.Selector.(rules.PlainSelector); ok {
		if key, isClass, isID, ok := extractComplexKey(plain.CSS); ok {
			if isClass {
				c.complexClassRules[key] = append(c.complexClassRules[key], plain.CSS)
				return
			}
			if isID {
				c.complexIDRules[key] = append(c.complexIDRules[key], plain.CSS)
				return
			}
		}
		c.miscGeneric[plain.CSS] = true
		return
	}
	// Generic procedural/other selectors fall back to the misc bin keyed by
	// their rendered form so they still surface from the base stylesheet.
	c.miscGeneric[selectorText(f.Selector)] = true
}

func (c *Cache) addSpecificLocked(f *rules.CosmeticFilter) {
	keys := append(append([]hashutil.Hash{}, f.Hostnames...), f.Entities...)
	for _, h := range keys {
		switch {
		case f.Mask.Has(rules.CosmeticMaskScriptInject) && f.Mask.Has(rules.CosmeticMaskUnhide):
			c.uninjectScript[h] = append(c.uninjectScript[h], f)
		case f.Mask.Has(rules.CosmeticMaskScriptInject):
			c.injectScript[h] = append(c.injectScript[h], f)
		case isProceduralFilter(f):
			if f.Mask.Has(rules.CosmeticMaskUnhide) {
				c.proceduralActionExempted[h] = append(c.proceduralActionExempted[h], f)
			} else {
				c.proceduralAction[h] = append(c.proceduralAction[h], f)
			}
		case f.Mask.Has(rules.CosmeticMaskUnhide):
			c.unhide[h] = append(c.unhide[h], selectorText(f.Selector))
		default:
			c.hide[h] = append(c.hide[h], selectorText(f.Selector))
		}
	}
}

func isProceduralFilter(f *rules.CosmeticFilter) bool {
	_, ok := f.Selector.(rules.ProceduralSelector)
	return ok
}

func selectorText(s rules.Selector) string {
	switch sel := s.(type) {
	case rules.PlainSelector:
		return sel.CSS
	case rules.ProceduralSelector:
		var parts []string
		for _, op := range sel.Ops {
			switch o := op.(type) {
			case rules.CSSSelectorOp:
				parts = append(parts, o.Selector)
			case rules.HasTextOp:
				parts = append(parts, ":has-text("+o.Pattern+")")
			case rules.MatchesCSSOp:
				parts = append(parts, ":matches-css("+o.Selector+": "+o.Value+")")
			case rules.XPathOp:
				parts = append(parts, ":xpath("+o.Expr+")")
			case rules.HasOp:
				parts = append(parts, ":has(...)")
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

func (c *Cache) invalidateStylesheet() {
	c.stylesheetMu.Lock()
	c.stylesheetValid = false
	c.stylesheetMu.Unlock()
}

// baseStylesheet returns the memoised union of non-class, non-id generic
// hide selectors, rebuilding it lazily and idempotently on first read after
// invalidation (spec §4.5, §9's "interior mutability for caches" note).
// Callers must already hold c.mu for reading; this only guards the
// separate memoisation cache with its own lock.
func (c *Cache) baseStylesheet() string {
	c.stylesheetMu.Lock()
	defer c.stylesheetMu.Unlock()
	if c.stylesheetValid {
		return c.stylesheet
	}

	selectors := make([]string, 0, len(c.miscGeneric))
	for sel := range c.miscGeneric {
		selectors = append(selectors, sel)
	}

	sort.Strings(selectors)
	var sheet string
	if len(selectors) > 0 {
		sheet = strings.Join(selectors, ",") + "{display:none !important;}"
	}
	c.stylesheet = sheet
	c.stylesheetValid = true
	c.recorder.RecordStylesheetRebuild()
	return sheet
}

// hostAndEntityHashes returns the dotted-suffix hashes of hostname plus the
// entity hash of its registrable label (see entityLabel).
func hostAndEntityHashes(hostname string) (hostHashes, entityHashes []hashutil.Hash) {
	hostHashes = rules.DottedSuffixHashes(hostname)
	if entity := entityLabel(hostname); entity != "" {
		entityHashes = []hashutil.Hash{hashutil.FastHash(entity)}
	}
	return
}

// entityLabel returns the label just left of hostname's public suffix, e.g.
// "a.b.example.co.uk" -> "example" when "co.uk" is the public suffix. It
// returns "" when hostname has no label besides its public suffix.
func entityLabel(hostname string) string {
	suffix, _ := publicsuffix.PublicSuffix(hostname)
	if suffix == "" || len(hostname) <= len(suffix)+1 {
		return ""
	}
	rest := hostname[:len(hostname)-len(suffix)-1]
	return rest[strings.LastIndexByte(rest, '.')+1:]
}
