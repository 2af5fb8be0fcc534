// Package engine provides the Engine façade (spec §3.6, §6.1): the single
// public handle combining the network matcher, the cosmetic filter cache,
// resource storage, and the active tag set behind one concurrency model.
package engine

import (
	"bufio"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/bnema/goblock/cosmetic"
	"github.com/bnema/goblock/filterlist"
	"github.com/bnema/goblock/internal/metrics"
	"github.com/bnema/goblock/resources"
	"github.com/bnema/goblock/rules"
	"github.com/bnema/goblock/serialize"
)

// Engine is the only exported handle onto a compiled filter list. Queries
// (CheckNetworkRequest, URLCosmeticResources, HiddenClassIDSelectors,
// GetResource) take a shared read lock; mutations (AddResource,
// UseResources, EnableTags, DisableTags, UseTags, Deserialize,
// ReloadFromReader) take the exclusive lock, per spec §5.
type Engine struct {
	mu sync.RWMutex

	blocker  *filterlist.Blocker
	cosmetic *cosmetic.Cache
	store    *resources.Storage

	permissions     rules.Permission
	regexIdleTimeout time.Duration
	recorder        *metrics.Recorder

	// sourceLines retains the exact text an engine was built from so
	// SerializeRaw can round-trip it; empty when built from FromFilterSet
	// without debug-mode RawLine capture (see rebuildLines).
	sourceLines []string
}

// Options configures engine construction knobs that have no equivalent in
// a bare filter-list body.
type Options struct {
	// Permissions ceilings which scriptlets this engine may inject through
	// cosmetic script injection; redirect rendering does not consult it.
	Permissions rules.Permission
	// RegexIdleTimeout overrides the regex cache's idle-eviction window
	// (spec §5); zero uses filterlist.DefaultRegexIdleTimeout.
	RegexIdleTimeout time.Duration
	// Recorder observes request checks, regex evictions, and stylesheet
	// rebuilds (spec SPEC_FULL §6.5). Nil disables observation entirely;
	// this never affects matching behaviour.
	Recorder *metrics.Recorder
}

func (o Options) normalized() Options {
	if o.Permissions == 0 {
		o.Permissions = rules.PermissionAll
	}
	if o.RegexIdleTimeout == 0 {
		o.RegexIdleTimeout = filterlist.DefaultRegexIdleTimeout
	}
	return o
}

// FromFilterSet builds an engine from an already-parsed FilterSet. optimize
// is accepted for API parity with the method table's
// from_filter_set(set, optimize) signature; this implementation has no
// separate optimization pass since NewNetworkFilterList's token indexing
// already does the one optimization (bucket placement) the base engine
// describes, so optimize is currently inert for any value the caller
// passes.
func FromFilterSet(set *rules.FilterSet, optimize bool, opts Options) *Engine {
	opts = opts.normalized()
	store := resources.NewStorage()
	e := &Engine{
		blocker:          filterlist.NewBlocker(set, store, opts.RegexIdleTimeout, opts.Recorder),
		cosmetic:         cosmetic.NewCache(store, opts.Permissions, opts.Recorder),
		store:            store,
		permissions:      opts.Permissions,
		regexIdleTimeout: opts.RegexIdleTimeout,
		recorder:         opts.Recorder,
		sourceLines:      rebuildLines(set),
	}
	e.cosmetic.AddFilters(set.Cosmetic)
	return e
}

// FromRules parses lines and builds an engine from the result. Per-line
// parse errors never abort the batch (spec §4.2); they are returned
// alongside the engine for the caller to log or surface.
func FromRules(lines []string, parseOpts rules.ParseOptions, opts Options) (*Engine, []*rules.ParseError) {
	set := rules.NewFilterSet()
	set.AddLines(lines, true, parseOpts)
	opts = opts.normalized()
	if parseOpts.Permissions != 0 {
		opts.Permissions = parseOpts.Permissions
	}
	e := FromFilterSet(set, false, opts)
	e.sourceLines = append([]string{}, lines...)
	return e, set.Errors
}

// rebuildLines recovers a textual approximation of set's source from each
// filter's captured RawLine (populated only when AddLines was called with
// debug=true). Filters parsed without debug mode are silently omitted;
// SerializeRaw's round-trip is then lossy for that engine, which only
// matters to a caller that built with debug=false and still calls
// SerializeRaw — FromRules always parses with debug=true to avoid this.
func rebuildLines(set *rules.FilterSet) []string {
	var lines []string
	for _, f := range set.Network {
		if f.RawLine != "" {
			lines = append(lines, f.RawLine)
		}
	}
	for _, f := range set.Cosmetic {
		if f.RawLine != "" {
			lines = append(lines, f.RawLine)
		}
	}
	return lines
}

// CheckNetworkRequest runs the §4.4 precedence algorithm against req.
func (e *Engine) CheckNetworkRequest(req *rules.Request) filterlist.BlockerResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocker.Check(req)
}

// URLCosmeticResources implements url_cosmetic_resources: it extracts the
// hostname from rawURL (the one URL-parsing task the engine façade itself
// performs, since this entrypoint's public signature takes a full URL
// rather than a pre-split hostname) and combines the $generichide
// exception state with the cosmetic cache lookup.
func (e *Engine) URLCosmeticResources(rawURL string) (cosmetic.UrlCosmeticResources, error) {
	hostname, err := hostnameOf(rawURL)
	if err != nil {
		return cosmetic.UrlCosmeticResources{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	req, reqErr := rules.NewRequest(rules.TypeDocument, rawURL, schemeOf(rawURL), hostname, hostname, hostname, hostname, false)
	generichide := reqErr == nil && e.blocker.GenericHideExempted(req)
	return e.cosmetic.HostnameCosmeticResources(hostname, generichide), nil
}

func hostnameOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rules.ErrHostnameParse
	}
	if u.Hostname() == "" {
		return "", rules.ErrHostnameParse
	}
	return u.Hostname(), nil
}

func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "https"
	}
	return u.Scheme
}

// HiddenClassIDSelectors implements Query 2 directly against the cosmetic
// cache.
func (e *Engine) HiddenClassIDSelectors(classes, ids, exceptions []string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cosmetic.HiddenClassIDSelectors(classes, ids, exceptions)
}

// GetResource looks up a registered resource by name or alias.
func (e *Engine) GetResource(name string) (*rules.Resource, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Lookup(name)
}

// AddResource registers a single resource.
func (e *Engine) AddResource(r *rules.Resource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.AddResource(r)
}

// UseResources replaces the resource bundle wholesale.
func (e *Engine) UseResources(rs []*rules.Resource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.UseResources(rs)
}

// EnableTags marks tags active.
func (e *Engine) EnableTags(tags []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocker.EnableTags(tags)
}

// DisableTags deactivates tags.
func (e *Engine) DisableTags(tags []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocker.DisableTags(tags)
}

// UseTags replaces the active tag set wholesale.
func (e *Engine) UseTags(tags []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocker.UseTags(tags)
}

// TagExists reports whether tag is currently enabled.
func (e *Engine) TagExists(tag string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocker.TagExists(tag)
}

// SerializeRaw encodes the engine's current filter-list source, resource
// bundle, and active tags into a binary snapshot (spec §4.7).
func (e *Engine) SerializeRaw() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := &serialize.Snapshot{
		Lines:       e.sourceLines,
		Permissions: uint8(e.permissions),
	}
	for _, name := range e.store.Names() {
		r, ok := e.store.Lookup(name)
		if !ok {
			continue
		}
		snap.Resources = append(snap.Resources, serialize.ToResourceRecord(r))
	}
	snap.TagsEnabled = e.blocker.EnabledTags()
	return serialize.Marshal(snap)
}

// Deserialize replaces the engine's entire state with the snapshot encoded
// in data, atomically: on any error the engine is left untouched.
func (e *Engine) Deserialize(data []byte) error {
	snap, err := serialize.Unmarshal(data)
	if err != nil {
		return err
	}

	set := rules.NewFilterSet()
	set.AddLines(snap.Lines, true, rules.ParseOptions{Permissions: rules.Permission(snap.Permissions)})

	store := resources.NewStorage()
	for _, rec := range snap.Resources {
		_ = store.AddResource(rec.ToResource())
	}

	opts := Options{Permissions: rules.Permission(snap.Permissions), Recorder: e.recorder}.normalized()
	blocker := filterlist.NewBlocker(set, store, opts.RegexIdleTimeout, opts.Recorder)
	blocker.UseTags(snap.TagsEnabled)
	cache := cosmetic.NewCache(store, opts.Permissions, opts.Recorder)
	cache.AddFilters(set.Cosmetic)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocker = blocker
	e.cosmetic = cache
	e.store = store
	e.permissions = opts.Permissions
	e.sourceLines = snap.Lines
	return nil
}

// ReloadFromReader re-parses a full filter-list body from r and atomically
// swaps the compiled Blocker and cosmetic Cache behind the engine's lock,
// leaving the resource bundle and tag set untouched. Supplements the base
// spec's lifecycle operations with a local re-ingestion entrypoint (spec
// SPEC_FULL §4.8); list downloading itself remains the caller's concern.
func (e *Engine) ReloadFromReader(r io.Reader, parseOpts rules.ParseOptions) ([]*rules.ParseError, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	set := rules.NewFilterSet()
	set.AddLines(lines, true, parseOpts)

	e.mu.Lock()
	defer e.mu.Unlock()
	tags := e.blocker.EnabledTags()
	e.blocker = filterlist.NewBlocker(set, e.store, e.regexIdleTimeout, e.recorder)
	e.blocker.UseTags(tags)
	e.cosmetic = cosmetic.NewCache(e.store, e.permissions, e.recorder)
	e.cosmetic.AddFilters(set.Cosmetic)
	e.sourceLines = lines
	return set.Errors, nil
}
