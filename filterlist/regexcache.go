package filterlist

import (
	"time"

	"github.com/bluele/gcache"
	"github.com/dlclark/regexp2"
	"golang.org/x/sync/singleflight"

	"github.com/bnema/goblock/internal/metrics"
)

// DefaultRegexIdleTimeout is the default idle window (3 minutes) after which
// an unused compiled regex expires. DefaultRegexSweepInterval (30s) is not
// read by RegexCache, which runs no periodic sweep: an expired entry is
// dropped when it is next looked up or evicted for capacity.
const (
	DefaultRegexIdleTimeout    = 3 * time.Minute
	DefaultRegexSweepInterval  = 30 * time.Second
	defaultRegexCacheCapacity  = 4096
)

// RegexCache lazily compiles and caches regexp2 patterns, evicting entries
// unused for idleTimeout. regexp2 (rather than the standard library's
// regexp) is used because filter-list regex bodies occasionally rely on
// lookaround/backreference constructs RE2 cannot express. Concurrent first-
// use compiles of the same pattern are coalesced with singleflight so N
// readers racing past an invalidation trigger exactly one compile.
type RegexCache struct {
	cache    gcache.Cache
	group    singleflight.Group
	recorder *metrics.Recorder
}

// NewRegexCache builds a cache evicting entries idleTimeout after their
// last use. A non-positive idleTimeout falls back to the spec default.
// rec may be nil; eviction counting is purely observational.
func NewRegexCache(idleTimeout time.Duration, rec *metrics.Recorder) *RegexCache {
	if idleTimeout <= 0 {
		idleTimeout = DefaultRegexIdleTimeout
	}
	r := &RegexCache{recorder: rec}
	r.cache = gcache.New(defaultRegexCacheCapacity).
		ARC().
		Expiration(idleTimeout).
		EvictedFunc(func(_, _ interface{}) {
			r.recorder.RecordRegexEviction()
		}).
		Build()
	return r
}

// compiled returns the cached *regexp2.Regexp for pattern, compiling and
// inserting it on first use.
func (r *RegexCache) compiled(pattern string) (*regexp2.Regexp, error) {
	if v, err := r.cache.Get(pattern); err == nil {
		// Re-setting refreshes the entry's expiration, so idleTimeout
		// counts from the last use rather than from insertion.
		_ = r.cache.Set(pattern, v)
		return v.(*regexp2.Regexp), nil
	}
	v, err, _ := r.group.Do(pattern, func() (interface{}, error) {
		if v, err := r.cache.Get(pattern); err == nil {
			return v, nil
		}
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, err
		}
		_ = r.cache.Set(pattern, re)
		return re, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*regexp2.Regexp), nil
}

// Match reports whether pattern matches url. A compile error or a regexp2
// match-time error is treated as a non-match: a malformed regex filter
// should never block the rest of a request's matching.
func (r *RegexCache) Match(pattern, url string) bool {
	re, err := r.compiled(pattern)
	if err != nil {
		return false
	}
	ok, err := re.MatchString(url)
	if err != nil {
		return false
	}
	return ok
}
