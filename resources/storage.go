// Package resources implements the in-memory resource store (spec §4.6):
// MIME/template/scriptlet payloads keyed by name and alias, with dependency
// resolution and permission enforcement for scriptlet injection.
package resources

import (
	"encoding/base64"
	"strings"
	"sync"

	"github.com/bnema/goblock/rules"
)

// Storage is a name/alias-indexed set of resources, safe for concurrent
// read access; mutation (AddResource, UseResources) requires the caller to
// hold the engine's exclusive lock, per the concurrency model in spec §5.
type Storage struct {
	mu          sync.RWMutex
	byName      map[string]*rules.Resource
	aliasToName map[string]string
}

// NewStorage returns an empty resource store.
func NewStorage() *Storage {
	return &Storage{
		byName:      make(map[string]*rules.Resource),
		aliasToName: make(map[string]string),
	}
}

// AddResource registers one resource. Duplicate names are rejected.
func (s *Storage) AddResource(r *rules.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(r)
}

func (s *Storage) addLocked(r *rules.Resource) error {
	name := normalizeKey(r.Name)
	if _, exists := s.byName[name]; exists {
		return ErrDuplicateResource
	}
	s.byName[name] = r
	for _, alias := range r.Aliases {
		s.aliasToName[normalizeKey(alias)] = name
	}
	return nil
}

// UseResources replaces the entire resource set with rs, the bulk-load
// operation used when an engine is constructed with a default resource
// bundle. Resources that collide on name within rs are skipped (first one
// wins) rather than aborting the whole load.
func (s *Storage) UseResources(rs []*rules.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName = make(map[string]*rules.Resource, len(rs))
	s.aliasToName = make(map[string]string, len(rs))
	for _, r := range rs {
		_ = s.addLocked(r)
	}
}

// Lookup resolves name (canonical name or alias, with or without a
// trailing ".js") to its resource.
func (s *Storage) Lookup(name string) (*rules.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(name)
}

func (s *Storage) lookupLocked(name string) (*rules.Resource, bool) {
	key := normalizeKey(name)
	if r, ok := s.byName[key]; ok {
		return r, true
	}
	if canonical, ok := s.aliasToName[key]; ok {
		return s.byName[canonical], true
	}
	return nil, false
}

// Names returns every registered resource's canonical name, for callers
// that need to enumerate the full bundle (e.g. serialization).
func (s *Storage) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	return names
}

func normalizeKey(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".js")
}

// decodeContent returns a resource's content as raw text. Content is
// documented as base64-encoded; payloads that fail to decode (e.g. the
// plain-text fixtures used in tests) are passed through verbatim rather
// than rejected, since a non-base64 resource still has well-defined
// substitution behaviour.
func decodeContent(content string) string {
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return content
	}
	return string(decoded)
}

// Substitute replaces positional {{1}}..{{9}} placeholders in content with
// args, leaving out-of-range placeholders as the literal "{{N}}" string.
// '"' in an arg value is escaped so the substitution is safe to drop into a
// double-quoted JS context.
func Substitute(content string, args []string) string {
	var b strings.Builder
	for i := 0; i < len(content); i++ {
		if content[i] == '{' && i+3 < len(content) && content[i+1] == '{' {
			if digit := content[i+2]; digit >= '1' && digit <= '9' && content[i+3] == '}' && i+4 < len(content) && content[i+4] == '}' {
				idx := int(digit - '1')
				if idx < len(args) {
					b.WriteString(strings.ReplaceAll(args[idx], `"`, `\"`))
				} else {
					b.WriteString(content[i : i+5])
				}
				i += 4
				continue
			}
		}
		b.WriteByte(content[i])
	}
	return b.String()
}

// ResolveScriptlet builds the full injectable body for a +js(name, args...)
// invocation: the target resource's transitive dependencies (DFS,
// de-duplicated, concatenated in topological order ahead of the trigger),
// followed by the target's own template substituted with args. The whole
// chain is rejected if the target is FnJavascript-kind (library-only), if
// any resource in the chain exceeds ceiling, or if the target itself is
// missing.
func (s *Storage) ResolveScriptlet(name string, args []string, ceiling rules.Permission) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.lookupLocked(name)
	if !ok {
		return "", ErrResourceNotFound
	}
	if _, isFn := target.Kind.(rules.FnJavascriptKind); isFn {
		return "", ErrNotInjectable
	}
	if !target.Permission.AllowedBy(ceiling) {
		return "", ErrPermissionDenied
	}

	var deps []string
	visited := map[string]bool{normalizeKey(name): true}
	if err := s.collectDependencies(target, ceiling, visited, &deps); err != nil {
		return "", err
	}

	body := Substitute(decodeContent(target.Content), args)

	var b strings.Builder
	for _, d := range deps {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	b.WriteString(body)
	return b.String(), nil
}

// collectDependencies performs the DFS over r's dependency names, skipping
// anything already in visited so cycles terminate, and appending each
// dependency's decoded content (no argument substitution: dependencies are
// library code, not scriptlet invocations) after that dependency's own
// dependencies, so each one follows everything it depends on.
func (s *Storage) collectDependencies(r *rules.Resource, ceiling rules.Permission, visited map[string]bool, out *[]string) error {
	for _, depName := range r.Dependencies {
		key := normalizeKey(depName)
		if visited[key] {
			continue
		}
		visited[key] = true
		dep, ok := s.lookupLocked(depName)
		if !ok {
			return ErrDependencyMissing
		}
		if !dep.Permission.AllowedBy(ceiling) {
			return ErrPermissionDenied
		}
		if err := s.collectDependencies(dep, ceiling, visited, out); err != nil {
			return err
		}
		*out = append(*out, decodeContent(dep.Content))
	}
	return nil
}

// RenderRedirect resolves name to a data: URI suitable for answering a
// $redirect= rule: a Mime-kind resource is emitted as
// "data:<mime>;base64,<content>"; a Template-kind resource is rendered with
// no substitution arguments (redirect targets carry no scriptlet args) and
// wrapped as a data:text/plain URI. Returns ErrResourceNotFound when name
// has no registered resource, and ErrNotInjectable for an FnJavascript
// resource (library-only, never a redirect payload).
func (s *Storage) RenderRedirect(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.lookupLocked(name)
	if !ok {
		return "", ErrResourceNotFound
	}
	switch kind := res.Kind.(type) {
	case rules.MimeKind:
		return "data:" + string(kind.Type) + ";base64," + res.Content, nil
	case rules.TemplateKind:
		rendered := Substitute(decodeContent(res.Content), nil)
		return "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(rendered)), nil
	default:
		return "", ErrNotInjectable
	}
}

// WrapScriptlet wraps a resolved scriptlet body in a try/catch so that one
// failing injection does not prevent the others queued alongside it from
// running (spec §4.5).
func WrapScriptlet(body string) string {
	return "try {\n" + body + "\n} catch ( e ) { }"
}
