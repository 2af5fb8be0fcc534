package resources

import "errors"

// Sentinel errors for resource storage operations (spec §4.6). These are
// surfaced to direct callers of AddResource/ResolveScriptlet; query-time
// scriptlet failures are swallowed by the cosmetic cache rather than
// propagated, per the "silently skipped" policy for accessory payloads.
var (
	ErrDuplicateResource = errors.New("resources: a resource with this name already exists")
	ErrResourceNotFound  = errors.New("resources: no resource with this name or alias")
	ErrNotInjectable     = errors.New("resources: resource is library-only and cannot be injected directly")
	ErrPermissionDenied  = errors.New("resources: resource permission exceeds the caller's ceiling")
	ErrDependencyMissing = errors.New("resources: a dependency resource could not be resolved")
)
