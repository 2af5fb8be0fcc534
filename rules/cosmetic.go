package rules

import "github.com/bnema/goblock/hashutil"

// CosmeticFilterMask is the bitset of {unhide, script_inject, is-class,
// is-id, is-simple, is-unicode, has-action} flags from the data model.
type CosmeticFilterMask uint16

const (
	CosmeticMaskUnhide CosmeticFilterMask = 1 << iota
	CosmeticMaskScriptInject
	CosmeticMaskIsClassSelector
	CosmeticMaskIsIDSelector
	CosmeticMaskIsSimple
	CosmeticMaskIsUnicode
	CosmeticMaskHasAction
)

func (m CosmeticFilterMask) Has(flag CosmeticFilterMask) bool { return m&flag == flag }

// ProceduralOp is the closed sum type of procedural selector operators.
type ProceduralOp interface {
	isProceduralOp()
}

type CSSSelectorOp struct{ Selector string }
type HasTextOp struct{ Pattern string }
type MatchesCSSOp struct{ Selector, Value string }
type XPathOp struct{ Expr string }
type HasOp struct{ Inner []ProceduralOp }
type RemoveOp struct{}
type RemoveAttrOp struct{ Name string }
type RemoveClassOp struct{ Name string }

func (CSSSelectorOp) isProceduralOp()  {}
func (HasTextOp) isProceduralOp()      {}
func (MatchesCSSOp) isProceduralOp()   {}
func (XPathOp) isProceduralOp()        {}
func (HasOp) isProceduralOp()          {}
func (RemoveOp) isProceduralOp()       {}
func (RemoveAttrOp) isProceduralOp()   {}
func (RemoveClassOp) isProceduralOp()  {}

// Selector is the closed sum type for a CosmeticFilter's selector: either a
// plain CSS string, or an ordered procedural program.
type Selector interface {
	isSelector()
}

type PlainSelector struct{ CSS string }
type ProceduralSelector struct{ Ops []ProceduralOp }

func (PlainSelector) isSelector()       {}
func (ProceduralSelector) isSelector()  {}

// CosmeticAction is the closed sum type for a rule's effect beyond plain
// hiding.
type CosmeticAction interface {
	isCosmeticAction()
}

type StyleAction struct{ CSS string }
type RemoveAction struct{}
type RemoveAttrAction struct{ Name string }
type RemoveClassAction struct{ Name string }
type InjectScriptAction struct {
	Name string
	Args []string
}

func (StyleAction) isCosmeticAction()        {}
func (RemoveAction) isCosmeticAction()       {}
func (RemoveAttrAction) isCosmeticAction()   {}
func (RemoveClassAction) isCosmeticAction()  {}
func (InjectScriptAction) isCosmeticAction() {}

// CosmeticFilter is the compiled form of one cosmetic rule.
type CosmeticFilter struct {
	Mask CosmeticFilterMask

	Hostnames    []Hash // sorted
	Entities     []Hash // sorted
	NotHostnames []Hash // sorted
	NotEntities  []Hash // sorted

	Selector Selector
	Action   CosmeticAction

	// Key is the bare class/id token used as an index key for simple
	// selectors (the leading '.'/'#' stripped).
	Key string

	RawLine string
}

// IsGeneric reports whether the rule carries no hostname/entity
// constraint, making it subject to $generichide suppression.
func (f *CosmeticFilter) IsGeneric() bool {
	return len(f.Hostnames) == 0 && len(f.Entities) == 0
}

// Validate checks the cosmetic data-model invariants: at least one
// location list populated or generic; unhide + negated locations rejected;
// generic script-injection and generic :style() rules rejected.
func (f *CosmeticFilter) Validate() error {
	hasNegated := len(f.NotHostnames) > 0 || len(f.NotEntities) > 0
	if f.Mask.Has(CosmeticMaskUnhide) && hasNegated {
		return &ParseError{Kind: ErrDoubleNegation}
	}
	if f.IsGeneric() {
		if f.Mask.Has(CosmeticMaskScriptInject) {
			return &ParseError{Kind: ErrGenericScriptInject}
		}
		if _, isStyle := f.Action.(StyleAction); isStyle {
			return &ParseError{Kind: ErrGenericStyle}
		}
	}
	return nil
}

// MatchesHashes reports whether any of hostHashes/entityHashes is present
// in this filter's location lists, honouring negation: a negated match
// anywhere disqualifies the rule for this page.
func (f *CosmeticFilter) MatchesHashes(hostHashes, entityHashes []Hash) bool {
	for _, h := range hostHashes {
		if hashutil.BinLookup(f.NotHostnames, h) {
			return false
		}
	}
	for _, h := range entityHashes {
		if hashutil.BinLookup(f.NotEntities, h) {
			return false
		}
	}
	if f.IsGeneric() {
		return true
	}
	for _, h := range hostHashes {
		if hashutil.BinLookup(f.Hostnames, h) {
			return true
		}
	}
	for _, h := range entityHashes {
		if hashutil.BinLookup(f.Entities, h) {
			return true
		}
	}
	return false
}
