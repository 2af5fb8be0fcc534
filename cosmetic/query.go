package cosmetic

import (
	"sort"

	"github.com/bnema/goblock/hashutil"
	"github.com/bnema/goblock/resources"
	"github.com/bnema/goblock/rules"
)

// extractComplexKey returns the leading class/id token of a compound CSS
// selector like ".foo.bar", "#foo .bar" or "div.foo" (an optional leading
// tag name is skipped), used to bucket rules that are anchored on a single
// class/id but carry extra structure beyond a bare ".foo"/"#foo" simple
// selector.
func extractComplexKey(css string) (key string, isClass, isID bool, ok bool) {
	start := 0
	for start < len(css) && isIdentChar(css[start]) {
		start++
	}
	if start+1 >= len(css) {
		return "", false, false, false
	}
	switch css[start] {
	case '.':
		isClass = true
	case '#':
		isID = true
	default:
		return "", false, false, false
	}
	end := start + 1
	for end < len(css) && isIdentChar(css[end]) {
		end++
	}
	if end == start+1 || (start == 0 && end == len(css)) {
		// A bare ".foo"/"#foo" with nothing trailing belongs in the simple
		// bins, handled earlier by the is-simple mask check.
		return "", false, false, false
	}
	return css[start+1 : end], isClass, isID, true
}

func isIdentChar(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// HiddenClassIDSelectors implements Query 2 (spec §4.5, §6.1
// hidden_class_id_selectors): given the page's observed class and id
// attribute values, returns the generic hide selectors they trigger, with
// any selector present in exceptions removed.
func (c *Cache) HiddenClassIDSelectors(classes, ids []string, exceptions []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	excluded := make(map[string]bool, len(exceptions))
	for _, e := range exceptions {
		excluded[e] = true
	}

	seen := make(map[string]bool)
	var out []string
	emit := func(sel string) {
		if sel == "" || seen[sel] || excluded[sel] {
			return
		}
		seen[sel] = true
		out = append(out, sel)
	}

	for _, cl := range classes {
		if c.simpleClassRules[cl] {
			emit("." + cl)
		}
		for _, sel := range c.complexClassRules[cl] {
			emit(sel)
		}
	}
	for _, id := range ids {
		if c.simpleIDRules[id] {
			emit("#" + id)
		}
		for _, sel := range c.complexIDRules[id] {
			emit(sel)
		}
	}

	sort.Strings(out)
	return out
}

// HostnameCosmeticResources implements Query 1 (spec §4.5, §6.1
// hostname_cosmetic_resources): the full set of hostname/entity-specific
// hide selectors, procedural actions, and injected scripts for a page,
// plus the base generic stylesheet unless generichide suppresses it.
func (c *Cache) HostnameCosmeticResources(hostname string, generichide bool) UrlCosmeticResources {
	hostHashes, entityHashes := hostAndEntityHashes(hostname)
	keys := append(append([]hashutil.Hash{}, hostHashes...), entityHashes...)

	c.mu.RLock()
	defer c.mu.RUnlock()

	res := UrlCosmeticResources{Generichide: generichide}

	hideSeen := make(map[string]bool)
	unhideSet := make(map[string]bool)
	for _, k := range keys {
		for _, sel := range c.unhide[k] {
			unhideSet[sel] = true
		}
	}
	for _, k := range keys {
		for _, sel := range c.hide[k] {
			if unhideSet[sel] || hideSeen[sel] {
				continue
			}
			hideSeen[sel] = true
			res.HideSelectors = append(res.HideSelectors, sel)
		}
	}
	sort.Strings(res.HideSelectors)

	if !generichide {
		if sheet := c.baseStylesheet(); sheet != "" {
			res.HideSelectors = append(res.HideSelectors, sheet)
		}
	}

	exemptedProcedural := make(map[string]bool)
	for _, k := range keys {
		for _, f := range c.proceduralActionExempted[k] {
			exemptedProcedural[selectorText(f.Selector)] = true
		}
	}
	actionSeen := make(map[string]bool)
	for _, k := range keys {
		for _, f := range c.proceduralAction[k] {
			text := selectorText(f.Selector)
			if exemptedProcedural[text] || actionSeen[text] {
				continue
			}
			actionSeen[text] = true
			res.ProceduralActions = append(res.ProceduralActions, text)
		}
	}
	sort.Strings(res.ProceduralActions)

	uninjected := make(map[string]bool)
	for _, k := range keys {
		for _, f := range c.uninjectScript[k] {
			if inj, ok := f.Action.(rules.InjectScriptAction); ok {
				uninjected[inj.Name] = true
			}
		}
	}

	var scripts []string
	scriptSeen := make(map[string]bool)
	for _, k := range keys {
		for _, f := range c.injectScript[k] {
			inj, ok := f.Action.(rules.InjectScriptAction)
			if !ok || uninjected[inj.Name] || scriptSeen[inj.Name] {
				continue
			}
			scriptSeen[inj.Name] = true
			if c.resources == nil {
				continue
			}
			body, err := c.resources.ResolveScriptlet(inj.Name, inj.Args, c.permissions)
			if err != nil {
				continue
			}
			scripts = append(scripts, resources.WrapScriptlet(body))
		}
	}
	if len(scripts) > 0 {
		joined := scripts[0]
		for _, s := range scripts[1:] {
			joined += "\n" + s
		}
		res.InjectedScript = joined
	}

	return res
}

