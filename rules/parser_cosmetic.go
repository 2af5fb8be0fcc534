package rules

import (
	"strings"
)

// parseCosmeticFilter parses a cosmetic rule given the index of its
// separator within line.
func parseCosmeticFilter(line string, sepIdx int, debug bool) (*CosmeticFilter, error) {
	sep := detectSeparator(line, sepIdx)
	locations := line[:sepIdx]
	body := line[sepIdx+len(sep):]

	cf := &CosmeticFilter{}
	if debug {
		cf.RawLine = line
	}
	if sep == "#@#" || sep == "#@?#" {
		cf.Mask |= CosmeticMaskUnhide
	}

	if err := parseLocations(cf, locations); err != nil {
		return nil, err
	}

	if strings.HasPrefix(body, "+js(") && strings.HasSuffix(body, ")") {
		cf.Mask |= CosmeticMaskScriptInject
		inner := body[len("+js(") : len(body)-1]
		args := parseScriptletArgList(inner)
		if len(args) == 0 {
			return nil, &ParseError{Kind: ErrUnsupportedSyntax, Reason: "+js() with no scriptlet name"}
		}
		cf.Action = InjectScriptAction{Name: args[0], Args: args[1:]}
		cf.Mask |= CosmeticMaskHasAction
		if err := cf.Validate(); err != nil {
			return nil, err
		}
		return cf, nil
	}

	selector, action, ops, err := parseSelectorBody(body)
	if err != nil {
		return nil, err
	}
	cf.Selector = selector
	cf.Action = action
	if action != nil {
		cf.Mask |= CosmeticMaskHasAction
	}

	if len(ops) == 0 {
		if plain, ok := selector.(PlainSelector); ok {
			if key, isClass, isID, ok := extractSimpleKey(plain.CSS); ok {
				cf.Key = key
				cf.Mask |= CosmeticMaskIsSimple
				if isClass {
					cf.Mask |= CosmeticMaskIsClassSelector
				}
				if isID {
					cf.Mask |= CosmeticMaskIsIDSelector
				}
			}
		}
	}

	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

func detectSeparator(line string, idx int) string {
	for _, sep := range []string{"#@?#", "#@$#", "#@#", "#?#", "#$#", "##"} {
		if strings.HasPrefix(line[idx:], sep) {
			return sep
		}
	}
	return "##"
}

// parseLocations parses the comma-separated location list into the four
// sorted hash vectors (hostnames, entities, not_hostnames, not_entities).
func parseLocations(cf *CosmeticFilter, locations string) error {
	locations = strings.TrimSpace(locations)
	if locations == "" {
		return nil
	}
	for _, raw := range strings.Split(locations, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		negated := strings.HasPrefix(entry, "~")
		entry = strings.TrimPrefix(entry, "~")
		isEntity := strings.HasSuffix(entry, ".*")
		if isEntity {
			entry = strings.TrimSuffix(entry, ".*")
		}
		host, err := punycodeHost(entry)
		if err != nil {
			return err
		}
		h := DottedSuffixHashes(host)
		if len(h) == 0 {
			continue
		}
		hash := h[0]
		switch {
		case isEntity && negated:
			cf.NotEntities = append(cf.NotEntities, hash)
		case isEntity:
			cf.Entities = append(cf.Entities, hash)
		case negated:
			cf.NotHostnames = append(cf.NotHostnames, hash)
		default:
			cf.Hostnames = append(cf.Hostnames, hash)
		}
	}
	SortHashes(cf.Hostnames)
	SortHashes(cf.Entities)
	SortHashes(cf.NotHostnames)
	SortHashes(cf.NotEntities)
	return nil
}

// proceduralNames lists the pseudo-class operators recognised as
// procedural; the one occurring earliest in the body is used.
var proceduralNames = []string{
	":has-text(", ":matches-css(", ":xpath(", ":-abp-has(", ":has(",
	":remove-attr(", ":remove-class(", ":remove(", ":style(",
}

// parseSelectorBody scans body for a trailing procedural pseudo-class and
// splits it from the plain CSS prefix. A non-procedural selector returns a
// PlainSelector with nil ops.
func parseSelectorBody(body string) (Selector, CosmeticAction, []ProceduralOp, error) {
	procIdx, procName := findProceduralOperator(body)
	if procIdx < 0 {
		if err := validatePlainSelector(body); err != nil {
			return nil, nil, nil, err
		}
		return PlainSelector{CSS: body}, nil, nil, nil
	}

	prefix := body[:procIdx]
	rest := body[procIdx:]
	argStart := strings.Index(rest, "(")
	if argStart < 0 || !strings.HasSuffix(rest, ")") {
		return nil, nil, nil, &ParseError{Kind: ErrUnsupportedSyntax, Reason: "malformed procedural operator"}
	}
	arg := rest[argStart+1 : len(rest)-1]

	var ops []ProceduralOp
	if prefix != "" {
		if err := validatePlainSelector(prefix); err != nil {
			return nil, nil, nil, err
		}
		ops = append(ops, CSSSelectorOp{Selector: prefix})
	}

	var action CosmeticAction
	switch procName {
	case ":has-text(":
		ops = append(ops, HasTextOp{Pattern: arg})
	case ":matches-css(":
		name, value, _ := strings.Cut(arg, ":")
		ops = append(ops, MatchesCSSOp{Selector: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	case ":xpath(":
		ops = append(ops, XPathOp{Expr: arg})
	case ":-abp-has(", ":has(":
		ops = append(ops, HasOp{Inner: nil})
	case ":remove(":
		action = RemoveAction{}
	case ":remove-attr(":
		action = RemoveAttrAction{Name: arg}
	case ":remove-class(":
		action = RemoveClassAction{Name: arg}
	case ":style(":
		if err := validateCSSStyle(arg); err != nil {
			return nil, nil, nil, err
		}
		action = StyleAction{CSS: arg}
	}

	if len(ops) == 0 && action == nil {
		return nil, nil, nil, &ParseError{Kind: ErrUnsupportedSyntax, Reason: procName}
	}
	if len(ops) == 0 {
		return PlainSelector{CSS: prefix}, action, nil, nil
	}
	return ProceduralSelector{Ops: ops}, action, ops, nil
}

func findProceduralOperator(body string) (int, string) {
	best := -1
	bestName := ""
	for _, name := range proceduralNames {
		if idx := strings.Index(body, name); idx >= 0 {
			if best == -1 || idx < best {
				best = idx
				bestName = name
			}
		}
	}
	return best, bestName
}

// validatePlainSelector rejects selector text that would let a rule escape
// the selector context: opening a comment or prematurely closing a
// bracketed string.
func validatePlainSelector(sel string) error {
	if strings.Contains(sel, "/*") || strings.Contains(sel, "*/") {
		return &ParseError{Kind: ErrInvalidCSSSelector, Reason: "comment delimiter in selector"}
	}
	if strings.Contains(sel, "</style") || strings.Contains(sel, "<script") {
		return &ParseError{Kind: ErrInvalidCSSSelector, Reason: "markup escape in selector"}
	}
	if strings.Count(sel, "\"")%2 != 0 || strings.Count(sel, "'")%2 != 0 {
		return &ParseError{Kind: ErrInvalidCSSSelector, Reason: "unbalanced quotes"}
	}
	return nil
}

// validateCSSStyle rejects a :style() body that would allow code execution
// via javascript: URLs or expression(), a body that opens a nested rule, or
// one that is not a declaration list at all, e.g.
// "rm -rf ./*" is not valid CSS and must be rejected.
func validateCSSStyle(style string) error {
	lower := strings.ToLower(style)
	if strings.Contains(lower, "javascript:") || strings.Contains(lower, "expression(") {
		return &ParseError{Kind: ErrInvalidCSSStyle, Reason: "unsafe css expression"}
	}
	if !strings.Contains(style, ":") {
		return &ParseError{Kind: ErrInvalidCSSStyle, Reason: "not a declaration list"}
	}
	if strings.ContainsAny(style, ";{}") && strings.Contains(style, "{") {
		return &ParseError{Kind: ErrInvalidCSSStyle, Reason: "nested rule not allowed"}
	}
	return nil
}

// extractSimpleKey reports whether sel is a single bare class/id selector
// (".foo" or "#foo") and, if so, returns its unescaped key.
func extractSimpleKey(sel string) (key string, isClass, isID bool, ok bool) {
	if len(sel) < 2 {
		return "", false, false, false
	}
	switch sel[0] {
	case '.':
		isClass = true
	case '#':
		isID = true
	default:
		return "", false, false, false
	}
	token := sel[1:]
	for i := 0; i < len(token); i++ {
		c := token[i]
		isIdentChar := c == '-' || c == '_' || c == '\\' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isIdentChar && c < 0x80 {
			return "", false, false, false
		}
	}
	return unescapeCSSIdent(token), isClass, isID, true
}

// unescapeCSSIdent resolves CSS backslash escapes, including the "\XX "
// hex-codepoint form, into their literal characters.
func unescapeCSSIdent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		if isHexDigit(s[i]) {
			j := i
			for j < len(s) && j < i+6 && isHexDigit(s[j]) {
				j++
			}
			var code int64
			for k := i; k < j; k++ {
				code = code*16 + int64(hexVal(s[k]))
			}
			b.WriteRune(rune(code))
			if j < len(s) && s[j] == ' ' {
				j++
			}
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int64 {
	switch {
	case c >= '0' && c <= '9':
		return int64(c - '0')
	case c >= 'a' && c <= 'f':
		return int64(c-'a') + 10
	default:
		return int64(c-'A') + 10
	}
}

// parseScriptletArgList parses the inner contents of a +js(...) block. A
// literal comma is produced by '\,'; otherwise all '\', '"', and ''' are
// stripped from each resulting argument.
func parseScriptletArgList(args string) []string {
	var out []string
	findStart := 0
	afterLastDelim := 0
	for {
		idx := strings.IndexByte(args[findStart:], ',')
		if idx < 0 {
			break
		}
		commaLoc := findStart + idx
		if commaLoc > 0 && args[commaLoc-1] == '\\' {
			findStart = commaLoc + 1
			continue
		}
		out = append(out, cleanScriptletArg(args[afterLastDelim:commaLoc]))
		afterLastDelim = commaLoc + 1
		findStart = commaLoc + 1
	}
	if afterLastDelim != len(args) {
		out = append(out, cleanScriptletArg(args[afterLastDelim:]))
	}
	return out
}

func cleanScriptletArg(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `\,`, ",")
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == '\'' || c == '"' {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
