package rules

import (
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ParseFormat selects between a standard Adblock-syntax filter list and a
// hosts-file formatted one.
type ParseFormat int

const (
	FormatStandard ParseFormat = iota
	FormatHosts
)

// ParseOptions controls how a batch of lines is interpreted.
type ParseOptions struct {
	Format ParseFormat
	// IncludeRedirectURLs is not read by the parser: every redirect= or
	// redirect-rule= value, a URL included, is stored as a resource name
	// and MaskIsRedirectURL is never set.
	IncludeRedirectURLs bool
	// Permissions ceilings the scriptlet permissions usable from this
	// batch.
	Permissions Permission
}

// ParseFilter parses one line into a *NetworkFilter, a *CosmeticFilter, a
// *ListMetadata, or (nil, nil) for a blank/ignored line. debug retains
// RawLine on the returned filter.
func ParseFilter(line string, debug bool, opts ParseOptions) (interface{}, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, nil
	}

	if idx := cosmeticSeparatorIndex(trimmed); idx >= 0 {
		return parseCosmeticFilter(trimmed, idx, debug)
	}

	if strings.HasPrefix(trimmed, "!") {
		return parseMetadataComment(trimmed), nil
	}
	if strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	if opts.Format == FormatHosts {
		if nf, ok, err := parseHostsLine(trimmed, debug); ok || err != nil {
			return nf, err
		}
	}

	return parseNetworkFilter(trimmed, debug, opts)
}

// cosmeticSeparators lists the separators that route a line to the
// cosmetic branch, searched within the first 200 characters of the line.
var cosmeticSeparators = []string{"#@?#", "#@#", "#?#", "#$#", "#@$#", "##"}

func cosmeticSeparatorIndex(line string) int {
	limit := len(line)
	if limit > 200 {
		limit = 200
	}
	head := line[:limit]
	best := -1
	for _, sep := range cosmeticSeparators {
		if idx := strings.Index(head, sep); idx >= 0 {
			if best == -1 || idx < best {
				best = idx
			}
		}
	}
	return best
}

// --- metadata -----------------------------------------------------------

func parseMetadataComment(line string) *ListMetadata {
	body := strings.TrimSpace(strings.TrimPrefix(line, "!"))
	md := &ListMetadata{}
	switch {
	case hasDirective(body, "Title:"):
		md.Title = strings.TrimSpace(afterDirective(body, "Title:"))
	case hasDirective(body, "Homepage:"):
		md.Homepage = strings.TrimSpace(afterDirective(body, "Homepage:"))
	case hasDirective(body, "Redirect:"):
		md.RedirectURL = strings.TrimSpace(afterDirective(body, "Redirect:"))
	case hasDirective(body, "Expires:"):
		md.ExpiresHrs = parseExpires(strings.TrimSpace(afterDirective(body, "Expires:")))
	}
	return md
}

func hasDirective(body, directive string) bool {
	return strings.HasPrefix(strings.ToLower(body), strings.ToLower(directive))
}

func afterDirective(body, directive string) string {
	return body[len(directive):]
}

// parseExpires parses "N hours" / "N days" into hours, accepted only within
// the 1 hour - 14 day range; anything else is ignored (returns 0).
func parseExpires(value string) int {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0
	}
	unit := strings.ToLower(fields[1])
	var hours int
	switch {
	case strings.HasPrefix(unit, "hour"):
		hours = n
	case strings.HasPrefix(unit, "day"):
		hours = n * 24
	default:
		return 0
	}
	if hours < 1 || hours > 14*24 {
		return 0
	}
	return hours
}

// --- hosts format ---------------------------------------------------------

func parseHostsLine(line string, debug bool) (*NetworkFilter, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, false, nil
	}
	ip := fields[0]
	if ip != "0.0.0.0" && ip != "127.0.0.1" {
		return nil, false, nil
	}
	host := fields[1]
	if strings.Contains(host, "#") {
		host = strings.SplitN(host, "#", 2)[0]
		host = strings.TrimSpace(host)
	}
	if host == "" || host == "localhost" || !strings.Contains(host, ".") ||
		strings.HasPrefix(host, ".") || strings.HasPrefix(host, "*") {
		return nil, true, &ParseError{Kind: ErrUnsupportedSyntax, Reason: "invalid hosts-format hostname"}
	}
	equivalent := "||" + host + "^$document"
	nf, err := parseNetworkFilter(equivalent, debug, ParseOptions{})
	if nf2, ok := nf.(*NetworkFilter); ok {
		return nf2, true, err
	}
	return nil, true, err
}

// --- network filters ------------------------------------------------------

func parseNetworkFilter(line string, debug bool, opts ParseOptions) (interface{}, error) {
	raw := line
	body := line
	var mask NetworkFilterMask

	if strings.HasPrefix(body, "@@") {
		mask |= MaskException
		body = body[2:]
	}

	optionsStr := ""
	if dollar := lastUnescapedDollar(body); dollar >= 0 {
		optionsStr = body[dollar+1:]
		body = body[:dollar]
	}

	if body == "" {
		return nil, &ParseError{Kind: ErrEmptyRule}
	}

	nf := &NetworkFilter{Mask: mask}
	if debug {
		nf.RawLine = raw
	}

	if optionsStr != "" {
		if err := applyNetworkOptions(nf, optionsStr, opts); err != nil {
			return nil, err
		}
	}

	if nf.Mask.Has(MaskImportant) && nf.Mask.Has(MaskException) {
		return nil, &ParseError{Kind: ErrNegatedImportant}
	}

	switch {
	case strings.HasPrefix(body, "||"):
		nf.Mask |= MaskHostnameAnchor
		body = body[2:]
	case strings.HasPrefix(body, "|"):
		nf.Mask |= MaskLeftAnchor
		body = body[1:]
	}
	if strings.HasSuffix(body, "|") && !strings.HasSuffix(body, "\\|") {
		nf.Mask |= MaskRightAnchor
		body = body[:len(body)-1]
	}

	if len(body) >= 2 && strings.HasPrefix(body, "/") && strings.HasSuffix(body, "/") {
		nf.Mask |= MaskIsRegex
		nf.FilterPart = SimplePart{Pattern: body[1 : len(body)-1]}
	} else if nf.Mask.Has(MaskHostnameAnchor) {
		hostname, rest := splitHostnameBody(body)
		nf.Hostname = hostname
		// A bare trailing '^' is the separator placeholder (end of
		// hostname, or any of '/',':','?','#'): once the hostname itself
		// has matched there is nothing further to check against the URL
		// body, so it reduces to an empty pattern. A leading '^' followed
		// by more body text, and a '^' ending a longer body ("/path^"),
		// are dropped the same way; the separator is not re-checked there.
		rest = strings.TrimPrefix(rest, "^")
		rest = strings.TrimSuffix(rest, "^")
		nf.FilterPart = bodyToFilterPart(rest)
	} else {
		nf.FilterPart = bodyToFilterPart(body)
	}

	if nf.OptDomains != nil {
		SortHashes(nf.OptDomains)
	}
	if nf.OptNotDomains != nil {
		SortHashes(nf.OptNotDomains)
	}
	if nf.DenyAllow != nil {
		SortHashes(nf.DenyAllow)
	}

	if err := nf.Validate(); err != nil {
		return nil, err
	}
	nf.ID = NewNetworkFilterID(raw)
	return nf, nil
}

// splitHostnameBody splits a hostname-anchored body at the first of '/',
// '^', or '*'.
func splitHostnameBody(body string) (hostname, rest string) {
	idx := strings.IndexAny(body, "/^*")
	if idx < 0 {
		return body, ""
	}
	return body[:idx], body[idx:]
}

func bodyToFilterPart(body string) FilterPart {
	if body == "" {
		return EmptyPart{}
	}
	if strings.Contains(body, "*") {
		pieces := strings.Split(body, "*")
		var nonEmpty []string
		for _, p := range pieces {
			if p != "" {
				nonEmpty = append(nonEmpty, p)
			}
		}
		if len(nonEmpty) == 0 {
			return EmptyPart{}
		}
		if len(nonEmpty) == 1 {
			return SimplePart{Pattern: nonEmpty[0]}
		}
		return AnyOfPart{Alternates: nonEmpty}
	}
	return SimplePart{Pattern: body}
}

// lastUnescapedDollar finds the last '$' in body that is not escaped and is
// followed by what looks like an option token (a letter, '~', or digit).
func lastUnescapedDollar(body string) int {
	for i := len(body) - 1; i >= 0; i-- {
		if body[i] != '$' {
			continue
		}
		if i > 0 && body[i-1] == '\\' {
			continue
		}
		if i+1 >= len(body) {
			continue
		}
		next := body[i+1]
		if next != '~' && !(next >= 'a' && next <= 'z') && !(next >= 'A' && next <= 'Z') && !(next >= '0' && next <= '9') {
			// e.g. "$/" inside a regex body is not an options separator.
			continue
		}
		return i
	}
	return -1
}

var networkTypeOptions = map[string]RequestType{
	"script":            TypeScript,
	"image":             TypeImage,
	"stylesheet":        TypeStylesheet,
	"object":            TypeObject,
	"object-subrequest": TypeObject,
	"xmlhttprequest":    TypeXHR,
	"subdocument":       TypeSubdocument,
	"document":          TypeDocument,
	"ping":              TypePing,
	"websocket":         TypeWebsocket,
	"font":              TypeFont,
	"inline-font":       TypeFont,
	"media":             TypeMedia,
	"mp4":               TypeMedia,
	"other":             TypeOther,
	"popup":             TypeOther,
	"empty":             TypeOther,
	"inline-script":     TypeScript,
}

var networkBooleanOptions = map[string]NetworkFilterMask{
	"generichide": MaskGenericHide,
	"important":   MaskImportant,
	"match-case":  MaskCaseSensitive,
	"first-party": MaskFirstParty,
	"~third-party": MaskFirstParty,
	"third-party":  MaskThirdParty,
	"~first-party": MaskThirdParty,
}

func applyNetworkOptions(nf *NetworkFilter, optionsStr string, opts ParseOptions) error {
	supportedAny := false
	for _, raw := range splitOptions(optionsStr) {
		opt := strings.TrimSpace(raw)
		if opt == "" {
			continue
		}
		name, value, hasValue := strings.Cut(opt, "=")
		negated := strings.HasPrefix(name, "~")
		bare := strings.TrimPrefix(name, "~")

		switch {
		case bare == "domain" && hasValue:
			applyDomainOption(nf, value)
			supportedAny = true
		case bare == "denyallow" && hasValue:
			applyDenyAllowOption(nf, value)
			supportedAny = true
		case bare == "csp" && hasValue:
			nf.CSP = value
			nf.Mask |= MaskIsCSP
			supportedAny = true
		case bare == "redirect" && hasValue:
			nf.Redirect = value
			nf.Mask |= MaskIsRedirect
			supportedAny = true
		case bare == "redirect-rule" && hasValue:
			nf.Redirect = value
			nf.Mask |= MaskIsRedirect
			supportedAny = true
		case bare == "tag" && hasValue:
			nf.Tag = value
			supportedAny = true
		case !hasValue && isNetworkTypeOption(bare):
			t := networkTypeOptions[bare]
			if !negated {
				nf.Mask |= requestTypeBit(t)
			}
			supportedAny = true
		case !hasValue && isKnownFlag(bare):
			if flag, ok := networkBooleanOptions[name]; ok {
				nf.Mask |= flag
			} else if flag, ok := networkBooleanOptions[bare]; ok && !negated {
				nf.Mask |= flag
			}
			supportedAny = true
		default:
			return &ParseError{Kind: ErrUnrecognisedOption, Reason: opt}
		}
	}
	if optionsStr != "" && !supportedAny {
		return &ParseError{Kind: ErrNoSupportedNetworkOptions}
	}
	return nil
}

func isNetworkTypeOption(bare string) bool {
	_, ok := networkTypeOptions[bare]
	return ok
}

func isKnownFlag(bare string) bool {
	switch bare {
	case "generichide", "important", "match-case", "first-party", "third-party":
		return true
	default:
		return false
	}
}

func applyDomainOption(nf *NetworkFilter, value string) {
	for _, d := range strings.Split(value, "|") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if strings.HasPrefix(d, "~") {
			h, err := punycodeHost(d[1:])
			if err == nil {
				nf.OptNotDomains = append(nf.OptNotDomains, DottedSuffixHashes(h)[0])
			}
			continue
		}
		h, err := punycodeHost(d)
		if err == nil {
			nf.OptDomains = append(nf.OptDomains, DottedSuffixHashes(h)[0])
		}
	}
}

func applyDenyAllowOption(nf *NetworkFilter, value string) {
	for _, d := range strings.Split(value, "|") {
		d = strings.TrimSpace(strings.TrimPrefix(d, "~"))
		if d == "" {
			continue
		}
		h, err := punycodeHost(d)
		if err == nil {
			nf.DenyAllow = append(nf.DenyAllow, h0(h))
		}
	}
}

// h0 returns the hash of host itself (the first element of
// DottedSuffixHashes), used wherever only the exact configured host matters.
func h0(host string) Hash {
	return DottedSuffixHashes(host)[0]
}

func splitOptions(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func punycodeHost(host string) (string, error) {
	if isASCII(host) {
		return strings.ToLower(host), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", &ParseError{Kind: ErrPunycodeError, Reason: host}
	}
	return strings.ToLower(ascii), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
