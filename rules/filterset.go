package rules

// ListMetadata captures the leading "! Title:", "! Homepage:", "! Expires:",
// "! Redirect:" directives of a filter list.
type ListMetadata struct {
	Title       string
	Homepage    string
	ExpiresHrs  int // 0 when absent
	RedirectURL string
}

// FilterSet is the accumulation buffer used while parsing a filter list:
// two append-only slices plus captured list metadata and collected
// per-line parse errors.
type FilterSet struct {
	Network  []*NetworkFilter
	Cosmetic []*CosmeticFilter
	Metadata ListMetadata
	Errors   []*ParseError
}

// NewFilterSet returns an empty accumulation buffer.
func NewFilterSet() *FilterSet {
	return &FilterSet{}
}

// AddLine parses one line with opts and appends the result to the set,
// recording a ParseError rather than aborting on a bad line.
func (s *FilterSet) AddLine(line string, debug bool, opts ParseOptions) {
	result, err := ParseFilter(line, debug, opts)
	if err != nil {
		var pe *ParseError
		if asParseError(err, &pe) {
			pe.Line = line
			s.Errors = append(s.Errors, pe)
		} else {
			s.Errors = append(s.Errors, &ParseError{Kind: ErrUnsupportedSyntax, Line: line, Reason: err.Error()})
		}
		return
	}
	switch v := result.(type) {
	case *NetworkFilter:
		s.Network = append(s.Network, v)
	case *CosmeticFilter:
		s.Cosmetic = append(s.Cosmetic, v)
	case *ListMetadata:
		mergeMetadata(&s.Metadata, v)
	case nil:
		// comment / blank line, nothing to record
	}
}

// AddLines parses every line of lines in order.
func (s *FilterSet) AddLines(lines []string, debug bool, opts ParseOptions) {
	for _, line := range lines {
		s.AddLine(line, debug, opts)
	}
}

func asParseError(err error, out **ParseError) bool {
	pe, ok := err.(*ParseError)
	if ok {
		*out = pe
	}
	return ok
}

func mergeMetadata(dst, src *ListMetadata) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Homepage != "" {
		dst.Homepage = src.Homepage
	}
	if src.ExpiresHrs != 0 {
		dst.ExpiresHrs = src.ExpiresHrs
	}
	if src.RedirectURL != "" {
		dst.RedirectURL = src.RedirectURL
	}
}
