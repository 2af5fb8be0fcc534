package rules

import (
	"strings"

	"github.com/bnema/goblock/hashutil"
)

// Request carries one candidate request's matching metadata. The core never
// parses URLs itself: callers hand in the already-split tuple and Request only derives the
// cheap, purely-lexical fields (token hashes, hostname-suffix hashes) that
// the matcher needs.
type Request struct {
	Type RequestType

	URL             string
	Schema          string
	Hostname        string
	Domain          string
	SourceHostname  string
	SourceDomain    string
	IsThirdParty    bool

	IsHTTP      bool
	IsHTTPS     bool
	IsSupported bool

	tokens                []Hash
	tokensComputed        bool
	sourceHostnameHashes  []Hash
	sourceHashesComputed  bool
}

// NewRequest constructs a Request from an already-parsed tuple. It fails
// with ErrHostnameParse when hostname is empty, or ErrUnsupportedScheme
// when schema is neither http nor https.
func NewRequest(requestType RequestType, rawURL, schema, hostname, domain, sourceHostname, sourceDomain string, isThirdParty bool) (*Request, error) {
	if hostname == "" {
		return nil, ErrHostnameParse
	}

	schemaLower := strings.ToLower(schema)
	isHTTP := schemaLower == "http"
	isHTTPS := schemaLower == "https"
	if !isHTTP && !isHTTPS {
		return nil, ErrUnsupportedScheme
	}

	return &Request{
		Type:           requestType,
		URL:            strings.ToLower(rawURL),
		Schema:         schemaLower,
		Hostname:       strings.ToLower(hostname),
		Domain:         strings.ToLower(domain),
		SourceHostname: strings.ToLower(sourceHostname),
		SourceDomain:   strings.ToLower(sourceDomain),
		IsThirdParty:   isThirdParty,
		IsHTTP:         isHTTP,
		IsHTTPS:        isHTTPS,
		IsSupported:    true,
	}, nil
}

// Tokens returns the lazily-computed token hashes of the request URL.
func (r *Request) Tokens() []Hash {
	if !r.tokensComputed {
		r.tokens = hashutil.Tokenize(r.URL)
		r.tokensComputed = true
	}
	return r.tokens
}

// SourceHostnameHashes returns the hash of every dotted suffix of the
// document (source) hostname, e.g. for "a.b.example.com" it returns the
// hashes of "a.b.example.com", "b.example.com", "example.com", "com".
func (r *Request) SourceHostnameHashes() []Hash {
	if !r.sourceHashesComputed {
		r.sourceHostnameHashes = DottedSuffixHashes(r.SourceHostname)
		r.sourceHashesComputed = true
	}
	return r.sourceHostnameHashes
}

// DottedSuffixHashes returns the hash of host itself and every suffix
// starting at each '.'-delimited label boundary.
func DottedSuffixHashes(host string) []Hash {
	if host == "" {
		return nil
	}
	var out []Hash
	rest := host
	for {
		out = append(out, hashutil.FastHash(rest))
		idx := strings.IndexByte(rest, '.')
		if idx < 0 {
			break
		}
		rest = rest[idx+1:]
	}
	return out
}
