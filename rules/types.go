// Package rules holds the data model for parsed filters: requests, network
// filters, cosmetic filters, resources, and the accumulation buffer used
// while a filter list is being parsed.
package rules

import "github.com/bnema/goblock/hashutil"

// Hash is re-exported from hashutil so callers never need to import both
// packages just to talk about token/hostname hashes.
type Hash = hashutil.Hash

// RequestType identifies the kind of resource a Request represents, used to
// match against a NetworkFilter's allowed-type bitset.
type RequestType uint8

const (
	TypeOther RequestType = iota
	TypeDocument
	TypeSubdocument
	TypeStylesheet
	TypeScript
	TypeImage
	TypeFont
	TypeObject
	TypeMedia
	TypeXHR
	TypeWebsocket
	TypePing
	TypeBeacon
	TypeCSPReport
	TypeMainFrame
	typeCount
)

var requestTypeNames = map[string]RequestType{
	"document":     TypeDocument,
	"main_frame":   TypeMainFrame,
	"subdocument":  TypeSubdocument,
	"stylesheet":   TypeStylesheet,
	"script":       TypeScript,
	"image":        TypeImage,
	"font":         TypeFont,
	"object":       TypeObject,
	"object-subrequest": TypeObject,
	"media":        TypeMedia,
	"xhr":          TypeXHR,
	"xmlhttprequest": TypeXHR,
	"websocket":    TypeWebsocket,
	"ping":         TypePing,
	"beacon":       TypeBeacon,
	"csp_report":   TypeCSPReport,
	"other":        TypeOther,
	"popup":        TypeOther,
}

// ParseRequestType maps a filter-option or caller-supplied type name onto a
// RequestType. Unknown names map to TypeOther.
func ParseRequestType(name string) RequestType {
	if t, ok := requestTypeNames[name]; ok {
		return t
	}
	return TypeOther
}

// bit returns t's bit in a NetworkFilterMask's allowed-type field.
func (t RequestType) bit() uint32 {
	return 1 << uint32(t)
}
