package serialize

import "github.com/joomcode/errorx"

// serializeNamespace groups every engine-level (de)serialization error so
// callers can test membership with errorx.IsOfType without matching on
// message text, per spec.md §4.7/§7's typed-error requirement.
var serializeNamespace = errorx.NewNamespace("serialize")

var (
	// ErrSerialization wraps any failure while encoding a snapshot.
	ErrSerialization = errorx.NewType(serializeNamespace, "serialization")

	// ErrBadHeader means the blob is shorter than the header or its magic
	// bytes do not match D1 D9 3A AF.
	ErrBadHeader = errorx.NewType(serializeNamespace, "bad_header")
	// ErrBadChecksum means the header's 8-byte checksum did not match the
	// hash of the body.
	ErrBadChecksum = errorx.NewType(serializeNamespace, "bad_checksum")
	// ErrVersionMismatch means the header's version byte is not one this
	// build knows how to read.
	ErrVersionMismatch = errorx.NewType(serializeNamespace, "version_mismatch")
	// ErrFlatBufferParsingError means the msgpack body failed to decode
	// into the expected snapshot shape (named for parity with the
	// upstream flatbuffer-based format this layout mirrors).
	ErrFlatBufferParsingError = errorx.NewType(serializeNamespace, "flatbuffer_parsing")
	// ErrValidationError means the body decoded but failed a structural
	// invariant (e.g. a resource record naming an unknown kind tag).
	ErrValidationError = errorx.NewType(serializeNamespace, "validation")
)
