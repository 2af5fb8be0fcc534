// Package serialize implements the engine's binary snapshot format (spec
// §4.7): a 4-byte magic header, a 1-byte version, an 8-byte body checksum,
// and a message-pack body carrying everything needed to rebuild an Engine's matching behaviour.
package serialize

import (
	"bytes"
	"encoding/binary"

	"github.com/bnema/goblock/hashutil"
	"github.com/vmihailenco/msgpack/v5"
)

// magic identifies a goblock snapshot blob, per spec.md §4.7.
var magic = [4]byte{0xD1, 0xD9, 0x3A, 0xAF}

// formatVersion is the current body layout version. Bumped whenever a
// field is added or reinterpreted in a way that would change how an older
// reader decodes the body.
const formatVersion uint8 = 1

const headerLen = len(magic) + 1 /*version*/ + 8 /*checksum*/

// ResourceRecord is the wire shape of one rules.Resource: ResourceKind
// does not round-trip through msgpack directly since it is a closed
// interface type, so it is flattened to a tag string plus the one field
// relevant to that tag.
type ResourceRecord struct {
	Name         string   `msgpack:"name"`
	Aliases      []string `msgpack:"aliases,omitempty"`
	KindTag      string   `msgpack:"kind"` // "mime", "template", or "fn"
	MimeType     string   `msgpack:"mime_type,omitempty"`
	Content      string   `msgpack:"content"`
	Dependencies []string `msgpack:"dependencies,omitempty"`
	Permission   uint8    `msgpack:"permission"`
}

// Snapshot is the full engine state captured by Engine.SerializeRaw:
// the filter-list source lines (so network and cosmetic rules rebuild
// through the exact same parser an Engine would otherwise use), the
// resource bundle, and the active tag set.
type Snapshot struct {
	Lines       []string         `msgpack:"lines"`
	Resources   []ResourceRecord `msgpack:"resources,omitempty"`
	TagsEnabled []string         `msgpack:"tags_enabled,omitempty"`
	Permissions uint8            `msgpack:"permissions"`
}

// Marshal encodes snap into a versioned, checksummed blob.
func Marshal(snap *Snapshot) ([]byte, error) {
	body, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, ErrSerialization.Wrap(err, "encode snapshot body")
	}

	checksum := hashutil.FastHashBytes(body)

	buf := make([]byte, 0, headerLen+len(body))
	buf = append(buf, magic[:]...)
	buf = append(buf, byte(formatVersion))
	var checksumBytes [8]byte
	binary.BigEndian.PutUint64(checksumBytes[:], checksum)
	buf = append(buf, checksumBytes[:]...)
	buf = append(buf, body...)
	return buf, nil
}

// Unmarshal verifies blob's header and checksum, then decodes its body.
// It never returns a partially-applied snapshot: any error means the
// caller's existing engine state is left untouched.
func Unmarshal(blob []byte) (*Snapshot, error) {
	if len(blob) < headerLen {
		return nil, ErrBadHeader.New("blob shorter than header (%d bytes)", len(blob))
	}
	if !bytes.Equal(blob[:len(magic)], magic[:]) {
		return nil, ErrBadHeader.New("magic mismatch: got % X", blob[:len(magic)])
	}

	version := blob[len(magic)]
	if version != formatVersion {
		return nil, ErrVersionMismatch.New("unsupported snapshot version %d", version)
	}

	wantChecksum := binary.BigEndian.Uint64(blob[len(magic)+1 : headerLen])
	body := blob[headerLen:]
	if got := hashutil.FastHashBytes(body); got != wantChecksum {
		return nil, ErrBadChecksum.New("checksum mismatch: got %x want %x", got, wantChecksum)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(body, &snap); err != nil {
		return nil, ErrFlatBufferParsingError.Wrap(err, "decode snapshot body")
	}
	if err := validate(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func validate(snap *Snapshot) error {
	for _, r := range snap.Resources {
		switch r.KindTag {
		case "mime", "template", "fn":
		default:
			return ErrValidationError.New("resource %q has unknown kind tag %q", r.Name, r.KindTag)
		}
	}
	return nil
}
