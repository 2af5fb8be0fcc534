package serialize

import (
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	snap := &Snapshot{
		Lines: []string{"-advertisement-icon.", "||ads.example.com^$script"},
		Resources: []ResourceRecord{
			{Name: "noop.js", KindTag: "mime", MimeType: "application/javascript", Content: "ZmFrZQ=="},
		},
		TagsEnabled: []string{"brian"},
		Permissions: uint8(3),
	}

	blob, err := Marshal(snap)
	require.NoError(t, err)

	got, err := Unmarshal(blob)
	require.NoError(t, err)
	assert.Equal(t, snap.Lines, got.Lines)
	assert.Equal(t, snap.Resources, got.Resources)
	assert.Equal(t, snap.TagsEnabled, got.TagsEnabled)
	assert.Equal(t, snap.Permissions, got.Permissions)
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	blob, err := Marshal(&Snapshot{Lines: []string{"adv"}})
	require.NoError(t, err)
	blob[0] ^= 0xFF

	_, err = Unmarshal(blob)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrBadHeader))
}

func TestUnmarshalRejectsShortBlob(t *testing.T) {
	_, err := Unmarshal([]byte{0xD1, 0xD9})
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrBadHeader))
}

func TestUnmarshalRejectsVersionMismatch(t *testing.T) {
	blob, err := Marshal(&Snapshot{Lines: []string{"adv"}})
	require.NoError(t, err)
	blob[4] = 99

	_, err = Unmarshal(blob)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrVersionMismatch))
}

func TestUnmarshalRejectsCorruptedBody(t *testing.T) {
	blob, err := Marshal(&Snapshot{Lines: []string{"adv"}})
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF

	_, err = Unmarshal(blob)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrBadChecksum))
}

func TestUnmarshalRejectsUnknownResourceKind(t *testing.T) {
	snap := &Snapshot{
		Lines:     []string{"adv"},
		Resources: []ResourceRecord{{Name: "bad", KindTag: "unknown", Content: "x"}},
	}
	blob, err := Marshal(snap)
	require.NoError(t, err)

	_, err = Unmarshal(blob)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrValidationError))
}
