package protocol

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG header, enough for sniffing
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestParseDataURI(t *testing.T) {
	uri, err := ParseDataURI("data:Image/PNG;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "image/png", uri.MediaType)
	assert.True(t, uri.Base64)
	assert.Equal(t, 3, uri.Size())

	_, err = ParseDataURI("blob:http://localhost/1234")
	assert.ErrorIs(t, err, ErrNotDataURI)

	_, err = ParseDataURI("data:image/png;base64")
	assert.ErrorIs(t, err, ErrNotDataURI)
}

func TestInspectFile(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	t.Run("declared type wins", func(t *testing.T) {
		kind, size := InspectFile("data:image/jpeg;base64,"+encoded, "video/mp4")
		assert.Equal(t, "video/mp4", kind)
		assert.GreaterOrEqual(t, size, len(pngHeader))
	})

	t.Run("header type used when not declared", func(t *testing.T) {
		kind, _ := InspectFile("data:audio/ogg;base64,"+encoded, "")
		assert.Equal(t, "audio/ogg", kind)
	})

	t.Run("sniffed when header is empty", func(t *testing.T) {
		kind, _ := InspectFile("data:;base64,"+encoded, "")
		assert.Equal(t, "image/png", kind)
	})

	t.Run("plain data uri", func(t *testing.T) {
		kind, size := InspectFile("data:,hello%20world", "")
		assert.True(t, strings.HasPrefix(kind, "text/plain"))
		assert.Equal(t, len("hello world"), size)
	})

	t.Run("opaque reference", func(t *testing.T) {
		kind, size := InspectFile("blob:abc", "image/gif")
		assert.Equal(t, "image/gif", kind)
		assert.Equal(t, len("blob:abc"), size)
	})
}
