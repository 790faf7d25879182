package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyFile = `[
  {"type":"message","channel":"Chat","username":"山川","content":"olá","isPreFormatted":false,"timestamp":"2024-03-01T12:00:00.000Z"},
  {"type":"file","channel":"Chat","username":"山川","content":"data:image/png;base64,AAAA","fileType":"image/png","timestamp":"2024-03-01T12:01:00.000Z"},
  {"type":"message","channel":"Dev","username":"bob","content":"<pre>x</pre>","isPreFormatted":true,"timestamp":"not a date"}
]`

func TestImportJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	n, err := ImportJSON(ctx, s, strings.NewReader(legacyFile))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	chat, err := s.History(ctx, "Chat")
	require.NoError(t, err)
	require.Len(t, chat, 2)
	assert.Equal(t, protocol.KindText, chat[0].Kind)
	assert.Equal(t, "olá", chat[0].Content)
	assert.True(t, chat[0].CreatedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, protocol.KindFile, chat[1].Kind)
	assert.Equal(t, "image/png", chat[1].FileKind)

	dev, err := s.History(ctx, "Dev")
	require.NoError(t, err)
	require.Len(t, dev, 1)
	assert.True(t, dev[0].Preformatted)
	assert.False(t, dev[0].CreatedAt.IsZero())
}

func TestImportJSONRejectsMalformedFile(t *testing.T) {
	s := NewMemory()
	_, err := ImportJSON(context.Background(), s, strings.NewReader(`{"not":"an array"}`))
	require.Error(t, err)

	history, err := s.History(context.Background(), "Chat")
	require.NoError(t, err)
	assert.Empty(t, history)
}
