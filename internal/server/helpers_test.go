package server

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/Tyrowin/gochat/internal/store"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const frameTimeout = 2 * time.Second

// testFrame is the union of every server→client frame.
type testFrame struct {
	Type           string             `json:"type"`
	ID             string             `json:"id"`
	Channel        string             `json:"channel"`
	Username       string             `json:"username"`
	Content        string             `json:"content"`
	FileType       string             `json:"fileType"`
	IsPreFormatted bool               `json:"isPreFormatted"`
	Timestamp      time.Time          `json:"timestamp"`
	Users          []string           `json:"users"`
	Messages       []protocol.Message `json:"messages"`
	NumMessages    int                `json:"numMessages"`
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"http://localhost:8080"}
	return cfg
}

// startHub runs a hub over an in-memory store and stops it when the test ends.
func startHub(t *testing.T, cfg Config) (*Hub, store.Store) {
	t.Helper()
	st := store.NewMemory()
	return startHubWithStore(t, cfg, st), st
}

func startHubWithStore(t *testing.T, cfg Config, st store.Store) *Hub {
	t.Helper()
	h := NewHub(cfg, st, NewMetrics(prometheus.NewRegistry()), testLogger())
	go h.Run()
	t.Cleanup(func() {
		_ = h.Shutdown(time.Second)
	})
	return h
}

// join registers a network-less client and consumes the roster frame its
// arrival produces.
func join(t *testing.T, h *Hub, addr string) *Client {
	t.Helper()
	c := NewClient(nil, h, addr)
	require.True(t, h.Join(c))
	until(t, c, protocol.TypeUsers)
	return c
}

func submit(t *testing.T, h *Hub, c *Client, f protocol.Frame) {
	t.Helper()
	require.True(t, h.submit(Inbound{Client: c, Frame: f}))
}

func post(t *testing.T, h *Hub, c *Client, channel, content string) {
	t.Helper()
	submit(t, h, c, protocol.Frame{Type: protocol.TypeMessage, Channel: channel, Content: content})
}

func next(t *testing.T, c *Client) testFrame {
	t.Helper()
	select {
	case raw, ok := <-c.GetSendChan():
		require.True(t, ok, "send channel of %s closed", c.addr)
		var f testFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(frameTimeout):
		require.FailNow(t, "timed out waiting for frame", "client %s", c.addr)
		return testFrame{}
	}
}

// until reads frames up to and including the first of type typ and returns
// them all.
func until(t *testing.T, c *Client, typ string) []testFrame {
	t.Helper()
	var frames []testFrame
	for {
		f := next(t, c)
		frames = append(frames, f)
		if f.Type == typ {
			return frames
		}
	}
}

// barrier waits until the hub has processed everything c submitted so far and
// returns the frames c received meanwhile, excluding the history reply.
func barrier(t *testing.T, h *Hub, c *Client) []testFrame {
	t.Helper()
	submit(t, h, c, protocol.Frame{Type: protocol.TypeGetHistory, Channel: "__sync__"})
	frames := until(t, c, protocol.TypeHistory)
	return frames[:len(frames)-1]
}

func ofType(frames []testFrame, typ string) []testFrame {
	var out []testFrame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}
