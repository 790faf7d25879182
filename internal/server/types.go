package server

import (
	"strings"

	"github.com/Tyrowin/gochat/internal/protocol"
)

// Inbound is a decoded client frame queued for the hub, together with the
// client that sent it.
type Inbound struct {
	Client *Client
	Frame  protocol.Frame
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
