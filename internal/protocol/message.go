package protocol

import (
	"encoding/json"
	"time"
)

// Kind distinguishes text messages from file messages. Its value doubles as
// the frame type used on the wire.
type Kind string

const (
	KindText Kind = TypeMessage
	KindFile Kind = TypeFile
)

// Message is a chat message as stored and as broadcast. The JSON form is the
// server→client "message"/"file" frame.
type Message struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"type"`
	Channel      string    `json:"channel"`
	Author       string    `json:"username"`
	Content      string    `json:"content"`
	FileKind     string    `json:"fileType,omitempty"`
	Preformatted bool      `json:"isPreFormatted"`
	CreatedAt    time.Time `json:"timestamp"`
}

// IsFile reports whether the message carries a file payload.
func (m Message) IsFile() bool {
	return m.Kind == KindFile
}

// Encode returns the frame broadcast for this message.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
