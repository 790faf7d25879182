package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Frame types. The first four are sent by clients, the rest by the server
// (besides "message" and "file" which travel both ways).
const (
	TypeSetUsername   = "setUsername"
	TypeMessage       = "message"
	TypeFile          = "file"
	TypeGetHistory    = "getHistory"
	TypeHistory       = "history"
	TypeUsers         = "users"
	TypeClearMessages = "clearMessages"
)

// ErrInvalidFrame is returned by DecodeFrame for payloads that are not a
// well-formed client frame.
var ErrInvalidFrame = errors.New("invalid frame")

var validate = validator.New()

// Frame is any client→server frame. Fields not used by a frame type are left
// empty. Username and Timestamp on message frames are accepted but ignored:
// the relay stamps both itself.
type Frame struct {
	Type           string          `json:"type" validate:"required,oneof=setUsername message file getHistory"`
	Username       string          `json:"username,omitempty"`
	Channel        string          `json:"channel,omitempty"`
	Content        string          `json:"content,omitempty"`
	FileType       string          `json:"fileType,omitempty"`
	IsPreFormatted bool            `json:"isPreFormatted,omitempty"`
	Timestamp      json.RawMessage `json:"timestamp,omitempty"`
}

// DecodeFrame parses and validates a raw client frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := validate.Struct(f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return f, nil
}

// HistoryFrame is the unicast reply to getHistory.
type HistoryFrame struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

// UsersFrame carries the roster.
type UsersFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// ClearFrame tells clients to retract the trailing NumMessages of Channel.
type ClearFrame struct {
	Type        string `json:"type"`
	Channel     string `json:"channel"`
	NumMessages int    `json:"numMessages"`
}

// EncodeHistory builds a history frame. A nil slice is sent as an empty array.
func EncodeHistory(messages []Message) ([]byte, error) {
	if messages == nil {
		messages = []Message{}
	}
	return json.Marshal(HistoryFrame{Type: TypeHistory, Messages: messages})
}

// EncodeUsers builds a roster frame.
func EncodeUsers(users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	return json.Marshal(UsersFrame{Type: TypeUsers, Users: users})
}

// EncodeClear builds a clearMessages frame.
func EncodeClear(channel string, count int) ([]byte, error) {
	return json.Marshal(ClearFrame{Type: TypeClearMessages, Channel: channel, NumMessages: count})
}
