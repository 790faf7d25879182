package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
)

// legacyMessage is one entry of the messages.json file written by the
// previous relay, which rewrote the whole array on every change.
type legacyMessage struct {
	Type           string `json:"type"`
	Channel        string `json:"channel"`
	Username       string `json:"username"`
	Content        string `json:"content"`
	FileType       string `json:"fileType"`
	IsPreFormatted bool   `json:"isPreFormatted"`
	Timestamp      string `json:"timestamp"`
}

// ImportJSON appends every entry of a legacy messages.json array to s, in
// file order, and returns how many were imported. Timestamps that are not
// RFC 3339 are replaced by the import time.
func ImportJSON(ctx context.Context, s Store, r io.Reader) (int, error) {
	var legacy []legacyMessage
	if err := json.NewDecoder(r).Decode(&legacy); err != nil {
		return 0, fmt.Errorf("decode legacy messages: %w", err)
	}

	for i, old := range legacy {
		msg := protocol.Message{
			Kind:         protocol.KindText,
			Channel:      old.Channel,
			Author:       old.Username,
			Content:      old.Content,
			Preformatted: old.IsPreFormatted,
		}
		if old.Type == protocol.TypeFile {
			msg.Kind = protocol.KindFile
			msg.FileKind = old.FileType
		}
		if at, err := time.Parse(time.RFC3339Nano, old.Timestamp); err == nil {
			msg.CreatedAt = at.UTC()
		}

		if err := s.Append(ctx, &msg); err != nil {
			return i, fmt.Errorf("import message %d: %w", i, err)
		}
	}
	return len(legacy), nil
}
