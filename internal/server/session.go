package server

import (
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
)

// dispatch applies one client frame. It runs on the hub goroutine only.
func (h *Hub) dispatch(in Inbound) {
	client := in.Client
	if client == nil || client.State() != StateActive {
		h.metrics.rejected(reasonInactiveSession)
		return
	}

	switch in.Frame.Type {
	case protocol.TypeSetUsername:
		h.rename(client, in.Frame.Username)
	case protocol.TypeMessage, protocol.TypeFile:
		h.post(client, in.Frame)
	case protocol.TypeGetHistory:
		h.sendHistory(client, in.Frame.Channel)
	}
}

func (h *Hub) rename(client *Client, name string) {
	clean, ok := h.registry.Rename(client, name)
	if !ok {
		h.log.Debug("ignoring blank display name", "addr", client.addr)
		return
	}
	h.log.Info("display name changed", "addr", client.addr, "name", clean)
	h.BroadcastRoster()
}

// post stores and broadcasts a message frame, or runs it as a control
// command when its content starts with one.
func (h *Hub) post(client *Client, f protocol.Frame) {
	if protocol.IsControl(f.Content) {
		h.clear(client, f)
		return
	}

	sess, ok := h.registry.Lookup(client)
	if !ok {
		h.metrics.rejected(reasonInactiveSession)
		return
	}

	msg := protocol.Message{
		Kind:         protocol.Kind(f.Type),
		Channel:      f.Channel,
		Author:       sess.DisplayName,
		Content:      f.Content,
		Preformatted: f.IsPreFormatted,
		CreatedAt:    time.Now().UTC(),
	}

	if msg.IsFile() {
		kind, size := protocol.InspectFile(f.Content, f.FileType)
		if int64(size) > h.cfg.MaxFileSize {
			h.log.Warn("dropping oversized file",
				"addr", client.addr,
				"channel", f.Channel,
				"size", size,
				"limit", h.cfg.MaxFileSize)
			h.metrics.rejected(reasonFileTooLarge)
			return
		}
		msg.FileKind = kind
	}

	if err := h.store.Append(h.ctx, &msg); err != nil {
		h.log.Error("append message", "error", err, "channel", msg.Channel, "session", sess.ID)
		h.metrics.storeFailed("append")
		return
	}
	h.metrics.messageStored(msg.Kind)
	h.BroadcastMessage(msg)
}

func (h *Hub) clear(client *Client, f protocol.Frame) {
	n, ok := protocol.ParseClear(f.Content)
	if !ok {
		h.log.Debug("dropping malformed control command", "addr", client.addr, "content", f.Content)
		h.metrics.rejected(reasonMalformedCommand)
		return
	}

	removed, err := h.store.DeleteLastN(h.ctx, f.Channel, n)
	if err != nil {
		h.log.Error("clear messages", "error", err, "channel", f.Channel, "count", n)
		h.metrics.storeFailed("delete")
		return
	}
	h.metrics.cleared(removed)
	h.log.Info("cleared messages", "addr", client.addr, "channel", f.Channel, "requested", n, "removed", removed)
	h.BroadcastClear(f.Channel, removed)
}

// sendHistory replies to the requester only.
func (h *Hub) sendHistory(client *Client, channel string) {
	messages, err := h.store.History(h.ctx, channel)
	if err != nil {
		h.log.Error("load history", "error", err, "channel", channel)
		h.metrics.storeFailed("history")
		return
	}

	payload, err := protocol.EncodeHistory(messages)
	if err != nil {
		h.log.Error("encode history", "error", err, "channel", channel)
		return
	}
	h.unicast(client, payload)
}
