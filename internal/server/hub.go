package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/Tyrowin/gochat/internal/store"
)

// Hub owns the live connection set, the session registry and the message
// store. Registration, removal and every inbound frame are processed by the
// single Run goroutine, so store mutations and the fan-out that follows them
// are never interleaved.
type Hub struct {
	cfg        Config
	store      store.Store
	registry   *Registry
	metrics    *Metrics
	log        *slog.Logger
	clients    map[*Client]bool
	inbound    chan Inbound
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub backed by st. metrics may be nil.
func NewHub(cfg Config, st store.Store, metrics *Metrics, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg.Sanitize(),
		store:      st,
		registry:   NewRegistry(),
		metrics:    metrics,
		log:        log,
		clients:    make(map[*Client]bool),
		inbound:    make(chan Inbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetInboundChan returns the channel carrying decoded client frames to the hub.
func (h *Hub) GetInboundChan() chan<- Inbound {
	return h.inbound
}

// Registry returns the hub's session registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Join hands client to the hub. It returns false if the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// leave queues client for removal without blocking once the hub has stopped.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// submit queues a frame for the hub and reports whether it was accepted.
func (h *Hub) submit(in Inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// ClientCount returns the number of connections receiving broadcasts.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case in := <-h.inbound:
			h.dispatch(in)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	sess := h.registry.Register(client)
	client.setState(StateActive)
	h.metrics.setConnected(clientCount)
	h.log.Info("client registered",
		"addr", client.addr,
		"session", sess.ID,
		"name", sess.DisplayName,
		"clients", clientCount)

	if client.conn != nil {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			client.writePump()
		}()
		go func() {
			defer h.wg.Done()
			client.readPump()
		}()
	}

	h.BroadcastRoster()
}

func (h *Hub) handleUnregister(client *Client) {
	if client == nil {
		return
	}
	client.setState(StateClosed)

	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closed = true
		close(client.send)
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.metrics.setConnected(clientCount)

	if h.registry.Unregister(client) {
		h.log.Info("client unregistered", "addr", client.addr, "clients", clientCount)
		h.BroadcastRoster()
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients.
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// fanOut enqueues payload for every client and removes those that could not
// take it. It reports whether any client was removed.
func (h *Hub) fanOut(payload []byte) bool {
	var failed []*Client
	for _, client := range h.getClientSnapshot() {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	return h.removeFailedClients(failed)
}

// unicast enqueues payload for one client, removing it on failure.
func (h *Hub) unicast(client *Client, payload []byte) {
	if !h.safeSend(client, payload) && h.removeFailedClients([]*Client{client}) {
		h.BroadcastRoster()
	}
}

// removeFailedClients drops clients whose send buffer is full or closed,
// closes their buffers and forgets their sessions.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) bool {
	if len(clientsToRemove) == 0 {
		return false
	}

	removed := 0
	h.mutex.Lock()
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; !exists {
			continue
		}
		delete(h.clients, client)
		client.closed = true
		close(client.send)
		client.setState(StateClosed)
		removed++
		h.log.Warn("client removed due to full send buffer", "addr", client.addr)
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	for _, client := range clientsToRemove {
		h.registry.Unregister(client)
		h.metrics.droppedSend()
	}
	h.metrics.setConnected(clientCount)
	return removed > 0
}

// BroadcastMessage sends msg to every connection. Receivers filter by channel.
func (h *Hub) BroadcastMessage(msg protocol.Message) {
	payload, err := msg.Encode()
	if err != nil {
		h.log.Error("encode message", "error", err, "channel", msg.Channel)
		return
	}
	h.log.Debug("broadcasting message", "channel", msg.Channel, "id", msg.ID, "clients", h.ClientCount())
	if h.fanOut(payload) {
		h.BroadcastRoster()
	}
}

// BroadcastRoster sends the current list of display names to every connection.
func (h *Hub) BroadcastRoster() {
	// Every pass that drops a client changes the roster; the client set
	// shrinks each time, so this terminates.
	for {
		payload, err := protocol.EncodeUsers(h.registry.Snapshot())
		if err != nil {
			h.log.Error("encode roster", "error", err)
			return
		}
		if !h.fanOut(payload) {
			return
		}
	}
}

// BroadcastClear tells every connection to retract the last count messages
// of channel.
func (h *Hub) BroadcastClear(channel string, count int) {
	payload, err := protocol.EncodeClear(channel, count)
	if err != nil {
		h.log.Error("encode clear notice", "error", err, "channel", channel)
		return
	}
	if h.fanOut(payload) {
		h.BroadcastRoster()
	}
}

// shutdownClients closes every send buffer and connection so that both
// pumps of each client exit.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		delete(h.clients, client)
		client.closed = true
		close(client.send)
		clients = append(clients, client)
	}
	h.mutex.Unlock()
	h.metrics.setConnected(0)

	for _, client := range clients {
		client.setState(StateClosed)
		h.registry.Unregister(client)
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Debug("close client connection", "addr", client.addr, "error", err)
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops Run, closes every connection and waits up to timeout for
// the client pumps to exit.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
