// Package notifications provides the realtime presence and broadcast hub.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"

	"ripple/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const maxTotalConns = 10000

// Hub tracks which users are online and relays post events between their
// connections. Presence maps each user to their most recent connection;
// reconnecting supersedes the prior entry without closing it. All state is
// process-local.
type Hub struct {
	mu       sync.RWMutex
	presence map[uint]string    // userID -> connection ID of the live session
	conns    map[string]*Client // connection ID -> client, every open socket
	shutdown bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		presence: make(map[uint]string),
		conns:    make(map[string]*Client),
	}
}

// Register attaches a connection for userID, supersedes any prior presence
// entry for that user, and announces the updated online set to everyone.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	client := &Client{
		Hub:    h,
		ConnID: uuid.NewString(),
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 256),
	}

	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return nil, errors.New("hub is shut down")
	}
	if len(h.conns) >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}
	h.conns[client.ConnID] = client
	h.presence[userID] = client.ConnID
	h.mu.Unlock()

	observability.ActiveWebSockets.Inc()
	h.broadcastOnlineUsers()
	return client, nil
}

// Unregister drops a connection. The presence entry is removed only when it
// still points at this connection, so a stale close arriving after the same
// user reconnected never evicts the live session.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, open := h.conns[client.ConnID]
	if !open {
		h.mu.Unlock()
		return
	}
	delete(h.conns, client.ConnID)
	if h.presence[client.UserID] == client.ConnID {
		delete(h.presence, client.UserID)
	}
	h.mu.Unlock()

	observability.ActiveWebSockets.Dec()
	h.broadcastOnlineUsers()
}

// OnlineUsers returns a sorted snapshot of the online user IDs.
func (h *Hub) OnlineUsers() []uint {
	h.mu.RLock()
	ids := make([]uint, 0, len(h.presence))
	for id := range h.presence {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *Hub) broadcastOnlineUsers() {
	data, err := json.Marshal(h.OnlineUsers())
	if err != nil {
		return
	}
	msg, err := json.Marshal(Envelope{Event: EventGetOnlineUsers, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.TrySend(msg)
	}
}

// HandleMessage validates one inbound message and relays post events to every
// connection except the sender. Anything malformed is dropped without a reply
// to the sender; drops are only visible in the metrics.
func (h *Hub) HandleMessage(sender *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		observability.BroadcastDroppedTotal.WithLabelValues("malformed").Inc()
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case EventSetup:
		var setup setupData
		if err := json.Unmarshal(env.Data, &setup); err != nil || setup.UserID != sender.UserID {
			observability.BroadcastDroppedTotal.WithLabelValues("identity_mismatch").Inc()
		}
		// Presence was already recorded at upgrade time; setup is accepted
		// for protocol compatibility only.

	case EventNewPost, EventUpdatePost:
		var probe postProbe
		if err := json.Unmarshal(env.Data, &probe); err != nil || !hasID(probe.ID) {
			observability.BroadcastDroppedTotal.WithLabelValues("missing_post_id").Inc()
			return
		}
		h.relay(sender, env.Event, raw)

	case EventDeletePost:
		var del deletePostData
		if err := json.Unmarshal(env.Data, &del); err != nil || !hasID(del.PostID) {
			observability.BroadcastDroppedTotal.WithLabelValues("missing_post_id").Inc()
			return
		}
		h.relay(sender, env.Event, raw)

	default:
		observability.BroadcastDroppedTotal.WithLabelValues("unknown_event").Inc()
	}
}

// relay fans the raw message out to every open connection except the sender.
func (h *Hub) relay(sender *Client, event string, raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.conns {
		if id == sender.ConnID {
			continue
		}
		c.TrySend(raw)
	}
	observability.BroadcastRelayedTotal.WithLabelValues(event).Inc()
}

// Shutdown closes every connection and clears all state.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	h.shutdown = true
	conns := h.conns
	h.conns = make(map[string]*Client)
	h.presence = make(map[uint]string)
	h.mu.Unlock()

	for _, client := range conns {
		if client.Conn == nil {
			continue
		}
		if err := client.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
			log.Printf("failed to write close message for user %d: %v", client.UserID, err)
		}
		if err := client.Conn.Close(); err != nil {
			log.Printf("failed to close websocket for user %d: %v", client.UserID, err)
		}
	}
	return nil
}
