// Package hub implements SubscriptionHub: room-based pub/sub for trace
// watchers. See spec.md §4.8.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/axontrace/replayer/internal/observability"
)

// Conn is anything the Hub can push a JSON event to. The gateway package
// implements this over a gorilla/websocket connection; tests use an
// in-memory fake.
type Conn interface {
	Send(event string, payload any) error
}

// Hub holds trace:<id> rooms and per-connection membership. Safe for
// concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // room -> member set

	// Metrics is optional; when set, Watch/Unwatch/UnwatchAll adjust
	// ActiveWatchers and Broadcast counts against HubBroadcastCounter.
	Metrics *observability.Metrics
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

// RoomName builds the canonical trace room name.
func RoomName(traceID string) string {
	return "trace:" + traceID
}

// Watch joins conn to trace:<traceID>'s room. Idempotent.
func (h *Hub) Watch(traceID string, conn Conn) {
	room := RoomName(traceID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[Conn]struct{})
	}
	_, already := h.rooms[room][conn]
	h.rooms[room][conn] = struct{}{}
	if !already && h.Metrics != nil {
		h.Metrics.ActiveWatchers.Inc()
	}
}

// Unwatch removes conn from trace:<traceID>'s room.
func (h *Hub) Unwatch(traceID string, conn Conn) {
	room := RoomName(traceID)
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if members == nil {
		return
	}
	if _, ok := members[conn]; ok {
		delete(members, conn)
		if h.Metrics != nil {
			h.Metrics.ActiveWatchers.Dec()
		}
	}
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// UnwatchAll removes conn from every room it belongs to, used when a
// connection closes.
func (h *Hub) UnwatchAll(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		if _, ok := members[conn]; ok {
			delete(members, conn)
			if h.Metrics != nil {
				h.Metrics.ActiveWatchers.Dec()
			}
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

// Broadcast delivers event/payload to every current member of room, in
// arrival order per connection. No message is buffered for members that
// join later.
func (h *Hub) Broadcast(room, event string, payload any) {
	h.mu.RLock()
	members := make([]Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		_ = c.Send(event, payload)
	}
	if h.Metrics != nil {
		h.Metrics.HubBroadcastCounter.WithLabelValues(event).Add(float64(len(members)))
	}
}

// Send delivers event/payload to a single connection.
func (h *Hub) Send(conn Conn, event string, payload any) {
	_ = conn.Send(event, payload)
}

// Frame is the JSON envelope every event/payload pair is wrapped in
// before going over the wire.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeFrame marshals event/payload into a Frame's wire bytes.
func EncodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Payload: raw})
}
