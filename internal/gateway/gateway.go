// Package gateway wires the subscription protocol over a websocket
// connection per trace watcher: watch_trace/unwatch_trace/replay_request/
// replay_llm_request in, trace_data/replay_llm_delta/replay_llm_response/
// replay_result/replay_llm_result out. See spec.md §6.1.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/axontrace/replayer/internal/hub"
	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/replay"
	"github.com/axontrace/replayer/internal/store"
)

const (
	maxPayloadBytes = 1 << 20
	sendBufferSize  = 256
	pongWait        = 45 * time.Second
	writeWait       = 10 * time.Second
	pingInterval    = 30 * time.Second
)

// clientFrame is the inbound envelope: {type, payload}.
type clientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Server upgrades HTTP connections into trace-watching websocket sessions.
type Server struct {
	Hub         *hub.Hub
	Coordinator *replay.Coordinator
	Stores      store.StoreSet
	Logger      *slog.Logger
	Upgrader    websocket.Upgrader
}

// New builds a Server. logger may be nil.
func New(h *hub.Hub, coordinator *replay.Coordinator, stores store.StoreSet, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Hub:         h,
		Coordinator: coordinator,
		Stores:      stores,
		Logger:      logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the session until the socket
// closes, grounded on the teacher's per-connection read/write-loop split.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("gateway: upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sess := &session{
		server: s,
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[string]struct{}),
	}
	sess.run()
}

// session is one long-lived trace-watching connection: its own inbox,
// its own watch set, torn down on disconnect.
type session struct {
	server *Server
	conn   *websocket.Conn
	id     string
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	rooms  map[string]struct{}
}

// Send implements hub.Conn. It is non-blocking: if the session's outbox
// is full the event is dropped for this subscriber, per the delta
// backpressure rule in spec.md §5. Terminal replay_llm_response/
// replay_result frames are small and infrequent enough that this never
// materializes in practice, approximating the documented blocking
// semantics without a second send path.
func (sess *session) Send(event string, payload any) error {
	raw, err := hub.EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	select {
	case sess.send <- raw:
		return nil
	default:
		return nil
	}
}

func (sess *session) run() {
	defer sess.close()
	go sess.writeLoop()
	sess.readLoop()
}

func (sess *session) close() {
	sess.cancel()
	sess.server.Hub.UnwatchAll(sess)
	close(sess.send)
	_ = sess.conn.Close()
}

func (sess *session) readLoop() {
	sess.conn.SetReadLimit(maxPayloadBytes)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			sess.Send("error", map[string]string{"message": "invalid frame: " + err.Error()})
			continue
		}

		sess.dispatch(frame)
	}
}

func (sess *session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case msg, ok := <-sess.send:
			if !ok {
				return
			}
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (sess *session) dispatch(frame clientFrame) {
	switch frame.Type {
	case "watch_trace":
		sess.handleWatchTrace(frame.Payload)
	case "unwatch_trace":
		sess.handleUnwatchTrace(frame.Payload)
	case "replay_request":
		sess.handleReplayRequest(frame.Payload)
	case "replay_llm_request":
		sess.handleReplayLLMRequest(frame.Payload)
	default:
		sess.Send("error", map[string]string{"message": "unknown frame type: " + frame.Type})
	}
}

// watchTracePayload accepts either a bare traceId string or {traceId}.
type watchTracePayload struct {
	TraceID string `json:"traceId"`
}

func decodeTraceID(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asObject watchTracePayload
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return asObject.TraceID
	}
	return ""
}

func (sess *session) handleWatchTrace(raw json.RawMessage) {
	traceID := decodeTraceID(raw)
	if traceID == "" {
		sess.Send("error", map[string]string{"message": "watch_trace requires a traceId"})
		return
	}

	sess.server.Hub.Watch(traceID, sess)
	sess.rooms[traceID] = struct{}{}

	snapshot, err := sess.buildTraceData(sess.ctx, traceID)
	if err != nil {
		sess.Send("error", map[string]string{"message": "watch_trace: " + err.Error()})
		return
	}
	sess.Send("trace_data", snapshot)
}

func (sess *session) handleUnwatchTrace(raw json.RawMessage) {
	traceID := decodeTraceID(raw)
	if traceID == "" {
		return
	}
	sess.server.Hub.Unwatch(traceID, sess)
	delete(sess.rooms, traceID)
}

func (sess *session) handleReplayRequest(raw json.RawMessage) {
	var req models.ReplayRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.Send("error", map[string]string{"message": "replay_request: " + err.Error()})
		return
	}
	go sess.server.Coordinator.Attribute(sess.ctx, req)
}

func (sess *session) handleReplayLLMRequest(raw json.RawMessage) {
	var req models.ReplayLLMRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.Send("error", map[string]string{"message": "replay_llm_request: " + err.Error()})
		return
	}
	go sess.server.Coordinator.RunLLM(sess.ctx, req, sess)
}

// buildTraceData assembles the watch_trace snapshot: the trace plus its
// nodes/edges, an empty anomaly list, and coarse aggregate stats.
// Anomaly detection is explicitly out of scope (spec.md Non-goals), so
// anomalies is always empty and anomalyCount always zero.
func (sess *session) buildTraceData(ctx context.Context, traceID string) (models.TraceData, error) {
	t, err := sess.server.Stores.Traces.Get(ctx, traceID)
	if err != nil {
		return models.TraceData{}, err
	}
	nodes, err := sess.server.Stores.Nodes.ListByTrace(ctx, traceID)
	if err != nil {
		return models.TraceData{}, err
	}
	edges, err := sess.server.Stores.Edges.ListByTrace(ctx, traceID)
	if err != nil {
		return models.TraceData{}, err
	}

	stats := models.TraceStats{TotalNodes: len(nodes)}
	for _, n := range nodes {
		stats.TotalCost += n.Cost
		stats.TotalLatency += n.Latency()
		switch n.Type {
		case models.NodeTypeLLM, models.NodeTypeLLMStart, models.NodeTypeLLMEnd:
			stats.LLMCount++
		case models.NodeTypeTool, models.NodeTypeToolStart, models.NodeTypeToolEnd:
			stats.ToolCount++
		case models.NodeTypeChain, models.NodeTypeChainStart, models.NodeTypeChainEnd:
			stats.ChainCount++
		}
		if n.Status == models.NodeStatusError {
			stats.ErrorCount++
		}
	}

	return models.TraceData{
		Trace:     t,
		Nodes:     nodes,
		Edges:     edges,
		Anomalies: []string{},
		Stats:     stats,
	}, nil
}
