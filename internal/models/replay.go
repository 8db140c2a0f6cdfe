package models

import "time"

// Message is one chat turn sent to the model during replay.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplayRequest is the attribution-only replay request: run the executed-set
// selection and cost attribution for an existing node without issuing a new
// LLM call.
type ReplayRequest struct {
	RequestID string `json:"requestId,omitempty"`
	NodeID    string `json:"nodeId"`
	TraceID   string `json:"traceId"`
}

// ReplayLLMRequest re-issues the LLM call at a chosen start node, with an
// optional streaming response and overrides on model/temperature/messages.
// StartNodeID may arrive under any of four client-chosen keys;
// ResolveStartNodeID resolves them in the order the protocol documents.
type ReplayLLMRequest struct {
	RequestID        string    `json:"requestId,omitempty"`
	TraceID          string    `json:"traceId,omitempty"`
	Model            string    `json:"model,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Temperature      *float64  `json:"temperature,omitempty"`
	MaxTokens        *int      `json:"maxTokens,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
	StartNodeID      string    `json:"startNodeId,omitempty"`
	NodeID           string    `json:"nodeId,omitempty"`
	SelectedNodeID   string    `json:"selectedNodeId,omitempty"`
	Start            string    `json:"start,omitempty"`
}

// ResolveStartNodeID picks the first non-empty identifier in the documented
// precedence order: startNodeId, nodeId, selectedNodeId, start.
func (r ReplayLLMRequest) ResolveStartNodeID() string {
	for _, v := range []string{r.StartNodeID, r.NodeID, r.SelectedNodeID, r.Start} {
		if v != "" {
			return v
		}
	}
	return ""
}

// NodeCost is the per-node attribution result.
type NodeCost struct {
	NodeID  string  `json:"nodeId"`
	Cost    float64 `json:"cost"`
	Tokens  Tokens  `json:"tokens"`
	Latency int64   `json:"latencyMs"`
}

// CostOverride is a field-wise override applied to a node's computed
// attribution; present fields dominate the computed values.
type CostOverride struct {
	Cost   *float64 `json:"cost,omitempty"`
	Tokens *Tokens  `json:"tokens,omitempty"`
	Prompt *string  `json:"prompt,omitempty"`
	Model  *string  `json:"model,omitempty"`
}

// ReplayResult is the terminal event delivered for one requestId.
type ReplayResult struct {
	RequestID      string              `json:"requestId"`
	Success        bool                `json:"success"`
	ExecutedNodes  []string            `json:"executedNodes"`
	SkippedNodes   []string            `json:"skippedNodes"`
	NodeCosts      map[string]NodeCost `json:"nodeCosts"`
	TotalCost      float64             `json:"totalCost"`
	TotalLatency   int64               `json:"totalLatency"`
	ReplayLLMCost  *float64            `json:"replayLlmCost,omitempty"`
	LLMTokens      *Tokens             `json:"llmTokens,omitempty"`
	SideEffects    []string            `json:"sideEffects"`
	NewTraceID     *string             `json:"newTraceId"`
	StartTraceID   string              `json:"startTraceId"`
	StartNodeID    string              `json:"startNodeId"`
	Error          string              `json:"error,omitempty"`
}

// ReplayLLMDelta is a single streamed token/chunk delivered to the requester.
type ReplayLLMDelta struct {
	RequestID string `json:"requestId"`
	Delta     string `json:"delta"`
}

// ReplayLLMResponse is the non-streaming (or stream-terminal) model response.
type ReplayLLMResponse struct {
	RequestID string    `json:"requestId"`
	OK        bool      `json:"ok"`
	Text      string    `json:"text,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplayLLMResult is broadcast to trace:<id> watchers once a replay's model
// call has produced grounded text.
type ReplayLLMResult struct {
	TraceID   string    `json:"traceId"`
	RequestID string    `json:"requestId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceStats is the coarse aggregate bundled into a trace_data snapshot.
type TraceStats struct {
	TotalNodes    int     `json:"totalNodes"`
	TotalCost     float64 `json:"totalCost"`
	TotalLatency  int64   `json:"totalLatency"`
	LLMCount      int     `json:"llmCount"`
	ToolCount     int     `json:"toolCount"`
	ChainCount    int     `json:"chainCount"`
	ErrorCount    int     `json:"errorCount"`
	AnomalyCount  int     `json:"anomalyCount"`
}

// TraceData is the snapshot pushed to a subscriber immediately after
// watch_trace.
type TraceData struct {
	Trace     *Trace     `json:"trace"`
	Nodes     []Node     `json:"nodes"`
	Edges     []Edge     `json:"edges"`
	Anomalies []string   `json:"anomalies"`
	Stats     TraceStats `json:"stats"`
}
