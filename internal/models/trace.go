// Package models defines the domain types shared across the replay engine:
// traces, nodes, edges, and the wire payloads used by the subscription
// protocol.
package models

import "time"

// TraceStatus is the lifecycle state of a Trace.
type TraceStatus string

const (
	TraceStatusRunning  TraceStatus = "running"
	TraceStatusComplete TraceStatus = "complete"
	TraceStatusError    TraceStatus = "error"
)

// Trace is one agent invocation and the aggregate of its recorded events.
type Trace struct {
	TraceID     string      `json:"traceId"`
	ProjectName string      `json:"projectName"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	Status      TraceStatus `json:"status"`
	TotalCost   float64     `json:"totalCost"`
	TotalNodes  int         `json:"totalNodes"`
}

// NodeType enumerates the coarse and fine-grained node kinds the agent may
// emit. Coarse (llm, tool, chain, agent) and fine (llm_start/llm_end, ...)
// variants coexist in recorded traces.
type NodeType string

const (
	NodeTypeLLM        NodeType = "llm"
	NodeTypeTool       NodeType = "tool"
	NodeTypeChain      NodeType = "chain"
	NodeTypeAgent      NodeType = "agent"
	NodeTypeLLMStart   NodeType = "llm_start"
	NodeTypeLLMEnd     NodeType = "llm_end"
	NodeTypeToolStart  NodeType = "tool_start"
	NodeTypeToolEnd    NodeType = "tool_end"
	NodeTypeChainStart NodeType = "chain_start"
	NodeTypeChainEnd   NodeType = "chain_end"
)

// NodeStatus is the lifecycle state of a recorded node.
type NodeStatus string

const (
	NodeStatusPending  NodeStatus = "pending"
	NodeStatusRunning  NodeStatus = "running"
	NodeStatusComplete NodeStatus = "complete"
	NodeStatusError    NodeStatus = "error"
)

// Tokens is the token accounting bag for a node. Total is only meaningful
// once normalized: if Total > 0 it must equal Input + Output.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Normalize enforces the Total == Input + Output invariant whenever a
// nonzero total is present, per the Node invariants in the data model.
func (t Tokens) Normalize() Tokens {
	if t.Total > 0 {
		t.Total = t.Input + t.Output
	}
	return t
}

// NodeData is the polymorphic attribute bag a node carries. Known keys are
// represented as typed optional fields; anything else lives in Metadata
// rather than being accessed dynamically at call sites.
type NodeData struct {
	Prompts    []string               `json:"prompts,omitempty"`
	Response   string                 `json:"response,omitempty"`
	Reasoning  string                 `json:"reasoning,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	ToolInput  string                 `json:"toolInput,omitempty"`
	ToolOutput string                 `json:"toolOutput,omitempty"`
	ChainName  string                 `json:"chainName,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	// PromptTokens/CompletionTokens are the upstream synonyms some writers
	// use instead of Tokens.Input/Tokens.Output (spec.md §9, Open Question a).
	PromptTokens     *int `json:"-"`
	CompletionTokens *int `json:"-"`
}

// Node is one recorded step within a trace.
type Node struct {
	NodeID       string     `json:"nodeId"`
	RunID        string     `json:"runId"`
	TraceID      string     `json:"traceId"`
	Type         NodeType   `json:"type"`
	Status       NodeStatus `json:"status"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	LatencyMs    *int64     `json:"latencyMs,omitempty"`
	Model        string     `json:"model,omitempty"`
	Cost         float64    `json:"cost"`
	Tokens       Tokens     `json:"tokens"`
	Data         NodeData   `json:"data"`
	ParentRunID  string     `json:"parentRunId,omitempty"`
}

// Latency returns the node's recorded latency: the explicit LatencyMs if
// present, else the non-negative difference between EndTime and StartTime.
func (n Node) Latency() int64 {
	if n.LatencyMs != nil {
		return *n.LatencyMs
	}
	if n.EndTime == nil {
		return 0
	}
	d := n.EndTime.Sub(n.StartTime).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

// Edge is a raw, agent-emitted edge. Either side may be a NodeID or a
// RunID; the core resolves both spaces at graph-build time.
type Edge struct {
	TraceID string `json:"traceId"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// CanonicalEdge is the post-resolution form used by traversal: both sides
// are NodeIDs.
type CanonicalEdge struct {
	From string
	To   string
}

// ToolConfig describes one named external tool: its URL template (which may
// contain {q}, {lat}, {lon} placeholders) and an optional dotted result path.
type ToolConfig struct {
	URL        string `json:"url" yaml:"url"`
	ResultPath string `json:"result_path,omitempty" yaml:"result_path,omitempty"`
}
