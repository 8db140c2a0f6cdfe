// Package replay implements ReplayCoordinator: the per-request state
// machine that re-issues an LLM call, grounds its transcript, and runs
// graph/selection/attribution over the executed set. See spec.md §4.7.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/axontrace/replayer/internal/cost"
	"github.com/axontrace/replayer/internal/graph"
	"github.com/axontrace/replayer/internal/grounding"
	"github.com/axontrace/replayer/internal/hub"
	"github.com/axontrace/replayer/internal/llm"
	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/observability"
	"github.com/axontrace/replayer/internal/selector"
	"github.com/axontrace/replayer/internal/store"
)

const defaultNoPromptText = "No prompt provided."

// Coordinator orchestrates one replay request end to end: load trace,
// build the canonical graph, select the executed set, optionally issue a
// model call, ground the transcript, attribute cost, and broadcast the
// result.
type Coordinator struct {
	Stores       store.StoreSet
	Hub          *hub.Hub
	LLM          *llm.Registry
	Grounder     *grounding.Grounder
	DefaultModel string
	Mode         selector.Mode
	Logger       *slog.Logger

	// Metrics and Tracer are optional; when set, Attribute/RunLLM record
	// against them.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// New builds a Coordinator. logger may be nil.
func New(stores store.StoreSet, h *hub.Hub, llmRegistry *llm.Registry, grounder *grounding.Grounder, defaultModel string, mode selector.Mode, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &Coordinator{
		Stores:       stores,
		Hub:          h,
		LLM:          llmRegistry,
		Grounder:     grounder,
		DefaultModel: defaultModel,
		Mode:         mode,
		Logger:       logger,
	}
}

// Attribute runs attribution-only replay (spec.md ReplayRequest): no LLM
// call, just selection + cost over the existing trace.
func (c *Coordinator) Attribute(ctx context.Context, req models.ReplayRequest) models.ReplayResult {
	start := time.Now()
	if c.Tracer != nil {
		var span trace.Span
		ctx, span = c.Tracer.Start(ctx, "replay.attribute", trace.SpanKindInternal)
		defer span.End()
	}
	result := c.attribute(ctx, req)
	c.recordReplay("attribution", result.Success, start)
	return result
}

func (c *Coordinator) attribute(ctx context.Context, req models.ReplayRequest) models.ReplayResult {
	nodes, edges, err := c.loadTrace(ctx, req.TraceID)
	if err != nil {
		return c.fail(req.RequestID, req.TraceID, req.NodeID, err)
	}

	g := graph.Build(nodes, edges)
	start := req.NodeID
	if start == "" {
		start = graph.EarliestNodeID(nodes)
	}

	sel := selector.Select(g, start, c.Mode)
	nodeCosts, totalCost, totalLatency := cost.Attribute(filterNodes(nodes, sel.Executed), nil)

	result := models.ReplayResult{
		RequestID:     req.RequestID,
		Success:       true,
		ExecutedNodes: sel.Executed,
		SkippedNodes:  sel.Skipped,
		NodeCosts:     nodeCosts,
		TotalCost:     totalCost,
		TotalLatency:  totalLatency,
		SideEffects:   []string{},
		StartTraceID:  req.TraceID,
		StartNodeID:   start,
	}

	if req.TraceID != "" && c.Hub != nil {
		c.Hub.Broadcast(hub.RoomName(req.TraceID), "replay_result", result)
	}
	return result
}

// RunLLM runs the full ReplayCoordinator state machine for a
// ReplayLLMRequest: normalize, call the model (streaming or blocking),
// ground the transcript, attribute cost with the replay call's own usage
// merged in as an override, and emit the terminal events.
func (c *Coordinator) RunLLM(ctx context.Context, req models.ReplayLLMRequest, requester hub.Conn) models.ReplayResult {
	start := time.Now()
	if c.Tracer != nil {
		var span trace.Span
		ctx, span = c.Tracer.Start(ctx, "replay.run_llm", trace.SpanKindInternal)
		span.SetAttributes(observability.ReplayAttributes(req.TraceID, req.RequestID, req.ResolveStartNodeID())...)
		defer span.End()
	}
	result := c.runLLM(ctx, req, requester)
	c.recordReplay("llm", result.Success, start)
	return result
}

func (c *Coordinator) runLLM(ctx context.Context, req models.ReplayLLMRequest, requester hub.Conn) models.ReplayResult {
	model, messages, temperature, maxTokens := normalize(req, c.DefaultModel)
	startNodeID := req.ResolveStartNodeID()

	provider := c.LLM.Resolve(model)
	if provider == nil {
		err := fmt.Errorf("no LLM provider available for model %q", model)
		c.emitLLMFailure(req.RequestID, requester, err)
		return c.fail(req.RequestID, req.TraceID, startNodeID, err)
	}

	llmCallStart := time.Now()
	finalText, inputTokens, outputTokens, err := c.callModel(ctx, provider, llm.Request{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, req.RequestID, req.Stream, requester)
	llmLatencyMs := time.Since(llmCallStart).Milliseconds()
	if err != nil {
		c.emitLLMFailure(req.RequestID, requester, err)
		return c.fail(req.RequestID, req.TraceID, startNodeID, err)
	}

	groundedText := finalText
	if c.Grounder != nil {
		groundedText = c.Grounder.Ground(ctx, finalText)
	}

	c.emitLLMSuccess(req.RequestID, req.TraceID, requester, groundedText)

	price := cost.Pricing(model)
	replayLLMCost := round6((float64(inputTokens)/1000.0)*price.Input + (float64(outputTokens)/1000.0)*price.Output)

	var overrides map[string]models.CostOverride
	if startNodeID != "" {
		tokens := models.Tokens{Input: inputTokens, Output: outputTokens, Total: inputTokens + outputTokens}
		overrides = map[string]models.CostOverride{
			startNodeID: {Cost: &replayLLMCost, Tokens: &tokens},
		}
	}

	nodes, edges, err := c.loadTrace(ctx, req.TraceID)
	if err != nil {
		return c.fail(req.RequestID, req.TraceID, startNodeID, err)
	}

	g := graph.Build(nodes, edges)
	start := startNodeID
	if start == "" {
		start = graph.EarliestNodeID(nodes)
	}
	sel := selector.Select(g, start, c.Mode)
	nodeCosts, summaryCost, summaryLatency := cost.Attribute(filterNodes(nodes, sel.Executed), overrides)

	llmTokens := models.Tokens{Input: inputTokens, Output: outputTokens, Total: inputTokens + outputTokens}
	result := models.ReplayResult{
		RequestID:     req.RequestID,
		Success:       true,
		ExecutedNodes: sel.Executed,
		SkippedNodes:  sel.Skipped,
		NodeCosts:     nodeCosts,
		TotalCost:     summaryCost,
		TotalLatency:  summaryLatency + llmLatencyMs,
		ReplayLLMCost: &replayLLMCost,
		LLMTokens:     &llmTokens,
		SideEffects:   []string{},
		StartTraceID:  req.TraceID,
		StartNodeID:   start,
	}

	if req.TraceID != "" && c.Hub != nil {
		c.Hub.Broadcast(hub.RoomName(req.TraceID), "replay_result", result)
	}
	if requester != nil {
		c.Hub.Send(requester, "replay_result", result)
	}
	return result
}

// normalize applies the documented defaults for an absent model,
// messages, temperature, and max tokens.
func normalize(req models.ReplayLLMRequest, defaultModel string) (string, []models.Message, float64, int) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	messages := req.Messages
	if len(messages) == 0 {
		messages = []models.Message{{Role: "user", Content: defaultNoPromptText}}
	}
	temperature := 0.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := 150
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	return model, messages, temperature, maxTokens
}

// callModel issues the completion and accumulates either streamed deltas
// (publishing replay_llm_delta to requester as they arrive) or a single
// blocking response. Token counts come from provider usage when present,
// else the ⌈len/4⌉ estimator over the joined input/output text.
func (c *Coordinator) callModel(ctx context.Context, provider llm.Provider, req llm.Request, requestID string, stream bool, requester hub.Conn) (string, int, int, error) {
	callStart := time.Now()
	text, inputTokens, outputTokens, err := c.callModelOnce(ctx, provider, req, requestID, stream, requester)
	if c.Metrics != nil {
		c.Metrics.LLMRequestDuration.WithLabelValues(provider.Name(), req.Model).Observe(time.Since(callStart).Seconds())
		if err == nil {
			c.Metrics.LLMTokensUsed.WithLabelValues(provider.Name(), req.Model, "input").Add(float64(inputTokens))
			c.Metrics.LLMTokensUsed.WithLabelValues(provider.Name(), req.Model, "output").Add(float64(outputTokens))
		}
	}
	return text, inputTokens, outputTokens, err
}

func (c *Coordinator) callModelOnce(ctx context.Context, provider llm.Provider, req llm.Request, requestID string, stream bool, requester hub.Conn) (string, int, int, error) {
	chunks, err := provider.Complete(ctx, req)
	if err != nil {
		return "", 0, 0, err
	}

	var text strings.Builder
	var inputTokens, outputTokens int

	for chunk := range chunks {
		if chunk.Err != nil {
			return "", 0, 0, chunk.Err
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if stream && requester != nil {
				c.Hub.Send(requester, "replay_llm_delta", models.ReplayLLMDelta{RequestID: requestID, Delta: chunk.Text})
			}
		}
		if chunk.Done {
			inputTokens, outputTokens = chunk.InputTokens, chunk.OutputTokens
		}
	}

	if inputTokens == 0 && outputTokens == 0 {
		inputTokens = estimateTokens(joinMessages(req.Messages))
		outputTokens = estimateTokens(text.String())
	}

	return text.String(), inputTokens, outputTokens, nil
}

func joinMessages(messages []models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
	}
	return b.String()
}

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4.0))
}

func (c *Coordinator) loadTrace(ctx context.Context, traceID string) ([]models.Node, []models.Edge, error) {
	nodes, err := c.Stores.Nodes.ListByTrace(ctx, traceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load nodes: %w", err)
	}
	edges, err := c.Stores.Edges.ListByTrace(ctx, traceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load edges: %w", err)
	}
	return nodes, edges, nil
}

// filterNodes returns the subset of nodes whose NodeID appears in ids,
// so cost attribution runs only over the executed set, never the full
// trace.
func filterNodes(nodes []models.Node, ids []string) []models.Node {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.Node, 0, len(ids))
	for _, n := range nodes {
		if want[n.NodeID] {
			out = append(out, n)
		}
	}
	return out
}

func (c *Coordinator) fail(requestID, traceID, startNodeID string, err error) models.ReplayResult {
	result := models.ReplayResult{
		RequestID:    requestID,
		Success:      false,
		NodeCosts:    map[string]models.NodeCost{},
		SideEffects:  []string{},
		StartTraceID: traceID,
		StartNodeID:  startNodeID,
		Error:        err.Error(),
	}
	if traceID != "" && c.Hub != nil {
		c.Hub.Broadcast(hub.RoomName(traceID), "replay_result", result)
	}
	c.Logger.Warn("replay: request failed", slog.String("requestId", requestID), slog.String("error", err.Error()))
	return result
}

func (c *Coordinator) emitLLMFailure(requestID string, requester hub.Conn, err error) {
	if requester == nil || c.Hub == nil {
		return
	}
	c.Hub.Send(requester, "replay_llm_response", models.ReplayLLMResponse{
		RequestID: requestID,
		OK:        false,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

func (c *Coordinator) emitLLMSuccess(requestID, traceID string, requester hub.Conn, text string) {
	now := time.Now()
	if requester != nil && c.Hub != nil {
		c.Hub.Send(requester, "replay_llm_response", models.ReplayLLMResponse{
			RequestID: requestID,
			OK:        true,
			Text:      text,
			Timestamp: now,
		})
	}
	if traceID != "" && c.Hub != nil {
		c.Hub.Broadcast(hub.RoomName(traceID), "replay_llm_result", models.ReplayLLMResult{
			TraceID:   traceID,
			RequestID: requestID,
			Text:      text,
			Timestamp: now,
		})
	}
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

func (c *Coordinator) recordReplay(kind string, success bool, start time.Time) {
	if c.Metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.Metrics.ReplayCounter.WithLabelValues(kind, status).Inc()
	c.Metrics.ReplayDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
