// Package cost implements CostAttributor: per-node cost/token/latency
// computation over an executed set under the "LLM-only accrues" policy.
// See spec.md §4.6.
package cost

import (
	"math"
	"regexp"
	"strings"

	"github.com/axontrace/replayer/internal/models"
)

var llmModelPattern = regexp.MustCompile(`(?i)gpt|claude|mistral|llama|gemini`)

// IsLLMAccruing reports whether n accrues LLM cost: type == llm, or its
// model string matches the known LLM family pattern. A calculator tool
// call never accrues, regardless of type or model.
func IsLLMAccruing(n models.Node) bool {
	if strings.EqualFold(n.Data.ToolName, "calculator") {
		return false
	}
	return n.Type == models.NodeTypeLLM || llmModelPattern.MatchString(n.Model)
}

// Price is a per-1k-token rate pair, in USD.
type Price struct {
	Input  float64
	Output float64
}

// Pricing resolves a per-1k-token rate for model by substring match,
// case-insensitively. The "3.5" family has its own lower rate; every
// other recognized family currently resolves to the same rate as the
// default. The table is kept explicit so a future rate change for one
// family doesn't silently apply to all.
func Pricing(model string) Price {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "3.5"):
		return Price{Input: 0.0005, Output: 0.0015}
	case strings.Contains(m, "4o-mini"):
		return Price{Input: 0.005, Output: 0.015}
	case strings.Contains(m, "4o"):
		return Price{Input: 0.005, Output: 0.015}
	case strings.Contains(m, "4-turbo"), m == "gpt-4", strings.Contains(m, "gpt-4"):
		return Price{Input: 0.005, Output: 0.015}
	default:
		return Price{Input: 0.005, Output: 0.015}
	}
}

// estimateTokens approximates token count from character length, the
// same ⌈len/4⌉ heuristic the replay path uses for streamed text.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4.0))
}

// Attribute computes per-node cost/tokens/latency for every node in
// nodes, applying overrides field-wise where present, and returns the
// per-node results plus their sums.
func Attribute(nodes []models.Node, overrides map[string]models.CostOverride) (map[string]models.NodeCost, float64, int64) {
	results := make(map[string]models.NodeCost, len(nodes))
	var totalCost float64
	var totalLatency int64

	for _, n := range nodes {
		nc := attributeOne(n)
		if ov, ok := overrides[n.NodeID]; ok {
			nc = applyOverride(nc, ov)
		}
		results[n.NodeID] = nc
		totalCost += nc.Cost
		totalLatency += nc.Latency
	}

	return results, round6(totalCost), totalLatency
}

func attributeOne(n models.Node) models.NodeCost {
	latency := n.Latency()

	if !IsLLMAccruing(n) {
		return models.NodeCost{NodeID: n.NodeID, Cost: 0, Tokens: models.Tokens{}, Latency: latency}
	}

	input := n.Tokens.Input
	if input == 0 && n.Data.PromptTokens != nil {
		input = *n.Data.PromptTokens
	}
	output := n.Tokens.Output
	if output == 0 && n.Data.CompletionTokens != nil {
		output = *n.Data.CompletionTokens
	}

	if input+output == 0 {
		prompt := strings.Join(n.Data.Prompts, "")
		input = estimateTokens(prompt) + estimateTokens(n.Data.ToolInput)
		output = estimateTokens(n.Data.Response) + estimateTokens(n.Data.ToolOutput)
	}

	price := Pricing(n.Model)
	costVal := (float64(input)/1000.0)*price.Input + (float64(output)/1000.0)*price.Output

	return models.NodeCost{
		NodeID:  n.NodeID,
		Cost:    round6(costVal),
		Tokens:  models.Tokens{Input: input, Output: output, Total: input + output},
		Latency: latency,
	}
}

func applyOverride(nc models.NodeCost, ov models.CostOverride) models.NodeCost {
	if ov.Cost != nil {
		nc.Cost = round6(*ov.Cost)
	}
	if ov.Tokens != nil {
		t := *ov.Tokens
		if t.Total == 0 {
			t.Total = t.Input + t.Output
		}
		nc.Tokens = t
	}
	return nc
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
