// Package grounding implements TranscriptGrounder: it scans replayed model
// text for Action/Observation blocks and weather-style phrases, invoking
// tools to ground the final transcript. See spec.md §4.3.
package grounding

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/axontrace/replayer/internal/toolregistry"
)

// actionBlockPattern matches an Action:/Action Input: block, optionally
// followed by an existing Observation: line which is discarded and
// replaced.
var actionBlockPattern = regexp.MustCompile(
	`(?m)Action:[ \t]*([A-Za-z0-9_\-]+)[ \t]*\n+Action Input:[ \t]*([^\n]*)(?:\n+Observation:[^\n]*)?`,
)

// weatherPhrasePattern matches "(current )?weather in <city> is ..." and
// its "unknown"/"not available"/"tbd" variants. City names may contain
// unicode letters.
var weatherPhrasePattern = regexp.MustCompile(
	`(?i)(current )?weather in ([\p{L} ]+?) is (?:\.\.\.|unknown|not available|tbd)`,
)

// Grounder runs the two-pass transcript grounding scan.
type Grounder struct {
	Registry *toolregistry.Registry
}

// New builds a Grounder over registry.
func New(registry *toolregistry.Registry) *Grounder {
	return &Grounder{Registry: registry}
}

// Ground runs Pass 1 (Action/Observation) then Pass 2 (weather phrase
// patching) over text and returns the rewritten transcript.
func (g *Grounder) Ground(ctx context.Context, text string) string {
	text = g.groundActionBlocks(ctx, text)
	text = g.groundWeatherPhrases(ctx, text)
	return text
}

func (g *Grounder) groundActionBlocks(ctx context.Context, text string) string {
	return actionBlockPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := actionBlockPattern.FindStringSubmatch(match)
		name, input := sub[1], strings.TrimSpace(sub[2])

		result, executed := g.runTool(ctx, name, input)
		if !executed {
			return fmt.Sprintf("Action: %s\nAction Input: %s\nObservation: (tool %q not executed during replay — result unavailable)\n", name, input, name)
		}
		return fmt.Sprintf("Action: %s\nAction Input: %s\nObservation: %s\n", name, input, result)
	})
}

// runTool dispatches name to the calculator built-in or the ToolRegistry,
// applying the weather_api -> weather_api_fallback chain where applicable.
func (g *Grounder) runTool(ctx context.Context, name, input string) (string, bool) {
	if strings.EqualFold(name, "calculator") {
		v, err := evalCalculator(input)
		if err != nil {
			return "(invalid expression)", true
		}
		return fmt.Sprintf("The result of %s is %s.", input, formatResult(v)), true
	}

	if g.Registry == nil {
		return "", false
	}

	if strings.EqualFold(name, "weather_api") {
		return g.groundWeather(ctx, input)
	}

	return g.Registry.RunExternalTool(ctx, name, input)
}

// groundWeather tries weather_api then weather_api_fallback.
func (g *Grounder) groundWeather(ctx context.Context, q string) (string, bool) {
	if v, ok := g.Registry.RunExternalTool(ctx, "weather_api", q); ok {
		return v, true
	}
	return g.Registry.RunExternalTool(ctx, "weather_api_fallback", q)
}

func (g *Grounder) groundWeatherPhrases(ctx context.Context, text string) string {
	return weatherPhrasePattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := weatherPhrasePattern.FindStringSubmatch(match)
		prefix, city := sub[1], strings.TrimSpace(sub[2])

		value, ok := "", false
		if g.Registry != nil {
			value, ok = g.groundWeather(ctx, city)
		}

		tail := "(unavailable)"
		if ok {
			tail = value
		}
		return fmt.Sprintf("%sweather in %s is %s", prefix, city, tail)
	})
}
