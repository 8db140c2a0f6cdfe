// Package toolregistry resolves named external tools to URL templates and
// executes them, grounding replay transcripts in live (or recorded) data.
// See spec.md §4.1.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/axontrace/replayer/internal/models"
	"github.com/axontrace/replayer/internal/observability"
)

// userAgent is sent on every external tool call.
const userAgent = "axon-trace-replayer/1.0"

var normalizeStrip = regexp.MustCompile(`[^\p{L}\p{N}\s,.\-]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// Registry resolves tool names to configs and executes GET-based external
// tools, grounded on the teacher's HTTP-call shape in routing/embedder.go.
type Registry struct {
	Providers map[string]models.ToolConfig
	Client    *http.Client
	Geocoder  *Geocoder
	Logger    *slog.Logger

	// Metrics is optional; when set, RunExternalTool records its outcome
	// and duration against it.
	Metrics *observability.Metrics
}

// New builds a Registry over the given provider configs. geocoder may be
// nil; RunExternalTool then fails any {lat}/{lon} template without {q},
// and a template that also has {q} proceeds with {lat}/{lon} stripped.
func New(providers map[string]models.ToolConfig, geocoder *Geocoder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Providers: providers,
		Client:    &http.Client{Timeout: 10 * time.Second},
		Geocoder:  geocoder,
		Logger:    logger,
	}
}

// RunExternalTool looks up name in Providers, resolves its URL template
// against rawInput, issues the GET, and extracts/normalizes the result.
// All failure modes return ("", false): the caller chooses whether to try
// a fallback tool.
func (r *Registry) RunExternalTool(ctx context.Context, name, rawInput string) (string, bool) {
	start := time.Now()
	result, ok := r.runExternalTool(ctx, name, rawInput)
	if r.Metrics != nil {
		status := "success"
		if !ok {
			status = "error"
		}
		r.Metrics.ToolExecutionCounter.WithLabelValues(name, status).Inc()
		r.Metrics.ToolExecutionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return result, ok
}

func (r *Registry) runExternalTool(ctx context.Context, name, rawInput string) (string, bool) {
	cfg, ok := r.Providers[name]
	if !ok || cfg.URL == "" {
		return "", false
	}

	q := normalizeInput(rawInput)

	resolved, ok := r.resolveURL(ctx, cfg.URL, q)
	if !ok {
		return "", false
	}

	body, ok := r.get(ctx, resolved)
	if !ok {
		return "", false
	}

	var value any = string(body)
	if cfg.ResultPath != "" {
		value, ok = getByPath(body, cfg.ResultPath)
		if !ok {
			return "", false
		}
	}

	if name == "weather_api" || name == "weather_api_fallback" {
		return normalizeWeather(resolved, value)
	}

	return stringifyValue(value), true
}

// normalizeInput trims rawInput, collapses interior whitespace, and strips
// any character that is not a letter, digit, whitespace, comma, period, or
// hyphen.
func normalizeInput(rawInput string) string {
	s := strings.TrimSpace(rawInput)
	s = normalizeStrip.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// resolveURL substitutes {q}, {lat}, {lon} placeholders in template.
func (r *Registry) resolveURL(ctx context.Context, template, q string) (string, bool) {
	hadQ := strings.Contains(template, "{q}")
	hadLatLon := strings.Contains(template, "{lat}") || strings.Contains(template, "{lon}")

	resolved := strings.ReplaceAll(template, "{q}", url.QueryEscape(q))

	if hadLatLon {
		if r.Geocoder == nil {
			if hadQ {
				resolved = stripLatLon(resolved)
			} else {
				return "", false
			}
		} else {
			lat, lon, ok := r.Geocoder.Geocode(ctx, q)
			if ok {
				resolved = strings.ReplaceAll(resolved, "{lat}", formatCoord(lat))
				resolved = strings.ReplaceAll(resolved, "{lon}", formatCoord(lon))
			} else if hadQ {
				resolved = stripLatLon(resolved)
			} else {
				return "", false
			}
		}
	}

	if strings.Contains(resolved, "{q}") || strings.Contains(resolved, "{lat}") || strings.Contains(resolved, "{lon}") {
		return "", false
	}

	return resolved, true
}

func stripLatLon(s string) string {
	s = strings.ReplaceAll(s, "{lat}", "")
	s = strings.ReplaceAll(s, "{lon}", "")
	return s
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func (r *Registry) get(ctx context.Context, resolvedURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolvedURL, nil)
	if err != nil {
		r.Logger.Debug("toolregistry: build request failed", slog.String("error", err.Error()))
		return nil, false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		r.Logger.Debug("toolregistry: request failed", slog.String("error", err.Error()))
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.Logger.Debug("toolregistry: non-2xx response", slog.Int("status", resp.StatusCode))
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.Logger.Debug("toolregistry: read body failed", slog.String("error", err.Error()))
		return nil, false
	}
	return body, true
}

// getByPath splits path on '.' and walks body (a JSON document) through
// map keys and numeric array indices. It returns (nil, false) on any
// missing link.
func getByPath(body []byte, path string) (any, bool) {
	result := gjson.GetBytes(body, gjsonPath(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// gjsonPath returns a dotted path with numeric segments (e.g.
// "results.0.latitude") unchanged: gjson's own dotted syntax already
// accepts numeric array indices.
func gjsonPath(path string) string {
	return path
}

func normalizeWeather(resolvedURL string, value any) (string, bool) {
	u, err := url.Parse(resolvedURL)
	isOpenMeteo := err == nil && strings.Contains(strings.ToLower(u.Host), "open-meteo.com")

	if isOpenMeteo {
		num, isNumeric := toFloat(value)
		if !isNumeric {
			return "", false
		}
		fahrenheitUnit := err == nil && strings.Contains(strings.ToLower(u.RawQuery), "temperature_unit=fahrenheit")
		if fahrenheitUnit {
			return fmt.Sprintf("%d°F", roundToInt(num)), true
		}
		f := num*9.0/5.0 + 32.0
		return fmt.Sprintf("%d°F", roundToInt(f)), true
	}

	return NormalizeFahrenheit(stringifyValue(value))
}

// NormalizeFahrenheit applies the wttr-style numeric->"<n>°F" formatting
// shared by weather_api's non-open-meteo providers and weather_api_fallback:
// a bare number is rounded and suffixed, a value already ending in "°F"
// passes through, and an empty value reports failure.
func NormalizeFahrenheit(value string) (string, bool) {
	if num, ok := toFloat(value); ok {
		return fmt.Sprintf("%d°F", roundToInt(num)), true
	}
	if strings.HasSuffix(value, "°F") {
		return value, true
	}
	if value == "" {
		return "", false
	}
	return value + "°F", true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func roundToInt(f float64) int64 {
	return int64(math.Round(f))
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
