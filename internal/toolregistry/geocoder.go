package toolregistry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/axontrace/replayer/internal/observability"
)

// Geocoder resolves a free-form place name to (lat, lon) via an ordered
// provider chain, first success wins. Concurrent lookups for the same
// query are coalesced with singleflight, avoiding redundant calls when a
// burst of replay requests grounds the same city.
type Geocoder struct {
	Registry *Registry // optional env-configured geocode tool, tried first
	Client   *http.Client
	Logger   *slog.Logger

	// Metrics is optional; when set, each provider attempt in the chain
	// records its outcome against it.
	Metrics *observability.Metrics

	group singleflight.Group
}

func (g *Geocoder) recordLookup(provider string, ok bool) {
	if g.Metrics == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	g.Metrics.GeocoderLookupCounter.WithLabelValues(provider, status).Inc()
}

// NewGeocoder builds a Geocoder. registry may be nil if no custom geocode
// tool is configured; the chain then starts at Open-Meteo.
func NewGeocoder(registry *Registry, logger *slog.Logger) *Geocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Geocoder{
		Registry: registry,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Logger:   logger,
	}
}

// Geocode resolves q to (lat, lon). An empty or whitespace-only q returns
// (0, 0, false) immediately without making any calls.
func (g *Geocoder) Geocode(ctx context.Context, q string) (float64, float64, bool) {
	if strings.TrimSpace(q) == "" {
		return 0, 0, false
	}

	type coords struct {
		lat, lon float64
		ok       bool
	}

	v, _, _ := g.group.Do(q, func() (any, error) {
		if g.Registry != nil {
			lat, lon, ok := g.geocodeViaConfiguredTool(ctx, q)
			g.recordLookup("configured", ok)
			if ok {
				return coords{lat, lon, true}, nil
			}
		}
		lat, lon, ok := g.geocodeOpenMeteo(ctx, q)
		g.recordLookup("open-meteo", ok)
		if ok {
			return coords{lat, lon, true}, nil
		}
		lat, lon, ok = g.geocodeNominatim(ctx, q)
		g.recordLookup("nominatim", ok)
		if ok {
			return coords{lat, lon, true}, nil
		}
		return coords{}, nil
	})

	c := v.(coords)
	return c.lat, c.lon, c.ok
}

// geocodeViaConfiguredTool dispatches to the "geocode" provider entry, if
// configured, and inspects several response shapes in documented order.
func (g *Geocoder) geocodeViaConfiguredTool(ctx context.Context, q string) (float64, float64, bool) {
	cfg, ok := g.Registry.Providers["geocode"]
	if !ok || cfg.URL == "" {
		return 0, 0, false
	}
	resolved, ok := g.Registry.resolveURL(ctx, cfg.URL, normalizeInput(q))
	if !ok {
		return 0, 0, false
	}
	body, ok := g.Registry.get(ctx, resolved)
	if !ok {
		g.Logger.Debug("geocoder: configured tool failed", slog.String("q", q))
		return 0, 0, false
	}
	return parseGeocodeShapes(body)
}

// parseGeocodeShapes inspects, in order: results.0.latitude/longitude,
// GeoJSON features.0.geometry.coordinates ([lon,lat]), and top-level
// lat|latitude / lon|lng|longitude.
func parseGeocodeShapes(body []byte) (float64, float64, bool) {
	if lat := gjson.GetBytes(body, "results.0.latitude"); lat.Exists() {
		if lon := gjson.GetBytes(body, "results.0.longitude"); lon.Exists() {
			return lat.Float(), lon.Float(), true
		}
	}
	if coords := gjson.GetBytes(body, "features.0.geometry.coordinates"); coords.IsArray() {
		arr := coords.Array()
		if len(arr) >= 2 {
			return arr[1].Float(), arr[0].Float(), true
		}
	}
	latResult := firstExisting(body, "lat", "latitude")
	lonResult := firstExisting(body, "lon", "lng", "longitude")
	if latResult.Exists() && lonResult.Exists() {
		return latResult.Float(), lonResult.Float(), true
	}
	return 0, 0, false
}

func firstExisting(body []byte, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := gjson.GetBytes(body, k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func (g *Geocoder) geocodeOpenMeteo(ctx context.Context, q string) (float64, float64, bool) {
	u := "https://geocoding-api.open-meteo.com/v1/search?name=" + url.QueryEscape(q) + "&count=1"
	body, ok := g.fetch(ctx, u)
	if !ok {
		return 0, 0, false
	}
	lat := gjson.GetBytes(body, "results.0.latitude")
	lon := gjson.GetBytes(body, "results.0.longitude")
	if !lat.Exists() || !lon.Exists() {
		g.Logger.Debug("geocoder: open-meteo had no results", slog.String("q", q))
		return 0, 0, false
	}
	return lat.Float(), lon.Float(), true
}

func (g *Geocoder) geocodeNominatim(ctx context.Context, q string) (float64, float64, bool) {
	u := "https://nominatim.openstreetmap.org/search?q=" + url.QueryEscape(q) + "&format=json&limit=1&addressdetails=0"
	body, ok := g.fetch(ctx, u)
	if !ok {
		return 0, 0, false
	}

	var rows []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		g.Logger.Debug("geocoder: nominatim had no results", slog.String("q", q))
		return 0, 0, false
	}

	lat, err1 := strconv.ParseFloat(rows[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(rows[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func (g *Geocoder) fetch(ctx context.Context, resolvedURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolvedURL, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		g.Logger.Debug("geocoder: request failed", slog.String("error", err.Error()))
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}
	return buf, true
}
