package toolregistry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axontrace/replayer/internal/models"
)

func TestNormalizeInput_StripsAndCollapses(t *testing.T) {
	got := normalizeInput("  New   York!!  ,  USA?  ")
	want := "New York , USA"
	if got != want {
		t.Fatalf("normalizeInput = %q, want %q", got, want)
	}
}

func TestRunExternalTool_UnknownProviderReturnsFalse(t *testing.T) {
	r := New(nil, nil, nil)
	_, ok := r.RunExternalTool(context.Background(), "nonexistent", "q")
	if ok {
		t.Fatalf("expected unknown provider to fail")
	}
}

func TestRunExternalTool_ExtractsByResultPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"value":"hello"}]}`))
	}))
	defer srv.Close()

	providers := map[string]models.ToolConfig{
		"echo": {URL: srv.URL + "?q={q}", ResultPath: "results.0.value"},
	}
	r := New(providers, nil, nil)

	got, ok := r.RunExternalTool(context.Background(), "echo", "hello world")
	if !ok {
		t.Fatalf("expected success")
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestRunExternalTool_NonJSONBodyWithoutResultPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw text"))
	}))
	defer srv.Close()

	providers := map[string]models.ToolConfig{
		"raw": {URL: srv.URL + "?q={q}"},
	}
	r := New(providers, nil, nil)

	got, ok := r.RunExternalTool(context.Background(), "raw", "anything")
	if !ok || got != "raw text" {
		t.Fatalf("got (%q, %v), want (%q, true)", got, ok, "raw text")
	}
}

func TestRunExternalTool_NonSuccessStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	providers := map[string]models.ToolConfig{
		"broken": {URL: srv.URL},
	}
	r := New(providers, nil, nil)

	_, ok := r.RunExternalTool(context.Background(), "broken", "x")
	if ok {
		t.Fatalf("expected non-2xx to fail")
	}
}

func TestRunExternalTool_UnresolvedLatLonWithoutGeocoderFails(t *testing.T) {
	providers := map[string]models.ToolConfig{
		"weather_api": {URL: "https://api.open-meteo.com/v1/forecast?lat={lat}&lon={lon}"},
	}
	r := New(providers, nil, nil)

	_, ok := r.RunExternalTool(context.Background(), "weather_api", "Paris")
	if ok {
		t.Fatalf("expected failure without a geocoder to resolve {lat}/{lon}")
	}
}

func TestNormalizeWeather_OpenMeteoCelsiusConvertsToFahrenheit(t *testing.T) {
	got, ok := normalizeWeather("https://api.open-meteo.com/v1/forecast?lat=1&lon=2", 20.0)
	if !ok {
		t.Fatalf("expected success")
	}
	if got != "68°F" {
		t.Fatalf("got %q, want 68°F", got)
	}
}

func TestNormalizeWeather_OpenMeteoFahrenheitUnitPassesThrough(t *testing.T) {
	got, ok := normalizeWeather("https://api.open-meteo.com/v1/forecast?lat=1&lon=2&temperature_unit=fahrenheit", 68.4)
	if !ok {
		t.Fatalf("expected success")
	}
	if got != "68°F" {
		t.Fatalf("got %q, want 68°F", got)
	}
}

func TestNormalizeWeather_UnknownSourceAppendsSuffix(t *testing.T) {
	got, ok := normalizeWeather("https://wttr.in/Paris", "68")
	if !ok || got != "68°F" {
		t.Fatalf("got (%q, %v), want (68°F, true)", got, ok)
	}
}

func TestNormalizeWeather_UnknownSourceAlreadyFormattedPassesThrough(t *testing.T) {
	got, ok := normalizeWeather("https://wttr.in/Paris", "68°F")
	if !ok || got != "68°F" {
		t.Fatalf("got (%q, %v), want (68°F, true)", got, ok)
	}
}
