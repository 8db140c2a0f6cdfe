package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger_DefaultsAndFormats(t *testing.T) {
	cases := []LogConfig{
		{},
		{Level: "debug", Format: "text"},
		{Level: "info", Format: "json"},
	}
	for _, cfg := range cases {
		var buf bytes.Buffer
		cfg.Output = &buf
		logger := NewLogger(cfg)
		if logger == nil {
			t.Fatalf("NewLogger(%+v) returned nil", cfg)
		}
		logger.Info("hello")
		if buf.Len() == 0 {
			t.Fatalf("expected output for config %+v", cfg)
		}
	}
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), TraceIDKey, "t1")
	ctx = context.WithValue(ctx, RequestIDKey, "req1")

	logger.WithContext(ctx).Info("replay started")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	group, ok := record["context"].(map[string]any)
	if !ok {
		t.Fatalf("expected a context group, got %+v", record)
	}
	if group["trace_id"] != "t1" || group["request_id"] != "req1" {
		t.Fatalf("unexpected context group: %+v", group)
	}
}

func TestRedact_StripsBearerTokenFromMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "text", Output: &buf})

	logger.Warn("tool call failed: bearer: sk-ant-REDACTED")

	out := buf.String()
	if strings.Contains(out, "sk-ant-REDACTED") {
		t.Fatalf("expected secret to be redacted, got %q", out)
	}
}
