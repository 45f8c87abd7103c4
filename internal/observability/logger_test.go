package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		logMsg string
		level  string
		want   bool // whether we expect the message to appear
	}{
		{
			name:   "info level logs info",
			cfg:    Config{Level: "info", Format: "json"},
			logMsg: "test message",
			level:  "info",
			want:   true,
		},
		{
			name:   "info level does not log debug",
			cfg:    Config{Level: "info", Format: "json"},
			logMsg: "test message",
			level:  "debug",
			want:   false,
		},
		{
			name:   "debug level logs debug",
			cfg:    Config{Level: "debug", Format: "json"},
			logMsg: "test message",
			level:  "debug",
			want:   true,
		},
		{
			name:   "error level logs error",
			cfg:    Config{Level: "error", Format: "json"},
			logMsg: "test message",
			level:  "error",
			want:   true,
		},
		{
			name:   "error level does not log warn",
			cfg:    Config{Level: "error", Format: "json"},
			logMsg: "test message",
			level:  "warn",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.cfg.Output = buf
			logger := NewLogger(tt.cfg)

			switch tt.level {
			case "debug":
				logger.Debug(tt.logMsg)
			case "info":
				logger.Info(tt.logMsg)
			case "warn":
				logger.Warn(tt.logMsg)
			case "error":
				logger.Error(tt.logMsg)
			}

			got := strings.Contains(buf.String(), tt.logMsg)
			if got != tt.want {
				t.Errorf("message present = %v, want %v (output: %s)", got, tt.want, buf.String())
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	logger.Info("structured message", "key", "value", "count", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (output: %s)", err, buf.String())
	}
	if entry["msg"] != "structured message" {
		t.Errorf("msg = %v, want 'structured message'", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want 'value'", entry["key"])
	}
	if entry["count"] != float64(42) {
		t.Errorf("count = %v, want 42", entry["count"])
	}
}

func TestTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "text", Output: buf})

	logger.Info("plain message", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "plain message") {
		t.Errorf("expected message in output: %s", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected key=value in output: %s", out)
	}
}

func TestLoggerWith(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	child := logger.With("component", "resolver")
	child.Info("resolved")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if entry["component"] != "resolver" {
		t.Errorf("component = %v, want 'resolver'", entry["component"])
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("expected empty request id from fresh context, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("request id = %q, want 'req-123'", got)
	}
}

func TestLoggerIncludesRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	ctx := WithRequestID(context.Background(), "req-456")
	logger.InfoContext(ctx, "handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if entry["request_id"] != "req-456" {
		t.Errorf("request_id = %v, want 'req-456'", entry["request_id"])
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHGATE_LOG_LEVEL", "debug")
	t.Setenv("AUTHGATE_LOG_FORMAT", "text")

	cfg := ConfigFromEnv()
	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want 'debug'", cfg.Level)
	}
	if cfg.Format != "text" {
		t.Errorf("Format = %q, want 'text'", cfg.Format)
	}
}
