package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerRedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{config: DefaultConfig()}
	l.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key, nil) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		},
	}))

	l.Info("control connection authenticated", "token", "s3cr3t", "client", "127.0.0.1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["token"] != "[REDACTED]" {
		t.Fatalf("expected token to be redacted, got %v", entry["token"])
	}
	if entry["client"] != "127.0.0.1" {
		t.Fatalf("expected client to survive unredacted, got %v", entry["client"])
	}
}

func TestLoggerSetLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	levelVar := &slog.LevelVar{}
	levelVar.Set(LevelInfo)
	l := &Logger{
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: levelVar})),
		config: DefaultConfig(),
		level:  levelVar,
	}

	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got %q", buf.String())
	}

	l.SetLevel(LevelDebug)
	l.Debug("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected debug line after SetLevel, got %q", buf.String())
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-42")
	if got := RequestIDFromContext(ctx); got != "req-42" {
		t.Fatalf("got %q want req-42", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
	}
	for s, want := range cases {
		got, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseLevel("nonsense"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
