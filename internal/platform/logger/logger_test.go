package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestInit_StdTextOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     EnvDev,
		Backend: BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})
	slog.Info("hello world", "room", "r1")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	for _, want := range []string{"hello world", "service=demo", "env=dev", "room=r1", "instance_id="} {
		if !strings.Contains(out, want) {
			t.Fatalf("%q missing: %s", want, out)
		}
	}
}

func TestInit_ZapJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{
		Service: "demo",
		Env:     EnvProd,
		Output:  &buf,
	})
	slog.Info("zap line", "conn", "c1")
	slog.Debug("filtered")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "filtered") {
		t.Fatalf("debug must be filtered at info level: %s", line)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("expected JSON, got %q: %v", line, err)
	}
	if m["msg"] != "zap line" || m["conn"] != "c1" || m["service"] != "demo" {
		t.Fatalf("unexpected fields: %v", m)
	}
}

func TestAttrsFromCtx(t *testing.T) {
	if attrs := AttrsFromCtx(context.Background()); attrs != nil {
		t.Fatalf("expected no attrs without span, got %v", attrs)
	}

	tid, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sid, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	attrs := AttrsFromCtx(ctx)
	if len(attrs) != 2 || attrs[0].Value.String() != tid.String() || attrs[1].Value.String() != sid.String() {
		t.Fatalf("unexpected attrs: %v", attrs)
	}

	var buf bytes.Buffer
	Init(Config{Env: EnvDev, Backend: BackendStd, Output: &buf})
	FromCtx(ctx).Info("traced")
	if !strings.Contains(buf.String(), "trace_id="+tid.String()) {
		t.Fatalf("trace id missing: %s", buf.String())
	}
}

func TestParseEnv(t *testing.T) {
	cases := map[string]Env{
		"production": EnvProd,
		" Staging ":  EnvStage,
		"preprod":    EnvStage,
		"":           EnvDev,
		"local":      EnvDev,
	}
	for in, want := range cases {
		if got := ParseEnv(in); got != want {
			t.Fatalf("ParseEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
