package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestJSONLoggerCarriesServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLoggerTo(&buf, "api", "info")
	log.Info("document_uploaded", "document_id", "doc-1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["service"] != "api" {
		t.Fatalf("service field = %v, want api", rec["service"])
	}
	if rec["msg"] != "document_uploaded" || rec["document_id"] != "doc-1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestJSONLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLoggerTo(&buf, "worker", "warn")

	log.Info("index_build_started")
	if buf.Len() != 0 {
		t.Fatalf("info record emitted at warn level: %q", buf.String())
	}
	log.Warn("index_build_slow")
	if buf.Len() == 0 {
		t.Fatalf("warn record missing")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
