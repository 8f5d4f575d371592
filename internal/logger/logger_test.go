package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: FormatJSON, Output: &buf}, "astaauth")

	log.Info().Msg("hidden")
	log.Warn().Str("route", "/login").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("info must be filtered at warn level")
	}
	for _, want := range []string{`"service":"astaauth"`, `"route":"/login"`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "loud", Output: &buf}, "svc")
	log.Debug().Msg("debug")
	log.Info().Msg("info")

	if strings.Contains(buf.String(), `"message":"debug"`) || !strings.Contains(buf.String(), `"message":"info"`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
