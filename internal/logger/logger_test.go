package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("component", "store").Msg("opened")

	output := buf.String()
	if !strings.Contains(output, "opened") {
		t.Errorf("Expected output to contain 'opened', got: %s", output)
	}
	if !strings.Contains(output, `"component":"store"`) {
		t.Errorf("Expected structured field in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	l := FromContext(ctx)
	l.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	if l.GetLevel() != zerolog.Disabled {
		t.Errorf("default logger level = %v, want disabled", l.GetLevel())
	}
}
