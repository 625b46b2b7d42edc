package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// capture redirects the global logger into a buffer for the test's duration.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	origLevel := zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = orig
		zerolog.SetGlobalLevel(origLevel)
	})
	return &buf
}

func TestWithSession_ChainsAndCarriesFields(t *testing.T) {
	buf := capture(t)

	WithSession("sess-1", "cand-1").Warn().Msg("session context")

	out := buf.String()
	for _, want := range []string{`"sessionId":"sess-1"`, `"candidateId":"cand-1"`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestWithTurn_ChainsAndCarriesFields(t *testing.T) {
	buf := capture(t)

	WithTurn("sess-1", "cand-1", 3, "closing").Info().Msg("turn context")

	out := buf.String()
	for _, want := range []string{`"turn":3`, `"stage":"closing"`, `"sessionId":"sess-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestWithComponent_ChainsAndCarriesFields(t *testing.T) {
	buf := capture(t)

	WithComponent("store").Error().Msg("component context")

	if out := buf.String(); !strings.Contains(out, `"component":"store"`) {
		t.Errorf("log line missing component field: %s", out)
	}
}

func TestInit_FallsBackToInfoOnBadLevel(t *testing.T) {
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(origLevel) })

	Init(Config{Level: "shouting", Format: "json"})
	if got := zerolog.GlobalLevel(); got != zerolog.InfoLevel {
		t.Errorf("global level = %s, want info", got)
	}
}
