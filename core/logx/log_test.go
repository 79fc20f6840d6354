package logx_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/rs/zerolog"
)

func TestConfigureLogLevel(t *testing.T) {
	logx.Configure("all")
	if zerolog.GlobalLevel() != zerolog.TraceLevel {
		t.Fatalf("expected trace level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("WARNING")
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("none")
	if zerolog.GlobalLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("bogus")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
}

func TestComponentTagsLines(t *testing.T) {
	var buf bytes.Buffer
	logx.ConfigureOutput("info", &buf)
	defer logx.Configure("info")

	lg := logx.Component("surface")
	lg.Info().Msg("swap")
	if !strings.Contains(buf.String(), `"component":"surface"`) {
		t.Fatalf("missing component field: %s", buf.String())
	}
}
