package agent

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gaspardpetit/urlpusher/internal/metrics"
)

func TestMetricsServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := NewRegistry()
	metrics.RecordAnnouncement()

	addr, err := StartMetricsServer(ctx, "127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "urlpusher_overlay_announcements_total") {
		t.Fatalf("announcement counter missing from output")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("runtime collector missing from output")
	}
}

func TestMetricsAddr(t *testing.T) {
	if got := MetricsAddr("9090"); got != ":9090" {
		t.Fatalf("got %q", got)
	}
	if got := MetricsAddr("127.0.0.1:9090"); got != "127.0.0.1:9090" {
		t.Fatalf("got %q", got)
	}
	if got := MetricsAddr(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
