package dispatch

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRoutesByType(t *testing.T) {
	d := New()
	var urls, texts []string
	d.HandleString("url", func(s string) { urls = append(urls, s) })
	d.HandleString("text", func(s string) { texts = append(texts, s) })

	frames := []string{
		`{"type":"url","payload":"http://x/a"}`,
		`{"type":"text","payload":"hello"}`,
		`{"Type":"url","Payload":"http://x/b"}`,
	}
	for _, f := range frames {
		if err := d.Dispatch([]byte(f)); err != nil {
			t.Fatalf("dispatch %s: %v", f, err)
		}
	}
	if len(urls) != 2 || urls[0] != "http://x/a" || urls[1] != "http://x/b" {
		t.Fatalf("urls: %v", urls)
	}
	if len(texts) != 1 || texts[0] != "hello" {
		t.Fatalf("texts: %v", texts)
	}
}

func TestMalformedFrameIsContained(t *testing.T) {
	d := New()
	called := false
	d.Handle("url", func(json.RawMessage) error { called = true; return nil })
	err := d.Dispatch([]byte("not json"))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if called {
		t.Fatalf("handler ran for malformed frame")
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	d := New()
	if err := d.Dispatch([]byte(`{"type":"future-feature","payload":{}}`)); err != nil {
		t.Fatalf("unknown type should be silent, got %v", err)
	}
}

func TestWrongPayloadShape(t *testing.T) {
	d := New()
	d.HandleString("url", func(string) { t.Fatalf("handler must not run") })
	if err := d.Dispatch([]byte(`{"type":"url","payload":{"href":"x"}}`)); err == nil {
		t.Fatalf("expected payload error")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	d := New()
	d.Handle("reload", func(json.RawMessage) error { panic("boom") })
	err := d.Dispatch([]byte(`{"type":"reload"}`))
	if !errors.Is(err, ErrHandlerPanic) {
		t.Fatalf("expected ErrHandlerPanic, got %v", err)
	}
}
