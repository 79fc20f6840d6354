package display

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/urlpusher/internal/status"
	"github.com/gaspardpetit/urlpusher/internal/surface"
	"github.com/gaspardpetit/urlpusher/internal/wire"
)

var pixel = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

func contentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a", "/b":
			_, _ = w.Write([]byte("<html><body>" + r.URL.Path + "</body></html>"))
		case "/pixel.gif":
			w.Header().Set("Content-Type", "image/gif")
			_, _ = w.Write(pixel)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func peerServer(t *testing.T) (string, <-chan *websocket.Conn) {
	t.Helper()
	connCh := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)
	return "ws://" + srv.Listener.Addr().String() + "/pusher", connCh
}

func push(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	frame, err := wire.Encode(typ, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := c.Write(context.Background(), websocket.MessageText, frame); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func pushRaw(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	if err := c.Write(context.Background(), websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func view(s status.Snapshot, c surface.Class) surface.View {
	for _, v := range s.Surfaces {
		if v.Class == c {
			return v
		}
	}
	return surface.View{Class: c, Active: -1}
}

func showing(v surface.View) string {
	if v.Active < 0 || v.Active >= len(v.Slots) {
		return ""
	}
	return v.Slots[v.Active].ContentRef
}

func waitFor(t *testing.T, b *status.Board, what string, cond func(status.Snapshot, status.Status) bool) status.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap := b.Snapshot()
		if cond(snap, b.Status()) {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s; last snapshot %+v", what, b.Snapshot())
	return status.Snapshot{}
}

func TestDisplayEndToEnd(t *testing.T) {
	content := contentServer(t)
	url, connCh := peerServer(t)

	c := New(Options{
		URL:                url,
		ClientName:         "lobby",
		Loader:             surface.HTTPLoader{Client: content.Client()},
		Transition:         surface.Transition{Mode: surface.Instant},
		AnnounceConnection: true,
	})
	b := c.Board()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	var srvConn *websocket.Conn
	select {
	case srvConn = <-connCh:
	case <-time.After(3 * time.Second):
		t.Fatalf("client never connected")
	}
	waitFor(t, b, "open", func(s status.Snapshot, st status.Status) bool {
		return st.State == "open" && s.Overlay.Visible && s.Overlay.Text == "connected"
	})

	a, bRef := content.URL+"/a", content.URL+"/b"
	push(t, srvConn, wire.TypeURL, a)
	waitFor(t, b, "a in slot 0", func(s status.Snapshot, _ status.Status) bool {
		v := view(s, surface.ClassFrame)
		return v.Active == 0 && showing(v) == a
	})

	push(t, srvConn, wire.TypeURL, bRef)
	snap := waitFor(t, b, "b in slot 1", func(s status.Snapshot, _ status.Status) bool {
		v := view(s, surface.ClassFrame)
		return v.Active == 1 && showing(v) == bRef
	})
	if v := view(snap, surface.ClassFrame); v.Slots[0].ContentRef != "" || v.Slots[0].IsActive {
		t.Fatalf("slot 0 not cleared: %+v", v.Slots[0])
	}

	push(t, srvConn, wire.TypeImage, content.URL+"/pixel.gif")
	snap = waitFor(t, b, "image", func(s status.Snapshot, _ status.Status) bool {
		return showing(view(s, surface.ClassImage)) == content.URL+"/pixel.gif"
	})
	if showing(view(snap, surface.ClassFrame)) != "" {
		t.Fatalf("frame content still shown with image")
	}

	// A broken load keeps the image on screen.
	push(t, srvConn, wire.TypeImage, content.URL+"/missing.png")

	// Garbage and unknown types must not cost the connection.
	pushRaw(t, srvConn, `{"type":`)
	pushRaw(t, srvConn, `{"type":"weather","payload":{}}`)
	pushRaw(t, srvConn, `{"Type":"text","Payload":"hello"}`)
	waitFor(t, b, "overlay text", func(s status.Snapshot, st status.Status) bool {
		return s.Overlay.Visible && s.Overlay.Text == "hello" && st.State == "open"
	})
	if got := showing(view(b.Snapshot(), surface.ClassImage)); got != content.URL+"/pixel.gif" {
		t.Fatalf("failed load replaced the image: %q", got)
	}

	push(t, srvConn, wire.TypeReload, nil)
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrReload) {
			t.Fatalf("Run returned %v, want ErrReload", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("client did not stop on reload")
	}
	rctx, rcancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer rcancel()
	for {
		if _, _, err := srvConn.Read(rctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("expected normal closure, got %v", err)
			}
			break
		}
	}
	if st := b.Status(); st.State != "closed" {
		t.Fatalf("state after reload = %q", st.State)
	}
}

func TestDisplayReconnectsAfterPeerDrop(t *testing.T) {
	url, connCh := peerServer(t)
	c := New(Options{
		URL:                url,
		ReconnectDelay:     50 * time.Millisecond,
		AnnounceConnection: true,
	})
	b := c.Board()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	first := <-connCh
	waitFor(t, b, "open", func(_ status.Snapshot, st status.Status) bool { return st.State == "open" })
	_ = first.Close(websocket.StatusInternalError, "boom")

	select {
	case second := <-connCh:
		defer func() { _ = second.CloseNow() }()
	case <-time.After(3 * time.Second):
		t.Fatalf("client did not reconnect")
	}
	waitFor(t, b, "reopened", func(s status.Snapshot, st status.Status) bool {
		return st.State == "open" && st.LastError == "" && s.Overlay.Text == "connected"
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v on shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("client did not stop")
	}
}

func TestControlsAfterStop(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/pusher"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	err := c.Controls().Announce("late", 0)
	if !errors.Is(err, status.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(c.Board().Status().State, "closed") {
		t.Fatalf("state = %q", c.Board().Status().State)
	}
}

func TestReloadStartsFromEmptyRender(t *testing.T) {
	content := contentServer(t)
	url, connCh := peerServer(t)
	board := status.NewBoard()
	opts := Options{
		URL:          url,
		Loader:       surface.HTTPLoader{Client: content.Client()},
		Transition:   surface.Transition{Mode: surface.Instant},
		OverlayDelay: 200 * time.Millisecond,
		Board:        board,
	}

	first := New(opts)
	errCh := make(chan error, 1)
	go func() { errCh <- first.Run(context.Background()) }()
	srvConn := <-connCh
	waitFor(t, board, "open", func(_ status.Snapshot, st status.Status) bool { return st.State == "open" })

	push(t, srvConn, wire.TypeURL, content.URL+"/a")
	waitFor(t, board, "a shown", func(s status.Snapshot, _ status.Status) bool {
		return showing(view(s, surface.ClassFrame)) == content.URL+"/a"
	})
	push(t, srvConn, wire.TypeText, "reloading")
	waitFor(t, board, "reloading", func(s status.Snapshot, _ status.Status) bool {
		return s.Overlay.Visible && s.Overlay.Text == "reloading"
	})
	push(t, srvConn, wire.TypeReload, nil)
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrReload) {
			t.Fatalf("Run returned %v, want ErrReload", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("client did not stop on reload")
	}

	second := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { errCh <- second.Run(ctx) }()
	select {
	case c := <-connCh:
		defer func() { _ = c.CloseNow() }()
	case <-time.After(3 * time.Second):
		t.Fatalf("second client never connected")
	}
	waitFor(t, board, "reopened", func(_ status.Snapshot, st status.Status) bool { return st.State == "open" })

	time.Sleep(400 * time.Millisecond)
	snap := board.Snapshot()
	if snap.Overlay.Visible {
		t.Fatalf("overlay of the previous instance still visible: %+v", snap.Overlay)
	}
	if got := showing(view(snap, surface.ClassFrame)); got != "" {
		t.Fatalf("frame of the previous instance still shown: %q", got)
	}
}
