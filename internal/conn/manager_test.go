package conn

import (
	"errors"
	"testing"
	"time"

	"github.com/gaspardpetit/urlpusher/internal/backoff/backofftest"
)

func newTestManager(t *testing.T, d *fakeDialer, hooks Hooks, h Handler) (*Manager, *backofftest.Clock, func(func())) {
	t.Helper()
	l, ctx := startLoop(t)
	clk := backofftest.New()
	m := New(ctx, Options{
		URL:            "ws://controller/pusher",
		Dialer:         d,
		ReconnectDelay: 3 * time.Second,
		Loop:           l,
		Clock:          clk,
		Handler:        h,
		Hooks:          hooks,
	})
	run := func(fn func()) { onLoop(t, l, fn) }
	return m, clk, run
}

func waitState(t *testing.T, m *Manager, run func(func()), want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var got State
		run(func() { got = m.State() })
		if got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for state %s", want)
}

func TestConnectIsIdempotent(t *testing.T) {
	d := newFakeDialer()
	opened := 0
	m, _, run := newTestManager(t, d, Hooks{OnOpen: func() { opened++ }}, nil)

	run(func() {
		m.Connect()
		m.Connect()
	})
	tr := newFakeTransport()
	d.results <- dialResult{tr: tr}
	waitState(t, m, run, Open)
	run(func() { m.Connect() })

	if n := d.dials.Load(); n != 1 {
		t.Fatalf("expected one dial, got %d", n)
	}
	run(func() {
		if opened != 1 {
			t.Errorf("expected one open hook, got %d", opened)
		}
	})
}

func TestReconnectAfterPeerClose(t *testing.T) {
	d := newFakeDialer()
	var disconnects []error
	m, clk, run := newTestManager(t, d, Hooks{OnDisconnect: func(err error) { disconnects = append(disconnects, err) }}, nil)

	first := newFakeTransport()
	d.results <- dialResult{tr: first}
	run(m.Connect)
	waitState(t, m, run, Open)

	_ = first.Close(false, "peer went away")
	waitState(t, m, run, Disconnected)
	run(func() {
		if !m.ReconnectPending() {
			t.Errorf("expected reconnect timer armed")
		}
		if len(disconnects) != 1 {
			t.Errorf("expected one disconnect hook, got %d", len(disconnects))
		}
	})
	if clk.Pending() != 1 {
		t.Fatalf("expected exactly one pending timer, got %d", clk.Pending())
	}

	second := newFakeTransport()
	d.results <- dialResult{tr: second}
	clk.Advance(2 * time.Second)
	if n := d.dials.Load(); n != 1 {
		t.Fatalf("reconnected before the delay: %d dials", n)
	}
	clk.Advance(time.Second)
	waitState(t, m, run, Open)
	if n := d.dials.Load(); n != 2 {
		t.Fatalf("expected a second dial, got %d", n)
	}
}

func TestFlappingNeverStacksTimers(t *testing.T) {
	d := newFakeDialer()
	m, clk, run := newTestManager(t, d, Hooks{}, nil)

	for i := 0; i < 5; i++ {
		d.results <- dialResult{err: errors.New("connection refused")}
		run(m.Connect)
		waitState(t, m, run, Disconnected)
		var pending bool
		run(func() { pending = m.ReconnectPending() })
		if !pending {
			t.Fatalf("round %d: no reconnect pending", i)
		}
		if clk.Pending() != 1 {
			t.Fatalf("round %d: %d timers pending", i, clk.Pending())
		}
	}
	// A manual Connect while a timer is pending takes the timer over.
	d.results <- dialResult{tr: newFakeTransport()}
	run(m.Connect)
	waitState(t, m, run, Open)
	if clk.Pending() != 0 {
		t.Fatalf("timer left armed after connect: %d", clk.Pending())
	}
}

func TestSendDroppedWhenNotOpen(t *testing.T) {
	d := newFakeDialer()
	m, _, run := newTestManager(t, d, Hooks{}, nil)
	run(func() {
		if err := m.Send("list", nil); !errors.Is(err, ErrNotOpen) {
			t.Errorf("expected ErrNotOpen, got %v", err)
		}
	})
}

func TestSendWritesEnvelope(t *testing.T) {
	d := newFakeDialer()
	var m *Manager
	m, _, run := newTestManager(t, d, Hooks{OnOpen: func() { _ = m.Send("list", nil) }}, nil)
	tr := newFakeTransport()
	d.results <- dialResult{tr: tr}
	run(m.Connect)
	select {
	case frame := <-tr.out:
		if string(frame) != `{"type":"list"}` {
			t.Fatalf("unexpected frame %s", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handshake frame not written")
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	d := newFakeDialer()
	got := make(chan string, 4)
	h := HandlerFunc(func(frame []byte) error {
		got <- string(frame)
		if string(frame) == "not json" {
			return errors.New("malformed")
		}
		return nil
	})
	m, _, run := newTestManager(t, d, Hooks{}, h)
	tr := newFakeTransport()
	d.results <- dialResult{tr: tr}
	run(m.Connect)
	waitState(t, m, run, Open)

	tr.in <- []byte("not json")
	tr.in <- []byte(`{"type":"text","payload":"hi"}`)
	for _, want := range []string{"not json", `{"type":"text","payload":"hi"}`} {
		select {
		case f := <-got:
			if f != want {
				t.Fatalf("frames out of order: %q", f)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %q not dispatched", want)
		}
	}
	waitState(t, m, run, Open)
	if tr.isClosed() {
		t.Fatalf("transport closed after malformed frame")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	d := newFakeDialer()
	m, clk, run := newTestManager(t, d, Hooks{}, nil)
	tr := newFakeTransport()
	d.results <- dialResult{tr: tr}
	run(m.Connect)
	waitState(t, m, run, Open)

	run(m.Close)
	deadline := time.Now().Add(2 * time.Second)
	for !tr.isClosed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !tr.isClosed() || !tr.normal.Load() {
		t.Fatalf("transport not closed normally")
	}
	run(func() {
		m.Connect()
		m.Reconnect()
	})
	clk.Advance(time.Minute)
	waitState(t, m, run, Closed)
	if n := d.dials.Load(); n != 1 {
		t.Fatalf("dialed after close: %d", n)
	}
}

func TestReconnectDropsLiveTransport(t *testing.T) {
	d := newFakeDialer()
	var reasons []error
	m, clk, run := newTestManager(t, d, Hooks{OnDisconnect: func(err error) { reasons = append(reasons, err) }}, nil)
	first := newFakeTransport()
	d.results <- dialResult{tr: first}
	run(m.Connect)
	waitState(t, m, run, Open)

	run(m.Reconnect)
	waitState(t, m, run, Disconnected)
	run(func() {
		if len(reasons) != 1 || !errors.Is(reasons[0], ErrForcedReconnect) {
			t.Errorf("unexpected disconnect reasons: %v", reasons)
		}
	})
	d.results <- dialResult{tr: newFakeTransport()}
	clk.Advance(3 * time.Second)
	waitState(t, m, run, Open)
}
