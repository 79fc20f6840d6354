package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gaspardpetit/urlpusher/internal/loop"
)

var errPeerClosed = errors.New("peer closed")

type fakeTransport struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	normal    atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case b := <-f.in:
		return b, nil
	case <-f.closed:
		return nil, errPeerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Write(ctx context.Context, frame []byte) error {
	select {
	case f.out <- frame:
		return nil
	case <-f.closed:
		return errPeerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Close(normal bool, reason string) error {
	f.closeOnce.Do(func() {
		f.normal.Store(normal)
		close(f.closed)
	})
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type dialResult struct {
	tr  Transport
	err error
}

type fakeDialer struct {
	dials   atomic.Int32
	results chan dialResult
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{results: make(chan dialResult, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Transport, error) {
	d.dials.Add(1)
	select {
	case r := <-d.results:
		return r.tr, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startLoop runs a loop for the duration of the test.
func startLoop(t *testing.T) (*loop.Loop, context.Context) {
	t.Helper()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = l.Run(ctx) }()
	return l, ctx
}

// onLoop runs fn on the loop and waits for it.
func onLoop(t *testing.T, l *loop.Loop, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Call(ctx, fn); err != nil {
		t.Fatalf("loop call: %v", err)
	}
}

// waitFor polls cond on the loop until it holds.
func waitFor(t *testing.T, l *loop.Loop, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ok := false
		onLoop(t, l, func() { ok = cond() })
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
