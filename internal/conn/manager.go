// Package conn owns the push transport to the controller: dialing, the
// connection state machine, reconnects and outbound sends.
//
// All Manager methods must be called on the owning event loop. Dial results,
// inbound frames and transport failures are produced by helper goroutines and
// posted back onto that loop, so the state machine only ever runs on one
// goroutine.
package conn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/core/secret"
	"github.com/gaspardpetit/urlpusher/internal/backoff"
	"github.com/gaspardpetit/urlpusher/internal/loop"
	"github.com/gaspardpetit/urlpusher/internal/metrics"
	"github.com/gaspardpetit/urlpusher/internal/wire"
)

var (
	// ErrNotOpen is returned by Send when there is no open transport.
	ErrNotOpen = errors.New("push connection not open")
	// ErrSendQueueFull is returned by Send when the writer is backed up.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrForcedReconnect is reported to OnDisconnect after Reconnect.
	ErrForcedReconnect = errors.New("reconnect requested")
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultSendQueue   = 16
)

// Handler consumes inbound frames.
type Handler interface {
	Dispatch(frame []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(frame []byte) error

func (f HandlerFunc) Dispatch(frame []byte) error { return f(frame) }

// Hooks are role specific callbacks, all invoked on the loop.
type Hooks struct {
	// OnOpen runs on entry to Open; it is where the role handshake goes.
	OnOpen func()
	// OnDisconnect runs after the transport was lost and a reconnect armed.
	OnDisconnect func(err error)
	// OnStateChange observes every transition.
	OnStateChange func(State)
}

// Options configures a Manager.
type Options struct {
	URL            string
	Dialer         Dialer
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	SendQueue      int
	Loop           loop.Poster
	Clock          backoff.Clock
	Handler        Handler
	Hooks          Hooks
}

// Manager is the client context: it owns the live transport and exposes
// Connect, Send and the dispatch path for inbound frames.
type Manager struct {
	ctx   context.Context
	opts  Options
	timer *backoff.Timer
	log   zerolog.Logger

	state      State
	sess       *session
	attempt    uint64
	cancelDial context.CancelFunc
}

// New creates a disconnected manager. ctx bounds every dial; sessions last
// until they fail or Close is called.
func New(ctx context.Context, opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = backoff.DefaultReconnectDelay
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = defaultSendQueue
	}
	if opts.Handler == nil {
		opts.Handler = HandlerFunc(func([]byte) error { return nil })
	}
	m := &Manager{
		ctx:   ctx,
		opts:  opts,
		timer: backoff.NewTimer(opts.Clock, opts.Loop),
		log:   logx.Component("conn").With().Str("server", secret.RedactURL(opts.URL)).Logger(),
	}
	metrics.SetConnectionState(Disconnected.String(), AllStates)
	return m
}

// State returns the current state.
func (m *Manager) State() State { return m.state }

// ReconnectPending reports whether a reconnect timer is armed.
func (m *Manager) ReconnectPending() bool { return m.timer.Pending() }

// Connect starts a dial unless one is already in progress, the transport is
// open, or the manager is closed.
func (m *Manager) Connect() {
	if m.state != Disconnected {
		return
	}
	m.timer.Cancel()
	m.attempt++
	id := m.attempt
	m.setState(Connecting)

	dialCtx, cancel := context.WithTimeout(m.ctx, m.opts.DialTimeout)
	m.cancelDial = cancel
	m.log.Debug().Uint64("attempt", id).Msg("dialing")
	go func() {
		tr, err := m.opts.Dialer.Dial(dialCtx, m.opts.URL)
		cancel()
		posted := m.opts.Loop.Post(func() { m.dialed(id, tr, err) })
		if !posted && tr != nil {
			_ = tr.Close(true, "client stopped")
		}
	}()
}

// Send encodes and queues a frame. It never blocks: when the transport is not
// open or the writer is backed up the frame is dropped.
func (m *Manager) Send(typ string, payload any) error {
	if m.state != Open || m.sess == nil {
		metrics.RecordSend(typ, false)
		m.log.Debug().Str("type", typ).Str("state", m.state.String()).Msg("drop send; not connected")
		return ErrNotOpen
	}
	frame, err := wire.Encode(typ, payload)
	if err != nil {
		metrics.RecordSend(typ, false)
		m.log.Error().Err(err).Str("type", typ).Msg("encode frame")
		return err
	}
	select {
	case m.sess.out <- frame:
		metrics.RecordSend(typ, true)
		m.log.Debug().Str("type", typ).Msg("->")
		return nil
	default:
		metrics.RecordSend(typ, false)
		m.log.Warn().Str("type", typ).Msg("drop send; queue full")
		return ErrSendQueueFull
	}
}

// Reconnect drops the live transport as if it had failed, or dials at once
// when a reconnect is merely pending.
func (m *Manager) Reconnect() {
	switch m.state {
	case Open:
		m.lost(m.sess, ErrForcedReconnect)
	case Disconnected:
		m.Connect()
	}
}

// Close shuts the manager down for good. No transition happens afterwards.
func (m *Manager) Close() {
	if m.state == Closed {
		return
	}
	m.timer.Cancel()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if s := m.sess; s != nil {
		m.sess = nil
		s.close(true, "client closing")
	}
	m.setState(Closed)
	m.log.Info().Msg("connection closed")
}

func (m *Manager) dialed(id uint64, tr Transport, err error) {
	if id != m.attempt || m.state != Connecting {
		if tr != nil {
			_ = tr.Close(true, "superseded")
		}
		return
	}
	m.cancelDial = nil
	if err != nil {
		metrics.RecordDial(false)
		m.log.Warn().Err(err).Msg("dial failed")
		m.down(err)
		return
	}
	metrics.RecordDial(true)

	// Sessions end through lost or Close so the peer always gets a close
	// frame; cancelling the parent context alone would drop the socket.
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(m.ctx))
	s := &session{tr: tr, ctx: sessCtx, cancel: cancel, out: make(chan []byte, m.opts.SendQueue)}
	m.sess = s
	m.setState(Open)
	m.log.Info().Msg("connected to server")

	go s.readLoop(
		func(frame []byte) { m.opts.Loop.Post(func() { m.receive(s, frame) }) },
		func(err error) { m.opts.Loop.Post(func() { m.lost(s, err) }) },
	)
	go s.writeLoop(func(err error) { m.opts.Loop.Post(func() { m.lost(s, err) }) })

	if m.opts.Hooks.OnOpen != nil {
		m.opts.Hooks.OnOpen()
	}
}

func (m *Manager) receive(s *session, frame []byte) {
	if s != m.sess {
		return
	}
	m.log.Trace().Bytes("frame", frame).Msg("<-")
	if err := m.opts.Handler.Dispatch(frame); err != nil {
		m.log.Warn().Err(err).Msg("discarding frame")
	}
}

func (m *Manager) lost(s *session, err error) {
	if s == nil || s != m.sess {
		return
	}
	m.sess = nil
	s.close(errors.Is(err, ErrForcedReconnect), "connection lost")
	switch {
	case errors.Is(err, ErrForcedReconnect), IsNormalClose(err):
		m.log.Info().Err(err).Msg("server connection closed")
	default:
		m.log.Error().Err(err).Msg("server connection error")
	}
	m.down(err)
}

// down enters Disconnected and arms the single reconnect timer.
func (m *Manager) down(err error) {
	m.setState(Disconnected)
	metrics.RecordDisconnect()
	m.timer.Arm(m.opts.ReconnectDelay, m.Connect)
	m.log.Warn().Dur("backoff", m.opts.ReconnectDelay).Msg("connection to server lost; retrying")
	if m.opts.Hooks.OnDisconnect != nil {
		m.opts.Hooks.OnDisconnect(err)
	}
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	metrics.SetConnectionState(s.String(), AllStates)
	if m.opts.Hooks.OnStateChange != nil {
		m.opts.Hooks.OnStateChange(s)
	}
}

type session struct {
	tr        Transport
	ctx       context.Context
	cancel    context.CancelFunc
	out       chan []byte
	closeOnce sync.Once
}

func (s *session) readLoop(onFrame func([]byte), onErr func(error)) {
	for {
		data, err := s.tr.Read(s.ctx)
		if err != nil {
			onErr(err)
			return
		}
		onFrame(data)
	}
}

func (s *session) writeLoop(onErr func(error)) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.out:
			if err := s.tr.Write(s.ctx, frame); err != nil {
				onErr(err)
				return
			}
		}
	}
}

// close shuts the transport down and then releases the session goroutines.
func (s *session) close(normal bool, reason string) {
	s.closeOnce.Do(func() {
		go func() {
			_ = s.tr.Close(normal, reason)
			s.cancel()
		}()
	})
}
