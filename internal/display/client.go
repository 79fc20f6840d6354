// Package display wires the display agent together: the push connection,
// the frame dispatcher, the content surfaces and the overlay, all driven from
// one event loop.
package display

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/core/secret"
	"github.com/gaspardpetit/urlpusher/internal/backoff"
	"github.com/gaspardpetit/urlpusher/internal/conn"
	"github.com/gaspardpetit/urlpusher/internal/dispatch"
	"github.com/gaspardpetit/urlpusher/internal/loop"
	"github.com/gaspardpetit/urlpusher/internal/overlay"
	"github.com/gaspardpetit/urlpusher/internal/status"
	"github.com/gaspardpetit/urlpusher/internal/surface"
	"github.com/gaspardpetit/urlpusher/internal/wire"
)

// ErrReload is returned by Run when the controller asked for a reload. The
// caller starts a fresh Client.
var ErrReload = errors.New("reload requested")

const (
	msgConnected    = "connected"
	msgDisconnected = "disconnected"
)

// Options configures a Client.
type Options struct {
	URL            string
	ClientID       string
	ClientName     string
	Dialer         conn.Dialer
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	Clock          backoff.Clock

	Slots      int
	Loader     surface.Loader
	Transition surface.Transition

	OverlayDelay time.Duration
	OverlayBox   overlay.Box
	// AnnounceConnection shows "connected" and "disconnected" on the overlay.
	AnnounceConnection bool

	// Board receives status and render state. A fresh board is used when nil.
	Board *status.Board
}

// Client is one display agent instance. It runs once; after a reload a new
// Client is built.
type Client struct {
	opts  Options
	loop  *loop.Loop
	board *status.Board
	log   zerolog.Logger

	// owned by the loop
	mgr      *conn.Manager
	disp     *dispatch.Dispatcher
	display  *surface.Display
	overlay  *overlay.Announcer
	stop     context.CancelFunc
	reloaded bool
}

// New returns an idle client.
func New(opts Options) *Client {
	if opts.Board == nil {
		opts.Board = status.NewBoard()
	}
	c := &Client{
		opts:  opts,
		loop:  loop.New(),
		board: opts.Board,
		log:   logx.Component("display").With().Str("client_name", opts.ClientName).Logger(),
	}
	c.board.Update(func(s *status.Status) {
		s.Role = "display"
		s.State = conn.Disconnected.String()
		s.ServerURL = secret.RedactURL(opts.URL)
		s.ClientID = opts.ClientID
		s.ClientName = opts.ClientName
		s.ReconnectPending = false
		s.LastError = ""
		s.ConnectedAt = time.Time{}
	})
	// A board shared with a previous instance still shows its content.
	c.board.ResetRender()
	return c
}

// Board returns the status board the client publishes to.
func (c *Client) Board() *status.Board { return c.board }

// Run connects and processes frames until ctx is done or a reload is
// requested. It returns ErrReload for a reload and nil on shutdown.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.stop = cancel
	c.build(ctx)

	c.log.Info().Str("server", secret.RedactURL(c.opts.URL)).Msg("display starting")
	c.loop.Post(c.mgr.Connect)
	_ = c.loop.Run(ctx)

	// The loop has stopped; nothing else touches the components now.
	c.mgr.Close()
	c.display.Close()
	c.overlay.Close()
	if c.reloaded {
		return ErrReload
	}
	return nil
}

func (c *Client) build(ctx context.Context) {
	c.display = surface.NewDisplay(ctx, surface.DisplayOptions{
		Slots:      c.opts.Slots,
		Loader:     c.opts.Loader,
		Renderer:   c.board,
		Transition: c.opts.Transition,
		Loop:       c.loop,
	})
	c.overlay = overlay.New(overlay.Options{
		Delay:    c.opts.OverlayDelay,
		Box:      c.opts.OverlayBox,
		Clock:    c.opts.Clock,
		Loop:     c.loop,
		Renderer: c.board,
	})

	c.disp = dispatch.New()
	c.disp.HandleString(wire.TypeURL, func(ref string) { c.display.Present(surface.ClassFrame, ref) })
	c.disp.HandleString(wire.TypeImage, func(ref string) { c.display.Present(surface.ClassImage, ref) })
	c.disp.HandleString(wire.TypeText, func(text string) { c.overlay.Announce(text, 0) })
	c.disp.Handle(wire.TypeReload, func(json.RawMessage) error {
		c.reload()
		return nil
	})

	c.mgr = conn.New(ctx, conn.Options{
		URL:            c.opts.URL,
		Dialer:         c.opts.Dialer,
		ReconnectDelay: c.opts.ReconnectDelay,
		DialTimeout:    c.opts.DialTimeout,
		Loop:           c.loop,
		Clock:          c.opts.Clock,
		Handler:        c.disp,
		Hooks: conn.Hooks{
			OnOpen:        c.opened,
			OnDisconnect:  c.disconnected,
			OnStateChange: c.stateChanged,
		},
	})
}

func (c *Client) opened() {
	c.board.Update(func(s *status.Status) {
		s.ConnectedAt = time.Now()
		s.LastError = ""
	})
	if c.opts.AnnounceConnection {
		c.overlay.Announce(msgConnected, 0)
	}
}

func (c *Client) disconnected(err error) {
	pending := c.mgr.ReconnectPending()
	c.board.Update(func(s *status.Status) {
		s.ReconnectPending = pending
		if err != nil {
			s.LastError = err.Error()
		}
	})
	if c.opts.AnnounceConnection {
		c.overlay.Announce(msgDisconnected, 0)
	}
}

func (c *Client) stateChanged(st conn.State) {
	c.board.Update(func(s *status.Status) {
		s.State = st.String()
		if st != conn.Disconnected {
			s.ReconnectPending = false
		}
	})
}

// reload closes the transport and ends Run with ErrReload.
func (c *Client) reload() {
	if c.reloaded {
		return
	}
	c.reloaded = true
	c.log.Info().Msg("reload requested")
	c.mgr.Close()
	c.stop()
}

// Controls returns the operator actions for the status server. Each one is
// posted onto the loop.
func (c *Client) Controls() status.Controls {
	post := func(fn func()) error {
		if !c.loop.Post(fn) {
			return status.ErrUnavailable
		}
		return nil
	}
	return status.Controls{
		Reconnect: func() error { return post(func() { c.mgr.Reconnect() }) },
		Reload:    func() error { return post(c.reload) },
		Announce: func(text string, d time.Duration) error {
			return post(func() { c.overlay.Announce(text, d) })
		},
	}
}
