// Package lister runs the directory editing agent: it keeps a cached copy of
// the controller's display entries and forwards edits made through the local
// API.
package lister

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/core/secret"
	"github.com/gaspardpetit/urlpusher/internal/backoff"
	"github.com/gaspardpetit/urlpusher/internal/conn"
	"github.com/gaspardpetit/urlpusher/internal/directory"
	"github.com/gaspardpetit/urlpusher/internal/dispatch"
	"github.com/gaspardpetit/urlpusher/internal/loop"
	"github.com/gaspardpetit/urlpusher/internal/status"
	"github.com/gaspardpetit/urlpusher/internal/wire"
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
	Board          *status.Board
}

// Client is the lister agent. Entries may be read from any goroutine; edits
// are run on the client's loop.
type Client struct {
	opts  Options
	loop  *loop.Loop
	board *status.Board
	log   zerolog.Logger

	mu      sync.RWMutex
	entries []wire.DisplayEntry

	// owned by the loop
	mgr *conn.Manager
	dir *directory.Directory
}

// New returns an idle client.
func New(opts Options) *Client {
	if opts.Board == nil {
		opts.Board = status.NewBoard()
	}
	c := &Client{
		opts:    opts,
		loop:    loop.New(),
		board:   opts.Board,
		entries: []wire.DisplayEntry{},
		log:     logx.Component("lister").With().Str("client_name", opts.ClientName).Logger(),
	}
	c.board.Update(func(s *status.Status) {
		s.Role = "lister"
		s.State = conn.Disconnected.String()
		s.ServerURL = secret.RedactURL(opts.URL)
		s.ClientID = opts.ClientID
		s.ClientName = opts.ClientName
	})
	return c
}

// Board returns the status board the client publishes to.
func (c *Client) Board() *status.Board { return c.board }

// Run connects and serves until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	disp := dispatch.New()
	c.mgr = conn.New(ctx, conn.Options{
		URL:            c.opts.URL,
		Dialer:         c.opts.Dialer,
		ReconnectDelay: c.opts.ReconnectDelay,
		DialTimeout:    c.opts.DialTimeout,
		Loop:           c.loop,
		Clock:          c.opts.Clock,
		Handler:        disp,
		Hooks: conn.Hooks{
			OnOpen:        c.opened,
			OnDisconnect:  c.disconnected,
			OnStateChange: c.stateChanged,
		},
	})
	c.dir = directory.New(c.mgr, c.publish)
	c.dir.Register(disp)

	c.log.Info().Str("server", secret.RedactURL(c.opts.URL)).Msg("lister starting")
	c.loop.Post(c.mgr.Connect)
	_ = c.loop.Run(ctx)
	c.mgr.Close()
	return nil
}

// Entries returns the entries from the last list the controller sent.
func (c *Client) Entries() []wire.DisplayEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]wire.DisplayEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds a cached entry by id.
func (c *Client) Lookup(id string) (wire.DisplayEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return wire.DisplayEntry{}, false
}

func (c *Client) Create(ctx context.Context) error {
	return c.call(ctx, func() error { return c.dir.Create() })
}

func (c *Client) Update(ctx context.Context, e wire.DisplayEntry) error {
	return c.call(ctx, func() error { return c.dir.Update(e) })
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, func() error { return c.dir.Delete(id) })
}

func (c *Client) Refresh(ctx context.Context) error {
	return c.call(ctx, func() error { return c.dir.Refresh() })
}

func (c *Client) call(ctx context.Context, fn func() error) error {
	var err error
	if cerr := c.loop.Call(ctx, func() { err = fn() }); cerr != nil {
		return cerr
	}
	return err
}

func (c *Client) publish(entries []wire.DisplayEntry) {
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.board.Update(func(s *status.Status) { s.Entries = len(entries) })
}

func (c *Client) opened() {
	c.board.Update(func(s *status.Status) {
		s.ConnectedAt = time.Now()
		s.LastError = ""
	})
	_ = c.dir.Refresh()
}

func (c *Client) disconnected(err error) {
	pending := c.mgr.ReconnectPending()
	c.board.Update(func(s *status.Status) {
		s.ReconnectPending = pending
		if err != nil {
			s.LastError = err.Error()
		}
	})
}

func (c *Client) stateChanged(st conn.State) {
	c.board.Update(func(s *status.Status) {
		s.State = st.String()
		if st != conn.Disconnected {
			s.ReconnectPending = false
		}
	})
}
