// Package overlay shows transient text over the content surface and hides it
// again after a delay. The most recent announcement always wins.
package overlay

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/internal/backoff"
	"github.com/gaspardpetit/urlpusher/internal/loop"
	"github.com/gaspardpetit/urlpusher/internal/metrics"
)

const (
	DefaultDelay   = 5 * time.Second
	DefaultFadeIn  = 120 * time.Millisecond
	DefaultFadeOut = 500 * time.Millisecond
)

// State is what the renderer needs to draw the overlay.
type State struct {
	Text            string        `json:"text"`
	Visible         bool          `json:"visible"`
	DismissDeadline time.Time     `json:"dismissDeadline,omitempty"`
	FontSize        int           `json:"fontSize"`
	FadeIn          time.Duration `json:"fadeIn"`
	FadeOut         time.Duration `json:"fadeOut"`
}

// Renderer draws overlay state. It is called on the loop.
type Renderer interface {
	RenderOverlay(State)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(State)

func (f RendererFunc) RenderOverlay(s State) { f(s) }

// Options configures an Announcer. Zero durations select the defaults.
type Options struct {
	Delay    time.Duration
	FadeIn   time.Duration
	FadeOut  time.Duration
	Box      Box
	Clock    backoff.Clock
	Loop     loop.Poster
	Renderer Renderer
}

// Announcer owns the overlay state and its dismiss timer. Methods must be
// called on the loop passed in Options.
type Announcer struct {
	opts  Options
	clock backoff.Clock
	timer *backoff.Timer
	state State
	log   zerolog.Logger
}

// New returns a hidden overlay.
func New(opts Options) *Announcer {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.FadeIn <= 0 {
		opts.FadeIn = DefaultFadeIn
	}
	if opts.FadeOut <= 0 {
		opts.FadeOut = DefaultFadeOut
	}
	if opts.Box == (Box{}) {
		opts.Box = DefaultBox
	}
	if opts.Clock == nil {
		opts.Clock = backoff.RealClock
	}
	if opts.Renderer == nil {
		opts.Renderer = RendererFunc(func(State) {})
	}
	return &Announcer{
		opts:  opts,
		clock: opts.Clock,
		timer: backoff.NewTimer(opts.Clock, opts.Loop),
		state: State{FadeIn: opts.FadeIn, FadeOut: opts.FadeOut},
		log:   logx.Component("overlay"),
	}
}

// Announce shows text for delay, or the default delay when delay <= 0. A
// pending dismissal from an earlier announcement is cancelled.
func (a *Announcer) Announce(text string, delay time.Duration) {
	if delay <= 0 {
		delay = a.opts.Delay
	}
	a.timer.Cancel()
	a.state.Text = text
	a.state.Visible = true
	a.state.FontSize = FitFontSize(text, a.opts.Box)
	a.state.DismissDeadline = a.clock.Now().Add(delay)
	metrics.RecordAnnouncement()
	a.log.Info().Str("text", text).Dur("delay", delay).Msg("announce")
	a.render()
	a.timer.Arm(delay, a.Hide)
}

// Hide removes the overlay now and drops any pending dismissal.
func (a *Announcer) Hide() {
	a.timer.Cancel()
	if !a.state.Visible {
		return
	}
	a.state.Visible = false
	a.state.DismissDeadline = time.Time{}
	a.render()
}

// State returns the current overlay state.
func (a *Announcer) State() State { return a.state }

// Close cancels the dismiss timer.
func (a *Announcer) Close() { a.timer.Cancel() }

func (a *Announcer) render() { a.opts.Renderer.RenderOverlay(a.state) }
