// Package surface implements the double-buffered content surface: new content
// loads into a hidden standby slot and is swapped in only once it is ready, so
// the screen never shows a half-loaded page.
//
// The slot algebra in slot.go is pure. Surface drives it from the event loop:
// it starts loads on helper goroutines, cancels loads for slots that get
// overwritten or cleared, and hands every new state to a Renderer.
package surface

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/internal/loop"
	"github.com/gaspardpetit/urlpusher/internal/metrics"
)

// View is the snapshot handed to a Renderer.
type View struct {
	Class      Class        `json:"class"`
	Slots      []BufferSlot `json:"slots"`
	Active     int          `json:"active"`
	Transition Transition   `json:"transition"`
}

// Renderer draws surface state. It is called on the loop and must not block.
type Renderer interface {
	RenderSurface(View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

func (f RendererFunc) RenderSurface(v View) { f(v) }

// Options configures a Surface.
type Options struct {
	Slots      int
	Loader     Loader
	Renderer   Renderer
	Transition Transition
	Loop       loop.Poster
	// OnSwap runs on the loop after a slot of this surface became active.
	OnSwap func(Class)
}

// Surface owns the slots of one media class. Its methods must be called on
// the loop passed in Options.
type Surface struct {
	ctx     context.Context
	class   Class
	opts    Options
	state   State
	cancels []context.CancelFunc
	log     zerolog.Logger
}

// New returns an empty surface. ctx bounds every load it starts.
func New(ctx context.Context, class Class, opts Options) *Surface {
	if opts.Loader == nil {
		opts.Loader = NopLoader{}
	}
	if opts.Renderer == nil {
		opts.Renderer = RendererFunc(func(View) {})
	}
	if opts.Transition.Mode == "" {
		opts.Transition = Transition{Mode: Crossfade, Duration: DefaultCrossfade}
	}
	st := NewState(opts.Slots)
	return &Surface{
		ctx:     ctx,
		class:   class,
		opts:    opts,
		state:   st,
		cancels: make([]context.CancelFunc, len(st.Slots)),
		log:     logx.Component("surface").With().Str("class", string(class)).Logger(),
	}
}

// Class returns the media class of the surface.
func (s *Surface) Class() Class { return s.class }

// State returns a copy of the slot state.
func (s *Surface) State() State { return s.state.clone() }

// View returns the current render snapshot.
func (s *Surface) View() View {
	st := s.state.clone()
	return View{Class: s.class, Slots: st.Slots, Active: st.Active(), Transition: s.opts.Transition}
}

// Present starts loading ref into the standby slot. The content on screen
// stays until the load completes. An empty ref is ignored.
func (s *Surface) Present(ref string) {
	if ref == "" {
		s.log.Debug().Msg("ignoring empty content reference")
		return
	}
	next, i, token := Present(s.state, ref)
	if prev := s.state.Slots[i].ContentRef; prev != "" && !s.state.Slots[i].IsLoaded {
		s.log.Debug().Int("slot", i).Str("superseded", prev).Msg("replacing pending load")
	}
	s.cancel(i)
	s.state = next

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancels[i] = cancel
	s.log.Debug().Int("slot", i).Str("ref", ref).Msg("loading")
	s.render()

	go func() {
		err := s.opts.Loader.Load(ctx, s.class, ref)
		s.opts.Loop.Post(func() { s.loaded(i, token, ref, err) })
	}()
}

// Clear empties every slot and abandons their loads.
func (s *Surface) Clear() {
	empty := true
	for _, sl := range s.state.Slots {
		if sl.ContentRef != "" {
			empty = false
		}
	}
	for i := range s.cancels {
		s.cancel(i)
	}
	if empty {
		return
	}
	s.state = Clear(s.state)
	s.render()
}

// Close abandons every in-flight load without rendering.
func (s *Surface) Close() {
	for i := range s.cancels {
		s.cancel(i)
	}
}

func (s *Surface) loaded(i int, token uint64, ref string, err error) {
	if i >= len(s.state.Slots) || s.state.Slots[i].token != token {
		metrics.RecordStaleLoad(string(s.class))
		s.log.Debug().Int("slot", i).Str("ref", ref).Msg("discarding completion for replaced content")
		return
	}
	if err != nil {
		metrics.RecordLoadFailure(string(s.class))
		s.log.Warn().Err(err).Int("slot", i).Str("ref", ref).Msg("load failed; keeping current content")
		s.cancel(i)
		return
	}
	next, ok := MarkLoaded(s.state, i, token)
	if !ok {
		return
	}
	for j := range s.cancels {
		s.cancel(j)
	}
	s.state = next
	metrics.RecordSwap(string(s.class))
	s.log.Info().Int("slot", i).Str("ref", ref).Msg("swapped in")
	s.render()
	if s.opts.OnSwap != nil {
		s.opts.OnSwap(s.class)
	}
}

func (s *Surface) cancel(i int) {
	if c := s.cancels[i]; c != nil {
		c()
		s.cancels[i] = nil
	}
}

func (s *Surface) render() { s.opts.Renderer.RenderSurface(s.View()) }
