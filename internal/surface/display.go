package surface

import (
	"context"

	"github.com/gaspardpetit/urlpusher/internal/loop"
)

// Classes lists the media classes of a Display in render order.
var Classes = []Class{ClassFrame, ClassImage}

// DisplayOptions configures a Display. Zero values pick two slots per class,
// the no-op loader and the default crossfade.
type DisplayOptions struct {
	Slots      int
	Loader     Loader
	Renderer   Renderer
	Transition Transition
	Loop       loop.Poster
	// Overlap keeps the other classes on screen after a swap. By default a
	// swap in one class clears the others so exactly one piece of content
	// is visible.
	Overlap bool
}

// Display groups one Surface per media class.
type Display struct {
	surfaces map[Class]*Surface
	overlap  bool
}

// NewDisplay builds the frame and image surfaces.
func NewDisplay(ctx context.Context, opts DisplayOptions) *Display {
	d := &Display{surfaces: make(map[Class]*Surface, len(Classes)), overlap: opts.Overlap}
	for _, c := range Classes {
		d.surfaces[c] = New(ctx, c, Options{
			Slots:      opts.Slots,
			Loader:     opts.Loader,
			Renderer:   opts.Renderer,
			Transition: opts.Transition,
			Loop:       opts.Loop,
			OnSwap:     d.swapped,
		})
	}
	return d
}

// Present loads ref on the surface of the given class.
func (d *Display) Present(c Class, ref string) {
	if s, ok := d.surfaces[c]; ok {
		s.Present(ref)
	}
}

// Surface returns the surface for c, or nil.
func (d *Display) Surface(c Class) *Surface { return d.surfaces[c] }

// Views returns a snapshot of every surface in render order.
func (d *Display) Views() []View {
	out := make([]View, 0, len(Classes))
	for _, c := range Classes {
		out = append(out, d.surfaces[c].View())
	}
	return out
}

// Close abandons all in-flight loads.
func (d *Display) Close() {
	for _, s := range d.surfaces {
		s.Close()
	}
}

func (d *Display) swapped(c Class) {
	if d.overlap {
		return
	}
	for _, other := range Classes {
		if other != c {
			d.surfaces[other].Clear()
		}
	}
}
