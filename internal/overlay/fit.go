package overlay

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Box is the area the overlay text must fit in, in pixels, and the font size
// bounds.
type Box struct {
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	MinSize int `yaml:"min_size"`
	MaxSize int `yaml:"max_size"`
}

// DefaultBox is a banner across a 1080p screen.
var DefaultBox = Box{Width: 1800, Height: 240, MinSize: 12, MaxSize: 96}

// Average glyph advance and line height relative to the font size.
const (
	cellAdvance = 0.6
	lineHeight  = 1.2
)

// FitFontSize returns the largest font size, within the box bounds, at which
// text fits the box. Widths are measured in terminal cells so wide East Asian
// characters count double.
func FitFontSize(text string, box Box) int {
	if box.MaxSize <= 0 {
		box.MaxSize = DefaultBox.MaxSize
	}
	if box.MinSize <= 0 || box.MinSize > box.MaxSize {
		box.MinSize = 1
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	cells := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > cells {
			cells = w
		}
	}
	size := float64(box.MaxSize)
	if cells > 0 && box.Width > 0 {
		if s := float64(box.Width) / (float64(cells) * cellAdvance); s < size {
			size = s
		}
	}
	if box.Height > 0 {
		if s := float64(box.Height) / (float64(len(lines)) * lineHeight); s < size {
			size = s
		}
	}
	if int(size) < box.MinSize {
		return box.MinSize
	}
	return int(size)
}
