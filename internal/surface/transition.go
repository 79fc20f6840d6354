package surface

import (
	"fmt"
	"strings"
	"time"
)

// TransitionMode selects how a swap is presented.
type TransitionMode string

const (
	Instant   TransitionMode = "instant"
	Crossfade TransitionMode = "crossfade"
)

// DefaultCrossfade matches the fade used by the original signage pages.
const DefaultCrossfade = 250 * time.Millisecond

// Transition is passed to the renderer with every swap.
type Transition struct {
	Mode     TransitionMode `json:"mode"`
	Duration time.Duration  `json:"duration"`
}

// ParseTransition validates a mode name. A crossfade without a duration uses
// DefaultCrossfade; instant swaps carry no duration.
func ParseTransition(mode string, d time.Duration) (Transition, error) {
	switch TransitionMode(strings.ToLower(strings.TrimSpace(mode))) {
	case Instant:
		return Transition{Mode: Instant}, nil
	case Crossfade, "":
		if d <= 0 {
			d = DefaultCrossfade
		}
		return Transition{Mode: Crossfade, Duration: d}, nil
	default:
		return Transition{}, fmt.Errorf("unknown transition %q (want instant or crossfade)", mode)
	}
}
