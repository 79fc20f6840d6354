package surface

// Class is a media class. Each class owns its own set of buffer slots.
type Class string

const (
	ClassFrame Class = "frame"
	ClassImage Class = "image"
)

// BufferSlot is one physical rendering element.
type BufferSlot struct {
	ContentRef string `json:"contentRef"`
	IsLoaded   bool   `json:"isLoaded"`
	IsActive   bool   `json:"isActive"`
	// token identifies the Present call that filled the slot so a late
	// completion for replaced content is recognized.
	token uint64
}

// State is the slot set of one surface. Functions in this file never mutate
// their argument; they return a new State.
type State struct {
	Slots []BufferSlot
	// Next is the slot the next Present targets. It advances on each swap.
	Next int
	seq  uint64
}

// NewState returns n empty slots; fewer than two are rounded up to two.
func NewState(n int) State {
	if n < 2 {
		n = 2
	}
	return State{Slots: make([]BufferSlot, n)}
}

func (s State) clone() State {
	c := s
	c.Slots = append([]BufferSlot(nil), s.Slots...)
	return c
}

// Active returns the index of the active slot or -1.
func (s State) Active() int {
	for i, sl := range s.Slots {
		if sl.IsActive {
			return i
		}
	}
	return -1
}

// Showing returns the reference currently on screen, if any.
func (s State) Showing() string {
	if i := s.Active(); i >= 0 {
		return s.Slots[i].ContentRef
	}
	return ""
}

// SelectStandbySlot returns the slot a new load must go to. It is never the
// active slot.
func SelectStandbySlot(s State) int {
	n := len(s.Slots)
	i := s.Next % n
	if s.Slots[i].IsActive {
		i = (i + 1) % n
	}
	return i
}

// Present assigns ref to the standby slot, replacing whatever was loading
// there. It returns the slot index and the token its completion must carry.
func Present(s State, ref string) (State, int, uint64) {
	out := s.clone()
	i := SelectStandbySlot(out)
	out.seq++
	out.Slots[i] = BufferSlot{ContentRef: ref, token: out.seq}
	return out, i, out.seq
}

// MarkLoaded records that slot i finished loading and swaps it in. It refuses
// (returning false) when the slot is empty, already active, or now holds
// content from a later Present.
func MarkLoaded(s State, i int, token uint64) (State, bool) {
	if i < 0 || i >= len(s.Slots) {
		return s, false
	}
	sl := s.Slots[i]
	if sl.ContentRef == "" || sl.IsActive || sl.token != token {
		return s, false
	}
	out := s.clone()
	out.Slots[i].IsLoaded = true
	return Swap(out, i), true
}

// Swap activates slot i and empties every other slot. Emptying stops fetches
// and playback of content that is no longer shown.
func Swap(s State, i int) State {
	out := s.clone()
	if i < 0 || i >= len(out.Slots) {
		return out
	}
	for j := range out.Slots {
		if j == i {
			out.Slots[j].IsActive = true
			continue
		}
		out.Slots[j] = BufferSlot{}
	}
	out.Next = (i + 1) % len(out.Slots)
	return out
}

// Clear empties every slot.
func Clear(s State) State {
	out := s.clone()
	for j := range out.Slots {
		out.Slots[j] = BufferSlot{}
	}
	return out
}
