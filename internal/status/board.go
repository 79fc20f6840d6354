// Package status publishes the agent's state to local HTTP clients: the
// connection status, build information and the render snapshot an external
// renderer follows.
package status

import (
	"sync"
	"time"

	"github.com/gaspardpetit/urlpusher/internal/overlay"
	"github.com/gaspardpetit/urlpusher/internal/surface"
)

// Status is served on /status.
type Status struct {
	Role             string    `json:"role"`
	State            string    `json:"state"`
	ServerURL        string    `json:"server_url"`
	ClientID         string    `json:"client_id"`
	ClientName       string    `json:"client_name"`
	ReconnectPending bool      `json:"reconnect_pending"`
	LastError        string    `json:"last_error,omitempty"`
	ConnectedAt      time.Time `json:"connected_at,omitempty"`
	Version          string    `json:"version"`
	Entries          int       `json:"entries,omitempty"`
}

type VersionInfo struct {
	Version   string `json:"version"`
	BuildSHA  string `json:"build_sha"`
	BuildDate string `json:"build_date"`
}

// Snapshot is the full render state. Seq increases with every change.
type Snapshot struct {
	Seq      uint64         `json:"seq"`
	Surfaces []surface.View `json:"surfaces"`
	Overlay  overlay.State  `json:"overlay"`
}

// Board is a concurrency safe copy of agent state. Components on the event
// loop write to it; HTTP handlers read from it.
type Board struct {
	mu       sync.RWMutex
	status   Status
	version  VersionInfo
	surfaces map[surface.Class]surface.View
	overlay  overlay.State
	seq      uint64
	watchers map[chan Snapshot]struct{}
}

// NewBoard returns an empty board in the disconnected state.
func NewBoard() *Board {
	return &Board{
		status:   Status{State: "disconnected", Version: "dev"},
		version:  VersionInfo{Version: "dev", BuildSHA: "unknown", BuildDate: "unknown"},
		surfaces: map[surface.Class]surface.View{},
		watchers: map[chan Snapshot]struct{}{},
	}
}

func (b *Board) SetBuildInfo(v, sha, date string) {
	b.mu.Lock()
	b.version = VersionInfo{Version: v, BuildSHA: sha, BuildDate: date}
	b.status.Version = v
	b.mu.Unlock()
}

func (b *Board) Version() VersionInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Update applies fn to the status under the lock.
func (b *Board) Update(fn func(*Status)) {
	b.mu.Lock()
	fn(&b.status)
	b.mu.Unlock()
}

func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// RenderSurface records a surface view and notifies watchers.
func (b *Board) RenderSurface(v surface.View) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surfaces[v.Class] = v
	b.publishLocked()
}

// RenderOverlay records the overlay state and notifies watchers.
func (b *Board) RenderOverlay(s overlay.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlay = s
	b.publishLocked()
}

// ResetRender drops every surface view and hides the overlay, the render
// state of a freshly started instance.
func (b *Board) ResetRender() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surfaces = map[surface.Class]surface.View{}
	b.overlay = overlay.State{}
	b.publishLocked()
}

// Snapshot returns the current render state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// Watch returns a channel that receives the latest snapshot after every
// change, starting with the current one. A slow reader only ever sees the
// newest snapshot. The returned func stops the watch.
func (b *Board) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	ch <- b.snapshotLocked()
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, ch)
			b.mu.Unlock()
		})
	}
}

func (b *Board) snapshotLocked() Snapshot {
	s := Snapshot{Seq: b.seq, Overlay: b.overlay}
	for _, c := range surface.Classes {
		if v, ok := b.surfaces[c]; ok {
			s.Surfaces = append(s.Surfaces, v)
		}
	}
	return s
}

func (b *Board) publishLocked() {
	b.seq++
	snap := b.snapshotLocked()
	for ch := range b.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
