// Package directory keeps the lister's copy of the controller's display
// entries. The copy is only ever replaced by a list frame from the
// controller; edits are sent upstream and come back through the next list.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/internal/dispatch"
	"github.com/gaspardpetit/urlpusher/internal/metrics"
	"github.com/gaspardpetit/urlpusher/internal/wire"
)

// ErrNoID is returned by Update and Delete for entries without an id.
var ErrNoID = errors.New("entry has no id")

// Sender delivers an outbound frame. conn.Manager implements it.
type Sender interface {
	Send(typ string, payload any) error
}

// Directory is the cached entry collection. Its methods must be called on
// the event loop that delivers inbound frames.
type Directory struct {
	send     Sender
	entries  []wire.DisplayEntry
	onChange func([]wire.DisplayEntry)
	log      zerolog.Logger
}

// New returns an empty directory. onChange, if set, receives a copy of the
// collection after every replacement.
func New(send Sender, onChange func([]wire.DisplayEntry)) *Directory {
	return &Directory{
		send:     send,
		entries:  []wire.DisplayEntry{},
		onChange: onChange,
		log:      logx.Component("directory"),
	}
}

// Register routes list frames to the directory.
func (d *Directory) Register(disp *dispatch.Dispatcher) {
	disp.Handle(wire.TypeList, d.handleList)
}

func (d *Directory) handleList(raw json.RawMessage) error {
	list, err := wire.DecodeEntries(raw)
	if err != nil {
		return err
	}
	d.Replace(list)
	return nil
}

// Replace discards the cache and installs list.
func (d *Directory) Replace(list []wire.DisplayEntry) {
	d.entries = append(make([]wire.DisplayEntry, 0, len(list)), list...)
	metrics.SetDirectoryEntries(len(d.entries))
	d.log.Info().Int("entries", len(d.entries)).Msg("directory updated")
	if d.onChange != nil {
		d.onChange(d.Entries())
	}
}

// Entries returns a copy of the cached entries in controller order.
func (d *Directory) Entries() []wire.DisplayEntry {
	out := make([]wire.DisplayEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Lookup finds an entry by id.
func (d *Directory) Lookup(id string) (wire.DisplayEntry, bool) {
	for _, e := range d.entries {
		if e.ID == id {
			return e, true
		}
	}
	return wire.DisplayEntry{}, false
}

// Create asks the controller for a new blank entry.
func (d *Directory) Create() error {
	return d.sendf(wire.TypeSet, struct{}{}, "create")
}

// Update sends the full record; the controller replaces the entry with the
// same id.
func (d *Directory) Update(e wire.DisplayEntry) error {
	if e.ID == "" {
		return ErrNoID
	}
	return d.sendf(wire.TypeSet, e, "update")
}

// Delete asks the controller to drop the entry with id.
func (d *Directory) Delete(id string) error {
	if id == "" {
		return ErrNoID
	}
	return d.sendf(wire.TypeDelete, id, "delete")
}

// Refresh asks the controller to resend the list.
func (d *Directory) Refresh() error {
	return d.sendf(wire.TypeList, nil, "refresh")
}

func (d *Directory) sendf(typ string, payload any, op string) error {
	if err := d.send.Send(typ, payload); err != nil {
		d.log.Warn().Err(err).Str("op", op).Msg("request not sent")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
