// Package dispatch routes decoded frames to handlers by their type tag.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/urlpusher/core/logx"
	"github.com/gaspardpetit/urlpusher/internal/metrics"
	"github.com/gaspardpetit/urlpusher/internal/wire"
)

var (
	// ErrMalformed wraps frames that could not be decoded as an envelope.
	ErrMalformed = errors.New("malformed frame")
	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panic")
)

// HandlerFunc handles the payload of one frame type.
type HandlerFunc func(payload json.RawMessage) error

// Dispatcher maps frame types to handlers. It is not safe for concurrent use;
// register everything before the connection starts and dispatch from the loop.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	log      zerolog.Logger
}

// New returns an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		log:      logx.Component("dispatch"),
	}
}

// Handle registers h for typ, replacing any previous handler.
func (d *Dispatcher) Handle(typ string, h HandlerFunc) {
	d.handlers[typ] = h
}

// HandleString registers a handler for frames whose payload is a JSON string.
func (d *Dispatcher) HandleString(typ string, h func(string)) {
	d.Handle(typ, func(raw json.RawMessage) error {
		s, err := wire.StringPayload(raw)
		if err != nil {
			return err
		}
		h(s)
		return nil
	})
}

// Types lists the registered frame types.
func (d *Dispatcher) Types() []string {
	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch decodes frame and runs the matching handler synchronously. Every
// failure stays inside this call: malformed frames and handler errors are
// returned, unknown types are dropped and a panicking handler is recovered.
func (d *Dispatcher) Dispatch(frame []byte) (err error) {
	env, derr := wire.Decode(frame)
	if derr != nil {
		metrics.RecordFrame("malformed")
		return fmt.Errorf("%w: %v", ErrMalformed, derr)
	}
	h, ok := d.handlers[env.Type]
	if !ok {
		metrics.RecordFrame("unknown")
		d.log.Debug().Str("type", env.Type).Msg("ignoring unknown frame type")
		return nil
	}
	metrics.RecordFrame(env.Type)
	d.log.Debug().Str("type", env.Type).Msg("<-")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, env.Type, r)
		}
	}()
	if herr := h(env.Payload); herr != nil {
		return fmt.Errorf("handle %s: %w", env.Type, herr)
	}
	return nil
}
