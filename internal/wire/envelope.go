// Package wire defines the frames exchanged with the controller.
//
// Frames are JSON objects {"type": ..., "payload": ...}. The lower-case field
// names are canonical and are always emitted. Decoding relies on
// encoding/json's case-insensitive field matching, so peers that still send
// "Type"/"Payload" are understood.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types understood by the display agent.
const (
	TypeURL    = "url"
	TypeImage  = "img"
	TypeText   = "text"
	TypeReload = "reload"
)

// Message types used by the directory (lister) agent.
const (
	TypeList   = "list"
	TypeSet    = "set"
	TypeDelete = "delete"
)

// ErrNoType is returned for frames without a type tag.
var ErrNoType = errors.New("frame has no type")

// Envelope is the wrapper around every frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds the JSON form of an envelope. A nil payload is omitted.
func Encode(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses a frame into an envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, ErrNoType
	}
	return env, nil
}

// StringPayload extracts a string payload such as a URL or overlay text.
func StringPayload(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("payload is not a string: %w", err)
	}
	return s, nil
}
