package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DisplayEntry is one record of the controller's directory.
type DisplayEntry struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	URL          string   `json:"url"`
	DumbDuration Duration `json:"dumbDuration"`
}

// IsURL reports whether the entry pushes a document.
func (e DisplayEntry) IsURL() bool { return e.Type == TypeURL }

// IsImage reports whether the entry pushes an image.
func (e DisplayEntry) IsImage() bool { return e.Type == TypeImage }

// Duration is the controller's opaque display duration. Controllers send it
// either as a string (as typed by an operator) or as a number; it is kept
// verbatim and always re-encoded as a string.
type Duration string

func (d *Duration) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Duration(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("dumbDuration: %w", err)
	}
	*d = Duration(n.String())
	return nil
}

// Seconds interprets the duration as a count of seconds when it is numeric.
func (d Duration) Seconds() (float64, bool) {
	f, err := strconv.ParseFloat(string(d), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// DecodeEntries parses a list payload. A null payload yields an empty list.
func DecodeEntries(raw json.RawMessage) ([]DisplayEntry, error) {
	entries := []DisplayEntry{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	if entries == nil {
		entries = []DisplayEntry{}
	}
	return entries, nil
}
