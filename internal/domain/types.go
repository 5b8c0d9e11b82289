package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is an opaque server-assigned identifier. The backend emits numbers in
// most payloads and strings in a few; both decode to the same ID.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" || string(id) == "0" }

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

// Timestamp decodes the handful of layouts the backend uses. A zero value
// encodes as null.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

func ParseTimestamp(v string) (Timestamp, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", v)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date renders the timestamp as a calendar date, or fallback when unset.
func (t Timestamp) Date(fallback string) string {
	if t.IsZero() {
		return fallback
	}
	return t.Local().Format("02/01/2006")
}

func hasText(s string) bool { return strings.TrimSpace(s) != "" }
