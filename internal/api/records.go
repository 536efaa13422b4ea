package api

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Kind names one entity collection exposed by the backend.
type Kind string

const (
	KindDemands     Kind = "demands"
	KindProjects    Kind = "projects"
	KindAllocations Kind = "allocations"
)

// Kinds lists every kind the client tracks, in display order.
var Kinds = []Kind{KindDemands, KindProjects, KindAllocations}

// Record is one entity as returned by the backend. The payload is opaque to
// the client; accessors only read it for display.
type Record struct {
	Key  string
	Data json.RawMessage
}

type envelope struct {
	State struct {
		Data json.RawMessage `json:"data"`
	} `json:"state"`
}

// ID returns data.linearId.id, or "" when the payload has none.
func (r Record) ID() string {
	var v struct {
		LinearID struct {
			ID string `json:"id"`
		} `json:"linearId"`
	}
	if err := json.Unmarshal(r.Data, &v); err != nil {
		return ""
	}
	return v.LinearID.ID
}

// Field returns a top-level field rendered as text. Strings are returned
// unquoted, null and missing fields as "".
func (r Record) Field(name string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return ""
	}
	raw, ok := m[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// List returns a top-level array field as strings.
func (r Record) List(name string) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal(m[name], &out); err != nil {
		return nil
	}
	return out
}

// decodeCollection reads either a JSON array of envelopes or an object of
// key -> envelope and returns the records in document order.
func decodeCollection(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '[' && delim != '{') {
		return nil, fmt.Errorf("decode collection: unexpected token %v", tok)
	}

	var out []Record
	for i := 0; dec.More(); i++ {
		key := strconv.Itoa(i)
		if delim == '{' {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("decode collection key: %w", err)
			}
			key, _ = kt.(string)
		}
		var env envelope
		if err := dec.Decode(&env); err != nil {
			return nil, fmt.Errorf("decode collection entry %s: %w", key, err)
		}
		out = append(out, Record{Key: key, Data: env.State.Data})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return out, nil
}
