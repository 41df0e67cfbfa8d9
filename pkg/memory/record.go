package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Location is a remembered tap point.
type Location struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Context string `json:"context"`
	FoundAt string `json:"found_at"`
}

// ActionEntry is one line of the success or failure log.
type ActionEntry struct {
	Action  string `json:"action"`
	Context string `json:"context"`
	Reason  string `json:"reason,omitempty"`
	Time    string `json:"time"`
}

// Record is the persisted memory document.
type Record struct {
	ElementLocations  Locations      `json:"element_locations"`
	SuccessfulActions []ActionEntry  `json:"successful_actions"`
	FailedActions     []ActionEntry  `json:"failed_actions"`
	AppKnowledge      map[string]any `json:"app_knowledge"`
	SessionContext    map[string]any `json:"session_context"`
}

func newRecord() Record {
	return Record{
		ElementLocations:  Locations{byKey: map[string]Location{}},
		SuccessfulActions: []ActionEntry{},
		FailedActions:     []ActionEntry{},
		AppKnowledge:      map[string]any{},
		SessionContext:    map[string]any{},
	}
}

// Locations is a string-keyed map that remembers insertion order, both in
// memory and through a JSON round trip.
type Locations struct {
	keys  []string
	byKey map[string]Location
}

// Get returns the location stored under key.
func (l *Locations) Get(key string) (Location, bool) {
	loc, ok := l.byKey[key]
	return loc, ok
}

// Set upserts key. An existing key keeps its position.
func (l *Locations) Set(key string, loc Location) {
	if l.byKey == nil {
		l.byKey = map[string]Location{}
	}
	if _, ok := l.byKey[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.byKey[key] = loc
}

// Delete removes key and reports whether it was present.
func (l *Locations) Delete(key string) bool {
	if _, ok := l.byKey[key]; !ok {
		return false
	}
	delete(l.byKey, key)
	for i, k := range l.keys {
		if k == key {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys oldest first.
func (l *Locations) Keys() []string {
	return append([]string(nil), l.keys...)
}

// Len returns the number of stored locations.
func (l *Locations) Len() int {
	return len(l.keys)
}

// MarshalJSON writes the object with keys in insertion order.
func (l Locations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range l.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(l.byKey[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object keeping the key order of the document.
func (l *Locations) UnmarshalJSON(data []byte) error {
	l.keys = nil
	l.byKey = map[string]Location{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil // null
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("element_locations: expected object, got %v", tok)
	}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("element_locations: expected key, got %v", kt)
		}
		var loc Location
		if err := dec.Decode(&loc); err != nil {
			return fmt.Errorf("element_locations[%q]: %w", key, err)
		}
		l.Set(key, loc)
	}
	_, err = dec.Token() // closing brace
	return err
}
