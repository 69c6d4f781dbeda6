// Package optional distinguishes an omitted JSON field from an explicit null.
package optional

import (
	"bytes"
	"encoding/json"
)

// ID is a tri-state identifier: absent, null, or a value.
type ID struct {
	Present bool
	Value   *uint
}

// Set returns a present ID pointing at v.
func Set(v uint) ID {
	return ID{Present: true, Value: &v}
}

// Null returns a present ID with no value.
func Null() ID {
	return ID{Present: true}
}

// UnmarshalJSON is only invoked when the field appears in the payload.
func (o *ID) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}
	var v uint
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
