package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Binder decodes a raw message body into a Go value. The client uses it to
// parse every inbound body before dispatch, and Context.Bind reuses it.
type Binder interface {
	Bind(data []byte, v any) error
}

// JSONBinder decodes JSON bodies. With UseNumber set, numbers decode to
// json.Number instead of float64.
type JSONBinder struct {
	UseNumber bool
}

func (b JSONBinder) Bind(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if b.UseNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("json: trailing data after value")
	}
	return nil
}

// decodeBody parses data into a structured value with b.
func decodeBody(b Binder, data []byte) (any, error) {
	var body any
	if err := b.Bind(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}
