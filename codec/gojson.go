package codec

import (
	"bytes"

	gojson "github.com/goccy/go-json"
)

// GoJSON is a JSON codec backed by github.com/goccy/go-json.
type GoJSON struct{}

// Marshal encodes the value to indented JSON.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.MarshalIndent(v, "", "  ") }

// Unmarshal decodes the JSON data into v. Numbers decoded into interface
// values are kept as json.Number.
func (GoJSON) Unmarshal(data []byte, v any) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Name returns the unique name of the codec ("go-json").
func (GoJSON) Name() string { return "go-json" }
