package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Decoding into map[string]any yields float64 numbers, so seeds above 2^53
// lose precision unless the target implements json.Unmarshaler.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}
