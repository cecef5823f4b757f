package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `json:"name" yaml:"name"`
	Tables int    `json:"tables" yaml:"tables"`
	Seed   uint64 `json:"seed" yaml:"seed"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json", "yaml"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestByExtension(t *testing.T) {
	assert.Equal(t, "yaml", ByExtension("params.yaml").Name())
	assert.Equal(t, "yaml", ByExtension("PARAMS.YML").Name())
	assert.Equal(t, Default.Name(), ByExtension("params.json").Name())
	assert.Equal(t, Default.Name(), ByExtension("params").Name())
}

func TestRoundTrip(t *testing.T) {
	in := sample{Name: "cp", Tables: 10, Seed: 1<<63 + 7}

	for _, c := range []Codec{JSON{}, GoJSON{}, YAML{}} {
		t.Run(c.Name(), func(t *testing.T) {
			var out sample
			require.NoError(t, c.Unmarshal(MustMarshal(c, in), &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestGoJSONKeepsNumbers(t *testing.T) {
	var m map[string]any
	require.NoError(t, GoJSON{}.Unmarshal([]byte(`{"seed": 18446744073709551615}`), &m))

	s, ok := m["seed"].(interface{ String() string })
	require.True(t, ok)
	assert.Equal(t, "18446744073709551615", s.String())
}

func TestMustMarshalPanics(t *testing.T) {
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
