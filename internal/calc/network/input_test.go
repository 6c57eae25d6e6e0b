package network

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueDecodesStringsAndNumbers(t *testing.T) {
	var in Input
	payload := `{
		"nodes": [
			{"id": "A", "elevation_m": 100, "is_reservoir": true},
			{"id": "B", "elevation_m": "90,5", "demand_lps": null}
		],
		"pipes": [{"id": "P1", "start_node": "A", "end_node": "B", "length_m": 1e2, "diameter_mm": "100", "roughness": 130}],
		"config": {"method": "darcy-weisbach", "omega": 0.8}
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &in))

	assert.Equal(t, Value("100"), in.Nodes[0].Elevation)
	assert.Equal(t, Value("90,5"), in.Nodes[1].Elevation)
	assert.True(t, in.Nodes[1].Demand.Empty())
	assert.Equal(t, Value("1e2"), in.Pipes[0].Length)
	assert.Equal(t, Value("0.8"), in.Config.Omega)

	f, err := in.Nodes[1].Elevation.Float()
	require.NoError(t, err)
	assert.Equal(t, 90.5, f)
}

func TestValueRejectsObjects(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &v))
}

func TestValueFloat(t *testing.T) {
	for _, bad := range []Value{"", "  ", "abc", "NaN", "Inf", "1e400"} {
		_, err := bad.Float()
		assert.Error(t, err, "value %q", bad)
	}
	f, err := Value(" -3.25 ").Float()
	require.NoError(t, err)
	assert.Equal(t, -3.25, f)
}

func TestInputDecodesYAML(t *testing.T) {
	doc := `
nodes:
  - id: R
    elevation_m: 50
    is_reservoir: true
  - id: J
    elevation_m: 20
    demand_lps: 2.5
pipes:
  - {id: P, start_node: R, end_node: J, length_m: 100, diameter_mm: 80, roughness: 120}
config:
  method: hazen-williams
`
	var in Input
	require.NoError(t, yaml.Unmarshal([]byte(doc), &in))
	require.Len(t, in.Nodes, 2)
	assert.Equal(t, Value("2.5"), in.Nodes[1].Demand)
	assert.Equal(t, MethodHazenWilliams, in.Config.Method)

	_, _, err := Validate(in, DefaultConfig())
	assert.NoError(t, err)
}

func TestConfigInputSet(t *testing.T) {
	var c ConfigInput
	require.NoError(t, c.Set("Method", " Darcy-Weisbach "))
	require.NoError(t, c.Set("max_iterations", "40"))
	assert.Equal(t, MethodDarcyWeisbach, c.Method)
	assert.Equal(t, Value("40"), c.MaxIterations)
	assert.Error(t, c.Set("colour", "blue"))
}
