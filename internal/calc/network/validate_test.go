package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresReservoir(t *testing.T) {
	in := singlePipeInput()
	in.Nodes[0].IsReservoir = false

	_, err := Calculate(in)
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, IssueNoReservoir, ve.Issues[0].Kind)
	assert.Equal(t, map[string]string{"network": "at least one node must be a reservoir"}, ve.Fields())
	assert.Equal(t, "invalid", Status(Result{}, err))
}

func TestValidateReportsEveryFieldIssue(t *testing.T) {
	in := Input{
		Nodes: []NodeInput{
			{ID: "A", Elevation: "100", IsReservoir: true},
			{ID: "A", Elevation: "abc"},
			{ID: " ", Elevation: "10", Demand: "x"},
		},
		Pipes: []PipeInput{
			{ID: "P1", StartNode: "A", EndNode: "Z", Length: "0", Diameter: "5", Roughness: "130"},
			{ID: "P1", StartNode: "A", EndNode: "A", Length: "10", Diameter: "100", Roughness: "-1"},
		},
		Config: ConfigInput{Omega: "2.5", MaxIterations: "1.5"},
	}

	_, _, err := Validate(in, DefaultConfig())
	ve, ok := AsValidationError(err)
	require.True(t, ok)

	fields := ve.Fields()
	for _, key := range []string{
		"config.max_iterations",
		"nodes[1].id",
		"nodes[1].elevation_m",
		"nodes[2].id",
		"nodes[2].demand_lps",
		"pipes[0].end_node",
		"pipes[0].length_m",
		"pipes[0].diameter_mm",
		"pipes[1].id",
		"pipes[1].end_node",
		"pipes[1].roughness",
	} {
		assert.Contains(t, fields, key)
	}
	assert.True(t, ve.Has(IssueDuplicateID))
	assert.True(t, ve.Has(IssueSelfLoop))
	assert.True(t, ve.Has(IssueMissingID))
	assert.NotContains(t, fields, "config.omega", "config constraints are checked only once the overrides parse")
}

func TestValidateConfigConstraints(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
		kind  IssueKind
	}{
		{"unknown method", func(c *Config) { c.Method = "manning" }, "config.method", IssueUnknownMethod},
		{"omega too large", func(c *Config) { c.Omega = 2 }, "config.omega", IssueInvalidConfig},
		{"zero accuracy", func(c *Config) { c.HGLAccuracy = 0 }, "config.hgl_accuracy", IssueInvalidConfig},
		{"no iterations", func(c *Config) { c.MaxIterations = 0 }, "config.max_iterations", IssueInvalidConfig},
		{"inverted pressure band", func(c *Config) { c.MaxPressure = c.MinPressure }, "config.max_pressure", IssueInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			ve, ok := AsValidationError(ValidateConfig(cfg))
			require.True(t, ok)
			require.Len(t, ve.Issues, 1)
			assert.Equal(t, tt.field, ve.Issues[0].Field)
			assert.Equal(t, tt.kind, ve.Issues[0].Kind)
		})
	}

	assert.NoError(t, ValidateConfig(DefaultConfig()))
}

func TestValidateEmptyNetwork(t *testing.T) {
	_, _, err := Validate(Input{}, DefaultConfig())
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, IssueEmptyNetwork, ve.Issues[0].Kind)
}

func TestValidateAppliesOverrides(t *testing.T) {
	in := singlePipeInput()
	in.Nodes[1].Demand = ""
	in.Config = ConfigInput{Method: MethodDarcyWeisbach, MinPressure: "10,5", MaxIterations: "50"}

	net, cfg, err := Validate(in, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, MethodDarcyWeisbach, cfg.Method)
	assert.Equal(t, 10.5, cfg.MinPressure)
	assert.Equal(t, 50, cfg.MaxIterations)
	assert.Equal(t, DefaultConfig().MaxPressure, cfg.MaxPressure)
	assert.Equal(t, 0.0, net.Nodes[1].Demand, "empty demand defaults to zero")
}

func TestInputFromRoundTrip(t *testing.T) {
	net, cfg, err := Validate(loopedInput(), DefaultConfig())
	require.NoError(t, err)

	again, cfg2, err := Validate(InputFrom(net, cfg), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, net, again)
	assert.Equal(t, cfg, cfg2)
}

func TestSortedFields(t *testing.T) {
	got := SortedFields(map[string]string{"pipes[0].id": "", "network": "", "nodes[1].id": ""})
	assert.Equal(t, []string{"network", "nodes[1].id", "pipes[0].id"}, got)
}
