package network

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHazenWilliamsResistance(t *testing.T) {
	res := HazenWilliams{C: 130}.Resistance(100, 0.1, 0, DefaultConfig())

	assert.InEpsilon(t, 9619, res.R, 0.005)
	assert.Equal(t, 1.852, res.N)
	assert.InDelta(t, 1.90, HeadFromFlow(0.01, res.R, res.N), 0.01)

	again := HazenWilliams{C: 130}.Resistance(100, 0.1, 0.5, DefaultConfig())
	assert.Equal(t, res, again, "Hazen-Williams resistance must not depend on flow")
}

func TestDarcyWeisbachDefaultFrictionAtZeroFlow(t *testing.T) {
	cfg := DefaultConfig()
	res := DarcyWeisbach{RoughnessMM: 0.26}.Resistance(100, 0.1, 0, cfg)

	area := math.Pi * 0.1 * 0.1 / 4
	want := 0.02 * 100 / (0.1 * 2 * cfg.Gravity * area * area)
	assert.Equal(t, 0.02, res.FrictionFactor)
	assert.Equal(t, 0.0, res.Reynolds)
	assert.InEpsilon(t, want, res.R, 1e-12)
	assert.Equal(t, 2.0, res.N)
}

func TestDarcyWeisbachRegimes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KinematicViscosity = 1e-6
	const d = 0.1
	area := math.Pi * d * d / 4
	model := DarcyWeisbach{RoughnessMM: 0.05}

	tests := []struct {
		name     string
		reynolds float64
		want     func(re float64) float64
	}{
		{"laminar", 2000, func(re float64) float64 { return 64 / re }},
		{"just below transition", 2299, func(re float64) float64 { return 64 / re }},
		{"turbulent", 2600, func(re float64) float64 { return SwameeJain(0.05e-3, d, re) }},
		{"fully turbulent", 1e6, func(re float64) float64 { return SwameeJain(0.05e-3, d, re) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.reynolds * cfg.KinematicViscosity / d * area
			res := model.Resistance(100, d, -q, cfg)

			require.InEpsilon(t, tt.reynolds, res.Reynolds, 1e-9)
			assert.InEpsilon(t, tt.want(res.Reynolds), res.FrictionFactor, 1e-12)
			assert.InEpsilon(t, res.FrictionFactor*100/(d*2*cfg.Gravity*area*area), res.R, 1e-12)
		})
	}
}

func TestSwameeJain(t *testing.T) {
	// ε/D = 0.0026, Re = 1e5; Colebrook gives about 0.0266.
	assert.InDelta(t, 0.0268, SwameeJain(0.00026, 0.1, 1e5), 0.0005)
}

func TestFlowFromHead(t *testing.T) {
	assert.Equal(t, 0.0, FlowFromHead(1, 0, 2), "zero resistance")
	assert.Equal(t, 0.0, FlowFromHead(0, 100, 2), "zero head")
	assert.InDelta(t, 0.1, FlowFromHead(1, 100, 2), 1e-12)
	assert.InDelta(t, -0.1, FlowFromHead(-1, 100, 2), 1e-12)
}

func TestNewFrictionModel(t *testing.T) {
	m, err := NewFrictionModel(MethodHazenWilliams, 120)
	require.NoError(t, err)
	assert.Equal(t, HazenWilliams{C: 120}, m)
	assert.False(t, m.FlowDependent())

	m, err = NewFrictionModel(MethodDarcyWeisbach, 0.1)
	require.NoError(t, err)
	assert.Equal(t, DarcyWeisbach{RoughnessMM: 0.1}, m)
	assert.True(t, m.FlowDependent())

	_, err = NewFrictionModel("manning", 0.013)
	assert.Error(t, err)
}
