package network

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singlePipeInput() Input {
	return Input{
		Nodes: []NodeInput{
			{ID: "A", Elevation: "100", IsReservoir: true},
			{ID: "B", Elevation: "90", Demand: "10"},
		},
		Pipes: []PipeInput{
			{ID: "P1", StartNode: "A", EndNode: "B", Length: "100", Diameter: "100", Roughness: "130"},
		},
	}
}

// loopedInput is one reservoir feeding four junctions through two loops.
func loopedInput() Input {
	return Input{
		Nodes: []NodeInput{
			{ID: "R1", Elevation: "120", IsReservoir: true},
			{ID: "J1", Elevation: "80", Demand: "10"},
			{ID: "J2", Elevation: "78", Demand: "15"},
			{ID: "J3", Elevation: "75", Demand: "12"},
			{ID: "J4", Elevation: "76", Demand: "8"},
		},
		Pipes: []PipeInput{
			{ID: "P1", StartNode: "R1", EndNode: "J1", Length: "500", Diameter: "250", Roughness: "130"},
			{ID: "P2", StartNode: "J1", EndNode: "J2", Length: "400", Diameter: "200", Roughness: "130"},
			{ID: "P3", StartNode: "J1", EndNode: "J3", Length: "400", Diameter: "200", Roughness: "130"},
			{ID: "P4", StartNode: "J2", EndNode: "J4", Length: "300", Diameter: "150", Roughness: "130"},
			{ID: "P5", StartNode: "J4", EndNode: "J3", Length: "300", Diameter: "150", Roughness: "130"},
		},
		Config: ConfigInput{MaxIterations: "2000", HGLAccuracy: "0.000001"},
	}
}

func TestCalculateSinglePipeScenario(t *testing.T) {
	res, err := Calculate(singlePipeInput())
	require.NoError(t, err)
	require.True(t, res.Converged)

	p, ok := res.Pipe("P1")
	require.True(t, ok)
	assert.InDelta(t, 10, p.Flow, 0.01)
	assert.InDelta(t, 1.90, p.Headloss, 0.01)
	assert.InDelta(t, 1.273, p.Velocity, 0.001)

	b, ok := res.Node("B")
	require.True(t, ok)
	assert.InDelta(t, 98.10, b.HGL, 0.01)
	assert.InDelta(t, 8.10, b.Pressure, 0.01)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningPressureLow, res.Warnings[0].Kind)
	assert.Equal(t, "B", res.Warnings[0].Target)
	assert.Equal(t, 15.0, res.Warnings[0].Threshold)

	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, WarningPressureLow, res.Recommendations[0].Kind)
	assert.Equal(t, []string{"B"}, res.Recommendations[0].Targets)
}

func TestCalculateConservesFlowAtJunctions(t *testing.T) {
	for _, method := range []Method{MethodHazenWilliams, MethodDarcyWeisbach} {
		t.Run(string(method), func(t *testing.T) {
			in := loopedInput()
			in.Config.Method = method
			if method == MethodDarcyWeisbach {
				for i := range in.Pipes {
					in.Pipes[i].Roughness = "0.1"
				}
			}

			res, err := Calculate(in)
			require.NoError(t, err)
			require.True(t, res.Converged, "max change %g after %d iterations", res.MaxChange, res.Iterations)

			inflow := make(map[string]float64)
			for _, p := range res.Pipes {
				inflow[p.EndNode] += p.Flow
				inflow[p.StartNode] -= p.Flow
			}
			for _, n := range res.Nodes {
				if n.IsReservoir {
					continue
				}
				assert.InDelta(t, n.Demand, inflow[n.ID], 0.05, "junction %s", n.ID)
			}

			r, ok := res.Node("R1")
			require.True(t, ok)
			assert.Equal(t, 120.0, r.HGL)
			assert.InDelta(t, 45, -inflow["R1"], 0.05, "reservoir supplies total demand")
		})
	}
}

// gridInput is a size x size mesh of junctions fed at one corner.
func gridInput(size int, accuracy string) Input {
	in := Input{
		Nodes:  []NodeInput{{ID: "R", Elevation: "100", IsReservoir: true}},
		Pipes:  []PipeInput{{ID: "feed", StartNode: "R", EndNode: "J0_0", Length: "100", Diameter: "300", Roughness: "130"}},
		Config: ConfigInput{MaxIterations: "100000", HGLAccuracy: Value(accuracy)},
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			id := fmt.Sprintf("J%d_%d", i, j)
			in.Nodes = append(in.Nodes, NodeInput{ID: id, Elevation: "50", Demand: "2"})
			if i+1 < size {
				in.Pipes = append(in.Pipes, PipeInput{ID: id + "-s", StartNode: id, EndNode: fmt.Sprintf("J%d_%d", i+1, j), Length: "200", Diameter: "150", Roughness: "130"})
			}
			if j+1 < size {
				in.Pipes = append(in.Pipes, PipeInput{ID: id + "-e", StartNode: id, EndNode: fmt.Sprintf("J%d_%d", i, j+1), Length: "200", Diameter: "150", Roughness: "130"})
			}
		}
	}
	return in
}

func maxImbalance(res Result) float64 {
	inflow := make(map[string]float64)
	for _, p := range res.Pipes {
		inflow[p.EndNode] += p.Flow
		inflow[p.StartNode] -= p.Flow
	}
	worst := 0.0
	for _, n := range res.Nodes {
		if !n.IsReservoir {
			worst = math.Max(worst, math.Abs(inflow[n.ID]-n.Demand))
		}
	}
	return worst
}

// HGLAccuracy bounds the per-iteration head step. On meshes the step shrinks
// before flows balance, so balance needs a tighter tolerance.
func TestCalculateMeshBalanceFollowsAccuracy(t *testing.T) {
	loose, err := Calculate(gridInput(4, "0.001"))
	require.NoError(t, err)
	tight, err := Calculate(gridInput(4, "0.0000001"))
	require.NoError(t, err)
	require.True(t, tight.Converged, "max change %g after %d iterations", tight.MaxChange, tight.Iterations)

	assert.Greater(t, tight.Iterations, loose.Iterations)
	assert.LessOrEqual(t, maxImbalance(tight), maxImbalance(loose))
	assert.Less(t, maxImbalance(tight), 0.01)
}

func TestCalculateZeroDemandIsIdle(t *testing.T) {
	in := Input{
		Nodes: []NodeInput{
			{ID: "R", Elevation: "100", IsReservoir: true},
			{ID: "J1", Elevation: "80", Demand: "0"},
			{ID: "J2", Elevation: "70"},
		},
		Pipes: []PipeInput{
			{ID: "P1", StartNode: "R", EndNode: "J1", Length: "100", Diameter: "150", Roughness: "120"},
			{ID: "P2", StartNode: "J1", EndNode: "J2", Length: "100", Diameter: "100", Roughness: "120"},
		},
	}

	for _, method := range []Method{MethodHazenWilliams, MethodDarcyWeisbach} {
		t.Run(string(method), func(t *testing.T) {
			in.Config.Method = method
			res, err := Calculate(in)
			require.NoError(t, err)
			assert.True(t, res.Converged)
			assert.Equal(t, 1, res.Iterations)
			for _, n := range res.Nodes {
				assert.Equal(t, 100.0, n.HGL, "node %s", n.ID)
			}
			for _, p := range res.Pipes {
				assert.Equal(t, 0.0, p.Flow, "pipe %s", p.ID)
				assert.Equal(t, 0.0, p.Headloss, "pipe %s", p.ID)
			}
			for _, w := range res.Warnings {
				assert.NotEqual(t, WarningVelocityLow, w.Kind, "no velocity warning without flow")
			}
		})
	}
}

func TestDarcyWeisbachRegimeSwitching(t *testing.T) {
	// Re = 2300 in a 20 mm pipe is roughly 0.036 L/s.
	for _, tc := range []struct {
		name    string
		demand  Value
		laminar bool
	}{
		{"settles laminar", "0.03", true},
		{"settles turbulent", "0.045", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := Input{
				Nodes: []NodeInput{
					{ID: "R", Elevation: "60", IsReservoir: true},
					{ID: "J", Elevation: "20", Demand: tc.demand},
				},
				Pipes: []PipeInput{
					{ID: "P", StartNode: "R", EndNode: "J", Length: "50", Diameter: "20", Roughness: "0.0015"},
				},
				Config: ConfigInput{Method: MethodDarcyWeisbach, MaxIterations: "5000", HGLAccuracy: "0.0000001"},
			}
			res, err := Calculate(in)
			require.NoError(t, err)
			assert.True(t, res.Converged)

			p, ok := res.Pipe("P")
			require.True(t, ok)
			for _, v := range []float64{p.Flow, p.Velocity, p.Headloss, p.FrictionFactor, p.Reynolds} {
				require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
			demand, _ := tc.demand.Float()
			assert.InDelta(t, demand, p.Flow, 1e-3)
			if tc.laminar {
				require.LessOrEqual(t, p.Reynolds, 2300.0)
				assert.InEpsilon(t, 64/p.Reynolds, p.FrictionFactor, 1e-9)
			} else {
				require.Greater(t, p.Reynolds, 2300.0)
				assert.InEpsilon(t, SwameeJain(0.0015e-3, 0.02, p.Reynolds), p.FrictionFactor, 1e-9)
			}
		})
	}
}

func TestCalculateFlagsVelocityAndNegativePressure(t *testing.T) {
	in := singlePipeInput()
	in.Pipes[0].Diameter = "50"

	res, err := Calculate(in)
	require.NoError(t, err)

	kinds := warningKinds(res)
	assert.Contains(t, kinds, WarningVelocityHigh)
	assert.Contains(t, kinds, WarningPressureNegative)
	assert.NotContains(t, kinds, WarningPressureLow, "negative pressure replaces the low pressure warning")

	for _, w := range res.Warnings {
		if w.Kind == WarningPressureNegative {
			assert.Equal(t, SeverityCritical, w.Severity)
		}
	}
	assert.Len(t, res.Recommendations, 2)
}

func TestCalculateFlagsLowVelocityAndHighPressure(t *testing.T) {
	in := Input{
		Nodes: []NodeInput{
			{ID: "R", Elevation: "200", IsReservoir: true},
			{ID: "J", Elevation: "100", Demand: "0.5"},
		},
		Pipes: []PipeInput{
			{ID: "P", StartNode: "R", EndNode: "J", Length: "200", Diameter: "300", Roughness: "140"},
		},
	}
	res, err := Calculate(in)
	require.NoError(t, err)

	kinds := warningKinds(res)
	assert.ElementsMatch(t, []WarningKind{WarningPressureHigh, WarningVelocityLow}, kinds)
}

func TestCalculateReportsNonConvergence(t *testing.T) {
	in := singlePipeInput()
	in.Config.MaxIterations = "1"

	res, err := Calculate(in)
	require.NoError(t, err, "an exhausted iteration budget still yields a result")
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Contains(t, warningKinds(res), WarningNotConverged)
	assert.Equal(t, "not_converged", Status(res, nil))
}

func TestCalculateWarnsAboutIsolatedJunction(t *testing.T) {
	in := singlePipeInput()
	in.Nodes = append(in.Nodes, NodeInput{ID: "C", Elevation: "50", Demand: "0"})

	res, err := Calculate(in)
	require.NoError(t, err)
	assert.Contains(t, warningKinds(res), WarningIsolatedNode)
}

func TestCalculateKeepsReservoirHeadsFixed(t *testing.T) {
	in := loopedInput()
	in.Nodes = append(in.Nodes, NodeInput{ID: "R2", Elevation: "110", IsReservoir: true, Demand: "999"})
	in.Pipes = append(in.Pipes, PipeInput{ID: "P6", StartNode: "R2", EndNode: "J4", Length: "600", Diameter: "150", Roughness: "130"})

	res, err := Calculate(in)
	require.NoError(t, err)
	r1, _ := res.Node("R1")
	r2, _ := res.Node("R2")
	assert.Equal(t, 120.0, r1.HGL)
	assert.Equal(t, 110.0, r2.HGL)
	assert.Equal(t, 0.0, r2.Pressure)
	assert.Equal(t, 0.0, r2.Demand, "reservoir demand is ignored")
}

func TestCalculateDoesNotMutateInput(t *testing.T) {
	in := loopedInput()
	before := loopedInput()

	_, err := Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestSolveRejectsOrphanedPipes(t *testing.T) {
	net := Network{
		Nodes: []Node{{ID: "A", Elevation: 10, IsReservoir: true}, {ID: "B", Elevation: 0}},
		Pipes: []Pipe{
			{ID: "P1", StartNode: "A", EndNode: "B", Length: 10, Diameter: 100, Roughness: 120},
			{ID: "P2", StartNode: "A", EndNode: "Z", Length: 10, Diameter: 100, Roughness: 120},
		},
	}
	_, err := Solve(context.Background(), net, DefaultConfig())
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, IssueUnknownNode, ve.Issues[0].Kind)
	assert.Equal(t, "P2", ve.Issues[0].Target)
}

func TestSolveHonoursCancellation(t *testing.T) {
	net, cfg, err := Validate(singlePipeInput(), DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Solve(ctx, net, cfg)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "aborted", Status(res, err))
}

func TestDiagnosticsDeduplicate(t *testing.T) {
	d := newDiagnostics()
	d.warn(WarningPressureLow, "B", 8, 15)
	d.warn(WarningPressureLow, "B", 7, 15)
	d.warn(WarningPressureLow, "C", 9, 15)
	d.warn(WarningVelocityHigh, "P1", 4, 3)

	require.Len(t, d.warnings, 3)
	require.Len(t, d.recList, 2)
	assert.Equal(t, []string{"B", "C"}, d.recList[0].Targets)
	assert.Equal(t, 8.0, d.warnings[0].Value, "first occurrence wins")
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "converged", Status(Result{Converged: true}, nil))
	assert.Equal(t, "fault", Status(Result{}, ErrCalculation))
	assert.Equal(t, "invalid", Status(Result{}, &ValidationError{}))
}

func warningKinds(res Result) []WarningKind {
	out := make([]WarningKind, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		out = append(out, w.Kind)
	}
	return out
}
