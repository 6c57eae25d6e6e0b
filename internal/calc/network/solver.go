package network

import (
	"context"
	"fmt"
	"math"
)

const (
	// Head differences below this are treated as zero when linearizing a pipe.
	negligibleHead = 1e-6
	// Head difference used to linearize a pipe that carries no driving head.
	fallbackHead = 1e-3
	// Flows below this (m³/s) are treated as no flow.
	negligibleFlow = 1e-9
)

type pipeState struct {
	src       Pipe
	from, to  int
	lengthM   float64
	diameterM float64
	model     FrictionModel
	res       Resistance
	flow      float64 // m³/s, positive from -> to
}

// state is the private working copy of one solve. Nodes and pipes are
// addressed by their position in the validated network.
type state struct {
	cfg    Config
	nodes  []Node
	hgl    []float64
	demand []float64 // m³/s
	pipes  []pipeState
	adj    [][]int // pipe indices touching each node

	iterations int
	maxChange  float64
	converged  bool
}

func newState(net Network, cfg Config) (*state, error) {
	s := &state{
		cfg:    cfg,
		nodes:  append([]Node(nil), net.Nodes...),
		hgl:    make([]float64, len(net.Nodes)),
		demand: make([]float64, len(net.Nodes)),
		pipes:  make([]pipeState, 0, len(net.Pipes)),
		adj:    make([][]int, len(net.Nodes)),
	}

	index := make(map[string]int, len(net.Nodes))
	seed, seeded := 0.0, false
	for i, n := range net.Nodes {
		index[n.ID] = i
		if n.IsReservoir && !seeded {
			seed, seeded = n.Elevation, true
		}
	}

	for i, n := range net.Nodes {
		switch {
		case n.IsReservoir:
			s.hgl[i] = n.Elevation
		case seeded:
			s.hgl[i] = seed
		default:
			s.hgl[i] = n.Elevation
		}
		if !n.IsReservoir {
			s.demand[i] = n.Demand / 1000
		}
	}

	var issues issueList
	for i, p := range net.Pipes {
		from, okFrom := index[p.StartNode]
		to, okTo := index[p.EndNode]
		if !okFrom || !okTo {
			issues.add(IssueUnknownNode, fmt.Sprintf("pipes[%d]", i), p.ID,
				fmt.Sprintf("pipe references unknown node (%s -> %s)", p.StartNode, p.EndNode))
			continue
		}
		if from == to {
			issues.add(IssueSelfLoop, fmt.Sprintf("pipes[%d]", i), p.ID, "start and end node must differ")
			continue
		}
		model, err := NewFrictionModel(cfg.Method, p.Roughness)
		if err != nil {
			issues.add(IssueUnknownMethod, "config.method", "", err.Error())
			break
		}
		ps := pipeState{
			src:       p,
			from:      from,
			to:        to,
			lengthM:   p.Length,
			diameterM: p.Diameter / 1000,
			model:     model,
		}
		ps.res = model.Resistance(ps.lengthM, ps.diameterM, 0, cfg)
		s.adj[from] = append(s.adj[from], len(s.pipes))
		s.adj[to] = append(s.adj[to], len(s.pipes))
		s.pipes = append(s.pipes, ps)
	}
	if err := issues.err(); err != nil {
		return nil, err
	}
	return s, nil
}

// refreshResistances recomputes flow-dependent resistances from the flow of
// the previous iteration. Hazen-Williams pipes keep their initial value.
func (s *state) refreshResistances() {
	for i := range s.pipes {
		p := &s.pipes[i]
		if !p.model.FlowDependent() {
			continue
		}
		p.res = p.model.Resistance(p.lengthM, p.diameterM, p.flow, s.cfg)
	}
}

// updateFlows sets every pipe's flow from the current heads.
func (s *state) updateFlows() {
	for i := range s.pipes {
		p := &s.pipes[i]
		p.flow = FlowFromHead(s.hgl[p.from]-s.hgl[p.to], p.res.R, p.res.N)
	}
}

// relax corrects the head of junction j with every other head held fixed and
// returns the size of the correction.
func (s *state) relax(j int) float64 {
	inflow, coeff := 0.0, 0.0
	for _, k := range s.adj[j] {
		p := &s.pipes[k]
		other := p.to
		if p.to == j {
			other = p.from
		}
		dH := s.hgl[other] - s.hgl[j]
		q := FlowFromHead(dH, p.res.R, p.res.N)
		inflow += q

		if math.Abs(dH) > negligibleHead {
			coeff += math.Abs(q) / (p.res.N * math.Abs(dH))
		} else {
			qe := FlowFromHead(fallbackHead, p.res.R, p.res.N)
			coeff += math.Abs(qe) / (p.res.N * fallbackHead)
		}
	}

	imbalance := inflow - s.demand[j]
	if coeff < nearzero {
		return 0
	}
	// d(inflow)/dH_j = -coeff, so the Newton step raises the head when
	// more water arrives than is drawn.
	delta := s.cfg.Omega * imbalance / coeff
	s.hgl[j] += delta
	return math.Abs(delta)
}

// iterate runs one outer iteration and returns the largest head change.
func (s *state) iterate() float64 {
	if s.cfg.Method == MethodDarcyWeisbach {
		s.refreshResistances()
	}
	maxChange := 0.0
	for j, n := range s.nodes {
		if n.IsReservoir {
			continue
		}
		if d := s.relax(j); d > maxChange {
			maxChange = d
		}
	}
	s.updateFlows()
	return maxChange
}

// run iterates until the largest head change drops below the configured
// accuracy or the iteration cap is reached. ctx is checked once per iteration.
func (s *state) run(ctx context.Context) error {
	for s.iterations < s.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("solve aborted after %d iterations: %w", s.iterations, err)
		}
		s.maxChange = s.iterate()
		s.iterations++
		if s.maxChange < s.cfg.HGLAccuracy {
			s.converged = true
			return nil
		}
	}
	return nil
}

// finite reports whether every head and flow is a finite number.
func (s *state) finite() bool {
	for _, h := range s.hgl {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			return false
		}
	}
	for _, p := range s.pipes {
		if math.IsNaN(p.flow) || math.IsInf(p.flow, 0) || math.IsNaN(p.res.R) || math.IsInf(p.res.R, 0) {
			return false
		}
	}
	return true
}

// reachable marks the nodes connected to at least one reservoir.
func (s *state) reachable() []bool {
	seen := make([]bool, len(s.nodes))
	queue := make([]int, 0, len(s.nodes))
	for i, n := range s.nodes {
		if n.IsReservoir {
			seen[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, k := range s.adj[i] {
			p := s.pipes[k]
			for _, next := range [2]int{p.from, p.to} {
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
	}
	return seen
}

// Solve runs the nodal solver over a validated network and post-processes the
// heads into a Result. A network that fails the structural checks yields a
// *ValidationError; a run that produces non-finite values yields ErrCalculation.
func Solve(ctx context.Context, net Network, cfg Config) (Result, error) {
	s, err := newState(net, cfg)
	if err != nil {
		return Result{}, err
	}
	if err := s.run(ctx); err != nil {
		return Result{}, err
	}
	res := s.result()
	if !s.finite() {
		return Result{}, fmt.Errorf("%w: solver produced non-finite heads or flows", ErrCalculation)
	}
	return res, nil
}
