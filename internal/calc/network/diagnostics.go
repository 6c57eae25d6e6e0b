package network

import (
	"fmt"
	"math"
)

type WarningKind string

const (
	WarningVelocityHigh     WarningKind = "velocity-high"
	WarningVelocityLow      WarningKind = "velocity-low"
	WarningPressureHigh     WarningKind = "pressure-high"
	WarningPressureLow      WarningKind = "pressure-low"
	WarningPressureNegative WarningKind = "pressure-negative"
	WarningNotConverged     WarningKind = "not-converged"
	WarningIsolatedNode     WarningKind = "isolated-node"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Warning is a threshold violation found after the solve. Target is the id of
// the node or pipe concerned; it is empty for network-wide warnings.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Severity  Severity    `json:"severity"`
	Target    string      `json:"target,omitempty"`
	Value     float64     `json:"value"`
	Threshold float64     `json:"threshold"`
	Message   string      `json:"message"`
}

type Recommendation struct {
	Kind    WarningKind `json:"kind"`
	Targets []string    `json:"targets,omitempty"`
	Message string      `json:"message"`
}

func (k WarningKind) severity() Severity {
	switch k {
	case WarningPressureNegative, WarningIsolatedNode:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

func (k WarningKind) describe(target string, value, threshold float64) string {
	switch k {
	case WarningVelocityHigh:
		return fmt.Sprintf("Pipe %s: velocity %.2f m/s exceeds maximum %.2f m/s", target, value, threshold)
	case WarningVelocityLow:
		return fmt.Sprintf("Pipe %s: velocity %.2f m/s is below minimum %.2f m/s", target, value, threshold)
	case WarningPressureHigh:
		return fmt.Sprintf("Node %s: pressure %.2f m exceeds maximum %.2f m", target, value, threshold)
	case WarningPressureLow:
		return fmt.Sprintf("Node %s: pressure %.2f m is below minimum %.2f m", target, value, threshold)
	case WarningPressureNegative:
		return fmt.Sprintf("Node %s: negative pressure %.2f m, the network cannot supply this demand", target, value)
	case WarningNotConverged:
		return fmt.Sprintf("Solver did not converge: last head change %.4g m is above tolerance %.4g m", value, threshold)
	case WarningIsolatedNode:
		return fmt.Sprintf("Node %s is not connected to any reservoir", target)
	default:
		return string(k)
	}
}

func (k WarningKind) recommendation() string {
	switch k {
	case WarningVelocityHigh:
		return "Increase the diameter of high-velocity pipes to reduce head loss and surge risk."
	case WarningVelocityLow:
		return "Reduce the diameter of low-velocity pipes or review the layout to avoid stagnation."
	case WarningPressureHigh:
		return "Consider pressure zoning or lowering the source head for high-pressure nodes."
	case WarningPressureLow:
		return "Check upstream pipe sizing or source head for low-pressure nodes."
	case WarningPressureNegative:
		return "Raise the source head or enlarge the supply pipes; the network is infeasible as specified."
	case WarningNotConverged:
		return "Increase the maximum iterations or lower the relaxation factor."
	case WarningIsolatedNode:
		return "Connect isolated nodes to a reservoir or remove them from the network."
	default:
		return ""
	}
}

// diagnostics collects warnings de-duplicated by kind and target, and one
// recommendation per kind in first-seen order.
type diagnostics struct {
	warnings []Warning
	seen     map[string]bool
	recs     map[WarningKind]int
	recList  []Recommendation
}

func newDiagnostics() *diagnostics {
	return &diagnostics{
		seen: make(map[string]bool),
		recs: make(map[WarningKind]int),
	}
}

func (d *diagnostics) warn(kind WarningKind, target string, value, threshold float64) {
	key := string(kind) + "\x00" + target
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.warnings = append(d.warnings, Warning{
		Kind:      kind,
		Severity:  kind.severity(),
		Target:    target,
		Value:     value,
		Threshold: threshold,
		Message:   kind.describe(target, value, threshold),
	})

	i, ok := d.recs[kind]
	if !ok {
		d.recs[kind] = len(d.recList)
		d.recList = append(d.recList, Recommendation{Kind: kind, Message: kind.recommendation()})
		i = len(d.recList) - 1
	}
	if target != "" {
		d.recList[i].Targets = append(d.recList[i].Targets, target)
	}
}

// result finalizes the working state: a last resistance refresh for
// flow-dependent models, final flows from the heads, then derived velocity,
// head loss and pressure with their threshold checks.
func (s *state) result() Result {
	if s.cfg.Method == MethodDarcyWeisbach {
		s.refreshResistances()
	}
	s.updateFlows()

	cfg := s.cfg
	diag := newDiagnostics()
	res := Result{
		Method:     cfg.Method,
		Nodes:      make([]NodeResult, 0, len(s.nodes)),
		Pipes:      make([]PipeResult, 0, len(s.pipes)),
		Iterations: s.iterations,
		MaxChange:  s.maxChange,
		Converged:  s.converged,
	}

	if !s.converged {
		diag.warn(WarningNotConverged, "", s.maxChange, cfg.HGLAccuracy)
	}

	connected := s.reachable()
	for i, n := range s.nodes {
		nr := NodeResult{
			ID:          n.ID,
			Elevation:   n.Elevation,
			Demand:      n.Demand,
			IsReservoir: n.IsReservoir,
			HGL:         s.hgl[i],
			Pressure:    s.hgl[i] - n.Elevation,
		}
		res.Nodes = append(res.Nodes, nr)
		if n.IsReservoir {
			continue
		}
		switch {
		case !connected[i]:
			diag.warn(WarningIsolatedNode, n.ID, 0, 0)
		case nr.Pressure < 0:
			diag.warn(WarningPressureNegative, n.ID, nr.Pressure, 0)
		case nr.Pressure < cfg.MinPressure:
			diag.warn(WarningPressureLow, n.ID, nr.Pressure, cfg.MinPressure)
		case nr.Pressure > cfg.MaxPressure:
			diag.warn(WarningPressureHigh, n.ID, nr.Pressure, cfg.MaxPressure)
		}
	}

	for _, p := range s.pipes {
		src := p.src
		area := pipeArea(p.diameterM)
		velocity := 0.0
		if area > nearzero {
			velocity = math.Abs(p.flow) / area
		}
		pr := PipeResult{
			ID:             src.ID,
			StartNode:      src.StartNode,
			EndNode:        src.EndNode,
			Length:         src.Length,
			Diameter:       src.Diameter,
			Flow:           p.flow * 1000,
			Velocity:       velocity,
			Headloss:       math.Abs(s.hgl[p.from] - s.hgl[p.to]),
			FrictionFactor: p.res.FrictionFactor,
			Reynolds:       p.res.Reynolds,
		}
		res.Pipes = append(res.Pipes, pr)

		switch {
		case velocity > cfg.MaxVelocity:
			diag.warn(WarningVelocityHigh, src.ID, velocity, cfg.MaxVelocity)
		case math.Abs(p.flow) > negligibleFlow && velocity < cfg.MinVelocity:
			diag.warn(WarningVelocityLow, src.ID, velocity, cfg.MinVelocity)
		}
	}

	res.Warnings = diag.warnings
	res.Recommendations = diag.recList
	if res.Warnings == nil {
		res.Warnings = []Warning{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []Recommendation{}
	}
	return res
}
