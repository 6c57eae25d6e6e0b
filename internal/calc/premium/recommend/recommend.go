package recommend

import (
	"fmt"
	"math"
)

// DefaultCatalog lists nominal inner diameters in mm, ascending.
var DefaultCatalog = []float64{
	20, 25, 32, 40, 50, 63, 75, 90, 110, 125, 150, 200, 250, 300, 350, 400, 450, 500, 600, 700, 800, 900, 1000,
}

type PipeSizeInput struct {
	FlowLPS     float64   `json:"flow_lps"`
	MinVelocity float64   `json:"min_velocity"`
	MaxVelocity float64   `json:"max_velocity"`
	Catalog     []float64 `json:"catalog,omitempty"`
}

type PipeSizeResult struct {
	DiameterMM float64 `json:"diameter_mm"`
	Velocity   float64 `json:"velocity_ms"`
	BelowMin   bool    `json:"below_min"`
	AboveMax   bool    `json:"above_max"`
	Notes      string  `json:"notes"`
}

// PipeSize picks the smallest catalog diameter whose velocity at the given
// flow does not exceed MaxVelocity. When even the largest size is too
// small it is returned with AboveMax set.
func PipeSize(in PipeSizeInput) (PipeSizeResult, error) {
	if in.FlowLPS <= 0 || math.IsNaN(in.FlowLPS) || math.IsInf(in.FlowLPS, 0) {
		return PipeSizeResult{}, fmt.Errorf("flow must be a positive number")
	}
	if in.MaxVelocity <= 0 {
		in.MaxVelocity = 3.0
	}
	if in.MinVelocity < 0 || in.MinVelocity >= in.MaxVelocity {
		return PipeSizeResult{}, fmt.Errorf("min velocity must be in [0, max velocity)")
	}
	catalog := in.Catalog
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}

	q := in.FlowLPS / 1000
	best := 0.0
	for _, d := range catalog {
		if d <= 0 {
			return PipeSizeResult{}, fmt.Errorf("catalog diameter %g must be positive", d)
		}
		if velocity(q, d) <= in.MaxVelocity && (best == 0 || d < best) {
			best = d
		}
	}

	res := PipeSizeResult{Notes: "Smallest catalog size within the velocity limit."}
	if best == 0 {
		for _, d := range catalog {
			best = math.Max(best, d)
		}
		res.AboveMax = true
		res.Notes = "No catalog size keeps the velocity within the limit; consider parallel pipes."
	}
	res.DiameterMM = best
	res.Velocity = velocity(q, best)
	if res.Velocity < in.MinVelocity {
		res.BelowMin = true
		res.Notes = "Flow is too small to reach the minimum velocity even in the smallest size."
	}
	return res, nil
}

func velocity(q, diameterMM float64) float64 {
	d := diameterMM / 1000
	return q / (math.Pi * d * d / 4)
}
