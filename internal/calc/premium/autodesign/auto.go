package autodesign

import (
	"context"
	"fmt"
	"math"

	network "Waternet/internal/calc/network"
	"Waternet/internal/calc/premium/recommend"
)

const DefaultRounds = 5

const allWithinLimits = "All pipe velocities are within limits or cannot be improved by resizing."

type Input struct {
	Network network.Input `json:"network"`
	Rounds  int           `json:"rounds"`
}

type Change struct {
	Pipe   string  `json:"pipe"`
	FromMM float64 `json:"from_mm"`
	ToMM   float64 `json:"to_mm"`
	Round  int     `json:"round"`
}

type Result struct {
	Network network.Input  `json:"network"`
	Result  network.Result `json:"result"`
	Changes []Change       `json:"changes"`
	Rounds  int            `json:"rounds"`
	Notes   string         `json:"notes"`
}

// SolveFunc solves one network snapshot. network.Handler.Analyze fits.
type SolveFunc func(ctx context.Context, in network.Input) (network.Result, error)

// Resize re-sizes pipes flagged for velocity and re-solves until no pipe
// changes or the round cap is reached. Pipes without warnings keep their
// diameter. The caller's input is not modified.
func Resize(ctx context.Context, in Input, defaults network.Config) (Result, error) {
	return ResizeWith(ctx, in, defaults, nil)
}

// ResizeWith is Resize with every round solved by solve. A nil solve uses
// network.CalculateContext with defaults.
func ResizeWith(ctx context.Context, in Input, defaults network.Config, solve SolveFunc) (Result, error) {
	if solve == nil {
		solve = func(ctx context.Context, in network.Input) (network.Result, error) {
			return network.CalculateContext(ctx, in, defaults)
		}
	}
	if in.Rounds <= 0 {
		in.Rounds = DefaultRounds
	}
	_, cfg, err := network.Validate(in.Network, defaults)
	if err != nil {
		return Result{}, err
	}

	current := in.Network
	current.Pipes = append([]network.PipeInput(nil), in.Network.Pipes...)
	index := make(map[string]int, len(current.Pipes))
	for i, p := range current.Pipes {
		index[p.ID] = i
	}

	out := Result{Changes: []Change{}}
	for round := 1; ; round++ {
		res, err := solve(ctx, current)
		if err != nil {
			return Result{}, err
		}
		out.Network, out.Result = current, res
		if round > in.Rounds {
			out.Notes = allWithinLimits
			if hasVelocityWarning(res) {
				out.Notes = fmt.Sprintf("Stopped after %d rounds; some pipes may still need attention.", in.Rounds)
			}
			return out, nil
		}

		changed := false
		for _, w := range res.Warnings {
			if !isVelocityWarning(w.Kind) {
				continue
			}
			p, ok := res.Pipe(w.Target)
			if !ok {
				continue
			}
			size, err := recommend.PipeSize(recommend.PipeSizeInput{
				FlowLPS:     math.Abs(p.Flow),
				MinVelocity: cfg.MinVelocity,
				MaxVelocity: cfg.MaxVelocity,
			})
			if err != nil {
				continue
			}
			d := math.Min(math.Max(size.DiameterMM, cfg.MinDiameter), cfg.MaxDiameter)
			if d == p.Diameter {
				continue
			}
			current.Pipes[index[p.ID]].Diameter = network.FloatValue(d)
			out.Changes = append(out.Changes, Change{Pipe: p.ID, FromMM: p.Diameter, ToMM: d, Round: round})
			changed = true
		}
		if !changed {
			out.Rounds = round - 1
			out.Notes = allWithinLimits
			return out, nil
		}
		out.Rounds = round
	}
}

func isVelocityWarning(k network.WarningKind) bool {
	return k == network.WarningVelocityHigh || k == network.WarningVelocityLow
}

func hasVelocityWarning(res network.Result) bool {
	for _, w := range res.Warnings {
		if isVelocityWarning(w.Kind) {
			return true
		}
	}
	return false
}
