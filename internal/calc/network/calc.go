package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrCalculation is returned when the solve fails numerically rather than on
// bad input. It is kept apart from *ValidationError so callers can tell the
// user to fix the form in one case and report a fault in the other.
var ErrCalculation = errors.New("calculation error")

// Calculate validates in against the default config and solves it.
func Calculate(in Input) (Result, error) {
	return CalculateContext(context.Background(), in, DefaultConfig())
}

// CalculateContext runs validation, the nodal solver and post-processing.
// defaults supplies every config field the input leaves empty.
func CalculateContext(ctx context.Context, in Input, defaults Config) (Result, error) {
	return Calculator{}.Calculate(ctx, in, defaults)
}

// Calculator runs the analysis pipeline and logs every solve.
type Calculator struct {
	Logger *slog.Logger
}

func (c Calculator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Calculator) Calculate(ctx context.Context, in Input, defaults Config) (res Result, err error) {
	net, cfg, err := Validate(in, defaults)
	if err != nil {
		return Result{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger().Error("network solve panicked", slog.Any("panic", r))
			res, err = Result{}, fmt.Errorf("%w: %v", ErrCalculation, r)
		}
	}()

	start := time.Now()
	res, err = Solve(ctx, net, cfg)
	if err != nil {
		c.logger().Warn("network solve failed",
			slog.String("method", string(cfg.Method)),
			slog.Int("nodes", len(net.Nodes)),
			slog.Int("pipes", len(net.Pipes)),
			slog.Any("error", err),
		)
		return Result{}, err
	}
	c.logger().Info("network solved",
		slog.String("method", string(cfg.Method)),
		slog.Int("nodes", len(net.Nodes)),
		slog.Int("pipes", len(net.Pipes)),
		slog.Int("iterations", res.Iterations),
		slog.Bool("converged", res.Converged),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// Status classifies the outcome of a calculation for metrics and storage.
func Status(res Result, err error) string {
	switch {
	case err == nil && res.Converged:
		return "converged"
	case err == nil:
		return "not_converged"
	case errors.Is(err, ErrCalculation):
		return "fault"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "aborted"
	default:
		if _, ok := AsValidationError(err); ok {
			return "invalid"
		}
		return "error"
	}
}
