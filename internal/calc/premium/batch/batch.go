package batch

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	network "Waternet/internal/calc/network"
)

const MaxItems = 100

type Input struct {
	Items []network.Input `json:"items"`
}

// Item is the outcome of one network. Exactly one of Result and Error is set.
type Item struct {
	Index  int               `json:"index"`
	Status string            `json:"status"`
	Result *network.Result   `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

type Result struct {
	Results   []Item `json:"results"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

type AnalyzeFunc func(ctx context.Context, in network.Input) (network.Result, error)

// Calculate solves independent networks with at most limit solves in flight.
// A failing item does not stop the others; results keep the input order.
func Calculate(ctx context.Context, in Input, analyze AnalyzeFunc, limit int) (Result, error) {
	if len(in.Items) == 0 {
		return Result{}, fmt.Errorf("no items")
	}
	if len(in.Items) > MaxItems {
		return Result{}, fmt.Errorf("too many items: %d (max %d)", len(in.Items), MaxItems)
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	if analyze == nil {
		analyze = func(ctx context.Context, in network.Input) (network.Result, error) {
			return network.CalculateContext(ctx, in, network.DefaultConfig())
		}
	}

	items := make([]Item, len(in.Items))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range in.Items {
		g.Go(func() error {
			res, err := analyze(gCtx, item)
			items[i] = Item{Index: i, Status: network.Status(res, err)}
			if err != nil {
				items[i].Error = err.Error()
				if ve, ok := network.AsValidationError(err); ok {
					items[i].Errors = ve.Fields()
				}
				return nil
			}
			items[i].Result = &res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out := Result{Results: items}
	for _, it := range items {
		if it.Result != nil {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out, nil
}
