package report

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	network "Waternet/internal/calc/network"
)

type Input struct {
	Meta
	Network network.Input `json:"network"`
}

// Handler solves the submitted network and returns it as a PDF. Analyze is
// usually network.Handler.Analyze so reports share the solve metrics.
type Handler struct {
	Analyze func(ctx context.Context, in network.Input) (network.Result, error)
	Logger  *slog.Logger
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, network.MaxBodySize)
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: "Invalid request payload"})
		return
	}

	analyze := h.Analyze
	if analyze == nil {
		analyze = func(ctx context.Context, in network.Input) (network.Result, error) {
			return network.CalculateContext(ctx, in, network.DefaultConfig())
		}
	}
	res, err := analyze(r.Context(), input.Network)
	if err != nil {
		status, body := network.ErrorResponse(err)
		network.WriteJSON(w, status, body)
		return
	}

	var buf bytes.Buffer
	if err := Write(&buf, input.Meta, res); err != nil {
		if h.Logger != nil {
			h.Logger.Error("report generation failed", slog.Any("error", err))
		}
		network.WriteJSON(w, http.StatusInternalServerError, network.ErrorBody{Error: "Report generation error"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"network-report.pdf\"")
	w.Write(buf.Bytes())
}
