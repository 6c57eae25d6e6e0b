package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	network "Waternet/internal/calc/network"
)

const maxUpload = 8 << 20 // 8MB

type Handler struct {
	Analyze func(ctx context.Context, in network.Input) (network.Result, error)
	Logger  *slog.Logger
}

func (h *Handler) analyze(ctx context.Context, in network.Input) (network.Result, error) {
	if h.Analyze != nil {
		return h.Analyze(ctx, in)
	}
	return network.CalculateContext(ctx, in, network.DefaultConfig())
}

func (h *Handler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// Import solves a network uploaded as an xlsx workbook in the "file" field.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: "File required"})
		return
	}
	defer file.Close()

	in, err := Read(file)
	if err != nil {
		var rowErr *RowError
		body := network.ErrorBody{Error: "Invalid file"}
		if errors.As(err, &rowErr) || errors.Is(err, ErrNoNodes) || errors.Is(err, ErrNoPipes) {
			body.Error = err.Error()
		}
		network.WriteJSON(w, http.StatusBadRequest, body)
		return
	}

	res, err := h.analyze(r.Context(), in)
	if err != nil {
		status, body := network.ErrorResponse(err)
		network.WriteJSON(w, status, body)
		return
	}
	network.WriteJSON(w, http.StatusOK, res)
}

// Export solves a JSON network and returns the results as a workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, network.MaxBodySize)
	var in network.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: "Invalid request payload"})
		return
	}
	res, err := h.analyze(r.Context(), in)
	if err != nil {
		status, body := network.ErrorResponse(err)
		network.WriteJSON(w, status, body)
		return
	}

	var buf bytes.Buffer
	if err := Write(&buf, res); err != nil {
		h.log().Error("xlsx export failed", slog.Any("error", err))
		network.WriteJSON(w, http.StatusInternalServerError, network.ErrorBody{Error: "Export error"})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\"network-results.xlsx\"")
	w.Write(buf.Bytes())
}
