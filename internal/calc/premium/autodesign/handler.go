package autodesign

import (
	"encoding/json"
	"net/http"

	network "Waternet/internal/calc/network"
)

// Handler resizes a submitted network. Analyze is usually
// network.Handler.Analyze so every round is counted in the solve metrics;
// it must apply the same defaults as Defaults.
type Handler struct {
	Defaults network.Config
	Analyze  SolveFunc
}

func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, network.MaxBodySize)
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: "Invalid request payload"})
		return
	}
	defaults := h.Defaults
	if defaults.Method == "" {
		defaults = network.DefaultConfig()
	}
	res, err := ResizeWith(r.Context(), input, defaults, h.Analyze)
	if err != nil {
		status, body := network.ErrorResponse(err)
		network.WriteJSON(w, status, body)
		return
	}
	network.WriteJSON(w, http.StatusOK, res)
}
