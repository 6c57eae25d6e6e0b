package batch

import (
	"encoding/json"
	"net/http"

	network "Waternet/internal/calc/network"
)

const maxBodySize = 16 << 20 // 16MB

type Handler struct {
	Analyze AnalyzeFunc
	Limit   int
}

func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	var input Input
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: "Invalid request payload"})
		return
	}
	res, err := Calculate(r.Context(), input, h.Analyze, h.Limit)
	if err != nil {
		if r.Context().Err() != nil {
			status, body := network.ErrorResponse(err)
			network.WriteJSON(w, status, body)
			return
		}
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: err.Error()})
		return
	}
	network.WriteJSON(w, http.StatusOK, res)
}
