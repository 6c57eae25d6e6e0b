package recommend

import (
	"encoding/json"
	"net/http"

	network "Waternet/internal/calc/network"
)

type Handler struct{}

func (h *Handler) PipeSize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, network.MaxBodySize)
	var input PipeSizeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: "Invalid request payload"})
		return
	}
	res, err := PipeSize(input)
	if err != nil {
		network.WriteJSON(w, http.StatusBadRequest, network.ErrorBody{Error: err.Error()})
		return
	}
	network.WriteJSON(w, http.StatusOK, res)
}
