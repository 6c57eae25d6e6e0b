package network

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"Waternet/internal/metrics"
	"Waternet/internal/repo"
)

// MaxBodySize caps JSON request bodies on the network routes.
const MaxBodySize = 4 << 20 // 4MB

type Handler struct {
	Defaults Config
	Repo     repo.Repository   // optional
	Metrics  *metrics.Registry // optional
	Logger   *slog.Logger
}

func NewHandler(defaults Config, runs repo.Repository, reg *metrics.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Defaults: defaults, Repo: runs, Metrics: reg, Logger: logger}
}

func (h *Handler) log() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

type calcResponse struct {
	RunID string `json:"run_id,omitempty"`
	Result
}

// Analyze runs the pipeline with the handler's defaults and records metrics.
func (h *Handler) Analyze(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	res, err := Calculator{Logger: h.Logger}.Calculate(ctx, in, h.Defaults)
	if h.Metrics != nil {
		method := string(h.Defaults.Method)
		if in.Config.Method != "" {
			method = string(in.Config.Method)
		}
		kinds := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			kinds = append(kinds, string(w.Kind))
		}
		h.Metrics.RecordSolve(method, Status(res, err), time.Since(start), res.Iterations, kinds)
	}
	return res, err
}

func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	var input Input
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondError(w, "network_calc", http.StatusBadRequest, "Invalid request payload")
		return
	}
	res, err := h.Analyze(r.Context(), input)
	if err != nil {
		h.writeError(w, "network_calc", err)
		return
	}

	out := calcResponse{Result: res}
	if h.Repo != nil {
		id, err := h.save(r.Context(), input, res)
		if err != nil {
			h.log().Error("saving run failed", slog.Any("error", err))
		} else {
			out.RunID = id.String()
			w.Header().Set("X-Run-ID", out.RunID)
		}
	}
	h.respondJSON(w, "network_calc", http.StatusOK, out)
}

func (h *Handler) save(ctx context.Context, in Input, res Result) (uuid.UUID, error) {
	rawIn, err := json.Marshal(in)
	if err != nil {
		return uuid.Nil, err
	}
	rawRes, err := json.Marshal(res)
	if err != nil {
		return uuid.Nil, err
	}
	return h.Repo.SaveRun(ctx, repo.Run{
		Method:     string(res.Method),
		Status:     Status(res, nil),
		Iterations: res.Iterations,
		Converged:  res.Converged,
		Input:      rawIn,
		Result:     rawRes,
	})
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		h.respondError(w, "network_run", http.StatusNotFound, "Run storage is disabled")
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, "network_run", http.StatusBadRequest, "Invalid run id")
		return
	}
	run, err := h.Repo.GetRun(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		h.respondError(w, "network_run", http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.log().Error("loading run failed", slog.String("run_id", id.String()), slog.Any("error", err))
		h.respondError(w, "network_run", http.StatusInternalServerError, "Storage error")
		return
	}
	h.respondJSON(w, "network_run", http.StatusOK, run)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Repo == nil {
		h.respondJSON(w, "network_runs", http.StatusOK, []repo.Summary{})
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.respondError(w, "network_runs", http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	runs, err := h.Repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.log().Error("listing runs failed", slog.Any("error", err))
		h.respondError(w, "network_runs", http.StatusInternalServerError, "Storage error")
		return
	}
	h.respondJSON(w, "network_runs", http.StatusOK, runs)
}

// ErrorBody is the JSON shape of every error response. Errors is the
// field-keyed validation report.
type ErrorBody struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
	Issues []Issue           `json:"issues,omitempty"`
}

// ErrorResponse maps a pipeline error to an HTTP status and body.
func ErrorResponse(err error) (int, ErrorBody) {
	if ve, ok := AsValidationError(err); ok {
		return http.StatusUnprocessableEntity, ErrorBody{
			Error:  "Invalid network",
			Errors: ve.Fields(),
			Issues: ve.Issues,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, ErrorBody{Error: "Calculation aborted"}
	}
	return http.StatusInternalServerError, ErrorBody{Error: "Calculation error"}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, route string, err error) {
	status, body := ErrorResponse(err)
	if status == http.StatusInternalServerError {
		h.log().Error("network calculation failed", slog.String("route", route), slog.Any("error", err))
	}
	h.respondJSON(w, route, status, body)
}

func (h *Handler) respondError(w http.ResponseWriter, route string, status int, msg string) {
	h.respondJSON(w, route, status, ErrorBody{Error: msg})
}

func (h *Handler) respondJSON(w http.ResponseWriter, route string, status int, v any) {
	if h.Metrics != nil {
		h.Metrics.RecordRequest(route, status)
	}
	WriteJSON(w, status, v)
}
