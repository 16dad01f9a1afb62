// Package api is the Ledger HTTP Facade: a thin request/response
// surface over the engine (§4.2), grounded on
// punchamoorthee-ledgerops/internal/api/handler.go for the gorilla/mux
// + prometheus wiring, generalized to the full error taxonomy in
// internal/errs and the decimal amounts spec.md requires.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ledgerops/moneymove/internal/errs"
	"github.com/ledgerops/moneymove/internal/ledger/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed by the ledger facade",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of ledger facade requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	engine   *service.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(engine *service.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, validate: validator.New(), logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ledger Service is healthy"))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/accounts"))
	defer timer.ObserveDuration()

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", "POST", "/accounts")
		return
	}

	acc, err := h.engine.CreateAccount(r.Context(), req.InitialBalance)
	if err != nil {
		h.respondEngineError(w, err, "POST", "/accounts")
		return
	}

	h.respondJSON(w, http.StatusOK, AccountResponse{ID: acc.ID, Balance: acc.Balance, Version: acc.Version}, "POST", "/accounts")
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/accounts/{id}"))
	defer timer.ObserveDuration()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid account id", "GET", "/accounts/{id}")
		return
	}

	acc, err := h.engine.GetAccount(r.Context(), id)
	if err != nil {
		h.respondEngineError(w, err, "GET", "/accounts/{id}")
		return
	}
	if acc == nil {
		h.respondError(w, http.StatusNotFound, "account not found", "GET", "/accounts/{id}")
		return
	}

	h.respondJSON(w, http.StatusOK, AccountResponse{ID: acc.ID, Balance: acc.Balance, Version: acc.Version}, "GET", "/accounts/{id}")
}

func (h *Handler) ApplyTransfer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/ledger/transfer"))
	defer timer.ObserveDuration()

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondTransferError(w, http.StatusBadRequest, "invalid JSON body", "POST", "/ledger/transfer")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondTransferError(w, http.StatusBadRequest, "transferId, fromAccountId and toAccountId are required", "POST", "/ledger/transfer")
		return
	}

	outcome, err := h.engine.ApplyTransfer(r.Context(), req.TransferID, req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		var e *errs.Error
		status := http.StatusInternalServerError
		if errors.As(err, &e) && e.Kind != errs.KindTransient {
			status = http.StatusBadRequest
		}
		h.respondTransferError(w, status, err.Error(), "POST", "/ledger/transfer")
		return
	}

	// alreadyApplied is reported as success: the caller cannot
	// distinguish first application from replay, by design (§4.2).
	message := "transfer completed successfully"
	if outcome.AlreadyApplied {
		message = "transfer already applied"
	}
	h.respondJSON(w, http.StatusOK, TransferResponse{Success: true, Message: message}, "POST", "/ledger/transfer")
}

func (h *Handler) respondEngineError(w http.ResponseWriter, err error, method, endpoint string) {
	var e *errs.Error
	if errors.As(err, &e) {
		status := http.StatusInternalServerError
		switch e.Kind {
		case errs.KindInvalidRequest:
			status = http.StatusBadRequest
		case errs.KindAccountNotFound:
			status = http.StatusNotFound
		}
		h.respondError(w, status, e.Message, method, endpoint)
		return
	}
	h.respondError(w, http.StatusInternalServerError, "internal error", method, endpoint)
}

func (h *Handler) respondTransferError(w http.ResponseWriter, status int, reason, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	h.writeJSON(w, status, TransferResponse{Success: false, Message: reason})
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	h.writeJSON(w, code, payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	h.writeJSON(w, code, errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
