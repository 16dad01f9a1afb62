// Package api is the Transfer HTTP Facade (spec.md §4.6): idempotency
// key enforcement, correlation id propagation, and the batch endpoint.
// Grounded on punchamoorthee-ledgerops/internal/api/handlers.go for
// the gorilla/mux + prometheus wiring and original_source's
// TransferController.java for the endpoint contract.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ledgerops/moneymove/internal/coordinator/breaker"
	"github.com/ledgerops/moneymove/internal/coordinator/domain"
	"github.com/ledgerops/moneymove/internal/coordinator/service"
	"github.com/ledgerops/moneymove/internal/errs"
	"github.com/ledgerops/moneymove/internal/middleware"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_http_requests_total",
		Help: "Total HTTP requests processed by the transfer facade",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coordinator_http_request_duration_seconds",
		Help:    "Latency distribution of transfer facade requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type BreakerStater interface {
	BreakerState() breaker.State
}

type Handler struct {
	coordinator *service.Coordinator
	dispatcher  BatchDispatcher
	breaker     BreakerStater
	validate    *validator.Validate
	logger      *slog.Logger
}

type BatchDispatcher interface {
	ProcessBatch(ctx context.Context, correlationID string, intents []domain.Intent) ([]*domain.TransferRecord, error)
}

func NewHandler(coordinator *service.Coordinator, dispatcher BatchDispatcher, breakerStater BreakerStater, logger *slog.Logger) *Handler {
	return &Handler{coordinator: coordinator, dispatcher: dispatcher, breaker: breakerStater, validate: validator.New(), logger: logger}
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers"))
	defer timer.ObserveDuration()

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		h.respondError(w, http.StatusBadRequest, "Missing Idempotency-Key header", "POST", "/transfers")
		return
	}

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/transfers")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "fromAccountId and toAccountId are required", "POST", "/transfers")
		return
	}

	correlationID := middleware.FromContext(r.Context())
	rec, err := h.coordinator.CreateTransfer(r.Context(), correlationID, idempotencyKey, req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		h.respondCoordinatorError(w, err, "POST", "/transfers")
		return
	}

	h.respondTransfer(w, http.StatusOK, rec, "POST", "/transfers")
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/transfers/{id}"))
	defer timer.ObserveDuration()

	id := mux.Vars(r)["id"]
	rec, err := h.coordinator.GetTransfer(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "internal error", "GET", "/transfers/{id}")
		return
	}
	if rec == nil {
		h.respondError(w, http.StatusNotFound, "transfer not found", "GET", "/transfers/{id}")
		return
	}

	if rec.Status == domain.StatusFailed && rec.ErrorMessage == "ledger unavailable" && h.breaker != nil && h.breaker.BreakerState() == breaker.Open {
		w.Header().Set("Retry-After", "5")
	}
	h.respondTransfer(w, http.StatusOK, rec, "GET", "/transfers/{id}")
}

func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers/batch"))
	defer timer.ObserveDuration()

	var req BatchTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/transfers/batch")
		return
	}

	intents := make([]domain.Intent, len(req.Transfers))
	for i, t := range req.Transfers {
		intents[i] = domain.Intent{
			IdempotencyKey: t.IdempotencyKey,
			FromAccountID:  t.FromAccountID,
			ToAccountID:    t.ToAccountID,
			Amount:         t.Amount,
		}
	}

	correlationID := middleware.FromContext(r.Context())
	records, err := h.dispatcher.ProcessBatch(r.Context(), correlationID, intents)
	if err != nil {
		h.respondCoordinatorError(w, err, "POST", "/transfers/batch")
		return
	}

	resp := BatchTransferResponse{Transfers: make([]TransferResponse, len(records))}
	for i, rec := range records {
		resp.Transfers[i] = toTransferResponse(rec)
	}
	h.respondJSON(w, http.StatusOK, resp, "POST", "/transfers/batch")
}

func (h *Handler) respondTransfer(w http.ResponseWriter, status int, rec *domain.TransferRecord, method, endpoint string) {
	h.respondJSON(w, status, toTransferResponse(rec), method, endpoint)
}

func toTransferResponse(rec *domain.TransferRecord) TransferResponse {
	return TransferResponse{
		TransferID:   rec.TransferID,
		Status:       string(rec.Status),
		ErrorMessage: rec.ErrorMessage,
	}
}

func (h *Handler) respondCoordinatorError(w http.ResponseWriter, err error, method, endpoint string) {
	var e *errs.Error
	if errors.As(err, &e) && e.Kind == errs.KindInvalidRequest {
		h.respondError(w, http.StatusBadRequest, e.Message, method, endpoint)
		return
	}
	if errors.As(err, &e) && e.Kind == errs.KindIdempotencyConflict {
		h.respondError(w, http.StatusConflict, e.Message, method, endpoint)
		return
	}
	h.respondError(w, http.StatusInternalServerError, "internal error", method, endpoint)
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, errorResponse{Error: msg}, method, endpoint)
}
