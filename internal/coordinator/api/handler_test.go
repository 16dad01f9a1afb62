package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/moneymove/internal/coordinator/batch"
	"github.com/ledgerops/moneymove/internal/coordinator/client"
	"github.com/ledgerops/moneymove/internal/coordinator/domain"
	"github.com/ledgerops/moneymove/internal/coordinator/service"
	"github.com/ledgerops/moneymove/internal/coordinator/store"
	"github.com/ledgerops/moneymove/internal/coordinator/worker"
	"github.com/ledgerops/moneymove/internal/middleware"
)

type fakeTransferStore struct {
	mu    sync.Mutex
	byKey map[string]*domain.TransferRecord
	byID  map[string]*domain.TransferRecord
}

func newFakeTransferStore() *fakeTransferStore {
	return &fakeTransferStore{byKey: make(map[string]*domain.TransferRecord), byID: make(map[string]*domain.TransferRecord)}
}

func (s *fakeTransferStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeTransferStore) CreateIntent(ctx context.Context, rec *domain.TransferRecord) (*domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[rec.IdempotencyKey]; exists {
		return nil, store.ErrIdempotencyRace
	}
	cp := *rec
	cp.CreatedAt = time.Now()
	s.byKey[cp.IdempotencyKey] = &cp
	s.byID[cp.TransferID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeTransferStore) FindByTransferID(ctx context.Context, transferID string) (*domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[transferID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeTransferStore) CompleteTransfer(ctx context.Context, transferID string) error {
	return s.transition(transferID, domain.StatusCompleted, "")
}

func (s *fakeTransferStore) FailTransfer(ctx context.Context, transferID string, reason string) error {
	return s.transition(transferID, domain.StatusFailed, reason)
}

func (s *fakeTransferStore) transition(transferID string, status domain.Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[transferID]
	if !ok || rec.IsTerminal() {
		return nil
	}
	rec.Status = status
	rec.ErrorMessage = reason
	return nil
}

func (s *fakeTransferStore) ListStalePending(ctx context.Context, olderThan time.Time) ([]domain.TransferRecord, error) {
	return nil, nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acceptingLedger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "transfer completed successfully"})
}

func newTestServer(t *testing.T) (*mux.Router, *service.Coordinator) {
	t.Helper()
	ledgerSrv := httptest.NewServer(http.HandlerFunc(acceptingLedger))
	t.Cleanup(ledgerSrv.Close)

	c := client.New(ledgerSrv.URL, client.Config{
		MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond,
		BreakerWindow: 20, FailureRate: 0.5, OpenDuration: time.Minute,
	}, silentLogger())

	pool := worker.NewPool(10, silentLogger())
	pool.Start(2)
	t.Cleanup(pool.Shutdown)

	coord := service.New(newFakeTransferStore(), c, pool, silentLogger())
	dispatcher := batch.New(coord, 4)
	handler := NewHandler(coord, dispatcher, c, silentLogger())

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.HandleFunc("/transfers", handler.CreateTransfer).Methods("POST")
	r.HandleFunc("/transfers/{id}", handler.GetTransfer).Methods("GET")
	r.HandleFunc("/transfers/batch", handler.ProcessBatch).Methods("POST")
	return r, coord
}

func doRequest(t *testing.T, r http.Handler, method, path, idempotencyKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestCreateTransferRequiresIdempotencyKeyHeader(t *testing.T) {
	router, _ := newTestServer(t)
	rr := doRequest(t, router, "POST", "/transfers", "", map[string]interface{}{"fromAccountId": 1, "toAccountId": 2, "amount": "5.00"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateTransferReturnsPendingImmediately(t *testing.T) {
	router, _ := newTestServer(t)
	rr := doRequest(t, router, "POST", "/transfers", "http-key-1", map[string]interface{}{"fromAccountId": 1, "toAccountId": 2, "amount": "5.00"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp TransferResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TransferID)
	assert.Equal(t, string(domain.StatusPending), resp.Status)
}

func TestGetTransferNotFound(t *testing.T) {
	router, _ := newTestServer(t)
	rr := doRequest(t, router, "GET", "/transfers/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetTransferEventuallyCompletes(t *testing.T) {
	router, coord := newTestServer(t)
	rr := doRequest(t, router, "POST", "/transfers", "http-key-2", map[string]interface{}{"fromAccountId": 1, "toAccountId": 2, "amount": "5.00"})
	require.Equal(t, http.StatusOK, rr.Code)
	var created TransferResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := coord.GetTransfer(context.Background(), created.TransferID)
		require.NoError(t, err)
		if rec != nil && rec.Status == domain.StatusCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("transfer never completed")
}

func TestProcessBatchRejectsOversizedBatchOverHTTP(t *testing.T) {
	router, _ := newTestServer(t)

	items := make([]map[string]interface{}, 21)
	for i := range items {
		items[i] = map[string]interface{}{"idempotencyKey": "batch-http-key", "fromAccountId": 1, "toAccountId": 2, "amount": "1.00"}
	}

	rr := doRequest(t, router, "POST", "/transfers/batch", "", map[string]interface{}{"transfers": items})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
