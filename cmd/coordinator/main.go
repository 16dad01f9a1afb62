// Command coordinator runs the Transfer Coordinator + Transfer HTTP
// Facade process: idempotent intent creation, the resilient ledger
// client, the bounded worker pool, the batch dispatcher, and the
// recovery sweeper, wired together the way
// punchamoorthee-ledgerops/cmd/api/main.go wires its single service,
// widened to the coordinator's extra components and
// Sumukhak22-GopherPay/cmd/server/main.go's graceful-shutdown shape.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerops/moneymove/internal/config"
	"github.com/ledgerops/moneymove/internal/coordinator/api"
	"github.com/ledgerops/moneymove/internal/coordinator/batch"
	"github.com/ledgerops/moneymove/internal/coordinator/client"
	"github.com/ledgerops/moneymove/internal/coordinator/recovery"
	"github.com/ledgerops/moneymove/internal/coordinator/service"
	"github.com/ledgerops/moneymove/internal/coordinator/store"
	"github.com/ledgerops/moneymove/internal/coordinator/worker"
	"github.com/ledgerops/moneymove/internal/middleware"
	"github.com/ledgerops/moneymove/pkg/logger"
)

func main() {
	cfg, err := config.LoadCoordinatorConfig()
	if err != nil {
		log.Fatal(err)
	}

	logr := logger.New(cfg.Env)

	dbPool, err := pgxpool.New(context.Background(), cfg.DBSource)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer dbPool.Close()

	if err := store.RunMigrations(context.Background(), dbPool, cfg.DDLPolicy); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	transferStore := store.NewPostgresStore(dbPool)

	ledgerClient := client.New(cfg.LedgerBaseURL, client.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
		BreakerWindow:  cfg.BreakerWindowSize,
		FailureRate:    cfg.BreakerFailureThreshold,
		OpenDuration:   cfg.BreakerOpenDuration,
	}, logr)

	pool := worker.NewPool(cfg.WorkerPoolSize*4, logr)
	pool.Start(cfg.WorkerPoolSize)

	coordinator := service.New(transferStore, ledgerClient, pool, logr)
	dispatcher := batch.New(coordinator, cfg.WorkerPoolSize)

	sweeper := recovery.New(transferStore, coordinator, cfg.RecoverySweepInterval, cfg.RecoveryStaleAfter, logr)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go sweeper.Run(sweepCtx)

	handler := api.NewHandler(coordinator, dispatcher, ledgerClient, logr)

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/transfers", handler.CreateTransfer).Methods("POST")
	r.HandleFunc("/transfers/{id}", handler.GetTransfer).Methods("GET")
	r.HandleFunc("/transfers/batch", handler.ProcessBatch).Methods("POST")

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		logr.Info("transfer coordinator starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logr.Info("shutting down transfer coordinator")
	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	pool.Shutdown()

	logr.Info("transfer coordinator stopped gracefully")
}
