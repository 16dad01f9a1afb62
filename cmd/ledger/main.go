// Command ledger runs the Ledger Engine + Ledger HTTP Facade process,
// grounded on punchamoorthee-ledgerops/cmd/api/main.go's pgxpool +
// gorilla/mux + promhttp wiring.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerops/moneymove/internal/config"
	"github.com/ledgerops/moneymove/internal/ledger/api"
	"github.com/ledgerops/moneymove/internal/ledger/service"
	"github.com/ledgerops/moneymove/internal/ledger/store"
	"github.com/ledgerops/moneymove/pkg/logger"
)

func main() {
	cfg, err := config.LoadLedgerConfig()
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

	ledgerStore := store.NewPostgresStore(dbPool, logr)
	engine := service.NewEngine(ledgerStore, logr)
	handler := api.NewHandler(engine, logr)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.Health).Methods("GET")
	r.HandleFunc("/accounts", handler.CreateAccount).Methods("POST")
	r.HandleFunc("/accounts/{id}", handler.GetAccount).Methods("GET")
	r.HandleFunc("/ledger/transfer", handler.ApplyTransfer).Methods("POST")

	logr.Info("ledger service starting", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
