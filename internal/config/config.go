// Package config loads runtime configuration for both services from
// the environment. It replaces the teacher's raw os.Getenv calls with
// envconfig struct tags, the way noah-isme-odyssey-erp's app.Config
// does it.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DDLPolicy mirrors the source's Hibernate ddl-auto knob: what the
// service does to the schema on startup.
type DDLPolicy string

const (
	DDLCreate     DDLPolicy = "create"
	DDLCreateDrop DDLPolicy = "create-drop"
	DDLUpdate     DDLPolicy = "update"
	DDLValidate   DDLPolicy = "validate"
	DDLNone       DDLPolicy = "none"
)

// LedgerConfig configures the ledger engine + facade process.
type LedgerConfig struct {
	DBSource  string    `envconfig:"LEDGER_DB_DSN" required:"true"`
	Port      string    `envconfig:"LEDGER_PORT" default:"8081"`
	DDLPolicy DDLPolicy `envconfig:"DDL_POLICY" default:"create"`
	Env       string    `envconfig:"ENVIRONMENT" default:"development"`
}

func LoadLedgerConfig() (*LedgerConfig, error) {
	var cfg LedgerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CoordinatorConfig configures the transfer coordinator + facade
// process, including the resilient ledger client and worker pool.
type CoordinatorConfig struct {
	DBSource  string    `envconfig:"COORDINATOR_DB_DSN" required:"true"`
	Port      string    `envconfig:"COORDINATOR_PORT" default:"8080"`
	DDLPolicy DDLPolicy `envconfig:"DDL_POLICY" default:"create"`
	Env       string    `envconfig:"ENVIRONMENT" default:"development"`

	LedgerBaseURL string `envconfig:"LEDGER_BASE_URL" required:"true"`

	WorkerPoolSize int `envconfig:"WORKER_POOL_SIZE" default:"10"`
	// BatchMaxSize is loaded but not read by the batch dispatcher, whose
	// cap is fixed at 20 intents.
	BatchMaxSize int `envconfig:"BATCH_MAX_SIZE" default:"20"`

	RetryMaxAttempts    int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" default:"50ms"`
	RetryMaxBackoff     time.Duration `envconfig:"RETRY_MAX_BACKOFF" default:"2s"`

	BreakerFailureThreshold float64       `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"0.5"`
	BreakerWindowSize       int           `envconfig:"BREAKER_WINDOW_SIZE" default:"20"`
	BreakerOpenDuration     time.Duration `envconfig:"BREAKER_OPEN_DURATION" default:"5s"`

	RecoverySweepInterval time.Duration `envconfig:"RECOVERY_SWEEP_INTERVAL" default:"30s"`
	RecoveryStaleAfter    time.Duration `envconfig:"RECOVERY_STALE_AFTER" default:"10s"`
}

func LoadCoordinatorConfig() (*CoordinatorConfig, error) {
	var cfg CoordinatorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
