// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers a YAML file and TENURE_ environment variables on top.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/okian/tenure/internal/adapters/dataset"
)

// Supported values of DBDriver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory analysis queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// StrataWorkers bounds the per-analysis fan-out over strata.
	StrataWorkers int `koanf:"strata_workers"`

	// ConcordanceWorkers bounds the pairwise concordance check; 0 disables it.
	ConcordanceWorkers int `koanf:"concordance_workers"`

	// Dataset column roles.
	DurationCol string `koanf:"duration_col"`
	EventCol    string `koanf:"event_col"`
	IDCol       string `koanf:"id_col"`
	StrataCol   string `koanf:"strata_col"`

	// NumericFeatures and CategoricalFeatures name the design covariates in order.
	NumericFeatures     []string `koanf:"numeric_features"`
	CategoricalFeatures []string `koanf:"categorical_features"`

	// CoefficientsPath points at a YAML or JSON coefficient file.
	CoefficientsPath string `koanf:"coefficients_path"`

	// DBDriver selects the repository backend: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// SQLitePath is the database file; ":memory:" keeps everything in process.
	SQLitePath string `koanf:"sqlite_path"`

	// PostgresDSN is a lib/pq connection string.
	PostgresDSN string `koanf:"postgres_dsn"`

	// MaxObservations caps the size of a submitted dataset.
	MaxObservations int `koanf:"max_observations"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          1_024,
		WorkerCount:        runtime.NumCPU(),
		StrataWorkers:      runtime.NumCPU(),
		ConcordanceWorkers: 0,
		DurationCol:        "tenure_months",
		EventCol:           "churn",
		IDCol:              "customer_id",
		StrataCol:          "contract",
		NumericFeatures: []string{
			"tenure_months",
			"monthly_charges",
			"avg_monthly_usage_gb",
			"support_tickets_90d",
			"late_payments_12m",
		},
		CategoricalFeatures: []string{
			"contract",
			"payment_method",
			"internet_service",
			"tech_support",
			"senior_citizen",
			"partner",
			"dependents",
		},
		DBDriver:        DriverSQLite,
		SQLitePath:      "tenure.db",
		MaxObservations: 1_000_000,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.StrataWorkers <= 0:
		return fmt.Errorf("%w: strata_workers must be positive", ErrInvalidConfig)
	case c.ConcordanceWorkers < 0:
		return fmt.Errorf("%w: concordance_workers must not be negative", ErrInvalidConfig)
	case c.DurationCol == "" || c.EventCol == "":
		return fmt.Errorf("%w: duration_col and event_col must be set", ErrInvalidConfig)
	case c.MaxObservations <= 0:
		return fmt.Errorf("%w: max_observations must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must be set", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn must be set", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	return nil
}

// Schema returns the dataset columns described by c. The stratum column is
// carried as an extra covariate when it is not a model feature.
func (c *Config) Schema() dataset.Schema {
	s := dataset.Schema{
		DurationCol: c.DurationCol,
		EventCol:    c.EventCol,
		IDCol:       c.IDCol,
		Numeric:     slices.Clone(c.NumericFeatures),
		Categorical: slices.Clone(c.CategoricalFeatures),
	}
	if c.StrataCol != "" && !slices.Contains(s.Numeric, c.StrataCol) && !slices.Contains(s.Categorical, c.StrataCol) {
		s.Extra = []string{c.StrataCol}
	}
	return s
}
