package repository

import (
	"time"

	"github.com/okian/tenure/pkg/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type options struct {
	driver          string
	sqlitePath      string
	postgresDSN     string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	logger          logger.Logger
}

// Option applies a configuration option to the SQLStore.
type Option func(*options)

// WithSQLite selects the SQLite driver with the database at path.
// ":memory:" keeps the database in process.
func WithSQLite(path string) Option {
	return func(o *options) {
		o.driver = DriverSQLite
		o.sqlitePath = path
	}
}

// WithPostgres selects the PostgreSQL driver with a lib/pq connection string.
func WithPostgres(dsn string) Option {
	return func(o *options) {
		o.driver = DriverPostgres
		o.postgresDSN = dsn
	}
}

// WithDriver selects a driver by name; the path or DSN come from WithSQLite
// or WithPostgres.
func WithDriver(driver string) Option {
	return func(o *options) {
		if driver != "" {
			o.driver = driver
		}
	}
}

// WithPool configures the connection pool. Zero values keep driver defaults.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(o *options) {
		o.maxOpenConns = maxOpen
		o.maxIdleConns = maxIdle
		o.connMaxLifetime = maxLifetime
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
