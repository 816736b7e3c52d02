// Package database centralises sqlx connection helpers for the postgres and
// postgis index backends.  It is glue only: given a resolved environment it
// builds the connection URL and opens a pool, leaving schema and query
// concerns to the index drivers.
//
// Public entry points:
//
//	Open(env)                      – pool sized with conservative defaults.
//	OpenWithOptions(env, mo, mi)   – fine-grained pool control.
//	Check(db)                      – cheap SELECT 1 liveness probe.
//
// Open pings the database before returning so callers can fail fast during
// bootstrap.  Callers should Close() the returned *sqlx.DB when done.  Idle
// pooled connections are closed after the environment's
// db_connection_timeout.
package database

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/opendatacube/odc-config/internal/cfg"
)

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle.
func Open(env *cfg.Environment) (*sqlx.DB, error) {
	return OpenWithOptions(env, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle per pool.
func OpenWithOptions(env *cfg.Environment, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", env.PsqlURL())
	if err != nil {
		return nil, err
	}

	configurePool(db, env, maxOpen, maxIdle)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// configurePool applies pool sizing and the environment's idle timeout.
func configurePool(db *sqlx.DB, env *cfg.Environment, maxOpen, maxIdle int) {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxIdleTime(time.Duration(env.ConnectionTimeout()) * time.Second)
	db.SetConnMaxLifetime(30 * time.Minute)
}

// Check runs a minimal round-trip query.  Useful as a post-Open probe and
// for the serve endpoint's health check.
func Check(db *sqlx.DB) error {
	var one int
	return db.Get(&one, "SELECT 1")
}
