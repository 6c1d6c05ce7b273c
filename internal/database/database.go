// Package database opens the bun store and bootstraps its schema.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"train-station/internal/config"
	"train-station/internal/logger"
	"train-station/internal/models"
)

const (
	sqlitePrefix = "sqlite:"
	maxRetries   = 5
	retryDelay   = 2 * time.Second
)

// Open connects to the configured store. A DSN of the form "sqlite:<path>"
// selects an embedded SQLite database with the schema created in place;
// anything else is treated as a PostgreSQL DSN.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if strings.HasPrefix(cfg.DSN, sqlitePrefix) {
		log.Warn("DATABASE", "Using embedded SQLite store, not suitable for production")
		return OpenSQLite(ctx, strings.TrimPrefix(cfg.DSN, sqlitePrefix))
	}

	var sqldb *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			sqldb.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", maxRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// OpenSQLite opens an SQLite database and creates the schema. Use
// "file::memory:?cache=shared" for a throwaway store.
func OpenSQLite(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serialises writers anyway; a single connection also keeps an
	// in-memory database alive and shared.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}
	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type tableSpec struct {
	model       any
	foreignKeys []string
}

var tables = []tableSpec{
	{model: (*models.User)(nil)},
	{model: (*models.TrainType)(nil)},
	{model: (*models.Train)(nil), foreignKeys: []string{
		`("train_type_id") REFERENCES "train_types" ("id") ON DELETE CASCADE`,
	}},
	{model: (*models.Station)(nil)},
	{model: (*models.Route)(nil), foreignKeys: []string{
		`("source_id") REFERENCES "stations" ("id") ON DELETE CASCADE`,
		`("destination_id") REFERENCES "stations" ("id") ON DELETE CASCADE`,
	}},
	{model: (*models.Crew)(nil)},
	{model: (*models.Trip)(nil), foreignKeys: []string{
		`("route_id") REFERENCES "routes" ("id") ON DELETE CASCADE`,
		`("train_id") REFERENCES "trains" ("id") ON DELETE CASCADE`,
	}},
	{model: (*models.TripCrew)(nil), foreignKeys: []string{
		`("trip_id") REFERENCES "trips" ("id") ON DELETE CASCADE`,
		`("crew_id") REFERENCES "crews" ("id") ON DELETE CASCADE`,
	}},
	{model: (*models.Order)(nil), foreignKeys: []string{
		`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
	}},
	{model: (*models.Ticket)(nil), foreignKeys: []string{
		`("trip_id") REFERENCES "trips" ("id") ON DELETE CASCADE`,
		`("order_id") REFERENCES "orders" ("id") ON DELETE CASCADE`,
	}},
}

// CreateSchema creates every table from the bun models. Production schemas
// come from the SQL migrations, which also carry the CHECK constraints.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", t.model, err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err comes from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// IsForeignKeyViolation reports whether err comes from a FOREIGN KEY constraint.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// likeEscaper escapes LIKE wildcards for patterns used with ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// EscapeLike makes s match literally inside a LIKE pattern. The query must
// declare ESCAPE '!'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Ping checks the store for the health endpoint.
func Ping(ctx context.Context, db *bun.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
