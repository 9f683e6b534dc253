package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB holds the Postgres handle shared by the repositories.
type DB struct {
	Client *sql.DB
}

// NewDB opens the attendance database through the pgx stdlib driver. Gate
// scans are short bursty writes, so the pool stays small and connections
// are recycled. The initial ping is bounded so a down database fails fast
// instead of hanging startup.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return &DB{Client: db}, db.PingContext(ctx)
}

// Close closes the underlying pool. Safe on a nil receiver.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
