// Package database opens the optional remote connections behind the
// document store and the event store.
package database

import (
	"context"
	"errors"
	"log"

	"abfeedback/api/config"
)

var ErrNotConfigured = errors.New("database is not configured")

// Connections holds whichever remote connections are configured and
// reachable. A nil field means that store is off for this process.
type Connections struct {
	Postgres   *DBClient
	ClickHouse *ClickHouseClient
}

// Open connects to every configured database. Failures are logged and leave
// the corresponding field nil; they never stop the server.
func Open(ctx context.Context, cfg *config.Config) *Connections {
	conns := &Connections{}
	sinks := cfg.Sinks()

	if sinks.DocStore {
		db, err := NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("WARN: document store disabled: %v", err)
		} else {
			conns.Postgres = db
		}
	}
	if sinks.EventStore {
		ch, err := NewClickHouseDB(ctx, cfg.ClickHouse)
		if err != nil {
			log.Printf("WARN: event store disabled: %v", err)
		} else {
			conns.ClickHouse = ch
		}
	}
	return conns
}

func (c *Connections) Close() {
	if c == nil {
		return
	}
	c.Postgres.Close()
	c.ClickHouse.Close()
}
