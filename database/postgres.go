package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

type DBClient struct {
	DB *sql.DB
}

// NewPostgresDB opens the document store connection. An empty dsn is a
// configuration error; callers decide up front whether the store is enabled.
func NewPostgresDB(ctx context.Context, dsn string) (*DBClient, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is not set", ErrNotConfigured)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	log.Println("Successfully connected to PostgreSQL document store!")
	return &DBClient{DB: db}, nil
}

func (c *DBClient) Close() {
	if c == nil || c.DB == nil {
		return
	}
	if err := c.DB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("PostgreSQL database connection closed.")
	}
}
