package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"lightning-tournament-backend/internal/common/config"
	"lightning-tournament-backend/internal/common/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("empty postgres DSN")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.Database.PoolMax)
	db.SetMaxIdleConns(cfg.Database.PoolMax / 2)
	db.SetConnMaxIdleTime(time.Duration(cfg.Database.IdleTimeoutMs) * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Database.ConnectTimeoutMs)*time.Millisecond)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Int("pool_max", cfg.Database.PoolMax).
		Msg("PostgreSQL client initialized")

	return &Client{db: db}, nil
}

func (c *Client) GetDB() *sql.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Stats() sql.DBStats {
	return c.db.Stats()
}
