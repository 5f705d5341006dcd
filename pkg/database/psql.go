package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// NewDatabaseConnection open the pgx pool used by the thread store
func NewDatabaseConnection(d Connection) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(d.ConnectStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgreSQL config: %w", err)
	}
	if d.MaxConns > 0 {
		dbConfig.MaxConns = d.MaxConns
	}

	return dialWithRetry("postgres", d.policy(), func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.ConnectConfig(context.Background(), dbConfig)
		if err != nil {
			return nil, err
		}
		// ConnectConfig 不一定會建立連線
		if err := pool.Ping(context.Background()); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
}
