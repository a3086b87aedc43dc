package db

import (
	"context"
	"fmt"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// ConnectRedis returns a client for addr after a ping. An empty addr yields
// a nil client, and callers fall back to in-process state.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connected", "addr", addr, "db", db)
	return client, nil
}
