package database

import (
	"context"
	"time"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

func CheckHealth(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	return p.Ping(ctx)
}
