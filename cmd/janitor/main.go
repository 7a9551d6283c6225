package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultRetentionDays = 30

// handler borra incidentes viejos del journal. Corre como lambda programada.
func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}
	days := retentionDays(os.Getenv("RETENTION_DAYS"))

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := pool.Exec(cctx, `DELETE FROM incidents WHERE created_at < now() - make_interval(days => $1)`, days)
	if err != nil {
		return "", fmt.Errorf("purge incidents: %w", err)
	}
	return fmt.Sprintf("ok: %d incidents older than %d days removed", tag.RowsAffected(), days), nil
}

func retentionDays(raw string) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return defaultRetentionDays
}

func main() { lambda.Start(handler) }
