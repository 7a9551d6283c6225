package service

import (
	"context"
	"time"
)

// RunBackups respalda todos los guilds cada BackupInterval hasta que ctx termine.
// guilds se evalua en cada tick para tomar los guilds nuevos.
func (g *Guard) RunBackups(ctx context.Context, guilds func() []string) error {
	t := time.NewTicker(g.policy.BackupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			ids := guilds()
			ok := g.Backups.BackupAll(ctx, ids)
			g.log.Info("scheduled backup done", "guilds", len(ids), "ok", ok)
		}
	}
}

// RunPurge limpia las ventanas vencidas cada PurgeInterval.
func (g *Guard) RunPurge(ctx context.Context) error {
	t := time.NewTicker(g.policy.PurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			n := g.store.Counters.PurgeExpired(now)
			trackedCounterKeys.Set(float64(g.store.Counters.Len()))
			if n > 0 {
				g.log.Debug("expired counters purged", "keys", n)
			}
		}
	}
}
