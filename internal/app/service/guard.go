package service

import (
	"context"
	"log/slog"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/jose-valero/guild-guard-bot/internal/infra/storage"
)

type GuardDeps struct {
	Log      *slog.Logger
	Platform Platform
	Store    *storage.MemStore
	Policy   domain.Policy
	Notifier Notifier        // opcional
	Journal  IncidentJournal // opcional
}

// Guard es la fachada que usan los slash commands, el server HTTP y main.
type Guard struct {
	log      *slog.Logger
	store    *storage.MemStore
	policy   domain.Policy
	alerts   *Alerter
	Threats  *ThreatService
	Lockdown *LockdownService
	Backups  *BackupService
	Restorer *RestoreService
}

func NewGuard(d GuardDeps) *Guard {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	store := d.Store
	if store == nil {
		store = storage.NewMemStore(d.Policy.Windows())
	}
	alerts := NewAlerter(log.With("component", "alerts"), d.Platform, d.Notifier, d.Journal)
	lockdown := NewLockdownService(log.With("component", "lockdown"), d.Platform, store, alerts, d.Policy.LockdownTimeout)
	restore := NewRestoreService(log.With("component", "restore"), d.Platform, store, alerts, d.Policy.RestoreRate, d.Policy.RestoreBurst)
	return &Guard{
		log:      log,
		store:    store,
		policy:   d.Policy,
		alerts:   alerts,
		Threats:  NewThreatService(log.With("component", "threats"), d.Platform, store, d.Policy, lockdown, restore, alerts),
		Lockdown: lockdown,
		Backups:  NewBackupService(log.With("component", "backup"), d.Platform, store),
		Restorer: restore,
	}
}

func (g *Guard) Policy() domain.Policy { return g.policy }

func (g *Guard) EnableLockdown(ctx context.Context, guildID, reason string) (domain.LockdownState, domain.Report, error) {
	return g.Lockdown.Enable(ctx, guildID, reason)
}

func (g *Guard) DisableLockdown(ctx context.Context, guildID, reason string) (domain.Report, error) {
	return g.Lockdown.Disable(ctx, guildID, reason)
}

func (g *Guard) Backup(ctx context.Context, guildID string) (*domain.Snapshot, error) {
	return g.Backups.Backup(ctx, guildID)
}

func (g *Guard) Restore(ctx context.Context, guildID string, scope domain.RestoreScope) (domain.Report, error) {
	return g.Restorer.Restore(ctx, guildID, scope)
}

func (g *Guard) AllowAdd(userID string) bool    { return g.store.Allow.Add(userID) }
func (g *Guard) AllowRemove(userID string) bool { return g.store.Allow.Remove(userID) }
func (g *Guard) AllowList() []string            { return g.store.Allow.List() }
func (g *Guard) Allowed(userID string) bool     { return g.store.Allow.Has(userID) }

func (g *Guard) Status(guildID string) domain.Status {
	st := domain.Status{GuildID: guildID, AllowListSize: g.store.Allow.Len()}
	if ld, ok := g.Lockdown.State(guildID); ok {
		st.LockdownActive = true
		st.LockdownReason = ld.Reason
		st.LockdownSince = ld.StartedAt
	}
	if snap, ok := g.store.Snapshots.Get(guildID); ok {
		st.LastBackupSize = len(snap.Roles)
		st.BackupChannels = len(snap.Channels)
		st.BackupMembers = len(snap.Members)
		st.BackupTakenAt = snap.TakenAt
	}
	return st
}

// Prepare siembra roles de confianza y hace el backup inicial de cada guild.
func (g *Guard) Prepare(ctx context.Context, guildIDs []string) {
	for _, id := range guildIDs {
		n, err := g.Lockdown.SeedTrust(ctx, id)
		if err != nil {
			g.log.Warn("seed trust failed", "guild", id, "err", err)
			continue
		}
		g.log.Info("trusted roles seeded", "guild", id, "roles", n)
	}
	ok := g.Backups.BackupAll(ctx, guildIDs)
	g.log.Info("initial backup done", "guilds", len(guildIDs), "ok", ok)
}

func (g *Guard) Close() { g.Lockdown.Close() }
