package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/jose-valero/guild-guard-bot/internal/infra/storage"
)

type BackupService struct {
	log      *slog.Logger
	platform Platform
	snaps    *storage.SnapshotStore
	book     *storage.LockdownBook
	now      func() time.Time
}

func NewBackupService(log *slog.Logger, platform Platform, store *storage.MemStore) *BackupService {
	return &BackupService{log: log, platform: platform, snaps: store.Snapshots, book: store.Lockdowns, now: time.Now}
}

// Backup saca una foto de roles privilegiados, canales de texto/voz y miembros
// privilegiados. Si falla cualquier lectura queda el snapshot anterior.
func (s *BackupService) Backup(ctx context.Context, guildID string) (*domain.Snapshot, error) {
	if s.book.Active(guildID) {
		backupCount.WithLabelValues("refused").Inc()
		return nil, domain.ErrLockdownActive
	}

	snap, err := s.capture(ctx, guildID)
	if err != nil {
		backupCount.WithLabelValues("error").Inc()
		return nil, err
	}
	s.snaps.Put(snap)
	backupCount.WithLabelValues("ok").Inc()
	s.log.Info("backup stored", "guild", guildID, "roles", len(snap.Roles), "channels", len(snap.Channels), "members", len(snap.Members))
	return snap, nil
}

func (s *BackupService) capture(ctx context.Context, guildID string) (*domain.Snapshot, error) {
	roles, err := s.platform.Roles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("backup roles: %w", err)
	}
	channels, err := s.platform.Channels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("backup channels: %w", err)
	}
	members, err := s.platform.Members(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("backup members: %w", err)
	}

	snap := &domain.Snapshot{GuildID: guildID, TakenAt: s.now()}

	perms := make(map[string]int64, len(roles))
	for _, r := range roles {
		perms[r.ID] = r.Permissions
		if r.Permissions&domain.Privileged != 0 {
			snap.Roles = append(snap.Roles, r)
		}
	}
	for _, c := range channels {
		if c.Kind == domain.ChannelText || c.Kind == domain.ChannelVoice {
			c.Overwrites = append([]domain.Overwrite(nil), c.Overwrites...)
			snap.Channels = append(snap.Channels, c)
		}
	}
	everyone := perms[guildID]
	for _, m := range members {
		combined := everyone
		for _, rid := range m.RoleIDs {
			combined |= perms[rid]
		}
		if combined&domain.Privileged != 0 {
			m.RoleIDs = append([]string(nil), m.RoleIDs...)
			snap.Members = append(snap.Members, m)
		}
	}
	return snap, nil
}

// BackupAll respalda cada guild; los errores se loguean y se sigue. Devuelve cuantos salieron bien.
func (s *BackupService) BackupAll(ctx context.Context, guildIDs []string) int {
	ok := 0
	for _, g := range guildIDs {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.Backup(ctx, g); err != nil {
			if errors.Is(err, domain.ErrLockdownActive) {
				s.log.Info("backup skipped, guild in lockdown", "guild", g)
				continue
			}
			s.log.Warn("backup failed", "guild", g, "err", err)
			continue
		}
		ok++
	}
	return ok
}

func (s *BackupService) Latest(guildID string) (*domain.Snapshot, bool) {
	return s.snaps.Get(guildID)
}
