package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/jose-valero/guild-guard-bot/internal/infra/storage"
	"golang.org/x/time/rate"
)

// RestoreService recrea lo que falta del ultimo snapshot. Nunca edita ni borra lo que existe.
type RestoreService struct {
	log      *slog.Logger
	platform Platform
	snaps    *storage.SnapshotStore
	alerts   *Alerter
	limiter  *rate.Limiter
}

func NewRestoreService(log *slog.Logger, platform Platform, store *storage.MemStore, alerts *Alerter, perSecond float64, burst int) *RestoreService {
	if burst < 1 {
		burst = 1
	}
	return &RestoreService{
		log:      log,
		platform: platform,
		snaps:    store.Snapshots,
		alerts:   alerts,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (s *RestoreService) Restore(ctx context.Context, guildID string, scope domain.RestoreScope) (domain.Report, error) {
	rep := domain.Report{Op: "restore"}
	snap, ok := s.snaps.Get(guildID)
	if !ok {
		return rep, domain.ErrNoSnapshot
	}
	log := s.log.With("guild", guildID, "scope", scope)

	// dos restauraciones en paralelo recrearian lo mismo dos veces
	unlock := s.snaps.Lock(guildID)
	defer unlock()

	if scope.Includes(domain.RestoreRoles) {
		if err := s.restoreRoles(ctx, guildID, snap, &rep); err != nil {
			return rep, err
		}
	}
	if scope.Includes(domain.RestoreChannels) {
		if err := s.restoreChannels(ctx, guildID, snap, &rep); err != nil {
			return rep, err
		}
	}

	log.Info("restore finished", "ok", rep.Succeeded(), "failed", len(rep.Failed()), "skipped", rep.Skipped())
	sev := domain.SeverityInfo
	if len(rep.Failed()) > 0 {
		sev = domain.SeverityWarning
	}
	s.alerts.Emit(ctx, domain.Alert{
		GuildID:  guildID,
		Severity: sev,
		Kind:     "restore",
		Message:  fmt.Sprintf("Restauracion (%s) desde backup del %s. %s.", scope, snap.TakenAt.Format("2006-01-02 15:04"), rep.Summary()),
		Affected: restoredNames(rep),
	})
	return rep, nil
}

// liveID resuelve un id del snapshot al id que existe hoy: el mismo, o el de
// la entidad con que se recreo. Nunca compara por nombre.
func (s *RestoreService) liveID(guildID, id string, live map[string]bool) (string, bool) {
	if live[id] {
		return id, true
	}
	if repl, ok := s.snaps.Replacement(guildID, id); ok && live[repl] {
		return repl, true
	}
	return "", false
}

func (s *RestoreService) restoreRoles(ctx context.Context, guildID string, snap *domain.Snapshot, rep *domain.Report) error {
	current, err := s.platform.Roles(ctx, guildID)
	if err != nil {
		return fmt.Errorf("restore roles: %w", err)
	}
	live := make(map[string]bool, len(current))
	for _, r := range current {
		live[r.ID] = true
	}

	for _, r := range snap.Roles {
		if _, ok := s.liveID(guildID, r.ID, live); ok {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		newID, err := s.platform.CreateRole(ctx, guildID, r, "Restore desde backup")
		rep.Add(domain.Outcome{Kind: "role", ID: r.ID, Name: r.Name, Err: err})
		restoreOutcomeCount.WithLabelValues("role", outcomeResult(err, false)).Inc()
		if err != nil {
			s.log.Warn("restore role failed", "guild", guildID, "role", r.Name, "err", err)
			continue
		}
		s.snaps.Remap(guildID, r.ID, newID)
	}
	return nil
}

func (s *RestoreService) restoreChannels(ctx context.Context, guildID string, snap *domain.Snapshot, rep *domain.Report) error {
	current, err := s.platform.Channels(ctx, guildID)
	if err != nil {
		return fmt.Errorf("restore channels: %w", err)
	}
	live := make(map[string]bool, len(current))
	for _, c := range current {
		live[c.ID] = true
	}

	for _, c := range snap.Channels {
		if _, ok := s.liveID(guildID, c.ID, live); ok {
			continue
		}
		req := c
		req.Overwrites = nil
		if req.ParentID != "" {
			req.ParentID, _ = s.liveID(guildID, req.ParentID, live)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		newID, err := s.platform.CreateChannel(ctx, guildID, req, "Restore desde backup")
		rep.Add(domain.Outcome{Kind: "channel", ID: c.ID, Name: c.Name, Err: err})
		restoreOutcomeCount.WithLabelValues("channel", outcomeResult(err, false)).Inc()
		if err != nil {
			s.log.Warn("restore channel failed", "guild", guildID, "channel", c.Name, "err", err)
			continue
		}
		live[newID] = true
		s.snaps.Remap(guildID, c.ID, newID)

		for _, ow := range c.Overwrites {
			// el overwrite apunta al rol recreado si lo hubo
			if ow.TargetType == domain.OverwriteRole {
				if repl, ok := s.snaps.Replacement(guildID, ow.TargetID); ok {
					ow.TargetID = repl
				}
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			err := s.platform.SetOverwrite(ctx, newID, ow, "Restore desde backup")
			rep.Add(domain.Outcome{Kind: "overwrite", ID: newID + "/" + ow.TargetID, Name: c.Name, Err: err})
			restoreOutcomeCount.WithLabelValues("overwrite", outcomeResult(err, false)).Inc()
		}
	}
	return nil
}

func restoredNames(rep domain.Report) []string {
	var out []string
	for _, o := range rep.Outcomes {
		if o.Err == nil && !o.Skipped && o.Kind != "overwrite" {
			out = append(out, o.Kind+":"+o.Name)
		}
	}
	return out
}
