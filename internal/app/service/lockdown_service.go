package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/jose-valero/guild-guard-bot/internal/infra/storage"
)

const timerOpTimeout = 2 * time.Minute

// LockdownService maneja la maquina Normal <-> Locked por guild.
type LockdownService struct {
	log      *slog.Logger
	platform Platform
	book     *storage.LockdownBook
	trust    *storage.IDSet
	alerts   *Alerter
	timeout  time.Duration
	now      func() time.Time

	timersMu sync.Mutex
	timers   map[string]*time.Timer // guild -> auto-disable
}

func NewLockdownService(log *slog.Logger, platform Platform, store *storage.MemStore, alerts *Alerter, timeout time.Duration) *LockdownService {
	return &LockdownService{
		log:      log,
		platform: platform,
		book:     store.Lockdowns,
		trust:    store.Trust,
		alerts:   alerts,
		timeout:  timeout,
		now:      time.Now,
		timers:   map[string]*time.Timer{},
	}
}

func (s *LockdownService) State(guildID string) (domain.LockdownState, bool) {
	return s.book.Get(guildID)
}

func (s *LockdownService) Active(guildID string) bool { return s.book.Active(guildID) }

// Enable saca los permisos peligrosos a todos los roles (menos @everyone, los
// integrados y los de confianza), borra las invitaciones y arma el auto-disable.
// Si ya esta en lockdown no toca nada y devuelve ErrLockdownActive.
func (s *LockdownService) Enable(ctx context.Context, guildID, reason string) (domain.LockdownState, domain.Report, error) {
	unlock := s.book.Lock(guildID)
	defer unlock()

	if st, ok := s.book.Get(guildID); ok {
		return st, domain.Report{Op: "lockdown"}, domain.ErrLockdownActive
	}

	log := s.log.With("guild", guildID)
	rep := domain.Report{Op: "lockdown"}
	saved := map[string]int64{}
	auditReason := "Lockdown: " + reason

	roles, err := s.platform.Roles(ctx, guildID)
	if err != nil {
		// seguimos igual: las invitaciones y el estado importan mas
		rep.Add(domain.Outcome{Kind: "role", Name: "*", Err: fmt.Errorf("list roles: %w", err)})
	}
	for _, r := range roles {
		if r.ID == guildID || r.Managed || s.trust.Has(r.ID) {
			continue
		}
		stripped := r.Permissions &^ domain.Dangerous
		if stripped == r.Permissions {
			continue
		}
		err := s.platform.SetRolePermissions(ctx, guildID, r.ID, stripped, auditReason)
		rep.Add(domain.Outcome{Kind: "role", ID: r.ID, Name: r.Name, Err: err})
		lockdownOutcomeCount.WithLabelValues("enable", outcomeResult(err, false)).Inc()
		if err != nil {
			log.Warn("lockdown: strip role failed", "role", r.ID, "err", err)
			continue
		}
		saved[r.ID] = r.Permissions
	}

	invites, err := s.platform.Invites(ctx, guildID)
	if err != nil {
		rep.Add(domain.Outcome{Kind: "invite", Name: "*", Err: fmt.Errorf("list invites: %w", err)})
	}
	for _, inv := range invites {
		err := s.platform.DeleteInvite(ctx, inv.Code, auditReason)
		rep.Add(domain.Outcome{Kind: "invite", ID: inv.Code, Err: err})
		lockdownOutcomeCount.WithLabelValues("enable", outcomeResult(err, false)).Inc()
		if err != nil {
			log.Warn("lockdown: delete invite failed", "invite", inv.Code, "err", err)
		}
	}

	st := domain.LockdownState{
		ID:               uuid.NewString(),
		GuildID:          guildID,
		Active:           true,
		StartedAt:        s.now(),
		Reason:           reason,
		SavedPermissions: saved,
	}
	s.book.Put(st)
	s.armTimer(guildID, st.ID)
	lockdownsActive.Set(float64(s.book.ActiveCount()))

	log.Warn("lockdown enabled", "lockdown_id", st.ID, "reason", reason, "roles_stripped", len(saved), "failures", len(rep.Failed()))
	s.alerts.Emit(ctx, domain.Alert{
		GuildID:  guildID,
		Severity: domain.SeverityCritical,
		Kind:     "lockdown_enabled",
		Message:  fmt.Sprintf("Lockdown activado: %s. %s. Se desactiva solo en %s.", reason, rep.Summary(), s.timeout),
	})
	return st.Copy(), rep, nil
}

// Disable devuelve los permisos guardados a los roles que todavia existen.
func (s *LockdownService) Disable(ctx context.Context, guildID, reason string) (domain.Report, error) {
	unlock := s.book.Lock(guildID)
	defer unlock()

	st, ok := s.book.Get(guildID)
	if !ok {
		return domain.Report{Op: "unlock"}, domain.ErrNotLocked
	}
	return s.disableLocked(ctx, st, reason), nil
}

// autoDisable corre desde el timer; no hace nada si ese lockdown ya termino.
func (s *LockdownService) autoDisable(guildID, lockdownID string) {
	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()

	unlock := s.book.Lock(guildID)
	defer unlock()

	st, ok := s.book.Get(guildID)
	if !ok || st.ID != lockdownID {
		return
	}
	s.disableLocked(ctx, st, "timeout automatico")
}

// disableLocked asume el Lock del guild tomado.
func (s *LockdownService) disableLocked(ctx context.Context, st domain.LockdownState, reason string) domain.Report {
	s.stopTimer(st.GuildID)
	log := s.log.With("guild", st.GuildID, "lockdown_id", st.ID)
	rep := domain.Report{Op: "unlock"}

	// sin lista no sabemos cuales siguen: existing nil = probamos todos
	var existing map[string]bool
	if roles, err := s.platform.Roles(ctx, st.GuildID); err != nil {
		log.Warn("unlock: list roles failed", "err", err)
	} else {
		existing = make(map[string]bool, len(roles))
		for _, r := range roles {
			existing[r.ID] = true
		}
	}

	ids := make([]string, 0, len(st.SavedPermissions))
	for id := range st.SavedPermissions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if existing != nil && !existing[id] {
			rep.Add(domain.Outcome{Kind: "role", ID: id, Skipped: true})
			lockdownOutcomeCount.WithLabelValues("disable", "skipped").Inc()
			continue
		}
		err := s.platform.SetRolePermissions(ctx, st.GuildID, id, st.SavedPermissions[id], "Unlock: "+reason)
		rep.Add(domain.Outcome{Kind: "role", ID: id, Err: err})
		lockdownOutcomeCount.WithLabelValues("disable", outcomeResult(err, false)).Inc()
		if err != nil {
			log.Warn("unlock: restore role failed", "role", id, "err", err)
		}
	}

	s.book.Delete(st.GuildID)
	lockdownsActive.Set(float64(s.book.ActiveCount()))

	log.Info("lockdown disabled", "reason", reason, "duration", s.now().Sub(st.StartedAt).Round(time.Second))
	s.alerts.Emit(ctx, domain.Alert{
		GuildID:  st.GuildID,
		Severity: domain.SeverityInfo,
		Kind:     "lockdown_disabled",
		Message:  fmt.Sprintf("Lockdown desactivado (%s). %s.", reason, rep.Summary()),
	})
	return rep
}

func (s *LockdownService) armTimer(guildID, lockdownID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if t, ok := s.timers[guildID]; ok {
		t.Stop()
	}
	s.timers[guildID] = time.AfterFunc(s.timeout, func() { s.autoDisable(guildID, lockdownID) })
}

func (s *LockdownService) stopTimer(guildID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if t, ok := s.timers[guildID]; ok {
		t.Stop()
		delete(s.timers, guildID)
	}
}

// Close frena todos los timers pendientes. Los guilds quedan como esten.
func (s *LockdownService) Close() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for g, t := range s.timers {
		t.Stop()
		delete(s.timers, g)
	}
}

// SeedTrust marca como confiables los roles admin cuyo nombre contiene "admin".
func (s *LockdownService) SeedTrust(ctx context.Context, guildID string) (int, error) {
	roles, err := s.platform.Roles(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("seed trust: %w", err)
	}
	n := 0
	for _, r := range roles {
		if r.Permissions&domain.PermAdministrator != 0 && strings.Contains(strings.ToLower(r.Name), "admin") {
			if s.trust.Add(r.ID) {
				n++
			}
		}
	}
	return n, nil
}
