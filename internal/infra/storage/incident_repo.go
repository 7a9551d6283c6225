package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
	pq "github.com/lib/pq"
)

// IncidentRepo es el journal append-only de alertas. Nunca se lee para reconstruir estado.
type IncidentRepo struct{ db *sql.DB }

func NewIncidentRepo(db *sql.DB) *IncidentRepo { return &IncidentRepo{db: db} }

func (r *IncidentRepo) Append(ctx context.Context, a domain.Alert) error {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	affected := a.Affected
	if affected == nil {
		affected = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO incidents (id, guild_id, severity, kind, actor_id, message, affected, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING
`, id, a.GuildID, string(a.Severity), a.Kind, a.ActorID, a.Message, pq.Array(affected), at)
	return err
}

// Recent: ultimas alertas de un guild, mas nuevas primero.
func (r *IncidentRepo) Recent(ctx context.Context, guildID string, limit int) ([]domain.Alert, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, guild_id, severity, kind, actor_id, message, affected, created_at
  FROM incidents
 WHERE guild_id = $1
 ORDER BY created_at DESC
 LIMIT $2
`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var sev string
		if err := rows.Scan(&a.ID, &a.GuildID, &sev, &a.Kind, &a.ActorID, &a.Message, pq.Array(&a.Affected), &a.At); err != nil {
			return nil, err
		}
		a.Severity = domain.Severity(sev)
		out = append(out, a)
	}
	return out, rows.Err()
}
