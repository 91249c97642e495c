package episode

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"pulsegate/internal/governance/models"
	txcontext "pulsegate/pkg/platform/tx"
)

// Schema creates the episode tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS governance_episodes (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	content_id  TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	warned_at   TIMESTAMPTZ,
	locked_at   TIMESTAMPTZ,
	ended_at    TIMESTAMPTZ,
	peak_phase  TEXT NOT NULL,
	outcome     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS governance_episodes_session_idx ON governance_episodes (session_id, started_at);
CREATE TABLE IF NOT EXISTS governance_episode_members (
	episode_id     UUID NOT NULL REFERENCES governance_episodes (id) ON DELETE CASCADE,
	participant_id TEXT NOT NULL,
	PRIMARY KEY (episode_id, participant_id)
);
CREATE INDEX IF NOT EXISTS governance_episode_members_participant_idx ON governance_episode_members (participant_id);
`

// PostgresStore persists episodes in PostgreSQL. The lock cohort is kept
// in its own table so episodes can be listed per participant.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create episode schema: %w", err)
	}
	return nil
}

// Save upserts the episode and replaces its cohort in one transaction.
func (s *PostgresStore) Save(ctx context.Context, ep models.Episode) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFor(ctx, s.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO governance_episodes (
				id, session_id, content_id, started_at, warned_at,
				locked_at, ended_at, peak_phase, outcome
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				warned_at  = EXCLUDED.warned_at,
				locked_at  = EXCLUDED.locked_at,
				ended_at   = EXCLUDED.ended_at,
				peak_phase = EXCLUDED.peak_phase,
				outcome    = EXCLUDED.outcome
		`,
			ep.ID,
			ep.SessionID,
			ep.ContentID,
			ep.StartedAt,
			nullTime(ep.WarnedAt),
			nullTime(ep.LockedAt),
			nullTime(ep.EndedAt),
			string(ep.PeakPhase),
			string(ep.Outcome),
		)
		if err != nil {
			return fmt.Errorf("upsert episode: %w", err)
		}
		if _, err := exec.ExecContext(ctx,
			`DELETE FROM governance_episode_members WHERE episode_id = $1`, ep.ID,
		); err != nil {
			return fmt.Errorf("clear episode cohort: %w", err)
		}
		if len(ep.Cohort) == 0 {
			return nil
		}
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO governance_episode_members (episode_id, participant_id)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING
		`, ep.ID, pq.Array(ep.Cohort)); err != nil {
			return fmt.Errorf("insert episode cohort: %w", err)
		}
		return nil
	})
}

const selectEpisodes = `
	SELECT e.id, e.session_id, e.content_id, e.started_at, e.warned_at,
		   e.locked_at, e.ended_at, e.peak_phase, e.outcome,
		   COALESCE(array_agg(m.participant_id ORDER BY m.participant_id)
		            FILTER (WHERE m.participant_id IS NOT NULL), '{}')
	FROM governance_episodes e
	LEFT JOIN governance_episode_members m ON m.episode_id = e.id
`

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]models.Episode, error) {
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, selectEpisodes+`
		WHERE e.session_id = $1
		GROUP BY e.id
		ORDER BY e.started_at ASC, e.id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// ListByParticipant returns every episode whose lock cohort included
// participantID, oldest first.
func (s *PostgresStore) ListByParticipant(ctx context.Context, participantID string) ([]models.Episode, error) {
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, selectEpisodes+`
		WHERE e.id IN (
			SELECT episode_id FROM governance_episode_members WHERE participant_id = $1
		)
		GROUP BY e.id
		ORDER BY e.started_at ASC, e.id ASC
	`, participantID)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

func scanEpisodes(rows *sql.Rows) ([]models.Episode, error) {
	var out []models.Episode
	for rows.Next() {
		var (
			ep                    models.Episode
			warned, locked, ended sql.NullTime
			peak, outcome         string
		)
		if err := rows.Scan(
			&ep.ID,
			&ep.SessionID,
			&ep.ContentID,
			&ep.StartedAt,
			&warned,
			&locked,
			&ended,
			&peak,
			&outcome,
			pq.Array(&ep.Cohort),
		); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.WarnedAt = timePtr(warned)
		ep.LockedAt = timePtr(locked)
		ep.EndedAt = timePtr(ended)
		ep.PeakPhase = models.Phase(peak)
		ep.Outcome = models.EpisodeOutcome(outcome)
		if len(ep.Cohort) == 0 {
			ep.Cohort = nil
		}
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
