// Package history stores finished games in Postgres.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Elimination records how and when a player ran out of time.
type Elimination struct {
	PlayerID int       `json:"player_id"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

const (
	ReasonKnockedOut = "knocked_out"
	ReasonTimedOut   = "timed_out"
)

// GameRecord is one finished game.
type GameRecord struct {
	SessionID    uuid.UUID     `json:"session_id"`
	TableID      uuid.UUID     `json:"table_id"`
	PlayerCount  int           `json:"player_count"`
	PlayerTimeMs int64         `json:"player_time_ms"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	LastPlayerID int           `json:"last_player_id"`
	Eliminations []Elimination `json:"eliminations"`
}

const schema = `
CREATE TABLE IF NOT EXISTS game_history (
  session_id     UUID PRIMARY KEY,
  table_id       UUID NOT NULL,
  player_count   INTEGER NOT NULL,
  player_time_ms BIGINT NOT NULL,
  started_at     TIMESTAMPTZ NOT NULL,
  ended_at       TIMESTAMPTZ NOT NULL,
  last_player_id INTEGER NOT NULL,
  eliminations   JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS game_history_ended_at_idx ON game_history (ended_at DESC);
`

// Repository reads and writes game history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository on an open pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the history table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// RecordGame stores a finished game. Recording the same session twice is a
// no-op.
func (r *Repository) RecordGame(ctx context.Context, game GameRecord) error {
	eliminations, err := json.Marshal(game.Eliminations)
	if err != nil {
		return fmt.Errorf("failed to marshal eliminations: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO game_history (
          session_id, table_id, player_count, player_time_ms,
          started_at, ended_at, last_player_id, eliminations
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (session_id) DO NOTHING
    `,
		game.SessionID.String(), game.TableID.String(), game.PlayerCount, game.PlayerTimeMs,
		game.StartedAt, game.EndedAt, game.LastPlayerID, string(eliminations),
	)
	if err != nil {
		return fmt.Errorf("failed to insert game %s: %w", game.SessionID, err)
	}
	return nil
}

// RecentGames returns up to limit games, newest first.
func (r *Repository) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT session_id::text, table_id::text, player_count, player_time_ms,
               started_at, ended_at, last_player_id, eliminations::text
        FROM game_history
        ORDER BY ended_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query game history: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var (
			game                    GameRecord
			sessionID, tableID, raw string
		)
		if err := rows.Scan(
			&sessionID, &tableID, &game.PlayerCount, &game.PlayerTimeMs,
			&game.StartedAt, &game.EndedAt, &game.LastPlayerID, &raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game history: %w", err)
		}
		if game.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
		}
		if game.TableID, err = uuid.Parse(tableID); err != nil {
			return nil, fmt.Errorf("invalid table id %q: %w", tableID, err)
		}
		if err := json.Unmarshal([]byte(raw), &game.Eliminations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal eliminations: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game history: %w", err)
	}
	return games, nil
}
