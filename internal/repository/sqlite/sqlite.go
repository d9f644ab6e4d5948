// Package sqlite is the production ports.Repository and the backing write
// function for internal/eventpub's game log: a *sql.DB wrapper, schema
// created with `CREATE TABLE IF NOT EXISTS` on open, plain parameterized
// queries. It persists only the restart-survivable subset: game ids,
// player ids, round tallies, finished-game scores, and the game log.
// currentRound itself is deliberately absent: in-flight rounds live only in
// memory and die with the process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vctt94/koikoisrv/internal/cardgame"
	"github.com/vctt94/koikoisrv/internal/ports"
)

// DB wraps a sqlite connection used for both the Repository and the game
// log.
type DB struct {
	*sql.DB
}

// Open creates dbPath's parent directory if needed and opens (creating on
// first use) the sqlite database.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create db directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dbPath, err)
	}
	if err := createSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn}, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id                 TEXT PRIMARY KEY,
			player_ids         TEXT NOT NULL,
			rounds_played      INTEGER NOT NULL DEFAULT 0,
			cumulative_scores  TEXT NOT NULL DEFAULT '{}',
			status             TEXT NOT NULL,
			finish_reason      TEXT NOT NULL DEFAULT '',
			winner_id          TEXT NOT NULL DEFAULT '',
			updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_log (
			sequence_number INTEGER PRIMARY KEY,
			game_id         TEXT NOT NULL,
			player_id       TEXT NOT NULL DEFAULT '',
			event_type      TEXT NOT NULL,
			payload         TEXT NOT NULL,
			created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_log_game_id ON game_log(game_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: create schema: %w", err)
		}
	}
	return nil
}

// Repository implements ports.Repository over DB.
type Repository struct {
	db *DB
}

// NewRepository wraps db as a ports.Repository.
func NewRepository(db *DB) *Repository { return &Repository{db: db} }

// SaveGameSummary implements ports.Repository.
func (r *Repository) SaveGameSummary(ctx context.Context, summary ports.GameSummary) error {
	playerIDs, err := json.Marshal(summary.PlayerIDs)
	if err != nil {
		return fmt.Errorf("sqlite: marshal player ids: %w", err)
	}
	scores, err := json.Marshal(summary.CumulativeScores)
	if err != nil {
		return fmt.Errorf("sqlite: marshal cumulative scores: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO games (id, player_ids, rounds_played, cumulative_scores, status, finish_reason, winner_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			player_ids = excluded.player_ids,
			rounds_played = excluded.rounds_played,
			cumulative_scores = excluded.cumulative_scores,
			status = excluded.status,
			finish_reason = excluded.finish_reason,
			winner_id = excluded.winner_id,
			updated_at = excluded.updated_at
	`, summary.GameID, string(playerIDs), summary.RoundsPlayed, string(scores),
		string(summary.Status), string(summary.FinishReason), summary.WinnerID, summary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: save game summary: %w", err)
	}
	return nil
}

// LoadGameSummary implements ports.Repository.
func (r *Repository) LoadGameSummary(ctx context.Context, gameID string) (ports.GameSummary, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT player_ids, rounds_played, cumulative_scores, status, finish_reason, winner_id, updated_at
		FROM games WHERE id = ?
	`, gameID)

	var playerIDsJSON, scoresJSON, status, reason, winnerID string
	var summary ports.GameSummary
	summary.GameID = gameID
	if err := row.Scan(&playerIDsJSON, &summary.RoundsPlayed, &scoresJSON, &status, &reason, &winnerID, &summary.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return ports.GameSummary{}, false, nil
		}
		return ports.GameSummary{}, false, fmt.Errorf("sqlite: load game summary: %w", err)
	}
	if err := json.Unmarshal([]byte(playerIDsJSON), &summary.PlayerIDs); err != nil {
		return ports.GameSummary{}, false, fmt.Errorf("sqlite: unmarshal player ids: %w", err)
	}
	if err := json.Unmarshal([]byte(scoresJSON), &summary.CumulativeScores); err != nil {
		return ports.GameSummary{}, false, fmt.Errorf("sqlite: unmarshal cumulative scores: %w", err)
	}
	summary.Status = cardgame.GameStatus(status)
	summary.FinishReason = cardgame.GameFinishReason(reason)
	summary.WinnerID = winnerID
	return summary, true, nil
}

// GameLog implements eventpub.WriteFunc against the game_log table, using
// the caller-assigned sequence number as the primary key so replay order
// matches emission order even though inserts themselves are
// best-effort.
type GameLog struct {
	db *DB
}

// NewGameLog wraps db as a durable sink for eventpub.GameLog.
func NewGameLog(db *DB) *GameLog { return &GameLog{db: db} }

// Write persists one already-sequenced log record.
func (g *GameLog) Write(ctx context.Context, record ports.LogRecord) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO game_log (sequence_number, game_id, player_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.SequenceNumber, record.GameID, record.PlayerID, record.EventType, string(record.Payload), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: append game log: %w", err)
	}
	return nil
}

// LoadForReplay returns every logged record for gameID in sequence order,
// the input to replaying a game from its initial deal.
func (g *GameLog) LoadForReplay(ctx context.Context, gameID string) ([]ports.LogRecord, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT sequence_number, game_id, player_id, event_type, payload, created_at
		FROM game_log WHERE game_id = ? ORDER BY sequence_number ASC
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load game log: %w", err)
	}
	defer rows.Close()

	var out []ports.LogRecord
	for rows.Next() {
		var rec ports.LogRecord
		var payload string
		if err := rows.Scan(&rec.SequenceNumber, &rec.GameID, &rec.PlayerID, &rec.EventType, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan game log row: %w", err)
		}
		rec.Payload = []byte(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.DB.Close() }
