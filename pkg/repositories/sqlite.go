package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveGame(ctx context.Context, summary game.Summary) error {
	players, err := json.Marshal(summary.Players)
	if err != nil {
		return fmt.Errorf("failed to marshal players: %v", err)
	}
	moves, err := json.Marshal(summary.Moves)
	if err != nil {
		return fmt.Errorf("failed to marshal moves: %v", err)
	}

	q := `
	INSERT OR REPLACE INTO games (id, players, winner, moves, duration_seconds, started_at, finished_at, completion)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`
	_, err = r.db.ExecContext(ctx, q, summary.ID, string(players), string(summary.Winner), string(moves),
		summary.DurationSeconds, summary.StartedAt, summary.FinishedAt, summary.Completion)
	if err != nil {
		return fmt.Errorf("failed to insert game: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) UpsertPlayer(ctx context.Context, username string) error {
	q := `
	INSERT INTO players (username, games_won, games_played, created_at)
	VALUES (?, 0, 0, ?)
	ON CONFLICT (username) DO NOTHING;
	`
	if _, err := r.db.ExecContext(ctx, q, username, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert player: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) RecordOutcome(ctx context.Context, username string, won bool) error {
	wonIncrement := 0
	if won {
		wonIncrement = 1
	}

	q := `
	UPDATE players
	SET games_played = games_played + 1, games_won = games_won + ?, last_played_at = ?
	WHERE username = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, wonIncrement, time.Now(), username); err != nil {
		return fmt.Errorf("failed to record outcome: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) SaveEvent(ctx context.Context, event models.EventRecord) error {
	q := `
	INSERT INTO events (event_type, session_id, timestamp, data)
	VALUES (?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, event.EventType, event.SessionID, event.Timestamp, string(event.Data))
	if err != nil {
		return fmt.Errorf("failed to insert event: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) GetPlayer(ctx context.Context, username string) (*models.PlayerRecord, error) {
	q := `
	SELECT username, games_won, games_played, created_at, last_played_at
	FROM players WHERE username = ?;
	`
	record := &models.PlayerRecord{}
	var lastPlayedAt sql.NullTime
	if err := r.db.QueryRowContext(ctx, q, username).Scan(
		&record.Username, &record.GamesWon, &record.GamesPlayed, &record.CreatedAt, &lastPlayedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan player: %v", err)
	}
	if lastPlayedAt.Valid {
		record.LastPlayedAt = &lastPlayedAt.Time
	}

	return record, nil
}

func (r *SQLiteRepository) ListLeaderboard(ctx context.Context, limit int) ([]models.PlayerRecord, error) {
	q := `
	SELECT username, games_won, games_played, created_at, last_played_at
	FROM players ORDER BY games_won DESC, games_played ASC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %v", err)
	}
	defer rows.Close()

	var records []models.PlayerRecord
	for rows.Next() {
		record := models.PlayerRecord{}
		var lastPlayedAt sql.NullTime
		if err := rows.Scan(&record.Username, &record.GamesWon, &record.GamesPlayed, &record.CreatedAt, &lastPlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %v", err)
		}
		if lastPlayedAt.Valid {
			record.LastPlayedAt = &lastPlayedAt.Time
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *SQLiteRepository) ListRecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	q := `
	SELECT id, players, winner, moves, duration_seconds, started_at, finished_at, completion
	FROM games ORDER BY finished_at DESC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		record := models.GameRecord{}
		var players, moves string
		if err := rows.Scan(&record.ID, &players, &record.Winner, &moves, &record.DurationSeconds,
			&record.StartedAt, &record.FinishedAt, &record.Completion); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		record.Players = json.RawMessage(players)
		record.Moves = json.RawMessage(moves)
		records = append(records, record)
	}

	return records, rows.Err()
}
