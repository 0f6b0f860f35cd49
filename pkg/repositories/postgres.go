package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository uses a connection pool: the record worker and the API
// handler goroutines query concurrently.
type PostgresRepository struct {
	conn *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	if err := conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.conn.Close()
	return nil
}

func (r *PostgresRepository) SaveGame(ctx context.Context, summary game.Summary) error {
	players, err := json.Marshal(summary.Players)
	if err != nil {
		return fmt.Errorf("failed to marshal players: %v", err)
	}
	moves, err := json.Marshal(summary.Moves)
	if err != nil {
		return fmt.Errorf("failed to marshal moves: %v", err)
	}

	q := `
	INSERT INTO games (id, players, winner, moves, duration_seconds, started_at, finished_at, completion)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING;
	`
	_, err = r.conn.Exec(ctx, q, summary.ID, players, string(summary.Winner), moves,
		summary.DurationSeconds, summary.StartedAt, summary.FinishedAt, summary.Completion)
	if err != nil {
		return fmt.Errorf("failed to insert game: %v", err)
	}

	return nil
}

func (r *PostgresRepository) UpsertPlayer(ctx context.Context, username string) error {
	q := `
	INSERT INTO players (username, games_won, games_played, created_at)
	VALUES ($1, 0, 0, $2)
	ON CONFLICT (username) DO NOTHING;
	`
	if _, err := r.conn.Exec(ctx, q, username, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert player: %v", err)
	}

	return nil
}

func (r *PostgresRepository) RecordOutcome(ctx context.Context, username string, won bool) error {
	wonIncrement := 0
	if won {
		wonIncrement = 1
	}

	q := `
	UPDATE players
	SET games_played = games_played + 1, games_won = games_won + $1, last_played_at = $2
	WHERE username = $3;
	`
	if _, err := r.conn.Exec(ctx, q, wonIncrement, time.Now(), username); err != nil {
		return fmt.Errorf("failed to record outcome: %v", err)
	}

	return nil
}

func (r *PostgresRepository) SaveEvent(ctx context.Context, event models.EventRecord) error {
	q := `
	INSERT INTO events (event_type, session_id, timestamp, data)
	VALUES ($1, $2, $3, $4);
	`
	_, err := r.conn.Exec(ctx, q, event.EventType, event.SessionID, event.Timestamp, event.Data)
	if err != nil {
		return fmt.Errorf("failed to insert event: %v", err)
	}

	return nil
}

func (r *PostgresRepository) GetPlayer(ctx context.Context, username string) (*models.PlayerRecord, error) {
	q := `
	SELECT username, games_won, games_played, created_at, last_played_at
	FROM players WHERE username = $1;
	`
	record := &models.PlayerRecord{}
	if err := r.conn.QueryRow(ctx, q, username).Scan(
		&record.Username, &record.GamesWon, &record.GamesPlayed, &record.CreatedAt, &record.LastPlayedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan player: %v", err)
	}

	return record, nil
}

func (r *PostgresRepository) ListLeaderboard(ctx context.Context, limit int) ([]models.PlayerRecord, error) {
	q := `
	SELECT username, games_won, games_played, created_at, last_played_at
	FROM players ORDER BY games_won DESC, games_played ASC LIMIT $1;
	`
	rows, err := r.conn.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %v", err)
	}
	defer rows.Close()

	var records []models.PlayerRecord
	for rows.Next() {
		record := models.PlayerRecord{}
		if err := rows.Scan(&record.Username, &record.GamesWon, &record.GamesPlayed, &record.CreatedAt, &record.LastPlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %v", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *PostgresRepository) ListRecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	q := `
	SELECT id, players, winner, moves, duration_seconds, started_at, finished_at, completion
	FROM games ORDER BY finished_at DESC LIMIT $1;
	`
	rows, err := r.conn.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %v", err)
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		record := models.GameRecord{}
		if err := rows.Scan(&record.ID, &record.Players, &record.Winner, &record.Moves, &record.DurationSeconds,
			&record.StartedAt, &record.FinishedAt, &record.Completion); err != nil {
			return nil, fmt.Errorf("failed to scan game: %v", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}
