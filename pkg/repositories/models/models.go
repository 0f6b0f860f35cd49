package models

import (
	"encoding/json"
	"time"
)

// PlayerRecord is a player's durable win/loss counters.
type PlayerRecord struct {
	Username     string     `json:"username"`
	GamesWon     int        `json:"gamesWon"`
	GamesPlayed  int        `json:"gamesPlayed"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastPlayedAt *time.Time `json:"lastPlayedAt,omitempty"`
}

// GameRecord is a finished game as stored. Players and Moves are the JSON
// documents produced by the live engine; the history layer does not need
// to interpret them.
type GameRecord struct {
	ID              string          `json:"id"`
	Players         json.RawMessage `json:"players"`
	Winner          string          `json:"winner"`
	Moves           json.RawMessage `json:"moves"`
	DurationSeconds float64         `json:"durationSeconds"`
	StartedAt       time.Time       `json:"startedAt"`
	FinishedAt      time.Time       `json:"finishedAt"`
	Completion      string          `json:"completion"`
}

// EventRecord is one lifecycle event from the analytics pipeline.
type EventRecord struct {
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}
