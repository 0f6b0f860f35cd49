package repositories

import (
	"context"

	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/repositories/models"
)

// Repository stores finished games, player counters, and lifecycle events.
// The live engine only ever writes through the async workers; reads serve
// the history/leaderboard API.
type Repository interface {
	Close(ctx context.Context) error
	SaveGame(ctx context.Context, summary game.Summary) error
	UpsertPlayer(ctx context.Context, username string) error
	RecordOutcome(ctx context.Context, username string, won bool) error
	SaveEvent(ctx context.Context, event models.EventRecord) error
	GetPlayer(ctx context.Context, username string) (*models.PlayerRecord, error)
	ListLeaderboard(ctx context.Context, limit int) ([]models.PlayerRecord, error)
	ListRecentGames(ctx context.Context, limit int) ([]models.GameRecord, error)
}
