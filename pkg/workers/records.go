package workers

import (
	"context"

	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/repositories"
)

// OutcomeRequest asks the worker to bump a player's win/loss counters.
type OutcomeRequest struct {
	Username string
	Won      bool
}

// GameRecordWorker drains the persistence channels and writes finished
// games and player counters to the repository. Failures are logged and
// dropped; the live engine never waits on or learns about them.
type GameRecordWorker struct {
	repository       repositories.Repository
	saveGameChan     <-chan game.Summary
	upsertPlayerChan <-chan string
	outcomeChan      <-chan OutcomeRequest
}

// NewGameRecordWorkerOptions contains options for creating a new
// GameRecordWorker.
type NewGameRecordWorkerOptions struct {
	Repository       repositories.Repository
	SaveGameChan     <-chan game.Summary
	UpsertPlayerChan <-chan string
	OutcomeChan      <-chan OutcomeRequest
}

func NewGameRecordWorker(opts NewGameRecordWorkerOptions) *GameRecordWorker {
	return &GameRecordWorker{
		repository:       opts.Repository,
		saveGameChan:     opts.SaveGameChan,
		upsertPlayerChan: opts.UpsertPlayerChan,
		outcomeChan:      opts.OutcomeChan,
	}
}

func (w *GameRecordWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case summary := <-w.saveGameChan:
			if err := w.repository.SaveGame(ctx, summary); err != nil {
				log.Error("Failed to save game %s: %v", summary.ID, err)
			}
		case username := <-w.upsertPlayerChan:
			if err := w.repository.UpsertPlayer(ctx, username); err != nil {
				log.Error("Failed to upsert player %s: %v", username, err)
			}
		case outcome := <-w.outcomeChan:
			if err := w.repository.RecordOutcome(ctx, outcome.Username, outcome.Won); err != nil {
				log.Error("Failed to record outcome for %s: %v", outcome.Username, err)
			}
		}
	}
}
