package matchmaking

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(mock *clock.Mock) *Coordinator {
	return NewCoordinator(NewCoordinatorOptions{
		Manager:   game.NewManager(game.NewManagerOptions{}),
		Scheduler: scheduler.New(mock),
	})
}

func humanPlayer(username string) game.Player {
	return game.Player{Username: username, Kind: game.PlayerKindHuman, Connected: true}
}

func TestCoordinator_PairsTwoPlayers(t *testing.T) {
	mock := clock.NewMock()
	c := newTestCoordinator(mock)

	var paired *game.Session
	c.Enqueue(humanPlayer("alice"), func(s *game.Session) { paired = s }, nil)
	require.Nil(t, paired)
	assert.True(t, c.IsWaiting("alice"))

	c.Enqueue(humanPlayer("bob"), func(s *game.Session) { paired = s }, nil)
	require.NotNil(t, paired)
	assert.Equal(t, 0, c.Count())

	_, ok := paired.PlayerByUsername("alice")
	assert.True(t, ok)
	_, ok = paired.PlayerByUsername("bob")
	assert.True(t, ok)
	assert.Equal(t, game.StatusPlaying, paired.Status)
}

func TestCoordinator_BotFallbackAfterTimeout(t *testing.T) {
	mock := clock.NewMock()
	c := newTestCoordinator(mock)

	var fallback *game.Session
	c.Enqueue(humanPlayer("alice"), nil, func(s *game.Session) { fallback = s })

	// Just short of the window there is no bot match yet.
	mock.Add(DefaultTimeout - time.Millisecond)
	assert.Nil(t, fallback)
	assert.True(t, c.IsWaiting("alice"))

	mock.Add(time.Millisecond)
	require.NotNil(t, fallback)
	assert.False(t, c.IsWaiting("alice"))

	bot, ok := fallback.BotPlayer()
	require.True(t, ok)
	assert.Equal(t, BotUsername, bot.Username)
	opponent, ok := fallback.Opponent(BotUsername)
	require.True(t, ok)
	assert.Equal(t, "alice", opponent.Username)
}

func TestCoordinator_PairingCancelsFallbackTimer(t *testing.T) {
	mock := clock.NewMock()
	c := newTestCoordinator(mock)

	var fallbacks int
	var paired *game.Session
	onBot := func(s *game.Session) { fallbacks++ }

	c.Enqueue(humanPlayer("alice"), nil, onBot)
	mock.Add(DefaultTimeout / 2)
	c.Enqueue(humanPlayer("bob"), func(s *game.Session) { paired = s }, onBot)
	require.NotNil(t, paired)

	mock.Add(2 * DefaultTimeout)
	assert.Equal(t, 0, fallbacks)
}

func TestCoordinator_Cancel(t *testing.T) {
	mock := clock.NewMock()
	c := newTestCoordinator(mock)

	var fallbacks int
	c.Enqueue(humanPlayer("alice"), nil, func(s *game.Session) { fallbacks++ })
	c.Cancel("alice")
	assert.False(t, c.IsWaiting("alice"))

	mock.Add(2 * DefaultTimeout)
	assert.Equal(t, 0, fallbacks)

	// Cancelling a player who is not queued is a no-op.
	c.Cancel("nobody")
}

func TestCoordinator_ReenqueueResetsTimer(t *testing.T) {
	mock := clock.NewMock()
	c := newTestCoordinator(mock)

	var fallbacks int
	onBot := func(s *game.Session) { fallbacks++ }

	c.Enqueue(humanPlayer("alice"), nil, onBot)
	mock.Add(DefaultTimeout - time.Second)

	// Re-enqueueing does not pair alice against herself and restarts
	// the fallback window from zero.
	c.Enqueue(humanPlayer("alice"), func(s *game.Session) {
		t.Fatal("player paired against themselves")
	}, onBot)
	assert.Equal(t, 1, c.Count())

	mock.Add(DefaultTimeout - time.Second)
	assert.Equal(t, 0, fallbacks)

	mock.Add(time.Second)
	assert.Equal(t, 1, fallbacks)
}

func TestCoordinator_Waiting(t *testing.T) {
	mock := clock.NewMock()
	c := newTestCoordinator(mock)

	c.Enqueue(humanPlayer("alice"), nil, func(s *game.Session) {})
	players := c.Waiting()
	require.Len(t, players, 1)
	assert.Equal(t, "alice", players[0].Username)
}
