package matchmaking

import (
	"sync"
	"time"

	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/scheduler"
)

const (
	// DefaultTimeout is how long a player waits in the queue before being
	// matched against a bot.
	DefaultTimeout = 10 * time.Second
	// BotUsername is the display name of synthesized bot opponents.
	BotUsername = "AI Bot"
)

// Coordinator owns the queue of players waiting for an opponent. Queue
// membership is keyed by stable username, never by connection ref. The
// check-for-match-then-insert step runs under a single lock so concurrent
// enqueues cannot double-pair.
type Coordinator struct {
	mu        sync.Mutex
	manager   *game.Manager
	scheduler *scheduler.Scheduler
	timeout   time.Duration
	waiting   map[string]*entry
}

type entry struct {
	player game.Player
	task   *scheduler.Task
}

// NewCoordinatorOptions contains options for creating a new Coordinator.
type NewCoordinatorOptions struct {
	Manager   *game.Manager
	Scheduler *scheduler.Scheduler
	// Timeout before falling back to a bot opponent. Defaults to
	// DefaultTimeout.
	Timeout time.Duration
}

func NewCoordinator(opts NewCoordinatorOptions) *Coordinator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		manager:   opts.Manager,
		scheduler: opts.Scheduler,
		timeout:   timeout,
		waiting:   make(map[string]*entry),
	}
}

// Enqueue adds a player to the queue. If another distinct identity is
// already waiting the two are paired into a session and onPaired is called.
// Otherwise the player waits; when the timeout fires and they are still
// queued, a session against a bot is created and onBotFallback is called.
// Re-enqueueing the same username resets their place and timer.
func (c *Coordinator) Enqueue(player game.Player, onPaired, onBotFallback func(*game.Session)) {
	c.mu.Lock()

	if existing, ok := c.waiting[player.Username]; ok {
		existing.task.Cancel()
		delete(c.waiting, player.Username)
	}
	c.waiting[player.Username] = &entry{player: player}

	var opponent *entry
	for username, e := range c.waiting {
		if username != player.Username {
			opponent = e
			break
		}
	}

	if opponent != nil {
		delete(c.waiting, player.Username)
		delete(c.waiting, opponent.player.Username)
		opponent.task.Cancel()
		c.mu.Unlock()

		log.Info("Match found: %s vs %s", player.Username, opponent.player.Username)
		session := c.manager.CreateSession(player, opponent.player)
		onPaired(session)
		return
	}

	username := player.Username
	c.waiting[username].task = c.scheduler.Schedule(c.timeout, func() {
		c.matchWithBot(username, onBotFallback)
	})
	waitingCount := len(c.waiting)
	c.mu.Unlock()

	log.Debug("%s waiting for opponent (%d in queue)", username, waitingCount)
}

// matchWithBot pairs a still-queued player against a synthesized bot. The
// bot's color placeholder is ignored; CreateSession re-randomizes colors.
func (c *Coordinator) matchWithBot(username string, onBotFallback func(*game.Session)) {
	c.mu.Lock()
	e, ok := c.waiting[username]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.waiting, username)
	c.mu.Unlock()

	log.Info("No opponent found for %s, matching with bot", username)
	botPlayer := game.Player{
		Username:  BotUsername,
		Kind:      game.PlayerKindBot,
		Connected: true,
		LastSeen:  time.Now(),
	}
	session := c.manager.CreateSession(e.player, botPlayer)
	onBotFallback(session)
}

// Cancel removes a player from the queue and stops their fallback timer.
// It is a no-op if the player is not queued.
func (c *Coordinator) Cancel(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.waiting[username]
	if !ok {
		return
	}
	e.task.Cancel()
	delete(c.waiting, username)
}

// Count returns the number of waiting players.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiting)
}

// IsWaiting reports whether the username is queued.
func (c *Coordinator) IsWaiting(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.waiting[username]
	return ok
}

// Waiting returns a snapshot of the queued players.
func (c *Coordinator) Waiting() []game.Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	players := make([]game.Player, 0, len(c.waiting))
	for _, e := range c.waiting {
		players = append(players, e.player)
	}
	return players
}
