package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cbodonnell/dropfour/pkg/board"
	"github.com/cbodonnell/dropfour/pkg/bot"
	"github.com/cbodonnell/dropfour/pkg/game"
	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/matchmaking"
	"github.com/cbodonnell/dropfour/pkg/messages"
	"github.com/cbodonnell/dropfour/pkg/queue"
	"github.com/cbodonnell/dropfour/pkg/scheduler"
	"github.com/cbodonnell/dropfour/pkg/workers"
)

const (
	// DefaultOpeningMoveDelay is how long the bot waits before its first
	// move when it opens the game.
	DefaultOpeningMoveDelay = 1000 * time.Millisecond
	// DefaultBotReplyDelay is how long the bot waits before replying to a
	// human move.
	DefaultBotReplyDelay = 800 * time.Millisecond
	// DefaultReconnectWindow is the grace period a disconnected player has
	// to reconnect before forfeiting.
	DefaultReconnectWindow = 30 * time.Second
	// DefaultReapDelay is how long a finished session stays in the
	// registry before removal.
	DefaultReapDelay = 60 * time.Second
)

// Sender delivers an event to a connected client. Deliveries to unknown or
// gone clients are silently dropped.
type Sender interface {
	Send(clientID uint32, msg *messages.Message)
}

// binding ties a transient connection ref to a stable username and, once
// the player is in a game, their session.
type binding struct {
	username  string
	sessionID string
}

// Orchestrator is the real-time front door. It routes inbound intents to
// matchmaking and the session manager, runs the disconnect/forfeit state
// machine, schedules bot replies, and fans events out to session members.
type Orchestrator struct {
	manager          *game.Manager
	matchmaker       *matchmaking.Coordinator
	scheduler        *scheduler.Scheduler
	sender           Sender
	eventQueue       queue.Queue
	upsertPlayerChan chan<- string
	outcomeChan      chan<- workers.OutcomeRequest

	openingMoveDelay time.Duration
	botReplyDelay    time.Duration
	reconnectWindow  time.Duration
	reapDelay        time.Duration

	mu             sync.Mutex
	bindings       map[uint32]*binding
	refsByUsername map[string]uint32
	forfeitTasks   map[string]*scheduler.Task
}

// NewOrchestratorOptions contains options for creating a new Orchestrator.
// The delay fields default to the package constants when zero.
type NewOrchestratorOptions struct {
	Manager          *game.Manager
	Matchmaker       *matchmaking.Coordinator
	Scheduler        *scheduler.Scheduler
	Sender           Sender
	EventQueue       queue.Queue
	UpsertPlayerChan chan<- string
	OutcomeChan      chan<- workers.OutcomeRequest
	OpeningMoveDelay time.Duration
	BotReplyDelay    time.Duration
	ReconnectWindow  time.Duration
	ReapDelay        time.Duration
}

func NewOrchestrator(opts NewOrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		manager:          opts.Manager,
		matchmaker:       opts.Matchmaker,
		scheduler:        opts.Scheduler,
		sender:           opts.Sender,
		eventQueue:       opts.EventQueue,
		upsertPlayerChan: opts.UpsertPlayerChan,
		outcomeChan:      opts.OutcomeChan,
		openingMoveDelay: opts.OpeningMoveDelay,
		botReplyDelay:    opts.BotReplyDelay,
		reconnectWindow:  opts.ReconnectWindow,
		reapDelay:        opts.ReapDelay,
		bindings:         make(map[uint32]*binding),
		refsByUsername:   make(map[string]uint32),
		forfeitTasks:     make(map[string]*scheduler.Task),
	}
	if o.openingMoveDelay <= 0 {
		o.openingMoveDelay = DefaultOpeningMoveDelay
	}
	if o.botReplyDelay <= 0 {
		o.botReplyDelay = DefaultBotReplyDelay
	}
	if o.reconnectWindow <= 0 {
		o.reconnectWindow = DefaultReconnectWindow
	}
	if o.reapDelay <= 0 {
		o.reapDelay = DefaultReapDelay
	}
	return o
}

// HandleMessage routes an inbound intent from a client.
func (o *Orchestrator) HandleMessage(clientID uint32, msg *messages.Message) {
	switch msg.Type {
	case messages.MessageTypeClientFindMatch:
		o.handleFindMatch(clientID, msg.Payload)
	case messages.MessageTypeClientMakeMove:
		o.handleMakeMove(clientID, msg.Payload)
	case messages.MessageTypeClientReconnect:
		o.handleReconnect(clientID, msg.Payload)
	case messages.MessageTypeClientCancelMatchmaking:
		o.handleCancelMatchmaking(clientID)
	default:
		log.Warn("Unknown message type %s from client %d", msg.Type, clientID)
		o.sendError(clientID, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (o *Orchestrator) handleFindMatch(clientID uint32, payload json.RawMessage) {
	var intent messages.ClientFindMatch
	if err := json.Unmarshal(payload, &intent); err != nil {
		o.sendError(clientID, "Invalid find_match payload")
		return
	}

	username := strings.TrimSpace(intent.Username)
	if username == "" {
		o.sendError(clientID, "Username is required")
		return
	}

	// A stray find_match while a game is live must not disturb the existing
	// binding: losing the session id would skip the disconnect handling for
	// this player and leave the session unfinishable.
	if sessionID := o.activeSessionFor(username); sessionID != "" {
		o.sendError(clientID, "Already in a game")
		return
	}

	o.bind(clientID, username, "")
	o.upsertPlayer(username)

	// The ack goes out before the enqueue, so the count never includes the
	// requester themselves.
	o.send(clientID, messages.MessageTypeServerMatchmakingStarted, messages.ServerMatchmakingStarted{
		Message:      "Looking for opponent...",
		WaitingCount: o.matchmaker.Count(),
	})

	player := game.Player{
		ConnectionRef: clientID,
		Username:      username,
		Kind:          game.PlayerKindHuman,
		Connected:     true,
		LastSeen:      time.Now(),
	}
	o.matchmaker.Enqueue(player, o.onPaired, o.onBotFallback)
}

// onPaired joins both humans to the session and notifies them.
func (o *Orchestrator) onPaired(session *game.Session) {
	o.joinSession(session)

	for _, player := range session.Players {
		opponent, _ := session.Opponent(player.Username)
		o.sendToUser(player.Username, messages.MessageTypeServerGameStarted, messages.ServerGameStarted{
			Session:   session,
			YourColor: player.Color,
			Opponent:  opponent,
		})
	}

	o.publishEvent(messages.MessageTypeServerGameStarted, session.ID, map[string]interface{}{
		"players": [2]string{session.Players[0].Username, session.Players[1].Username},
		"mode":    "pvp",
	})
	log.Info("Game started: %s - %s vs %s", session.ID, session.Players[0].Username, session.Players[1].Username)
}

// onBotFallback notifies the human and, when the bot drew the opening turn,
// schedules its first move.
func (o *Orchestrator) onBotFallback(session *game.Session) {
	o.joinSession(session)

	botPlayer, _ := session.BotPlayer()
	human, _ := session.Opponent(botPlayer.Username)
	o.sendToUser(human.Username, messages.MessageTypeServerGameStarted, messages.ServerGameStarted{
		Session:   session,
		YourColor: human.Color,
		Opponent:  botPlayer,
	})

	o.publishEvent(messages.MessageTypeServerGameStarted, session.ID, map[string]interface{}{
		"players": [2]string{session.Players[0].Username, session.Players[1].Username},
		"mode":    "bot",
	})
	log.Info("Game started vs bot: %s - %s", session.ID, human.Username)

	if session.CurrentTurn == botPlayer.Color {
		o.scheduleBotMove(session.ID, o.openingMoveDelay)
	}
}

// joinSession records the session on each member's connection binding.
func (o *Orchestrator) joinSession(session *game.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, player := range session.Players {
		ref, ok := o.refsByUsername[player.Username]
		if !ok {
			continue
		}
		if b, ok := o.bindings[ref]; ok {
			b.sessionID = session.ID
		}
	}
}

func (o *Orchestrator) handleMakeMove(clientID uint32, payload json.RawMessage) {
	var intent messages.ClientMakeMove
	if err := json.Unmarshal(payload, &intent); err != nil {
		o.sendError(clientID, "Invalid make_move payload")
		return
	}

	b := o.bindingFor(clientID)
	if b == nil {
		o.sendError(clientID, "Not a player in this game")
		return
	}

	session, err := o.manager.Get(intent.SessionID)
	if err != nil {
		o.sendError(clientID, "Game not found")
		return
	}
	player, ok := session.PlayerByUsername(b.username)
	if !ok {
		o.sendError(clientID, "Not a player in this game")
		return
	}

	result, err := o.manager.ApplyMove(intent.SessionID, intent.Column, player.Color)
	if err != nil {
		o.send(clientID, messages.MessageTypeServerMoveError, messages.ServerMoveError{Reason: moveErrorReason(err)})
		return
	}

	o.afterMove(result, intent.Column, player.Username, o.botReplyDelay)
}

// afterMove broadcasts a successful move and runs the post-move transitions:
// finishing the session or scheduling a bot reply. The broadcast always
// precedes any scheduled bot move.
func (o *Orchestrator) afterMove(session *game.Session, column int, playerName string, replyDelay time.Duration) {
	o.broadcast(session, messages.MessageTypeServerMoveMade, messages.ServerMoveMade{
		Session:    session,
		Column:     column,
		PlayerName: playerName,
	})
	o.publishEvent(messages.MessageTypeServerMoveMade, session.ID, map[string]interface{}{
		"column":     column,
		"player":     playerName,
		"moveNumber": len(session.Moves),
	})

	if session.Status == game.StatusFinished {
		o.finishSession(session)
		return
	}

	if next, ok := session.PlayerByColor(session.CurrentTurn); ok && next.Kind == game.PlayerKindBot {
		o.scheduleBotMove(session.ID, replyDelay)
	}
}

func (o *Orchestrator) scheduleBotMove(sessionID string, delay time.Duration) {
	o.scheduler.Schedule(delay, func() {
		o.makeBotMove(sessionID)
	})
}

// makeBotMove plays the bot's turn if the session is still playing and it
// is still the bot's move.
func (o *Orchestrator) makeBotMove(sessionID string) {
	session, err := o.manager.Get(sessionID)
	if err != nil || session.Status != game.StatusPlaying {
		return
	}
	botPlayer, ok := session.BotPlayer()
	if !ok || session.CurrentTurn != botPlayer.Color {
		return
	}

	column := bot.ChooseColumn(&session.Board, botPlayer.Color)
	if column < 0 {
		return
	}

	result, err := o.manager.ApplyMove(sessionID, column, botPlayer.Color)
	if err != nil {
		log.Error("Bot move failed for session %s: %v", sessionID, err)
		return
	}

	o.afterMove(result, column, botPlayer.Username, o.botReplyDelay)
}

// finishSession runs the terminal transition side effects: durable counters
// for human participants, a lifecycle event, the outcome broadcast, and the
// delayed reap of the session from the registry.
func (o *Orchestrator) finishSession(session *game.Session) {
	for _, player := range session.Players {
		if player.Kind != game.PlayerKindHuman {
			continue
		}
		won := session.Winner == game.WinnerForColor(player.Color)
		o.recordOutcome(player.Username, won)
	}

	o.publishEvent(messages.MessageTypeServerGameFinished, session.ID, map[string]interface{}{
		"winner":          session.Winner,
		"durationSeconds": session.Duration().Seconds(),
		"totalMoves":      len(session.Moves),
	})

	o.broadcast(session, messages.MessageTypeServerGameFinished, messages.ServerGameFinished{
		Session:         session,
		Winner:          session.Winner,
		DurationSeconds: session.Duration().Seconds(),
	})
	log.Info("Game finished: %s - winner: %s", session.ID, session.Winner)

	sessionID := session.ID
	o.scheduler.Schedule(o.reapDelay, func() {
		o.reapSession(sessionID)
	})
}

// reapSession removes a finished session from the registry. Requests that
// reference it afterwards fail with the usual not-found error.
func (o *Orchestrator) reapSession(sessionID string) {
	session, err := o.manager.Get(sessionID)
	o.manager.Delete(sessionID)
	if err != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, player := range session.Players {
		delete(o.forfeitTasks, forfeitKey(sessionID, player.Username))
		if ref, ok := o.refsByUsername[player.Username]; ok {
			if b, ok := o.bindings[ref]; ok && b.sessionID == sessionID {
				b.sessionID = ""
			}
		}
	}
	log.Debug("Session %s reaped", sessionID)
}

// HandleDisconnect runs the disconnect state machine for a connection: a
// queued player is removed from matchmaking; a session participant is
// marked disconnected and given the reconnect window before forfeiting.
func (o *Orchestrator) HandleDisconnect(clientID uint32) {
	o.mu.Lock()
	b, ok := o.bindings[clientID]
	if ok {
		delete(o.bindings, clientID)
		if o.refsByUsername[b.username] == clientID {
			delete(o.refsByUsername, b.username)
		}
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	o.matchmaker.Cancel(b.username)

	if b.sessionID == "" {
		return
	}

	session, err := o.manager.MarkDisconnected(b.sessionID, b.username)
	if err != nil || session.Status != game.StatusPlaying {
		return
	}

	o.broadcast(session, messages.MessageTypeServerPlayerDisconnected, messages.ServerPlayerDisconnected{
		Username:               b.username,
		ReconnectWindowSeconds: int(o.reconnectWindow.Seconds()),
		Session:                session,
	})
	o.publishEvent(messages.MessageTypeServerPlayerDisconnected, session.ID, map[string]interface{}{
		"player": b.username,
	})
	log.Info("Player %s disconnected from session %s, forfeit in %s", b.username, session.ID, o.reconnectWindow)

	key := forfeitKey(b.sessionID, b.username)
	sessionID, username := b.sessionID, b.username
	o.mu.Lock()
	if existing, ok := o.forfeitTasks[key]; ok {
		existing.Cancel()
	}
	o.forfeitTasks[key] = o.scheduler.Schedule(o.reconnectWindow, func() {
		o.forfeit(sessionID, username)
	})
	o.mu.Unlock()
}

// forfeit ends the session in the opponent's favor if the player is still
// disconnected when the grace window expires.
func (o *Orchestrator) forfeit(sessionID, username string) {
	o.mu.Lock()
	delete(o.forfeitTasks, forfeitKey(sessionID, username))
	o.mu.Unlock()

	session, err := o.manager.ForfeitIfDisconnected(sessionID, username)
	if err != nil || session == nil {
		return
	}

	winner, _ := session.Opponent(username)
	o.broadcast(session, messages.MessageTypeServerGameForfeited, messages.ServerGameForfeited{
		ForfeitedBy: username,
		Winner:      winner.Username,
		Session:     session,
	})
	log.Info("Session %s forfeited by %s", sessionID, username)

	o.finishSession(session)
}

func (o *Orchestrator) handleReconnect(clientID uint32, payload json.RawMessage) {
	var intent messages.ClientReconnect
	if err := json.Unmarshal(payload, &intent); err != nil {
		o.sendError(clientID, "Invalid reconnect payload")
		return
	}

	username := strings.TrimSpace(intent.Username)
	session, err := o.manager.Get(intent.SessionID)
	if err != nil {
		o.send(clientID, messages.MessageTypeServerReconnectFailed, messages.ServerReconnectFailed{Reason: "Game not found"})
		return
	}
	if _, ok := session.PlayerByUsername(username); !ok {
		o.send(clientID, messages.MessageTypeServerReconnectFailed, messages.ServerReconnectFailed{Reason: "Not a player in this game"})
		return
	}

	// A forfeit task that has already started executing wins the race; the
	// cancel below is then a no-op and the session finishes by forfeit.
	o.mu.Lock()
	key := forfeitKey(intent.SessionID, username)
	if task, ok := o.forfeitTasks[key]; ok {
		task.Cancel()
		delete(o.forfeitTasks, key)
	}
	o.mu.Unlock()

	result, err := o.manager.BindConnection(intent.SessionID, username, clientID)
	if err != nil {
		o.send(clientID, messages.MessageTypeServerReconnectFailed, messages.ServerReconnectFailed{Reason: "Failed to reconnect"})
		return
	}

	o.bind(clientID, username, intent.SessionID)

	o.broadcast(result, messages.MessageTypeServerPlayerReconnected, messages.ServerPlayerReconnected{
		Username: username,
		Session:  result,
	})

	player, _ := result.PlayerByUsername(username)
	o.send(clientID, messages.MessageTypeServerGameReconnected, messages.ServerGameReconnected{
		Session:   result,
		YourColor: player.Color,
	})

	o.publishEvent(messages.MessageTypeServerPlayerReconnected, result.ID, map[string]interface{}{
		"player": username,
	})
	log.Info("Player %s reconnected to session %s", username, result.ID)
}

func (o *Orchestrator) handleCancelMatchmaking(clientID uint32) {
	if b := o.bindingFor(clientID); b != nil {
		o.matchmaker.Cancel(b.username)
	}
	o.send(clientID, messages.MessageTypeServerMatchmakingCancelled, messages.ServerMatchmakingCancelled{
		Message: "Matchmaking cancelled",
	})
}

// activeSessionFor returns the id of the playing session the username is
// currently bound to, or "" if there is none. Finished sessions do not
// count; the player is free to queue again while they await the reap.
func (o *Orchestrator) activeSessionFor(username string) string {
	o.mu.Lock()
	var sessionID string
	if ref, ok := o.refsByUsername[username]; ok {
		if b, ok := o.bindings[ref]; ok {
			sessionID = b.sessionID
		}
	}
	o.mu.Unlock()
	if sessionID == "" {
		return ""
	}

	session, err := o.manager.Get(sessionID)
	if err != nil || session.Status != game.StatusPlaying {
		return ""
	}
	return sessionID
}

// bind records the connection ref for a username. A stale ref for the same
// username is unbound first.
func (o *Orchestrator) bind(clientID uint32, username, sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if oldRef, ok := o.refsByUsername[username]; ok && oldRef != clientID {
		delete(o.bindings, oldRef)
	}
	o.bindings[clientID] = &binding{username: username, sessionID: sessionID}
	o.refsByUsername[username] = clientID
}

func (o *Orchestrator) bindingFor(clientID uint32) *binding {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.bindings[clientID]
	if !ok {
		return nil
	}
	copied := *b
	return &copied
}

func (o *Orchestrator) send(clientID uint32, messageType string, payload interface{}) {
	msg, err := messages.New(messageType, payload)
	if err != nil {
		log.Error("Failed to build %s message: %v", messageType, err)
		return
	}
	o.sender.Send(clientID, msg)
}

func (o *Orchestrator) sendToUser(username string, messageType string, payload interface{}) {
	o.mu.Lock()
	ref, ok := o.refsByUsername[username]
	o.mu.Unlock()
	if !ok {
		return
	}
	o.send(ref, messageType, payload)
}

// broadcast sends an event to every connected human member of the session.
func (o *Orchestrator) broadcast(session *game.Session, messageType string, payload interface{}) {
	for _, player := range session.Players {
		if player.Kind != game.PlayerKindHuman {
			continue
		}
		o.sendToUser(player.Username, messageType, payload)
	}
}

func (o *Orchestrator) sendError(clientID uint32, message string) {
	o.send(clientID, messages.MessageTypeServerError, messages.ServerError{Message: message})
}

func (o *Orchestrator) publishEvent(eventType, sessionID string, data interface{}) {
	if o.eventQueue == nil {
		return
	}
	event := &workers.LifecycleEvent{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := o.eventQueue.Enqueue(event); err != nil {
		log.Warn("Dropping %s lifecycle event for session %s: %v", eventType, sessionID, err)
	}
}

func (o *Orchestrator) upsertPlayer(username string) {
	select {
	case o.upsertPlayerChan <- username:
	default:
		log.Warn("Upsert channel full, dropping record for player %s", username)
	}
}

func (o *Orchestrator) recordOutcome(username string, won bool) {
	select {
	case o.outcomeChan <- workers.OutcomeRequest{Username: username, Won: won}:
	default:
		log.Warn("Outcome channel full, dropping record for player %s", username)
	}
}

func forfeitKey(sessionID, username string) string {
	return sessionID + "/" + username
}

// moveErrorReason maps a move validation error to the reason reported to
// the player.
func moveErrorReason(err error) string {
	var invalidColumn *board.ErrInvalidColumn
	var columnFull *board.ErrColumnFull
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return "Game not found"
	case errors.Is(err, game.ErrNotInProgress):
		return "Game is not in progress"
	case errors.Is(err, game.ErrWrongTurn):
		return "Not your turn"
	case errors.As(err, &invalidColumn):
		return "Invalid column"
	case errors.As(err, &columnFull):
		return "Column is full"
	default:
		return err.Error()
	}
}
