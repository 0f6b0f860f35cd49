package game

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cbodonnell/dropfour/pkg/board"
	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session id is not in the registry.
	ErrSessionNotFound = errors.New("game not found")
	// ErrNotInProgress is returned for moves against a finished session.
	ErrNotInProgress = errors.New("game is not in progress")
	// ErrWrongTurn is returned when a player moves out of turn.
	ErrWrongTurn = errors.New("not your turn")
	// ErrNotParticipant is returned when a username is not a session member.
	ErrNotParticipant = errors.New("not a player in this game")
)

// Manager owns the registry of active sessions. All session mutation is
// serialized through the manager's lock, so no two move applications for the
// same session can interleave. Finished sessions are handed to the save
// channel without blocking; persistence never affects in-memory outcomes.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	saveGameChan chan<- Summary
}

// NewManagerOptions contains options for creating a new Manager.
type NewManagerOptions struct {
	// SaveGameChan receives a Summary for every session that finishes.
	// Optional; nil disables persistence.
	SaveGameChan chan<- Summary
}

func NewManager(opts NewManagerOptions) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		saveGameChan: opts.SaveGameChan,
	}
}

// CreateSession registers a new session for the two players. Colors are
// assigned by a 50/50 coin flip regardless of any color already set on the
// players. ColorA always moves first.
func (m *Manager) CreateSession(playerA, playerB Player) *Session {
	if rand.Intn(2) == 0 {
		playerA.Color = board.CellColorA
		playerB.Color = board.CellColorB
	} else {
		playerA.Color = board.CellColorB
		playerB.Color = board.CellColorA
	}

	now := time.Now()
	session := &Session{
		ID:          uuid.NewString(),
		CurrentTurn: board.CellColorA,
		Status:      StatusPlaying,
		Players:     [2]Player{playerA, playerB},
		CreatedAt:   now,
		StartedAt:   now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	log.Info("Session %s created: %s vs %s", session.ID, playerA.Username, playerB.Username)
	return snapshot(session)
}

// ApplyMove validates and applies a move for the given color. On a winning
// or drawing move the session transitions to finished and is handed to the
// persistence pipeline. Otherwise the turn flips. The returned session is a
// snapshot of the state after the move.
func (m *Manager) ApplyMove(sessionID string, column int, color board.Cell) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Status != StatusPlaying {
		return nil, ErrNotInProgress
	}
	if session.CurrentTurn != color {
		return nil, ErrWrongTurn
	}

	row, err := session.Board.Drop(column, color)
	if err != nil {
		return nil, err
	}

	session.Moves = append(session.Moves, Move{
		Column:    column,
		Color:     color,
		Timestamp: time.Now(),
	})

	switch {
	case session.Board.IsWinningMove(row, column, color):
		m.finish(session, WinnerForColor(color), false)
	case session.Board.IsFull():
		m.finish(session, WinnerDraw, false)
	default:
		session.CurrentTurn = color.Opponent()
	}

	return snapshot(session), nil
}

// EndByForfeit force-finishes a playing session with the given winner.
// It is a no-op if the session has already finished.
func (m *Manager) EndByForfeit(sessionID string, winningColor board.Cell) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Status == StatusPlaying {
		m.finish(session, WinnerForColor(winningColor), true)
	}
	return snapshot(session), nil
}

// ForfeitIfDisconnected finishes the session in the opponent's favor iff the
// named player is still disconnected and the session is still playing. The
// check and the transition are atomic with respect to BindConnection, which
// settles the race between a forfeit timer firing and a reconnection: the
// first to take the lock wins. It returns the finished session, or nil if
// the forfeit did not apply.
func (m *Manager) ForfeitIfDisconnected(sessionID, username string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Status != StatusPlaying {
		return nil, nil
	}
	player := sessionPlayer(session, username)
	if player == nil {
		return nil, ErrNotParticipant
	}
	if player.Connected {
		return nil, nil
	}

	opponent := sessionOpponent(session, username)
	m.finish(session, WinnerForColor(opponent.Color), true)
	return snapshot(session), nil
}

// finish transitions a session to finished and triggers persistence.
// The caller must hold the manager lock.
func (m *Manager) finish(session *Session, winner Winner, forfeited bool) {
	now := time.Now()
	session.Status = StatusFinished
	session.Winner = winner
	session.FinishedAt = &now
	session.Forfeited = forfeited

	if m.saveGameChan == nil {
		return
	}
	select {
	case m.saveGameChan <- snapshot(session).Summarize():
	default:
		log.Warn("Save channel full, dropping record for session %s", session.ID)
	}
}

// MarkDisconnected flags a participant as disconnected.
func (m *Manager) MarkDisconnected(sessionID, username string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	player := sessionPlayer(session, username)
	if player == nil {
		return nil, ErrNotParticipant
	}
	player.Connected = false
	player.LastSeen = time.Now()
	return snapshot(session), nil
}

// BindConnection rebinds a participant to a new connection ref and marks
// them connected.
func (m *Manager) BindConnection(sessionID, username string, connectionRef uint32) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	player := sessionPlayer(session, username)
	if player == nil {
		return nil, ErrNotParticipant
	}
	player.ConnectionRef = connectionRef
	player.Connected = true
	player.LastSeen = time.Now()
	return snapshot(session), nil
}

// Get returns a snapshot of the session with the given id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return snapshot(session), nil
}

// Delete removes a session from the registry.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func sessionPlayer(session *Session, username string) *Player {
	for i := range session.Players {
		if session.Players[i].Username == username {
			return &session.Players[i]
		}
	}
	return nil
}

func sessionOpponent(session *Session, username string) *Player {
	for i := range session.Players {
		if session.Players[i].Username != username {
			return &session.Players[i]
		}
	}
	return nil
}

// snapshot returns a copy of the session safe to use outside the manager
// lock. The board and players are value types; only the move history needs
// an explicit clone.
func snapshot(session *Session) *Session {
	copied := *session
	copied.Moves = append([]Move(nil), session.Moves...)
	if session.FinishedAt != nil {
		finishedAt := *session.FinishedAt
		copied.FinishedAt = &finishedAt
	}
	return &copied
}
