package game

import (
	"time"

	"github.com/cbodonnell/dropfour/pkg/board"
)

// PlayerKind distinguishes human players from synthesized bot opponents.
type PlayerKind string

const (
	PlayerKindHuman PlayerKind = "human"
	PlayerKindBot   PlayerKind = "bot"
)

// Status is the lifecycle state of a session. The only transition is
// StatusPlaying -> StatusFinished.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Winner identifies the outcome of a finished session.
type Winner string

const (
	WinnerNone   Winner = ""
	WinnerColorA Winner = "A"
	WinnerColorB Winner = "B"
	WinnerDraw   Winner = "draw"
)

// WinnerForColor maps a disc color to its Winner value.
func WinnerForColor(color board.Cell) Winner {
	if color == board.CellColorA {
		return WinnerColorA
	}
	return WinnerColorB
}

// Player is one side of a session. Username is the stable identity;
// ConnectionRef is transient and rebound on reconnect.
type Player struct {
	ConnectionRef uint32     `json:"-"`
	Username      string     `json:"username"`
	Color         board.Cell `json:"color"`
	Kind          PlayerKind `json:"kind"`
	Connected     bool       `json:"connected"`
	LastSeen      time.Time  `json:"lastSeen"`
}

// Move is one entry in a session's move history.
type Move struct {
	Column    int        `json:"column"`
	Color     board.Cell `json:"color"`
	Timestamp time.Time  `json:"timestamp"`
}

// Session is a snapshot of one game between two players. The Manager owns
// the live session state; callers only ever see copies.
type Session struct {
	ID          string      `json:"id"`
	Board       board.Board `json:"board"`
	CurrentTurn board.Cell  `json:"currentTurn"`
	Status      Status      `json:"status"`
	Winner      Winner      `json:"winner,omitempty"`
	Players     [2]Player   `json:"players"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   time.Time   `json:"startedAt"`
	FinishedAt  *time.Time  `json:"finishedAt,omitempty"`
	Moves       []Move      `json:"moveHistory"`
	Forfeited   bool        `json:"forfeited,omitempty"`
}

// PlayerByUsername returns the session participant with the given username.
func (s *Session) PlayerByUsername(username string) (Player, bool) {
	for _, p := range s.Players {
		if p.Username == username {
			return p, true
		}
	}
	return Player{}, false
}

// PlayerByColor returns the session participant holding the given color.
func (s *Session) PlayerByColor(color board.Cell) (Player, bool) {
	for _, p := range s.Players {
		if p.Color == color {
			return p, true
		}
	}
	return Player{}, false
}

// Opponent returns the other participant.
func (s *Session) Opponent(username string) (Player, bool) {
	for _, p := range s.Players {
		if p.Username != username {
			return p, true
		}
	}
	return Player{}, false
}

// BotPlayer returns the bot participant, if the session has one.
func (s *Session) BotPlayer() (Player, bool) {
	for _, p := range s.Players {
		if p.Kind == PlayerKindBot {
			return p, true
		}
	}
	return Player{}, false
}

// Duration is the time from session start to finish. It is zero while the
// session is still playing.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summary is the durable record of a finished session, handed to the
// persistence pipeline.
type Summary struct {
	ID              string    `json:"id"`
	Players         [2]Player `json:"players"`
	Winner          Winner    `json:"winner"`
	Moves           []Move    `json:"moves"`
	DurationSeconds float64   `json:"durationSeconds"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	Completion      string    `json:"completion"`
}

// Completion kinds recorded on finished games.
const (
	CompletionCompleted = "completed"
	CompletionForfeited = "forfeited"
)

// Summarize builds the durable record for a finished session.
func (s *Session) Summarize() Summary {
	completion := CompletionCompleted
	if s.Forfeited {
		completion = CompletionForfeited
	}
	var finishedAt time.Time
	if s.FinishedAt != nil {
		finishedAt = *s.FinishedAt
	}
	return Summary{
		ID:              s.ID,
		Players:         s.Players,
		Winner:          s.Winner,
		Moves:           s.Moves,
		DurationSeconds: s.Duration().Seconds(),
		StartedAt:       s.StartedAt,
		FinishedAt:      finishedAt,
		Completion:      completion,
	}
}
