package messages

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/dropfour/pkg/board"
	"github.com/cbodonnell/dropfour/pkg/game"
)

// Message is the envelope for every intent and event on the real-time
// transport.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client intent types
const (
	MessageTypeClientFindMatch         = "find_match"
	MessageTypeClientMakeMove          = "make_move"
	MessageTypeClientReconnect         = "reconnect"
	MessageTypeClientCancelMatchmaking = "cancel_matchmaking"
)

// Server event types
const (
	MessageTypeServerMatchmakingStarted   = "matchmaking_started"
	MessageTypeServerMatchmakingCancelled = "matchmaking_cancelled"
	MessageTypeServerGameStarted          = "game_started"
	MessageTypeServerMoveMade             = "move_made"
	MessageTypeServerMoveError            = "move_error"
	MessageTypeServerGameFinished         = "game_finished"
	MessageTypeServerPlayerDisconnected   = "player_disconnected"
	MessageTypeServerPlayerReconnected    = "player_reconnected"
	MessageTypeServerGameReconnected      = "game_reconnected"
	MessageTypeServerGameForfeited        = "game_forfeited"
	MessageTypeServerReconnectFailed      = "reconnect_failed"
	MessageTypeServerError                = "error"
)

// New builds a Message of the given type with a marshaled payload.
func New(messageType string, payload interface{}) (*Message, error) {
	if payload == nil {
		return &Message{Type: messageType}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", messageType, err)
	}
	return &Message{Type: messageType, Payload: b}, nil
}

type ClientFindMatch struct {
	Username string `json:"username"`
}

type ClientMakeMove struct {
	SessionID string `json:"sessionId"`
	Column    int    `json:"column"`
}

type ClientReconnect struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

type ServerMatchmakingStarted struct {
	Message      string `json:"message"`
	WaitingCount int    `json:"waitingCount"`
}

type ServerMatchmakingCancelled struct {
	Message string `json:"message"`
}

type ServerGameStarted struct {
	Session   *game.Session `json:"session"`
	YourColor board.Cell    `json:"yourColor"`
	Opponent  game.Player   `json:"opponent"`
}

type ServerMoveMade struct {
	Session    *game.Session `json:"session"`
	Column     int           `json:"column"`
	PlayerName string        `json:"playerName"`
}

type ServerMoveError struct {
	Reason string `json:"reason"`
}

type ServerGameFinished struct {
	Session         *game.Session `json:"session"`
	Winner          game.Winner   `json:"winner"`
	DurationSeconds float64       `json:"durationSeconds"`
}

type ServerPlayerDisconnected struct {
	Username               string        `json:"username"`
	ReconnectWindowSeconds int           `json:"reconnectWindowSeconds"`
	Session                *game.Session `json:"session"`
}

type ServerPlayerReconnected struct {
	Username string        `json:"username"`
	Session  *game.Session `json:"session"`
}

type ServerGameReconnected struct {
	Session   *game.Session `json:"session"`
	YourColor board.Cell    `json:"yourColor"`
}

type ServerGameForfeited struct {
	ForfeitedBy string        `json:"forfeitedBy"`
	Winner      string        `json:"winner"`
	Session     *game.Session `json:"session"`
}

type ServerReconnectFailed struct {
	Reason string `json:"reason"`
}

type ServerError struct {
	Message string `json:"message"`
}
