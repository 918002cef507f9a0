package protocol

import (
	"encoding/json"
	"errors"

	"joker-briscola/internal/game"
	"joker-briscola/internal/shared"
)

// ErrEmptyPayload is returned when decoding a message that carries no payload.
var ErrEmptyPayload = errors.New("empty payload")

// Message represents a generic WebSocket message structure.
type Message struct {
	Type    string          `json:"type"`              // Type of the message (e.g., "join_room", "play_card")
	Payload json.RawMessage `json:"payload,omitempty"` // Raw JSON payload, decoded per type
}

// Client -> Server message types.
const (
	TypeCreateRoom      = "create_room"
	TypeJoinRoom        = "join_room"
	TypeRejoinRoom      = "rejoin_room"
	TypeStartGame       = "start_game"
	TypePlayCard        = "play_card"
	TypeAIPlayCard      = "ai_play_card"
	TypeUpdateGameState = "update_game_state"
	TypeDisconnectGame  = "disconnect_game"
	TypePing            = "ping"
)

// Server -> Client message types.
const (
	TypeRoomCreated   = "room_created"
	TypeRoomJoined    = "room_joined"
	TypeUpdatePlayers = "update_players"
	TypeErrorMessage  = "error_message"
	TypeGameStarted   = "game_started"
	TypeRemotePlay    = "remote_play"
	TypeAIRemotePlay  = "ai_remote_play"
	TypeSyncGameState = "sync_game_state"
	TypePong          = "pong"
)

// --- Client -> Server Payload Structs ---

type CreateRoomPayload struct {
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RejoinRoomPayload reclaims a seat held after a transport loss.
type RejoinRoomPayload struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	SeatIndex int    `json:"seatIndex"`
}

type StartGamePayload struct {
	Code              string           `json:"code"`
	InitialMatchState *game.MatchState `json:"initialMatchState"`
}

type PlayCardPayload struct {
	Code   string      `json:"code"`
	Card   shared.Card `json:"card"`
	SeatID int         `json:"seatId"`
}

type AIPlayCardPayload struct {
	Code       string           `json:"code"`
	Card       shared.Card      `json:"card"`
	SeatID     int              `json:"seatId"`
	MatchState *game.MatchState `json:"matchState"`
}

type UpdateGameStatePayload struct {
	Code       string           `json:"code"`
	MatchState *game.MatchState `json:"matchState"`
}

// --- Server -> Client Payload Structs ---

type PlayerInfo struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	SeatIndex    int    `json:"seatIndex"`
	Connected    bool   `json:"connected"` // False while the seat waits for a rejoin
}

type RoomCreatedPayload struct {
	Code      string `json:"code"`
	SeatIndex int    `json:"seatIndex"`
}

type RoomJoinedPayload struct {
	Code       string           `json:"code"`
	SeatIndex  int              `json:"seatIndex"`
	Players    []PlayerInfo     `json:"players"`
	HostSeat   int              `json:"hostSeat"`
	MatchState *game.MatchState `json:"matchState,omitempty"`
}

type UpdatePlayersPayload struct {
	Players  []PlayerInfo `json:"players"`
	HostSeat int          `json:"hostSeat"` // -1 when nobody is connected
}

type ErrorMessagePayload struct {
	Text string `json:"text"`
}

type GameStartedPayload struct {
	InitialMatchState *game.MatchState `json:"initialMatchState"`
}

type RemotePlayPayload struct {
	Card   shared.Card `json:"card"`
	SeatID int         `json:"seatId"`
}

type AIRemotePlayPayload struct {
	Card       shared.Card      `json:"card"`
	SeatID     int              `json:"seatId"`
	MatchState *game.MatchState `json:"matchState"`
}

type SyncGameStatePayload struct {
	MatchState *game.MatchState `json:"matchState"`
}

// NewMessage builds the JSON envelope for msgType around payload.
func NewMessage(msgType string, payload any) ([]byte, error) {
	if payload == nil {
		return json.Marshal(Message{Type: msgType})
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := Message{
		Type:    msgType,
		Payload: payloadBytes,
	}
	return json.Marshal(msg)
}

// Decode parses the message payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(m.Payload, v)
}
