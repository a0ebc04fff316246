package app

import "durak/internal/domain"

// EventKind identifies emitted room events for transport dispatch.
type EventKind string

const (
	EventPlayerJoined  EventKind = "player_joined"
	EventPlayerLeft    EventKind = "player_left"
	EventGameStarted   EventKind = "game_started"
	EventActionApplied EventKind = "action_applied"
	EventGameEnded     EventKind = "game_ended"
	EventRoomClosed    EventKind = "room_closed"
)

// Event is a room event. Every subscriber receives every event.
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload,omitempty"`
}

type PlayerJoinedPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Seat     int    `json:"seat"`
	IsBot    bool   `json:"is_bot"`
}

type PlayerLeftPayload struct {
	UserID string `json:"user_id"`
}

type GameStartedPayload struct {
	AttackerID string      `json:"attacker_id"`
	DefenderID string      `json:"defender_id"`
	TrumpCard  domain.Card `json:"trump_card"`
}

type ActionAppliedPayload struct {
	UserID string     `json:"user_id"`
	Action ActionKind `json:"action"`
}

type GameEndedPayload struct {
	Outcome domain.Outcome   `json:"outcome"`
	Deltas  map[string]int64 `json:"deltas,omitempty"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

// SeatView is a seat in the waiting lobby.
type SeatView struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Coins    int64  `json:"coins"`
	IsBot    bool   `json:"is_bot"`
}

// Update is what a subscriber receives after every committed change.
// State is nil until the first deal and already redacted for the subscriber's viewer.
type Update struct {
	RoomID string            `json:"room_id"`
	Seq    uint64            `json:"seq"`
	Events []Event           `json:"events"`
	Seats  []SeatView        `json:"seats"`
	State  *domain.StateView `json:"state,omitempty"`
}

// Subscriber receives room updates. Deliver is called from the room's goroutine and
// must neither block nor call back into the room.
type Subscriber interface {
	ViewerID() string
	Deliver(Update)
}
