// Package wire is the JSON message format shared by the WebSocket and Nakama transports.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"durak/internal/app"
	"durak/internal/domain"
)

// Server message types.
const (
	TypeUpdate   = "update"
	TypeRejected = "rejected"
	TypeError    = "error"
)

// ErrMalformed is returned for client messages that cannot be decoded into an action.
var ErrMalformed = errors.New("malformed message")

// Envelope frames every message on a socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ActionPayload is the body of attack and defend messages.
type ActionPayload struct {
	Card       string `json:"card,omitempty"`
	TableIndex int    `json:"table_index,omitempty"`
}

// Rejected tells the submitter why an action was refused.
type Rejected struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// DecodeEnvelope decodes a client envelope into an action on behalf of playerID.
func DecodeEnvelope(playerID string, data []byte) (app.Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return DecodeAction(playerID, app.ActionKind(env.Type), env.Payload)
}

// DecodeAction builds the action of the given kind from its payload.
// Join is not accepted here; seats are claimed by the transport on connect.
func DecodeAction(playerID string, kind app.ActionKind, payload []byte) (app.Action, error) {
	var p ActionPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, kind, err)
		}
	}
	switch kind {
	case app.ActionAttack, app.ActionDefend:
		card, err := domain.ParseCard(p.Card)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if kind == app.ActionAttack {
			return app.Attack{PlayerID: playerID, Card: card}, nil
		}
		if p.TableIndex < 0 {
			return nil, fmt.Errorf("%w: negative table index", ErrMalformed)
		}
		return app.Defend{PlayerID: playerID, Card: card, TableIndex: p.TableIndex}, nil
	case app.ActionTake:
		return app.Take{PlayerID: playerID}, nil
	case app.ActionBeat:
		return app.Beat{PlayerID: playerID}, nil
	case app.ActionLeave:
		return app.Leave{PlayerID: playerID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, kind)
	}
}

// Encode frames payload under typ.
func Encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw})
}

// EncodeUpdate frames a room update.
func EncodeUpdate(u app.Update) ([]byte, error) {
	return Encode(TypeUpdate, u)
}

// ToRejected describes err for the client that caused it. Rule rejections keep their kind and reason.
func ToRejected(err error) Rejected {
	if r, ok := domain.AsRejection(err); ok {
		return Rejected{Kind: string(r.Kind), Reason: r.Reason, Message: r.Message}
	}
	kind := "error"
	switch {
	case errors.Is(err, ErrMalformed):
		kind = "malformed"
	case errors.Is(err, app.ErrRoomClosed), errors.Is(err, app.ErrMatchFinished):
		kind = "closed"
	case errors.Is(err, app.ErrNotSeated), errors.Is(err, app.ErrAlreadySeated),
		errors.Is(err, app.ErrMatchStarted), errors.Is(err, app.ErrRoomFull), errors.Is(err, app.ErrInsufficientCoins):
		kind = "seat"
	}
	return Rejected{Kind: kind, Message: err.Error()}
}

// EncodeRejected frames the rejection of a submitted action.
func EncodeRejected(err error) ([]byte, error) {
	return Encode(TypeRejected, ToRejected(err))
}
