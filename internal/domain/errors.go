package domain

import (
	"errors"
	"fmt"
)

// RejectionKind classifies why an action was refused.
type RejectionKind string

const (
	// KindNotFound covers missing players or table slots.
	KindNotFound RejectionKind = "not_found"
	// KindIllegalAction covers wrong turn, wrong phase and rule violations.
	KindIllegalAction RejectionKind = "illegal_action"
	// KindConflict is returned when an earlier action already claimed the target.
	KindConflict RejectionKind = "conflict"
)

// Stable machine-readable rejection reasons.
const (
	ReasonPlayerNotFound     = "player_not_found"
	ReasonSlotNotFound       = "table_slot_not_found"
	ReasonNotInProgress      = "match_not_in_progress"
	ReasonDefenderCannotAct  = "defender_cannot_attack"
	ReasonNotYourTurn        = "not_your_turn"
	ReasonNotDefender        = "not_defender"
	ReasonNotDefending       = "not_defending_phase"
	ReasonCardNotInHand      = "card_not_in_hand"
	ReasonRankMismatch       = "rank_mismatch"
	ReasonDefenderHandLimit  = "defender_hand_limit"
	ReasonSlotDefended       = "slot_already_defended"
	ReasonCannotBeat         = "cannot_beat"
	ReasonNotAllBeaten       = "not_all_beaten"
	ReasonTableEmpty         = "table_empty"
	ReasonDefenderCannotBeat = "defender_cannot_call_beat"
)

// Rejection is a recoverable refusal of an action. The input state is never modified.
type Rejection struct {
	Kind    RejectionKind
	Reason  string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

func reject(kind RejectionKind, reason, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// NewRejection builds a rejection for refusals decided outside the rule functions.
func NewRejection(kind RejectionKind, reason, message string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Message: message}
}

// AsRejection unwraps err into a *Rejection when possible.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsKind reports whether err is a rejection of the given kind.
func IsKind(err error, kind RejectionKind) bool {
	r, ok := AsRejection(err)
	return ok && r.Kind == kind
}

var (
	ErrTooFewPlayers     = errors.New("not enough players to deal")
	ErrTooManyPlayers    = errors.New("too many players for deck size")
	ErrInvariantViolated = errors.New("game state invariant violated")
)
