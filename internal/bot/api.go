package bot

import (
	"durak/internal/domain"
)

// MoveKind identifies what a bot decided to do.
type MoveKind string

const (
	MoveNone   MoveKind = "none"
	MoveAttack MoveKind = "attack"
	MoveDefend MoveKind = "defend"
	MoveTake   MoveKind = "take"
	MoveBeat   MoveKind = "beat"
)

// Move represents the decision made by the AI.
type Move struct {
	Kind       MoveKind
	Card       domain.Card
	TableIndex int
}

// Brain is the interface that all bot strategies must implement.
// Brains only see the per-viewer snapshot, never other players' hands.
type Brain interface {
	CalculateMove(view domain.StateView, self string) (Move, error)
}
