package bot

import (
	"durak/internal/domain"
)

// GoodBot plays the textbook heuristic: shed the lowest non-trump, cover with the
// cheapest winning card, take when nothing wins and close the trick when done.
type GoodBot struct {
	Tuning Tuning
}

func (b *GoodBot) CalculateMove(v domain.StateView, self string) (Move, error) {
	if !v.Phase.InPlay() || v.Player(self) == nil {
		return Move{Kind: MoveNone}, nil
	}
	if self == v.DefenderID {
		return b.defend(v, self), nil
	}
	return b.attack(v, self), nil
}

func (b *GoodBot) defend(v domain.StateView, self string) Move {
	if v.Phase != domain.PhaseDefending {
		return Move{Kind: MoveNone}
	}
	open := domain.OpenSlots(v.Table)
	if len(open) == 0 {
		return Move{Kind: MoveNone}
	}
	slot := open[0]
	options := LegalDefenses(v, self, slot)
	if len(options) == 0 {
		return Move{Kind: MoveTake}
	}
	return Move{Kind: MoveDefend, Card: options[0], TableIndex: slot}
}

func (b *GoodBot) attack(v domain.StateView, self string) Move {
	if v.Phase == domain.PhaseDefending {
		return Move{Kind: MoveNone}
	}
	options := LegalAttacks(v, self)
	if c, ok := firstNonTrump(options, v.TrumpSuit); ok {
		return Move{Kind: MoveAttack, Card: c}
	}
	if len(options) > 0 && (len(v.Table) == 0 || b.Tuning.ThrowInTrumps) {
		return Move{Kind: MoveAttack, Card: options[0]}
	}
	if CanCallBeat(v, self) {
		return Move{Kind: MoveBeat}
	}
	return Move{Kind: MoveNone}
}
