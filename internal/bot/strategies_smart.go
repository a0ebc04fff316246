package bot

import (
	"durak/internal/domain"
)

// SmartBot plays like GoodBot but holds back high trumps and high throw-ins
// while the draw pile is still deep.
type SmartBot struct {
	GoodBot
}

func (b *SmartBot) CalculateMove(v domain.StateView, self string) (Move, error) {
	move, err := b.GoodBot.CalculateMove(v, self)
	if err != nil || !b.Tuning.conserving(v) {
		return move, err
	}

	switch move.Kind {
	case MoveDefend:
		// Giving up a high trump to cover a lone low card is rarely worth it early.
		if move.Card.IsTrump(v.TrumpSuit) && move.Card.Rank >= b.Tuning.HighTrump &&
			len(v.Table) == 1 && !v.Table[0].Attack.IsTrump(v.TrumpSuit) && v.Table[0].Attack.Rank < domain.Ten {
			return Move{Kind: MoveTake}, nil
		}
	case MoveAttack:
		if len(v.Table) > 0 && move.Card.Rank >= b.Tuning.ThrowInMaxRank {
			if CanCallBeat(v, self) {
				return Move{Kind: MoveBeat}, nil
			}
			return Move{Kind: MoveNone}, nil
		}
	}
	return move, nil
}
