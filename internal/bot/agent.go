package bot

import (
	"durak/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Strategy Brain
}

// Play asks the agent to calculate its move from its own view of the game.
func (a *Agent) Play(view domain.StateView) (Move, error) {
	if view.Player(a.ID) == nil {
		// Agent is not part of this game
		return Move{Kind: MoveNone}, nil
	}
	move, err := a.Strategy.CalculateMove(view, a.ID)
	if err != nil {
		return Move{Kind: MoveNone}, err
	}
	return move, nil
}

// Fallback is the move to try when the chosen move was rejected.
// Defenders concede the trick; attackers close it if they can, or lead their weakest card.
func (a *Agent) Fallback(view domain.StateView) Move {
	switch {
	case a.ID == view.DefenderID && len(view.Table) > 0:
		return Move{Kind: MoveTake}
	case CanCallBeat(view, a.ID):
		return Move{Kind: MoveBeat}
	case a.ID == view.AttackerID && len(view.Table) == 0:
		if legal := LegalAttacks(view, a.ID); len(legal) > 0 {
			sortByPower(legal, view.TrumpSuit)
			return Move{Kind: MoveAttack, Card: legal[0]}
		}
	}
	return Move{Kind: MoveNone}
}
