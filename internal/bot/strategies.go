package bot

import (
	"math/rand"
	"sync"

	"durak/internal/domain"
)

// RandomBot picks uniformly among its legal moves.
type RandomBot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomBot returns a RandomBot drawing from rng.
func NewRandomBot(rng *rand.Rand) *RandomBot {
	return &RandomBot{rng: rng}
}

func (b *RandomBot) CalculateMove(v domain.StateView, self string) (Move, error) {
	var moves []Move
	for _, c := range LegalAttacks(v, self) {
		moves = append(moves, Move{Kind: MoveAttack, Card: c})
	}
	if self == v.DefenderID && v.Phase == domain.PhaseDefending {
		for _, i := range domain.OpenSlots(v.Table) {
			for _, c := range LegalDefenses(v, self, i) {
				moves = append(moves, Move{Kind: MoveDefend, Card: c, TableIndex: i})
			}
		}
		moves = append(moves, Move{Kind: MoveTake})
	}
	if CanCallBeat(v, self) {
		moves = append(moves, Move{Kind: MoveBeat})
	}
	if len(moves) == 0 {
		return Move{Kind: MoveNone}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return moves[b.rng.Intn(len(moves))], nil
}
