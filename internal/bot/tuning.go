package bot

import (
	"math/rand"
	"time"

	"durak/internal/domain"
)

// Window is a closed interval a random delay is drawn from.
type Window struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Draw returns a uniformly distributed duration in [Min, Max].
func (w Window) Draw(rng *rand.Rand) time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + time.Duration(rng.Int63n(int64(w.Max-w.Min)+1))
}

// Timing groups the delays that drive bots inside a room.
type Timing struct {
	// Move is the "thinking" delay before a bot acts.
	Move Window
	// Join is the delay before each bot join while seats are open.
	Join Window
	// LeaveAfter is how long an unfilled room waits before removing its bots.
	LeaveAfter Window
	// LeaveStagger spreads bot departures so they do not leave together.
	LeaveStagger Window
}

// DefaultTiming mirrors the production lobby pacing.
var DefaultTiming = Timing{
	Move:         Window{Min: 800 * time.Millisecond, Max: 2500 * time.Millisecond},
	Join:         Window{Min: 30 * time.Second, Max: 120 * time.Second},
	LeaveAfter:   Window{Min: 60 * time.Second, Max: 240 * time.Second},
	LeaveStagger: Window{Min: 0, Max: 10 * time.Second},
}

// Tuning holds the knobs SmartBot uses to conserve strong cards.
type Tuning struct {
	// ConservePile is the draw pile size at or above which strong cards are held back.
	ConservePile int
	// HighTrump is the lowest trump rank worth keeping while conserving.
	HighTrump domain.Rank
	// ThrowInMaxRank caps non-trump throw-ins while conserving.
	ThrowInMaxRank domain.Rank
	// ThrowInTrumps allows trumps to be used for throw-ins.
	ThrowInTrumps bool
}

// DefaultTuning keeps queens and up in trumps while the pile is still deep.
var DefaultTuning = Tuning{
	ConservePile:   8,
	HighTrump:      domain.Queen,
	ThrowInMaxRank: domain.King,
	ThrowInTrumps:  false,
}

func (t Tuning) conserving(v domain.StateView) bool {
	return v.DrawPileSize >= t.ConservePile
}
