package bot

import (
	"fmt"
	"math/rand"
	"strings"
)

// BotLevel selects a strategy.
type BotLevel int

const (
	BotLevelEasy BotLevel = iota
	BotLevelGood
	BotLevelSmart
)

// ParseLevel maps the identity difficulty strings onto levels.
func ParseLevel(s string) (BotLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "random":
		return BotLevelEasy, nil
	case "", "medium", "good":
		return BotLevelGood, nil
	case "hard", "smart":
		return BotLevelSmart, nil
	default:
		return 0, fmt.Errorf("unknown bot difficulty: %q", s)
	}
}

// NewBrain creates a new AI brain based on the specified level.
func NewBrain(level BotLevel, rng *rand.Rand, tuning Tuning) (Brain, error) {
	switch level {
	case BotLevelEasy:
		if rng == nil {
			return nil, fmt.Errorf("random bot needs a rand source")
		}
		return NewRandomBot(rng), nil
	case BotLevelGood:
		return &GoodBot{Tuning: tuning}, nil
	case BotLevelSmart:
		return &SmartBot{GoodBot: GoodBot{Tuning: tuning}}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}
