package app

import (
	"fmt"
	"time"

	"durak/internal/bot"
	"durak/internal/domain"
)

// BotConfig controls bot population and play inside a room.
type BotConfig struct {
	Enabled bool
	// DefaultLevel is used when an identity has no difficulty.
	DefaultLevel bot.BotLevel
	Timing       bot.Timing
	Tuning       bot.Tuning
	// BiasSwaps is how many weak dealt cards each bot trades for strong ones. Zero disables it.
	BiasSwaps int
}

// RoomConfig is fixed for the life of a room.
type RoomConfig struct {
	DeckSize   int
	MinPlayers int
	MaxPlayers int
	Stake      int64
	// RevealHands sends every hand to every viewer.
	RevealHands bool
	Bots        BotConfig
	// FinishedLinger keeps a finished room open so clients can read the result.
	FinishedLinger time.Duration
	// KeepAliveWithoutHumans lets bot-only rooms play to the end.
	KeepAliveWithoutHumans bool
}

// DefaultRoomConfig is a two-player 36-card room with bots enabled.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		DeckSize:   36,
		MinPlayers: MinPlayersToStartGame,
		MaxPlayers: 2,
		Stake:      100,
		Bots: BotConfig{
			Enabled:      true,
			DefaultLevel: bot.BotLevelGood,
			Timing:       bot.DefaultTiming,
			Tuning:       bot.DefaultTuning,
		},
		FinishedLinger: 30 * time.Second,
	}
}

// Validate rejects configurations a room could never start with.
func (c RoomConfig) Validate() error {
	if !domain.ValidDeckSize(c.DeckSize) {
		return fmt.Errorf("unsupported deck size %d", c.DeckSize)
	}
	if c.MinPlayers < MinPlayersToStartGame {
		return fmt.Errorf("min players %d below %d", c.MinPlayers, MinPlayersToStartGame)
	}
	if c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("max players %d below min players %d", c.MaxPlayers, c.MinPlayers)
	}
	if limit := domain.MaxPlayersFor(c.DeckSize); c.MaxPlayers > limit {
		return fmt.Errorf("max players %d exceeds %d for a %d-card deck", c.MaxPlayers, limit, c.DeckSize)
	}
	if c.Stake < 0 {
		return fmt.Errorf("negative stake %d", c.Stake)
	}
	t := c.Bots.Timing
	for name, w := range map[string]bot.Window{"move": t.Move, "join": t.Join, "leave": t.LeaveAfter, "stagger": t.LeaveStagger} {
		if w.Min < 0 || w.Max < w.Min {
			return fmt.Errorf("invalid bot %s window [%v, %v]", name, w.Min, w.Max)
		}
	}
	return nil
}
