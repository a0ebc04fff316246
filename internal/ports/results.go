package ports

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateMatch is returned when a room's result was already recorded.
var ErrDuplicateMatch = errors.New("match already recorded")

// MatchRecord is the permanent summary of a finished match.
type MatchRecord struct {
	RoomID     string
	DeckSize   int
	Stake      int64
	Players    []string
	Bots       []string // subset of Players seated by bots
	Winners    []string
	LoserID    string
	Draw       bool
	Forfeit    bool
	FinishedAt time.Time
}

// PlayerStats aggregates a player's finished matches.
type PlayerStats struct {
	UserID string
	Wins   int
	Losses int
	Draws  int
}

// ResultsPort records finished matches.
type ResultsPort interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
	PlayerStats(ctx context.Context, userID string) (PlayerStats, error)
}
