package app

import (
	"time"

	"durak/internal/domain"
)

// MinPlayersToStartGame defines the minimum number of occupied seats required to start a game.
const MinPlayersToStartGame = domain.MinPlayers

// settleTimeout bounds wallet and ledger writes made when a match finishes.
const settleTimeout = 5 * time.Second
