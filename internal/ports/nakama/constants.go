package nakama

import "durak/internal/app"

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a waiting room.
	RpcQuickMatch = "quick_match"

	// RpcPlayerStats returns a player's finished-match counters.
	RpcPlayerStats = "player_stats"

	// MatchNameDurak is the authoritative match handler name registered with Nakama.
	MatchNameDurak = "durak_match"

	// gameLabel identifies durak matches in match listings.
	gameLabel = "durak"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpAttack int64 = 1
	OpDefend int64 = 2
	OpTake   int64 = 3
	OpBeat   int64 = 4
	OpLeave  int64 = 5

	// Server -> Client events
	OpUpdate   int64 = 100
	OpRejected int64 = 110 // send privately
)

var opActions = map[int64]app.ActionKind{
	OpAttack: app.ActionAttack,
	OpDefend: app.ActionDefend,
	OpTake:   app.ActionTake,
	OpBeat:   app.ActionBeat,
	OpLeave:  app.ActionLeave,
}
