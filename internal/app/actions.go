package app

import "durak/internal/domain"

// ActionKind names a player action on the wire and in logs.
type ActionKind string

const (
	ActionAttack ActionKind = "attack"
	ActionDefend ActionKind = "defend"
	ActionTake   ActionKind = "take"
	ActionBeat   ActionKind = "beat"
	ActionJoin   ActionKind = "join"
	ActionLeave  ActionKind = "leave"
)

// Action is the closed set of commands a Room accepts. Transports decode their payloads
// into one of the concrete types below; nothing else implements it.
type Action interface {
	Kind() ActionKind
	Actor() string
	action()
}

// Attack places Card on the table.
type Attack struct {
	PlayerID string
	Card     domain.Card
}

// Defend covers the attack at TableIndex with Card.
type Defend struct {
	PlayerID   string
	Card       domain.Card
	TableIndex int
}

// Take concedes the trick.
type Take struct {
	PlayerID string
}

// Beat closes a fully covered trick.
type Beat struct {
	PlayerID string
}

// Join claims a seat while the room is waiting.
type Join struct {
	PlayerID string
	Username string
	Coins    int64
	IsBot    bool
}

// Leave gives up the seat. During play this forfeits the player's cards.
type Leave struct {
	PlayerID string
}

func (Attack) Kind() ActionKind { return ActionAttack }
func (Defend) Kind() ActionKind { return ActionDefend }
func (Take) Kind() ActionKind   { return ActionTake }
func (Beat) Kind() ActionKind   { return ActionBeat }
func (Join) Kind() ActionKind   { return ActionJoin }
func (Leave) Kind() ActionKind  { return ActionLeave }

func (a Attack) Actor() string { return a.PlayerID }
func (a Defend) Actor() string { return a.PlayerID }
func (a Take) Actor() string   { return a.PlayerID }
func (a Beat) Actor() string   { return a.PlayerID }
func (a Join) Actor() string   { return a.PlayerID }
func (a Leave) Actor() string  { return a.PlayerID }

func (Attack) action() {}
func (Defend) action() {}
func (Take) action()   {}
func (Beat) action()   {}
func (Join) action()   {}
func (Leave) action()  {}
