package domain

// Phase represents the lifecycle stage of a Durak match.
type Phase string

const (
	// PhaseWaiting is the pre-deal state where seats are being filled.
	PhaseWaiting Phase = "waiting"
	// PhaseAttacking means the attacker (or throw-in players) may place cards or close the trick.
	PhaseAttacking Phase = "attacking"
	// PhaseDefending means at least one attack card is waiting to be covered.
	PhaseDefending Phase = "defending"
	// PhaseFinished is terminal.
	PhaseFinished Phase = "finished"
)

// InPlay reports whether the phase accepts rule actions.
func (p Phase) InPlay() bool {
	return p == PhaseAttacking || p == PhaseDefending
}

// Seat describes an occupant before the deal.
type Seat struct {
	ID       string
	Username string
	Coins    int64
	IsBot    bool
}

// Player holds the domain state for a seat in a match.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Hand     []Card `json:"hand"`
	Seat     int    `json:"seat"` // 0-based, fixed at deal time
	Coins    int64  `json:"coins"`
	IsBot    bool   `json:"is_bot"`
}

// TableCard is one contested pair on the table.
type TableCard struct {
	Attack  Card  `json:"attack"`
	Defense *Card `json:"defense,omitempty"`
}

// Beaten reports whether the attack card has been covered.
func (tc TableCard) Beaten() bool {
	return tc.Defense != nil
}

// Outcome is set once the match is finished.
type Outcome struct {
	Winners []string `json:"winners"`
	LoserID string   `json:"loser_id,omitempty"`
	Draw    bool     `json:"draw"`
	// Forfeit is true when the match ended because players left.
	Forfeit bool `json:"forfeit,omitempty"`
}

// GameState is the aggregate root for one match.
type GameState struct {
	Players    []Player    `json:"players"`
	DrawPile   []Card      `json:"draw_pile"` // head is the next draw; the trump card is the last element until drawn
	TrumpSuit  Suit        `json:"trump_suit"`
	TrumpCard  Card        `json:"trump_card"`
	Table      []TableCard `json:"table"`
	Discard    []Card      `json:"discard"`
	Removed    []Card      `json:"removed"` // hands of players who left mid-match
	AttackerID string      `json:"attacker_id"`
	DefenderID string      `json:"defender_id"`
	Phase      Phase       `json:"phase"`
	CanThrowIn bool        `json:"can_throw_in"`
	DeckSize   int         `json:"deck_size"`
	Stake      int64       `json:"stake"`
	Outcome    *Outcome    `json:"outcome,omitempty"`
}

// Clone returns a deep copy that shares no slices with s.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.Hand = cloneCards(p.Hand)
		out.Players[i] = p
	}
	out.DrawPile = cloneCards(s.DrawPile)
	out.Discard = cloneCards(s.Discard)
	out.Removed = cloneCards(s.Removed)
	if s.Table != nil {
		out.Table = make([]TableCard, len(s.Table))
		for i, tc := range s.Table {
			if tc.Defense != nil {
				d := *tc.Defense
				tc.Defense = &d
			}
			out.Table[i] = tc
		}
	}
	if s.Outcome != nil {
		o := *s.Outcome
		o.Winners = append([]string(nil), s.Outcome.Winners...)
		out.Outcome = &o
	}
	return &out
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}

// Player returns the player with the given id, or nil.
func (s *GameState) Player(id string) *Player {
	if i := s.playerIndex(id); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

func (s *GameState) playerIndex(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// IsOut reports whether the player has no cards left and nothing to draw.
func (s *GameState) IsOut(p *Player) bool {
	return len(p.Hand) == 0 && len(s.DrawPile) == 0
}

// TableRanks returns every rank currently on the table, attack or defense.
func TableRanks(table []TableCard) map[Rank]bool {
	ranks := make(map[Rank]bool, len(table)*2)
	for _, tc := range table {
		ranks[tc.Attack.Rank] = true
		if tc.Defense != nil {
			ranks[tc.Defense.Rank] = true
		}
	}
	return ranks
}

// AllBeaten reports whether every table card is covered. An empty table is not "beaten".
func AllBeaten(table []TableCard) bool {
	if len(table) == 0 {
		return false
	}
	for _, tc := range table {
		if !tc.Beaten() {
			return false
		}
	}
	return true
}

// OpenSlots returns the indexes of uncovered table cards in declaration order.
func OpenSlots(table []TableCard) []int {
	var open []int
	for i, tc := range table {
		if !tc.Beaten() {
			open = append(open, i)
		}
	}
	return open
}

// CardCount returns every card accounted for in the state.
func (s *GameState) CardCount() int {
	n := len(s.DrawPile) + len(s.Discard) + len(s.Removed)
	for _, p := range s.Players {
		n += len(p.Hand)
	}
	for _, tc := range s.Table {
		n++
		if tc.Defense != nil {
			n++
		}
	}
	return n
}
