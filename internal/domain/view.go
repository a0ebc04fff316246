package domain

// PlayerView is a seat as seen by one viewer.
type PlayerView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Seat     int    `json:"seat"`
	Coins    int64  `json:"coins"`
	IsBot    bool   `json:"is_bot"`
	HandSize int    `json:"hand_size"`
	Hand     []Card `json:"hand,omitempty"`
}

// StateView is a copy-out snapshot of a GameState prepared for one viewer.
type StateView struct {
	Players      []PlayerView `json:"players"`
	DrawPileSize int          `json:"draw_pile_size"`
	TrumpSuit    Suit         `json:"trump_suit"`
	TrumpCard    Card         `json:"trump_card"`
	Table        []TableCard  `json:"table"`
	DiscardSize  int          `json:"discard_size"`
	AttackerID   string       `json:"attacker_id"`
	DefenderID   string       `json:"defender_id"`
	Phase        Phase        `json:"phase"`
	CanThrowIn   bool         `json:"can_throw_in"`
	DeckSize     int          `json:"deck_size"`
	Stake        int64        `json:"stake"`
	Outcome      *Outcome     `json:"outcome,omitempty"`
}

// View builds the snapshot seen by viewerID. With reveal false only the viewer's own hand
// is included; every other seat exposes its hand size only.
func (s *GameState) View(viewerID string, reveal bool) StateView {
	c := s.Clone()
	v := StateView{
		Players:      make([]PlayerView, len(c.Players)),
		DrawPileSize: len(c.DrawPile),
		TrumpSuit:    c.TrumpSuit,
		TrumpCard:    c.TrumpCard,
		Table:        c.Table,
		DiscardSize:  len(c.Discard),
		AttackerID:   c.AttackerID,
		DefenderID:   c.DefenderID,
		Phase:        c.Phase,
		CanThrowIn:   c.CanThrowIn,
		DeckSize:     c.DeckSize,
		Stake:        c.Stake,
		Outcome:      c.Outcome,
	}
	for i, p := range c.Players {
		pv := PlayerView{
			ID:       p.ID,
			Username: p.Username,
			Seat:     p.Seat,
			Coins:    p.Coins,
			IsBot:    p.IsBot,
			HandSize: len(p.Hand),
		}
		if reveal || p.ID == viewerID {
			pv.Hand = p.Hand
		}
		v.Players[i] = pv
	}
	return v
}

// Player returns the view of the given seat, or nil.
func (v *StateView) Player(id string) *PlayerView {
	for i := range v.Players {
		if v.Players[i].ID == id {
			return &v.Players[i]
		}
	}
	return nil
}
