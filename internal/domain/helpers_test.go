package domain

import "fmt"

// card parses ids like "C6", "H10", "SA".
func card(id string) Card {
	var suit Suit
	switch id[0] {
	case 'H':
		suit = Hearts
	case 'D':
		suit = Diamonds
	case 'C':
		suit = Clubs
	case 'S':
		suit = Spades
	default:
		panic(fmt.Sprintf("bad suit in %q", id))
	}
	r, err := ParseRank(id[1:])
	if err != nil {
		panic(err)
	}
	return NewCard(suit, r)
}

func cards(ids ...string) []Card {
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, card(id))
	}
	return out
}

// newTestState seats p1..pN with the given hands. p1 attacks, p2 defends.
func newTestState(trump Suit, pile []Card, hands ...[]Card) *GameState {
	s := &GameState{
		DrawPile:   append([]Card{}, pile...),
		TrumpSuit:  trump,
		Table:      []TableCard{},
		Discard:    []Card{},
		Phase:      PhaseAttacking,
		AttackerID: "p1",
		DefenderID: "p2",
	}
	if len(pile) > 0 {
		s.TrumpCard = pile[len(pile)-1]
	} else {
		s.TrumpCard = NewCard(trump, Six)
	}
	for i, h := range hands {
		s.Players = append(s.Players, Player{
			ID:       fmt.Sprintf("p%d", i+1),
			Username: fmt.Sprintf("player%d", i+1),
			Hand:     append([]Card{}, h...),
			Seat:     i,
		})
	}
	s.DeckSize = s.CardCount()
	return s
}

func handIDs(p *Player) []string {
	ids := make([]string, len(p.Hand))
	for i, c := range p.Hand {
		ids[i] = c.ID
	}
	return ids
}
