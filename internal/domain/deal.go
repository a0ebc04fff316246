package domain

import "fmt"

// NewGame deals a shuffled deck to the seats and picks the opening attacker.
//
// The bottom card of the deck sets the trump suit and stays at the bottom of the draw pile.
// Each seat receives HandSize cards in seat order. The seat holding the lowest trump attacks
// first (lowest seat index on ties, seat 0 when nobody holds a trump); the next seat defends.
func NewGame(seats []Seat, deck []Card, stake int64) (*GameState, error) {
	if len(seats) < MinPlayers {
		return nil, ErrTooFewPlayers
	}
	if !ValidDeckSize(len(deck)) {
		return nil, fmt.Errorf("unsupported deck size %d", len(deck))
	}
	if len(seats) > MaxPlayersFor(len(deck)) {
		return nil, fmt.Errorf("%w: %d seats, %d cards", ErrTooManyPlayers, len(seats), len(deck))
	}

	pile := cloneCards(deck)
	trump := pile[len(pile)-1]

	s := &GameState{
		Players:   make([]Player, len(seats)),
		TrumpSuit: trump.Suit,
		TrumpCard: trump,
		Table:     []TableCard{},
		Discard:   []Card{},
		Phase:     PhaseAttacking,
		DeckSize:  len(deck),
		Stake:     stake,
	}

	for i, seat := range seats {
		n := HandSize
		if n > len(pile) {
			n = len(pile)
		}
		s.Players[i] = Player{
			ID:       seat.ID,
			Username: seat.Username,
			Hand:     cloneCards(pile[:n]),
			Seat:     i,
			Coins:    seat.Coins,
			IsBot:    seat.IsBot,
		}
		pile = pile[n:]
	}
	s.DrawPile = cloneCards(pile)
	if s.DrawPile == nil {
		s.DrawPile = []Card{}
	}

	first := LowestTrumpSeat(s.Players, s.TrumpSuit)
	if first < 0 {
		first = 0
	}
	s.AttackerID = s.Players[first].ID
	s.DefenderID = s.Players[(first+1)%len(s.Players)].ID
	return s, nil
}

// LowestTrumpSeat returns the seat index holding the lowest trump, or -1.
func LowestTrumpSeat(players []Player, trump Suit) int {
	seat := -1
	var lowest Rank
	for i, p := range players {
		for _, c := range p.Hand {
			if c.Suit != trump {
				continue
			}
			if seat < 0 || c.Rank < lowest {
				seat = i
				lowest = c.Rank
			}
		}
	}
	return seat
}

// BiasHand swaps up to swaps of the player's weakest cards with the strongest cards in the
// draw pile, leaving the visible trump card at the bottom. The hand is then sorted strongest
// first. Card counts are unchanged.
func BiasHand(s *GameState, playerID string, swaps int) *GameState {
	next := s.Clone()
	p := next.Player(playerID)
	if p == nil {
		return next
	}
	for i := 0; i < swaps; i++ {
		weak := -1
		for j, c := range p.Hand {
			if weak < 0 || cardPower(c, next.TrumpSuit) < cardPower(p.Hand[weak], next.TrumpSuit) {
				weak = j
			}
		}
		strong := -1
		for j := 0; j < len(next.DrawPile)-1; j++ {
			if strong < 0 || cardPower(next.DrawPile[j], next.TrumpSuit) > cardPower(next.DrawPile[strong], next.TrumpSuit) {
				strong = j
			}
		}
		if weak < 0 || strong < 0 {
			break
		}
		if cardPower(next.DrawPile[strong], next.TrumpSuit) <= cardPower(p.Hand[weak], next.TrumpSuit) {
			break
		}
		p.Hand[weak], next.DrawPile[strong] = next.DrawPile[strong], p.Hand[weak]
	}
	SortHand(p.Hand, next.TrumpSuit)
	for l, r := 0, len(p.Hand)-1; l < r; l, r = l+1, r-1 {
		p.Hand[l], p.Hand[r] = p.Hand[r], p.Hand[l]
	}
	return next
}
