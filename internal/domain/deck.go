package domain

import (
	"fmt"
	"math/rand"
	"sort"
)

// HandSize is the number of cards every seat is topped up to.
const HandSize = 6

// Table size limits regardless of deck.
const (
	MinPlayers = 2
	MaxPlayers = 6
)

// DeckSizes lists the supported deck sizes.
var DeckSizes = []int{24, 36, 52}

// RanksFor returns the ranks present in a deck of the given size.
func RanksFor(deckSize int) ([]Rank, error) {
	var low Rank
	switch deckSize {
	case 24:
		low = Nine
	case 36:
		low = Six
	case 52:
		low = Two
	default:
		return nil, fmt.Errorf("unsupported deck size %d", deckSize)
	}
	ranks := make([]Rank, 0, Ace-low+1)
	for r := low; r <= Ace; r++ {
		ranks = append(ranks, r)
	}
	return ranks, nil
}

// ValidDeckSize reports whether n is a supported deck size.
func ValidDeckSize(n int) bool {
	for _, size := range DeckSizes {
		if size == n {
			return true
		}
	}
	return false
}

// MaxPlayersFor returns the largest table a deck can deal full hands to.
func MaxPlayersFor(deckSize int) int {
	n := deckSize / HandSize
	if n > MaxPlayers {
		n = MaxPlayers
	}
	return n
}

// NewDeck returns an ordered deck of the requested size.
func NewDeck(deckSize int) ([]Card, error) {
	ranks, err := RanksFor(deckSize)
	if err != nil {
		return nil, err
	}
	deck := make([]Card, 0, deckSize)
	for _, s := range Suits {
		for _, r := range ranks {
			deck = append(deck, NewCard(s, r))
		}
	}
	return deck, nil
}

// ShuffleDeck returns a shuffled copy of the given deck.
func ShuffleDeck(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// SortHand orders a hand by ascending strength: non-trumps by rank, then trumps by rank.
func SortHand(cards []Card, trump Suit) {
	sort.SliceStable(cards, func(i, j int) bool {
		return cardPower(cards[i], trump) < cardPower(cards[j], trump)
	})
}

// CardPower is a total strength order used by heuristics; trumps outrank every non-trump.
func CardPower(c Card, trump Suit) int {
	return cardPower(c, trump)
}

func cardPower(c Card, trump Suit) int {
	p := int(c.Rank)
	if c.Suit == trump {
		p += 100
	}
	return p
}
