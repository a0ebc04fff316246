package domain

import (
	"fmt"
	"strconv"
)

// Suit is one of the four French suits.
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Suits lists suits in deck construction order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

func (s Suit) code() string {
	switch s {
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	case Spades:
		return "S"
	default:
		return "?"
	}
}

func (s Suit) symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool {
	switch s {
	case Hearts, Diamonds, Clubs, Spades:
		return true
	}
	return false
}

// Rank orders cards within a suit. The numeric value is the comparison key (6 < 7 < ... < A).
type Rank int

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

// String renders ranks the way they are printed on cards ("6", "10", "J", "A").
func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return strconv.Itoa(int(r))
	}
}

// MarshalText encodes the rank as its printed face.
func (r Rank) MarshalText() ([]byte, error) {
	if r < Two || r > Ace {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText accepts the printed face ("6".."10", "J", "Q", "K", "A").
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank parses a printed rank face.
func ParseRank(s string) (Rank, error) {
	switch s {
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "A":
		return Ace, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(Two) || n > int(Ten) {
		return 0, fmt.Errorf("invalid rank %q", s)
	}
	return Rank(n), nil
}

// Card is an immutable card instance. ID is unique within a deck.
type Card struct {
	ID   string `json:"id"`
	Suit Suit   `json:"suit"`
	Rank Rank   `json:"rank"`
}

// NewCard builds a card with its canonical id (suit code + rank face, e.g. "H10").
func NewCard(suit Suit, rank Rank) Card {
	return Card{ID: suit.code() + rank.String(), Suit: suit, Rank: rank}
}

// ParseCard parses a canonical card id such as "H10" or "SA".
func ParseCard(id string) (Card, error) {
	if len(id) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", id)
	}
	var suit Suit
	for _, s := range Suits {
		if s.code() == id[:1] {
			suit = s
		}
	}
	if suit == "" {
		return Card{}, fmt.Errorf("invalid suit in card %q", id)
	}
	rank, err := ParseRank(id[1:])
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", id, err)
	}
	return NewCard(suit, rank), nil
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.symbol()
}

// IsTrump reports whether the card belongs to the trump suit.
func (c Card) IsTrump(trump Suit) bool {
	return c.Suit == trump
}

// Matches reports whether c identifies the same card instance as other.
// Cards without an id fall back to suit and rank.
func (c Card) Matches(other Card) bool {
	if c.ID != "" && other.ID != "" {
		return c.ID == other.ID
	}
	return c.Suit == other.Suit && c.Rank == other.Rank
}

// CanBeat reports whether defense legally covers attack.
// A trump beats any non-trump; otherwise only a higher card of the same suit wins.
func CanBeat(attack, defense Card, trump Suit) bool {
	if defense.Suit == trump && attack.Suit != trump {
		return true
	}
	if defense.Suit == attack.Suit {
		return defense.Rank > attack.Rank
	}
	return false
}

// indexOfCard returns the position of card in cards, or -1.
func indexOfCard(cards []Card, card Card) int {
	for i, c := range cards {
		if c.Matches(card) {
			return i
		}
	}
	return -1
}

// removeAt returns a copy of cards without the element at i.
func removeAt(cards []Card, i int) []Card {
	out := make([]Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}
