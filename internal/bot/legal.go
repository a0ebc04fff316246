package bot

import (
	"sort"

	"durak/internal/domain"
)

// LegalAttacks returns the cards self may place on the table right now, weakest first.
func LegalAttacks(v domain.StateView, self string) []domain.Card {
	if !v.Phase.InPlay() || self == v.DefenderID {
		return nil
	}
	if self != v.AttackerID && !v.CanThrowIn {
		return nil
	}
	me, def := v.Player(self), v.Player(v.DefenderID)
	if me == nil || def == nil || len(v.Table) >= def.HandSize {
		return nil
	}
	ranks := domain.TableRanks(v.Table)
	var out []domain.Card
	for _, c := range me.Hand {
		if len(v.Table) == 0 || ranks[c.Rank] {
			out = append(out, c)
		}
	}
	sortByPower(out, v.TrumpSuit)
	return out
}

// LegalDefenses returns the cards that beat the attack at tableIndex, weakest first.
// Non-trump answers sort before trump answers.
func LegalDefenses(v domain.StateView, self string, tableIndex int) []domain.Card {
	if v.Phase != domain.PhaseDefending || self != v.DefenderID {
		return nil
	}
	if tableIndex < 0 || tableIndex >= len(v.Table) || v.Table[tableIndex].Beaten() {
		return nil
	}
	me := v.Player(self)
	if me == nil {
		return nil
	}
	attack := v.Table[tableIndex].Attack
	var out []domain.Card
	for _, c := range me.Hand {
		if domain.CanBeat(attack, c, v.TrumpSuit) {
			out = append(out, c)
		}
	}
	sortByPower(out, v.TrumpSuit)
	return out
}

// CanCallBeat reports whether self may close the trick.
func CanCallBeat(v domain.StateView, self string) bool {
	if !v.Phase.InPlay() || self == v.DefenderID {
		return false
	}
	if self != v.AttackerID && !v.CanThrowIn {
		return false
	}
	return domain.AllBeaten(v.Table)
}

func sortByPower(cards []domain.Card, trump domain.Suit) {
	sort.SliceStable(cards, func(i, j int) bool {
		return domain.CardPower(cards[i], trump) < domain.CardPower(cards[j], trump)
	})
}

func firstNonTrump(cards []domain.Card, trump domain.Suit) (domain.Card, bool) {
	for _, c := range cards {
		if !c.IsTrump(trump) {
			return c, true
		}
	}
	return domain.Card{}, false
}
