package bot

import (
	"fmt"

	"durak/internal/domain"
)

func card(id string) domain.Card {
	suits := map[byte]domain.Suit{'H': domain.Hearts, 'D': domain.Diamonds, 'C': domain.Clubs, 'S': domain.Spades}
	suit, ok := suits[id[0]]
	if !ok {
		panic(fmt.Sprintf("bad suit in %q", id))
	}
	r, err := domain.ParseRank(id[1:])
	if err != nil {
		panic(err)
	}
	return domain.NewCard(suit, r)
}

func cards(ids ...string) []domain.Card {
	out := make([]domain.Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, card(id))
	}
	return out
}

// view builds the bot's own snapshot: "bot" attacks "opp" unless roles are swapped.
func view(trump domain.Suit, pile int, botHand []domain.Card, oppSize int, table []domain.TableCard, botDefends bool) domain.StateView {
	v := domain.StateView{
		Players: []domain.PlayerView{
			{ID: "bot", Seat: 0, IsBot: true, HandSize: len(botHand), Hand: botHand},
			{ID: "opp", Seat: 1, HandSize: oppSize},
		},
		DrawPileSize: pile,
		TrumpSuit:    trump,
		Table:        table,
		AttackerID:   "bot",
		DefenderID:   "opp",
		Phase:        domain.PhaseAttacking,
	}
	if botDefends {
		v.AttackerID, v.DefenderID = "opp", "bot"
	}
	if len(domain.OpenSlots(table)) > 0 {
		v.Phase = domain.PhaseDefending
	} else if domain.AllBeaten(table) {
		v.CanThrowIn = true
	}
	return v
}

func covered(attack, defense string) domain.TableCard {
	d := card(defense)
	return domain.TableCard{Attack: card(attack), Defense: &d}
}

func open(attack string) domain.TableCard {
	return domain.TableCard{Attack: card(attack)}
}
