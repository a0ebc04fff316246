package bot

import (
	"testing"

	"durak/internal/domain"
)

func TestGoodBot_CalculateMove(t *testing.T) {
	tests := []struct {
		name  string
		view  domain.StateView
		want  MoveKind
		card  string
		index int
	}{
		{
			name: "lead lowest non-trump",
			view: view(domain.Hearts, 10, cards("H6", "SK", "C7", "D9"), 6, nil, false),
			want: MoveAttack,
			card: "C7",
		},
		{
			name: "lead lowest trump when only trumps",
			view: view(domain.Hearts, 10, cards("HK", "H8"), 6, nil, false),
			want: MoveAttack,
			card: "H8",
		},
		{
			name: "throw in matching rank",
			view: view(domain.Hearts, 10, cards("S7", "D9", "H7"), 5, []domain.TableCard{covered("C7", "C10")}, false),
			want: MoveAttack,
			card: "S7",
		},
		{
			name: "no trump throw-in, close trick",
			view: view(domain.Hearts, 10, cards("H7", "D9"), 5, []domain.TableCard{covered("C7", "C10")}, false),
			want: MoveBeat,
		},
		{
			name: "respect defender hand size",
			view: view(domain.Hearts, 10, cards("S7"), 1, []domain.TableCard{covered("C7", "C10")}, false),
			want: MoveBeat,
		},
		{
			name: "wait while defender thinks",
			view: view(domain.Hearts, 10, cards("S7"), 5, []domain.TableCard{open("C7")}, false),
			want: MoveNone,
		},
		{
			name:  "defend with weakest same-suit card",
			view:  view(domain.Hearts, 10, cards("CA", "C9", "H6", "C8"), 5, []domain.TableCard{open("C7")}, true),
			want:  MoveDefend,
			card:  "C8",
			index: 0,
		},
		{
			name:  "prefer non-trump answer over trump",
			view:  view(domain.Hearts, 10, cards("H6", "CA"), 5, []domain.TableCard{open("C7")}, true),
			want:  MoveDefend,
			card:  "CA",
			index: 0,
		},
		{
			name:  "trump answers off-suit attack",
			view:  view(domain.Hearts, 10, cards("H9", "H6", "D6"), 5, []domain.TableCard{open("C7")}, true),
			want:  MoveDefend,
			card:  "H6",
			index: 0,
		},
		{
			name:  "cover first open slot",
			view:  view(domain.Hearts, 10, cards("D8", "S9"), 4, []domain.TableCard{covered("C7", "C9"), open("D7")}, true),
			want:  MoveDefend,
			card:  "D8",
			index: 1,
		},
		{
			name: "take when nothing beats",
			view: view(domain.Hearts, 10, cards("D6", "S7"), 5, []domain.TableCard{open("CA")}, true),
			want: MoveTake,
		},
		{
			name: "finished match",
			view: func() domain.StateView {
				v := view(domain.Hearts, 0, cards("D6"), 0, nil, false)
				v.Phase = domain.PhaseFinished
				return v
			}(),
			want: MoveNone,
		},
	}

	bot := &GoodBot{Tuning: DefaultTuning}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			move, err := bot.CalculateMove(tt.view, "bot")
			if err != nil {
				t.Fatalf("CalculateMove failed: %v", err)
			}
			if move.Kind != tt.want {
				t.Fatalf("move = %+v, want %s", move, tt.want)
			}
			if tt.card != "" && move.Card.ID != tt.card {
				t.Fatalf("card = %s, want %s", move.Card.ID, tt.card)
			}
			if move.Kind == MoveDefend && move.TableIndex != tt.index {
				t.Fatalf("table index = %d, want %d", move.TableIndex, tt.index)
			}
		})
	}
}

func TestGoodBot_MovesAreLegal(t *testing.T) {
	v := view(domain.Hearts, 10, cards("H6", "CA", "C8"), 5, []domain.TableCard{open("C7")}, true)
	move, _ := (&GoodBot{}).CalculateMove(v, "bot")
	if move.Kind != MoveDefend || !domain.CanBeat(v.Table[move.TableIndex].Attack, move.Card, v.TrumpSuit) {
		t.Fatalf("illegal defense %+v", move)
	}
}
