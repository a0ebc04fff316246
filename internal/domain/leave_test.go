package domain

import (
	"reflect"
	"testing"
)

func TestRemovePlayer(t *testing.T) {
	tests := []struct {
		name      string
		setup     func() *GameState
		leaver    string
		phase     Phase
		attacker  string
		defender  string
		tableSize int
		outcome   *Outcome
	}{
		{
			name: "defender leaves two-player match",
			setup: func() *GameState {
				return newTestState(Hearts, cards("D6", "HA"), cards("C6", "C7"), cards("S6", "S7"))
			},
			leaver:  "p2",
			phase:   PhaseFinished,
			outcome: &Outcome{Winners: []string{"p1"}, LoserID: "p2", Forfeit: true},
		},
		{
			name: "attacker leaves aborts trick",
			setup: func() *GameState {
				s := newTestState(Hearts, cards("D6", "HA"), cards("C6", "C7"), cards("S6", "S7"), cards("D7", "D8"))
				s.Table = []TableCard{{Attack: card("C6")}}
				s.Players[0].Hand = cards("C7")
				s.Phase = PhaseDefending
				return s
			},
			leaver:   "p1",
			phase:    PhaseAttacking,
			attacker: "p3",
			defender: "p2",
		},
		{
			name: "defender leaves and next seat defends",
			setup: func() *GameState {
				s := newTestState(Hearts, cards("D6", "HA"), cards("C6", "C7"), cards("S6", "S7"), cards("D7", "D8"))
				s.Table = []TableCard{{Attack: card("C6")}}
				s.Players[0].Hand = cards("C7")
				s.Phase = PhaseDefending
				return s
			},
			leaver:   "p2",
			phase:    PhaseAttacking,
			attacker: "p1",
			defender: "p3",
		},
		{
			name: "bystander leaves mid trick",
			setup: func() *GameState {
				s := newTestState(Hearts, cards("D6", "HA"), cards("C6", "C7"), cards("S6", "S7"), cards("D7", "D8"))
				s.Table = []TableCard{{Attack: card("C6")}}
				s.Players[0].Hand = cards("C7")
				s.Phase = PhaseDefending
				return s
			},
			leaver:    "p3",
			phase:     PhaseDefending,
			attacker:  "p1",
			defender:  "p2",
			tableSize: 1,
		},
		{
			name: "leave resolves durak when pile is empty",
			setup: func() *GameState {
				s := newTestState(Hearts, nil, cards("C6"), nil, cards("D7", "D8"))
				s.Players[1].Hand = []Card{}
				s.AttackerID, s.DefenderID = "p3", "p1"
				return s
			},
			leaver:  "p1",
			phase:   PhaseFinished,
			outcome: &Outcome{Winners: []string{"p2"}, LoserID: "p3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.setup()
			before := s.Clone()
			next, err := RemovePlayer(s, tt.leaver)
			if err != nil {
				t.Fatalf("RemovePlayer: %v", err)
			}
			if !reflect.DeepEqual(before, s) {
				t.Fatalf("RemovePlayer modified its input")
			}
			if next.Player(tt.leaver) != nil {
				t.Fatalf("leaver still seated")
			}
			if next.Phase != tt.phase {
				t.Fatalf("phase = %s, want %s", next.Phase, tt.phase)
			}
			if err := CheckInvariants(next); err != nil {
				t.Fatalf("invariants: %v", err)
			}
			if tt.outcome != nil {
				if !reflect.DeepEqual(next.Outcome, tt.outcome) {
					t.Fatalf("outcome = %+v, want %+v", next.Outcome, tt.outcome)
				}
				return
			}
			if next.AttackerID != tt.attacker || next.DefenderID != tt.defender {
				t.Fatalf("roles = %s/%s, want %s/%s", next.AttackerID, next.DefenderID, tt.attacker, tt.defender)
			}
			if len(next.Table) != tt.tableSize {
				t.Fatalf("table size = %d, want %d", len(next.Table), tt.tableSize)
			}
		})
	}
}

func TestRemovePlayerRejections(t *testing.T) {
	s := newTestState(Hearts, nil, cards("C6"), cards("C7"))
	if _, err := RemovePlayer(s, "ghost"); !IsKind(err, KindNotFound) {
		t.Fatalf("unknown player: %v", err)
	}
	s.Phase = PhaseFinished
	if _, err := RemovePlayer(s, "p1"); !IsKind(err, KindIllegalAction) {
		t.Fatalf("finished match: %v", err)
	}
}
