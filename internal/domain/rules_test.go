package domain

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestCanBeatExhaustive(t *testing.T) {
	ranks, err := RanksFor(36)
	if err != nil {
		t.Fatalf("RanksFor: %v", err)
	}
	trump := Hearts
	for _, as := range Suits {
		for _, ds := range Suits {
			for _, ar := range ranks {
				for _, dr := range ranks {
					a, d := NewCard(as, ar), NewCard(ds, dr)
					want := (ds == trump && as != trump) || (ds == as && dr > ar)
					if got := CanBeat(a, d, trump); got != want {
						t.Fatalf("CanBeat(%s, %s, %s) = %v, want %v", a, d, trump, got, want)
					}
				}
			}
		}
	}
}

// rejectionBase: p1 attacks, p2 defends, p3 waits. Trump is hearts.
func rejectionBase() *GameState {
	return newTestState(Hearts,
		cards("D6", "D7", "HA"),
		cards("C6", "C9", "S6", "H7"),
		cards("C7", "C8", "D10", "S7"),
		cards("S9", "C10", "D8"),
	)
}

func TestRejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(s *GameState)
		apply  func(s *GameState) (*GameState, error)
		kind   RejectionKind
		reason string
	}{
		{
			name:   "attack by unknown player",
			apply:  func(s *GameState) (*GameState, error) { return Attack(s, "ghost", card("C6")) },
			kind:   KindNotFound,
			reason: ReasonPlayerNotFound,
		},
		{
			name:   "defender cannot attack",
			apply:  func(s *GameState) (*GameState, error) { return Attack(s, "p2", card("C7")) },
			kind:   KindIllegalAction,
			reason: ReasonDefenderCannotAct,
		},
		{
			name:   "throw-in while window closed",
			apply:  func(s *GameState) (*GameState, error) { return Attack(s, "p3", card("S9")) },
			kind:   KindIllegalAction,
			reason: ReasonNotYourTurn,
		},
		{
			name:   "attack with card not held",
			apply:  func(s *GameState) (*GameState, error) { return Attack(s, "p1", card("SA")) },
			kind:   KindIllegalAction,
			reason: ReasonCardNotInHand,
		},
		{
			name: "attack rank not on table",
			setup: func(s *GameState) {
				d := card("C7")
				s.Table = []TableCard{{Attack: card("C6"), Defense: &d}}
				s.Players[0].Hand = cards("C9", "S6", "H7")
				s.Players[1].Hand = cards("C8", "D10", "S7")
				s.CanThrowIn = true
			},
			apply:  func(s *GameState) (*GameState, error) { return Attack(s, "p1", card("C9")) },
			kind:   KindIllegalAction,
			reason: ReasonRankMismatch,
		},
		{
			name: "attack beyond defender hand size",
			setup: func(s *GameState) {
				s.Table = []TableCard{{Attack: card("C6")}}
				s.Players[0].Hand = cards("C9", "S6", "H7")
				s.Players[1].Hand = cards("C7")
				s.Discard = cards("C8", "D10", "S7")
				s.Phase = PhaseDefending
			},
			apply:  func(s *GameState) (*GameState, error) { return Attack(s, "p1", card("S6")) },
			kind:   KindIllegalAction,
			reason: ReasonDefenderHandLimit,
		},
		{
			name:   "attack after finish",
			setup:  func(s *GameState) { s.Phase = PhaseFinished },
			apply:  func(s *GameState) (*GameState, error) { return Attack(s, "p1", card("C6")) },
			kind:   KindIllegalAction,
			reason: ReasonNotInProgress,
		},
		{
			name:   "defend by non-defender",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Defend(s, "p3", card("C10"), 0) },
			kind:   KindIllegalAction,
			reason: ReasonNotDefender,
		},
		{
			name:   "defend with nothing attacked",
			apply:  func(s *GameState) (*GameState, error) { return Defend(s, "p2", card("C7"), 0) },
			kind:   KindIllegalAction,
			reason: ReasonNotDefending,
		},
		{
			name:   "defend with card not held",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Defend(s, "p2", card("CA"), 0) },
			kind:   KindIllegalAction,
			reason: ReasonCardNotInHand,
		},
		{
			name:   "defend missing slot",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Defend(s, "p2", card("C7"), 3) },
			kind:   KindNotFound,
			reason: ReasonSlotNotFound,
		},
		{
			name: "defend covered slot",
			setup: func(s *GameState) {
				attackC6(s)
				d := card("C8")
				s.Players[1].Hand = cards("C7", "D10", "S7")
				s.Table = append(s.Table, TableCard{Attack: card("S6")})
				s.Players[0].Hand = cards("C9", "H7")
				s.Table[0].Defense = &d
			},
			apply:  func(s *GameState) (*GameState, error) { return Defend(s, "p2", card("C7"), 0) },
			kind:   KindConflict,
			reason: ReasonSlotDefended,
		},
		{
			name:   "defend with off-suit non-trump",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Defend(s, "p2", card("D10"), 0) },
			kind:   KindIllegalAction,
			reason: ReasonCannotBeat,
		},
		{
			name:   "take by attacker",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Take(s, "p1") },
			kind:   KindIllegalAction,
			reason: ReasonNotDefender,
		},
		{
			name:   "take empty table",
			apply:  func(s *GameState) (*GameState, error) { return Take(s, "p2") },
			kind:   KindIllegalAction,
			reason: ReasonTableEmpty,
		},
		{
			name:   "beat by defender",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Beat(s, "p2") },
			kind:   KindIllegalAction,
			reason: ReasonDefenderCannotBeat,
		},
		{
			name:   "beat by bystander",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Beat(s, "p3") },
			kind:   KindIllegalAction,
			reason: ReasonNotYourTurn,
		},
		{
			name:   "beat with open attack",
			setup:  func(s *GameState) { attackC6(s) },
			apply:  func(s *GameState) (*GameState, error) { return Beat(s, "p1") },
			kind:   KindIllegalAction,
			reason: ReasonNotAllBeaten,
		},
		{
			name:   "beat empty table",
			apply:  func(s *GameState) (*GameState, error) { return Beat(s, "p1") },
			kind:   KindIllegalAction,
			reason: ReasonTableEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := rejectionBase()
			if tt.setup != nil {
				tt.setup(s)
			}
			before := s.Clone()

			next, err := tt.apply(s)
			if err == nil {
				t.Fatalf("expected rejection, got new state %+v", next)
			}
			rej, ok := AsRejection(err)
			if !ok {
				t.Fatalf("expected *Rejection, got %T: %v", err, err)
			}
			if rej.Kind != tt.kind || rej.Reason != tt.reason {
				t.Fatalf("got %s/%s, want %s/%s", rej.Kind, rej.Reason, tt.kind, tt.reason)
			}
			if next != nil {
				t.Fatalf("rejection returned a state")
			}
			if !reflect.DeepEqual(before, s) {
				t.Fatalf("rejected action modified the input state")
			}
		})
	}
}

// attackC6 puts p1's C6 on the table as an open attack.
func attackC6(s *GameState) {
	s.Players[0].Hand = cards("C9", "S6", "H7")
	s.Table = []TableCard{{Attack: card("C6")}}
	s.Phase = PhaseDefending
}

func TestBasicBeat(t *testing.T) {
	s := newTestState(Hearts,
		cards("D6", "D7", "HA"),
		cards("C6", "S9", "D9", "SJ", "DQ", "SK"),
		cards("C7", "D8", "S8", "DJ", "SQ", "DK"),
	)

	s, err := Attack(s, "p1", card("C6"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	if s.Phase != PhaseDefending || s.CanThrowIn {
		t.Fatalf("after attack: phase=%s canThrowIn=%v", s.Phase, s.CanThrowIn)
	}
	s, err = Defend(s, "p2", card("C7"), 0)
	if err != nil {
		t.Fatalf("Defend: %v", err)
	}
	if s.Phase != PhaseAttacking || !s.CanThrowIn {
		t.Fatalf("after defend: phase=%s canThrowIn=%v", s.Phase, s.CanThrowIn)
	}
	s, err = Beat(s, "p1")
	if err != nil {
		t.Fatalf("Beat: %v", err)
	}

	if len(s.Discard) != 2 || !s.Discard[0].Matches(card("C6")) || !s.Discard[1].Matches(card("C7")) {
		t.Fatalf("discard = %v, want [C6 C7]", s.Discard)
	}
	if len(s.Table) != 0 || s.CanThrowIn {
		t.Fatalf("table=%v canThrowIn=%v", s.Table, s.CanThrowIn)
	}
	if s.AttackerID != "p2" || s.DefenderID != "p1" {
		t.Fatalf("roles = %s/%s, want p2/p1", s.AttackerID, s.DefenderID)
	}
	if s.Phase != PhaseAttacking {
		t.Fatalf("phase = %s", s.Phase)
	}
	for _, p := range s.Players {
		if len(p.Hand) != HandSize {
			t.Fatalf("%s holds %d cards after refill", p.ID, len(p.Hand))
		}
	}
	if err := CheckInvariants(s); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestTakeRotatesPastDefender(t *testing.T) {
	s := newTestState(Hearts,
		cards("D6", "D7", "D8", "HA"),
		cards("SA", "C9"),
		cards("C7", "D10"),
		cards("S6", "C6"),
	)

	s, err := Attack(s, "p1", card("SA"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	for _, c := range []string{"C7", "D10"} {
		if _, err := Defend(s, "p2", card(c), 0); !IsKind(err, KindIllegalAction) {
			t.Fatalf("Defend with %s: expected illegal action, got %v", c, err)
		}
	}
	s, err = Take(s, "p2")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	defender := s.Player("p2")
	if indexOfCard(defender.Hand, card("SA")) < 0 {
		t.Fatalf("defender hand %v missing taken card", handIDs(defender))
	}
	if s.AttackerID != "p3" || s.DefenderID != "p1" {
		t.Fatalf("roles = %s/%s, want p3/p1", s.AttackerID, s.DefenderID)
	}
	if s.Phase != PhaseAttacking || len(s.Table) != 0 || s.CanThrowIn {
		t.Fatalf("phase=%s table=%v canThrowIn=%v", s.Phase, s.Table, s.CanThrowIn)
	}
	if err := CheckInvariants(s); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestTakeRotationWraps(t *testing.T) {
	tests := []struct {
		name             string
		players          int
		attacker         string
		defender         string
		wantAtk, wantDef string
	}{
		{"two players", 2, "p1", "p2", "p1", "p2"},
		{"four players middle", 4, "p2", "p3", "p4", "p1"},
		{"four players wrap", 4, "p3", "p4", "p1", "p2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands := [][]Card{
				cards("C6", "C7"), cards("D6", "D7"), cards("S6", "S7"), cards("H6", "H7"),
			}[:tt.players]
			s := newTestState(Hearts, cards("CA", "DA", "SA", "HA"), hands...)
			s.AttackerID, s.DefenderID = tt.attacker, tt.defender
			atk := s.Player(tt.attacker)
			s.Table = []TableCard{{Attack: atk.Hand[0]}}
			atk.Hand = atk.Hand[1:]
			s.Phase = PhaseDefending

			next, err := Take(s, tt.defender)
			if err != nil {
				t.Fatalf("Take: %v", err)
			}
			if next.AttackerID != tt.wantAtk || next.DefenderID != tt.wantDef {
				t.Fatalf("roles = %s/%s, want %s/%s", next.AttackerID, next.DefenderID, tt.wantAtk, tt.wantDef)
			}
		})
	}
}

func TestRefillDefenderLast(t *testing.T) {
	s := newTestState(Hearts,
		cards("DA", "SA"),
		cards("C6", "C8", "C9", "C10", "CJ", "CQ"),
		cards("C7", "D8", "D9", "D10", "DJ"),
		cards("S6", "S8", "S9", "S10", "SJ"),
	)
	d := card("C7")
	s.Players[1].Hand = cards("D8", "D9", "D10", "DJ")
	s.Players[0].Hand = cards("C8", "C9", "C10", "CJ", "CQ")
	s.Table = []TableCard{{Attack: card("C6"), Defense: &d}}
	s.CanThrowIn = true

	next, err := Beat(s, "p1")
	if err != nil {
		t.Fatalf("Beat: %v", err)
	}
	want := map[string]int{"p1": 6, "p3": 6, "p2": 4}
	for id, n := range want {
		if got := len(next.Player(id).Hand); got != n {
			t.Fatalf("%s holds %d cards, want %d", id, got, n)
		}
	}
	if indexOfCard(next.Player("p1").Hand, card("DA")) < 0 || indexOfCard(next.Player("p3").Hand, card("SA")) < 0 {
		t.Fatalf("draw order wrong: p1=%v p3=%v", handIDs(next.Player("p1")), handIDs(next.Player("p3")))
	}
	if next.Phase != PhaseAttacking || next.AttackerID != "p2" || next.DefenderID != "p3" {
		t.Fatalf("phase=%s roles=%s/%s", next.Phase, next.AttackerID, next.DefenderID)
	}
}

func TestWinDetection(t *testing.T) {
	s := newTestState(Hearts, nil,
		cards("C6"),
		cards("C7", "D9"),
	)
	s, err := Attack(s, "p1", card("C6"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	s, err = Defend(s, "p2", card("C7"), 0)
	if err != nil {
		t.Fatalf("Defend: %v", err)
	}
	s, err = Beat(s, "p1")
	if err != nil {
		t.Fatalf("Beat: %v", err)
	}
	if s.Phase != PhaseFinished || s.Outcome == nil {
		t.Fatalf("phase = %s, outcome = %+v", s.Phase, s.Outcome)
	}
	if s.Outcome.Draw || s.Outcome.LoserID != "p2" || !reflect.DeepEqual(s.Outcome.Winners, []string{"p1"}) {
		t.Fatalf("outcome = %+v", s.Outcome)
	}
	if _, err := Attack(s, "p2", card("D9")); !IsKind(err, KindIllegalAction) {
		t.Fatalf("action after finish: %v", err)
	}
}

func TestWinDetectionAfterTake(t *testing.T) {
	s := newTestState(Hearts, nil,
		cards("C6"),
		cards("D9"),
		cards("S7"),
	)
	s, err := Attack(s, "p1", card("C6"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	// p1 is out but p2 and p3 still hold cards.
	s, err = Take(s, "p2")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if s.Phase != PhaseAttacking {
		t.Fatalf("phase = %s, want attacking", s.Phase)
	}
	if s.AttackerID != "p3" || s.DefenderID != "p2" {
		t.Fatalf("roles = %s/%s, want p3/p2 (p1 is out)", s.AttackerID, s.DefenderID)
	}

	s, err = Attack(s, "p3", card("S7"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	s, err = Take(s, "p2")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if s.Phase != PhaseFinished || s.Outcome.LoserID != "p2" {
		t.Fatalf("phase=%s outcome=%+v", s.Phase, s.Outcome)
	}
	if !reflect.DeepEqual(s.Outcome.Winners, []string{"p1", "p3"}) {
		t.Fatalf("winners = %v", s.Outcome.Winners)
	}
}

func TestDrawWhenEveryoneIsOut(t *testing.T) {
	s := newTestState(Hearts, nil,
		cards("C6"),
		cards("C7"),
	)
	s, err := Attack(s, "p1", card("C6"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	s, err = Defend(s, "p2", card("C7"), 0)
	if err != nil {
		t.Fatalf("Defend: %v", err)
	}
	s, err = Beat(s, "p1")
	if err != nil {
		t.Fatalf("Beat: %v", err)
	}
	if s.Phase != PhaseFinished || s.Outcome == nil || !s.Outcome.Draw || s.Outcome.LoserID != "" {
		t.Fatalf("phase=%s outcome=%+v", s.Phase, s.Outcome)
	}
}

func TestThrowIn(t *testing.T) {
	s := rejectionBase()
	s, err := Attack(s, "p1", card("C6"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	s, err = Defend(s, "p2", card("C7"), 0)
	if err != nil {
		t.Fatalf("Defend: %v", err)
	}
	// p3 may now add a card matching a rank on the table (7 from the defense).
	s.Players[2].Hand = append(s.Players[2].Hand, card("D7"))
	s.DrawPile = s.DrawPile[:0]
	s.DrawPile = append(s.DrawPile, card("D6"), card("HA"))
	s.DeckSize = s.CardCount()

	s, err = Attack(s, "p3", card("D7"))
	if err != nil {
		t.Fatalf("throw-in: %v", err)
	}
	if s.Phase != PhaseDefending || s.CanThrowIn || len(s.Table) != 2 {
		t.Fatalf("phase=%s canThrowIn=%v table=%d", s.Phase, s.CanThrowIn, len(s.Table))
	}
	if _, err := Attack(s, "p3", card("S9")); !IsKind(err, KindIllegalAction) {
		t.Fatalf("second throw-in while window closed: %v", err)
	}
}

func TestRacingDefenseConflict(t *testing.T) {
	s := rejectionBase()
	s, err := Attack(s, "p1", card("C6"))
	if err != nil {
		t.Fatalf("Attack: %v", err)
	}
	s, err = Attack(s, "p1", card("S6"))
	if err != nil {
		t.Fatalf("second attack: %v", err)
	}

	// Both defenses target slot 0 of the same state; the first commit wins.
	first, err := Defend(s, "p2", card("C7"), 0)
	if err != nil {
		t.Fatalf("first defense: %v", err)
	}
	if _, err := Defend(s, "p2", card("C8"), 0); err != nil {
		t.Fatalf("second defense against the old state should be legal: %v", err)
	}
	_, err = Defend(first, "p2", card("C8"), 0)
	rej, ok := AsRejection(err)
	if !ok || rej.Kind != KindConflict || rej.Reason != ReasonSlotDefended {
		t.Fatalf("second defense after commit: got %v", err)
	}
}

// legalMoves lists every action a random driver may try against s.
func legalMoves(s *GameState) []func(*GameState) (*GameState, error) {
	var moves []func(*GameState) (*GameState, error)
	for _, p := range s.Players {
		id := p.ID
		for _, c := range p.Hand {
			c := c
			moves = append(moves, func(g *GameState) (*GameState, error) { return Attack(g, id, c) })
			for i := range s.Table {
				i := i
				moves = append(moves, func(g *GameState) (*GameState, error) { return Defend(g, id, c, i) })
			}
		}
		moves = append(moves,
			func(g *GameState) (*GameState, error) { return Take(g, id) },
			func(g *GameState) (*GameState, error) { return Beat(g, id) },
		)
	}
	return moves
}

func TestRandomPlayConservesCards(t *testing.T) {
	for _, tc := range []struct {
		deck, players int
	}{{24, 2}, {24, 4}, {36, 3}, {36, 6}, {52, 5}} {
		for seed := int64(1); seed <= 8; seed++ {
			rng := rand.New(rand.NewSource(seed))
			deck, err := NewDeck(tc.deck)
			if err != nil {
				t.Fatalf("NewDeck: %v", err)
			}
			seats := make([]Seat, tc.players)
			for i := range seats {
				seats[i] = Seat{ID: string(rune('a' + i))}
			}
			s, err := NewGame(seats, ShuffleDeck(deck, rng), 0)
			if err != nil {
				t.Fatalf("NewGame: %v", err)
			}

			for step := 0; step < 2000 && s.Phase != PhaseFinished; step++ {
				moves := legalMoves(s)
				rng.Shuffle(len(moves), func(i, j int) { moves[i], moves[j] = moves[j], moves[i] })
				before := s.Clone()
				checked := false
				applied := false
				for _, m := range moves {
					next, err := m(s)
					if err != nil {
						if !checked {
							if !reflect.DeepEqual(before, s) {
								t.Fatalf("deck %d seed %d: rejection mutated state", tc.deck, seed)
							}
							checked = true
						}
						continue
					}
					if err := CheckInvariants(next); err != nil {
						t.Fatalf("deck %d seed %d step %d: %v", tc.deck, seed, step, err)
					}
					s = next
					applied = true
					break
				}
				if !applied {
					t.Fatalf("deck %d seed %d step %d: no legal move in phase %s", tc.deck, seed, step, s.Phase)
				}
			}
		}
	}
}
