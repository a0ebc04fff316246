package domain

import "fmt"

// CheckInvariants verifies structural invariants of a dealt state.
// A non-nil result wraps ErrInvariantViolated and means the state must not be used further.
func CheckInvariants(s *GameState) error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvariantViolated)
	}
	if got := s.CardCount(); got != s.DeckSize {
		return fmt.Errorf("%w: card count %d, deck size %d", ErrInvariantViolated, got, s.DeckSize)
	}

	seen := make(map[string]string, s.DeckSize)
	note := func(where string, cards ...Card) error {
		for _, c := range cards {
			if prev, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: card %s in both %s and %s", ErrInvariantViolated, c.ID, prev, where)
			}
			seen[c.ID] = where
		}
		return nil
	}
	if err := note("draw pile", s.DrawPile...); err != nil {
		return err
	}
	if err := note("discard", s.Discard...); err != nil {
		return err
	}
	if err := note("removed", s.Removed...); err != nil {
		return err
	}
	for _, p := range s.Players {
		if err := note("hand of "+p.ID, p.Hand...); err != nil {
			return err
		}
	}
	for i, tc := range s.Table {
		where := fmt.Sprintf("table slot %d", i)
		if err := note(where, tc.Attack); err != nil {
			return err
		}
		if tc.Defense != nil {
			if err := note(where, *tc.Defense); err != nil {
				return err
			}
		}
	}

	if !s.Phase.InPlay() {
		return nil
	}
	if s.AttackerID == s.DefenderID {
		return fmt.Errorf("%w: attacker and defender are both %q", ErrInvariantViolated, s.AttackerID)
	}
	if s.Player(s.AttackerID) == nil || s.Player(s.DefenderID) == nil {
		return fmt.Errorf("%w: attacker %q or defender %q not seated", ErrInvariantViolated, s.AttackerID, s.DefenderID)
	}
	if s.CanThrowIn && !AllBeaten(s.Table) {
		return fmt.Errorf("%w: throw-in open with uncovered cards", ErrInvariantViolated)
	}
	if s.Phase == PhaseDefending && len(OpenSlots(s.Table)) == 0 {
		return fmt.Errorf("%w: defending with nothing to cover", ErrInvariantViolated)
	}
	return nil
}
