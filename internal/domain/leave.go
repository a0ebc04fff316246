package domain

// RemovePlayer drops a seat from a match in progress.
//
// The leaver's hand moves to the Removed pile. If the leaver was attacking or defending,
// the open trick is moved to the discard pile. Roles are re-derived from the seats that
// still hold or can draw cards. A single remaining seat wins by forfeit with the leaver
// recorded as the loser; otherwise the usual terminal detection applies.
func RemovePlayer(s *GameState, playerID string) (*GameState, error) {
	if !s.Phase.InPlay() {
		return nil, reject(KindIllegalAction, ReasonNotInProgress, "match is %s", s.Phase)
	}
	idx := s.playerIndex(playerID)
	if idx < 0 {
		return nil, reject(KindNotFound, ReasonPlayerNotFound, "player %s not found", playerID)
	}

	next := s.Clone()
	leaver := next.Players[idx]
	next.Removed = append(next.Removed, leaver.Hand...)
	next.Players = append(next.Players[:idx:idx], next.Players[idx+1:]...)

	wasAttacker := playerID == next.AttackerID
	wasDefender := playerID == next.DefenderID
	if (wasAttacker || wasDefender) && len(next.Table) > 0 {
		for _, tc := range next.Table {
			next.Discard = append(next.Discard, tc.Attack)
			if tc.Defense != nil {
				next.Discard = append(next.Discard, *tc.Defense)
			}
		}
		next.Table = []TableCard{}
		next.CanThrowIn = false
	}

	switch len(next.Players) {
	case 0:
		next.finish(&Outcome{LoserID: playerID, Forfeit: true})
		return next, nil
	case 1:
		next.finish(&Outcome{Winners: []string{next.Players[0].ID}, LoserID: playerID, Forfeit: true})
		return next, nil
	}
	if next.settle() {
		return next, nil
	}

	if len(next.Table) > 0 {
		return next, nil
	}
	// idx now points at the seat that followed the leaver.
	if wasAttacker {
		next.AttackerID = next.firstActive(idx, next.DefenderID)
	}
	if a := next.playerIndex(next.AttackerID); a >= 0 && next.IsOut(&next.Players[a]) {
		next.AttackerID = next.nextActive(a, "")
	}
	if d := next.Player(next.DefenderID); d == nil || next.DefenderID == next.AttackerID || next.IsOut(d) {
		next.DefenderID = next.nextActive(next.playerIndex(next.AttackerID), next.AttackerID)
	}
	next.Phase = PhaseAttacking
	next.CanThrowIn = false
	return next, nil
}

// firstActive is nextActive starting at from itself rather than the seat after it.
func (s *GameState) firstActive(from int, skipID string) string {
	n := len(s.Players)
	return s.nextActive((from-1+n)%n, skipID)
}
