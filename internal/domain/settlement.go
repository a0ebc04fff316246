package domain

// Settlement returns the coin delta per player id for a finished match.
// The loser pays the stake to every winner. Draws and unfinished matches settle nothing.
func Settlement(o *Outcome, stake int64) map[string]int64 {
	deltas := make(map[string]int64)
	if o == nil || o.Draw || o.LoserID == "" || stake <= 0 || len(o.Winners) == 0 {
		return deltas
	}
	for _, w := range o.Winners {
		deltas[w] += stake
	}
	deltas[o.LoserID] -= stake * int64(len(o.Winners))
	return deltas
}

// ApplySettlement returns a copy of s with coin deltas applied to seated players.
func ApplySettlement(s *GameState, deltas map[string]int64) *GameState {
	next := s.Clone()
	for i := range next.Players {
		next.Players[i].Coins += deltas[next.Players[i].ID]
	}
	return next
}
