package domain

// Rule functions never mutate their input. On success they return a new root;
// on failure they return a *Rejection and the caller keeps the old state.

// Attack places card on the table as a new uncovered attack.
//
// The main attacker may always attack; any other non-defender may add cards only while
// the throw-in window is open. Once the table is non-empty every new card must match a
// rank already on it, and the table may never hold as many cards as the defender's hand.
func Attack(s *GameState, playerID string, card Card) (*GameState, error) {
	if !s.Phase.InPlay() {
		return nil, reject(KindIllegalAction, ReasonNotInProgress, "match is %s", s.Phase)
	}
	p := s.Player(playerID)
	if p == nil {
		return nil, reject(KindNotFound, ReasonPlayerNotFound, "player %s not found", playerID)
	}
	if playerID == s.DefenderID {
		return nil, reject(KindIllegalAction, ReasonDefenderCannotAct, "defender cannot attack")
	}
	if playerID != s.AttackerID && !s.CanThrowIn {
		return nil, reject(KindIllegalAction, ReasonNotYourTurn, "not your turn to attack")
	}
	idx := indexOfCard(p.Hand, card)
	if idx < 0 {
		return nil, reject(KindIllegalAction, ReasonCardNotInHand, "card %s not in hand", card)
	}
	played := p.Hand[idx]
	if len(s.Table) > 0 && !TableRanks(s.Table)[played.Rank] {
		return nil, reject(KindIllegalAction, ReasonRankMismatch, "rank %s is not on the table", played.Rank)
	}
	defender := s.Player(s.DefenderID)
	if defender == nil || len(s.Table) >= len(defender.Hand) {
		return nil, reject(KindIllegalAction, ReasonDefenderHandLimit, "cannot attack with more cards than the defender holds")
	}

	next := s.Clone()
	np := next.Player(playerID)
	np.Hand = removeAt(np.Hand, idx)
	next.Table = append(next.Table, TableCard{Attack: played})
	next.Phase = PhaseDefending
	next.CanThrowIn = false
	return next, nil
}

// Defend covers the attack at tableIndex with card.
//
// When the last open attack is covered the trick stays on the table with the throw-in
// window open until someone calls Beat.
func Defend(s *GameState, playerID string, card Card, tableIndex int) (*GameState, error) {
	if s.Phase == PhaseWaiting || s.Phase == PhaseFinished {
		return nil, reject(KindIllegalAction, ReasonNotInProgress, "match is %s", s.Phase)
	}
	if playerID != s.DefenderID {
		if s.Player(playerID) == nil {
			return nil, reject(KindNotFound, ReasonPlayerNotFound, "player %s not found", playerID)
		}
		return nil, reject(KindIllegalAction, ReasonNotDefender, "not your turn to defend")
	}
	if s.Phase != PhaseDefending {
		return nil, reject(KindIllegalAction, ReasonNotDefending, "no attack to defend")
	}
	p := s.Player(playerID)
	idx := indexOfCard(p.Hand, card)
	if idx < 0 {
		return nil, reject(KindIllegalAction, ReasonCardNotInHand, "card %s not in hand", card)
	}
	if tableIndex < 0 || tableIndex >= len(s.Table) {
		return nil, reject(KindNotFound, ReasonSlotNotFound, "table slot %d does not exist", tableIndex)
	}
	slot := s.Table[tableIndex]
	if slot.Beaten() {
		return nil, reject(KindConflict, ReasonSlotDefended, "table card %d already defended", tableIndex)
	}
	played := p.Hand[idx]
	if !CanBeat(slot.Attack, played, s.TrumpSuit) {
		return nil, reject(KindIllegalAction, ReasonCannotBeat, "%s cannot beat %s", played, slot.Attack)
	}

	next := s.Clone()
	np := next.Player(playerID)
	np.Hand = removeAt(np.Hand, idx)
	next.Table[tableIndex].Defense = &played
	if AllBeaten(next.Table) {
		next.CanThrowIn = true
		next.Phase = PhaseAttacking
	}
	return next, nil
}

// Take makes the defender pick up every card on the table.
// After refilling, the seat after the defender attacks and the seat after that defends.
func Take(s *GameState, playerID string) (*GameState, error) {
	if !s.Phase.InPlay() {
		return nil, reject(KindIllegalAction, ReasonNotInProgress, "match is %s", s.Phase)
	}
	if playerID != s.DefenderID {
		if s.Player(playerID) == nil {
			return nil, reject(KindNotFound, ReasonPlayerNotFound, "player %s not found", playerID)
		}
		return nil, reject(KindIllegalAction, ReasonNotDefender, "only the defender can take")
	}
	if len(s.Table) == 0 {
		return nil, reject(KindIllegalAction, ReasonTableEmpty, "nothing to take")
	}

	next := s.Clone()
	defender := next.Player(playerID)
	for _, tc := range next.Table {
		defender.Hand = append(defender.Hand, tc.Attack)
		if tc.Defense != nil {
			defender.Hand = append(defender.Hand, *tc.Defense)
		}
	}
	next.Table = []TableCard{}
	next.CanThrowIn = false
	next.refill()

	if next.settle() {
		return next, nil
	}
	defIdx := next.playerIndex(playerID)
	attacker := next.nextActive(defIdx, playerID)
	next.AttackerID = attacker
	next.DefenderID = next.nextActive(next.playerIndex(attacker), attacker)
	next.Phase = PhaseAttacking
	return next, nil
}

// Beat closes a fully covered trick, moving it to the discard pile.
// After refilling, the defender becomes the attacker.
func Beat(s *GameState, playerID string) (*GameState, error) {
	if !s.Phase.InPlay() {
		return nil, reject(KindIllegalAction, ReasonNotInProgress, "match is %s", s.Phase)
	}
	if s.Player(playerID) == nil {
		return nil, reject(KindNotFound, ReasonPlayerNotFound, "player %s not found", playerID)
	}
	if playerID == s.DefenderID {
		return nil, reject(KindIllegalAction, ReasonDefenderCannotBeat, "defender cannot call beat")
	}
	if playerID != s.AttackerID && !s.CanThrowIn {
		return nil, reject(KindIllegalAction, ReasonNotYourTurn, "not your turn to call beat")
	}
	if len(s.Table) == 0 {
		return nil, reject(KindIllegalAction, ReasonTableEmpty, "nothing to beat")
	}
	if !AllBeaten(s.Table) {
		return nil, reject(KindIllegalAction, ReasonNotAllBeaten, "not all cards are beaten")
	}

	next := s.Clone()
	for _, tc := range next.Table {
		next.Discard = append(next.Discard, tc.Attack, *tc.Defense)
	}
	next.Table = []TableCard{}
	next.CanThrowIn = false
	next.refill()

	if next.settle() {
		return next, nil
	}
	oldDefender := next.DefenderID
	defIdx := next.playerIndex(oldDefender)
	attacker := oldDefender
	if next.IsOut(&next.Players[defIdx]) {
		attacker = next.nextActive(defIdx, oldDefender)
	}
	next.AttackerID = attacker
	next.DefenderID = next.nextActive(next.playerIndex(attacker), attacker)
	next.Phase = PhaseAttacking
	return next, nil
}

// refill tops hands up to HandSize starting from the attacker in seat order, defender last.
func (s *GameState) refill() {
	n := len(s.Players)
	start := s.playerIndex(s.AttackerID)
	def := s.playerIndex(s.DefenderID)
	if start < 0 {
		start = 0
	}
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if idx != def {
			order = append(order, idx)
		}
	}
	if def >= 0 {
		order = append(order, def)
	}
	for _, idx := range order {
		p := &s.Players[idx]
		for len(p.Hand) < HandSize && len(s.DrawPile) > 0 {
			p.Hand = append(p.Hand, s.DrawPile[0])
			s.DrawPile = s.DrawPile[1:]
		}
	}
}

// nextActive returns the first seat after index from that still holds or can draw cards,
// skipping skipID. It returns "" when no such seat exists.
func (s *GameState) nextActive(from int, skipID string) string {
	n := len(s.Players)
	for k := 1; k <= n; k++ {
		p := &s.Players[(from+k)%n]
		if p.ID == skipID {
			continue
		}
		if !s.IsOut(p) {
			return p.ID
		}
	}
	return ""
}

// settle applies terminal detection and reports whether the match is now finished.
//
// Detection only runs once the draw pile is empty. A single player still holding cards is
// the loser and everyone else wins; nobody holding cards is a draw.
func (s *GameState) settle() bool {
	if len(s.DrawPile) > 0 {
		return false
	}
	var holders []string
	for _, p := range s.Players {
		if len(p.Hand) > 0 {
			holders = append(holders, p.ID)
		}
	}
	switch len(holders) {
	case 0:
		s.finish(&Outcome{Draw: true})
		return true
	case 1:
		o := &Outcome{LoserID: holders[0]}
		for _, p := range s.Players {
			if p.ID != holders[0] {
				o.Winners = append(o.Winners, p.ID)
			}
		}
		s.finish(o)
		return true
	}
	return false
}

func (s *GameState) finish(o *Outcome) {
	s.Phase = PhaseFinished
	s.CanThrowIn = false
	s.Outcome = o
}
