package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"durak/internal/bot"
	"durak/internal/domain"
	"durak/internal/ports"
)

var tracer = otel.Tracer("durak/app")

// errStale is returned to scheduled bot moves whose snapshot is no longer current.
var errStale = errors.New("room state changed since snapshot")

// Result is returned by a successful Submit.
type Result struct {
	Seq   uint64
	State *domain.StateView // the actor's view; nil before the deal
}

// RoomInfo is a lock-free summary used for listing and matchmaking.
type RoomInfo struct {
	ID         string       `json:"id"`
	Phase      domain.Phase `json:"phase"`
	Seats      int          `json:"seats"`
	Humans     int          `json:"humans"`
	MaxPlayers int          `json:"max_players"`
	DeckSize   int          `json:"deck_size"`
	Stake      int64        `json:"stake"`
	Closed     bool         `json:"closed"`
}

// Open reports whether a new player could still join.
func (i RoomInfo) Open() bool {
	return !i.Closed && i.Phase == domain.PhaseWaiting && i.Seats < i.MaxPlayers
}

// RoomDeps are the collaborators of a room. Only Logger is required.
type RoomDeps struct {
	Logger  runtime.Logger
	Rand    *rand.Rand
	Economy ports.EconomyPort
	Results ports.ResultsPort
	Bots    *bot.Pool
	OnClose func(roomID string)
	Now     func() time.Time
}

// Room owns one match. A single goroutine runs every job against the room's state, so
// actions are applied strictly one at a time in the order they are accepted.
type Room struct {
	id    string
	cfg   RoomConfig
	deps  RoomDeps
	log   runtime.Logger
	svc   *Service
	sched *Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	jobs     chan func()
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once

	info atomic.Pointer[RoomInfo]

	// Owned by the loop goroutine.
	rng         *rand.Rand
	seats       []domain.Seat
	roster      []string
	game        *domain.GameState
	subs        map[string]Subscriber
	agents      map[string]*bot.Agent
	bots        map[string]bool
	seq         uint64
	closed      bool
	closeReason string
	pendingMove CancelFunc
	population  []CancelFunc
}

// NewRoom validates cfg and starts the room's goroutine.
func NewRoom(id string, cfg RoomConfig, deps RoomDeps) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("room %s: %w", id, err)
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("room %s: logger is required", id)
	}
	if deps.Rand == nil {
		deps.Rand = newRoomRand()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Bots == nil {
		deps.Bots = bot.NewPool(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Room{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		log:    deps.Logger.WithField("room_id", id),
		svc:    NewService(rand.New(rand.NewSource(deps.Rand.Int63()))),
		sched:  NewScheduler(ctx),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan func()),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		rng:    deps.Rand,
		subs:   make(map[string]Subscriber),
		agents: make(map[string]*bot.Agent),
		bots:   make(map[string]bool),
	}
	r.publishInfo()
	r.startPopulation()
	go r.loop()
	return r, nil
}

// ID returns the room id.
func (r *Room) ID() string { return r.id }

// Config returns the room configuration.
func (r *Room) Config() RoomConfig { return r.cfg }

// Info returns the latest committed summary without entering the room.
func (r *Room) Info() RoomInfo { return *r.info.Load() }

// Done is closed once the room has been torn down.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case job := <-r.jobs:
			job()
		case <-r.quit:
			r.teardown()
			return
		}
	}
}

// exec runs fn on the room goroutine and waits for it to finish.
func (r *Room) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case r.jobs <- job:
	case <-r.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Submit is the only way to change a room. Rejections leave the room untouched and are
// returned to the caller only; successful actions are broadcast to every subscriber.
func (r *Room) Submit(ctx context.Context, action Action) (Result, error) {
	return r.submit(ctx, action, 0)
}

// submit applies action; a non-zero expectSeq refuses to act on a newer state.
func (r *Room) submit(ctx context.Context, action Action, expectSeq uint64) (Result, error) {
	ctx, span := tracer.Start(ctx, "Room.Submit", trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("action.kind", string(action.Kind())),
		attribute.String("player.id", action.Actor()),
	))
	defer span.End()

	var (
		res Result
		err error
	)
	execErr := r.exec(ctx, func() {
		if expectSeq != 0 && r.seq != expectSeq {
			err = errStale
			return
		}
		res, err = r.handle(ctx, action)
	})
	if execErr != nil {
		err = execErr
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Int64("room.seq", int64(res.Seq)))
	return res, nil
}

// Snapshot returns the current room as seen by viewerID.
func (r *Room) Snapshot(ctx context.Context, viewerID string) (Update, error) {
	var u Update
	err := r.exec(ctx, func() {
		u = r.update(nil, viewerID)
	})
	return u, err
}

// Subscribe registers sub under key and immediately delivers the current snapshot to it.
func (r *Room) Subscribe(ctx context.Context, key string, sub Subscriber) error {
	var err error
	execErr := r.exec(ctx, func() {
		if r.closed {
			err = ErrRoomClosed
			return
		}
		r.subs[key] = sub
		sub.Deliver(r.update(nil, sub.ViewerID()))
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// Unsubscribe removes the subscriber registered under key.
func (r *Room) Unsubscribe(ctx context.Context, key string) error {
	return r.exec(ctx, func() {
		delete(r.subs, key)
	})
}

// Close tears the room down and waits for its goroutine to exit.
// It must not be called from a Subscriber.
func (r *Room) Close() {
	r.signalQuit()
	<-r.done
}

func (r *Room) signalQuit() {
	r.quitOnce.Do(func() { close(r.quit) })
}

// shutdown marks the room closed from inside the loop; teardown runs after the current job.
func (r *Room) shutdown(reason string) {
	if r.closed {
		return
	}
	r.closed = true
	r.closeReason = reason
	r.signalQuit()
}

func (r *Room) teardown() {
	r.closed = true
	r.sched.Stop()
	r.cancel()
	r.pendingMove = nil
	r.population = nil

	reason := r.closeReason
	if reason == "" {
		reason = "closed"
	}
	r.seq++
	r.broadcast([]Event{{Kind: EventRoomClosed, Payload: RoomClosedPayload{Reason: reason}}})
	r.subs = map[string]Subscriber{}
	r.publishInfo()
	r.log.Info("teardown: room closed (%s) at seq %d", reason, r.seq)
	if r.deps.OnClose != nil {
		r.deps.OnClose(r.id)
	}
}

func (r *Room) handle(ctx context.Context, action Action) (Result, error) {
	if r.closed {
		return Result{}, ErrRoomClosed
	}
	switch a := action.(type) {
	case Join:
		return r.join(ctx, a)
	case Leave:
		return r.leave(ctx, a)
	case Attack, Defend, Take, Beat:
		return r.play(ctx, action)
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

func (r *Room) join(ctx context.Context, a Join) (Result, error) {
	if r.seatIndex(a.PlayerID) >= 0 {
		return Result{}, ErrAlreadySeated
	}
	if r.game != nil {
		if r.game.Phase == domain.PhaseFinished {
			return Result{}, ErrMatchFinished
		}
		return Result{}, ErrMatchStarted
	}
	if len(r.seats) >= r.cfg.MaxPlayers {
		return Result{}, ErrRoomFull
	}

	coins := a.Coins
	if !a.IsBot && r.deps.Economy != nil {
		balance, err := r.deps.Economy.GetBalance(ctx, a.PlayerID)
		if err != nil {
			return Result{}, fmt.Errorf("join: balance for %s: %w", a.PlayerID, err)
		}
		coins = balance
		if need := r.cfg.Stake * int64(r.cfg.MaxPlayers-1); coins < need {
			return Result{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientCoins, coins, need)
		}
	}

	username := a.Username
	if username == "" {
		username = a.PlayerID
	}
	r.seats = append(r.seats, domain.Seat{ID: a.PlayerID, Username: username, Coins: coins, IsBot: a.IsBot})
	if a.IsBot {
		r.addAgent(a.PlayerID, username)
	}
	r.log.Info("join: %s (%s) took seat %d, bot=%v", a.PlayerID, username, len(r.seats)-1, a.IsBot)

	events := []Event{{
		Kind:    EventPlayerJoined,
		Payload: PlayerJoinedPayload{UserID: a.PlayerID, Username: username, Seat: len(r.seats) - 1, IsBot: a.IsBot},
	}}
	next := r.game
	if len(r.seats) >= r.cfg.MinPlayers {
		game, started, err := r.svc.StartGame(r.seats, r.cfg.DeckSize, r.cfg.Stake)
		if err != nil {
			// The seat stays taken; the deal is retried on the next join.
			r.log.Error("join: failed to start game with %d seats: %v", len(r.seats), err)
		} else {
			for _, s := range r.seats {
				if s.IsBot {
					game = r.svc.BiasBotHand(game, s.ID, r.cfg.Bots.BiasSwaps)
				}
			}
			r.cancelPopulation()
			r.roster = make([]string, len(r.seats))
			for i, s := range r.seats {
				r.roster[i] = s.ID
			}
			next = game
			events = append(events, started...)
			r.log.Info("join: game started, trump %s, %s attacks %s", game.TrumpCard, game.AttackerID, game.DefenderID)
		}
	}
	if err := r.commit(next, events); err != nil {
		return Result{}, err
	}
	return r.result(a.PlayerID), nil
}

func (r *Room) leave(ctx context.Context, a Leave) (Result, error) {
	idx := r.seatIndex(a.PlayerID)
	if idx < 0 {
		return Result{}, ErrNotSeated
	}

	next := r.game
	events := []Event{{Kind: EventPlayerLeft, Payload: PlayerLeftPayload{UserID: a.PlayerID}}}
	var deltas map[string]int64
	if r.game != nil && r.game.Phase.InPlay() {
		applied, evs, err := r.svc.Apply(r.game, a)
		if err != nil {
			r.log.Warn("leave: %s could not leave the match: %v", a.PlayerID, err)
			return Result{}, err
		}
		next, events = applied, evs
		if next.Phase == domain.PhaseFinished {
			var ended Event
			next, deltas, ended = r.svc.Settle(next)
			events = append(events, ended)
		}
	}

	r.seats = append(r.seats[:idx:idx], r.seats[idx+1:]...)
	delete(r.agents, a.PlayerID)
	r.log.Info("leave: %s left (%d seats remain)", a.PlayerID, len(r.seats))

	finished := next != nil && next.Phase == domain.PhaseFinished && r.game.Phase != domain.PhaseFinished
	if err := r.commit(next, events); err != nil {
		return Result{}, err
	}
	if finished {
		r.onFinished(ctx, deltas)
	}
	r.closeIfEmpty()
	return Result{Seq: r.seq}, nil
}

func (r *Room) play(ctx context.Context, action Action) (Result, error) {
	if r.game == nil {
		return Result{}, domain.NewRejection(domain.KindIllegalAction, domain.ReasonNotInProgress, "match has not started")
	}
	if r.game.Phase == domain.PhaseFinished {
		return Result{}, ErrMatchFinished
	}
	next, events, err := r.svc.Apply(r.game, action)
	if err != nil {
		seat := r.seatIndex(action.Actor())
		r.log.Warn("play: User %s (seat %d) failed to %s: %v", action.Actor(), seat, action.Kind(), err)
		return Result{}, err
	}

	var deltas map[string]int64
	finished := next.Phase == domain.PhaseFinished
	if finished {
		var ended Event
		next, deltas, ended = r.svc.Settle(next)
		events = append(events, ended)
	}
	if err := r.commit(next, events); err != nil {
		return Result{}, err
	}
	if finished {
		r.onFinished(ctx, deltas)
	}
	return r.result(action.Actor()), nil
}

// commit persists next as the room state, then broadcasts and re-arms bots.
// A broken invariant is fatal: the room is torn down and nothing is broadcast.
func (r *Room) commit(next *domain.GameState, events []Event) error {
	if next != nil {
		if err := domain.CheckInvariants(next); err != nil {
			r.log.WithFields(map[string]interface{}{
				"seq":      r.seq,
				"phase":    next.Phase,
				"attacker": next.AttackerID,
				"defender": next.DefenderID,
				"cards":    next.CardCount(),
			}).Error("commit: invariant violated, tearing room down: %v", err)
			r.shutdown("invariant_violation")
			return err
		}
	}
	r.game = next
	r.seq++
	r.publishInfo()
	r.broadcast(events)
	r.scheduleBotMove()
	return nil
}

func (r *Room) broadcast(events []Event) {
	for _, sub := range r.subs {
		sub.Deliver(r.update(events, sub.ViewerID()))
	}
}

func (r *Room) update(events []Event, viewerID string) Update {
	u := Update{
		RoomID: r.id,
		Seq:    r.seq,
		Events: events,
		Seats:  make([]SeatView, len(r.seats)),
	}
	for i, s := range r.seats {
		u.Seats[i] = SeatView{UserID: s.ID, Username: s.Username, Coins: s.Coins, IsBot: s.IsBot}
	}
	if r.game != nil {
		v := r.game.View(viewerID, r.cfg.RevealHands)
		u.State = &v
	}
	return u
}

func (r *Room) result(viewerID string) Result {
	res := Result{Seq: r.seq}
	if r.game != nil {
		v := r.game.View(viewerID, r.cfg.RevealHands)
		res.State = &v
	}
	return res
}

func (r *Room) publishInfo() {
	info := RoomInfo{
		ID:         r.id,
		Phase:      domain.PhaseWaiting,
		Seats:      len(r.seats),
		Humans:     r.humanCount(),
		MaxPlayers: r.cfg.MaxPlayers,
		DeckSize:   r.cfg.DeckSize,
		Stake:      r.cfg.Stake,
		Closed:     r.closed,
	}
	if r.game != nil {
		info.Phase = r.game.Phase
	}
	r.info.Store(&info)
}

// onFinished settles the stake and records the result, then schedules the room's teardown.
func (r *Room) onFinished(ctx context.Context, deltas map[string]int64) {
	if r.pendingMove != nil {
		r.pendingMove()
		r.pendingMove = nil
	}
	out := r.game.Outcome
	r.log.Info("onFinished: match over, loser=%q winners=%v draw=%v forfeit=%v", out.LoserID, out.Winners, out.Draw, out.Forfeit)

	ioCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if r.deps.Economy != nil {
		var updates []ports.WalletUpdate
		ids := make([]string, 0, len(deltas))
		for id := range deltas {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if r.bots[id] || deltas[id] == 0 {
				continue
			}
			updates = append(updates, ports.WalletUpdate{
				UserID: id,
				Amount: deltas[id],
				Metadata: map[string]interface{}{
					"room_id": r.id,
					"reason":  "durak_settlement",
				},
			})
		}
		if len(updates) > 0 {
			if err := r.deps.Economy.UpdateBalances(ioCtx, updates); err != nil {
				r.log.Error("onFinished: failed to settle %d wallet updates: %v", len(updates), err)
			}
		}
	}

	if r.deps.Results != nil {
		rec := ports.MatchRecord{
			RoomID:     r.id,
			DeckSize:   r.game.DeckSize,
			Stake:      r.game.Stake,
			Players:    append([]string(nil), r.roster...),
			Bots:       r.botRoster(),
			Winners:    append([]string(nil), out.Winners...),
			LoserID:    out.LoserID,
			Draw:       out.Draw,
			Forfeit:    out.Forfeit,
			FinishedAt: r.deps.Now().UTC(),
		}
		if err := r.deps.Results.RecordMatch(ioCtx, rec); err != nil {
			r.log.Error("onFinished: failed to record match: %v", err)
		}
	}

	if r.cfg.FinishedLinger <= 0 {
		r.shutdown("finished")
		return
	}
	r.sched.After(r.cfg.FinishedLinger, func(ctx context.Context) {
		_ = r.exec(ctx, func() { r.shutdown("finished") })
	})
}

func (r *Room) botRoster() []string {
	var ids []string
	for _, id := range r.roster {
		if r.bots[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Room) closeIfEmpty() {
	if len(r.seats) == 0 {
		r.shutdown("empty")
		return
	}
	if r.humanCount() == 0 && !r.cfg.KeepAliveWithoutHumans {
		r.shutdown("no_humans")
	}
}

func (r *Room) seatIndex(id string) int {
	for i, s := range r.seats {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) humanCount() int {
	n := 0
	for _, s := range r.seats {
		if !s.IsBot {
			n++
		}
	}
	return n
}
