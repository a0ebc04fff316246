package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"durak/internal/app"
	"durak/internal/bot"
	"durak/internal/config"
	"durak/internal/domain"
	"durak/internal/ports"
	"durak/internal/ports/wire"
)

const (
	tickRate = 10
	// abandonTicks is how long a match may run with nobody connected before absent players forfeit.
	abandonTicks = 60 * tickRate
)

// MatchState holds the authoritative runtime state for the Nakama match handler.
// Game state lives in Room; the match only maps presences onto it.
type MatchState struct {
	Room      *app.Room
	Tier      string
	Presences map[string]runtime.Presence // UserId -> Presence for targeted messaging
	IdleTicks int64                       // consecutive ticks with no presence connected

	outbox *outbox
	label  string
}

type pendingUpdate struct {
	userID string
	update app.Update
}

// outbox buffers room updates until the next match callback can dispatch them.
// The dispatcher is only valid inside Nakama's callbacks, while the room delivers from its own goroutine.
type outbox struct {
	mu      sync.Mutex
	pending []pendingUpdate
}

func (o *outbox) push(userID string, u app.Update) {
	o.mu.Lock()
	o.pending = append(o.pending, pendingUpdate{userID: userID, update: u})
	o.mu.Unlock()
}

func (o *outbox) drain() []pendingUpdate {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	return out
}

// presenceSub routes one player's updates into the match outbox.
type presenceSub struct {
	userID string
	box    *outbox
}

func (s presenceSub) ViewerID() string     { return s.userID }
func (s presenceSub) Deliver(u app.Update) { s.box.push(s.userID, u) }

type matchHandler struct {
	games   config.GameConfig
	bots    *bot.Pool
	economy ports.EconomyPort
	results ports.ResultsPort
}

func newMatchHandler(games config.GameConfig, bots *bot.Pool, economy ports.EconomyPort, results ports.ResultsPort) *matchHandler {
	return &matchHandler{games: games, bots: bots, economy: economy, results: results}
}

// MatchInit is called when the match is created. params may carry a "tier".
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	tier, _ := params["tier"].(string)
	if tier == "" {
		tier = mh.games.DefaultTier
	}
	if !mh.games.HasTier(tier) {
		logger.Error("MatchInit: unknown tier %q", tier)
		return nil, 0, ""
	}

	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	if matchID == "" {
		matchID = uuid.NewString()
	}
	room, err := app.NewRoom(matchID, mh.games.RoomConfig(tier), app.RoomDeps{
		Logger:  logger,
		Economy: mh.economy,
		Results: mh.results,
		Bots:    mh.bots,
	})
	if err != nil {
		logger.Error("MatchInit: Failed to create room: %v", err)
		return nil, 0, ""
	}

	state := &MatchState{
		Room:      room,
		Tier:      tier,
		Presences: make(map[string]runtime.Presence),
		outbox:    &outbox{},
	}
	label, err := state.buildLabel()
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		room.Close()
		return nil, 0, ""
	}
	state.label = label
	logger.Debug("MatchInit: room %s created for tier %s", matchID, tier)
	return state, tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	info := matchState.Room.Info()
	if info.Closed {
		return state, false, "Match closed"
	}
	if info.Open() || matchState.seated(ctx, presence.GetUserId()) {
		return state, true, ""
	}
	return state, false, "Match full"
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	var rejected []runtime.Presence
	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p
		if err := matchState.Room.Subscribe(ctx, userID, presenceSub{userID: userID, box: matchState.outbox}); err != nil {
			logger.Warn("MatchJoin: User %s could not subscribe: %v", userID, err)
			continue
		}

		_, err := matchState.Room.Submit(ctx, app.Join{PlayerID: userID, Username: p.GetUsername()})
		switch {
		case err == nil:
			logger.Debug("MatchJoin: User %s took a seat.", userID)
		case errors.Is(err, app.ErrAlreadySeated):
			logger.Debug("MatchJoin: User %s reconnected.", userID)
		default:
			logger.Warn("MatchJoin: User %s failed to take a seat: %v", userID, err)
			mh.flush(matchState, dispatcher, logger)
			mh.sendRejected(matchState, dispatcher, logger, userID, err)
			_ = matchState.Room.Unsubscribe(ctx, userID)
			delete(matchState.Presences, userID)
			rejected = append(rejected, p)
		}
	}
	if len(rejected) > 0 {
		if err := dispatcher.MatchKick(rejected); err != nil {
			logger.Warn("MatchJoin: Failed to kick %d presences: %v", len(rejected), err)
		}
	}
	if len(matchState.Presences) > 0 {
		matchState.IdleTicks = 0
	}

	mh.flush(matchState, dispatcher, logger)
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players disconnect. A disconnect keeps the seat once cards
// are dealt; before that the seat is released.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		delete(matchState.Presences, userID)
		if err := matchState.Room.Unsubscribe(ctx, userID); err != nil && !errors.Is(err, app.ErrRoomClosed) {
			logger.Warn("MatchLeave: Failed to unsubscribe %s: %v", userID, err)
		}
		if matchState.Room.Info().Phase != domain.PhaseWaiting {
			logger.Debug("MatchLeave: User %s disconnected, seat kept.", userID)
			continue
		}
		_, err := matchState.Room.Submit(ctx, app.Leave{PlayerID: userID})
		if err != nil && !errors.Is(err, app.ErrNotSeated) && !errors.Is(err, app.ErrRoomClosed) {
			logger.Warn("MatchLeave: User %s failed to release seat: %v", userID, err)
		}
	}

	mh.flush(matchState, dispatcher, logger)
	if mh.closed(matchState) {
		logger.Info("MatchLeave: Terminating match, room closed.")
		return nil
	}
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	if len(matchState.Presences) == 0 {
		matchState.IdleTicks++
		if matchState.IdleTicks >= abandonTicks {
			logger.Info("MatchLoop: Nobody connected for %d ticks, abandoning match.", matchState.IdleTicks)
			mh.abandon(ctx, matchState, logger)
			matchState.IdleTicks = 0
		}
	}

	mh.flush(matchState, dispatcher, logger)
	if mh.closed(matchState) {
		logger.Info("MatchLoop: Terminating match, room closed.")
		return nil
	}
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	userID := msg.GetUserId()
	kind, ok := opActions[msg.GetOpCode()]
	if !ok {
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		mh.sendRejected(state, dispatcher, logger, userID, wire.ErrMalformed)
		return
	}

	action, err := wire.DecodeAction(userID, kind, msg.GetData())
	if err == nil {
		_, err = state.Room.Submit(ctx, action)
	}
	mh.flush(state, dispatcher, logger)
	if err != nil {
		logger.Warn("handleMessage: User %s %s failed: %v", userID, kind, err)
		mh.sendRejected(state, dispatcher, logger, userID, err)
	}
}

// abandon forfeits every human seat whose player is not connected. The room closes itself once no human is seated.
func (mh *matchHandler) abandon(ctx context.Context, state *MatchState, logger runtime.Logger) {
	snap, err := state.Room.Snapshot(ctx, "")
	if err != nil {
		return
	}
	for _, seat := range snap.Seats {
		if seat.IsBot {
			continue
		}
		if _, connected := state.Presences[seat.UserID]; connected {
			continue
		}
		if _, err := state.Room.Submit(ctx, app.Leave{PlayerID: seat.UserID}); err != nil && !errors.Is(err, app.ErrRoomClosed) {
			logger.Warn("abandon: Failed to remove %s: %v", seat.UserID, err)
		}
	}
	if state.Room.Info().Humans == 0 {
		state.Room.Close()
	}
}

// closed reports whether the room has finished tearing down.
func (mh *matchHandler) closed(state *MatchState) bool {
	select {
	case <-state.Room.Done():
		return true
	default:
		return false
	}
}

// flush sends buffered room updates, each to the presence it was rendered for.
func (mh *matchHandler) flush(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	for _, p := range state.outbox.drain() {
		presence, ok := state.Presences[p.userID]
		if !ok {
			continue
		}
		data, err := wire.EncodeUpdate(p.update)
		if err != nil {
			logger.Error("flush: Failed to encode update for %s: %v", p.userID, err)
			continue
		}
		if err := dispatcher.BroadcastMessage(OpUpdate, data, []runtime.Presence{presence}, nil, true); err != nil {
			logger.Warn("flush: Failed to send update to %s: %v", p.userID, err)
		}
	}
}

// sendRejected tells only the submitting user why their action failed.
func (mh *matchHandler) sendRejected(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, cause error) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send rejection to %s: Presence not found", userID)
		return
	}
	data, err := wire.EncodeRejected(cause)
	if err != nil {
		logger.Error("Failed to marshal rejection: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpRejected, data, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Warn("Failed to send rejection to %s: %v", userID, err)
	}
}

func (s *MatchState) seated(ctx context.Context, userID string) bool {
	snap, err := s.Room.Snapshot(ctx, userID)
	if err != nil {
		return false
	}
	for _, seat := range snap.Seats {
		if seat.UserID == userID {
			return true
		}
	}
	return false
}

// buildLabel renders the listing label used by quick match queries.
func (s *MatchState) buildLabel() (string, error) {
	info := s.Room.Info()
	open := 0
	if info.Open() {
		open = info.MaxPlayers - info.Seats
	}
	label, err := structpb.NewStruct(map[string]interface{}{
		"game":      gameLabel,
		"tier":      s.Tier,
		"phase":     string(info.Phase),
		"open":      open,
		"deck_size": info.DeckSize,
		"stake":     info.Stake,
	})
	if err != nil {
		return "", err
	}
	data, err := protojson.Marshal(label)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := state.buildLabel()
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	if matchState, ok := state.(*MatchState); ok {
		matchState.Room.Close()
		mh.flush(matchState, dispatcher, logger)
	}
	return state
}

// MatchSignal answers any signal with the room summary.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}
	out, err := json.Marshal(matchState.Room.Info())
	if err != nil {
		logger.Error("MatchSignal: Failed to marshal room info: %v", err)
		return state, ""
	}
	return state, string(out)
}
