package app

import (
	"context"
	"errors"
	"math/rand"

	"durak/internal/bot"
	"durak/internal/domain"
)

// startPopulation arms the bot join loop and the leave sweep for a waiting room.
func (r *Room) startPopulation() {
	if !r.cfg.Bots.Enabled {
		return
	}
	r.scheduleBotJoin()
	sweep := r.cfg.Bots.Timing.LeaveAfter.Draw(r.rng)
	r.population = append(r.population, r.sched.After(sweep, r.sweepBots))
}

func (r *Room) cancelPopulation() {
	for _, cancel := range r.population {
		cancel()
	}
	r.population = nil
}

func (r *Room) scheduleBotJoin() {
	delay := r.cfg.Bots.Timing.Join.Draw(r.rng)
	r.population = append(r.population, r.sched.After(delay, r.botJoinTick))
}

// botJoinTick seats one bot when the room has a human waiting, then re-arms while seats remain.
func (r *Room) botJoinTick(ctx context.Context) {
	var join *Join
	err := r.exec(ctx, func() {
		if r.closed || r.game != nil || len(r.seats) >= r.cfg.MaxPlayers {
			return
		}
		if r.humanCount() == 0 && !r.cfg.KeepAliveWithoutHumans {
			r.scheduleBotJoin()
			return
		}
		identity := r.deps.Bots.Pick(r.rng, r.occupied())
		join = &Join{PlayerID: identity.UserID, Username: identity.Name(), IsBot: true}
	})
	if err != nil || join == nil {
		return
	}

	if _, err := r.Submit(ctx, *join); err != nil {
		if !errors.Is(err, ErrRoomClosed) {
			r.log.Warn("botJoinTick: bot %s failed to join: %v", join.PlayerID, err)
		}
	}
	_ = r.exec(ctx, func() {
		if !r.closed && r.game == nil && len(r.seats) < r.cfg.MaxPlayers {
			r.scheduleBotJoin()
		}
	})
}

// sweepBots removes seated bots from a room that never filled, one at a time.
func (r *Room) sweepBots(ctx context.Context) {
	_ = r.exec(ctx, func() {
		if r.closed || r.game != nil {
			return
		}
		for _, s := range r.seats {
			if !s.IsBot {
				continue
			}
			id := s.ID
			delay := r.cfg.Bots.Timing.LeaveStagger.Draw(r.rng)
			r.population = append(r.population, r.sched.After(delay, func(ctx context.Context) {
				if _, err := r.Submit(ctx, Leave{PlayerID: id}); err != nil && !errors.Is(err, ErrRoomClosed) {
					r.log.Debug("sweepBots: bot %s leave skipped: %v", id, err)
				}
			}))
		}
	})
}

func (r *Room) occupied() map[string]bool {
	ids := make(map[string]bool, len(r.seats))
	for _, s := range r.seats {
		ids[s.ID] = true
	}
	return ids
}

func (r *Room) addAgent(id, name string) {
	level := r.cfg.Bots.DefaultLevel
	if identity, ok := r.deps.Bots.Get(id); ok && identity.Difficulty != "" {
		parsed, err := bot.ParseLevel(identity.Difficulty)
		if err != nil {
			r.log.Warn("addAgent: bot %s: %v, using default level", id, err)
		} else {
			level = parsed
		}
	}
	brain, err := bot.NewBrain(level, rand.New(rand.NewSource(r.rng.Int63())), r.cfg.Bots.Tuning)
	if err != nil {
		r.log.Error("addAgent: bot %s: %v", id, err)
		brain = &bot.GoodBot{Tuning: r.cfg.Bots.Tuning}
	}
	r.agents[id] = &bot.Agent{ID: id, Name: name, Strategy: brain}
	r.bots[id] = true
}

// activeSeat is the player the match is waiting on.
func activeSeat(g *domain.GameState) string {
	if g.Phase == domain.PhaseDefending {
		return g.DefenderID
	}
	return g.AttackerID
}

// scheduleBotMove keeps at most one pending bot move, for the seat the match is waiting on.
func (r *Room) scheduleBotMove() {
	if r.pendingMove != nil {
		r.pendingMove()
		r.pendingMove = nil
	}
	if r.closed || r.game == nil || !r.game.Phase.InPlay() {
		return
	}
	agent, ok := r.agents[activeSeat(r.game)]
	if !ok {
		return
	}
	seq := r.seq
	delay := r.cfg.Bots.Timing.Move.Draw(r.rng)
	r.pendingMove = r.sched.After(delay, func(ctx context.Context) {
		r.runBotMove(ctx, agent, seq)
	})
}

// runBotMove decides outside the room goroutine and submits like any other player.
func (r *Room) runBotMove(ctx context.Context, agent *bot.Agent, seq uint64) {
	var (
		view  domain.StateView
		stale bool
	)
	if err := r.exec(ctx, func() {
		if r.closed || r.seq != seq || r.game == nil {
			stale = true
			return
		}
		view = r.game.View(agent.ID, false)
	}); err != nil || stale {
		return
	}

	move, err := agent.Play(view)
	if err != nil {
		r.log.Warn("runBotMove: bot %s failed to decide: %v", agent.ID, err)
	}
	if move.Kind == bot.MoveNone {
		move = agent.Fallback(view)
	}
	if move.Kind == bot.MoveNone {
		r.log.Warn("runBotMove: bot %s has no move in phase %s", agent.ID, view.Phase)
		return
	}

	_, err = r.submit(ctx, moveToAction(agent.ID, move), seq)
	if err == nil || errors.Is(err, errStale) || errors.Is(err, ErrRoomClosed) || ctx.Err() != nil {
		return
	}
	r.log.Warn("runBotMove: bot %s %s rejected: %v", agent.ID, move.Kind, err)

	fallback := agent.Fallback(view)
	if fallback.Kind == bot.MoveNone || fallback.Kind == move.Kind {
		return
	}
	if _, err := r.submit(ctx, moveToAction(agent.ID, fallback), seq); err != nil && !errors.Is(err, errStale) {
		r.log.Warn("runBotMove: bot %s fallback %s rejected: %v", agent.ID, fallback.Kind, err)
	}
}

func moveToAction(playerID string, m bot.Move) Action {
	switch m.Kind {
	case bot.MoveAttack:
		return Attack{PlayerID: playerID, Card: m.Card}
	case bot.MoveDefend:
		return Defend{PlayerID: playerID, Card: m.Card, TableIndex: m.TableIndex}
	case bot.MoveTake:
		return Take{PlayerID: playerID}
	default:
		return Beat{PlayerID: playerID}
	}
}
