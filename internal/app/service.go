package app

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"durak/internal/domain"
)

// Service contains Durak use-cases operating on domain state.
// It is not safe for concurrent use; each Room owns one.
type Service struct {
	rng *rand.Rand
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng}
}

var (
	ErrRoomClosed        = errors.New("room closed")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadySeated     = errors.New("player already seated")
	ErrNotSeated         = errors.New("player not seated")
	ErrMatchStarted      = errors.New("match already started")
	ErrMatchFinished     = errors.New("match finished")
	ErrInsufficientCoins = errors.New("not enough coins for the stake")
	ErrUnknownAction     = errors.New("unknown action")
)

// StartGame shuffles a fresh deck and deals it to seats in order.
func (s *Service) StartGame(seats []domain.Seat, deckSize int, stake int64) (*domain.GameState, []Event, error) {
	if len(seats) < MinPlayersToStartGame {
		return nil, nil, domain.ErrTooFewPlayers
	}
	deck, err := domain.NewDeck(deckSize)
	if err != nil {
		return nil, nil, err
	}
	game, err := domain.NewGame(seats, domain.ShuffleDeck(deck, s.rng), stake)
	if err != nil {
		return nil, nil, err
	}
	return game, []Event{{
		Kind: EventGameStarted,
		Payload: GameStartedPayload{
			AttackerID: game.AttackerID,
			DefenderID: game.DefenderID,
			TrumpCard:  game.TrumpCard,
		},
	}}, nil
}

// Apply runs a play action against the rule engine. The input state is never modified.
func (s *Service) Apply(game *domain.GameState, action Action) (*domain.GameState, []Event, error) {
	var (
		next *domain.GameState
		err  error
	)
	switch a := action.(type) {
	case Attack:
		next, err = domain.Attack(game, a.PlayerID, a.Card)
	case Defend:
		next, err = domain.Defend(game, a.PlayerID, a.Card, a.TableIndex)
	case Take:
		next, err = domain.Take(game, a.PlayerID)
	case Beat:
		next, err = domain.Beat(game, a.PlayerID)
	case Leave:
		next, err = domain.RemovePlayer(game, a.PlayerID)
		if err != nil {
			return nil, nil, err
		}
		return next, []Event{{Kind: EventPlayerLeft, Payload: PlayerLeftPayload{UserID: a.PlayerID}}}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
	if err != nil {
		return nil, nil, err
	}
	return next, []Event{{
		Kind:    EventActionApplied,
		Payload: ActionAppliedPayload{UserID: action.Actor(), Action: action.Kind()},
	}}, nil
}

// Settle applies the stake transfer of a finished match.
func (s *Service) Settle(game *domain.GameState) (*domain.GameState, map[string]int64, Event) {
	deltas := domain.Settlement(game.Outcome, game.Stake)
	next := domain.ApplySettlement(game, deltas)
	ev := Event{Kind: EventGameEnded, Payload: GameEndedPayload{Deltas: deltas}}
	if game.Outcome != nil {
		ev.Payload = GameEndedPayload{Outcome: *game.Outcome, Deltas: deltas}
	}
	return next, deltas, ev
}

// BiasBotHand applies the bot hand-strength knob.
func (s *Service) BiasBotHand(game *domain.GameState, botID string, swaps int) *domain.GameState {
	if swaps <= 0 {
		return game
	}
	return domain.BiasHand(game, botID, swaps)
}
