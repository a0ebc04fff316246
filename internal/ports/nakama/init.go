package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"durak/internal/bot"
	"durak/internal/config"
)

const (
	defaultGameConfigPath    = "data/game_config.json"
	defaultBotIdentitiesPath = "data/bot_identities.json"
)

// InitModule wires RPCs, hooks and the match handler for the Nakama runtime.
// Settings come from the game config file and durak_* runtime env keys.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	vars, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	path := defaultGameConfigPath
	if v, ok := vars["durak_game_config"]; ok {
		path = v
	}
	games, err := config.LoadGameConfigFrom(path, config.RuntimeEnv(vars))
	if err != nil {
		return fmt.Errorf("load game config: %w", err)
	}

	identitiesPath := defaultBotIdentitiesPath
	if v, ok := vars["durak_bot_identities"]; ok {
		identitiesPath = v
	}
	pool, err := bot.LoadIdentities(identitiesPath)
	if err != nil {
		logger.Warn("InitModule: Could not load bot identities: %v", err)
		pool = bot.NewPool(nil)
	}

	mh := newMatchHandler(games, pool, NewNakamaEconomyAdapter(nk), NewNakamaResultsAdapter(nk))

	if err := initializer.RegisterRpc(RpcQuickMatch, mh.rpcQuickMatch); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcPlayerStats, mh.rpcPlayerStats); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(afterAuthenticateDevice(NewNakamaWelcomeBonusAdapter(nk), games.OpeningBalance)); err != nil {
		return err
	}
	if err := initializer.RegisterMatch(MatchNameDurak, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return mh, nil
	}); err != nil {
		return err
	}

	logger.Info("Durak Go module loaded: deck %d, %d-%d players, bots=%v.", games.DeckSize, games.MinPlayers, games.MaxPlayers, games.Bots.Enabled)
	return nil
}
