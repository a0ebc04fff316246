// Package config loads game and server settings from a JSON file and DURAK_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"durak/internal/app"
	"durak/internal/bot"
	"durak/internal/domain"
)

// StakeTier is a named stake level players can pick when matchmaking.
type StakeTier struct {
	ID    string `json:"id"`
	Stake int64  `json:"stake"`
}

// MsWindow is a delay range in milliseconds.
type MsWindow struct {
	Min int `json:"min" env:"MIN"`
	Max int `json:"max" env:"MAX"`
}

func (w MsWindow) window() bot.Window {
	return bot.Window{Min: time.Duration(w.Min) * time.Millisecond, Max: time.Duration(w.Max) * time.Millisecond}
}

type BotSettings struct {
	Enabled      bool     `json:"enabled" env:"ENABLED"`
	Level        string   `json:"level" env:"LEVEL"`
	MoveMs       MsWindow `json:"move_ms" envPrefix:"MOVE_MS_"`
	JoinMs       MsWindow `json:"join_ms" envPrefix:"JOIN_MS_"`
	LeaveAfterMs MsWindow `json:"leave_after_ms" envPrefix:"LEAVE_AFTER_MS_"`
	StaggerMs    MsWindow `json:"leave_stagger_ms" envPrefix:"LEAVE_STAGGER_MS_"`
	BiasSwaps    int      `json:"bias_swaps" env:"BIAS_SWAPS"`
	ConservePile int      `json:"conserve_pile" env:"CONSERVE_PILE"`
}

// GameConfig holds the rules and pacing shared by every room in the process.
type GameConfig struct {
	DeckSize    int         `json:"deck_size" env:"DURAK_DECK_SIZE"`
	MinPlayers  int         `json:"min_players" env:"DURAK_MIN_PLAYERS"`
	MaxPlayers  int         `json:"max_players" env:"DURAK_MAX_PLAYERS"`
	DefaultTier string      `json:"default_tier" env:"DURAK_DEFAULT_TIER"`
	Tiers       []StakeTier `json:"tiers"`
	// RevealHands disables hand redaction. Only useful for debugging clients.
	RevealHands bool `json:"reveal_hands" env:"DURAK_REVEAL_HANDS"`
	// FinishedLingerSeconds keeps a finished room readable before it closes.
	FinishedLingerSeconds int `json:"finished_linger_seconds" env:"DURAK_FINISHED_LINGER_SECONDS"`
	// OpeningBalance seeds wallets in the standalone server and is the one-time grant for new Nakama accounts.
	OpeningBalance int64       `json:"opening_balance" env:"DURAK_OPENING_BALANCE"`
	Bots           BotSettings `json:"bots" envPrefix:"DURAK_BOT_"`
}

// Default returns the built-in configuration used when no file is given.
func Default() GameConfig {
	return GameConfig{
		DeckSize:    36,
		MinPlayers:  2,
		MaxPlayers:  2,
		DefaultTier: "bronze",
		Tiers: []StakeTier{
			{ID: "bronze", Stake: 100},
			{ID: "silver", Stake: 500},
			{ID: "gold", Stake: 2500},
		},
		FinishedLingerSeconds: 30,
		OpeningBalance:        10000,
		Bots: BotSettings{
			Enabled:      true,
			Level:        "good",
			MoveMs:       MsWindow{Min: 800, Max: 2500},
			JoinMs:       MsWindow{Min: 30000, Max: 120000},
			LeaveAfterMs: MsWindow{Min: 60000, Max: 240000},
			StaggerMs:    MsWindow{Min: 0, Max: 10000},
			ConservePile: bot.DefaultTuning.ConservePile,
		},
	}
}

// LoadGameConfig reads path over the defaults and applies DURAK_* overrides from the process
// environment. An empty path skips the file.
func LoadGameConfig(path string) (GameConfig, error) {
	return LoadGameConfigFrom(path, nil)
}

// LoadGameConfigFrom is LoadGameConfig with an explicit environment. A nil environ means the
// process environment.
func LoadGameConfigFrom(path string, environ map[string]string) (GameConfig, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return GameConfig{}, fmt.Errorf("failed to read game config: %w", err)
		}
		if err := json.Unmarshal(data, &c); err != nil {
			return GameConfig{}, fmt.Errorf("failed to unmarshal game config: %w", err)
		}
	}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return GameConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return GameConfig{}, err
	}
	return c, nil
}

// RuntimeEnv maps Nakama runtime env keys (durak_deck_size) onto DURAK_DECK_SIZE names.
// Keys without the durak_ prefix are dropped.
func RuntimeEnv(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if strings.HasPrefix(strings.ToLower(k), "durak_") {
			out[strings.ToUpper(k)] = v
		}
	}
	return out
}

// Validate rejects values no room could be started with.
func (c GameConfig) Validate() error {
	var errs []error
	if !domain.ValidDeckSize(c.DeckSize) {
		errs = append(errs, fmt.Errorf("deck_size %d not one of 24, 36, 52", c.DeckSize))
	}
	if c.MinPlayers < domain.MinPlayers || c.MaxPlayers > domain.MaxPlayers || c.MinPlayers > c.MaxPlayers {
		errs = append(errs, fmt.Errorf("players %d..%d outside %d..%d", c.MinPlayers, c.MaxPlayers, domain.MinPlayers, domain.MaxPlayers))
	} else if limit := domain.MaxPlayersFor(c.DeckSize); domain.ValidDeckSize(c.DeckSize) && c.MaxPlayers > limit {
		errs = append(errs, fmt.Errorf("max_players %d too many for a %d-card deck", c.MaxPlayers, c.DeckSize))
	}
	if len(c.Tiers) == 0 {
		errs = append(errs, errors.New("at least one stake tier is required"))
	}
	seen := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.ID == "" || seen[t.ID] {
			errs = append(errs, fmt.Errorf("tier id %q empty or duplicated", t.ID))
		}
		if t.Stake < 0 {
			errs = append(errs, fmt.Errorf("tier %s has negative stake", t.ID))
		}
		seen[t.ID] = true
	}
	if len(c.Tiers) > 0 && !seen[c.DefaultTier] {
		errs = append(errs, fmt.Errorf("default_tier %q is not a tier", c.DefaultTier))
	}
	if _, err := bot.ParseLevel(c.Bots.Level); err != nil {
		errs = append(errs, err)
	}
	for name, w := range map[string]MsWindow{
		"move_ms":          c.Bots.MoveMs,
		"join_ms":          c.Bots.JoinMs,
		"leave_after_ms":   c.Bots.LeaveAfterMs,
		"leave_stagger_ms": c.Bots.StaggerMs,
	} {
		if w.Min < 0 || w.Max < w.Min {
			errs = append(errs, fmt.Errorf("bots.%s window [%d, %d] is inverted or negative", name, w.Min, w.Max))
		}
	}
	if c.Bots.BiasSwaps < 0 || c.Bots.BiasSwaps > domain.HandSize {
		errs = append(errs, fmt.Errorf("bots.bias_swaps %d outside 0..%d", c.Bots.BiasSwaps, domain.HandSize))
	}
	if c.FinishedLingerSeconds < 0 {
		errs = append(errs, fmt.Errorf("finished_linger_seconds %d is negative", c.FinishedLingerSeconds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid game config: %w", errors.Join(errs...))
	}
	return nil
}

// Stake returns the stake for tierID, falling back to the default tier.
func (c GameConfig) Stake(tierID string) int64 {
	target := tierID
	if target == "" {
		target = c.DefaultTier
	}
	for _, tier := range c.Tiers {
		if tier.ID == target {
			return tier.Stake
		}
	}
	for _, tier := range c.Tiers {
		if tier.ID == c.DefaultTier {
			return tier.Stake
		}
	}
	return 0
}

// HasTier reports whether tierID names a configured tier.
func (c GameConfig) HasTier(tierID string) bool {
	for _, tier := range c.Tiers {
		if tier.ID == tierID {
			return true
		}
	}
	return false
}

// RoomConfig builds the room settings for a stake tier.
func (c GameConfig) RoomConfig(tierID string) app.RoomConfig {
	level, err := bot.ParseLevel(c.Bots.Level)
	if err != nil {
		level = bot.BotLevelGood
	}
	tuning := bot.DefaultTuning
	tuning.ConservePile = c.Bots.ConservePile
	return app.RoomConfig{
		DeckSize:    c.DeckSize,
		MinPlayers:  c.MinPlayers,
		MaxPlayers:  c.MaxPlayers,
		Stake:       c.Stake(tierID),
		RevealHands: c.RevealHands,
		Bots: app.BotConfig{
			Enabled:      c.Bots.Enabled,
			DefaultLevel: level,
			Timing: bot.Timing{
				Move:         c.Bots.MoveMs.window(),
				Join:         c.Bots.JoinMs.window(),
				LeaveAfter:   c.Bots.LeaveAfterMs.window(),
				LeaveStagger: c.Bots.StaggerMs.window(),
			},
			Tuning:    tuning,
			BiasSwaps: c.Bots.BiasSwaps,
		},
		FinishedLinger: time.Duration(c.FinishedLingerSeconds) * time.Second,
	}
}

// ServerConfig configures the standalone server. It is read from the environment only.
type ServerConfig struct {
	ListenAddr        string        `env:"DURAK_LISTEN_ADDR" envDefault:":8080"`
	GameConfigPath    string        `env:"DURAK_GAME_CONFIG" envDefault:"data/game_config.json"`
	BotIdentitiesPath string        `env:"DURAK_BOT_IDENTITIES" envDefault:"data/bot_identities.json"`
	LogLevel          string        `env:"DURAK_LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"DURAK_LOG_FORMAT" envDefault:"json"`
	JWTSecret         string        `env:"DURAK_JWT_SECRET"`
	JWTIssuer         string        `env:"DURAK_JWT_ISSUER" envDefault:"durak"`
	TokenTTL          time.Duration `env:"DURAK_TOKEN_TTL" envDefault:"24h"`
	SQLitePath        string        `env:"DURAK_SQLITE_PATH" envDefault:"durak.db"`
	OTLPEndpoint      string        `env:"DURAK_OTLP_ENDPOINT"`
	ShutdownTimeout   time.Duration `env:"DURAK_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// AllowOrigins lists browser origins allowed to open sockets. Empty allows any.
	AllowOrigins []string `env:"DURAK_ALLOWED_ORIGINS" envSeparator:","`
}

// LoadServerConfig parses ServerConfig from environ, or the process environment when nil.
func LoadServerConfig(environ map[string]string) (ServerConfig, error) {
	var c ServerConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return ServerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if len(c.JWTSecret) < 16 {
		return ServerConfig{}, errors.New("DURAK_JWT_SECRET must be at least 16 bytes")
	}
	if c.TokenTTL <= 0 {
		return ServerConfig{}, fmt.Errorf("DURAK_TOKEN_TTL %v must be positive", c.TokenTTL)
	}
	return c, nil
}
