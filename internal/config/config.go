// Package config loads the server's runtime options, with defaults, from
// flags and environment variables.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/vctt94/koikoisrv/internal/cardgame"
)

// Ruleset is cardgame.Ruleset: the domain layer owns the field list, this
// package only supplies defaults and flag/env wiring for it.
type Ruleset = cardgame.Ruleset

// Timeouts carries every duration the timeout manager (internal/timeoutmgr)
// and turn-flow service (internal/turnflow) consult.
type Timeouts struct {
	Action               time.Duration
	AcceleratedAction    time.Duration
	ContinueConfirmation time.Duration
	Display              time.Duration
	SSEHeartbeat         time.Duration
	Disconnect           time.Duration
	Matchmaking          time.Duration
}

// Config is the fully resolved runtime configuration.
type Config struct {
	HTTPAddr string
	DBPath   string
	LogLevel string
	Timeouts Timeouts
	Ruleset  Ruleset
}

// Default returns the configuration with every default value applied.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		DBPath:   "koikoi.db",
		LogLevel: "info",
		Timeouts: Timeouts{
			Action:               15 * time.Second,
			AcceleratedAction:    3 * time.Second,
			ContinueConfirmation: 7 * time.Second,
			Display:              5 * time.Second,
			SSEHeartbeat:         15 * time.Second,
			Disconnect:           30 * time.Second,
			Matchmaking:          60 * time.Second,
		},
		Ruleset: Ruleset{
			TotalRounds:       2,
			InstantEndBonus:   6,
			TeshiEnabled:      true,
			KuttsukiEnabled:   true,
			FieldTeshiEnabled: true,
			YakuPoints:        DefaultYakuPoints(),
		},
	}
}

// DefaultYakuPoints is the base score table for the fixed-value yaku,
// keyed by the yaku ids defined in internal/cardgame.
func DefaultYakuPoints() map[string]int {
	return map[string]int{
		"GOKO":         15,
		"SHIKO":        8,
		"AME_SHIKO":    7,
		"SANKO":        6,
		"AKATAN":       6,
		"AOTAN":        6,
		"INOSHIKACHOU": 5,
		"HANAMI":       5,
		"TSUKIMI":      5,
	}
}

// FromEnvAndFlags parses flags (falling back to environment variables, then
// to Default()) the way a small operator tool typically layers config
// sources. fs lets tests pass a scratch FlagSet instead of flag.CommandLine.
func FromEnvAndFlags(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("koikoisrv", flag.ContinueOnError)
	}
	cfg := Default()

	httpAddr := fs.String("http-addr", envOr("KOIKOI_HTTP_ADDR", cfg.HTTPAddr), "address to listen on")
	dbPath := fs.String("db-path", envOr("KOIKOI_DB_PATH", cfg.DBPath), "path to the sqlite database file")
	logLevel := fs.String("log-level", envOr("KOIKOI_LOG_LEVEL", cfg.LogLevel), "log level (trace, debug, info, warn, error, critical)")

	actionTimeout := fs.Int("action-timeout-seconds", envIntOr("KOIKOI_ACTION_TIMEOUT_SECONDS", int(cfg.Timeouts.Action.Seconds())), "")
	acceleratedTimeout := fs.Int("accelerated-action-timeout-seconds", envIntOr("KOIKOI_ACCELERATED_ACTION_TIMEOUT_SECONDS", int(cfg.Timeouts.AcceleratedAction.Seconds())), "")
	continueTimeout := fs.Int("continue-confirmation-seconds", envIntOr("KOIKOI_CONTINUE_CONFIRMATION_SECONDS", int(cfg.Timeouts.ContinueConfirmation.Seconds())), "")
	displayTimeout := fs.Int("display-timeout-seconds", envIntOr("KOIKOI_DISPLAY_TIMEOUT_SECONDS", int(cfg.Timeouts.Display.Seconds())), "")
	heartbeat := fs.Int("sse-heartbeat-interval-seconds", envIntOr("KOIKOI_SSE_HEARTBEAT_INTERVAL_SECONDS", int(cfg.Timeouts.SSEHeartbeat.Seconds())), "")
	disconnectTimeout := fs.Int("disconnect-timeout-seconds", envIntOr("KOIKOI_DISCONNECT_TIMEOUT_SECONDS", int(cfg.Timeouts.Disconnect.Seconds())), "")
	matchmakingTimeout := fs.Int("matchmaking-timeout-seconds", envIntOr("KOIKOI_MATCHMAKING_TIMEOUT_SECONDS", int(cfg.Timeouts.Matchmaking.Seconds())), "")

	totalRounds := fs.Int("total-rounds", envIntOr("KOIKOI_TOTAL_ROUNDS", cfg.Ruleset.TotalRounds), "")
	instantEndBonus := fs.Int("instant-end-bonus-points", envIntOr("KOIKOI_INSTANT_END_BONUS_POINTS", cfg.Ruleset.InstantEndBonus), "")
	teshiEnabled := fs.Bool("teshi-enabled", envBoolOr("KOIKOI_TESHI_ENABLED", cfg.Ruleset.TeshiEnabled), "")
	kuttsukiEnabled := fs.Bool("kuttsuki-enabled", envBoolOr("KOIKOI_KUTTSUKI_ENABLED", cfg.Ruleset.KuttsukiEnabled), "")
	fieldTeshiEnabled := fs.Bool("field-teshi-enabled", envBoolOr("KOIKOI_FIELD_TESHI_ENABLED", cfg.Ruleset.FieldTeshiEnabled), "")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.HTTPAddr = *httpAddr
	cfg.DBPath = *dbPath
	cfg.LogLevel = *logLevel
	cfg.Timeouts = Timeouts{
		Action:               time.Duration(*actionTimeout) * time.Second,
		AcceleratedAction:    time.Duration(*acceleratedTimeout) * time.Second,
		ContinueConfirmation: time.Duration(*continueTimeout) * time.Second,
		Display:              time.Duration(*displayTimeout) * time.Second,
		SSEHeartbeat:         time.Duration(*heartbeat) * time.Second,
		Disconnect:           time.Duration(*disconnectTimeout) * time.Second,
		Matchmaking:          time.Duration(*matchmakingTimeout) * time.Second,
	}
	cfg.Ruleset.TotalRounds = *totalRounds
	cfg.Ruleset.InstantEndBonus = *instantEndBonus
	cfg.Ruleset.TeshiEnabled = *teshiEnabled
	cfg.Ruleset.KuttsukiEnabled = *kuttsukiEnabled
	cfg.Ruleset.FieldTeshiEnabled = *fieldTeshiEnabled
	cfg.Ruleset.YakuPoints = DefaultYakuPoints()

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
