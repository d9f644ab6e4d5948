package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 15*time.Second, cfg.Timeouts.Action)
	require.Equal(t, 3*time.Second, cfg.Timeouts.AcceleratedAction)
	require.Equal(t, 2, cfg.Ruleset.TotalRounds)
	require.True(t, cfg.Ruleset.TeshiEnabled)
	require.NotEmpty(t, cfg.Ruleset.YakuPoints)
}

func TestFromEnvAndFlagsAppliesDefaultsWithNoArgs(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := FromEnvAndFlags(fs, nil)
	require.NoError(t, err)
	require.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
	require.Equal(t, Default().Timeouts, cfg.Timeouts)
}

func TestFromEnvAndFlagsOverridesViaFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := FromEnvAndFlags(fs, []string{
		"--http-addr", ":9090",
		"--total-rounds", "5",
		"--teshi-enabled=false",
		"--action-timeout-seconds", "30",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, 5, cfg.Ruleset.TotalRounds)
	require.False(t, cfg.Ruleset.TeshiEnabled)
	require.Equal(t, 30*time.Second, cfg.Timeouts.Action)
}

func TestFromEnvAndFlagsOverridesViaEnv(t *testing.T) {
	t.Setenv("KOIKOI_DB_PATH", "/tmp/alt.db")
	t.Setenv("KOIKOI_TOTAL_ROUNDS", "3")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := FromEnvAndFlags(fs, nil)
	require.NoError(t, err)
	require.Equal(t, "/tmp/alt.db", cfg.DBPath)
	require.Equal(t, 3, cfg.Ruleset.TotalRounds)
}

func TestFromEnvAndFlagsFlagOverridesEnv(t *testing.T) {
	t.Setenv("KOIKOI_TOTAL_ROUNDS", "3")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := FromEnvAndFlags(fs, []string{"--total-rounds", "9"})
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Ruleset.TotalRounds)
}

func TestFromEnvAndFlagsRejectsBadArgs(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	_, err := FromEnvAndFlags(fs, []string{"--total-rounds", "not-a-number"})
	require.Error(t, err)
}
