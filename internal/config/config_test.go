package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tinyhunt.env")
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NilError(t, err)

	want := Defaults()
	assert.Equal(t, s.MinPlayers, want.MinPlayers)
	assert.Equal(t, s.MaxPlayers, want.MinPlayers)
	assert.Equal(t, s.AutoStartSeconds, 120)
	assert.Equal(t, s.GameDurationSeconds, 600)
	assert.Equal(t, s.SuddenDeathEnabled, true)
	assert.Equal(t, s.RunnerScale, 0.33)
	assert.Equal(t, s.TickRate, DefaultTickRate)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeFile(t, "PLAYERS_MIN=3\nPLAYERS_MAX=8\nGAME_DURATION_SECONDS=300\nSUDDEN_DEATH_ENABLED=false\n")
	t.Setenv("GAME_DURATION_SECONDS", "900")

	s, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, s.MinPlayers, 3)
	assert.Equal(t, s.MaxPlayers, 8)
	assert.Equal(t, s.GameDurationSeconds, 900)
	assert.Equal(t, s.SuddenDeathEnabled, false)
}

func TestMaxPlayersFollowsMin(t *testing.T) {
	t.Setenv("PLAYERS_MIN", "6")
	s, err := Load("")
	assert.NilError(t, err)
	assert.Equal(t, s.MinPlayers, 6)
	assert.Equal(t, s.MaxPlayers, 6)
}

func TestNormalizeClamps(t *testing.T) {
	s := Settings{
		MinPlayers:              1,
		MaxPlayers:              1,
		AutoStartSeconds:        1,
		HunterSelectionSeconds:  0,
		GameDurationSeconds:     5,
		RespawnSeconds:          0,
		InvulnerabilitySeconds:  -3,
		SuddenDeathStartSeconds: 2,
		RevealIntervalSeconds:   1,
		RevealDurationSeconds:   0,
		HunterSpeedAmplifier:    -1,
		TickRate:                500,
	}.Normalize()

	assert.Equal(t, s.MinPlayers, 2)
	assert.Equal(t, s.MaxPlayers, 2)
	assert.Equal(t, s.AutoStartSeconds, 5)
	assert.Equal(t, s.HunterSelectionSeconds, 1)
	assert.Equal(t, s.GameDurationSeconds, 30)
	assert.Equal(t, s.RespawnSeconds, 1)
	assert.Equal(t, s.InvulnerabilitySeconds, 0)
	assert.Equal(t, s.SuddenDeathStartSeconds, 10)
	assert.Equal(t, s.RevealIntervalSeconds, 5)
	assert.Equal(t, s.RevealDurationSeconds, 1)
	assert.Equal(t, s.HunterSpeedAmplifier, 0)
	assert.Equal(t, s.RunnerScale, 0.33)
	assert.Equal(t, s.HunterScale, 1.0)
	assert.Equal(t, s.TickRate, MaxTickRate)
	assert.Equal(t, s.LogLevel, "info")
}

func TestTicks(t *testing.T) {
	s := Defaults()
	assert.Equal(t, s.Ticks(10), uint64(200))
	assert.Equal(t, s.Ticks(0), uint64(0))
	assert.Equal(t, s.Ticks(-4), uint64(0))
	assert.Equal(t, s.TickInterval(), 50*time.Millisecond)
	assert.Equal(t, Seconds(3), 3*time.Second)
}
