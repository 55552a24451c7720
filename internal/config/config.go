// Package config loads the match settings from an optional KEY=value file
// overlaid with the process environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
)

const (
	DefaultPath     = "tinyhunt.env"
	DefaultTickRate = 20
	MaxTickRate     = 100
)

// Settings is the flat set of tunables consumed by the match manager and the
// serve command. Durations are whole seconds.
type Settings struct {
	MinPlayers int `config:"PLAYERS_MIN"`
	MaxPlayers int `config:"PLAYERS_MAX"`

	AutoStartSeconds       int `config:"AUTO_START_SECONDS"`
	HunterSelectionSeconds int `config:"HUNTER_SELECTION_SECONDS"`
	GameDurationSeconds    int `config:"GAME_DURATION_SECONDS"`
	RespawnSeconds         int `config:"RUNNER_RESPAWN_SECONDS"`
	InvulnerabilitySeconds int `config:"RESPAWN_INVULNERABILITY_SECONDS"`

	SuddenDeathEnabled      bool `config:"SUDDEN_DEATH_ENABLED"`
	SuddenDeathStartSeconds int  `config:"SUDDEN_DEATH_START_SECONDS"`
	RevealIntervalSeconds   int  `config:"SUDDEN_DEATH_REVEAL_INTERVAL_SECONDS"`
	RevealDurationSeconds   int  `config:"SUDDEN_DEATH_REVEAL_DURATION_SECONDS"`
	HunterSpeedAmplifier    int  `config:"SUDDEN_DEATH_HUNTER_SPEED_AMPLIFIER"`

	RunnerScale float64 `config:"SCALE_RUNNER"`
	HunterScale float64 `config:"SCALE_HUNTER"`

	// WorldSpawn is the fallback return point when no lobby is configured,
	// written as "world:x,y,z".
	WorldSpawn string `config:"WORLD_SPAWN"`

	HTTPAddr       string `config:"HTTP_ADDR"`
	RedisAddress   string `config:"REDIS_ADDRESS"`
	RedisPassword  string `config:"REDIS_PASSWORD"`
	RedisKeyPrefix string `config:"REDIS_KEY_PREFIX"`
	StatsdAddress  string `config:"STATSD_ADDRESS"`
	LogLevel       string `config:"LOG_LEVEL"`
	TickRate       int    `config:"TICK_RATE"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Settings {
	return Settings{
		MinPlayers:              4,
		MaxPlayers:              4,
		AutoStartSeconds:        120,
		HunterSelectionSeconds:  10,
		GameDurationSeconds:     600,
		RespawnSeconds:          5,
		InvulnerabilitySeconds:  2,
		SuddenDeathEnabled:      true,
		SuddenDeathStartSeconds: 120,
		RevealIntervalSeconds:   20,
		RevealDurationSeconds:   5,
		HunterSpeedAmplifier:    1,
		RunnerScale:             0.33,
		HunterScale:             1.0,
		WorldSpawn:              "world:0,64,0",
		HTTPAddr:                ":8080",
		RedisAddress:            "localhost:6379",
		RedisKeyPrefix:          "tinyhunt",
		LogLevel:                "info",
		TickRate:                DefaultTickRate,
	}
}

// Load reads path (if it exists) and then the environment on top of the
// defaults, and returns the clamped result.
func Load(path string) (Settings, error) {
	s := Defaults()
	// PLAYERS_MAX defaults to whatever PLAYERS_MIN ends up being.
	s.MaxPlayers = 0

	builder := jlconfig.FromEnv()
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			builder = jlconfig.From(path).FromEnv()
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Settings{}, eris.Wrapf(err, "stat settings file %q", path)
		}
	}
	if err := builder.To(&s); err != nil {
		return Settings{}, eris.Wrap(err, "failed to load settings")
	}
	return s.Normalize(), nil
}

// Normalize clamps every value into its accepted range.
func (s Settings) Normalize() Settings {
	s.MinPlayers = atLeast(s.MinPlayers, 2)
	if s.MaxPlayers < s.MinPlayers {
		s.MaxPlayers = s.MinPlayers
	}
	s.AutoStartSeconds = atLeast(s.AutoStartSeconds, 5)
	s.HunterSelectionSeconds = atLeast(s.HunterSelectionSeconds, 1)
	s.GameDurationSeconds = atLeast(s.GameDurationSeconds, 30)
	s.RespawnSeconds = atLeast(s.RespawnSeconds, 1)
	s.InvulnerabilitySeconds = atLeast(s.InvulnerabilitySeconds, 0)
	s.SuddenDeathStartSeconds = atLeast(s.SuddenDeathStartSeconds, 10)
	s.RevealIntervalSeconds = atLeast(s.RevealIntervalSeconds, 5)
	s.RevealDurationSeconds = atLeast(s.RevealDurationSeconds, 1)
	s.HunterSpeedAmplifier = atLeast(s.HunterSpeedAmplifier, 0)
	if s.RunnerScale <= 0 {
		s.RunnerScale = 0.33
	}
	if s.HunterScale <= 0 {
		s.HunterScale = 1.0
	}
	if s.TickRate < 1 {
		s.TickRate = DefaultTickRate
	}
	if s.TickRate > MaxTickRate {
		s.TickRate = MaxTickRate
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	return s
}

// TickInterval is the wall-clock length of one tick.
func (s Settings) TickInterval() time.Duration {
	rate := s.TickRate
	if rate < 1 {
		rate = DefaultTickRate
	}
	return time.Second / time.Duration(rate)
}

// Ticks converts whole seconds into ticks at the configured rate.
func (s Settings) Ticks(seconds int) uint64 {
	if seconds <= 0 {
		return 0
	}
	rate := s.TickRate
	if rate < 1 {
		rate = DefaultTickRate
	}
	return uint64(seconds) * uint64(rate)
}

func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func atLeast(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
