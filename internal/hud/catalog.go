// Package hud is the presentation sink: it turns announcements into text,
// keeps the latest match snapshot and fans both out to subscribers.
package hud

import (
	"sort"
	"strings"
)

const (
	ScoreboardTitle = "TinyHunt"
	SuddenDeathLine = "Sudden death!"
)

// Catalog maps message keys to English text. Placeholders are written
// %name%.
type Catalog map[string]string

// DefaultCatalog holds every message the match manager and the command
// surface emit.
func DefaultCatalog() Catalog {
	return Catalog{
		"cannot-join":              "You cannot join while a match is running.",
		"already-queued":           "You are already in the queue.",
		"queue-full":               "The queue is full.",
		"joined-queue":             "You joined the queue (position %position%).",
		"left-queue":               "You left the queue.",
		"not-in-queue":             "You are not in the queue.",
		"countdown-start":          "The match starts in %seconds% seconds.",
		"countdown-tick":           "Starting in %seconds%...",
		"countdown-cancelled":      "Countdown cancelled: not enough players.",
		"not-enough-players":       "Not enough players to start.",
		"configuration-missing":    "The lobby or arena is not configured.",
		"already-running":          "A match is already running.",
		"no-active-game":           "There is no match to stop.",
		"start-requested":          "Match start requested.",
		"stop-requested":           "Match stop requested.",
		"reloaded":                 "Settings reloaded.",
		"reload-staged":            "Settings will reload when the match ends.",
		"rate-limited":             "Slow down.",
		"game-start":               "The hunt begins! A hunter will be chosen shortly.",
		"game-start-runner":        "You are a runner. Hide!",
		"hunter-selected":          "%player% is the hunter!",
		"you-are-hunter":           "You are the hunter. Find them all!",
		"now-hunter":               "You are now a hunter.",
		"runner-respawn-start":     "You were caught! You become a hunter in %seconds% seconds.",
		"runner-respawn-broadcast": "%player% was caught and turns in %seconds% seconds.",
		"runner-respawn-complete":  "You are a hunter now.",
		"runner-converted":         "%player% joined the hunters.",
		"player-left":              "%player% left the match.",
		"sudden-death-start":       "Sudden death! Runners are revealed periodically.",
		"sudden-death-reveal":      "Runners revealed for %seconds% seconds!",
		"hunters-win":              "The hunters caught everyone!",
		"runners-win":              "The runners survived!",
		"manual-stop":              "The match was stopped.",
		"arena-created":            "Arena %arena% created.",
		"arena-name-exists":        "An arena with that name already exists.",
		"arena-not-found":          "Arena not found.",
		"arena-pos-set":            "Arena corner %corner% set.",
		"arena-spawn-added":        "Spawn %count% added.",
		"lobby-pos-set":            "Lobby corner %corner% set.",
	}
}

// Render formats key with args. Unknown keys render as the key itself.
func (c Catalog) Render(key string, args map[string]string) string {
	text, ok := c[key]
	if !ok {
		text = key
	}
	if len(args) == 0 {
		return text
	}
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, 2*len(args))
	for _, name := range names {
		pairs = append(pairs, "%"+name+"%", args[name])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// BossBarTitle is the title shown above the progress bar.
func BossBarTitle(remaining string) string {
	return "Time: " + remaining
}
