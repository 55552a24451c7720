package hud

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhunt/internal/match"
)

func TestRender(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "Starting in 3...", c.Render("countdown-tick", map[string]string{"seconds": "3"}))
	assert.Equal(t,
		"bob was caught and turns in 5 seconds.",
		c.Render("runner-respawn-broadcast", map[string]string{"player": "bob", "seconds": "5"}),
	)
	assert.Equal(t, "The runners survived!", c.Render("runners-win", nil))
	assert.Equal(t, "some-new-key", c.Render("some-new-key", nil))
}

func TestCatalogCoversMatchKeys(t *testing.T) {
	c := DefaultCatalog()
	for _, key := range []string{
		"hunters-win", "runners-win", "manual-stop", "configuration-missing",
		"countdown-start", "countdown-tick", "countdown-cancelled", "not-enough-players",
		"joined-queue", "left-queue", "game-start", "game-start-runner", "hunter-selected",
		"you-are-hunter", "now-hunter", "runner-respawn-start", "runner-respawn-broadcast",
		"runner-respawn-complete", "runner-converted", "player-left",
		"sudden-death-start", "sudden-death-reveal",
	} {
		_, ok := c[key]
		assert.True(t, ok, key)
	}
}

func TestSinkAnnounce(t *testing.T) {
	s := NewSink(nil, zerolog.Nop())
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	s.Announce(match.Announcement{
		Audience:   match.AudienceActive,
		Recipients: []match.ParticipantID{"a", "b"},
		Key:        "hunter-selected",
		Args:       map[string]string{"player": "amy"},
	})

	ev := <-sub
	require.Equal(t, EventLine, ev.Kind)
	assert.Equal(t, "amy is the hunter!", ev.Line.Text)
	assert.Equal(t, "active", ev.Line.Audience)
	assert.True(t, ev.Line.For("a"))
	assert.False(t, ev.Line.For("c"))
	assert.True(t, ev.Line.For(""))

	recent := s.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "hunter-selected", recent[0].Key)
}

func TestPersonalLinesHiddenFromSpectators(t *testing.T) {
	line := Line{Audience: match.AudienceParticipant.String(), Recipients: []match.ParticipantID{"a"}}
	assert.False(t, line.For(""))
	assert.True(t, line.For("a"))
}

func TestSinkKeepsRecentWindow(t *testing.T) {
	s := NewSink(nil, zerolog.Nop())
	for i := 0; i < recentLines+5; i++ {
		s.Announce(match.Announcement{Audience: match.AudienceQueue, Key: "countdown-tick"})
	}
	assert.Len(t, s.Recent(), recentLines)
}

func TestSinkSnapshotAndReset(t *testing.T) {
	s := NewSink(nil, zerolog.Nop())
	_, _, ok := s.Latest()
	assert.False(t, ok)

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	ids := []match.ParticipantID{"a"}
	s.Publish(match.Snapshot{Remaining: "01:00", Escalated: true}, ids)
	ids[0] = "mutated"

	snap, participants, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, "01:00", snap.Remaining)
	assert.Equal(t, []match.ParticipantID{"a"}, participants)
	assert.Equal(t, SuddenDeathLine, ExtraLine(snap))
	assert.Equal(t, EventSnapshot, (<-sub).Kind)

	s.Reset()
	_, _, ok = s.Latest()
	assert.False(t, ok)
	assert.Equal(t, EventReset, (<-sub).Kind)
	assert.Equal(t, "", ExtraLine(match.Snapshot{}))
	assert.Equal(t, "Time: 01:00", BossBarTitle("01:00"))
}
