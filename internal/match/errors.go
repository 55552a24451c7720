package match

import "github.com/rotisserie/eris"

var (
	ErrCannotJoin           = eris.New("the queue is closed while a match is running")
	ErrAlreadyQueued        = eris.New("already queued")
	ErrQueueFull            = eris.New("queue is full")
	ErrNotQueued            = eris.New("not queued")
	ErrNotConnected         = eris.New("participant is not connected")
	ErrAlreadyRunning       = eris.New("a match is already running")
	ErrNotEnoughPlayers     = eris.New("not enough players")
	ErrConfigurationMissing = eris.New("lobby or arena is not configured")
	ErrNoActiveMatch        = eris.New("no active match")
)

// MessageKey maps a rejection to its catalog message.
func MessageKey(err error) string {
	switch {
	case err == nil:
		return ""
	case eris.Is(err, ErrCannotJoin):
		return "cannot-join"
	case eris.Is(err, ErrAlreadyQueued):
		return "already-queued"
	case eris.Is(err, ErrQueueFull):
		return "queue-full"
	case eris.Is(err, ErrNotQueued):
		return "not-in-queue"
	case eris.Is(err, ErrAlreadyRunning):
		return "already-running"
	case eris.Is(err, ErrNotEnoughPlayers):
		return "not-enough-players"
	case eris.Is(err, ErrConfigurationMissing):
		return "configuration-missing"
	case eris.Is(err, ErrNoActiveMatch):
		return "no-active-game"
	}
	return ""
}
