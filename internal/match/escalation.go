package match

import (
	"time"

	"tinyhunt/internal/config"
	"tinyhunt/pkg/realtime"
)

// EscalationConfig tunes sudden death.
type EscalationConfig struct {
	Enabled bool
	// StartSeconds is the remaining match time at which sudden death begins.
	StartSeconds   int64
	RevealInterval time.Duration
	RevealDuration time.Duration
	SpeedAmplifier int
}

func escalationConfig(s config.Settings) EscalationConfig {
	return EscalationConfig{
		Enabled:        s.SuddenDeathEnabled,
		StartSeconds:   int64(s.SuddenDeathStartSeconds),
		RevealInterval: config.Seconds(s.RevealIntervalSeconds),
		RevealDuration: config.Seconds(s.RevealDurationSeconds),
		SpeedAmplifier: s.HunterSpeedAmplifier,
	}
}

// Escalation is the sudden death state of the running match.
type Escalation struct {
	Triggered bool
	NextPulse time.Time
}

// Decision is what to do on this tick.
type Decision struct {
	// Trigger is set on the single tick sudden death begins.
	Trigger bool
	// Pulse is set whenever runners are revealed.
	Pulse     bool
	NextPulse time.Time
}

// Evaluate decides, given the remaining whole seconds of the match, whether
// sudden death begins now and whether a reveal pulse is due. A trigger always
// pulses immediately.
func Evaluate(cfg EscalationConfig, st Escalation, remaining int64, now time.Time) Decision {
	d := Decision{NextPulse: st.NextPulse}
	triggered := st.Triggered
	if cfg.Enabled && !triggered && remaining <= cfg.StartSeconds {
		d.Trigger = true
		triggered = true
		d.NextPulse = now
	}
	if triggered && !now.Before(d.NextPulse) {
		d.Pulse = true
		d.NextPulse = now.Add(cfg.RevealInterval)
	}
	return d
}

// Apply returns the state after d.
func (d Decision) Apply(st Escalation) Escalation {
	if d.Trigger {
		st.Triggered = true
	}
	if st.Triggered {
		st.NextPulse = d.NextPulse
	}
	return st
}

// NextRevealSeconds is the whole seconds until the next pulse, or -1 when
// sudden death is not active.
func (st Escalation) NextRevealSeconds(now time.Time) int64 {
	if !st.Triggered {
		return -1
	}
	return realtime.CeilSeconds(st.NextPulse.Sub(now))
}

// HunterBuff is the speed effect hunters get while sudden death is active.
func HunterBuff(cfg EscalationConfig, st Escalation) (Effect, bool) {
	if !st.Triggered || cfg.SpeedAmplifier <= 0 {
		return Effect{}, false
	}
	return Effect{Kind: Speed, Duration: cfg.RevealInterval, Amplifier: cfg.SpeedAmplifier - 1}, true
}

// RevealEffect is what every remaining runner gets on a pulse.
func RevealEffect(cfg EscalationConfig) Effect {
	return Effect{Kind: Reveal, Duration: cfg.RevealDuration}
}
