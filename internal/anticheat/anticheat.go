package anticheat

import (
	"time"

	"fightclub/internal/config"
)

// BlockLevel is the escalation state currently applied to a player.
type BlockLevel int

const (
	BlockNone BlockLevel = iota
	BlockSoft
	BlockHard
)

// StrikeState is a player's rolling anti-abuse bookkeeping: a sliding
// window of accumulated strikes and the resulting escalation level. It
// is embedded directly in the player record per the data model rather
// than tracked out-of-band, so a room's per-player aggregates travel
// with the player across a reconnect.
type StrikeState struct {
	WindowStart time.Time
	Count       int
	Warned      bool
	Level       BlockLevel
	BlockUntil  time.Time
	lastLogAt   time.Time
}

// Reason is a stringly-typed strike cause. Kept as a string (not an
// enum) only for wire/log stability; callers should use the Reason*
// constants rather than ad hoc literals.
type Reason string

const (
	ReasonFireRateViolation     Reason = "fire_rate_violation"
	ReasonFireAngleWarn         Reason = "fire_angle_warn"
	ReasonFireAngleHardReject   Reason = "fire_angle_hard_reject"
	ReasonFireOriginInvalid     Reason = "fire_origin_invalid"
	ReasonFireChargeInsufficient Reason = "fire_charge_insufficient"
	ReasonInputSeqWindow        Reason = "input_seq_window_violation"
	ReasonInputInvalid          Reason = "input_invalid"
	ReasonInputToggleSpam       Reason = "input_toggle_spam"
)

// RateLimitReason builds the `rate_limit:<event>` reason string for a
// token-bucket rejection on a named event.
func RateLimitReason(event string) Reason {
	return Reason("rate_limit:" + event)
}

// Escalation describes what happened as a result of a recorded strike:
// whether a new level was crossed (for the antiCheatAction broadcast)
// and whether this strike should be logged right now (subject to the
// per-block log cooldown).
type Escalation struct {
	Crossed    bool
	Level      BlockLevel
	ShouldLog  bool
	BlockUntil time.Time
}

// RecordStrike increments state's strike counter inside its rolling
// window (restarting the window on expiry), checks the configured
// thresholds, and returns the resulting escalation. Mutates state.
func RecordStrike(state *StrikeState, cfg config.AntiCheatConfig, now time.Time) Escalation {
	window := time.Duration(cfg.WindowMs) * time.Millisecond
	if state.WindowStart.IsZero() || now.Sub(state.WindowStart) > window {
		state.WindowStart = now
		state.Count = 0
		state.Warned = false
	}
	state.Count++

	esc := Escalation{ShouldLog: shouldLog(state, now, cfg)}

	switch {
	case state.Count >= cfg.HardThreshold && state.Level != BlockHard:
		state.Level = BlockHard
		state.BlockUntil = now.Add(time.Duration(cfg.HardBlockMs) * time.Millisecond)
		esc.Crossed = true
		esc.Level = BlockHard
		esc.BlockUntil = state.BlockUntil
	case state.Count >= cfg.SoftThreshold && state.Level == BlockNone:
		state.Level = BlockSoft
		state.BlockUntil = now.Add(time.Duration(cfg.SoftBlockMs) * time.Millisecond)
		esc.Crossed = true
		esc.Level = BlockSoft
		esc.BlockUntil = state.BlockUntil
	case state.Count >= cfg.WarnThreshold && !state.Warned:
		state.Warned = true
		esc.Crossed = true
		esc.Level = BlockNone
	}

	return esc
}

func shouldLog(state *StrikeState, now time.Time, cfg config.AntiCheatConfig) bool {
	cooldown := time.Duration(cfg.LogCooldownMs) * time.Millisecond
	if state.Level == BlockNone || now.Sub(state.lastLogAt) >= cooldown {
		state.lastLogAt = now
		return true
	}
	return false
}

// Blocked reports whether, under cfg.Mode, state currently blocks
// inputs (hard block) or only fires (soft block). enforceInputs is true
// when a hard block is active in enforce mode; enforceFireOnly is true
// when only fireProjectile should be rejected (soft block, enforce mode).
func Blocked(state *StrikeState, cfg config.AntiCheatConfig, now time.Time) (enforceInputs, enforceFireOnly bool) {
	if cfg.Mode != config.AntiCheatEnforce {
		return false, false
	}
	if state.Level == BlockNone || now.After(state.BlockUntil) {
		return false, false
	}
	if state.Level == BlockHard {
		return true, false
	}
	return false, true
}
