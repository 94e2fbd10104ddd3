package game

import (
	"math"
	"time"

	"fightclub/internal/anticheat"
)

const (
	inputSeqBehindTolerance = 2
	inputSeqAheadTolerance  = 200
	inputSeqMax             = 1_000_000_000

	togglePointsLimit  = 45.0
	toggleWindowMs     = 1500 * time.Millisecond
	toggleWeightFast   = 3.0 // Δt < 50ms
	toggleWeightMedium = 2.0 // Δt < 100ms
	toggleWeightSlow   = 1.0

	fireStaleInputAge = 4 * time.Second
	muzzleDistance    = 25.0

	fireAngleWarnRad   = 1.8
	fireAngleRejectRad = 2.75

	bitW = uint8(1 << 0)
	bitA = uint8(1 << 1)
	bitS = uint8(1 << 2)
	bitD = uint8(1 << 3)
)

// ValidationResult is the outcome of validating one inbound event: it
// is either accepted, or rejected with a strike reason to record.
// Escalation is filled in by the caller (Engine) once the reason has
// been run through the anti-abuse strike ledger — zero value means no
// threshold was crossed this event.
type ValidationResult struct {
	Accepted   bool
	Reason     anticheat.Reason
	Escalation anticheat.Escalation
}

func accepted() ValidationResult { return ValidationResult{Accepted: true} }

func rejected(reason anticheat.Reason) ValidationResult {
	return ValidationResult{Accepted: false, Reason: reason}
}

// ValidatePlayerInput checks a playerInput payload's sequence window and
// angle finiteness, advances the high-water mark on success, and runs
// the toggle-spam meter. Mutates p.Integrity and, on success, replaces
// p.LatestInput.
func ValidatePlayerInput(p *Player, in InputState, now time.Time) ValidationResult {
	if in.Seq < 0 || in.Seq > inputSeqMax {
		return rejected(anticheat.ReasonInputSeqWindow)
	}
	if in.Seq < p.InputSeqHighWater-inputSeqBehindTolerance || in.Seq > p.InputSeqHighWater+inputSeqAheadTolerance {
		return rejected(anticheat.ReasonInputSeqWindow)
	}
	if math.IsNaN(in.Angle) || math.IsInf(in.Angle, 0) {
		return rejected(anticheat.ReasonInputInvalid)
	}

	if in.Seq > p.InputSeqHighWater {
		p.InputSeqHighWater = in.Seq
	}

	mask := inputMask(in)
	if toggleSpamStrike(p, mask, now) {
		recordToggleWindowReset(p, now)
		return rejected(anticheat.ReasonInputToggleSpam)
	}

	wasCharging := p.Charging
	p.Charging = in.Charging
	if in.Charging && !wasCharging {
		p.ChargeStart = now
	} else if !in.Charging && wasCharging {
		p.ChargeStart = time.Time{}
	}

	in.Angle = NormalizeAngle(in.Angle)
	p.LatestInput = in
	p.LastInputAt = now
	return accepted()
}

func inputMask(in InputState) uint8 {
	var m uint8
	if in.W {
		m |= bitW
	}
	if in.A {
		m |= bitA
	}
	if in.S {
		m |= bitS
	}
	if in.D {
		m |= bitD
	}
	return m
}

// toggleSpamStrike adds to the toggle-spam meter, whose points reset to
// zero once its 1500ms window has expired, and reports whether this
// event brought it to the 45-point threshold inside that window.
func toggleSpamStrike(p *Player, mask uint8, now time.Time) bool {
	integ := &p.Integrity

	if integ.WindowStart.IsZero() || now.Sub(integ.WindowStart) > toggleWindowMs {
		integ.WindowStart = now
		integ.TogglePoints = 0
	}

	changed := mask != integ.LastMask
	opposite := (mask&bitW != 0 && mask&bitS != 0) || (mask&bitA != 0 && mask&bitD != 0)

	if changed {
		var weight float64
		if !integ.LastEventAt.IsZero() {
			dt := now.Sub(integ.LastEventAt)
			switch {
			case dt < 50*time.Millisecond:
				weight = toggleWeightFast
			case dt < 100*time.Millisecond:
				weight = toggleWeightMedium
			default:
				weight = toggleWeightSlow
			}
		} else {
			weight = toggleWeightSlow
		}
		integ.TogglePoints += weight
	}
	if opposite {
		integ.TogglePoints += toggleWeightSlow
	}

	integ.LastMask = mask
	integ.LastEventAt = now

	return integ.TogglePoints >= togglePointsLimit
}

func recordToggleWindowReset(p *Player, now time.Time) {
	p.Integrity.WindowStart = now
	p.Integrity.TogglePoints = 0
}

// FireValidation is the additional context ValidateFireProjectile needs
// beyond the player and room state: the obstacle set of the active map.
type FireValidation struct {
	Obstacles      []Obstacle
	ActiveProjectiles int
}

// ValidateFireProjectile applies every §4.6 fireProjectile rejection
// rule in order and returns the muzzle origin on success.
func ValidateFireProjectile(p *Player, angle float64, now time.Time, fv FireValidation) (originX, originY float64, result ValidationResult) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0, 0, rejected(anticheat.ReasonInputInvalid)
	}
	if p.LastInputAt.IsZero() || now.Sub(p.LastInputAt) > fireStaleInputAge {
		return 0, 0, rejected(anticheat.ReasonInputInvalid)
	}

	if !p.LastShot.IsZero() && now.Sub(p.LastShot) < fireCooldown {
		return 0, 0, rejected(anticheat.ReasonFireRateViolation)
	}

	required := p.RequiredChargeDuration() - chargeGraceMs
	if p.ChargeStart.IsZero() || now.Sub(p.ChargeStart) < required {
		return 0, 0, rejected(anticheat.ReasonFireChargeInsufficient)
	}

	if fv.ActiveProjectiles >= maxProjectiles {
		return 0, 0, rejected(anticheat.ReasonFireRateViolation)
	}

	delta := angleDelta(angle, p.LatestInput.Angle)
	if delta > fireAngleRejectRad {
		return 0, 0, rejected(anticheat.ReasonFireAngleHardReject)
	}

	ox, oy := MuzzleOrigin(p.X, p.Y, angle, muzzleDistance)
	if AnyBlocksProjectile(fv.Obstacles, ox, oy) {
		return 0, 0, rejected(anticheat.ReasonFireOriginInvalid)
	}
	if SegmentOccluded(fv.Obstacles, p.X, p.Y, ox, oy) {
		return 0, 0, rejected(anticheat.ReasonFireOriginInvalid)
	}

	if delta > fireAngleWarnRad {
		return ox, oy, ValidationResult{Accepted: true, Reason: anticheat.ReasonFireAngleWarn}
	}

	return ox, oy, accepted()
}

func angleDelta(a, b float64) float64 {
	d := NormalizeAngle(a - b)
	if d < 0 {
		d = -d
	}
	return d
}
