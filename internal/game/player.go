package game

import (
	"time"

	"fightclub/internal/anticheat"
)

// InputState is the latest validated playerInput payload for a player.
type InputState struct {
	W, A, S, D bool
	Angle      float64
	Charging   bool
	Seq        int64
}

// InputIntegrity is the per-player toggle-spam accounting described in
// §4.6: a windowed point meter fed by rapid movement-bit flips, reset
// when its window expires.
type InputIntegrity struct {
	LastMask     uint8
	LastEventAt  time.Time
	TogglePoints float64
	WindowStart  time.Time
}

// KillstreakTier names the cosmetic/mechanical tag attached at a
// killstreak threshold. Only extraCore has a mechanical effect (max HP).
type KillstreakTier string

const (
	TierNone       KillstreakTier = ""
	TierExtraCore  KillstreakTier = "extraCore"
	TierMomentum   KillstreakTier = "momentum"
	TierFastCharge KillstreakTier = "fastCharge"
	TierSteadyAim  KillstreakTier = "steadyAim"
	TierLegendary  KillstreakTier = "legendary"
)

// killstreakTierAt returns the tier tag attached at a given killstreak
// count, or TierNone if the count doesn't land exactly on a tier.
func killstreakTierAt(streak int) KillstreakTier {
	switch streak {
	case 3:
		return TierExtraCore
	case 5:
		return TierMomentum
	case 7:
		return TierFastCharge
	case 9:
		return TierSteadyAim
	case 12:
		return TierLegendary
	default:
		return TierNone
	}
}

const (
	baseMaxHP      = 3
	extraCoreMaxHP = 4
	baseSpeed      = 127.05 // px/s
	speedBoostMul  = 1.25
	chargingMul    = 0.5
	respawnDelay   = 3000 * time.Millisecond
	buffRespawnGap = 6000 * time.Millisecond
	chainWindow    = 6000 * time.Millisecond
	fireCooldown   = 140 * time.Millisecond
	requiredCharge = 1000 * time.Millisecond
	fastChargeReq  = 850 * time.Millisecond
	chargeGraceMs  = 90 * time.Millisecond
	maxProjectiles = 8
)

// Player is a room-local in-match player record. It is keyed by a stable
// room-local PlayerKey; the Transport Adapter maintains the connection
// id -> PlayerKey side index so a reconnect never has to relocate this
// record across map keys (see the design-notes rationale for a typed
// rewrite of the source's connection-id-keyed approach).
type Player struct {
	Key          int
	ConnID       string
	PersistentID string
	ProfileID    string
	DisplayName  string

	Ready        bool
	Disconnected bool

	X, Y  float64
	Angle float64

	HP    int
	MaxHP int

	Kills      int
	Deaths     int
	Killstreak int

	ShieldExpiry    time.Time
	InvisibleExpiry time.Time
	SpeedExpiry     time.Time

	Charging    bool
	ChargeStart time.Time
	LastShot    time.Time
	DiedAt      time.Time

	InputSeqHighWater int64
	LatestInput       InputState
	LastInputAt       time.Time
	Integrity         InputIntegrity

	InstantRespawnCharges int
	GrantedRespawnCharges int

	Strikes anticheat.StrikeState
}

// NewPlayer creates a fresh lobby-stage Player record. Ready defaults to
// false; the caller sets it true for a leader created via createRoom.
func NewPlayer(key int, connID, persistentID, displayName string) *Player {
	return &Player{
		Key:          key,
		ConnID:       connID,
		PersistentID: persistentID,
		DisplayName:  displayName,
		MaxHP:        baseMaxHP,
		HP:           baseMaxHP,
	}
}

// Alive reports whether the player currently has HP.
func (p *Player) Alive() bool {
	return p.HP > 0
}

// HasShield reports whether the player's shield buff is currently active.
func (p *Player) HasShield(now time.Time) bool {
	return !p.ShieldExpiry.IsZero() && now.Before(p.ShieldExpiry)
}

// IsInvisible reports whether the player's invisibility buff is active.
func (p *Player) IsInvisible(now time.Time) bool {
	return !p.InvisibleExpiry.IsZero() && now.Before(p.InvisibleExpiry)
}

// HasSpeedBoost reports whether the player's speed buff is active.
func (p *Player) HasSpeedBoost(now time.Time) bool {
	return !p.SpeedExpiry.IsZero() && now.Before(p.SpeedExpiry)
}

// ExpireBuffs clears any timed buff whose expiry has passed.
func (p *Player) ExpireBuffs(now time.Time) {
	if !p.ShieldExpiry.IsZero() && !now.Before(p.ShieldExpiry) {
		p.ShieldExpiry = time.Time{}
	}
	if !p.InvisibleExpiry.IsZero() && !now.Before(p.InvisibleExpiry) {
		p.InvisibleExpiry = time.Time{}
	}
	if !p.SpeedExpiry.IsZero() && !now.Before(p.SpeedExpiry) {
		p.SpeedExpiry = time.Time{}
	}
}

// Speed computes the player's current movement speed given its active
// buffs and charging state, per §4.2's composition rule.
func (p *Player) Speed(now time.Time) float64 {
	speed := baseSpeed
	if p.HasSpeedBoost(now) {
		speed *= speedBoostMul
	}
	if p.Charging {
		speed *= chargingMul
	}
	return speed
}

// RequiredChargeDuration returns the charge hold time fireProjectile
// requires, shortened once the killstreak reaches fastCharge tier (7+).
func (p *Player) RequiredChargeDuration() time.Duration {
	if p.Killstreak >= 7 {
		return fastChargeReq
	}
	return requiredCharge
}

// ApplyKillstreakTier updates MaxHP (and heals one point) the moment the
// killer crosses the extraCore tier; other tiers are cosmetic tags only,
// returned to the caller to attach to the broadcast playerKilled event.
func (p *Player) ApplyKillstreakTier() KillstreakTier {
	tier := killstreakTierAt(p.Killstreak)
	if tier == TierExtraCore {
		p.MaxHP = extraCoreMaxHP
		if p.HP < p.MaxHP {
			p.HP++
		}
	}
	return tier
}

// Respawn runs the respawn procedure: round-robin spawn placement, HP
// and MaxHP reset (undoing extraCore), and a full clear of transient
// per-life state. The input sequence high-water mark is preserved.
func (p *Player) Respawn(spawn Point) {
	p.X, p.Y = spawn.X, spawn.Y
	p.HP = baseMaxHP
	p.MaxHP = baseMaxHP
	p.ShieldExpiry = time.Time{}
	p.InvisibleExpiry = time.Time{}
	p.SpeedExpiry = time.Time{}
	p.Charging = false
	p.ChargeStart = time.Time{}
	p.LastShot = time.Time{}
	p.DiedAt = time.Time{}
	p.LatestInput = InputState{}
}

// ResetForMatch clears all per-match state at startGame, keeping the
// player's identity fields and ready state intact.
func (p *Player) ResetForMatch(spawn Point, instantRespawnCharges int) {
	p.Respawn(spawn)
	p.Kills = 0
	p.Deaths = 0
	p.Killstreak = 0
	p.InputSeqHighWater = 0
	p.Integrity = InputIntegrity{}
	p.Strikes = anticheat.StrikeState{}
	p.InstantRespawnCharges = instantRespawnCharges
	p.GrantedRespawnCharges = instantRespawnCharges
	p.Disconnected = false
}
