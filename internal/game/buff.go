package game

import (
	"math/rand"
	"time"
)

// BuffType is the pickup effect a Buff currently grants.
type BuffType string

const (
	BuffHealth    BuffType = "health"
	BuffShield    BuffType = "shield"
	BuffInvisible BuffType = "invisible"
	BuffSpeed     BuffType = "speed"
)

var allBuffTypes = []BuffType{BuffHealth, BuffShield, BuffInvisible, BuffSpeed}

const (
	buffRespawnDelay  = 6000 * time.Millisecond
	buffEffectShield  = 6000 * time.Millisecond
	buffEffectInvis   = 6000 * time.Millisecond
	buffEffectSpeed   = 6000 * time.Millisecond
	buffPickupRadius  = PlayerRadius + 12
)

// Buff is a single world pickup bound to one of a map's fixed buff spawn
// points. Only Type and Active/Taken change over the buff's lifetime; its
// Id and position are fixed for the life of the room.
type Buff struct {
	ID     int
	X, Y   float64
	Type   BuffType
	Active bool
	Taken  time.Time
}

// NewBuffsForMap creates one active, randomly-typed Buff per buff spawn
// point in def, per the fixed-6-spawn-point rule.
func NewBuffsForMap(def *MapDef, rng *rand.Rand) []*Buff {
	buffs := make([]*Buff, 0, len(def.BuffSpawns))
	for i, p := range def.BuffSpawns {
		buffs = append(buffs, &Buff{
			ID:     i,
			X:      p.X,
			Y:      p.Y,
			Type:   randomBuffType(rng),
			Active: true,
		})
	}
	return buffs
}

func randomBuffType(rng *rand.Rand) BuffType {
	return allBuffTypes[rng.Intn(len(allBuffTypes))]
}

// TickRespawns reactivates any inactive buff whose respawn delay has
// elapsed, re-randomizing its type. Returns the buffs that just
// respawned this tick, for the caller to emit buffRespawn events for.
func TickRespawns(buffs []*Buff, now time.Time, rng *rand.Rand) []*Buff {
	var respawned []*Buff
	for _, b := range buffs {
		if b.Active || b.Taken.IsZero() {
			continue
		}
		if now.Sub(b.Taken) >= buffRespawnDelay {
			b.Type = randomBuffType(rng)
			b.Active = true
			b.Taken = time.Time{}
			respawned = append(respawned, b)
		}
	}
	return respawned
}

// PickupCheck finds the first active buff within pickup range of p and
// applies its effect, deactivating it. Returns nil if no buff was
// picked up this tick.
func PickupCheck(buffs []*Buff, p *Player, now time.Time) *Buff {
	if !p.Alive() {
		return nil
	}
	for _, b := range buffs {
		if !b.Active {
			continue
		}
		dx, dy := p.X-b.X, p.Y-b.Y
		if dx*dx+dy*dy > buffPickupRadius*buffPickupRadius {
			continue
		}
		applyBuff(b.Type, p, now)
		b.Active = false
		b.Taken = now
		return b
	}
	return nil
}

func applyBuff(t BuffType, p *Player, now time.Time) {
	switch t {
	case BuffHealth:
		if p.HP < p.MaxHP {
			p.HP++
		}
	case BuffShield:
		p.ShieldExpiry = now.Add(buffEffectShield)
	case BuffInvisible:
		p.InvisibleExpiry = now.Add(buffEffectInvis)
	case BuffSpeed:
		p.SpeedExpiry = now.Add(buffEffectSpeed)
	}
}
