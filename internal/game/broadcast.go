package game

import "time"

const (
	fullSnapshotInterval = 1000 * time.Millisecond

	posEpsilon   = 0.01
	velEpsilon   = 0.01
	angleEpsilon = 0.001
)

// PlayerSnapshot is the wire shape of one player's visible state.
type PlayerSnapshot struct {
	Key         int
	DisplayName string
	X, Y        float64
	Angle       float64
	HP, MaxHP   int
	Kills       int
	Deaths      int
	Killstreak  int
	HasShield   bool
	Invisible   bool
	SpeedBoost  bool
	ShieldExp   time.Time
	InvisExp    time.Time
	SpeedExp    time.Time
	Charging    bool
	LastInputSeq int64
}

// ProjectileSnapshot is the wire shape of one in-flight projectile.
type ProjectileSnapshot struct {
	ID      string
	OwnerID string
	X, Y    float64
	VX, VY  float64
	Angle   float64
}

// BuffSnapshot is the wire shape of one world buff.
type BuffSnapshot struct {
	ID     int
	X, Y   float64
	Type   BuffType
	Active bool
	Taken  time.Time
}

// FrameMode distinguishes a full-snapshot broadcast from a delta one.
type FrameMode string

const (
	ModeSnapshot FrameMode = "snapshot"
	ModeDelta    FrameMode = "delta"
)

// Frame is one tick's outbound stateUpdate payload.
type Frame struct {
	Mode FrameMode

	Players     []PlayerSnapshot
	Projectiles []ProjectileSnapshot
	Buffs       []BuffSnapshot

	PlayerUpserts     []PlayerSnapshot
	PlayerRemoved     []int
	ProjectileUpserts []ProjectileSnapshot
	ProjectileRemoved []string
	BuffUpserts       []BuffSnapshot
	BuffRemoved       []int

	ServerTime        time.Time
	MatchRemainingSec float64
}

func snapshotPlayer(p *Player, now time.Time) PlayerSnapshot {
	return PlayerSnapshot{
		Key:          p.Key,
		DisplayName:  p.DisplayName,
		X:            p.X,
		Y:            p.Y,
		Angle:        p.Angle,
		HP:           p.HP,
		MaxHP:        p.MaxHP,
		Kills:        p.Kills,
		Deaths:       p.Deaths,
		Killstreak:   p.Killstreak,
		HasShield:    p.HasShield(now),
		Invisible:    p.IsInvisible(now),
		SpeedBoost:   p.HasSpeedBoost(now),
		ShieldExp:    p.ShieldExpiry,
		InvisExp:     p.InvisibleExpiry,
		SpeedExp:     p.SpeedExpiry,
		Charging:     p.Charging,
		LastInputSeq: p.LatestInput.Seq,
	}
}

func snapshotProjectile(pr *Projectile) ProjectileSnapshot {
	return ProjectileSnapshot{
		ID:      pr.ID,
		OwnerID: pr.OwnerConnID,
		X:       pr.X,
		Y:       pr.Y,
		VX:      pr.VX,
		VY:      pr.VY,
		Angle:   pr.Angle,
	}
}

func snapshotBuff(b *Buff) BuffSnapshot {
	return BuffSnapshot{ID: b.ID, X: b.X, Y: b.Y, Type: b.Type, Active: b.Active, Taken: b.Taken}
}

func approxEqual(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func playerChanged(prev, cur PlayerSnapshot) bool {
	return !approxEqual(prev.X, cur.X, posEpsilon) ||
		!approxEqual(prev.Y, cur.Y, posEpsilon) ||
		!approxEqual(prev.Angle, cur.Angle, angleEpsilon) ||
		prev.HP != cur.HP || prev.MaxHP != cur.MaxHP ||
		prev.Kills != cur.Kills || prev.Deaths != cur.Deaths || prev.Killstreak != cur.Killstreak ||
		prev.HasShield != cur.HasShield || prev.Invisible != cur.Invisible || prev.SpeedBoost != cur.SpeedBoost ||
		!prev.ShieldExp.Equal(cur.ShieldExp) || !prev.InvisExp.Equal(cur.InvisExp) || !prev.SpeedExp.Equal(cur.SpeedExp) ||
		prev.Charging != cur.Charging || prev.LastInputSeq != cur.LastInputSeq
}

func projectileChanged(prev, cur ProjectileSnapshot) bool {
	return !approxEqual(prev.X, cur.X, posEpsilon) ||
		!approxEqual(prev.Y, cur.Y, posEpsilon) ||
		!approxEqual(prev.VX, cur.VX, velEpsilon) ||
		!approxEqual(prev.VY, cur.VY, velEpsilon) ||
		!approxEqual(prev.Angle, cur.Angle, angleEpsilon)
}

func buffChanged(prev, cur BuffSnapshot) bool {
	return prev.Type != cur.Type || prev.Active != cur.Active || !prev.Taken.Equal(cur.Taken)
}

// BuildFrame snapshots r's current world state, diffs it against the
// room's last-emitted maps, and returns the Frame to broadcast this
// tick. It always mutates r.Sync to the new baseline.
func BuildFrame(r *Room, now time.Time, matchRemaining time.Duration) Frame {
	curPlayers := make(map[int]PlayerSnapshot, len(r.Players))
	for key, p := range r.Players {
		curPlayers[key] = snapshotPlayer(p, now)
	}
	curProjectiles := make(map[string]ProjectileSnapshot, len(r.Projectiles))
	for _, pr := range r.Projectiles {
		curProjectiles[pr.ID] = snapshotProjectile(pr)
	}
	curBuffs := make(map[int]BuffSnapshot, len(r.Buffs))
	for _, b := range r.Buffs {
		curBuffs[b.ID] = snapshotBuff(b)
	}

	full := r.Sync.LastPlayers == nil || now.Sub(r.Sync.LastFullSnapshotAt) >= fullSnapshotInterval

	frame := Frame{
		ServerTime:        now,
		MatchRemainingSec: matchRemaining.Seconds(),
	}

	if full {
		frame.Mode = ModeSnapshot
		for _, ps := range curPlayers {
			frame.Players = append(frame.Players, ps)
		}
		for _, ps := range curProjectiles {
			frame.Projectiles = append(frame.Projectiles, ps)
		}
		for _, bs := range curBuffs {
			frame.Buffs = append(frame.Buffs, bs)
		}
		r.Sync.LastFullSnapshotAt = now
	} else {
		frame.Mode = ModeDelta
		for key, cur := range curPlayers {
			if prev, ok := r.Sync.LastPlayers[key]; !ok || playerChanged(prev, cur) {
				frame.PlayerUpserts = append(frame.PlayerUpserts, cur)
			}
		}
		for key := range r.Sync.LastPlayers {
			if _, ok := curPlayers[key]; !ok {
				frame.PlayerRemoved = append(frame.PlayerRemoved, key)
			}
		}
		for id, cur := range curProjectiles {
			if prev, ok := r.Sync.LastProjectiles[id]; !ok || projectileChanged(prev, cur) {
				frame.ProjectileUpserts = append(frame.ProjectileUpserts, cur)
			}
		}
		for id := range r.Sync.LastProjectiles {
			if _, ok := curProjectiles[id]; !ok {
				frame.ProjectileRemoved = append(frame.ProjectileRemoved, id)
			}
		}
		for id, cur := range curBuffs {
			if prev, ok := r.Sync.LastBuffs[id]; !ok || buffChanged(prev, cur) {
				frame.BuffUpserts = append(frame.BuffUpserts, cur)
			}
		}
		for id := range r.Sync.LastBuffs {
			if _, ok := curBuffs[id]; !ok {
				frame.BuffRemoved = append(frame.BuffRemoved, id)
			}
		}
	}

	r.Sync.LastPlayers = curPlayers
	r.Sync.LastProjectiles = curProjectiles
	r.Sync.LastBuffs = curBuffs

	return frame
}
