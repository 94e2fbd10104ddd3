package game

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"fightclub/internal/anticheat"
	"fightclub/internal/config"

	"github.com/google/uuid"
)

// KillEvent is what handleKill hands the caller to broadcast as
// playerKilled, plus enough context to drive instant-respawn-used /
// playerRespawn follow-up emits.
type KillEvent struct {
	KillerKey      int
	VictimKey      int
	ChainCount     int
	Tier           KillstreakTier
	InstantRespawn bool
	RemainingCharges int
}

// TickOutcome aggregates everything one room's tick produced, for the
// transport layer to translate into outbound events.
type TickOutcome struct {
	Room         *Room
	JustStarted  bool
	Kills        []KillEvent
	Respawns     []int
	MapHitPoints []Point // projectile hit-effect: map, one per obstacle impact this tick
	BuffRespawns []*Buff
	Frame        Frame
	MatchEnded   bool
	MatchResults []PlayerResult
}

// Engine is the single global tick driver: it owns the room store, the
// map catalog, and the side stores simulation consults, and produces a
// TickOutcome per room per tick. The transport layer supplies the
// broadcast fan-out; Engine itself never touches a socket.
type Engine struct {
	mu sync.Mutex

	Rooms       *RoomStore
	Catalog     *Catalog
	Rewards     *RewardStore
	Results     *MatchResultBuffer
	AntiCheat   *anticheat.AuditLog
	AntiCheatCfg config.AntiCheatConfig
	Sim         config.SimConfig

	rng *rand.Rand
}

// NewEngine wires the simulation side stores together. catalog, rewards
// and results must already be constructed by the caller (cmd/server).
func NewEngine(rooms *RoomStore, catalog *Catalog, rewards *RewardStore, results *MatchResultBuffer, auditLog *anticheat.AuditLog, acCfg config.AntiCheatConfig, simCfg config.SimConfig, rng *rand.Rand) *Engine {
	return &Engine{
		Rooms:        rooms,
		Catalog:      catalog,
		Rewards:      rewards,
		Results:      results,
		AntiCheat:    auditLog,
		AntiCheatCfg: acCfg,
		Sim:          simCfg,
		rng:          rng,
	}
}

// Tick runs one simulation step over every currently live room and
// returns the per-room outcomes the transport layer should broadcast.
// Rooms not in state=playing are skipped for gameplay but still
// advanced through the starting->playing transition.
func (e *Engine) Tick(now time.Time) []TickOutcome {
	outcomes := make([]TickOutcome, 0)
	for _, room := range e.Rooms.AllRooms() {
		if AdvanceStarting(room, now) {
			outcomes = append(outcomes, TickOutcome{Room: room, JustStarted: true})
			continue
		}
		if room.State != RoomPlaying {
			continue
		}
		outcomes = append(outcomes, e.tickRoom(room, now))
	}
	return outcomes
}

func (e *Engine) tickRoom(room *Room, now time.Time) TickOutcome {
	def := e.Catalog.Get(room.SelectedMap)
	outcome := TickOutcome{Room: room}

	dt := time.Duration(float64(time.Second) / float64(e.Sim.TickRate))

	for _, p := range room.Players {
		e.tickPlayer(room, def, p, now)
	}

	outcome.MapHitPoints, outcome.Kills, outcome.Respawns = e.tickProjectiles(room, def, now, dt)
	outcome.BuffRespawns = TickRespawns(room.Buffs, now, e.rng)

	outcome.Frame = BuildFrame(room, now, matchDuration-room.MatchElapsed(now))

	if room.MatchExpired(now) {
		outcome.MatchEnded = true
		outcome.MatchResults = e.endMatch(room, now)
	}

	return outcome
}

func (e *Engine) tickPlayer(room *Room, def *MapDef, p *Player, now time.Time) {
	if p.HP == 0 {
		if !p.DiedAt.IsZero() && now.Sub(p.DiedAt) >= respawnDelay {
			e.respawn(room, def, p)
		}
		return
	}

	p.ExpireBuffs(now)
	if p.Disconnected {
		return
	}

	nx, ny := e.integrateMotion(p, now)
	if !AnyBlocksPlayer(def.Obstacles, nx, ny) {
		p.X, p.Y = ClampToPlayfield(nx, ny)
	}

	p.Angle = NormalizeAngle(p.LatestInput.Angle)
	p.Charging = p.LatestInput.Charging

	PickupCheck(room.Buffs, p, now)
}

func (e *Engine) integrateMotion(p *Player, now time.Time) (float64, float64) {
	in := p.LatestInput
	var dx, dy float64
	if in.W {
		dy--
	}
	if in.S {
		dy++
	}
	if in.A {
		dx--
	}
	if in.D {
		dx++
	}
	if dx == 0 && dy == 0 {
		return p.X, p.Y
	}

	length := math.Hypot(dx, dy)
	dx /= length
	dy /= length

	step := p.Speed(now) / float64(e.Sim.TickRate)
	return p.X + dx*step, p.Y + dy*step
}

func (e *Engine) respawn(room *Room, def *MapDef, p *Player) {
	spawn := room.NextSpawnPoint(def)
	p.Respawn(spawn)
}

func (e *Engine) tickProjectiles(room *Room, def *MapDef, now time.Time, dt time.Duration) (hitPoints []Point, kills []KillEvent, respawns []int) {
	alive := room.Projectiles[:0]
	for _, pr := range room.Projectiles {
		if !pr.Integrate(dt) {
			continue
		}

		if AnyBlocksProjectile(def.Obstacles, pr.X, pr.Y) {
			hitPoints = append(hitPoints, Point{X: pr.X, Y: pr.Y})
			continue
		}

		targets := make([]SweepTarget, 0, len(room.Players))
		keys := make([]int, 0, len(room.Players))
		for key, target := range room.Players {
			if target.ConnID == pr.OwnerConnID {
				continue
			}
			targets = append(targets, SweepTarget{X: target.X, Y: target.Y, Alive: target.Alive()})
			keys = append(keys, key)
		}

		hit, ok := SweepTestPlayers(targets, pr.PrevX, pr.PrevY, pr.X, pr.Y)
		if !ok {
			alive = append(alive, pr)
			continue
		}

		victimKey := keys[hit.Index]
		victim := room.Players[victimKey]
		headshot := IsHeadshot(hit.Distance, victim.HasShield(now))

		if victim.HasShield(now) {
			victim.ShieldExpiry = time.Time{}
		} else if headshot {
			victim.HP = 0
		} else {
			victim.HP--
			if victim.HP < 0 {
				victim.HP = 0
			}
		}

		if victim.HP == 0 {
			killerKey := ownerKey(room, pr.OwnerConnID)
			if killerKey != 0 {
				ke, respawnedKey := e.handleKill(room, def, killerKey, victimKey, now)
				kills = append(kills, ke)
				if respawnedKey != 0 {
					respawns = append(respawns, respawnedKey)
				}
			}
		}
		// projectile is consumed on its first successful hit.
	}
	room.Projectiles = alive
	return hitPoints, kills, respawns
}

func ownerKey(room *Room, connID string) int {
	for key, p := range room.Players {
		if p.ConnID == connID {
			return key
		}
	}
	return 0
}

// handleKill applies the full §4.2 handleKill procedure and returns the
// broadcast-ready KillEvent plus the victim's key if an instant respawn
// fired synchronously this tick (0 otherwise, meaning the 3s delay path
// governs the respawn instead).
func (e *Engine) handleKill(room *Room, def *MapDef, killerKey, victimKey int, now time.Time) (KillEvent, int) {
	killer := room.Players[killerKey]
	victim := room.Players[victimKey]

	killer.Kills++
	killer.Killstreak++
	victim.Deaths++
	victim.Killstreak = 0

	victim.HP = 0
	victim.ShieldExpiry = time.Time{}
	victim.InvisibleExpiry = time.Time{}
	victim.SpeedExpiry = time.Time{}
	victim.Charging = false
	victim.DiedAt = now

	chainCount := room.RecordChainKill(killerKey, now)
	tier := killer.ApplyKillstreakTier()

	ke := KillEvent{KillerKey: killerKey, VictimKey: victimKey, ChainCount: chainCount, Tier: tier}

	if victim.InstantRespawnCharges > 0 {
		victim.InstantRespawnCharges--
		e.respawn(room, def, victim)
		ke.InstantRespawn = true
		ke.RemainingCharges = victim.InstantRespawnCharges
		return ke, victimKey
	}

	return ke, 0
}

// FireProjectile runs input validation, records a strike on rejection,
// and appends a fresh Projectile owned by p on success.
func (e *Engine) FireProjectile(room *Room, def *MapDef, p *Player, angle float64, now time.Time) (*Projectile, ValidationResult) {
	active := 0
	for _, pr := range room.Projectiles {
		if pr.OwnerConnID == p.ConnID {
			active++
		}
	}

	ox, oy, result := ValidateFireProjectile(p, angle, now, FireValidation{Obstacles: def.Obstacles, ActiveProjectiles: active})
	if !result.Accepted {
		result.Escalation = e.strike(p, result.Reason, now)
		return nil, result
	}
	if result.Reason == anticheat.ReasonFireAngleWarn {
		result.Escalation = e.strike(p, result.Reason, now)
	}

	pr := NewProjectile(uuid.NewString(), p.ConnID, ox, oy, angle)
	room.Projectiles = append(room.Projectiles, pr)
	p.LastShot = now
	p.ChargeStart = time.Time{}
	p.Charging = false
	p.LatestInput.Charging = false
	p.InvisibleExpiry = time.Time{}

	return pr, result
}

// ApplyPlayerInput validates in and, on rejection, records a strike.
func (e *Engine) ApplyPlayerInput(p *Player, in InputState, now time.Time) ValidationResult {
	result := ValidatePlayerInput(p, in, now)
	if !result.Accepted {
		result.Escalation = e.strike(p, result.Reason, now)
	}
	return result
}

// strike records one anti-abuse strike for p, appends it (and any
// resulting escalation) to the audit log, and returns the escalation so
// the caller can broadcast antiCheatAction to the affected connection.
func (e *Engine) strike(p *Player, reason anticheat.Reason, now time.Time) anticheat.Escalation {
	esc := anticheat.RecordStrike(&p.Strikes, e.AntiCheatCfg, now)
	if e.AntiCheat == nil {
		return esc
	}
	if esc.ShouldLog {
		e.AntiCheat.Append(anticheat.Entry{
			Stream:   anticheat.StreamRecent,
			Reason:   string(reason),
			PlayerID: p.PersistentID,
			ConnID:   p.ConnID,
		}, p.PersistentID)
	}
	if esc.Crossed {
		e.AntiCheat.Append(anticheat.Entry{
			Stream:   anticheat.StreamEscalations,
			Reason:   string(reason),
			Action:   fmt.Sprintf("level=%d", esc.Level),
			PlayerID: p.PersistentID,
			ConnID:   p.ConnID,
		}, p.PersistentID)
	}
	return esc
}

// endMatch runs the §4.2 step 5 game-end procedure: snapshot results,
// store them pending, finalize reward flags, and reset the room to lobby.
func (e *Engine) endMatch(room *Room, now time.Time) []PlayerResult {
	results := make([]PlayerResult, 0, len(room.Players))
	for _, p := range room.Players {
		results = append(results, PlayerResult{
			PersistentID: p.PersistentID,
			DisplayName:  p.DisplayName,
			Kills:        p.Kills,
			Deaths:       p.Deaths,
			Killstreak:   p.Killstreak,
		})
		e.Rewards.FinalizeMatch(p.PersistentID, p.GrantedRespawnCharges, p.InstantRespawnCharges, now)
	}

	e.Results.Store(room.Code, results, now)
	room.LastResults = &MatchResultsSnapshot{EndedAt: now, Players: results, SeenBy: make(map[string]bool)}

	room.State = RoomLobby
	room.MatchStartAt = time.Time{}
	room.Projectiles = nil
	room.Buffs = nil

	for _, p := range room.Players {
		p.Ready = p.Key == room.LeaderKey
	}

	return results
}
