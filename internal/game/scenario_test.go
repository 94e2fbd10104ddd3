package game

import (
	"math/rand"
	"testing"
	"time"

	"fightclub/internal/anticheat"
	"fightclub/internal/config"
)

// newScenarioEngine wires the same stack cmd/server does, but with a
// deterministic rng and no audit log file, for the end-to-end scenarios
// below. The two players A (leader) and B both sit in room at lobby.
func newScenarioEngine(t *testing.T) (engine *Engine, room *Room, a, b *Player) {
	t.Helper()
	cat, err := LoadEmbeddedCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	rooms := NewRoomStore(rand.New(rand.NewSource(7)))
	engine = NewEngine(rooms, cat, NewRewardStore(), NewMatchResultBuffer(), nil, config.DefaultAntiCheat(), config.DefaultSim(), rand.New(rand.NewSource(8)))

	room, leader := CreateRoom(rooms, "device-a", "conn-a", "A")
	joined, _, err := JoinRoom(rooms, room.Code, "device-b", "conn-b", "B")
	if err != nil {
		t.Fatalf("join room: %v", err)
	}
	room = joined
	a = room.Players[leader.Key]
	b = room.PlayerByPersistentID("device-b")
	b.Ready = true

	return engine, room, a, b
}

func startMatch(t *testing.T, engine *Engine, room *Room, leaderKey int, now time.Time) {
	t.Helper()
	ids := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		ids = append(ids, p.PersistentID)
	}
	pending := engine.Rewards.PendingSet(ids)
	if _, err := StartGame(room, leaderKey, engine.Catalog, MapForest, pending, now); err != nil {
		t.Fatalf("start game: %v", err)
	}
	for _, p := range room.Players {
		engine.Rewards.Consume(p.PersistentID, now)
	}
	if !AdvanceStarting(room, now.Add(startingToCountdownDelay)) {
		t.Fatal("expected the room to leave starting state once the countdown elapses")
	}
}

// Scenario 1: headshot kill — B charges then fires a centred shot at A
// from 500px away; A dies instantly and respawns 3s later at full HP.
func TestScenarioHeadshotKill(t *testing.T) {
	engine, room, a, b := newScenarioEngine(t)
	now := time.Now()
	startMatch(t, engine, room, a.Key, now)

	def := engine.Catalog.Get(room.SelectedMap)
	a.X, a.Y = 2700, 1000
	b.X, b.Y = 2200, 1000 // 500px to A's left, angle 0 points straight at A, clear of every obstacle on this map

	engine.ApplyPlayerInput(b, InputState{Angle: 0, Charging: true, Seq: 1}, now)
	fireTime := now.Add(requiredCharge)
	pr, result := engine.FireProjectile(room, def, b, 0, fireTime)
	if !result.Accepted {
		t.Fatalf("expected the charged shot to be accepted, got %+v", result)
	}

	// Place the projectile 100px short of A; one 200ms step (about
	// 174px) sweeps it across A's centre.
	pr.X, pr.Y = a.X-100, a.Y
	room.Projectiles = []*Projectile{pr}

	_, kills, _ := engine.tickProjectiles(room, def, fireTime, 200*time.Millisecond)
	if len(kills) != 1 {
		t.Fatalf("expected exactly one kill, got %d", len(kills))
	}
	ke := kills[0]
	if ke.VictimKey != a.Key || ke.KillerKey != b.Key {
		t.Fatalf("expected B to kill A, got killer=%d victim=%d", ke.KillerKey, ke.VictimKey)
	}
	if a.HP != 0 {
		t.Fatalf("expected A's HP to drop to 0 on headshot, got %d", a.HP)
	}

	respawnTime := fireTime.Add(respawnDelay + time.Millisecond)
	engine.tickPlayer(room, def, a, respawnTime)
	if a.HP != baseMaxHP {
		t.Fatalf("expected A respawned at full HP after the delay, got %d", a.HP)
	}
}

// Scenario 2: a shield absorbs one headshot, then breaks.
func TestScenarioShieldAbsorbsHeadshot(t *testing.T) {
	engine, room, a, b := newScenarioEngine(t)
	now := time.Now()
	startMatch(t, engine, room, a.Key, now)
	def := engine.Catalog.Get(room.SelectedMap)

	b.ShieldExpiry = now.Add(6 * time.Second)
	if !b.HasShield(now) {
		t.Fatal("expected B to carry an active shield")
	}

	a.X, a.Y = 2200, 1000
	b.X, b.Y = 2600, 1000 // 400px away, angle 0 from A toward B, clear of every obstacle on this map

	engine.ApplyPlayerInput(a, InputState{Angle: 0, Charging: true, Seq: 1}, now)
	fireTime := now.Add(requiredCharge)
	pr, result := engine.FireProjectile(room, def, a, 0, fireTime)
	if !result.Accepted {
		t.Fatalf("expected the shot at B to be accepted, got %+v", result)
	}
	// Place the projectile 100px short of B; one 200ms step (about
	// 174px) sweeps it across B's centre.
	pr.X, pr.Y = b.X-100, b.Y
	room.Projectiles = []*Projectile{pr}

	_, kills, _ := engine.tickProjectiles(room, def, fireTime, 200*time.Millisecond)
	if len(kills) != 0 {
		t.Fatalf("expected the shielded hit not to kill B, got %d kills", len(kills))
	}
	if b.HP != baseMaxHP {
		t.Fatalf("expected B's HP untouched behind the shield, got %d", b.HP)
	}
	if b.HasShield(fireTime) {
		t.Fatal("expected the shield to break on absorbing the hit")
	}

	// A second shot within the same window now damages B normally.
	engine.ApplyPlayerInput(a, InputState{Angle: 0, Charging: true, Seq: 2}, fireTime.Add(fireCooldown))
	secondFire := fireTime.Add(fireCooldown + requiredCharge)
	pr2, result2 := engine.FireProjectile(room, def, a, 0, secondFire)
	if !result2.Accepted {
		t.Fatalf("expected the second shot to be accepted, got %+v", result2)
	}
	// Offset the path past the headshot threshold (16px) but still
	// within hit radius, so this lands as a body hit, not a kill.
	pr2.X, pr2.Y = b.X-100, b.Y+18
	room.Projectiles = []*Projectile{pr2}

	_, kills2, _ := engine.tickProjectiles(room, def, secondFire, 200*time.Millisecond)
	if len(kills2) != 0 {
		t.Fatalf("expected the second hit to damage rather than kill B, got %d kills", len(kills2))
	}
	if b.HP != baseMaxHP-1 {
		t.Fatalf("expected B to take one point of normal damage once unshielded, got HP=%d", b.HP)
	}
}

// Scenario 3: B disconnects mid-match, then reconnects with the same
// persistent id and is rebound without losing the room or leader state.
func TestScenarioReconnectMidMatch(t *testing.T) {
	engine, room, a, b := newScenarioEngine(t)
	now := time.Now()
	startMatch(t, engine, room, a.Key, now)
	def := engine.Catalog.Get(room.SelectedMap)

	disconnectAt := now.Add(60 * time.Second)
	b.Disconnected = true
	bx, by := b.X, b.Y

	// While disconnected, motion does not advance even under input.
	b.LatestInput = InputState{D: true}
	engine.tickPlayer(room, def, b, disconnectAt)
	if b.X != bx || b.Y != by {
		t.Fatal("expected a disconnected player's position to stay fixed")
	}

	reconnectAt := now.Add(75 * time.Second)
	guard := NewReconnectGuard()
	if !guard.Allow("device-b", reconnectAt) {
		t.Fatal("expected the first reconnect attempt to be allowed")
	}
	result, ok := Rebind(room, "device-b", "conn-b-2")
	if !ok {
		t.Fatal("expected Rebind to find B's disconnected record")
	}
	if result.OldConnID != "conn-b" {
		t.Fatalf("expected old conn id conn-b, got %q", result.OldConnID)
	}
	if b.Disconnected {
		t.Fatal("expected B's record to be marked reconnected")
	}
	if b.InputSeqHighWater != 0 {
		t.Fatal("expected the input sequence high-water mark reset on reconnect")
	}
	if room.LeaderKey != a.Key {
		t.Fatal("expected A to remain leader through B's reconnect")
	}

	matchEndAt := room.MatchStartAt.Add(matchDuration)
	if !room.MatchExpired(matchEndAt) {
		t.Fatal("expected the match to end at its duration cap despite the mid-match reconnect")
	}
}

// Scenario 4: a granted instant-respawn reward is consumed across two
// deaths with no delay, then the flag clears at match end.
func TestScenarioInstantRespawnReward(t *testing.T) {
	engine, room, a, b := newScenarioEngine(t)
	now := time.Now()

	engine.Rewards.SetPending("device-b", now)
	startMatch(t, engine, room, a.Key, now)
	def := engine.Catalog.Get(room.SelectedMap)

	if b.GrantedRespawnCharges != 3 || b.InstantRespawnCharges != 3 {
		t.Fatalf("expected B granted 3 instant-respawn charges, got granted=%d remaining=%d", b.GrantedRespawnCharges, b.InstantRespawnCharges)
	}

	ke1, respawned1 := engine.handleKill(room, def, a.Key, b.Key, now.Add(time.Second))
	if !ke1.InstantRespawn || respawned1 != b.Key {
		t.Fatal("expected B's first death to respawn instantly")
	}
	if ke1.RemainingCharges != 2 {
		t.Fatalf("expected 2 charges remaining after first death, got %d", ke1.RemainingCharges)
	}

	ke2, respawned2 := engine.handleKill(room, def, a.Key, b.Key, now.Add(2*time.Second))
	if !ke2.InstantRespawn || respawned2 != b.Key {
		t.Fatal("expected B's second death to also respawn instantly")
	}
	if ke2.RemainingCharges != 1 {
		t.Fatalf("expected 1 charge remaining after second death, got %d", ke2.RemainingCharges)
	}

	matchEndAt := now.Add(matchDuration + time.Second)
	engine.endMatch(room, matchEndAt)
	// B still has 1 of its 3 charges remaining, so charges were consumed
	// (remaining != granted) and the flag should NOT be restored —
	// confirms FinalizeMatch only restores on zero-consumption.
	if engine.Rewards.PendingSet([]string{"device-b"})["device-b"] {
		t.Fatal("expected the reward flag to stay cleared once charges were partially consumed")
	}
}

// Scenario 5: fire-rate abuse escalates through warn -> soft -> hard
// block as D's strike count crosses each configured threshold.
func TestScenarioFireRateAbuseEscalates(t *testing.T) {
	engine, room, a, _ := newScenarioEngine(t)
	now := time.Now()
	startMatch(t, engine, room, a.Key, now)
	def := engine.Catalog.Get(room.SelectedMap)

	d := room.AddPlayer("conn-d", "device-d", "D")
	d.X, d.Y = 1700, 1000 // open ground, clear of every obstacle on this map

	var lastLevel anticheat.BlockLevel
	for i := 0; i < 12; i++ {
		at := now.Add(time.Duration(i) * 50 * time.Millisecond)
		engine.ApplyPlayerInput(d, InputState{Angle: 0, Charging: true, Seq: int64(i + 1)}, at)
		_, result := engine.FireProjectile(room, def, d, 0, at)
		if !result.Accepted {
			lastLevel = d.Strikes.Level
		}
	}

	if d.Strikes.Count < config.DefaultAntiCheat().WarnThreshold {
		t.Fatalf("expected D's strike count to cross the warn threshold, got %d", d.Strikes.Count)
	}
	if lastLevel == anticheat.BlockNone {
		t.Fatal("expected repeated rapid-fire rejection to escalate D's block level")
	}
}

// Scenario 6: party invite happy path — F accepts E's invite and is
// seated as a non-ready member of E's room.
func TestScenarioPartyInviteHappyPath(t *testing.T) {
	rooms := NewRoomStore(rand.New(rand.NewSource(9)))
	room, leader := CreateRoom(rooms, "device-e", "conn-e", "E")

	// The party-invite handshake itself lives at the transport layer
	// (ephemeral, TTL-bound); here we exercise the room-side effect an
	// accepted invite has: F is joined as a non-ready member.
	room2, f, err := JoinRoom(rooms, room.Code, "device-f", "conn-f", "F")
	if err != nil {
		t.Fatalf("expected F to join E's room on invite acceptance, got %v", err)
	}
	if f.Ready {
		t.Fatal("expected F seated as a non-ready member")
	}
	if room2.LeaderKey != leader.Key {
		t.Fatal("expected E to remain leader after F joins via invite")
	}
	if len(room2.Players) != 2 {
		t.Fatalf("expected 2 members in the room after F joins, got %d", len(room2.Players))
	}
}
