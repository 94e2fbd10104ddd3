package game

import (
	"math/rand"
	"testing"
	"time"

	"fightclub/internal/config"
)

func newTestEngine(t *testing.T) (*Engine, *Room, *MapDef) {
	t.Helper()
	cat, err := LoadEmbeddedCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	rooms := NewRoomStore(rand.New(rand.NewSource(1)))
	engine := NewEngine(rooms, cat, NewRewardStore(), NewMatchResultBuffer(), nil, config.DefaultAntiCheat(), config.DefaultSim(), rand.New(rand.NewSource(2)))

	room, _ := CreateRoom(rooms, "device-1", "conn-1", "Leader")
	def := cat.Get(MapForest)
	room.State = RoomPlaying
	room.MatchStartAt = time.Now()
	room.SelectedMap = MapForest

	return engine, room, def
}

func TestTickMovesPlayerAccordingToInput(t *testing.T) {
	engine, room, def := newTestEngine(t)
	p := room.Players[room.LeaderKey]
	p.X, p.Y = 1000, 1000
	p.LatestInput = InputState{D: true}

	engine.tickPlayer(room, def, p, time.Now())

	if p.X <= 1000 {
		t.Errorf("expected player to move right, got x=%v", p.X)
	}
}

func TestTickPlayerSkipsMotionWhenDead(t *testing.T) {
	engine, room, def := newTestEngine(t)
	p := room.Players[room.LeaderKey]
	p.HP = 0
	p.DiedAt = time.Now()
	p.X, p.Y = 1500, 1000
	p.LatestInput = InputState{D: true}

	engine.tickPlayer(room, def, p, time.Now())

	if p.X != 1500 {
		t.Error("expected a dead player not to move")
	}
}

func TestTickPlayerRespawnsAfterDelay(t *testing.T) {
	engine, room, def := newTestEngine(t)
	p := room.Players[room.LeaderKey]
	p.HP = 0
	now := time.Now()
	p.DiedAt = now.Add(-respawnDelay - time.Second)

	engine.tickPlayer(room, def, p, now)

	if p.HP != baseMaxHP {
		t.Errorf("expected respawn to restore HP, got %d", p.HP)
	}
}

func TestHandleKillConsumesInstantRespawnCharge(t *testing.T) {
	engine, room, def := newTestEngine(t)
	killer := room.Players[room.LeaderKey]
	victim := room.AddPlayer("conn-2", "device-2", "V")
	victim.InstantRespawnCharges = 1
	victim.GrantedRespawnCharges = 1
	now := time.Now()

	ke, respawnedKey := engine.handleKill(room, def, killer.Key, victim.Key, now)

	if !ke.InstantRespawn {
		t.Error("expected instant respawn flagged")
	}
	if respawnedKey != victim.Key {
		t.Errorf("expected victim %d respawned immediately, got %d", victim.Key, respawnedKey)
	}
	if victim.HP != baseMaxHP {
		t.Errorf("expected victim respawned with full HP, got %d", victim.HP)
	}
	if killer.Kills != 1 || killer.Killstreak != 1 {
		t.Errorf("expected killer stats incremented, got kills=%d streak=%d", killer.Kills, killer.Killstreak)
	}
}

func TestHandleKillSchedulesDelayedRespawnWithoutCharge(t *testing.T) {
	engine, room, def := newTestEngine(t)
	killer := room.Players[room.LeaderKey]
	victim := room.AddPlayer("conn-2", "device-2", "V")
	now := time.Now()

	_, respawnedKey := engine.handleKill(room, def, killer.Key, victim.Key, now)

	if respawnedKey != 0 {
		t.Error("expected no synchronous respawn without an instant-respawn charge")
	}
	if victim.HP != 0 || victim.DiedAt.IsZero() {
		t.Error("expected victim left at 0 HP with died-at stamped")
	}
}

func TestFireProjectileAppendsOnAcceptance(t *testing.T) {
	engine, room, def := newTestEngine(t)
	p := room.Players[room.LeaderKey]
	p.X, p.Y = 500, 500
	now := time.Now()
	engine.ApplyPlayerInput(p, InputState{Seq: 1, Charging: true, Angle: 0}, now)

	fireTime := now.Add(requiredCharge)
	pr, result := engine.FireProjectile(room, def, p, 0, fireTime)

	if !result.Accepted || pr == nil {
		t.Fatalf("expected projectile fired, got %+v", result)
	}
	if len(room.Projectiles) != 1 {
		t.Errorf("expected 1 projectile in room, got %d", len(room.Projectiles))
	}
}

func TestFireProjectileRecordsStrikeOnRejection(t *testing.T) {
	engine, room, def := newTestEngine(t)
	p := room.Players[room.LeaderKey]
	now := time.Now()

	_, result := engine.FireProjectile(room, def, p, 0, now)

	if result.Accepted {
		t.Fatal("expected rejection without a prior charged input")
	}
	if p.Strikes.Count != 1 {
		t.Errorf("expected a strike recorded on rejection, got count=%d", p.Strikes.Count)
	}
}

func TestEndMatchResetsRoomToLobby(t *testing.T) {
	engine, room, _ := newTestEngine(t)
	now := time.Now()

	results := engine.endMatch(room, now)

	if room.State != RoomLobby {
		t.Errorf("expected room reset to lobby, got %s", room.State)
	}
	if len(results) != len(room.Players) {
		t.Errorf("expected one result per player, got %d", len(results))
	}
}
