package game

import (
	"math/rand"
	"testing"
	"time"
)

func TestNewBuffsForMapOneBuffPerSpawn(t *testing.T) {
	def := &MapDef{BuffSpawns: []Point{{X: 1, Y: 1}, {X: 2, Y: 2}}}
	buffs := NewBuffsForMap(def, rand.New(rand.NewSource(1)))

	if len(buffs) != 2 {
		t.Fatalf("expected 2 buffs, got %d", len(buffs))
	}
	for _, b := range buffs {
		if !b.Active {
			t.Error("expected a freshly spawned buff to be active")
		}
	}
}

func TestPickupCheckAppliesEffectAndDeactivates(t *testing.T) {
	now := time.Now()
	p := NewPlayer(1, "conn-1", "device-1", "P")
	p.X, p.Y = 100, 100
	b := &Buff{ID: 0, X: 100, Y: 100, Type: BuffShield, Active: true}

	got := PickupCheck([]*Buff{b}, p, now)

	if got != b {
		t.Fatal("expected the in-range buff to be picked up")
	}
	if b.Active {
		t.Error("expected buff deactivated after pickup")
	}
	if !p.HasShield(now) {
		t.Error("expected shield buff applied to player")
	}
}

func TestPickupCheckOutOfRangeIsNoop(t *testing.T) {
	now := time.Now()
	p := NewPlayer(1, "conn-1", "device-1", "P")
	p.X, p.Y = 0, 0
	b := &Buff{ID: 0, X: 1000, Y: 1000, Type: BuffHealth, Active: true}

	if got := PickupCheck([]*Buff{b}, p, now); got != nil {
		t.Errorf("expected no pickup out of range, got %+v", got)
	}
}

func TestPickupCheckDeadPlayerCannotPickUp(t *testing.T) {
	now := time.Now()
	p := NewPlayer(1, "conn-1", "device-1", "P")
	p.HP = 0
	p.X, p.Y = 100, 100
	b := &Buff{ID: 0, X: 100, Y: 100, Type: BuffHealth, Active: true}

	if got := PickupCheck([]*Buff{b}, p, now); got != nil {
		t.Error("expected a dead player to be unable to pick up buffs")
	}
}

func TestTickRespawnsReactivatesAfterDelay(t *testing.T) {
	now := time.Now()
	b := &Buff{ID: 0, Active: false, Taken: now.Add(-buffRespawnDelay - time.Second)}
	rng := rand.New(rand.NewSource(1))

	respawned := TickRespawns([]*Buff{b}, now, rng)

	if len(respawned) != 1 {
		t.Fatalf("expected 1 respawn, got %d", len(respawned))
	}
	if !b.Active {
		t.Error("expected buff reactivated")
	}
	if !b.Taken.IsZero() {
		t.Error("expected taken timestamp cleared on respawn")
	}
}

func TestTickRespawnsSkipsBeforeDelay(t *testing.T) {
	now := time.Now()
	b := &Buff{ID: 0, Active: false, Taken: now.Add(-time.Second)}
	rng := rand.New(rand.NewSource(1))

	respawned := TickRespawns([]*Buff{b}, now, rng)

	if len(respawned) != 0 {
		t.Error("expected no respawn before delay elapses")
	}
}
