package game

import (
	"testing"
	"time"
)

func TestReconnectGuardAllowsUpToLimit(t *testing.T) {
	g := NewReconnectGuard()
	now := time.Now()

	for i := 0; i < reconnectMaxAttempts; i++ {
		if !g.Allow("device-1", now) {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
	}
	if g.Allow("device-1", now) {
		t.Error("expected the attempt past the limit to be rejected")
	}
}

func TestReconnectGuardResetsAfterWindow(t *testing.T) {
	g := NewReconnectGuard()
	now := time.Now()

	for i := 0; i < reconnectMaxAttempts; i++ {
		g.Allow("device-1", now)
	}
	if g.Allow("device-1", now) {
		t.Fatal("expected limit tripped before window reset")
	}

	if !g.Allow("device-1", now.Add(reconnectWindow+time.Second)) {
		t.Error("expected a fresh window to allow another attempt")
	}
}

func TestRebindRestoresDisconnectedPlayer(t *testing.T) {
	r := newTestRoom()
	p := r.AddPlayer("old-conn", "device-1", "P")
	r.LeaderKey = p.Key
	p.Disconnected = true
	p.InputSeqHighWater = 99

	result, ok := Rebind(r, "device-1", "new-conn")

	if !ok {
		t.Fatal("expected rebind to succeed for a disconnected player")
	}
	if result.OldConnID != "old-conn" || !result.WasLeader {
		t.Errorf("unexpected rebind result %+v", result)
	}
	if p.ConnID != "new-conn" || p.Disconnected {
		t.Error("expected player rebound to the new connection")
	}
	if p.InputSeqHighWater != 0 {
		t.Error("expected input sequence reset on rebind")
	}
}

func TestRebindFailsForConnectedPlayer(t *testing.T) {
	r := newTestRoom()
	r.AddPlayer("conn-1", "device-1", "P")

	if _, ok := Rebind(r, "device-1", "new-conn"); ok {
		t.Error("expected rebind to fail for an already-connected player")
	}
}
