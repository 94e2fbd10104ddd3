package game

import (
	"math/rand"
	"testing"
	"time"
)

func newTestRoom() *Room {
	return NewRoom("12345", rand.New(rand.NewSource(1)))
}

func TestBuildFrameFirstTickIsSnapshot(t *testing.T) {
	r := newTestRoom()
	p := r.AddPlayer("conn-1", "device-1", "P")
	p.X, p.Y = 10, 10

	frame := BuildFrame(r, time.Now(), time.Minute)

	if frame.Mode != ModeSnapshot {
		t.Fatalf("expected first frame to be a snapshot, got %s", frame.Mode)
	}
	if len(frame.Players) != 1 {
		t.Errorf("expected 1 player in snapshot, got %d", len(frame.Players))
	}
}

func TestBuildFrameSecondTickIsDeltaWithOnlyChangedPlayer(t *testing.T) {
	r := newTestRoom()
	p1 := r.AddPlayer("conn-1", "device-1", "P1")
	p2 := r.AddPlayer("conn-2", "device-2", "P2")
	now := time.Now()

	BuildFrame(r, now, time.Minute)

	p1.X += 5
	frame := BuildFrame(r, now.Add(10*time.Millisecond), time.Minute)

	if frame.Mode != ModeDelta {
		t.Fatalf("expected second frame to be a delta, got %s", frame.Mode)
	}
	if len(frame.PlayerUpserts) != 1 || frame.PlayerUpserts[0].Key != p1.Key {
		t.Errorf("expected only p1 upserted, got %+v", frame.PlayerUpserts)
	}
	_ = p2
}

func TestBuildFrameEmitsFullSnapshotAfterInterval(t *testing.T) {
	r := newTestRoom()
	r.AddPlayer("conn-1", "device-1", "P1")
	now := time.Now()

	BuildFrame(r, now, time.Minute)
	frame := BuildFrame(r, now.Add(fullSnapshotInterval+time.Millisecond), time.Minute)

	if frame.Mode != ModeSnapshot {
		t.Errorf("expected a full snapshot once the interval elapses, got %s", frame.Mode)
	}
}

func TestBuildFrameRemovesDepartedPlayer(t *testing.T) {
	r := newTestRoom()
	p1 := r.AddPlayer("conn-1", "device-1", "P1")
	now := time.Now()
	BuildFrame(r, now, time.Minute)

	r.RemovePlayer(p1.Key)
	frame := BuildFrame(r, now.Add(10*time.Millisecond), time.Minute)

	if len(frame.PlayerRemoved) != 1 || frame.PlayerRemoved[0] != p1.Key {
		t.Errorf("expected p1 reported removed, got %+v", frame.PlayerRemoved)
	}
}

func TestBuildFrameSubEpsilonChangeProducesNoUpsert(t *testing.T) {
	r := newTestRoom()
	p := r.AddPlayer("conn-1", "device-1", "P")
	now := time.Now()
	BuildFrame(r, now, time.Minute)

	p.X += posEpsilon / 10
	frame := BuildFrame(r, now.Add(10*time.Millisecond), time.Minute)

	if len(frame.PlayerUpserts) != 0 {
		t.Errorf("expected no upsert for a sub-epsilon change, got %+v", frame.PlayerUpserts)
	}
}
