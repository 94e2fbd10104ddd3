package game

import "testing"

func TestObstacleBlocksPlayerSolid(t *testing.T) {
	tree := Obstacle{Type: ObstacleTree, X: 100, Y: 100, Width: 40, Height: 40}

	if !tree.BlocksPlayer(110, 100) {
		t.Error("expected position near tree centre to be blocked")
	}
	if tree.BlocksPlayer(300, 300) {
		t.Error("expected far-away position to be clear")
	}
}

func TestObstacleBlocksPlayerLiquid(t *testing.T) {
	lake := Obstacle{Type: ObstacleLake, X: 500, Y: 500, Width: 200, Height: 100}

	if !lake.BlocksPlayer(500, 500) {
		t.Error("expected lake centre to be blocked")
	}
	if lake.BlocksPlayer(900, 900) {
		t.Error("expected far-away position to be clear of the lake")
	}
}

func TestSegmentOccludedDetectsBlockingObstacle(t *testing.T) {
	obstacles := []Obstacle{{Type: ObstacleRock, X: 50, Y: 0, Width: 30, Height: 30}}

	if !SegmentOccluded(obstacles, 0, 0, 100, 0) {
		t.Error("expected the segment through the rock to be occluded")
	}
	if SegmentOccluded(obstacles, 0, 100, 100, 100) {
		t.Error("expected a segment clear of the rock to be unoccluded")
	}
}

func TestSweepTestPlayersFindsClosestHit(t *testing.T) {
	targets := []SweepTarget{
		{X: 100, Y: 0, Alive: true},
		{X: 60, Y: 0, Alive: true},
	}

	hit, ok := SweepTestPlayers(targets, 0, 0, 200, 0)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Index != 1 {
		t.Errorf("expected the closer target (index 1) to be hit first, got %d", hit.Index)
	}
}

func TestSweepTestPlayersSkipsDeadTargets(t *testing.T) {
	targets := []SweepTarget{{X: 50, Y: 0, Alive: false}}

	if _, ok := SweepTestPlayers(targets, 0, 0, 200, 0); ok {
		t.Error("expected no hit against a dead target")
	}
}

func TestIsHeadshot(t *testing.T) {
	if !IsHeadshot(16, false) {
		t.Error("expected distance exactly at threshold to count as a headshot")
	}
	if IsHeadshot(16.01, false) {
		t.Error("expected distance just past threshold to not count as a headshot")
	}
	if IsHeadshot(0, true) {
		t.Error("expected a shielded victim to never take a headshot")
	}
}

func TestClampToPlayfield(t *testing.T) {
	x, y := ClampToPlayfield(-50, MapHeight+50)
	if x != PlayfieldMargin {
		t.Errorf("expected x clamped to %v, got %v", PlayfieldMargin, x)
	}
	if y != MapHeight-PlayfieldMargin {
		t.Errorf("expected y clamped to %v, got %v", MapHeight-PlayfieldMargin, y)
	}
}

func TestNormalizeAngleRange(t *testing.T) {
	cases := []float64{0, 3.2, -3.2, 100, -100}
	for _, c := range cases {
		n := NormalizeAngle(c)
		if n <= -3.14159265358979 || n > 3.14159265358980 {
			t.Errorf("NormalizeAngle(%v) = %v, out of (-pi, pi]", c, n)
		}
	}
}
