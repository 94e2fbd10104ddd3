package game

import "math"

// Map and body constants. All are authoritative-server invariants, never
// configurable per-room — a single arena shooter has one fixed scale.
const (
	MapWidth  = 3000
	MapHeight = 2000

	PlayerRadius     = 18
	ProjectileRadius = 3
	HitRadius        = 21

	// PlayfieldMargin is the §3 clamp bound — a distinct constant from
	// PlayerRadius, not an alias for the collision body radius.
	PlayfieldMargin = 20

	// HeadshotThreshold = head-visual radius 8 + projectile radius 3 + jitter tolerance 5.
	HeadshotThreshold = 16

	// ProjectileTipOffset shifts the swept segment forward by the
	// projectile's visual tip before testing for a hit.
	ProjectileTipOffset = 6

	// OcclusionSampleStep is the spacing, in pixels, between samples
	// taken along the shooter-to-muzzle segment for the occlusion test.
	OcclusionSampleStep = 6
)

// ObstacleType distinguishes solid obstacles (circle test) from liquid
// ones (ellipse containment test).
type ObstacleType int

const (
	ObstacleTree ObstacleType = iota
	ObstacleRock
	ObstacleCactus
	ObstacleLake
	ObstaclePond
	ObstacleChasm
)

// IsSolid reports whether the obstacle type uses the circle collision
// test (true) or the ellipse containment test (false).
func (t ObstacleType) IsSolid() bool {
	switch t {
	case ObstacleTree, ObstacleRock, ObstacleCactus:
		return true
	default:
		return false
	}
}

// Obstacle is a single static collidable feature of a map.
type Obstacle struct {
	Type   ObstacleType
	X, Y   float64
	Width  float64
	Height float64
}

// BlocksCircle tests whether a circle of radius extraRadius centred at
// (x, y) overlaps this obstacle. For solid obstacles this is a
// circle-to-circle test against radius Width/2 + extraRadius; for liquid
// obstacles it's an ellipse containment test padded by extraRadius
// relative to the ellipse's width.
func (o Obstacle) BlocksCircle(x, y, extraRadius float64) bool {
	if o.Type.IsSolid() {
		dx := x - o.X
		dy := y - o.Y
		dist := math.Hypot(dx, dy)
		return dist < (o.Width/2 + extraRadius)
	}

	semiA := o.Width / 2
	semiB := o.Height / 2
	if semiA <= 0 || semiB <= 0 {
		return false
	}
	pad := extraRadius / o.Width
	a := semiA + pad*semiA
	b := semiB + pad*semiB
	dx := x - o.X
	dy := y - o.Y
	normalized := (dx*dx)/(a*a) + (dy*dy)/(b*b)
	return normalized <= 1
}

// BlocksPlayer tests the player-obstacle collision rule: circle of
// radius PlayerRadius against solid obstacles, padded ellipse against
// liquid ones.
func (o Obstacle) BlocksPlayer(x, y float64) bool {
	return o.BlocksCircle(x, y, PlayerRadius)
}

// BlocksProjectile tests the projectile-obstacle block rule: same shape
// test as BlocksPlayer but with the projectile's own radius as the pad.
func (o Obstacle) BlocksProjectile(x, y float64) bool {
	return o.BlocksCircle(x, y, ProjectileRadius)
}

// AnyBlocksPlayer reports whether the candidate position collides with
// any obstacle in the set, using the player collision rule.
func AnyBlocksPlayer(obstacles []Obstacle, x, y float64) bool {
	for _, o := range obstacles {
		if o.BlocksPlayer(x, y) {
			return true
		}
	}
	return false
}

// AnyBlocksProjectile reports whether the point collides with any
// obstacle in the set, using the projectile collision rule.
func AnyBlocksProjectile(obstacles []Obstacle, x, y float64) bool {
	for _, o := range obstacles {
		if o.BlocksProjectile(x, y) {
			return true
		}
	}
	return false
}

// SegmentOccluded samples the segment from (x0,y0) to (x1,y1) every
// OcclusionSampleStep pixels, returning true if any sample point
// collides with an obstacle under the projectile rule. Used for the
// shooter-to-muzzle occlusion test.
func SegmentOccluded(obstacles []Obstacle, x0, y0, x1, y1 float64) bool {
	length := math.Hypot(x1-x0, y1-y0)
	if length == 0 {
		return AnyBlocksProjectile(obstacles, x0, y0)
	}

	steps := int(length/OcclusionSampleStep) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		sx := x0 + (x1-x0)*t
		sy := y0 + (y1-y0)*t
		if AnyBlocksProjectile(obstacles, sx, sy) {
			return true
		}
	}
	return false
}

// MuzzleOrigin computes the muzzle point offset distance pixels from
// (x, y) along angle (radians).
func MuzzleOrigin(x, y, angle, distance float64) (float64, float64) {
	return x + math.Cos(angle)*distance, y + math.Sin(angle)*distance
}

// ClosestPointOnSegment returns the closest point on segment (x0,y0)-(x1,y1)
// to (px, py), along with the parametric t in [0, 1] at which it occurs.
func ClosestPointOnSegment(x0, y0, x1, y1, px, py float64) (cx, cy, t float64) {
	dx := x1 - x0
	dy := y1 - y0
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return x0, y0, 0
	}

	t = ((px-x0)*dx + (py-y0)*dy) / lengthSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return x0 + t*dx, y0 + t*dy, t
}

// SweepHit is a candidate hit found by a swept-segment test.
type SweepHit struct {
	Index    int // index into the candidate slice passed to SweepTestPlayers
	T        float64
	Distance float64
}

// SweepTarget is the minimal shape SweepTestPlayers needs from a
// candidate victim: a position and a liveness flag (HP > 0).
type SweepTarget struct {
	X, Y  float64
	Alive bool
}

// SweepTestPlayers computes the swept segment from (prevX,prevY) to
// (newX,newY), shifted forward by ProjectileTipOffset, and finds the
// earliest (smallest t, ties broken by smallest distance) target within
// HitRadius. Returns ok=false if no target qualifies.
func SweepTestPlayers(targets []SweepTarget, prevX, prevY, newX, newY float64) (hit SweepHit, ok bool) {
	dx := newX - prevX
	dy := newY - prevY
	length := math.Hypot(dx, dy)

	sx0, sy0 := prevX, prevY
	sx1, sy1 := newX, newY
	if length > 0 {
		ux := dx / length
		uy := dy / length
		sx1 = newX + ux*ProjectileTipOffset
		sy1 = newY + uy*ProjectileTipOffset
	}

	bestT := math.Inf(1)
	bestDist := math.Inf(1)
	bestIdx := -1

	for i, target := range targets {
		if !target.Alive {
			continue
		}
		cx, cy, t := ClosestPointOnSegment(sx0, sy0, sx1, sy1, target.X, target.Y)
		dist := math.Hypot(cx-target.X, cy-target.Y)
		if dist > HitRadius {
			continue
		}
		if t < bestT || (t == bestT && dist < bestDist) {
			bestT = t
			bestDist = dist
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return SweepHit{}, false
	}
	return SweepHit{Index: bestIdx, T: bestT, Distance: bestDist}, true
}

// IsHeadshot reports whether a hit at the given distance-to-centre
// qualifies as a headshot against an unshielded victim.
func IsHeadshot(distance float64, shielded bool) bool {
	return !shielded && distance <= HeadshotThreshold
}

// ClampToPlayfield clamps (x, y) to the §3 playfield bound
// (20, MapWidth−20) × (20, MapHeight−20) — a margin independent of the
// collision body radius used elsewhere in this file.
func ClampToPlayfield(x, y float64) (float64, float64) {
	if x < PlayfieldMargin {
		x = PlayfieldMargin
	} else if x > MapWidth-PlayfieldMargin {
		x = MapWidth - PlayfieldMargin
	}
	if y < PlayfieldMargin {
		y = PlayfieldMargin
	} else if y > MapHeight-PlayfieldMargin {
		y = MapHeight - PlayfieldMargin
	}
	return x, y
}

// NormalizeAngle normalizes an angle to (−π, π], matching the teacher's
// O(1) modulo approach rather than an iterative reduction.
func NormalizeAngle(angle float64) float64 {
	const twoPi = 2 * math.Pi
	angle = math.Mod(angle, twoPi)
	if angle <= -math.Pi {
		angle += twoPi
	} else if angle > math.Pi {
		angle -= twoPi
	}
	return angle
}
