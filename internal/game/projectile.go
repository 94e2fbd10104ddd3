package game

import (
	"math"
	"time"
)

const (
	// ProjectileSpeed is the fixed travel speed in px/s.
	ProjectileSpeed = 871.2
	// ProjectileMaxAge is the lifetime ceiling independent of distance travelled.
	ProjectileMaxAge = 10 * time.Second
)

// Projectile is a single in-flight shot. It carries both its current
// position and the position at the start of the tick so the engine can
// run the swept hit test over the whole tick's movement, not just the
// final point.
type Projectile struct {
	ID          string
	OwnerConnID string

	X, Y         float64
	PrevX, PrevY float64
	VX, VY       float64
	Angle        float64

	Age time.Duration
}

// NewProjectile creates a projectile at (x, y) travelling along angle at
// the fixed ProjectileSpeed.
func NewProjectile(id, ownerConnID string, x, y, angle float64) *Projectile {
	return &Projectile{
		ID:          id,
		OwnerConnID: ownerConnID,
		X:           x,
		Y:           y,
		PrevX:       x,
		PrevY:       y,
		VX:          math.Cos(angle) * ProjectileSpeed,
		VY:          math.Sin(angle) * ProjectileSpeed,
		Angle:       angle,
	}
}

// Integrate advances the projectile by dt, recording its pre-tick
// position in PrevX/PrevY for the swept hit test. Returns false if the
// projectile has exceeded its lifetime or left the playfield and should
// be removed without a hit test.
func (p *Projectile) Integrate(dt time.Duration) bool {
	p.PrevX, p.PrevY = p.X, p.Y
	seconds := dt.Seconds()
	p.X += p.VX * seconds
	p.Y += p.VY * seconds
	p.Age += dt

	if p.Age >= ProjectileMaxAge {
		return false
	}
	if p.X < 0 || p.X > MapWidth || p.Y < 0 || p.Y > MapHeight {
		return false
	}
	return true
}
