package locomotion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SnapTurn is the debounce state of discrete yaw rotation. A turn fires only
// when the stick has come back inside the dead zone since the previous turn
// and the cooldown has elapsed.
type SnapTurn struct {
	lastTurn float64
	turned   bool // at least one turn this session
	centered bool
}

// NewSnapTurn returns a debounce armed for the first push.
func NewSnapTurn() *SnapTurn {
	return &SnapTurn{centered: true}
}

// Reset re-arms the debounce and forgets the last turn time.
func (s *SnapTurn) Reset() {
	*s = SnapTurn{centered: true}
}

// Centered reports whether the stick has returned to the dead zone since the
// last turn.
func (s *SnapTurn) Centered() bool {
	return s.centered
}

// Step feeds one frame of the turn axis at session time now and returns the
// yaw change to apply, or 0 when no turn fires. Pushing right (positive)
// turns clockwise seen from above, which decreases yaw.
func (s *SnapTurn) Step(axis, now float64, p Params) float64 {
	if math.Abs(axis) < p.SnapDeadZone {
		s.centered = true
	}
	if !s.centered {
		return 0
	}
	if s.turned && now <= s.lastTurn+p.SnapCooldown {
		return 0
	}

	var delta float64
	switch {
	case axis > p.SnapThreshold:
		delta = -p.SnapAngle
	case axis < -p.SnapThreshold:
		delta = p.SnapAngle
	default:
		return 0
	}
	s.lastTurn = now
	s.turned = true
	s.centered = false
	return delta
}

// Recenter moves the rig so the viewpoint keeps its horizontal world position
// across a turn: the rig is translated by the viewpoint's horizontal offset
// from the rig origin. The result is clamped into bounds only; the obstacle
// is not consulted.
func Recenter(rig RigState, viewWorld mgl64.Vec3, bounds Rect) mgl64.Vec3 {
	offX := viewWorld.X() - rig.Position.X()
	offZ := viewWorld.Z() - rig.Position.Z()
	x, z := bounds.Clamp(rig.Position.X()+offX, rig.Position.Z()+offZ)
	return mgl64.Vec3{x, rig.Position.Y(), z}
}
