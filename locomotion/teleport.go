package locomotion

import "github.com/go-gl/mathgl/mgl64"

// TeleportPhase is the state of the teleport trigger.
type TeleportPhase int

const (
	Idle TeleportPhase = iota
	Aiming
)

func (p TeleportPhase) String() string {
	if p == Aiming {
		return "aiming"
	}
	return "idle"
}

// TeleportSession lives while the teleport trigger is held.
type TeleportSession struct {
	Arc    []mgl64.Vec3
	Hit    bool
	Point  mgl64.Vec3
	Valid  bool
	Marker mgl64.Vec3
}

// ValidTarget reports whether a landing point is inside bounds and the
// player's square there stays clear of the obstacle.
func ValidTarget(point mgl64.Vec3, bounds Rect, obstacle *Rect, radius float64) bool {
	if !bounds.Contains(point.X(), point.Z()) {
		return false
	}
	if obstacle != nil && obstacle.OverlapsSquare(point.X(), point.Z(), radius) {
		return false
	}
	return true
}

// Teleporter runs the Idle -> Aiming -> (commit) -> Idle state machine.
type Teleporter struct {
	session *TeleportSession
}

// Phase returns the current phase.
func (t *Teleporter) Phase() TeleportPhase {
	if t.session != nil {
		return Aiming
	}
	return Idle
}

// Session returns the live aiming session, or nil when idle.
func (t *Teleporter) Session() *TeleportSession {
	return t.session
}

// Reset discards any aiming session without committing it.
func (t *Teleporter) Reset() {
	t.session = nil
}

// Step advances the state machine for one frame. While the trigger is held
// the arc is recomputed and validated. On release a valid marker is returned
// with commit set; the session is discarded either way.
func (t *Teleporter) Step(trigger bool, c ControllerState, floor Floor, bounds Rect, obstacle *Rect, p Params) (target mgl64.Vec3, commit bool) {
	if trigger {
		if t.session == nil {
			t.session = &TeleportSession{}
		}
		arc := SimulateArc(c.Position, c.Forward, floor, p)
		s := t.session
		s.Arc, s.Hit, s.Point = arc.Points, arc.Hit, arc.Point
		s.Valid, s.Marker = false, mgl64.Vec3{}
		if arc.Hit && ValidTarget(arc.Point, bounds, obstacle, p.PlayerRadius) {
			s.Valid = true
			s.Marker = arc.Point.Add(mgl64.Vec3{0, p.MarkerLift, 0})
		}
		return mgl64.Vec3{}, false
	}
	if t.session == nil {
		return mgl64.Vec3{}, false
	}
	last := t.session
	t.session = nil
	if !last.Valid {
		return mgl64.Vec3{}, false
	}
	return last.Marker, true
}
