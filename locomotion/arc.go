package locomotion

import "github.com/go-gl/mathgl/mgl64"

// Arc is the result of one ballistic teleport preview.
type Arc struct {
	Points []mgl64.Vec3 // consumed points, ending at Hit when Hit is set
	Hit    bool
	Point  mgl64.Vec3
}

// SimulateArc integrates a projectile launched from origin along the negated
// controller forward axis at ArcSpeed and reports the first segment that
// meets the floor. Only the direction of forward matters; a zero vector
// launches nothing and the arc falls straight down. The result depends only
// on its inputs.
func SimulateArc(origin, forward mgl64.Vec3, floor Floor, p Params) Arc {
	points := make([]mgl64.Vec3, 0, p.ArcSegments+1)
	pos := origin
	var vel mgl64.Vec3
	if forward.Len() > 1e-9 {
		vel = forward.Normalize().Mul(-p.ArcSpeed)
	}
	dt := p.ArcTimeStep
	drop := 0.5 * p.ArcGravity * dt * dt

	for i := 0; i < p.ArcSegments; i++ {
		points = append(points, pos)
		next := pos.Add(vel.Mul(dt))
		next[1] += drop

		seg := next.Sub(pos)
		if length := seg.Len(); length > 0 && floor != nil {
			if hit, dist, ok := floor.Raycast(pos, seg.Mul(1/length)); ok && dist < length {
				points = append(points, hit)
				return Arc{Points: points, Hit: true, Point: hit}
			}
		}
		pos = next
		vel[1] += p.ArcGravity * dt
	}
	return Arc{Points: points}
}
