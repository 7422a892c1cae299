package locomotion

import "github.com/go-gl/mathgl/mgl64"

// RigState is the player's movable reference frame. Locomotion only ever
// changes X and Z of Position; Y stays at the configured rig height.
type RigState struct {
	Position       mgl64.Vec3
	Yaw            float64
	Velocity       mgl64.Vec3 // smoothed, persists across frames
	TargetVelocity mgl64.Vec3 // recomputed from zero every frame
}

// ToWorld maps a rig-relative point into world space.
func (r RigState) ToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return r.Position.Add(rotateY(local, r.Yaw))
}

// Right is the rig's horizontal right vector.
func (r RigState) Right() mgl64.Vec3 {
	return horizontal(rotateY(mgl64.Vec3{1, 0, 0}, r.Yaw))
}
