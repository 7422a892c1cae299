package locomotion

// ResolveMove applies a proposed displacement to (x, z) and returns a
// position that keeps the player's collision square out of the obstacle and
// inside bounds.
//
// X is resolved first, then Z from the X-resolved position. Approaching the
// obstacle along an axis clamps that axis to leave the player flush with the
// near face minus epsilon. The room clamp runs last and always wins.
// Diagonal motion into a corner between the obstacle and a wall can still
// partially tunnel because of the axis order.
func ResolveMove(x, z, dx, dz, radius, epsilon float64, bounds Rect, obstacle *Rect) (float64, float64) {
	if obstacle != nil {
		if dx != 0 && obstacle.OverlapsSquare(x+dx, z, radius) {
			if dx > 0 {
				dx = max(0, obstacle.MinX-radius-x-epsilon)
			} else {
				dx = min(0, obstacle.MaxX+radius-x+epsilon)
			}
		}
		x += dx

		if dz != 0 && obstacle.OverlapsSquare(x, z+dz, radius) {
			if dz > 0 {
				dz = max(0, obstacle.MinZ-radius-z-epsilon)
			} else {
				dz = min(0, obstacle.MaxZ+radius-z+epsilon)
			}
		}
		z += dz
	} else {
		x += dx
		z += dz
	}
	return bounds.Clamp(x, z)
}
