package locomotion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// shapeAxis applies the dead zone and the non-linear response curve.
func shapeAxis(v, deadZone, exponent float64) float64 {
	if math.Abs(v) <= deadZone {
		return 0
	}
	return sign(v) * math.Pow(math.Abs(v), exponent)
}

// ResolveIntent converts stick deflection into a horizontal target velocity.
// forwardAxis reports negative when the stick is pushed away from the user,
// so it is negated along the look direction. look and right are projected
// onto the floor plane before use.
func ResolveIntent(strafeAxis, forwardAxis float64, look, right mgl64.Vec3, p Params) mgl64.Vec3 {
	var target mgl64.Vec3
	if f := shapeAxis(forwardAxis, p.MoveDeadZone, p.ResponseCurve); f != 0 {
		target = target.Add(horizontal(look).Mul(-f * p.MoveSpeed))
	}
	if s := shapeAxis(strafeAxis, p.MoveDeadZone, p.ResponseCurve); s != 0 {
		target = target.Add(horizontal(right).Mul(s * p.MoveSpeed))
	}
	return target
}
