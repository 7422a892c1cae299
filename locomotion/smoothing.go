package locomotion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SmoothingAlpha is the per-frame interpolation fraction for a frame of dt
// seconds: 1 - F^(dt*referenceRate).
func SmoothingAlpha(dt, factor, referenceRate float64) float64 {
	if dt <= 0 {
		return 0
	}
	return 1 - math.Pow(factor, dt*referenceRate)
}

// Smooth moves current toward target by the frame-rate independent fraction.
func Smooth(current, target mgl64.Vec3, dt float64, p Params) mgl64.Vec3 {
	a := SmoothingAlpha(dt, p.SmoothingFactor, p.ReferenceRate)
	return current.Add(target.Sub(current).Mul(a))
}

// SmoothingTimeConstant is the time in seconds for the gap to target to fall
// by a factor of e.
func SmoothingTimeConstant(factor, referenceRate float64) float64 {
	return -1 / (referenceRate * math.Log(factor))
}
