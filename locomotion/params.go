package locomotion

import "math"

// Params holds the locomotion tuning. DefaultParams matches the gallery
// experience; the host may override individual fields from configuration.
type Params struct {
	MoveSpeed     float64 // units/s at full stick deflection
	MoveDeadZone  float64
	ResponseCurve float64 // exponent applied to |axis|

	SmoothingFactor float64 // F in (0,1)
	ReferenceRate   float64 // frames/s the smoothing factor was tuned for
	IdleVelocity    float64 // below this speed no displacement is applied

	PlayerRadius     float64
	CollisionEpsilon float64

	SnapAngle     float64 // radians
	SnapThreshold float64
	SnapDeadZone  float64
	SnapCooldown  float64 // seconds

	ArcSpeed    float64
	ArcGravity  float64
	ArcSegments int
	ArcTimeStep float64

	MarkerLift float64
	MaxFrameDT float64
}

// DefaultParams returns the tuning used by the gallery.
func DefaultParams() Params {
	return Params{
		MoveSpeed:     1.5,
		MoveDeadZone:  0.15,
		ResponseCurve: 1.5,

		SmoothingFactor: 0.85,
		ReferenceRate:   60,
		IdleVelocity:    0.001,

		PlayerRadius:     0.3,
		CollisionEpsilon: 0.01,

		SnapAngle:     math.Pi / 4,
		SnapThreshold: 0.7,
		SnapDeadZone:  0.3,
		SnapCooldown:  0.25,

		ArcSpeed:    8,
		ArcGravity:  -9.8,
		ArcSegments: 30,
		ArcTimeStep: 0.025,

		MarkerLift: 0.01,
		MaxFrameDT: 0.1,
	}
}
