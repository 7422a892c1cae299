package locomotion

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestRoomBoundsFromHalfExtents(t *testing.T) {
	b := RoomBoundsFromHalfExtents(4, 3, 0.5)
	assert.Equal(t, Rect{MinX: -3.5, MaxX: 3.5, MinZ: -2.5, MaxZ: 2.5}, b)
	assert.True(t, b.Valid())
}

func TestRectOverlapsSquare(t *testing.T) {
	r := Rect{MinX: 0.5, MaxX: 1.5, MinZ: -0.35, MaxZ: 0.35}

	assert.True(t, r.OverlapsSquare(1, 0, 0.3), "centre inside")
	assert.True(t, r.OverlapsSquare(0.3, 0, 0.3), "edge penetrates")
	assert.False(t, r.OverlapsSquare(0.2, 0, 0.3), "touching is not overlap")
	assert.False(t, r.OverlapsSquare(1, 0.65, 0.3), "touching on Z")
	assert.False(t, r.OverlapsSquare(-2, 0, 0.3))
}

func TestRectClamp(t *testing.T) {
	r := Rect{MinX: -1, MaxX: 1, MinZ: -2, MaxZ: 2}
	x, z := r.Clamp(5, -5)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, -2.0, z)
	x, z = r.Clamp(0.5, 0.5)
	assert.Equal(t, 0.5, x)
	assert.Equal(t, 0.5, z)
}

func TestPlaneFloorRaycast(t *testing.T) {
	f := PlaneFloor{Y: 0, Extent: Rect{MinX: -4, MaxX: 4, MinZ: -4, MaxZ: 4}}

	p, dist, ok := f.Raycast(mgl64.Vec3{1, 2, 1}, mgl64.Vec3{0, -1, 0})
	assert.True(t, ok)
	assert.InDelta(t, 2.0, dist, 1e-12)
	assert.Equal(t, mgl64.Vec3{1, 0, 1}, p)

	_, _, ok = f.Raycast(mgl64.Vec3{1, 2, 1}, mgl64.Vec3{0, 1, 0})
	assert.False(t, ok, "upward ray")

	_, _, ok = f.Raycast(mgl64.Vec3{1, -1, 1}, mgl64.Vec3{0, -1, 0})
	assert.False(t, ok, "origin below floor")

	_, _, ok = f.Raycast(mgl64.Vec3{10, 1, 0}, mgl64.Vec3{0, -1, 0})
	assert.False(t, ok, "outside floor extent")
}

func TestRigToWorld(t *testing.T) {
	rig := RigState{Position: mgl64.Vec3{1, 0.5, 1}, Yaw: 0}
	assert.Equal(t, mgl64.Vec3{1, 1.5, 0}, rig.ToWorld(mgl64.Vec3{0, 1, -1}))

	rig.Yaw = mgl64.DegToRad(90)
	w := rig.ToWorld(mgl64.Vec3{1, 0, 0})
	assert.InDelta(t, 1.0, w.X(), 1e-9)
	assert.InDelta(t, 0.0, w.Z(), 1e-9, "+X rotates to -Z under a quarter turn left")
}
