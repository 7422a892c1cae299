package locomotion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Rect is an axis-aligned rectangle on the floor plane (X/Z).
type Rect struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

// RoomBoundsFromHalfExtents builds the walkable area of a room centred on the
// origin whose walls sit at ±halfWidth and ±halfDepth, inset by buffer.
func RoomBoundsFromHalfExtents(halfWidth, halfDepth, buffer float64) Rect {
	return Rect{
		MinX: -halfWidth + buffer,
		MaxX: halfWidth - buffer,
		MinZ: -halfDepth + buffer,
		MaxZ: halfDepth - buffer,
	}
}

// RectFromCenter builds a rectangle from its centre and full extents.
func RectFromCenter(cx, cz, length, depth float64) Rect {
	return Rect{
		MinX: cx - length/2,
		MaxX: cx + length/2,
		MinZ: cz - depth/2,
		MaxZ: cz + depth/2,
	}
}

// Valid reports whether the rectangle is non-inverted.
func (r Rect) Valid() bool {
	return r.MinX <= r.MaxX && r.MinZ <= r.MaxZ
}

// Contains reports whether (x, z) lies inside r, edges included.
func (r Rect) Contains(x, z float64) bool {
	return x >= r.MinX && x <= r.MaxX && z >= r.MinZ && z <= r.MaxZ
}

// Clamp returns the point of r closest to (x, z).
func (r Rect) Clamp(x, z float64) (float64, float64) {
	return mgl64.Clamp(x, r.MinX, r.MaxX), mgl64.Clamp(z, r.MinZ, r.MaxZ)
}

// OverlapsSquare reports whether a square of half-size radius centred at
// (x, z) strictly intersects r. Touching edges do not count.
func (r Rect) OverlapsSquare(x, z, radius float64) bool {
	return x-radius < r.MaxX && x+radius > r.MinX &&
		z-radius < r.MaxZ && z+radius > r.MinZ
}

// Floor is the surface teleport arcs are cast against. It is handed to the
// Context by the room-construction collaborator.
type Floor interface {
	// Raycast returns the first intersection of the ray origin+t*dir (dir is
	// unit length, t >= 0) with the floor and its distance along the ray.
	Raycast(origin, dir mgl64.Vec3) (point mgl64.Vec3, dist float64, ok bool)
}

// PlaneFloor is a finite horizontal floor at height Y covering Extent.
// Only its upper face is hit, so rays travelling upwards never intersect.
type PlaneFloor struct {
	Y      float64
	Extent Rect
}

// Raycast implements Floor.
func (f PlaneFloor) Raycast(origin, dir mgl64.Vec3) (mgl64.Vec3, float64, bool) {
	if dir.Y() >= 0 || origin.Y() < f.Y {
		return mgl64.Vec3{}, 0, false
	}
	t := (f.Y - origin.Y()) / dir.Y()
	if t < 0 || math.IsInf(t, 0) || math.IsNaN(t) {
		return mgl64.Vec3{}, 0, false
	}
	p := origin.Add(dir.Mul(t))
	if !f.Extent.Contains(p.X(), p.Z()) {
		return mgl64.Vec3{}, 0, false
	}
	// the plane equation is exact on Y; avoid float drift in the reported point
	p[1] = f.Y
	return p, t, true
}

// horizontal drops the Y component and normalises; zero vectors stay zero.
func horizontal(v mgl64.Vec3) mgl64.Vec3 {
	h := mgl64.Vec3{v.X(), 0, v.Z()}
	if h.Len() < 1e-9 {
		return mgl64.Vec3{}
	}
	return h.Normalize()
}

// rotateY rotates v about the world up axis by yaw radians.
func rotateY(v mgl64.Vec3, yaw float64) mgl64.Vec3 {
	return mgl64.Rotate3DY(yaw).Mul3x1(v)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
