package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"gallery-server/locomotion"
)

// ErrInvalidLayout is returned for a room description that cannot be walked.
var ErrInvalidLayout = errors.New("invalid room layout")

// Layout describes the gallery room: walls at ±HalfWidth/±HalfDepth around
// the origin, an optional bench, and where the rig spawns.
type Layout struct {
	Name       string       `yaml:"name"`
	HalfWidth  float64      `yaml:"half_width"`
	HalfDepth  float64      `yaml:"half_depth"`
	WallBuffer float64      `yaml:"wall_buffer"`
	FloorY     float64      `yaml:"floor_y"`
	Bench      *BenchLayout `yaml:"bench"`

	Spawn       [3]float64 `yaml:"spawn"`
	SpawnYawDeg float64    `yaml:"spawn_yaw_deg"`
}

// BenchLayout is the one interior solid, given by centre and full extents.
type BenchLayout struct {
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Length float64 `yaml:"length"`
	Depth  float64 `yaml:"depth"`
}

// DefaultLayout is the 8x8 gallery with a bench against the back wall.
func DefaultLayout() Layout {
	return Layout{
		Name:        "gallery",
		HalfWidth:   4,
		HalfDepth:   4,
		WallBuffer:  0.5,
		Bench:       &BenchLayout{X: 0, Z: -4 + 1.2 + 0.35, Length: 2.0, Depth: 0.7},
		Spawn:       [3]float64{0, 0.5, 0},
		SpawnYawDeg: 180,
	}
}

// LoadLayout reads a YAML layout. Keys missing from the file keep the
// DefaultLayout value; an empty path returns the default. The layout is
// validated for a player of the given radius.
func LoadLayout(path string, radius float64) (Layout, error) {
	l := DefaultLayout()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Layout{}, fmt.Errorf("reading layout: %w", err)
		}
		if err := yaml.Unmarshal(raw, &l); err != nil {
			return Layout{}, fmt.Errorf("parsing layout %s: %w", path, err)
		}
	}
	if err := l.Validate(radius); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks that the walkable area is non-empty, the bench stands
// inside the walls and a player of the given radius can spawn clear of it.
func (l Layout) Validate(radius float64) error {
	if l.HalfWidth <= 0 || l.HalfDepth <= 0 {
		return fmt.Errorf("%w: non-positive half extents %gx%g", ErrInvalidLayout, l.HalfWidth, l.HalfDepth)
	}
	bounds := l.bounds()
	if !bounds.Valid() {
		return fmt.Errorf("%w: wall buffer %g leaves no floor", ErrInvalidLayout, l.WallBuffer)
	}
	if b := l.Bench; b != nil {
		if b.Length <= 0 || b.Depth <= 0 {
			return fmt.Errorf("%w: bench has no extent", ErrInvalidLayout)
		}
		r := locomotion.RectFromCenter(b.X, b.Z, b.Length, b.Depth)
		if r.MinX < -l.HalfWidth || r.MaxX > l.HalfWidth || r.MinZ < -l.HalfDepth || r.MaxZ > l.HalfDepth {
			return fmt.Errorf("%w: bench %+v extends past the walls", ErrInvalidLayout, r)
		}
	}
	if err := locomotion.CheckSpawn(l.Room(), radius); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	return nil
}

func (l Layout) bounds() locomotion.Rect {
	return locomotion.RoomBoundsFromHalfExtents(l.HalfWidth, l.HalfDepth, l.WallBuffer)
}

// Room builds what the locomotion core needs from the layout.
func (l Layout) Room() locomotion.Room {
	room := locomotion.Room{
		Bounds: l.bounds(),
		Floor: locomotion.PlaneFloor{
			Y:      l.FloorY,
			Extent: locomotion.Rect{MinX: -l.HalfWidth, MaxX: l.HalfWidth, MinZ: -l.HalfDepth, MaxZ: l.HalfDepth},
		},
		Spawn:    mgl64.Vec3(l.Spawn),
		SpawnYaw: mgl64.DegToRad(l.SpawnYawDeg),
	}
	if b := l.Bench; b != nil {
		r := locomotion.RectFromCenter(b.X, b.Z, b.Length, b.Depth)
		room.Obstacle = &r
	}
	return room
}
