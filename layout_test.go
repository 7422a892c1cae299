package main

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-server/locomotion"
)

var testRadius = locomotion.DefaultParams().PlayerRadius

func TestDefaultLayoutRoom(t *testing.T) {
	room := DefaultLayout().Room()

	assert.Equal(t, -3.5, room.Bounds.MinX)
	assert.Equal(t, 3.5, room.Bounds.MaxZ)
	require.NotNil(t, room.Obstacle)
	assert.InDelta(t, -2.8, room.Obstacle.MinZ, 1e-12)
	assert.InDelta(t, -2.1, room.Obstacle.MaxZ, 1e-12)
	assert.Equal(t, -1.0, room.Obstacle.MinX)
	assert.Equal(t, 1.0, room.Obstacle.MaxX)
	assert.InDelta(t, math.Pi, room.SpawnYaw, 1e-12)
	assert.Equal(t, 0.5, room.Spawn.Y())
	assert.NotNil(t, room.Floor)
}

func TestLoadLayout_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.yaml")
	body := `
name: annex
half_width: 6
wall_buffer: 0.25
bench: null
spawn: [1, 0.5, 1]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	l, err := LoadLayout(path, testRadius)
	require.NoError(t, err)
	assert.Equal(t, "annex", l.Name)
	assert.Equal(t, 4.0, l.HalfDepth, "missing keys keep defaults")

	room := l.Room()
	assert.Equal(t, 5.75, room.Bounds.MaxX)
	assert.Nil(t, room.Obstacle)
	assert.Equal(t, 1.0, room.Spawn.X())
}

func TestLoadLayout_Empty(t *testing.T) {
	l, err := LoadLayout("", testRadius)
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), l)
}

func TestLoadLayout_Invalid(t *testing.T) {
	cases := map[string]string{
		"buffer eats room": "wall_buffer: 5\n",
		"spawn outside":    "spawn: [9, 0.5, 0]\n",
		"flat bench":       "bench: {x: 0, z: 0, length: 0, depth: 1}\n",
		"no extents":       "half_width: 0\n",
		"spawn on bench":   "spawn: [0, 0.5, -2.45]\n",
		"spawn by bench":   "spawn: [0, 0.5, -1.9]\n",
		"bench past wall":  "bench: {x: 0, z: -3.9, length: 2, depth: 0.7}\n",
		"bench outside":    "bench: {x: 9, z: 0, length: 1, depth: 1}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "room.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadLayout(path, testRadius)
			assert.True(t, errors.Is(err, ErrInvalidLayout), "got %v", err)
		})
	}
}

func TestLoadLayout_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.yaml")
	require.NoError(t, os.WriteFile(path, []byte("half_width: [oops"), 0o644))
	_, err := LoadLayout(path, testRadius)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidLayout))
}

func TestValidateUsesPlayerRadius(t *testing.T) {
	l := DefaultLayout()
	l.Spawn = [3]float64{0, 0.5, -1.7}
	assert.NoError(t, l.Validate(0.3))
	assert.ErrorIs(t, l.Validate(0.5), ErrInvalidLayout)
	assert.ErrorIs(t, l.Validate(0.5), locomotion.ErrInvalidSpawn)
}
