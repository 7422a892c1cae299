// Package locomotion implements headset locomotion inside a bounded room:
// smoothed stick movement with obstacle and wall collision, snap turning with
// viewpoint recentering, and ballistic teleportation.
//
// A Context is single-threaded. The surrounding application calls Update once
// per presented frame; nothing in this package starts goroutines or reads a
// clock.
package locomotion

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

var (
	// ErrInvalidBounds is returned for an inverted room rectangle.
	ErrInvalidBounds = errors.New("locomotion: invalid room bounds")
	// ErrInvalidSpawn is returned when the rig would start outside the
	// walkable area or overlapping the obstacle.
	ErrInvalidSpawn = errors.New("locomotion: invalid spawn point")
)

// Room is what the room-construction collaborator hands to the core.
type Room struct {
	Bounds   Rect
	Obstacle *Rect // nil when the room has no interior solid
	Floor    Floor // may be registered later with RegisterFloor

	Spawn    mgl64.Vec3 // Y is the fixed rig height
	SpawnYaw float64
}

// Observer receives locomotion events worth recording. All methods are called
// from inside Update, End or Start.
type Observer interface {
	SessionStarted(rig RigState)
	SessionEnded(rig RigState, elapsed float64)
	Teleported(from, to mgl64.Vec3)
	SnapTurned(yaw float64, rig mgl64.Vec3)
}

// Frame is what the renderer needs after an update.
type Frame struct {
	Position mgl64.Vec3
	Yaw      float64

	Arc        []mgl64.Vec3
	ArcVisible bool

	Marker        mgl64.Vec3
	MarkerVisible bool
}

// Option configures a Context.
type Option func(*Context)

// WithParams overrides the tuning.
func WithParams(p Params) Option {
	return func(c *Context) { c.params = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(c *Context) { c.observer = o }
}

// Context owns the rig and every piece of per-session locomotion state.
type Context struct {
	params   Params
	room     Room
	log      *zap.Logger
	observer Observer

	sampler  *Sampler
	snap     *SnapTurn
	teleport Teleporter

	rig     RigState
	elapsed float64
	running bool
}

// NewContext builds a stopped context for room.
func NewContext(room Room, opts ...Option) (*Context, error) {
	if !room.Bounds.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidBounds, room.Bounds)
	}
	c := &Context{
		params: DefaultParams(),
		room:   room,
		log:    zap.NewNop(),
		snap:   NewSnapTurn(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := CheckSpawn(room, c.params.PlayerRadius); err != nil {
		return nil, err
	}
	c.sampler = NewSampler(c.log)
	c.resetRig()
	return c, nil
}

// CheckSpawn reports whether a player of the given radius may start at the
// room's spawn point.
func CheckSpawn(room Room, radius float64) error {
	x, z := room.Spawn.X(), room.Spawn.Z()
	if !room.Bounds.Contains(x, z) {
		return fmt.Errorf("%w: (%g, %g) outside %+v", ErrInvalidSpawn, x, z, room.Bounds)
	}
	if o := room.Obstacle; o != nil && o.OverlapsSquare(x, z, radius) {
		return fmt.Errorf("%w: (%g, %g) overlaps obstacle %+v", ErrInvalidSpawn, x, z, *o)
	}
	return nil
}

// RegisterFloor hands the teleport ray-cast target to the core.
func (c *Context) RegisterFloor(f Floor) {
	c.room.Floor = f
}

// Start begins a VR session: transient state is cleared and the rig is put
// back at the spawn point.
func (c *Context) Start() {
	c.Reset()
	c.resetRig()
	c.running = true
	if c.observer != nil {
		c.observer.SessionStarted(c.rig)
	}
}

// End stops the loop and clears all transient state.
func (c *Context) End() {
	if !c.running {
		return
	}
	c.running = false
	if c.observer != nil {
		c.observer.SessionEnded(c.rig, c.elapsed)
	}
	c.Reset()
}

// Reset clears the teleport session, snap-turn debounce, role assignments and
// velocities. The rig position is kept.
func (c *Context) Reset() {
	c.teleport.Reset()
	c.snap.Reset()
	c.sampler.Reset()
	c.rig.Velocity = mgl64.Vec3{}
	c.rig.TargetVelocity = mgl64.Vec3{}
	c.elapsed = 0
}

func (c *Context) resetRig() {
	c.rig = RigState{Position: c.room.Spawn, Yaw: c.room.SpawnYaw}
}

// Running reports whether a session is active.
func (c *Context) Running() bool { return c.running }

// Rig returns a copy of the rig state.
func (c *Context) Rig() RigState { return c.rig }

// Elapsed returns the session time accumulated from Update calls.
func (c *Context) Elapsed() float64 { return c.elapsed }

// Phase returns the teleport phase.
func (c *Context) Phase() TeleportPhase { return c.teleport.Phase() }

// Params returns the active tuning.
func (c *Context) Params() Params { return c.params }

// Room returns the room description.
func (c *Context) Room() Room { return c.room }

// Current returns the frame of the last update without advancing.
func (c *Context) Current() Frame { return c.frame() }

// Connect handles a controller's one-time connection notification.
func (c *Context) Connect(slot int, hand Handedness) Handedness {
	return c.sampler.Connect(slot, hand)
}

// Disconnect drops a controller slot.
func (c *Context) Disconnect(slot int) {
	if c.sampler.Role(slot) == Right {
		c.dropAim("teleport controller disconnected")
	}
	c.sampler.Disconnect(slot)
}

// PushInput records the latest device input for a controller slot.
func (c *Context) PushInput(slot int, in DeviceInput) {
	c.sampler.Push(slot, in)
}

// PushHead records the latest viewpoint pose.
func (c *Context) PushHead(h HeadPose) {
	c.sampler.PushHead(h)
}

// Update advances one presented frame of dt seconds and returns what to draw.
// Order: sample input, continuous movement, snap turn, teleport, commit.
func (c *Context) Update(dt float64) Frame {
	if !c.running {
		return c.frame()
	}
	if dt < 0 {
		dt = 0
	}
	dt = min(dt, c.params.MaxFrameDT)
	c.elapsed += dt

	rig := c.rig
	mover, hasMover := c.sampler.Controller(Right, rig)
	turner, hasTurner := c.sampler.Controller(Left, rig)

	c.move(&rig, mover, hasMover, dt)
	c.turn(&rig, turner, hasTurner)
	c.teleportStep(&rig, mover, hasMover)

	c.rig = rig
	return c.frame()
}

func (c *Context) move(rig *RigState, mover ControllerState, ok bool, dt float64) {
	rig.TargetVelocity = mgl64.Vec3{}
	if ok && len(mover.Axes) >= 4 && c.teleport.Phase() != Aiming {
		_, look := c.sampler.View(*rig)
		rig.TargetVelocity = ResolveIntent(mover.Axis(AxisStickX), mover.Axis(AxisStickY),
			look, rig.Right(), c.params)
	}
	rig.Velocity = Smooth(rig.Velocity, rig.TargetVelocity, dt, c.params)
	if rig.Velocity.Len() <= c.params.IdleVelocity {
		return
	}
	x, z := ResolveMove(rig.Position.X(), rig.Position.Z(),
		rig.Velocity.X()*dt, rig.Velocity.Z()*dt,
		c.params.PlayerRadius, c.params.CollisionEpsilon, c.room.Bounds, c.room.Obstacle)
	rig.Position = mgl64.Vec3{x, rig.Position.Y(), z}
}

func (c *Context) turn(rig *RigState, turner ControllerState, ok bool) {
	if !ok || len(turner.Axes) < 3 {
		return
	}
	delta := c.snap.Step(turner.Axis(AxisStickX), c.elapsed, c.params)
	if delta == 0 {
		return
	}
	rig.Yaw += delta
	view, _ := c.sampler.View(*rig)
	rig.Position = Recenter(*rig, view, c.room.Bounds)
	if c.observer != nil {
		c.observer.SnapTurned(rig.Yaw, rig.Position)
	}
}

func (c *Context) teleportStep(rig *RigState, mover ControllerState, ok bool) {
	if !ok {
		c.dropAim("teleport controller has no input")
		return
	}
	if c.room.Floor == nil {
		return
	}
	target, commit := c.teleport.Step(mover.Trigger, mover, c.room.Floor,
		c.room.Bounds, c.room.Obstacle, c.params)
	if !commit {
		return
	}
	from := rig.Position
	rig.Position = mgl64.Vec3{target.X(), rig.Position.Y(), target.Z()}
	c.log.Debug("teleport committed",
		zap.Float64("x", target.X()), zap.Float64("z", target.Z()))
	if c.observer != nil {
		c.observer.Teleported(from, rig.Position)
	}
}

// dropAim discards a live aiming session without committing it. An aim only
// lives while the controller that started it keeps reporting a held trigger.
func (c *Context) dropAim(reason string) {
	if c.teleport.Phase() != Aiming {
		return
	}
	c.teleport.Reset()
	c.log.Debug("teleport aim dropped", zap.String("reason", reason))
}

func (c *Context) frame() Frame {
	f := Frame{Position: c.rig.Position, Yaw: c.rig.Yaw}
	if s := c.teleport.Session(); s != nil {
		f.Arc = s.Arc
		f.ArcVisible = true
		f.Marker = s.Marker
		f.MarkerVisible = s.Valid
	}
	return f
}
