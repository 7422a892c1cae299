package locomotion

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Handedness is the role tag a controller reports when it connects.
type Handedness int

const (
	Unassigned Handedness = iota
	Left                  // snap-turn input
	Right                 // movement and teleport input
)

func (h Handedness) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unassigned"
}

// ParseHandedness maps a device handedness string to a role tag.
// Anything other than "left" or "right" is Unassigned.
func ParseHandedness(s string) Handedness {
	switch s {
	case "left":
		return Left
	case "right":
		return Right
	}
	return Unassigned
}

// Axis channels of a standard XR gamepad thumbstick.
const (
	AxisStickX = 2
	AxisStickY = 3
)

// DeviceInput is the raw per-frame state of one controller as reported by the
// device layer. Pose is in tracking space, i.e. relative to the rig.
type DeviceInput struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3 // local +Z axis; the pointing ray is its negation
	Axes     []float64
	Trigger  bool
	HasPad   bool // false when the gamepad object is missing
}

// HeadPose is the tracked viewpoint in tracking space.
type HeadPose struct {
	Position mgl64.Vec3
	Look     mgl64.Vec3 // direction the viewer is looking
}

// ControllerState is one controller's state for the current frame, in world space.
type ControllerState struct {
	Hand     Handedness
	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Axes     []float64
	Trigger  bool
}

// Axis returns channel i, or 0 when the device reports fewer channels.
func (c ControllerState) Axis(i int) float64 {
	if i < 0 || i >= len(c.Axes) {
		return 0
	}
	return c.Axes[i]
}

// Sampler keeps controller role assignments and the latest device input.
type Sampler struct {
	roles  map[int]Handedness
	byHand map[Handedness]int
	latest map[int]DeviceInput
	head   *HeadPose
	log    *zap.Logger
}

// NewSampler returns an empty sampler.
func NewSampler(log *zap.Logger) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sampler{log: log}
	s.Reset()
	return s
}

// Reset drops role assignments and buffered input.
func (s *Sampler) Reset() {
	s.roles = make(map[int]Handedness)
	s.byHand = make(map[Handedness]int)
	s.latest = make(map[int]DeviceInput)
	s.head = nil
}

// Connect assigns the role of a controller slot from its one-time connection
// notification. A slot keeps its first role, and a hand already claimed by
// another slot is not reassigned. Returns the role actually held by slot.
func (s *Sampler) Connect(slot int, hand Handedness) Handedness {
	if cur, ok := s.roles[slot]; ok {
		if cur != hand {
			s.log.Debug("ignoring handedness change", zap.Int("slot", slot),
				zap.Stringer("have", cur), zap.Stringer("reported", hand))
		}
		return cur
	}
	if hand != Unassigned {
		if other, taken := s.byHand[hand]; taken {
			s.log.Debug("hand already claimed", zap.Int("slot", slot),
				zap.Int("owner", other), zap.Stringer("hand", hand))
			hand = Unassigned
		} else {
			s.byHand[hand] = slot
		}
	}
	s.roles[slot] = hand
	s.log.Debug("controller connected", zap.Int("slot", slot), zap.Stringer("hand", hand))
	return hand
}

// Disconnect forgets a slot and frees its hand.
func (s *Sampler) Disconnect(slot int) {
	hand, ok := s.roles[slot]
	if !ok {
		return
	}
	delete(s.roles, slot)
	delete(s.latest, slot)
	if hand != Unassigned && s.byHand[hand] == slot {
		delete(s.byHand, hand)
	}
}

// Role returns the role of slot.
func (s *Sampler) Role(slot int) Handedness {
	return s.roles[slot]
}

// Push stores the latest input for a slot. Input for unconnected slots is kept
// but ignored until the slot connects.
func (s *Sampler) Push(slot int, in DeviceInput) {
	s.latest[slot] = in
}

// PushHead stores the latest viewpoint pose.
func (s *Sampler) PushHead(h HeadPose) {
	s.head = &h
}

// Controller returns the world-space state of the controller holding hand.
// ok is false when no controller holds the role or it has no gamepad data.
func (s *Sampler) Controller(hand Handedness, rig RigState) (ControllerState, bool) {
	slot, ok := s.byHand[hand]
	if !ok {
		return ControllerState{}, false
	}
	in, ok := s.latest[slot]
	if !ok || !in.HasPad {
		return ControllerState{}, false
	}
	return ControllerState{
		Hand:     hand,
		Position: rig.ToWorld(in.Position),
		Forward:  rotateY(in.Forward, rig.Yaw),
		Axes:     in.Axes,
		Trigger:  in.Trigger,
	}, true
}

// View returns the viewpoint's world position and look direction. Without a
// tracked head the viewpoint sits at the rig origin looking down -Z.
func (s *Sampler) View(rig RigState) (pos, look mgl64.Vec3) {
	h := HeadPose{Look: mgl64.Vec3{0, 0, -1}}
	if s.head != nil {
		h = *s.head
	}
	return rig.ToWorld(h.Position), rotateY(h.Look, rig.Yaw)
}
