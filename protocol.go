package main

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"

	"gallery-server/locomotion"
)

// Headset -> host message types
const (
	MsgJoin         = "join"
	MsgStart        = "start" // begin another VR session on the same link
	MsgConnected    = "connected"
	MsgDisconnected = "disconnected"
	MsgFrame        = "frame"
	MsgEnd          = "end"
)

// Host -> headset message types
const (
	MsgWelcome = "welcome"
	MsgRig     = "rig"
	MsgEnded   = "ended"
	MsgError   = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg pairs a headset with a session created by the operator.
type JoinMsg struct {
	SessionID string `json:"sid"`
	Token     string `json:"token"`
	Binary    bool   `json:"binary"` // rig frames as msgpack
}

// ConnectedMsg is the one-time controller connection notification.
type ConnectedMsg struct {
	Slot int    `json:"slot"`
	Hand string `json:"hand"` // "left", "right" or anything else for none
}

// DisconnectedMsg reports a controller going away.
type DisconnectedMsg struct {
	Slot int `json:"slot"`
}

// HeadMsg is the tracked viewpoint in tracking space.
type HeadMsg struct {
	Pos [3]float64 `json:"pos"`
	Dir [3]float64 `json:"dir"`
}

// InputMsg is one controller's state. A missing axes array means the device
// reported no gamepad this frame.
type InputMsg struct {
	Slot    int        `json:"slot"`
	Pos     [3]float64 `json:"pos"`
	Fwd     [3]float64 `json:"fwd"`
	Axes    []float64  `json:"axes"`
	Trigger bool       `json:"trigger"`
}

// FrameMsg is sent once per presented frame.
type FrameMsg struct {
	DT     float64    `json:"dt"`
	Head   *HeadMsg   `json:"head,omitempty"`
	Inputs []InputMsg `json:"inputs"`
}

// DeviceInput converts the wire form into the core's input type.
func (m InputMsg) DeviceInput() locomotion.DeviceInput {
	return locomotion.DeviceInput{
		Position: mgl64.Vec3(m.Pos),
		Forward:  mgl64.Vec3(m.Fwd),
		Axes:     m.Axes,
		Trigger:  m.Trigger,
		HasPad:   m.Axes != nil,
	}
}

// HeadPose converts the wire form into the core's head pose.
func (m HeadMsg) HeadPose() locomotion.HeadPose {
	return locomotion.HeadPose{Position: mgl64.Vec3(m.Pos), Look: mgl64.Vec3(m.Dir)}
}

// RigMsg is the per-frame reply: where to put the rig and what to draw.
type RigMsg struct {
	Pos    [3]float64   `json:"pos" msgpack:"pos"`
	Yaw    float64      `json:"yaw" msgpack:"yaw"`
	Phase  string       `json:"phase" msgpack:"phase"`
	Arc    [][3]float64 `json:"arc,omitempty" msgpack:"arc,omitempty"`
	Marker *[3]float64  `json:"marker,omitempty" msgpack:"marker,omitempty"`
}

// NewRigMsg flattens a core frame. The arc is only sent while visible and the
// marker only while the target is valid.
func NewRigMsg(f locomotion.Frame, phase locomotion.TeleportPhase) RigMsg {
	msg := RigMsg{Pos: f.Position, Yaw: f.Yaw, Phase: phase.String()}
	if f.ArcVisible {
		msg.Arc = make([][3]float64, len(f.Arc))
		for i, p := range f.Arc {
			msg.Arc[i] = p
		}
	}
	if f.MarkerVisible {
		m := [3]float64(f.Marker)
		msg.Marker = &m
	}
	return msg
}

// RoomInfo lets the headset build matching scenery.
type RoomInfo struct {
	Name   string      `json:"name"`
	Bounds [4]float64  `json:"bounds"` // minX, maxX, minZ, maxZ
	Bench  *[4]float64 `json:"bench,omitempty"`
	Spawn  [3]float64  `json:"spawn"`
	Yaw    float64     `json:"yaw"`
}

// NewRoomInfo describes room for the headset.
func NewRoomInfo(name string, room locomotion.Room) RoomInfo {
	b := room.Bounds
	info := RoomInfo{
		Name:   name,
		Bounds: [4]float64{b.MinX, b.MaxX, b.MinZ, b.MaxZ},
		Spawn:  room.Spawn,
		Yaw:    room.SpawnYaw,
	}
	if o := room.Obstacle; o != nil {
		info.Bench = &[4]float64{o.MinX, o.MaxX, o.MinZ, o.MaxZ}
	}
	return info
}

// WelcomeMsg confirms a join.
type WelcomeMsg struct {
	SessionID string   `json:"sid"`
	Room      RoomInfo `json:"room"`
	Rig       RigMsg   `json:"rig"`
}

// EndedMsg reports a finished VR session.
type EndedMsg struct {
	Elapsed float64 `json:"elapsed"`
}

// SessionInfo is used in the operator session list
type SessionInfo struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Paired    bool    `json:"paired"`
	Running   bool    `json:"running"`
	Frames    uint64  `json:"frames"`
	Teleports uint64  `json:"teleports"`
	Turns     uint64  `json:"turns"`
	AvgUpdate float64 `json:"avg_update_us"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}
