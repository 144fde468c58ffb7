// Package control defines the commands carried on the control channel and
// their text form, one command per line:
//
//	key arg1 arg2 ...
//
// Each key maps to one Command variant. Consumers dispatch with a type
// switch on the variant, never on the key string.
package control

import (
	"strconv"

	"github.com/cwbudde/algo-reflect/acoustics/room"
)

// Command is one control message. The set of variants is closed.
type Command interface {
	// Key returns the wire key, e.g. "room.topLeft".
	Key() string
	args() []string
}

// Room geometry and surfaces.
type (
	SetTopLeft     struct{ X, Y float64 }
	SetBottomRight struct{ X, Y float64 }
	SetAbsorption  struct {
		Wall  room.Wall
		Value float64
	}
	SetScatterAmplitude struct{ Value float64 }
	SetScatterAngle     struct{ Radians float64 }
)

// Propagation parameters.
type (
	SetSpeed     struct{ Value float64 }
	SetGain      struct{ Value float64 }
	SetRxMinGain struct{ Value float64 }
)

// Receivers and paths.
type (
	SetNodePosition struct {
		Node int
		X, Y float64
	}
	ClearPath    struct{ Path int }
	AddPathPoint struct {
		Path int
		Time float64
		X, Y float64
	}
)

// Render parameters, forwarded to every node.
type (
	SetPercentage        struct{ Value float64 }
	SetLoop              struct{ Enabled bool }
	SetAccelerationSlope struct{ Value float64 }
	SetTimeBound         struct{ Value float64 }
	SetMasterGain        struct{ Value float64 }
	SelectSource         struct{ Name string }
)

// Emissions and playback.
type (
	EmitAtPos struct{ X, Y float64 }
	StartPath struct{ Path int }

	// Trigger asks a node to play emission ID at synchronized time Rendezvous.
	Trigger struct {
		ID         int
		Rendezvous float64
	}

	// Reset cancels everything in flight on a node.
	Reset struct{}
)

func (SetTopLeft) Key() string           { return "room.topLeft" }
func (SetBottomRight) Key() string       { return "room.bottomRight" }
func (SetAbsorption) Key() string        { return "room.absorption" }
func (SetScatterAmplitude) Key() string  { return "room.scatterAmplitude" }
func (SetScatterAngle) Key() string      { return "room.scatterAngle" }
func (SetSpeed) Key() string             { return "propagation.speed" }
func (SetGain) Key() string              { return "propagation.gain" }
func (SetRxMinGain) Key() string         { return "propagation.rxMinGain" }
func (SetNodePosition) Key() string      { return "node.position" }
func (ClearPath) Key() string            { return "path.clear" }
func (AddPathPoint) Key() string         { return "path.point" }
func (SetPercentage) Key() string        { return "render.percentage" }
func (SetLoop) Key() string              { return "render.loop" }
func (SetAccelerationSlope) Key() string { return "render.accelerationSlope" }
func (SetTimeBound) Key() string         { return "render.timeBound" }
func (SetMasterGain) Key() string        { return "master.gain" }
func (SelectSource) Key() string         { return "source.select" }
func (EmitAtPos) Key() string            { return "emitAtPos" }
func (StartPath) Key() string            { return "startPath" }
func (Trigger) Key() string              { return "trigger" }
func (Reset) Key() string                { return "reset" }

func (c SetTopLeft) args() []string     { return floats(c.X, c.Y) }
func (c SetBottomRight) args() []string { return floats(c.X, c.Y) }
func (c SetAbsorption) args() []string {
	return append([]string{itoa(int(c.Wall))}, floats(c.Value)...)
}
func (c SetScatterAmplitude) args() []string { return floats(c.Value) }
func (c SetScatterAngle) args() []string     { return floats(c.Radians) }
func (c SetSpeed) args() []string            { return floats(c.Value) }
func (c SetGain) args() []string             { return floats(c.Value) }
func (c SetRxMinGain) args() []string        { return floats(c.Value) }
func (c SetNodePosition) args() []string     { return append([]string{itoa(c.Node)}, floats(c.X, c.Y)...) }
func (c ClearPath) args() []string           { return []string{itoa(c.Path)} }
func (c AddPathPoint) args() []string {
	return append([]string{itoa(c.Path)}, floats(c.Time, c.X, c.Y)...)
}
func (c SetPercentage) args() []string { return floats(c.Value) }
func (c SetLoop) args() []string {
	if c.Enabled {
		return []string{"1"}
	}
	return []string{"0"}
}
func (c SetAccelerationSlope) args() []string { return floats(c.Value) }
func (c SetTimeBound) args() []string         { return floats(c.Value) }
func (c SetMasterGain) args() []string        { return floats(c.Value) }
func (c SelectSource) args() []string         { return []string{c.Name} }
func (c EmitAtPos) args() []string            { return floats(c.X, c.Y) }
func (c StartPath) args() []string            { return []string{itoa(c.Path)} }
func (c Trigger) args() []string              { return append([]string{itoa(c.ID)}, floats(c.Rendezvous)...) }
func (Reset) args() []string                  { return nil }

func floats(vs ...float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
