package config

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-reflect/acoustics/room"
	"github.com/cwbudde/algo-reflect/control"
)

// Commands returns what a coordinator built from c's room and propagation
// settings still needs: node positions, paths, render settings and the
// source selection.
func (c *Config) Commands() []control.Command {
	var cmds []control.Command
	for _, n := range c.Nodes {
		cmds = append(cmds, control.SetNodePosition{Node: n.ID, X: n.Position[0], Y: n.Position[1]})
	}
	for _, p := range c.Paths {
		cmds = appendPath(cmds, p)
	}
	cmds = append(cmds,
		control.SetPercentage{Value: c.Render.Percentage},
		control.SetLoop{Enabled: c.Render.Loop},
		control.SetAccelerationSlope{Value: c.Render.AccelerationSlope},
		control.SetTimeBound{Value: c.Render.TimeBound},
		control.SetMasterGain{Value: c.Render.MasterGain},
	)
	if c.Render.Source != "" {
		cmds = append(cmds, control.SelectSource{Name: c.Render.Source})
	}
	return cmds
}

// Diff returns the commands that move a coordinator configured with old to
// next, in an order where each command is valid on its own. Both configs
// must be valid. Nodes and paths removed from next are not expressible as
// commands; removed paths are cleared, removed nodes stay.
func Diff(old, next *Config) []control.Command {
	var cmds []control.Command
	cmds = appendCorners(cmds, old.Room, next.Room)
	for w := range next.Room.Absorption {
		if next.Room.Absorption[w] != old.Room.Absorption[w] {
			cmds = append(cmds, control.SetAbsorption{Wall: room.Wall(w), Value: next.Room.Absorption[w]})
		}
	}
	if next.Room.ScatterAmplitude != old.Room.ScatterAmplitude {
		cmds = append(cmds, control.SetScatterAmplitude{Value: next.Room.ScatterAmplitude})
	}
	if next.Room.ScatterAngle != old.Room.ScatterAngle {
		cmds = append(cmds, control.SetScatterAngle{Radians: next.Room.ScatterAngle})
	}

	if next.Propagation.Speed != old.Propagation.Speed {
		cmds = append(cmds, control.SetSpeed{Value: next.Propagation.Speed})
	}
	if next.Propagation.Gain != old.Propagation.Gain {
		cmds = append(cmds, control.SetGain{Value: next.Propagation.Gain})
	}
	if next.Propagation.RxMinGain != old.Propagation.RxMinGain {
		cmds = append(cmds, control.SetRxMinGain{Value: next.Propagation.RxMinGain})
	}

	oldPos := old.Positions()
	for _, n := range next.Nodes {
		if p, ok := oldPos[n.ID]; !ok || p != room.V(n.Position[0], n.Position[1]) {
			cmds = append(cmds, control.SetNodePosition{Node: n.ID, X: n.Position[0], Y: n.Position[1]})
		}
	}

	oldPaths := make(map[int][][3]float64, len(old.Paths))
	for _, p := range old.Paths {
		oldPaths[p.ID] = p.Points
	}
	for _, p := range next.Paths {
		if prev, ok := oldPaths[p.ID]; !ok || !slices.Equal(prev, p.Points) {
			cmds = appendPath(cmds, p)
		}
		delete(oldPaths, p.ID)
	}
	removed := make([]int, 0, len(oldPaths))
	for id := range oldPaths {
		removed = append(removed, id)
	}
	slices.Sort(removed)
	for _, id := range removed {
		cmds = append(cmds, control.ClearPath{Path: id})
	}

	o, n := old.Render, next.Render
	if n.Percentage != o.Percentage {
		cmds = append(cmds, control.SetPercentage{Value: n.Percentage})
	}
	if n.Loop != o.Loop {
		cmds = append(cmds, control.SetLoop{Enabled: n.Loop})
	}
	if n.AccelerationSlope != o.AccelerationSlope {
		cmds = append(cmds, control.SetAccelerationSlope{Value: n.AccelerationSlope})
	}
	if n.TimeBound != o.TimeBound {
		cmds = append(cmds, control.SetTimeBound{Value: n.TimeBound})
	}
	if n.MasterGain != o.MasterGain {
		cmds = append(cmds, control.SetMasterGain{Value: n.MasterGain})
	}
	if n.Source != o.Source && n.Source != "" {
		cmds = append(cmds, control.SelectSource{Name: n.Source})
	}
	return cmds
}

func appendPath(cmds []control.Command, p Path) []control.Command {
	cmds = append(cmds, control.ClearPath{Path: p.ID})
	for _, pt := range p.Points {
		cmds = append(cmds, control.AddPathPoint{Path: p.ID, Time: pt[0], X: pt[1], Y: pt[2]})
	}
	return cmds
}

// appendCorners moves the room corners through the union of both rooms, so
// the room stays non-degenerate after every single-corner command.
func appendCorners(cmds []control.Command, old, next Room) []control.Command {
	if old.TopLeft == next.TopLeft && old.BottomRight == next.BottomRight {
		return cmds
	}
	union := [2]float64{
		math.Max(old.BottomRight[0], next.BottomRight[0]),
		math.Max(old.BottomRight[1], next.BottomRight[1]),
	}
	if union != old.BottomRight {
		cmds = append(cmds, control.SetBottomRight{X: union[0], Y: union[1]})
	}
	if next.TopLeft != old.TopLeft {
		cmds = append(cmds, control.SetTopLeft{X: next.TopLeft[0], Y: next.TopLeft[1]})
	}
	if union != next.BottomRight {
		cmds = append(cmds, control.SetBottomRight{X: next.BottomRight[0], Y: next.BottomRight[1]})
	}
	return cmds
}
