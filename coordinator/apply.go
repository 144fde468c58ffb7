package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cwbudde/algo-reflect/acoustics/propagation"
	"github.com/cwbudde/algo-reflect/acoustics/room"
	"github.com/cwbudde/algo-reflect/control"
	"github.com/cwbudde/algo-reflect/dsp/conv"
	"github.com/cwbudde/algo-reflect/dsp/core"
	"github.com/cwbudde/algo-reflect/measure/ir"
	"github.com/cwbudde/algo-reflect/transport/wire"
)

func encodeFrame(id int, minTime float64, r ir.ImpulseResponse) []byte {
	return wire.Encode(float64(id), minTime, r)
}

// Apply handles one command synchronously. Configuration errors leave the
// previous state in effect. Emissions run on the calling goroutine; Serve
// moves them to its worker instead.
func (c *Coordinator) Apply(cmd control.Command) error {
	switch cmd := cmd.(type) {
	case control.SetTopLeft:
		return c.updateRoom(func(r *room.Room) error {
			return r.SetCorners(room.V(cmd.X, cmd.Y), r.BottomRight)
		})
	case control.SetBottomRight:
		return c.updateRoom(func(r *room.Room) error {
			return r.SetCorners(r.TopLeft, room.V(cmd.X, cmd.Y))
		})
	case control.SetAbsorption:
		return c.updateRoom(func(r *room.Room) error {
			return r.SetAbsorption(cmd.Wall, cmd.Value)
		})
	case control.SetScatterAmplitude:
		return c.updateRoom(func(r *room.Room) error {
			return r.SetScatter(cmd.Value, r.ScatterAngle)
		})
	case control.SetScatterAngle:
		return c.updateRoom(func(r *room.Room) error {
			return r.SetScatter(r.ScatterAmplitude, cmd.Radians)
		})

	case control.SetSpeed:
		return c.updateParams(func(p *propagation.Params) { p.Speed = cmd.Value })
	case control.SetGain:
		return c.updateParams(func(p *propagation.Params) { p.Gain = cmd.Value })
	case control.SetRxMinGain:
		return c.updateParams(func(p *propagation.Params) { p.RxMinGain = cmd.Value })

	case control.SetNodePosition:
		if !core.Finite(cmd.X, cmd.Y) {
			return ErrInvalidPoint
		}
		c.mu.Lock()
		c.state.nodes[cmd.Node] = room.V(cmd.X, cmd.Y)
		c.mu.Unlock()
		return nil
	case control.ClearPath:
		c.mu.Lock()
		c.state.paths[cmd.Path] = nil
		c.mu.Unlock()
		return nil
	case control.AddPathPoint:
		if !core.Finite(cmd.Time, cmd.X, cmd.Y) {
			return ErrInvalidPoint
		}
		c.mu.Lock()
		c.state.paths[cmd.Path] = append(c.state.paths[cmd.Path], propagation.Waypoint{
			Time:     cmd.Time,
			Position: room.V(cmd.X, cmd.Y),
		})
		c.mu.Unlock()
		return nil

	case control.SetPercentage:
		return c.updateRender(cmd, func(p *conv.RenderParams) { p.Percentage = cmd.Value })
	case control.SetLoop:
		return c.updateRender(cmd, func(p *conv.RenderParams) { p.Loop = cmd.Enabled })
	case control.SetAccelerationSlope:
		return c.updateRender(cmd, func(p *conv.RenderParams) { p.AccelerationSlope = cmd.Value })
	case control.SetTimeBound:
		return c.updateRender(cmd, func(p *conv.RenderParams) { p.TimeBound = cmd.Value })
	case control.SetMasterGain, control.SelectSource, control.Trigger:
		return c.broadcast(cmd)
	case control.Reset:
		c.generation.Add(1)
		return c.broadcast(cmd)

	case control.EmitAtPos:
		_, err := c.Emit(room.V(cmd.X, cmd.Y))
		return err
	case control.StartPath:
		_, err := c.StartPath(cmd.Path)
		return err

	default:
		return fmt.Errorf("coordinator: unhandled command %T", cmd)
	}
}

func (c *Coordinator) updateRoom(apply func(*room.Room) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return apply(&c.state.room)
}

func (c *Coordinator) updateParams(apply func(*propagation.Params)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state.params
	apply(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	c.state.params = next
	return nil
}

// updateRender validates a render parameter change before forwarding the
// command to the nodes, which apply it themselves.
func (c *Coordinator) updateRender(cmd control.Command, apply func(*conv.RenderParams)) error {
	c.mu.Lock()
	next := c.state.render
	apply(&next)
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state.render = next
	c.mu.Unlock()
	return c.broadcast(cmd)
}

// Serve applies commands from cmds until ctx is done or cmds is closed.
// Configuration is applied in order on the calling goroutine; emissions
// are queued to a single worker so dispatch never waits on a simulation.
// Queued emissions are finished before Serve returns. A reset discards
// every emission queued or running before it.
func (c *Coordinator) Serve(ctx context.Context, cmds <-chan control.Command) error {
	jobs := make(chan job, c.queue)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := range jobs {
			c.runEmission(j)
		}
	}()
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			switch cmd.(type) {
			case control.EmitAtPos, control.StartPath:
				select {
				case jobs <- job{cmd: cmd, gen: c.generation.Load()}:
				case <-ctx.Done():
					return ctx.Err()
				}
			default:
				if err := c.Apply(cmd); err != nil {
					c.logger.Warn("command rejected", "command", control.Format(cmd), "err", err)
				}
			}
		}
	}
}

// job is an emission command queued together with the reset generation it
// was accepted in.
type job struct {
	cmd control.Command
	gen uint64
}

func (c *Coordinator) runEmission(j job) {
	var (
		e   Emission
		err error
	)
	switch cmd := j.cmd.(type) {
	case control.EmitAtPos:
		e, err = c.emit(room.V(cmd.X, cmd.Y), j.gen)
	case control.StartPath:
		e, err = c.startPath(cmd.Path, j.gen)
	}
	switch {
	case errors.Is(err, ErrReset):
		c.logger.Debug("emission dropped after reset", "command", control.Format(j.cmd))
	case err != nil:
		c.logger.Warn("emission failed", "command", control.Format(j.cmd), "err", err)
	}
	if c.hook != nil {
		c.hook(e, err)
	}
}
