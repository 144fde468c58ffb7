// Package coordinator owns the live room and propagation state on the
// server, turns emissions into per-node impulse responses and sends them,
// followed by a trigger carrying the rendezvous time, to every node.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-reflect/acoustics/irbuild"
	"github.com/cwbudde/algo-reflect/acoustics/propagation"
	"github.com/cwbudde/algo-reflect/acoustics/room"
	"github.com/cwbudde/algo-reflect/control"
	"github.com/cwbudde/algo-reflect/dsp/conv"
	"github.com/cwbudde/algo-reflect/rendezvous"
)

// Errors returned by the coordinator.
var (
	ErrUnknownPath  = errors.New("coordinator: unknown path")
	ErrEmptyPath    = errors.New("coordinator: path has no points")
	ErrNoNodes      = errors.New("coordinator: no nodes registered")
	ErrInvalidPoint = errors.New("coordinator: point is not finite")
	ErrReset        = errors.New("coordinator: emission superseded by reset")
)

// Transport delivers frames and commands to single nodes.
// transport/ws.Hub implements it.
type Transport interface {
	SendBinary(node int, data []byte) error
	SendCommand(node int, cmd control.Command) error
}

// Emission summarizes one computed and dispatched emission.
type Emission struct {
	ID         int
	Images     int
	Taps       int
	MinTime    float64
	Rendezvous float64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLookahead sets the rendezvous distance in seconds.
func WithLookahead(seconds float64) Option {
	return func(c *Coordinator) {
		if seconds > 0 {
			c.lookahead = seconds
		}
	}
}

// WithSimulator replaces the default propagation simulator.
func WithSimulator(s *propagation.Simulator) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.sim = s
		}
	}
}

// WithEmissionHook registers a callback run after every emission handled
// by Serve, successful or not.
func WithEmissionHook(fn func(Emission, error)) Option {
	return func(c *Coordinator) {
		c.hook = fn
	}
}

// WithQueue sets how many emissions Serve buffers for its worker.
func WithQueue(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queue = n
		}
	}
}

// state is everything an emission reads. Emissions work on a copy.
type state struct {
	room   room.Room
	params propagation.Params
	nodes  map[int]room.Vec2
	paths  map[int][]propagation.Waypoint
	render conv.RenderParams
}

// Coordinator is safe for concurrent use. Configuration takes the write
// lock only to validate and swap; emissions hold the read lock only while
// copying the state.
type Coordinator struct {
	transport Transport
	clock     rendezvous.SyncClock
	sim       *propagation.Simulator
	logger    *slog.Logger
	lookahead float64
	hook      func(Emission, error)
	queue     int

	mu    sync.RWMutex
	state state

	// emitter emissions are numbered -1, -2, ... so they never collide
	// with path ids.
	emitMu   sync.Mutex
	lastEmit int

	// generation counts resets; an emission started in an older generation
	// is not dispatched.
	generation atomic.Uint64
}

// New returns a coordinator for rm and p. Both must be valid.
func New(rm room.Room, p propagation.Params, transport Transport, clock rendezvous.SyncClock, opts ...Option) (*Coordinator, error) {
	if err := rm.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		transport: transport,
		clock:     clock,
		logger:    slog.Default(),
		lookahead: rendezvous.DefaultLookahead,
		queue:     16,
		state: state{
			room:   rm,
			params: p,
			nodes:  make(map[int]room.Vec2),
			paths:  make(map[int][]propagation.Waypoint),
			render: conv.DefaultRenderParams(),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.sim == nil {
		c.sim = propagation.NewSimulator(propagation.WithLogger(c.logger))
	}
	return c, nil
}

// Room returns the current room.
func (c *Coordinator) Room() room.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.room
}

// Params returns the current propagation parameters.
func (c *Coordinator) Params() propagation.Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.params
}

// RenderParams returns the render parameters last forwarded to nodes.
func (c *Coordinator) RenderParams() conv.RenderParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.render
}

// Nodes returns the registered node ids in ascending order.
func (c *Coordinator) Nodes() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedIDs(c.state.nodes)
}

// NodePosition returns the receiver position of a node.
func (c *Coordinator) NodePosition(id int) (room.Vec2, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.state.nodes[id]
	return p, ok
}

// Path returns a copy of a path's waypoints.
func (c *Coordinator) Path(id int) []propagation.Waypoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]propagation.Waypoint(nil), c.state.paths[id]...)
}

// view is the part of the state one emission reads.
type view struct {
	room      room.Room
	params    propagation.Params
	ids       []int
	receivers []room.Vec2
}

// snapshot copies the state an emission needs.
func (c *Coordinator) snapshot() view {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewLocked()
}

// pathSnapshot is snapshot plus a copy of one path, read under the same
// lock. known is false when the path was never defined.
func (c *Coordinator) pathSnapshot(id int) (v view, waypoints []propagation.Waypoint, known bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stored, known := c.state.paths[id]
	return c.viewLocked(), append([]propagation.Waypoint(nil), stored...), known
}

func (c *Coordinator) viewLocked() view {
	v := view{
		room:   c.state.room,
		params: c.state.params,
		ids:    sortedIDs(c.state.nodes),
	}
	v.receivers = make([]room.Vec2, len(v.ids))
	for i, id := range v.ids {
		v.receivers[i] = c.state.nodes[id]
	}
	return v
}

func sortedIDs(m map[int]room.Vec2) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *Coordinator) nextEmitterID() int {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.lastEmit--
	return c.lastEmit
}

// Emit runs a reflective emission at pos and dispatches the result.
func (c *Coordinator) Emit(pos room.Vec2) (Emission, error) {
	return c.emit(pos, c.generation.Load())
}

func (c *Coordinator) emit(pos room.Vec2, gen uint64) (Emission, error) {
	if err := c.current(gen); err != nil {
		return Emission{}, err
	}
	v := c.snapshot()
	if len(v.ids) == 0 {
		return Emission{}, ErrNoNodes
	}

	images, err := c.sim.Reflect(pos, v.room, v.params)
	if err != nil {
		return Emission{}, err
	}
	return c.dispatch(c.nextEmitterID(), images, v, gen)
}

// StartPath runs the emission of a stored path and dispatches the result.
// The path id doubles as the emission id.
func (c *Coordinator) StartPath(id int) (Emission, error) {
	return c.startPath(id, c.generation.Load())
}

func (c *Coordinator) startPath(id int, gen uint64) (Emission, error) {
	if err := c.current(gen); err != nil {
		return Emission{}, err
	}
	v, waypoints, known := c.pathSnapshot(id)
	if len(v.ids) == 0 {
		return Emission{}, ErrNoNodes
	}
	if !known {
		return Emission{}, fmt.Errorf("%w: %d", ErrUnknownPath, id)
	}
	if len(waypoints) == 0 {
		return Emission{}, fmt.Errorf("%w: %d", ErrEmptyPath, id)
	}
	return c.dispatch(id, propagation.PathImages(waypoints), v, gen)
}

// current fails with ErrReset once a reset happened after gen was read.
func (c *Coordinator) current(gen uint64) error {
	if c.generation.Load() != gen {
		return ErrReset
	}
	return nil
}

// dispatch builds one response per node, sends each node its frame and
// then the trigger. A failing node does not stop delivery to the others.
func (c *Coordinator) dispatch(id int, images []propagation.SourceImage, v view, gen uint64) (Emission, error) {
	res := irbuild.Build(images, v.receivers, v.params)
	if err := c.current(gen); err != nil {
		return Emission{}, fmt.Errorf("emission %d: %w", id, err)
	}
	rdv := rendezvous.Lookahead(c.clock, c.lookahead)

	e := Emission{
		ID:         id,
		Images:     len(images),
		Taps:       res.Taps(),
		MinTime:    res.MinTime,
		Rendezvous: rdv,
	}

	var errs []error
	for i, node := range v.ids {
		frame := encodeFrame(id, res.MinTime, res.IRs[i])
		if err := c.transport.SendBinary(node, frame); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", node, err))
			continue
		}
		if err := c.transport.SendCommand(node, control.Trigger{ID: id, Rendezvous: rdv}); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", node, err))
		}
	}

	c.logger.Debug("emission dispatched",
		"emission", id, "images", e.Images, "taps", e.Taps, "minTime", e.MinTime, "rendezvous", rdv)
	return e, errors.Join(errs...)
}

// broadcast sends cmd to every registered node.
func (c *Coordinator) broadcast(cmd control.Command) error {
	var errs []error
	for _, node := range c.Nodes() {
		if err := c.transport.SendCommand(node, cmd); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", node, err))
		}
	}
	return errors.Join(errs...)
}
