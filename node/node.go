// Package node is the playback side of the pipeline. A Node stores the
// impulse responses addressed to it, renders them against the selected
// source clip when triggered and hands the result to its rendezvous
// scheduler.
//
// Missing responses, missing clips and late rendezvous never stop the node;
// they are reported through the Feedback callback.
package node

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cwbudde/algo-reflect/audio/asset"
	"github.com/cwbudde/algo-reflect/control"
	"github.com/cwbudde/algo-reflect/dsp/conv"
	"github.com/cwbudde/algo-reflect/dsp/core"
	"github.com/cwbudde/algo-reflect/dsp/mix"
	"github.com/cwbudde/algo-reflect/measure/ir"
	"github.com/cwbudde/algo-reflect/rendezvous"
	"github.com/cwbudde/algo-reflect/transport/wire"
	"github.com/faiface/beep"
)

// DefaultCacheSize bounds the number of rendered outputs kept for reuse.
const DefaultCacheSize = 16

// Option configures a Node.
type Option func(*settings)

type settings struct {
	logger      *slog.Logger
	feedback    func(Feedback)
	afterFunc   rendezvous.AfterFunc
	cacheSize   int
	maxDuration float64
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFeedback registers the user-visible cue callback. It may be called
// from timer goroutines.
func WithFeedback(fn func(Feedback)) Option {
	return func(s *settings) {
		s.feedback = fn
	}
}

// WithAfterFunc replaces time.AfterFunc for rendezvous timers.
func WithAfterFunc(f rendezvous.AfterFunc) Option {
	return func(s *settings) {
		s.afterFunc = f
	}
}

// WithCacheSize sets how many rendered outputs are kept.
func WithCacheSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithMaxDuration bounds the length of a response the node renders, in
// seconds. Longer responses fail their trigger.
func WithMaxDuration(seconds float64) Option {
	return func(s *settings) {
		s.maxDuration = seconds
	}
}

// Node is one playback node. It is safe for concurrent use.
type Node struct {
	id       int
	logger   *slog.Logger
	feedback func(Feedback)

	assets *asset.Registry
	conv   *conv.Convolver
	mixer  *mix.Mixer
	sched  *rendezvous.Scheduler

	mu     sync.Mutex
	irs    map[int]ir.ImpulseResponse
	source string
	params conv.RenderParams
	cache  *renderCache
}

// New returns a node rendering at the registry's sample rate.
func New(id int, clock rendezvous.SyncClock, assets *asset.Registry, opts ...Option) *Node {
	s := settings{logger: slog.Default(), cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	n := &Node{
		id:       id,
		logger:   s.logger.With("node", id),
		feedback: s.feedback,
		assets:   assets,
		conv:     conv.NewConvolver(core.WithSampleRate(assets.SampleRate()), core.WithMaxDuration(s.maxDuration)),
		mixer:    mix.NewMixer(assets.SampleRate()),
		irs:      make(map[int]ir.ImpulseResponse),
		params:   conv.DefaultRenderParams(),
	}
	n.cache = newRenderCache(n.conv, s.cacheSize)
	n.sched = rendezvous.NewScheduler(clock, n.mixer,
		rendezvous.WithAfterFunc(s.afterFunc),
		rendezvous.WithLogger(n.logger),
		rendezvous.WithLateStart(n.lateStart),
	)
	return n
}

// ID returns the node id.
func (n *Node) ID() int {
	return n.id
}

// Streamer returns the node's mixed output for the audio device.
func (n *Node) Streamer() beep.Streamer {
	return n.mixer.Streamer()
}

// Mixer returns the shared output mixer.
func (n *Node) Mixer() *mix.Mixer {
	return n.mixer
}

// Events returns a snapshot of the rendezvous events.
func (n *Node) Events() []rendezvous.Event {
	return n.sched.Events()
}

// IR returns the stored response for an emission. Emitter responses
// (negative ids) are gone once triggered; path responses stay until
// replaced.
func (n *Node) IR(emission int) (ir.ImpulseResponse, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.irs[emission]
	return r, ok
}

// Params returns the current render parameters.
func (n *Node) Params() conv.RenderParams {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params
}

// HandleBinary stores one wire frame. A later frame for the same emission
// replaces the earlier one.
func (n *Node) HandleBinary(data []byte) error {
	id, r, err := wire.DecodeIR(data)
	if err != nil {
		n.emit(Feedback{Kind: FeedbackBadFrame, Err: err})
		return fmt.Errorf("node %d: %w", n.id, err)
	}
	emission := int(id)

	n.mu.Lock()
	n.irs[emission] = r
	n.cache.evictEmission(emission)
	n.mu.Unlock()

	n.logger.Debug("impulse response stored", "emission", emission, "taps", r.Len(), "duration", r.Duration)
	return nil
}

// HandleCommand applies one control command addressed to this node.
func (n *Node) HandleCommand(cmd control.Command) error {
	switch c := cmd.(type) {
	case control.Trigger:
		return n.Trigger(c.ID, c.Rendezvous)
	case control.Reset:
		n.Reset()
		return nil
	case control.SelectSource:
		n.SelectSource(c.Name)
		return nil
	case control.SetMasterGain:
		n.mixer.SetMasterGain(c.Value)
		return nil
	case control.SetPercentage:
		return n.updateParams(func(p *conv.RenderParams) { p.Percentage = c.Value })
	case control.SetLoop:
		return n.updateParams(func(p *conv.RenderParams) { p.Loop = c.Enabled })
	case control.SetAccelerationSlope:
		return n.updateParams(func(p *conv.RenderParams) { p.AccelerationSlope = c.Value })
	case control.SetTimeBound:
		return n.updateParams(func(p *conv.RenderParams) { p.TimeBound = c.Value })
	default:
		return fmt.Errorf("%w: %s", ErrUnhandled, cmd.Key())
	}
}

// SelectSource chooses the clip later triggers render. The clip does not
// need to be loaded yet.
func (n *Node) SelectSource(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if name != n.source {
		n.source = name
		n.cache.evictAll()
	}
}

// Source returns the selected source name.
func (n *Node) Source() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.source
}

// SetParams replaces the render parameters after validating them.
func (n *Node) SetParams(p conv.RenderParams) error {
	return n.updateParams(func(cur *conv.RenderParams) { *cur = p })
}

func (n *Node) updateParams(apply func(*conv.RenderParams)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.params
	apply(&next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("node %d: %w", n.id, err)
	}
	if next != n.params {
		n.params = next
		n.cache.evictAll()
	}
	return nil
}

// Trigger renders emission with the selected source and schedules it for
// the synchronized time rdv. A trigger that arrives before its response,
// or while the source clip is missing, is dropped with feedback.
func (n *Node) Trigger(emission int, rdv float64) error {
	n.sched.Prune()

	n.mu.Lock()
	r, ok := n.irs[emission]
	if ok && oneShot(emission) {
		delete(n.irs, emission)
	}
	source, params := n.source, n.params
	n.mu.Unlock()

	if !ok {
		err := fmt.Errorf("%w: %d", ErrMissingIR, emission)
		n.emit(Feedback{Kind: FeedbackMissingIR, Emission: emission, Source: source, Err: err})
		return err
	}
	clip, err := n.assets.Get(source)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMissingAsset, err)
		n.emit(Feedback{Kind: FeedbackMissingAsset, Emission: emission, Source: source, Err: err})
		return err
	}

	key := renderKey{emission: emission, source: source, params: params}
	n.mu.Lock()
	entry := n.cache.acquire(key)
	n.mu.Unlock()

	if entry == nil {
		out, err := n.conv.Render(r, clip, params)
		if err != nil {
			return fmt.Errorf("node %d: render %d: %w", n.id, emission, err)
		}
		n.mu.Lock()
		entry = n.cache.store(key, out)
		n.mu.Unlock()
	}

	id := n.sched.Add(strconv.Itoa(emission))
	err = n.sched.Schedule(id, rdv, rendezvous.Clip{
		Buffer:  entry.out.Buffer,
		Gain:    entry.out.NormFactor,
		Release: func() { n.releaseEntry(entry) },
	})
	if err != nil {
		n.releaseEntry(entry)
	}
	if oneShot(emission) {
		n.mu.Lock()
		n.cache.evictEmission(emission)
		n.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("node %d: %w", n.id, err)
	}
	return nil
}

// oneShot reports whether emission is an emitter event, which the
// coordinator triggers exactly once. Paths keep non-negative ids and may
// be started again.
func oneShot(emission int) bool {
	return emission < 0
}

func (n *Node) releaseEntry(e *cacheEntry) {
	n.mu.Lock()
	n.cache.release(e)
	n.mu.Unlock()
}

// Reset cancels every pending, scheduled and playing event, drops rendered
// outputs and forgets emitter responses. Path responses and the selected
// source stay.
func (n *Node) Reset() {
	cancelled := n.sched.Reset()
	n.sched.Prune()
	n.mixer.StopAll()

	n.mu.Lock()
	n.cache.evictAll()
	for emission := range n.irs {
		if oneShot(emission) {
			delete(n.irs, emission)
		}
	}
	n.mu.Unlock()

	n.logger.Info("node reset", "cancelled", cancelled)
}

func (n *Node) lateStart(l rendezvous.LateStart) {
	emission, _ := strconv.Atoi(l.Key)
	n.emit(Feedback{Kind: FeedbackLateStart, Emission: emission, Overrun: l.Overrun})
}

func (n *Node) emit(f Feedback) {
	if f.Kind != FeedbackLateStart {
		n.logger.Warn("playback feedback", "kind", f.Kind, "emission", f.Emission, "source", f.Source, "err", f.Err)
	}
	if n.feedback != nil {
		n.feedback(f)
	}
}
