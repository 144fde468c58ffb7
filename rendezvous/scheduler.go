package rendezvous

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/cwbudde/algo-reflect/dsp/core"
	"github.com/cwbudde/algo-reflect/dsp/mix"
)

// Errors returned by Scheduler.Schedule.
var (
	ErrUnknownEvent = errors.New("rendezvous: unknown event")
	ErrNotPending   = errors.New("rendezvous: event is not pending")
	ErrNoClip       = errors.New("rendezvous: event has no clip")
	ErrRendezvous   = errors.New("rendezvous: rendezvous time is not finite")
)

// Player starts and stops clips on the shared output. *mix.Mixer
// implements it.
type Player interface {
	Play(b *buffer.Buffer, gain float64, offset int, done mix.DoneFunc) mix.VoiceID
	Stop(id mix.VoiceID) bool
}

// Clip is what an event plays.
type Clip struct {
	Buffer *buffer.Buffer
	Gain   float64

	// Release, if set, runs exactly once when the event reaches a terminal
	// state.
	Release func()
}

// EventID identifies an event within one Scheduler.
type EventID uint64

// Event is a snapshot of one event.
type Event struct {
	ID         EventID
	Key        string
	State      State
	Rendezvous float64
}

// LateStart describes an event whose rendezvous had passed on arrival.
type LateStart struct {
	ID             EventID
	Key            string
	Overrun        float64
	SkippedSamples int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAfterFunc replaces time.AfterFunc for arming rendezvous timers.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.afterFunc = f
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLateStart registers a callback for late starts. It runs without the
// scheduler lock held.
func WithLateStart(fn func(LateStart)) Option {
	return func(s *Scheduler) {
		s.onLate = fn
	}
}

type event struct {
	id    EventID
	key   string
	state State
	rdv   float64
	clip  Clip
	timer Timer
	voice mix.VoiceID

	// starting is set while Play runs without the lock; the voice is not
	// known yet, so a cancel leaves the release to start.
	starting bool
}

// Scheduler drives events from Pending to a terminal state. It is safe for
// concurrent use; timer callbacks may run on other goroutines.
type Scheduler struct {
	mu     sync.Mutex
	clock  SyncClock
	player Player
	events map[EventID]*event
	next   EventID

	afterFunc AfterFunc
	logger    *slog.Logger
	onLate    func(LateStart)
}

// NewScheduler returns a Scheduler reading clock and playing through player.
func NewScheduler(clock SyncClock, player Player, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     clock,
		player:    player,
		events:    make(map[EventID]*event),
		afterFunc: systemAfterFunc,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Add creates a Pending event. key names the emission it belongs to.
func (s *Scheduler) Add(key string) EventID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.events[s.next] = &event{id: s.next, key: key, state: Pending}
	return s.next
}

// Schedule assigns the rendezvous rdv and the clip to a Pending event.
// A future rendezvous arms a timer for rdv - SyncTime(); a past one starts
// the clip immediately with the overrun skipped.
func (s *Scheduler) Schedule(id EventID, rdv float64, clip Clip) error {
	if !core.Finite(rdv) {
		return ErrRendezvous
	}
	if clip.Buffer == nil {
		return ErrNoClip
	}

	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownEvent, id)
	}
	if ev.state != Pending {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d is %s", ErrNotPending, id, ev.state)
	}
	ev.state = Scheduled
	ev.rdv = rdv
	ev.clip = clip

	localOffset := rdv - s.clock.SyncTime()
	if localOffset > 0 {
		delay := time.Duration(localOffset * float64(time.Second))
		ev.timer = s.afterFunc(delay, func() { s.fire(id) })
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.start(id, -localOffset)
	return nil
}

// fire runs when a rendezvous timer expires. The timer is armed for the
// local offset, so any lateness here is timer jitter, not network delay.
func (s *Scheduler) fire(id EventID) {
	s.start(id, 0)
}

// start moves a Scheduled event to Playing, skipping overrun seconds of
// its clip.
func (s *Scheduler) start(id EventID, overrun float64) {
	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok || ev.state != Scheduled {
		s.mu.Unlock()
		return
	}
	ev.state = Playing
	ev.timer = nil
	ev.starting = true
	buf, gain := ev.clip.Buffer, ev.clip.Gain
	skip := int(math.Round(overrun * buf.SampleRate()))
	late := LateStart{ID: id, Key: ev.key, Overrun: overrun, SkippedSamples: skip}
	s.mu.Unlock()

	if overrun > 0 {
		s.logger.Warn("rendezvous passed before arrival",
			"event", id, "key", late.Key, "overrun", overrun, "skipped", skip)
		if s.onLate != nil {
			s.onLate(late)
		}
	}

	// Play may call done synchronously, so the lock is not held here.
	voice := s.player.Play(buf, gain, skip, func(stopped bool) {
		if !stopped {
			s.finish(id)
		}
	})

	s.mu.Lock()
	ev.starting = false
	cancelled := ev.state == Cancelled
	var release func()
	if cancelled {
		release = ev.takeRelease()
	}
	if ev.state == Playing {
		ev.voice = voice
	}
	s.mu.Unlock()

	if cancelled {
		s.player.Stop(voice)
		if release != nil {
			release()
		}
	}
}

func (s *Scheduler) finish(id EventID) {
	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok || ev.state != Playing {
		s.mu.Unlock()
		return
	}
	ev.state = Finished
	release := ev.takeRelease()
	s.mu.Unlock()

	if release != nil {
		release()
	}
}

// Cancel moves one non-terminal event to Cancelled. It reports whether the
// event was in flight.
func (s *Scheduler) Cancel(id EventID) bool {
	s.mu.Lock()
	ev, ok := s.events[id]
	if !ok || ev.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	voice, playing, release := s.cancelLocked(ev)
	s.mu.Unlock()

	if playing {
		s.player.Stop(voice)
	}
	if release != nil {
		release()
	}
	return true
}

// Reset cancels every in-flight event regardless of state and stops their
// timers and voices. It returns the number of events cancelled.
func (s *Scheduler) Reset() int {
	s.mu.Lock()
	var voices []mix.VoiceID
	var releases []func()
	n := 0
	for _, ev := range s.events {
		if ev.state.Terminal() {
			continue
		}
		n++
		voice, playing, release := s.cancelLocked(ev)
		if playing {
			voices = append(voices, voice)
		}
		if release != nil {
			releases = append(releases, release)
		}
	}
	s.mu.Unlock()

	for _, v := range voices {
		s.player.Stop(v)
	}
	for _, release := range releases {
		release()
	}
	if n > 0 {
		s.logger.Info("rendezvous reset", "cancelled", n)
	}
	return n
}

func (s *Scheduler) cancelLocked(ev *event) (voice mix.VoiceID, playing bool, release func()) {
	if ev.timer != nil {
		ev.timer.Stop()
		ev.timer = nil
	}
	playing = ev.state == Playing && ev.voice != 0
	voice = ev.voice
	ev.state = Cancelled
	if ev.starting {
		return voice, false, nil
	}
	return voice, playing, ev.takeRelease()
}

func (ev *event) takeRelease() func() {
	release := ev.clip.Release
	ev.clip.Release = nil
	return release
}

// Prune forgets terminal events and returns how many were removed.
func (s *Scheduler) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ev := range s.events {
		if ev.state.Terminal() {
			delete(s.events, id)
			n++
		}
	}
	return n
}

// State returns the state of one event.
func (s *Scheduler) State(id EventID) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return 0, false
	}
	return ev.state, true
}

// Events returns a snapshot of all known events ordered by ID.
func (s *Scheduler) Events() []Event {
	s.mu.Lock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, Event{ID: ev.id, Key: ev.key, State: ev.state, Rendezvous: ev.rdv})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
