package rendezvous

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/algo-reflect/dsp/buffer"
	"github.com/cwbudde/algo-reflect/dsp/mix"
	"github.com/cwbudde/algo-reflect/internal/testutil"
)

type fixture struct {
	clock *testutil.ManualClock
	mixer *mix.Mixer
	sched *Scheduler
	late  []LateStart
}

func newFixture(start float64) *fixture {
	f := &fixture{
		clock: testutil.NewManualClock(start),
		mixer: mix.NewMixer(1000),
	}
	f.sched = NewScheduler(f.clock, f.mixer,
		WithAfterFunc(func(d time.Duration, fn func()) Timer { return f.clock.AfterFunc(d, fn) }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithLateStart(func(l LateStart) { f.late = append(f.late, l) }),
	)
	return f
}

func clip(n int, released *int) Clip {
	return Clip{
		Buffer:  buffer.FromSlice(testutil.Ramp(n), 1000),
		Gain:    1,
		Release: func() { *released++ },
	}
}

func (f *fixture) requireState(t *testing.T, id EventID, want State) {
	t.Helper()
	got, ok := f.sched.State(id)
	if !ok || got != want {
		t.Fatalf("state of %d = %v (known=%v), want %v", id, got, ok, want)
	}
}

func TestScheduleFutureRendezvous(t *testing.T) {
	f := newFixture(100)
	released := 0

	id := f.sched.Add("emit-1")
	f.requireState(t, id, Pending)

	if err := f.sched.Schedule(id, 102, clip(1000, &released)); err != nil {
		t.Fatal(err)
	}
	f.requireState(t, id, Scheduled)
	if f.clock.Pending() != 1 {
		t.Fatalf("armed timers = %d, want 1", f.clock.Pending())
	}

	f.clock.Advance(1.5)
	f.requireState(t, id, Scheduled)

	f.clock.Advance(0.5)
	f.requireState(t, id, Playing)
	if f.mixer.Active() != 1 {
		t.Fatalf("Active() = %d, want 1", f.mixer.Active())
	}

	dst := make([]float64, 1000)
	f.mixer.Process(dst)
	if dst[0] != 1 {
		t.Fatalf("on-time start played from %v, want 1", dst[0])
	}
	f.requireState(t, id, Finished)
	if released != 1 {
		t.Fatalf("released %d times, want 1", released)
	}
	if len(f.late) != 0 {
		t.Fatalf("unexpected late starts %v", f.late)
	}
}

func TestSchedulePastRendezvousSkipsOverrun(t *testing.T) {
	f := newFixture(10)
	released := 0

	id := f.sched.Add("emit-2")
	if err := f.sched.Schedule(id, 9.75, clip(1000, &released)); err != nil {
		t.Fatal(err)
	}
	f.requireState(t, id, Playing)

	if len(f.late) != 1 {
		t.Fatalf("late starts = %d, want 1", len(f.late))
	}
	l := f.late[0]
	if l.ID != id || l.Key != "emit-2" || l.SkippedSamples != 250 || math.Abs(l.Overrun-0.25) > 1e-12 {
		t.Fatalf("late start = %+v", l)
	}

	dst := make([]float64, 10)
	f.mixer.Process(dst)
	if dst[0] != 251 {
		t.Fatalf("first played sample = %v, want 251", dst[0])
	}
}

func TestScheduleAtRendezvousIsNotLate(t *testing.T) {
	f := newFixture(5)
	released := 0
	id := f.sched.Add("now")
	if err := f.sched.Schedule(id, 5, clip(10, &released)); err != nil {
		t.Fatal(err)
	}
	f.requireState(t, id, Playing)
	if len(f.late) != 0 {
		t.Fatalf("late starts = %v, want none", f.late)
	}
}

func TestConcurrentEventsMix(t *testing.T) {
	f := newFixture(0)
	released := 0
	a := f.sched.Add("a")
	b := f.sched.Add("b")
	if err := f.sched.Schedule(a, 1, clip(4, &released)); err != nil {
		t.Fatal(err)
	}
	if err := f.sched.Schedule(b, 1, clip(2, &released)); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(1)

	dst := make([]float64, 4)
	f.mixer.Process(dst)
	want := []float64{2, 4, 3, 4}
	testutil.RequireSliceNearlyEqual(t, dst, want, 0)
	if released != 2 {
		t.Fatalf("released = %d, want 2", released)
	}
}

func TestResetCancelsEveryState(t *testing.T) {
	f := newFixture(50)
	released := 0

	pending := f.sched.Add("pending")

	scheduled := f.sched.Add("scheduled")
	if err := f.sched.Schedule(scheduled, 51, clip(100, &released)); err != nil {
		t.Fatal(err)
	}

	playing := f.sched.Add("playing")
	if err := f.sched.Schedule(playing, 50, clip(100, &released)); err != nil {
		t.Fatal(err)
	}

	finished := f.sched.Add("finished")
	if err := f.sched.Schedule(finished, 50, clip(1, &released)); err != nil {
		t.Fatal(err)
	}
	f.mixer.Process(make([]float64, 1))
	f.requireState(t, finished, Finished)

	if n := f.sched.Reset(); n != 3 {
		t.Fatalf("Reset() = %d, want 3", n)
	}
	for _, id := range []EventID{pending, scheduled, playing} {
		f.requireState(t, id, Cancelled)
	}
	f.requireState(t, finished, Finished)

	if f.mixer.Active() != 0 {
		t.Fatalf("voices left after reset: %d", f.mixer.Active())
	}
	if f.clock.Pending() != 0 {
		t.Fatalf("timers left after reset: %d", f.clock.Pending())
	}
	if released != 3 {
		t.Fatalf("released = %d, want 3", released)
	}

	f.clock.Advance(5)
	f.requireState(t, scheduled, Cancelled)

	if n := f.sched.Prune(); n != 4 {
		t.Fatalf("Prune() = %d, want 4", n)
	}
	if len(f.sched.Events()) != 0 {
		t.Fatal("events left after prune")
	}
}

// hookPlayer runs onPlay inside Play, before the voice id is returned.
type hookPlayer struct {
	*mix.Mixer
	onPlay func()
}

func (p *hookPlayer) Play(b *buffer.Buffer, gain float64, offset int, done mix.DoneFunc) mix.VoiceID {
	id := p.Mixer.Play(b, gain, offset, done)
	if p.onPlay != nil {
		p.onPlay()
	}
	return id
}

func TestResetDuringStartDefersRelease(t *testing.T) {
	clock := testutil.NewManualClock(0)
	player := &hookPlayer{Mixer: mix.NewMixer(1000)}
	sched := NewScheduler(clock, player,
		WithAfterFunc(func(d time.Duration, fn func()) Timer { return clock.AfterFunc(d, fn) }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	released := 0
	activeAtRelease := -1
	c := clip(100, &released)
	c.Release = func() {
		released++
		activeAtRelease = player.Active()
	}

	player.onPlay = func() {
		if n := sched.Reset(); n != 1 {
			t.Errorf("Reset() = %d, want 1", n)
		}
		if released != 0 {
			t.Error("clip released while its voice was still starting")
		}
	}

	id := sched.Add("race")
	if err := sched.Schedule(id, 0, c); err != nil {
		t.Fatal(err)
	}

	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}
	if activeAtRelease != 0 {
		t.Fatalf("voices active at release = %d, want 0", activeAtRelease)
	}
	if got, _ := sched.State(id); got != Cancelled {
		t.Fatalf("state = %v, want cancelled", got)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(0)
	released := 0
	id := f.sched.Add("x")
	if err := f.sched.Schedule(id, 3, clip(5, &released)); err != nil {
		t.Fatal(err)
	}
	if !f.sched.Cancel(id) {
		t.Fatal("Cancel returned false for a scheduled event")
	}
	if f.sched.Cancel(id) {
		t.Fatal("Cancel returned true twice")
	}
	if f.sched.Cancel(999) {
		t.Fatal("Cancel returned true for an unknown event")
	}
	f.requireState(t, id, Cancelled)
	if released != 1 {
		t.Fatalf("released = %d", released)
	}
}

func TestScheduleErrors(t *testing.T) {
	f := newFixture(0)
	released := 0

	if err := f.sched.Schedule(42, 1, clip(1, &released)); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("unknown event error = %v", err)
	}

	id := f.sched.Add("k")
	if err := f.sched.Schedule(id, 1, Clip{}); !errors.Is(err, ErrNoClip) {
		t.Fatalf("no clip error = %v", err)
	}
	if err := f.sched.Schedule(id, math.NaN(), clip(1, &released)); !errors.Is(err, ErrRendezvous) {
		t.Fatalf("NaN rendezvous error = %v", err)
	}
	f.requireState(t, id, Pending)

	if err := f.sched.Schedule(id, 1, clip(1, &released)); err != nil {
		t.Fatal(err)
	}
	if err := f.sched.Schedule(id, 1, clip(1, &released)); !errors.Is(err, ErrNotPending) {
		t.Fatalf("double schedule error = %v", err)
	}
}

func TestEventsSnapshot(t *testing.T) {
	f := newFixture(0)
	released := 0
	a := f.sched.Add("a")
	b := f.sched.Add("b")
	if err := f.sched.Schedule(b, 4, clip(1, &released)); err != nil {
		t.Fatal(err)
	}

	events := f.sched.Events()
	if len(events) != 2 || events[0].ID != a || events[1].ID != b {
		t.Fatalf("events = %+v", events)
	}
	if events[1].State != Scheduled || events[1].Rendezvous != 4 || events[1].Key != "b" {
		t.Fatalf("event b = %+v", events[1])
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Pending:   "pending",
		Scheduled: "scheduled",
		Playing:   "playing",
		Finished:  "finished",
		Cancelled: "cancelled",
		State(9):  "State(9)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
	if Playing.Terminal() || !Cancelled.Terminal() {
		t.Fatal("Terminal mismatch")
	}
}

func TestLookahead(t *testing.T) {
	c := testutil.NewManualClock(7)
	if got := Lookahead(c, DefaultLookahead); got != 9 {
		t.Fatalf("Lookahead = %v, want 9", got)
	}

	m := NewMonotonicClock(100)
	t0 := m.SyncTime()
	if t0 < 100 {
		t.Fatalf("SyncTime() = %v, want >= 100", t0)
	}
	if m.SyncTime() < t0 {
		t.Fatal("monotonic clock went backwards")
	}
}

func TestWallClock(t *testing.T) {
	before := float64(time.Now().Unix())
	got := NewWallClock().SyncTime()
	if math.Abs(got-before) > 2 {
		t.Fatalf("SyncTime() = %v, want about %v", got, before)
	}
}
