package propagation

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-reflect/acoustics/room"
)

// DefaultMaxChainOrder bounds the reflection order of a single chain.
const DefaultMaxChainOrder = 4096

// scatterShare is the amplitude share of each of the two scattered rays.
const scatterShare = 0.5

// SourceImage is a virtual source: the emitter itself or one of its
// reflections.
type SourceImage struct {
	// Order is the number of reflections so far; 0 is the emitter.
	Order uint32

	Amplitude float64

	// Time is the emission-relative time at which the image radiates.
	Time float64

	Position room.Vec2

	// Wall is the wall the image lies on, or room.NoWall.
	Wall room.Wall

	// Parent is the index of the image this one was derived from, or -1.
	Parent int
}

// Simulator traces reflective emissions. The zero value is not usable;
// create one with NewSimulator.
type Simulator struct {
	logger   *slog.Logger
	maxOrder uint32
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger that receives geometry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxChainOrder caps the reflection order a chain may reach before it is
// dropped with a warning.
func WithMaxChainOrder(order int) Option {
	return func(s *Simulator) {
		if order > 0 {
			s.maxOrder = uint32(order)
		}
	}
}

// NewSimulator returns a Simulator.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		logger:   slog.Default(),
		maxOrder: DefaultMaxChainOrder,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Reflect computes the source images of a point emission at emitter.
//
// The list starts with the emitter, followed for each wall by its orthogonal
// image (when loud enough) and the chains traced from that image: the
// continuing ray back through the emitter, carrying 1-ScatterAmplitude of the
// image amplitude, and two scattered rays rotated by +/-ScatterAngle, each
// carrying ScatterAmplitude/2. The orthogonal images themselves are not
// traced any further.
func (s *Simulator) Reflect(emitter room.Vec2, rm room.Room, p Params) ([]SourceImage, error) {
	if err := rm.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !rm.Contains(emitter) {
		s.logger.Warn("emitter outside room", "emitter", emitter)
	}

	images := []SourceImage{{
		Order:     0,
		Amplitude: 1,
		Position:  emitter,
		Wall:      room.NoWall,
		Parent:    -1,
	}}

	for _, w := range room.Walls {
		hit, dist := rm.Project(emitter, w)
		amp := p.Attenuation(dist) * rm.Reflectance(w)
		if amp < p.RxMinGain {
			continue
		}

		first := SourceImage{
			Order:     1,
			Amplitude: amp,
			Time:      p.TravelTime(dist),
			Position:  hit,
			Wall:      w,
			Parent:    0,
		}
		images = append(images, first)
		parent := len(images) - 1

		dir := emitter.Sub(hit)
		if dir.IsZero() {
			dir = inwardNormal(w)
		}

		cont := first
		cont.Amplitude = amp * (1 - rm.ScatterAmplitude)
		images = s.propagate(images, cont, parent, dir, rm, p)

		scattered := first
		scattered.Amplitude = amp * rm.ScatterAmplitude * scatterShare
		rotated := dir.Rotate(rm.ScatterAngle)
		images = s.propagate(images, scattered, parent, rotated, rm, p)
		images = s.propagate(images, scattered, parent, w.MirrorTangent(rotated), rm, p)
	}

	return images, nil
}

// propagate traces from along dir, appending every reflection loud enough to
// keep, and returns the grown slice.
func (s *Simulator) propagate(images []SourceImage, from SourceImage, parent int, dir room.Vec2, rm room.Room, p Params) []SourceImage {
	// Attenuation and reflectance never exceed 1.
	if from.Amplitude < p.RxMinGain {
		return images
	}

	w, hit, ok := rm.Intersect(from.Position, dir)
	if !ok {
		s.logger.Warn("ray missed every wall, dropping chain",
			"origin", from.Position, "direction", dir, "order", from.Order)
		return images
	}

	dist := hit.Dist(from.Position)
	amp := from.Amplitude * p.Attenuation(dist) * rm.Reflectance(w)
	if amp < p.RxMinGain {
		return images
	}
	if from.Order >= s.maxOrder {
		s.logger.Warn("reflection chain exceeded order limit, dropping chain",
			"origin", from.Position, "direction", dir, "limit", s.maxOrder)
		return images
	}

	img := SourceImage{
		Order:     from.Order + 1,
		Amplitude: amp,
		Time:      from.Time + p.TravelTime(dist),
		Position:  hit,
		Wall:      w,
		Parent:    parent,
	}
	images = append(images, img)

	return s.propagate(images, img, len(images)-1, w.Mirror(dir), rm, p)
}

func inwardNormal(w room.Wall) room.Vec2 {
	switch w {
	case room.Left:
		return room.V(1, 0)
	case room.Up:
		return room.V(0, 1)
	case room.Right:
		return room.V(-1, 0)
	default:
		return room.V(0, -1)
	}
}

// String formats the image for logs and tools.
func (img SourceImage) String() string {
	return fmt.Sprintf("order=%d amp=%.4f t=%.4fs pos=(%.3f,%.3f) wall=%s",
		img.Order, img.Amplitude, img.Time, img.Position.X, img.Position.Y, img.Wall)
}
