package room

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-reflect/dsp/core"
)

// Errors returned when a room configuration is rejected.
var (
	ErrDegenerateRoom   = errors.New("room: top-left corner must be strictly above and left of bottom-right")
	ErrAbsorptionRange  = errors.New("room: absorption must be in [0, 1]")
	ErrScatterRange     = errors.New("room: scatter amplitude must be in [0, 1]")
	ErrInvalidWall      = errors.New("room: invalid wall")
	ErrNonFiniteSetting = errors.New("room: value must be finite")
)

// intersectEpsilon rejects self-hits of rays starting on a wall.
const intersectEpsilon = 1e-9

// Room is the geometry and material of a rectangular room.
type Room struct {
	TopLeft     Vec2
	BottomRight Vec2

	// Absorption is indexed by Wall: left, up, right, down.
	Absorption [4]float64

	// ScatterAmplitude is the share of a reflection diverted into the two
	// scattered rays.
	ScatterAmplitude float64

	// ScatterAngle is the rotation of the scattered rays in radians.
	ScatterAngle float64
}

// New returns a validated room spanning topLeft to bottomRight with no
// absorption and no scattering.
func New(topLeft, bottomRight Vec2) (Room, error) {
	r := Room{TopLeft: topLeft, BottomRight: bottomRight}
	if err := r.Validate(); err != nil {
		return Room{}, err
	}
	return r, nil
}

// Validate checks the corner ordering and the material ranges.
func (r Room) Validate() error {
	if !core.Finite(r.TopLeft.X, r.TopLeft.Y, r.BottomRight.X, r.BottomRight.Y, r.ScatterAngle) {
		return ErrNonFiniteSetting
	}
	if !(r.TopLeft.X < r.BottomRight.X) || !(r.TopLeft.Y < r.BottomRight.Y) {
		return fmt.Errorf("%w: (%g,%g)-(%g,%g)", ErrDegenerateRoom,
			r.TopLeft.X, r.TopLeft.Y, r.BottomRight.X, r.BottomRight.Y)
	}
	for i, a := range r.Absorption {
		if !(a >= 0 && a <= 1) {
			return fmt.Errorf("%w: %s=%g", ErrAbsorptionRange, Wall(i), a)
		}
	}
	if !(r.ScatterAmplitude >= 0 && r.ScatterAmplitude <= 1) {
		return fmt.Errorf("%w: %g", ErrScatterRange, r.ScatterAmplitude)
	}
	return nil
}

// SetCorners replaces both corners. On error the room is unchanged.
func (r *Room) SetCorners(topLeft, bottomRight Vec2) error {
	next := *r
	next.TopLeft, next.BottomRight = topLeft, bottomRight
	if err := next.Validate(); err != nil {
		return err
	}
	*r = next
	return nil
}

// SetAbsorption sets the absorption coefficient of one wall.
// On error the room is unchanged.
func (r *Room) SetAbsorption(w Wall, value float64) error {
	if !w.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidWall, int8(w))
	}
	next := *r
	next.Absorption[w] = value
	if err := next.Validate(); err != nil {
		return err
	}
	*r = next
	return nil
}

// SetScatter sets scatter amplitude and angle. On error the room is unchanged.
func (r *Room) SetScatter(amplitude, angle float64) error {
	next := *r
	next.ScatterAmplitude, next.ScatterAngle = amplitude, angle
	if err := next.Validate(); err != nil {
		return err
	}
	*r = next
	return nil
}

// Width returns the horizontal extent.
func (r Room) Width() float64 { return r.BottomRight.X - r.TopLeft.X }

// Height returns the vertical extent.
func (r Room) Height() float64 { return r.BottomRight.Y - r.TopLeft.Y }

// Contains reports whether p lies inside the room or on its boundary.
func (r Room) Contains(p Vec2) bool {
	return p.X >= r.TopLeft.X && p.X <= r.BottomRight.X &&
		p.Y >= r.TopLeft.Y && p.Y <= r.BottomRight.Y
}

// Reflectance returns 1 - absorption of w.
func (r Room) Reflectance(w Wall) float64 {
	return 1 - r.Absorption[w]
}

// Segment returns the end points of w in clockwise order.
func (r Room) Segment(w Wall) (Vec2, Vec2) {
	tl, br := r.TopLeft, r.BottomRight
	switch w {
	case Left:
		return Vec2{tl.X, br.Y}, tl
	case Up:
		return tl, Vec2{br.X, tl.Y}
	case Right:
		return Vec2{br.X, tl.Y}, br
	default:
		return br, Vec2{tl.X, br.Y}
	}
}

// Corner returns the corner shared by a vertical and a horizontal wall.
func (r Room) Corner(vertical, horizontal Wall) Vec2 {
	c := r.TopLeft
	if vertical == Right {
		c.X = r.BottomRight.X
	}
	if horizontal == Down {
		c.Y = r.BottomRight.Y
	}
	return c
}

// Project returns the perpendicular projection of p onto w and its distance.
func (r Room) Project(p Vec2, w Wall) (Vec2, float64) {
	switch w {
	case Left:
		return Vec2{r.TopLeft.X, p.Y}, math.Abs(p.X - r.TopLeft.X)
	case Up:
		return Vec2{p.X, r.TopLeft.Y}, math.Abs(p.Y - r.TopLeft.Y)
	case Right:
		return Vec2{r.BottomRight.X, p.Y}, math.Abs(r.BottomRight.X - p.X)
	default:
		return Vec2{p.X, r.BottomRight.Y}, math.Abs(r.BottomRight.Y - p.Y)
	}
}

// Intersect finds the wall hit by a ray leaving origin along dir.
//
// The signs of dir shortlist one vertical and one horizontal wall. When both
// are possible, the signed angle between dir and the vector towards their
// shared corner decides which one the ray reaches first. The hit point is
// then computed by segment intersection with the chosen wall.
//
// It returns NoWall and false when the ray cannot hit the chosen wall, which
// only happens for degenerate input such as an origin outside the room or a
// zero direction.
func (r Room) Intersect(origin, dir Vec2) (Wall, Vec2, bool) {
	if dir.IsZero() || math.IsNaN(dir.X) || math.IsNaN(dir.Y) {
		return NoWall, Vec2{}, false
	}

	vertical, horizontal := Right, Down
	if dir.X < 0 {
		vertical = Left
	}
	if dir.Y < 0 {
		horizontal = Up
	}

	var w Wall
	switch {
	case dir.X == 0:
		w = horizontal
	case dir.Y == 0:
		w = vertical
	default:
		toCorner := r.Corner(vertical, horizontal).Sub(origin)
		angle := SignedAngle(dir, toCorner)
		// Rays turning away from the corner towards the vertical wall have an
		// angle whose sign matches the product of the direction signs.
		quadrant := math.Copysign(1, dir.X) * math.Copysign(1, dir.Y)
		if angle*quadrant >= 0 {
			w = vertical
		} else {
			w = horizontal
		}
	}

	hit, ok := r.hitSegment(origin, dir, w)
	if !ok {
		return NoWall, Vec2{}, false
	}
	return w, hit, true
}

// hitSegment intersects the ray with the segment of w.
func (r Room) hitSegment(origin, dir Vec2, w Wall) (Vec2, bool) {
	a, b := r.Segment(w)
	s := b.Sub(a)

	denom := dir.Cross(s)
	if denom == 0 {
		return Vec2{}, false
	}

	qp := a.Sub(origin)
	t := qp.Cross(s) / denom
	u := qp.Cross(dir) / denom
	if t <= intersectEpsilon || u < -intersectEpsilon || u > 1+intersectEpsilon {
		return Vec2{}, false
	}

	hit := origin.Add(dir.Scale(t))

	// Pin the hit onto the wall line so repeated bounces do not drift.
	switch w {
	case Left:
		hit.X = r.TopLeft.X
	case Right:
		hit.X = r.BottomRight.X
	case Up:
		hit.Y = r.TopLeft.Y
	case Down:
		hit.Y = r.BottomRight.Y
	}
	hit.X = math.Min(math.Max(hit.X, r.TopLeft.X), r.BottomRight.X)
	hit.Y = math.Min(math.Max(hit.Y, r.TopLeft.Y), r.BottomRight.Y)
	return hit, true
}
