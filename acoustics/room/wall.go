package room

import (
	"fmt"
	"strconv"
)

// Axis selects one component of a [Vec2].
type Axis uint8

const (
	// AxisX is the horizontal component.
	AxisX Axis = iota
	// AxisY is the vertical component.
	AxisY
)

// String returns "x" or "y".
func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// Wall identifies one side of the room. The numeric values match the
// clockwise wall ids used on the control channel.
type Wall int8

const (
	// NoWall marks the direct emitter and failed intersections.
	NoWall Wall = -1
	// Left is the wall at TopLeft.X.
	Left Wall = 0
	// Up is the wall at TopLeft.Y.
	Up Wall = 1
	// Right is the wall at BottomRight.X.
	Right Wall = 2
	// Down is the wall at BottomRight.Y.
	Down Wall = 3
)

// Walls lists every wall in clockwise order.
var Walls = [4]Wall{Left, Up, Right, Down}

// mirrorAxes is the component flipped when a ray reflects off each wall.
var mirrorAxes = [4]Axis{
	Left:  AxisX,
	Up:    AxisY,
	Right: AxisX,
	Down:  AxisY,
}

var wallNames = [4]string{"left", "up", "right", "down"}

// Valid reports whether w is one of the four room walls.
func (w Wall) Valid() bool {
	return w >= Left && w <= Down
}

// String returns the wall name.
func (w Wall) String() string {
	if !w.Valid() {
		if w == NoWall {
			return "none"
		}
		return fmt.Sprintf("wall(%d)", int8(w))
	}
	return wallNames[w]
}

// MirrorAxis returns the component of a direction that flips when a ray
// reflects off w. It is the axis of the wall normal.
func (w Wall) MirrorAxis() Axis {
	return mirrorAxes[w]
}

// TangentAxis returns the axis running along w.
func (w Wall) TangentAxis() Axis {
	if mirrorAxes[w] == AxisX {
		return AxisY
	}
	return AxisX
}

// Opposite returns the wall facing w.
func (w Wall) Opposite() Wall {
	return (w + 2) % 4
}

// Mirror reflects dir off w (specular reflection).
func (w Wall) Mirror(dir Vec2) Vec2 {
	return dir.Flip(w.MirrorAxis())
}

// MirrorTangent flips the component of dir that runs along w. For a
// direction rotated away from the wall normal this yields the rotation by
// the same angle on the other side of the normal.
func (w Wall) MirrorTangent(dir Vec2) Vec2 {
	return dir.Flip(w.TangentAxis())
}

// ParseWall accepts a wall id ("0".."3") or name ("left", "up", "right", "down").
func ParseWall(s string) (Wall, error) {
	for _, w := range Walls {
		if s == wallNames[w] {
			return w, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Wall(n).Valid() {
		return NoWall, fmt.Errorf("%w: %q", ErrInvalidWall, s)
	}
	return Wall(n), nil
}
