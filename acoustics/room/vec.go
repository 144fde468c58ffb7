package room

import "math"

// Vec2 is a point or direction in room coordinates.
type Vec2 struct {
	X, Y float64
}

// V returns Vec2{x, y}.
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Dot returns the dot product of v and o.
func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Cross returns the z component of the 3D cross product of v and o.
func (v Vec2) Cross(o Vec2) float64 {
	return v.X*o.Y - v.Y*o.X
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the distance between v and o.
func (v Vec2) Dist(o Vec2) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// IsZero reports whether both components are exactly zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Rotate returns v rotated counter-clockwise (in a y-up frame) by angle radians.
func (v Vec2) Rotate(angle float64) Vec2 {
	sin, cos := math.Sincos(angle)
	return Vec2{v.X*cos - v.Y*sin, v.X*sin + v.Y*cos}
}

// Flip negates the component selected by axis.
func (v Vec2) Flip(axis Axis) Vec2 {
	if axis == AxisX {
		return Vec2{-v.X, v.Y}
	}
	return Vec2{v.X, -v.Y}
}

// Component returns the component selected by axis.
func (v Vec2) Component(axis Axis) float64 {
	if axis == AxisX {
		return v.X
	}
	return v.Y
}

// SignedAngle returns the angle in (-pi, pi] that rotates v onto o.
func SignedAngle(v, o Vec2) float64 {
	return math.Atan2(v.Cross(o), v.Dot(o))
}
