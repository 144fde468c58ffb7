package propagation

import "github.com/cwbudde/algo-reflect/acoustics/room"

// Waypoint is one timed position of a moving source.
type Waypoint struct {
	Time     float64
	Position room.Vec2
}

// PathImages turns waypoints into direct-path images: order 0, unit
// amplitude, radiating at the waypoint time. No walls are involved.
func PathImages(waypoints []Waypoint) []SourceImage {
	images := make([]SourceImage, len(waypoints))
	for i, wp := range waypoints {
		images[i] = SourceImage{
			Amplitude: 1,
			Time:      wp.Time,
			Position:  wp.Position,
			Wall:      room.NoWall,
			Parent:    -1,
		}
	}
	return images
}
