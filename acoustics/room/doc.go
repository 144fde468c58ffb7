// Package room models the rectangular listening space used by the
// propagation simulator: corner geometry, per-wall absorption, scatter
// parameters and ray/wall intersection.
//
// Coordinates follow screen conventions: x grows to the right and y grows
// downward, so [Room.TopLeft] holds the smallest coordinates. Walls are
// numbered clockwise starting at the left wall:
//
//	        Up (1)
//	     +---------+
//	Left |         | Right
//	 (0) |         |  (2)
//	     +---------+
//	       Down (3)
//
// Opposite walls share a mirror axis. Rather than deriving the axis from the
// parity of the wall index, each [Wall] exposes it explicitly through
// [Wall.MirrorAxis], and [Wall.Mirror] reflects a direction on that axis.
package room
