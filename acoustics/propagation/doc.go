// Package propagation derives the virtual source images produced by an
// emission inside a [room.Room].
//
// Two emission strategies are provided:
//
//   - Reflective point emission ([Simulator.Reflect]): a simplified
//     image-source method. The emitter yields one orthogonal image per wall,
//     and from each orthogonal hit a continuing ray plus two scattered rays
//     are traced from wall to wall until their amplitude falls below
//     [Params.RxMinGain].
//   - Path emission ([PathImages]): a moving source described by timed
//     waypoints, without any wall interaction.
//
// Both return plain []SourceImage values that the irbuild package turns into
// per-receiver impulse responses.
//
// The simulator is a pure function of its inputs: identical emitter, room and
// parameters always produce an identical image list.
package propagation
