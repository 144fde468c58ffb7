// Package rendezvous starts rendered emissions at a shared synchronized
// time on every playback node.
//
// The coordinator picks a rendezvous a fixed lookahead into the future
// (see [Lookahead]). Each node converts it into a local delay against its
// own reading of the synchronized clock and arms a one-shot timer. A
// rendezvous that has already passed when it arrives is not dropped: the
// clip starts at once with the overrun skipped, and a [LateStart] is
// reported.
//
// Every event moves through
//
//	Pending -> Scheduled -> Playing -> Finished
//
// and any non-terminal event can be moved to Cancelled by [Scheduler.Reset].
package rendezvous
