package rendezvous

import "fmt"

// State is the lifecycle position of one event.
type State int

const (
	Pending State = iota
	Scheduled
	Playing
	Finished
	Cancelled
)

var stateNames = [...]string{"pending", "scheduled", "playing", "finished", "cancelled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether s is Finished or Cancelled.
func (s State) Terminal() bool {
	return s == Finished || s == Cancelled
}
