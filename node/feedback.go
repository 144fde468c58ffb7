package node

import (
	"errors"
	"fmt"
)

// Errors reported through Feedback and returned by Trigger.
var (
	ErrMissingIR    = errors.New("node: no impulse response for emission")
	ErrMissingAsset = errors.New("node: source clip not loaded")
	ErrUnhandled    = errors.New("node: command not handled by nodes")
)

// FeedbackKind classifies a recoverable condition on a node.
type FeedbackKind int

const (
	FeedbackMissingIR FeedbackKind = iota
	FeedbackMissingAsset
	FeedbackLateStart
	FeedbackBadFrame
)

var feedbackNames = [...]string{"missing-ir", "missing-asset", "late-start", "bad-frame"}

func (k FeedbackKind) String() string {
	if k < 0 || int(k) >= len(feedbackNames) {
		return fmt.Sprintf("FeedbackKind(%d)", int(k))
	}
	return feedbackNames[k]
}

// Feedback is delivered to the node's user-visible cue channel.
type Feedback struct {
	Kind     FeedbackKind
	Emission int
	Source   string

	// Overrun is the late-start overrun in seconds.
	Overrun float64
	Err     error
}
