// Package workflow defines the review state machine shared by requests
// and bookings.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnrm/libadmin/internal/model"
)

// ErrTransition is returned when an action is not allowed from the
// current status.
var ErrTransition = errors.New("transition not allowed")

// ErrNoteRequired is returned when a rejection has no reason or an
// information request has no message.
var ErrNoteRequired = errors.New("a note is required for this action")

// Action is an administrator decision.
type Action string

const (
	ActionValidate    Action = "validate"
	ActionReject      Action = "reject"
	ActionArchive     Action = "archive"
	ActionRequestInfo Action = "request_info"
	ActionResubmit    Action = "resubmit"
)

// ParseAction validates an action taken from the URL.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionValidate, ActionReject, ActionArchive, ActionRequestInfo, ActionResubmit:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Target is the status an action produces.
func (a Action) Target() model.Status {
	switch a {
	case ActionValidate:
		return model.StatusValidated
	case ActionReject:
		return model.StatusRejected
	case ActionArchive:
		return model.StatusArchived
	case ActionRequestInfo:
		return model.StatusInfoRequested
	case ActionResubmit:
		return model.StatusPending
	}
	return ""
}

// NeedsNote reports whether the action must carry a reason or message.
func (a Action) NeedsNote() bool {
	return a == ActionReject || a == ActionRequestInfo
}

var transitions = map[model.Status][]model.Status{
	model.StatusPending: {
		model.StatusValidated,
		model.StatusRejected,
		model.StatusArchived,
		model.StatusInfoRequested,
	},
	model.StatusInfoRequested: {model.StatusPending},
}

// Allowed reports whether from may move to to. Re-applying the status an
// entity already has is always allowed: the new review metadata replaces
// the old one.
func Allowed(from, to model.Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Apply validates action against the current status and the note, and
// returns the resulting status.
func Apply(current model.Status, action Action, note string) (model.Status, error) {
	target := action.Target()
	if target == "" {
		return "", fmt.Errorf("unknown action %q", action)
	}
	if action.NeedsNote() && note == "" {
		return "", fmt.Errorf("%w: %s", ErrNoteRequired, action)
	}
	if !Allowed(current, target) {
		return "", fmt.Errorf("%w: %s from %s", ErrTransition, action, current)
	}
	return target, nil
}

// Terminal reports whether no transition leaves status.
func Terminal(status model.Status) bool {
	return len(transitions[status]) == 0
}

// Change builds the status write for an action. A rejection stores its
// reason, an information request its message; other actions clear both.
func Change(target model.Status, action Action, note, actor string, at time.Time) model.StatusChange {
	c := model.StatusChange{
		Status:     target,
		ReviewedBy: actor,
		ReviewedAt: at,
	}
	switch action {
	case ActionReject:
		c.RejectionReason = note
	case ActionRequestInfo:
		c.InfoRequest = note
	}
	return c
}
