package attendance

import (
	"time"

	attendanceerrors "go-bioattend/internal/attendance/errors"
)

// Action is the caller's requested session operation. ActionAuto infers
// login vs logout from the day's existing state and is the primary UX: one
// biometric sample toggles presence without the caller declaring intent.
type Action string

const (
	ActionAuto   Action = "auto"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
)

// ParseAction validates a wire value, defaulting empty to auto.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "":
		return ActionAuto, nil
	case ActionAuto, ActionLogin, ActionLogout:
		return Action(s), nil
	default:
		return "", attendanceerrors.ErrUnknownAction
	}
}

// Transition is the state change Resolve decided on.
type Transition string

const (
	TransitionLogin  Transition = "logged_in"
	TransitionLogout Transition = "logged_out"
)

// Resolve is the per-(identity, day) session state machine:
// NoEntry -> LoggedIn -> LoggedOut, terminal for the day. It is a pure
// function over the existing entry, the requested action, and now; the
// caller owns loading the entry and persisting the decided transition.
func Resolve(existing *Entry, action Action, now time.Time) (Transition, error) {
	switch action {
	case ActionLogin:
		if existing == nil {
			return TransitionLogin, nil
		}
		if existing.TimeOut != nil {
			return "", attendanceerrors.ErrAlreadyCompleted
		}
		return "", attendanceerrors.ErrAlreadyLoggedIn

	case ActionLogout:
		if existing == nil || existing.TimeIn.IsZero() {
			return "", attendanceerrors.ErrMustLoginFirst
		}
		if existing.TimeOut != nil {
			return "", attendanceerrors.ErrAlreadyCompleted
		}
		return TransitionLogout, nil

	case ActionAuto:
		if existing == nil {
			return TransitionLogin, nil
		}
		if existing.TimeOut != nil {
			return "", attendanceerrors.ErrAlreadyCompleted
		}
		return TransitionLogout, nil

	default:
		return "", attendanceerrors.ErrUnknownAction
	}
}

// DayOf truncates t to midnight of its calendar date in loc, normalised to
// UTC for storage. One canonical location decides what "today" means; see
// the ATTENDANCE_TZ setting.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
