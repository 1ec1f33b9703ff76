// Package policy decides which post-attendance actions a viewer may take on an
// event at a given instant. Everything here is a pure function of the event
// interval, the viewer's facts and the evaluation time; nothing is stored.
//
// The server evaluates this policy before every mutation and treats the
// result as authoritative. Clients may call the eligibility endpoint to
// render affordances, but that copy is never trusted for enforcement.
package policy

import (
	"fmt"
	"time"
)

const (
	// DefaultGracePeriod is how long after an event ends attendees may still
	// rate, comment and upload photos.
	DefaultGracePeriod = 7 * 24 * time.Hour

	// DefaultImageQuota caps images per (event, uploader).
	DefaultImageQuota = 5
)

// State is the derived position of "now" relative to an event's interval.
type State string

const (
	StateUpcoming          State = "UPCOMING"
	StateLive              State = "LIVE"
	StateEndedInteractable State = "ENDED_INTERACTABLE"
	StateEndedLocked       State = "ENDED_LOCKED"
)

// rank orders states along the time axis.
func (s State) rank() int {
	switch s {
	case StateUpcoming:
		return 0
	case StateLive:
		return 1
	case StateEndedInteractable:
		return 2
	case StateEndedLocked:
		return 3
	default:
		return -1
	}
}

// Action is a gated viewer operation.
type Action string

const (
	ActionMarkGoing     Action = "mark_going"
	ActionUnmarkGoing   Action = "unmark_going"
	ActionComment       Action = "comment"
	ActionRate          Action = "rate"
	ActionUploadImage   Action = "upload_image"
	ActionViewAttendees Action = "view_attendees"
)

// Actions lists every gated action in a stable order.
var Actions = []Action{
	ActionMarkGoing,
	ActionUnmarkGoing,
	ActionComment,
	ActionRate,
	ActionUploadImage,
	ActionViewAttendees,
}

// Reason is the code reported with a denial.
type Reason string

const (
	ReasonNotGoing           Reason = "not-going"
	ReasonWindowNotOpen      Reason = "window-not-open"
	ReasonWindowClosed       Reason = "window-closed"
	ReasonAlreadyRated       Reason = "already-rated"
	ReasonOwnEvent           Reason = "own-event"
	ReasonImageQuotaExceeded Reason = "image-quota-exceeded"
)

// Message returns a user-facing sentence for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNotGoing:
		return "only attendees who marked going can do this"
	case ReasonWindowNotOpen:
		return "this opens once the event has ended"
	case ReasonWindowClosed:
		return "this is no longer possible for this event"
	case ReasonAlreadyRated:
		return "you have already rated this event"
	case ReasonOwnEvent:
		return "organizers cannot do this on their own event"
	case ReasonImageQuotaExceeded:
		return "you have reached the photo limit for this event"
	default:
		return "not allowed"
	}
}

// Window is the event interval the policy is evaluated against.
type Window struct {
	Start time.Time
	End   time.Time
}

// Viewer carries the facts about the caller the policy needs.
type Viewer struct {
	IsOwner    bool
	IsAdmin    bool
	Going      bool
	HasRated   bool
	ImageCount int
}

// Policy holds the tunables. The zero value is not usable; use New.
type Policy struct {
	gracePeriod time.Duration
	imageQuota  int
}

type Option func(*Policy)

// WithGracePeriod overrides the post-event interaction window.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.gracePeriod = d
		}
	}
}

// WithImageQuota overrides the per-uploader image cap.
func WithImageQuota(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.imageQuota = n
		}
	}
}

func New(opts ...Option) Policy {
	p := Policy{
		gracePeriod: DefaultGracePeriod,
		imageQuota:  DefaultImageQuota,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p Policy) GracePeriod() time.Duration { return p.gracePeriod }

func (p Policy) ImageQuota() int { return p.imageQuota }

// StateAt computes the window state. Boundaries: start and end are both LIVE,
// end+grace is still ENDED_INTERACTABLE.
func (p Policy) StateAt(w Window, now time.Time) State {
	switch {
	case now.Before(w.Start):
		return StateUpcoming
	case !now.After(w.End):
		return StateLive
	case !now.After(w.End.Add(p.gracePeriod)):
		return StateEndedInteractable
	default:
		return StateEndedLocked
	}
}

// Evaluation is the full answer for one (event, viewer, instant).
type Evaluation struct {
	State   State             `json:"state"`
	Allowed []Action          `json:"allowed_actions"`
	Denied  map[Action]Reason `json:"denial_reasons"`
}

func (e Evaluation) Allows(a Action) bool {
	_, denied := e.Denied[a]
	return !denied
}

// Check returns a *DeniedError when the action is not allowed.
func (e Evaluation) Check(a Action) error {
	if reason, denied := e.Denied[a]; denied {
		return &DeniedError{Action: a, Reason: reason, State: e.State}
	}
	return nil
}

func (p Policy) Evaluate(w Window, v Viewer, now time.Time) Evaluation {
	st := p.StateAt(w, now)
	ev := Evaluation{
		State:   st,
		Allowed: make([]Action, 0, len(Actions)),
		Denied:  make(map[Action]Reason),
	}
	for _, a := range Actions {
		if reason, ok := p.decide(a, st, v); ok {
			ev.Allowed = append(ev.Allowed, a)
		} else {
			ev.Denied[a] = reason
		}
	}
	return ev
}

// Check evaluates a single action.
func (p Policy) Check(a Action, w Window, v Viewer, now time.Time) error {
	st := p.StateAt(w, now)
	if reason, ok := p.decide(a, st, v); !ok {
		return &DeniedError{Action: a, Reason: reason, State: st}
	}
	return nil
}

func (p Policy) decide(a Action, st State, v Viewer) (Reason, bool) {
	switch a {
	case ActionMarkGoing:
		if v.IsOwner {
			return ReasonOwnEvent, false
		}
		if st == StateUpcoming || st == StateLive {
			return "", true
		}
		return ReasonWindowClosed, false

	case ActionUnmarkGoing:
		// retraction closes at the stroke of start
		if st != StateUpcoming {
			return ReasonWindowClosed, false
		}
		if !v.Going {
			return ReasonNotGoing, false
		}
		return "", true

	case ActionComment, ActionRate, ActionUploadImage:
		switch st {
		case StateUpcoming, StateLive:
			return ReasonWindowNotOpen, false
		case StateEndedLocked:
			return ReasonWindowClosed, false
		}
		if !v.Going {
			return ReasonNotGoing, false
		}
		if a == ActionRate && v.HasRated {
			return ReasonAlreadyRated, false
		}
		if a == ActionUploadImage && v.ImageCount >= p.imageQuota {
			return ReasonImageQuotaExceeded, false
		}
		return "", true

	case ActionViewAttendees:
		if v.Going || v.IsOwner || v.IsAdmin {
			return "", true
		}
		return ReasonNotGoing, false
	}
	return ReasonWindowClosed, false
}

// DeniedError reports an eligibility denial with its specific reason.
type DeniedError struct {
	Action Action
	Reason Reason
	State  State
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied in state %s: %s", e.Action, e.State, e.Reason)
}

// IsDenied reports whether err is a denial, optionally for a specific reason.
func IsDenied(err error, reason Reason) bool {
	de, ok := AsDenied(err)
	if !ok {
		return false
	}
	return reason == "" || de.Reason == reason
}
