// Package dashboard holds the single state value behind the web dashboard
// and the controller that moves it between states.
package dashboard

import (
	"time"

	"github.com/joshdurbin/runtracker/internal/strava"
	"github.com/joshdurbin/runtracker/internal/weekly"
	"github.com/joshdurbin/runtracker/internal/window"
)

// LoadFailedMessage is shown when a load fails for any upstream reason.
const LoadFailedMessage = "Failed to load activities for weekly view."

// Status is the top-level dashboard state.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusAuthenticating
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticating:
		return "authenticating"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Selection is the period and offset the user asked for.
type Selection struct {
	Period window.Period `json:"period"`
	Offset int           `json:"offset"`
}

// DefaultSelection is the last six months, current offset.
func DefaultSelection() Selection {
	return Selection{Period: window.DefaultPeriod}
}

// State is replaced as a whole on every transition. Slices are shared
// between snapshots and must not be modified.
type State struct {
	Status  Status
	Athlete strava.Athlete

	// Selection is the most recently requested period and offset. Window is
	// the one the displayed data was loaded for.
	Selection Selection
	Window    window.Window

	Activities []strava.Activity
	Weeks      []weekly.Week
	LoadedAt   time.Time

	// LoadingMore is set while a new selection loads over data that is
	// still on screen.
	LoadingMore  bool
	ErrorMessage string

	// RequestID identifies the load whose response will be accepted.
	RequestID uint64
}

// HasData reports whether a load has completed since sign-in.
func (s State) HasData() bool {
	return !s.LoadedAt.IsZero()
}

// Summary aggregates the loaded weeks.
func (s State) Summary() weekly.Summary {
	return weekly.Summarize(s.Weeks)
}

// Authenticated reports whether an athlete is signed in.
func (s State) Authenticated() bool {
	return s.Status != StatusUnauthenticated && s.Status != StatusAuthenticating
}

// Msg is a state transition request.
type Msg interface {
	msg()
}

type (
	AuthStarted   struct{}
	AuthSucceeded struct{ Athlete strava.Athlete }
	AuthFailed    struct{ Message string }

	LoadRequested struct {
		ID        uint64
		Selection Selection
	}
	LoadSucceeded struct {
		ID         uint64
		Window     window.Window
		Activities []strava.Activity
		Weeks      []weekly.Week
		At         time.Time
	}
	LoadFailed struct {
		ID      uint64
		Message string
	}

	LoggedOut struct{}
)

func (AuthStarted) msg()   {}
func (AuthSucceeded) msg() {}
func (AuthFailed) msg()    {}
func (LoadRequested) msg() {}
func (LoadSucceeded) msg() {}
func (LoadFailed) msg()    {}
func (LoggedOut) msg()     {}

// Accepts reports whether m applies to s. Load responses are only accepted
// for the latest request while it is still pending, and loads are only
// started for a signed-in athlete.
func Accepts(s State, m Msg) bool {
	switch m := m.(type) {
	case LoadRequested:
		return s.Authenticated()
	case LoadSucceeded:
		return s.Status == StatusLoading && m.ID == s.RequestID
	case LoadFailed:
		return s.Status == StatusLoading && m.ID == s.RequestID
	default:
		return true
	}
}

// Reduce returns the state after m. It has no side effects.
func Reduce(s State, m Msg) State {
	if !Accepts(s, m) {
		return s
	}

	switch m := m.(type) {
	case AuthStarted:
		return State{Status: StatusAuthenticating, Selection: s.Selection, RequestID: s.RequestID}

	case AuthSucceeded:
		next := s
		if !s.Authenticated() {
			next = State{Selection: s.Selection, RequestID: s.RequestID}
		}
		next.Status = StatusReady
		next.Athlete = m.Athlete
		next.ErrorMessage = ""
		return next

	case AuthFailed:
		return State{
			Status:       StatusUnauthenticated,
			Selection:    s.Selection,
			RequestID:    s.RequestID,
			ErrorMessage: m.Message,
		}

	case LoadRequested:
		next := s
		next.Status = StatusLoading
		next.Selection = m.Selection
		next.RequestID = m.ID
		next.LoadingMore = s.HasData()
		next.ErrorMessage = ""
		return next

	case LoadSucceeded:
		next := s
		next.Status = StatusReady
		next.Window = m.Window
		next.Activities = m.Activities
		next.Weeks = m.Weeks
		next.LoadedAt = m.At
		next.LoadingMore = false
		next.ErrorMessage = ""
		return next

	case LoadFailed:
		next := s
		next.Status = StatusError
		next.LoadingMore = false
		next.ErrorMessage = m.Message
		return next

	case LoggedOut:
		return State{Status: StatusUnauthenticated, Selection: s.Selection, RequestID: s.RequestID}
	}
	return s
}
