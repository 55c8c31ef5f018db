// Package viewstate keeps the client's rendered view, the URL path, and the
// persisted snapshots mutually consistent across reloads, tab switches, and
// programmatic navigation. All transitions run through one reducer and all
// persistence through one snapshot store, so there is a single writer per
// user key instead of racing effects.
package viewstate

import "bofu/api/internal/product"

// View names one of the top-level screens.
type View string

const (
	ViewAuth    View = "auth"
	ViewMain    View = "main"
	ViewHistory View = "history"
	ViewResults View = "results"
	ViewAdmin   View = "admin"
)

// ParseView validates a view name from the wire or a stored snapshot.
func ParseView(raw string) (View, bool) {
	switch View(raw) {
	case ViewAuth, ViewMain, ViewHistory, ViewResults, ViewAdmin:
		return View(raw), true
	}
	return "", false
}

// ViewForPath maps a routed URL path to its view. The path is authoritative
// over in-memory state for these four routes.
func ViewForPath(path string) (View, bool) {
	switch path {
	case "/":
		return ViewMain, true
	case "/history":
		return ViewHistory, true
	case "/results":
		return ViewResults, true
	case "/admin":
		return ViewAdmin, true
	}
	return "", false
}

// Path returns the canonical route for a view.
func (v View) Path() string {
	switch v {
	case ViewHistory:
		return "/history"
	case ViewResults:
		return "/results"
	case ViewAdmin:
		return "/admin"
	default:
		return "/"
	}
}

// State is the whole view-controller state. It is a value type; the reducer
// returns a new State rather than mutating in place.
type State struct {
	CurrentView       View
	ShowHistory       bool
	CurrentResearchID string
	ActiveStep        int
	AnalysisResults   []product.Analysis
	CameFromHistory   bool
}

// Initial is the pre-authentication state.
func Initial() State {
	return State{CurrentView: ViewAuth}
}

// Event is a typed state-machine input. The set is closed: Reduce switches
// exhaustively over it, so a new event cannot be forgotten silently.
type Event interface {
	isEvent()
}

// SignedOut forces the auth view and clears everything user-scoped.
type SignedOut struct{}

// SubmitSucceeded carries freshly parsed, unsaved analysis results.
type SubmitSucceeded struct {
	Results []product.Analysis
}

// StartedNew returns to the main wizard at step one.
type StartedNew struct{}

// HistorySelected opens a saved research result from the history list.
type HistorySelected struct {
	ResearchID string
	Results    []product.Analysis
}

// StepChanged records wizard progress so a reload can restore it.
type StepChanged struct {
	Step int
}

// PathChanged reflects a router-driven URL change.
type PathChanged struct {
	Path string
}

func (SignedOut) isEvent()       {}
func (SubmitSucceeded) isEvent() {}
func (StartedNew) isEvent()      {}
func (HistorySelected) isEvent() {}
func (StepChanged) isEvent()     {}
func (PathChanged) isEvent()     {}

// Reduce applies one event to the state. Invariants maintained here:
// CurrentView==history implies ShowHistory, and CurrentView==results implies
// AnalysisResults reflects CurrentResearchID or local unsaved results.
func Reduce(s State, e Event) State {
	switch event := e.(type) {
	case SignedOut:
		return Initial()

	case SubmitSucceeded:
		s.CurrentView = ViewResults
		s.AnalysisResults = event.Results
		s.CurrentResearchID = ""
		s.CameFromHistory = false
		return s

	case StartedNew:
		s.CurrentView = ViewMain
		s.ShowHistory = false
		s.AnalysisResults = nil
		s.CurrentResearchID = ""
		s.CameFromHistory = false
		s.ActiveStep = 1
		return s

	case HistorySelected:
		s.CurrentView = ViewResults
		s.ShowHistory = true
		s.CurrentResearchID = event.ResearchID
		s.AnalysisResults = event.Results
		s.CameFromHistory = true
		return s

	case StepChanged:
		s.ActiveStep = event.Step
		return s

	case PathChanged:
		view, routed := ViewForPath(event.Path)
		if !routed {
			return s
		}
		s.CurrentView = view
		s.ShowHistory = view == ViewHistory
		if view == ViewMain {
			s.CameFromHistory = false
		}
		return s
	}
	return s
}
