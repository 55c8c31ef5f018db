package viewstate

import "bofu/api/internal/product"

// NavTarget is where a navigation intent wants to land.
type NavTarget string

const (
	TargetHistory NavTarget = "history"
	TargetMain    NavTarget = "main"
)

// Intent replaces the old stringly-typed DOM events with a closed union of
// navigation requests. Apply handles every variant; a misspelled event name
// is no longer representable.
type Intent interface {
	isIntent()
}

// ProductsUpdated replaces the result list if the payload is non-empty.
// The payload is the full authoritative list, not a delta.
type ProductsUpdated struct {
	Products []product.Analysis
}

// ForceResultsView switches to the results view, optionally replacing the
// result list.
type ForceResultsView struct {
	Products []product.Analysis
}

// ForceHistoryView switches to the history view and marks history visible.
type ForceHistoryView struct{}

// GlobalNavigation navigates to history or main from the results page.
type GlobalNavigation struct {
	Target             NavTarget
	FromProductResults bool
}

// DirectProductCardNavigation is the product-card variant of
// GlobalNavigation; it lands on the same states.
type DirectProductCardNavigation struct {
	Target NavTarget
}

func (ProductsUpdated) isIntent()             {}
func (ForceResultsView) isIntent()            {}
func (ForceHistoryView) isIntent()            {}
func (GlobalNavigation) isIntent()            {}
func (DirectProductCardNavigation) isIntent() {}

// Apply dispatches one intent. Every handler sets absolute state, never
// deltas, so re-delivery of the same intent is idempotent.
func Apply(s State, in Intent) State {
	switch intent := in.(type) {
	case ProductsUpdated:
		if len(intent.Products) > 0 {
			s.AnalysisResults = intent.Products
		}
		return s

	case ForceResultsView:
		s.CurrentView = ViewResults
		if len(intent.Products) > 0 {
			s.AnalysisResults = intent.Products
		}
		return s

	case ForceHistoryView:
		s.CurrentView = ViewHistory
		s.ShowHistory = true
		return s

	case GlobalNavigation:
		return navigate(s, intent.Target, intent.FromProductResults)

	case DirectProductCardNavigation:
		return navigate(s, intent.Target, true)
	}
	return s
}

func navigate(s State, target NavTarget, fromResults bool) State {
	switch target {
	case TargetHistory:
		s.CurrentView = ViewHistory
		s.ShowHistory = true
		s.CameFromHistory = fromResults
	case TargetMain:
		s.CurrentView = ViewMain
		s.ShowHistory = false
		s.CameFromHistory = false
	}
	return s
}
