package viewstate

import (
	"testing"

	"bofu/api/internal/product"
)

func sampleResults(n int) []product.Analysis {
	out := make([]product.Analysis, n)
	for i := range out {
		out[i] = product.Analysis{
			CompanyName:    "Acme",
			ProductDetails: product.ProductDetails{Name: "Widget"},
		}
	}
	return out
}

func TestReduceSignedOutResetsEverything(t *testing.T) {
	s := State{
		CurrentView:       ViewResults,
		ShowHistory:       true,
		CurrentResearchID: "res_1",
		AnalysisResults:   sampleResults(2),
	}
	next := Reduce(s, SignedOut{})
	if next.CurrentView != ViewAuth {
		t.Errorf("expected auth view, got %s", next.CurrentView)
	}
	if next.ShowHistory || len(next.AnalysisResults) != 0 || next.CurrentResearchID != "" {
		t.Errorf("expected cleared state, got %+v", next)
	}
}

func TestReduceSubmitSucceeded(t *testing.T) {
	next := Reduce(State{CurrentView: ViewMain}, SubmitSucceeded{Results: sampleResults(1)})
	if next.CurrentView != ViewResults {
		t.Errorf("expected results view, got %s", next.CurrentView)
	}
	if len(next.AnalysisResults) != 1 {
		t.Errorf("expected 1 result, got %d", len(next.AnalysisResults))
	}
	if next.CurrentResearchID != "" {
		t.Errorf("fresh submission must not carry a research id, got %q", next.CurrentResearchID)
	}
}

func TestReduceHistorySelected(t *testing.T) {
	next := Reduce(State{CurrentView: ViewHistory, ShowHistory: true}, HistorySelected{
		ResearchID: "abc",
		Results:    sampleResults(1),
	})
	if next.CurrentView != ViewResults {
		t.Errorf("expected results view, got %s", next.CurrentView)
	}
	if next.CurrentResearchID != "abc" {
		t.Errorf("expected research id abc, got %q", next.CurrentResearchID)
	}
	if !next.ShowHistory || !next.CameFromHistory {
		t.Errorf("expected history flags set, got %+v", next)
	}
	if len(next.AnalysisResults) != 1 {
		t.Errorf("expected selected results, got %d", len(next.AnalysisResults))
	}
}

func TestReducePathChangedIsAuthoritative(t *testing.T) {
	cases := []struct {
		path string
		want View
	}{
		{"/", ViewMain},
		{"/history", ViewHistory},
		{"/results", ViewResults},
		{"/admin", ViewAdmin},
	}
	for _, tc := range cases {
		next := Reduce(State{CurrentView: ViewResults}, PathChanged{Path: tc.path})
		if next.CurrentView != tc.want {
			t.Errorf("path %s: expected %s, got %s", tc.path, tc.want, next.CurrentView)
		}
		if (next.CurrentView == ViewHistory) != next.ShowHistory {
			t.Errorf("path %s: ShowHistory inconsistent with view", tc.path)
		}
	}
}

func TestReduceUnroutedPathLeavesStateAlone(t *testing.T) {
	s := State{CurrentView: ViewResults, ShowHistory: false}
	next := Reduce(s, PathChanged{Path: "/nope"})
	if next.CurrentView != ViewResults {
		t.Errorf("unrouted path must not change view, got %s", next.CurrentView)
	}
}

func TestApplyProductsUpdatedIgnoresEmptyPayload(t *testing.T) {
	s := State{CurrentView: ViewResults, AnalysisResults: sampleResults(2)}
	next := Apply(s, ProductsUpdated{})
	if len(next.AnalysisResults) != 2 {
		t.Errorf("empty payload must not clear results, got %d", len(next.AnalysisResults))
	}

	next = Apply(s, ProductsUpdated{Products: sampleResults(3)})
	if len(next.AnalysisResults) != 3 {
		t.Errorf("expected replacement list of 3, got %d", len(next.AnalysisResults))
	}
}

func TestApplyForceViews(t *testing.T) {
	next := Apply(State{CurrentView: ViewMain}, ForceResultsView{Products: sampleResults(1)})
	if next.CurrentView != ViewResults || len(next.AnalysisResults) != 1 {
		t.Errorf("ForceResultsView: got %+v", next)
	}

	next = Apply(State{CurrentView: ViewResults}, ForceHistoryView{})
	if next.CurrentView != ViewHistory || !next.ShowHistory {
		t.Errorf("ForceHistoryView: got %+v", next)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	s := State{CurrentView: ViewMain}
	intent := GlobalNavigation{Target: TargetHistory, FromProductResults: true}
	once := Apply(s, intent)
	twice := Apply(once, intent)
	if once.CurrentView != twice.CurrentView || once.ShowHistory != twice.ShowHistory ||
		once.CameFromHistory != twice.CameFromHistory {
		t.Errorf("intent not idempotent: %+v vs %+v", once, twice)
	}
}

func TestApplyDirectProductCardNavigationToMain(t *testing.T) {
	s := State{CurrentView: ViewResults, ShowHistory: true, CameFromHistory: true}
	next := Apply(s, DirectProductCardNavigation{Target: TargetMain})
	if next.CurrentView != ViewMain || next.ShowHistory || next.CameFromHistory {
		t.Errorf("expected clean main view, got %+v", next)
	}
}
