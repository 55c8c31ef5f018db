package search

import "testing"

func TestBuildSearchRequestsCarriesQueryText(t *testing.T) {
	reqs := buildSearchRequests(Query{Text: "widget pricing", UserID: "usr_1", Limit: 5})
	if len(reqs) != 2 {
		t.Fatalf("expected one request per index, got %d", len(reqs))
	}
	for _, r := range reqs {
		if r.Query != "widget pricing" {
			t.Errorf("index %s: query = %q, want %q", r.IndexUID, r.Query, "widget pricing")
		}
		if r.Limit != 5 {
			t.Errorf("index %s: limit = %d, want 5", r.IndexUID, r.Limit)
		}
		filter, ok := r.Filter.([]string)
		if !ok || len(filter) != 1 || filter[0] != `userId = "usr_1"` {
			t.Errorf("index %s: filter = %v", r.IndexUID, r.Filter)
		}
	}
}

func TestBuildSearchRequestsFilterType(t *testing.T) {
	reqs := buildSearchRequests(Query{Text: "q", UserID: "usr_1", FilterType: ResultProduct})
	if len(reqs) != 1 {
		t.Fatalf("expected a single request, got %d", len(reqs))
	}
	if reqs[0].IndexUID != idxProducts {
		t.Fatalf("index = %s, want %s", reqs[0].IndexUID, idxProducts)
	}
	if reqs[0].Limit != 20 {
		t.Fatalf("default limit = %d, want 20", reqs[0].Limit)
	}
}
