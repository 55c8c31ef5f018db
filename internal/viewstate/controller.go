package viewstate

import (
	"context"
	"log"
	"time"

	"bofu/api/internal/product"
)

// ResultFetcher re-reads a saved research result when a restored snapshot
// references an id but carries no records.
type ResultFetcher interface {
	ResearchRecords(ctx context.Context, userID, researchID string) ([]product.Analysis, error)
}

// Controller drives sign-in/sign-out/visibility restoration against the
// snapshot store. It owns the restore priority order; the reducer owns
// everything else.
type Controller struct {
	store *Store
	fetch ResultFetcher
	now   func() time.Time
}

func NewController(store *Store, fetch ResultFetcher) *Controller {
	return &Controller{store: store, fetch: fetch, now: time.Now}
}

// Checkpoint is the single persistence funnel: every qualifying transition
// lands here exactly once, after the reducer ran.
func (c *Controller) Checkpoint(ctx context.Context, userID, tabID string, s State) {
	if userID == "" || s.CurrentView == ViewAuth {
		return
	}
	if err := c.store.Save(ctx, userID, tabID, Take(s, c.now())); err != nil {
		log.Printf("viewstate: checkpoint for %s failed: %v", userID, err)
	}
}

// OnSignIn restores the richer of the two snapshots, preferring, in order:
// results (re-fetching records by id when the snapshot has none), admin,
// history, main with its wizard step, then whatever view was stored, then
// main. An admin metadata flag short-circuits straight to the admin view.
func (c *Controller) OnSignIn(ctx context.Context, userID, tabID string, isAdmin bool) State {
	if isAdmin {
		return State{CurrentView: ViewAdmin}
	}

	sn, ok := c.store.Load(ctx, userID, tabID)
	if !ok {
		return State{CurrentView: ViewMain}
	}
	restored := sn.Restore()

	switch restored.CurrentView {
	case ViewResults:
		if len(restored.AnalysisResults) == 0 && restored.CurrentResearchID != "" && c.fetch != nil {
			records, err := c.fetch.ResearchRecords(ctx, userID, restored.CurrentResearchID)
			if err != nil {
				log.Printf("viewstate: refetch research %s: %v", restored.CurrentResearchID, err)
				restored.CurrentView = ViewMain
				restored.CurrentResearchID = ""
				return restored
			}
			restored.AnalysisResults = records
		}
		return restored
	case ViewAdmin:
		// Stored admin view without the metadata flag is stale.
		restored.CurrentView = ViewMain
		return restored
	case ViewHistory:
		restored.ShowHistory = true
		return restored
	case ViewMain, ViewAuth:
		restored.CurrentView = ViewMain
		return restored
	}
	return restored
}

// OnSignOut forces auth, clears results and history, and deletes both
// snapshot scopes.
func (c *Controller) OnSignOut(ctx context.Context, userID, tabID string) State {
	if userID != "" {
		if err := c.store.Clear(ctx, userID, tabID); err != nil {
			log.Printf("viewstate: clear snapshots for %s: %v", userID, err)
		}
	}
	return Reduce(State{}, SignedOut{})
}

// OnTabVisible re-reads the per-tab snapshot when a hidden tab becomes
// visible. A stored results view with records restores both the list and
// the view. A snapshot can never push an authenticated session back into
// the auth view; that degenerates to main.
func (c *Controller) OnTabVisible(ctx context.Context, userID, tabID string, current State, hasSession bool) State {
	sn, ok := c.store.LoadTab(ctx, userID, tabID)
	if !ok {
		return guardAuth(current, hasSession)
	}
	if sn.View == ViewResults && len(sn.Results) > 0 {
		restored := sn.Restore()
		return guardAuth(restored, hasSession)
	}
	return guardAuth(current, hasSession)
}

// OnPathChange applies the URL as the source of truth for the routed views.
// It returns the resulting state and, for an unrouted path while
// authenticated, redirect=true meaning the caller should send the client
// back to "/".
func (c *Controller) OnPathChange(path string, current State, hasSession bool) (State, bool) {
	if _, routed := ViewForPath(path); !routed {
		return current, hasSession
	}
	next := Reduce(current, PathChanged{Path: path})
	return guardAuth(next, hasSession), false
}

func guardAuth(s State, hasSession bool) State {
	if hasSession && s.CurrentView == ViewAuth {
		s.CurrentView = ViewMain
	}
	return s
}
