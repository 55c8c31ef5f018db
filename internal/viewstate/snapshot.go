package viewstate

import (
	"encoding/json"
	"fmt"
	"time"

	"bofu/api/internal/product"
)

// SnapshotVersion is the current snapshot schema. Version 1 blobs are the
// legacy browser-storage shape with overlapping alias fields; they are
// migrated on read and written back as version 2.
const SnapshotVersion = 2

// Snapshot is the persisted subset of State plus a write timestamp used to
// pick a winner when the per-tab and cross-session copies disagree.
type Snapshot struct {
	Version         int                `json:"version"`
	View            View               `json:"view"`
	ShowHistory     bool               `json:"showHistory"`
	ResearchID      string             `json:"researchId,omitempty"`
	ActiveStep      int                `json:"activeStep,omitempty"`
	Results         []product.Analysis `json:"results,omitempty"`
	CameFromHistory bool               `json:"cameFromHistory,omitempty"`
	SavedAt         time.Time          `json:"savedAt"`
}

// Take captures the persisted subset of a state.
func Take(s State, now time.Time) Snapshot {
	return Snapshot{
		Version:         SnapshotVersion,
		View:            s.CurrentView,
		ShowHistory:     s.ShowHistory,
		ResearchID:      s.CurrentResearchID,
		ActiveStep:      s.ActiveStep,
		Results:         s.AnalysisResults,
		CameFromHistory: s.CameFromHistory,
		SavedAt:         now,
	}
}

// Restore rebuilds a State from a snapshot. Unknown views fall back to main
// rather than erroring; a snapshot is advisory, never authoritative over
// auth status.
func (sn Snapshot) Restore() State {
	view, ok := ParseView(string(sn.View))
	if !ok {
		view = ViewMain
	}
	return State{
		CurrentView:       view,
		ShowHistory:       sn.ShowHistory || view == ViewHistory,
		CurrentResearchID: sn.ResearchID,
		ActiveStep:        sn.ActiveStep,
		AnalysisResults:   sn.Results,
		CameFromHistory:   sn.CameFromHistory,
	}
}

// Encode is the single serializer for both snapshot scopes.
func Encode(sn Snapshot) ([]byte, error) {
	data, err := json.Marshal(sn)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot blob, migrating legacy version-1 payloads. It
// returns an error only for undecodable input; callers treat that as a
// missing snapshot and fall back to defaults.
func Decode(data []byte) (Snapshot, error) {
	var sn Snapshot
	if err := json.Unmarshal(data, &sn); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if sn.Version >= SnapshotVersion {
		return sn, nil
	}
	return migrateLegacy(data)
}

// legacySnapshot is the accreted browser-storage shape: the same facts
// appear under several alias keys and booleans shadow the view name.
type legacySnapshot struct {
	CurrentView              string             `json:"currentView"`
	LastView                 string             `json:"lastView"`
	IsViewingResults         bool               `json:"isViewingResults"`
	IsViewingHistory         bool               `json:"isViewingHistory"`
	IsViewingAdmin           bool               `json:"isViewingAdmin"`
	FromHistory              bool               `json:"fromHistory"`
	IsProductCardFromHistory bool               `json:"isProductCardFromHistory"`
	ResearchID               string             `json:"researchId"`
	ActiveStep               int                `json:"activeStep"`
	Products                 []product.Analysis `json:"editedProducts"`
}

func migrateLegacy(data []byte) (Snapshot, error) {
	var legacy legacySnapshot
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal legacy snapshot: %w", err)
	}

	view := legacy.CurrentView
	if view == "" {
		view = legacy.LastView
	}
	// Boolean aliases win over the stored name; that matches how the old
	// restore code ordered its checks.
	switch {
	case legacy.IsViewingResults:
		view = string(ViewResults)
	case legacy.IsViewingAdmin:
		view = string(ViewAdmin)
	case legacy.IsViewingHistory:
		view = string(ViewHistory)
	}
	parsed, ok := ParseView(view)
	if !ok {
		parsed = ViewMain
	}

	return Snapshot{
		Version:         SnapshotVersion,
		View:            parsed,
		ShowHistory:     parsed == ViewHistory,
		ResearchID:      legacy.ResearchID,
		ActiveStep:      legacy.ActiveStep,
		Results:         legacy.Products,
		CameFromHistory: legacy.FromHistory || legacy.IsProductCardFromHistory,
	}, nil
}
