package export

import (
	"context"
	"fmt"
	"time"

	"bofu/api/internal/product"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetResearch(ctx context.Context, researchID, userID string) (ResearchInfo, error)
}

// ResearchInfo holds the research session content for export
type ResearchInfo struct {
	ID        string
	Title     string
	Author    string
	Records   []product.Analysis
	UpdatedAt time.Time
}

// Service provides research report export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	info, err := s.store.GetResearch(ctx, req.ResearchID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get research: %w", err)
	}
	if len(info.Records) == 0 {
		return nil, ErrContentUnavailable
	}

	title := info.Title
	if title == "" {
		title = "Research Results"
	}

	html, err := RenderReportHTML(TemplateData{
		Title:       title,
		Author:      info.Author,
		GeneratedAt: info.UpdatedAt,
		Records:     info.Records,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return renderPDF(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
