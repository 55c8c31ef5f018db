package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if q.UserID == "" {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexResearch indexes a research session and its product records
// (fire-and-forget to Meilisearch).
func (s *Service) IndexResearch(rec ResearchRecord, products []ProductRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexResearch(rec); err != nil {
			log.Printf("search: index research %s: %v", rec.ID, err)
		}
		if err := s.meili.IndexProducts(products); err != nil {
			log.Printf("search: index products for %s: %v", rec.ID, err)
		}
	}()
}

// DeleteResearch removes a session and its product records from the
// search index (fire-and-forget).
func (s *Service) DeleteResearch(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteResearch(id); err != nil {
			log.Printf("search: delete research %s: %v", id, err)
		}
		if err := s.meili.DeleteProducts(id); err != nil {
			log.Printf("search: delete products for %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes all research sessions from PostgreSQL into
// Meilisearch. Called during startup if Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllResearch(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(records) > 0 {
		if err := s.meili.IndexResearchBulk(records); err != nil {
			log.Printf("search: reindex research: %v", err)
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
