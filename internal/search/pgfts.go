package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries research sessions and their product records using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Product
// hits come from expanding the JSONB record array.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.UserID}

	var subQueries []string

	// Research session titles
	if q.FilterType == "" || q.FilterType == ResultResearch {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'research'::text AS type, r.id, r.title,
				''::text AS snippet,
				r.id AS research_id,
				ts_rank(r.fts, %s) AS rank
			FROM research_results r
			WHERE r.user_id = $2 AND r.fts @@ %s`, tsQuery, tsQuery))
	}

	// Product records inside session payloads
	if q.FilterType == "" || q.FilterType == ResultProduct {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'product'::text AS type,
				r.id || ':' || (rec.ordinality - 1)::text AS id,
				coalesce(rec.value->'productDetails'->>'name', '') AS title,
				ts_headline('english', coalesce(rec.value->'productDetails'->>'description', ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.id AS research_id,
				ts_rank(to_tsvector('english',
					coalesce(rec.value->'productDetails'->>'name', '') || ' ' ||
					coalesce(rec.value->>'companyName', '') || ' ' ||
					coalesce(rec.value->'productDetails'->>'description', '')), %s) AS rank
			FROM research_results r,
				jsonb_array_elements(r.data) WITH ORDINALITY AS rec(value, ordinality)
			WHERE r.user_id = $2
				AND to_tsvector('english',
					coalesce(rec.value->'productDetails'->>'name', '') || ' ' ||
					coalesce(rec.value->>'companyName', '') || ' ' ||
					coalesce(rec.value->'productDetails'->>'description', '')) @@ %s`,
			tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, research_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ResearchID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllResearch returns all research sessions for full reindexing.
func (p *PgFTS) LoadAllResearch(ctx context.Context) ([]ResearchRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, title
		FROM research_results
	`)
	if err != nil {
		return nil, fmt.Errorf("load research results: %w", err)
	}
	defer rows.Close()

	records := make([]ResearchRecord, 0)
	for rows.Next() {
		var r ResearchRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title); err != nil {
			return nil, fmt.Errorf("scan research result: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate research results: %w", err)
	}
	return records, nil
}
