package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResearchResult is one saved research session: an ordered list of
// product-analysis records serialized as JSON plus row metadata. Exactly
// one row exists per saved session; in-memory working copies may run ahead
// of or behind it until the next save.
type ResearchResult struct {
	ID        string
	UserID    string
	Title     string
	Data      []byte // JSON array of product.Analysis
	IsDraft   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResearchSummary is the list-view projection of a ResearchResult, without
// the record payload.
type ResearchSummary struct {
	ID          string
	Title       string
	IsDraft     bool
	RecordCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentRef points at an uploaded source document in object storage.
type DocumentRef struct {
	ID          string
	UserID      string
	ResearchID  *string
	FileName    string
	ObjectKey   string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

type NamedVersion struct {
	Name      string
	Hash      string
	CreatedBy string
	CreatedAt time.Time
}
