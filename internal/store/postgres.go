package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, is_admin)
		VALUES ($1, $2, LOWER($3), $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.IsAdmin)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_admin, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_admin, created_at, updated_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = LOWER($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) InsertResearchResult(ctx context.Context, item ResearchResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO research_results (id, user_id, title, data, is_draft)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.UserID, item.Title, item.Data, item.IsDraft)
	if err != nil {
		return fmt.Errorf("insert research result: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateResearchResult(ctx context.Context, researchID, userID, title string, data []byte, isDraft bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE research_results
		SET title=$3, data=$4::jsonb, is_draft=$5, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, researchID, userID, title, data, isDraft)
	if err != nil {
		return false, fmt.Errorf("update research result: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update research result rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetResearchResult(ctx context.Context, researchID, userID string) (ResearchResult, error) {
	var item ResearchResult
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, data, is_draft, created_at, updated_at
		FROM research_results
		WHERE id=$1 AND user_id=$2
	`, researchID, userID).Scan(&item.ID, &item.UserID, &item.Title, &item.Data, &item.IsDraft, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ResearchResult{}, err
	}
	return item, nil
}

// GetResearchResultByID fetches a research result regardless of owner.
// Reserved for admin paths; user-facing reads go through GetResearchResult.
func (s *PostgresStore) GetResearchResultByID(ctx context.Context, researchID string) (ResearchResult, error) {
	var item ResearchResult
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, data, is_draft, created_at, updated_at
		FROM research_results
		WHERE id=$1
	`, researchID).Scan(&item.ID, &item.UserID, &item.Title, &item.Data, &item.IsDraft, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ResearchResult{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListResearchResults(ctx context.Context, userID string) ([]ResearchSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, is_draft, COALESCE(jsonb_array_length(data), 0), created_at, updated_at
		FROM research_results
		WHERE user_id=$1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list research results: %w", err)
	}
	defer rows.Close()

	items := make([]ResearchSummary, 0)
	for rows.Next() {
		var item ResearchSummary
		if err := rows.Scan(&item.ID, &item.Title, &item.IsDraft, &item.RecordCount, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan research result: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate research results: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteResearchResult(ctx context.Context, researchID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM research_results WHERE id=$1 AND user_id=$2
	`, researchID, userID)
	if err != nil {
		return false, fmt.Errorf("delete research result: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete research result rows: %w", err)
	}
	return affected > 0, nil
}

// ApproveResearchRecord is not scoped to an owner: approval is an
// admin operation and may target any user's research.
func (s *PostgresStore) ApproveResearchRecord(ctx context.Context, researchID string, recordIndex int, approvedBy string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE research_results
		SET data = jsonb_set(jsonb_set(jsonb_set(data,
				ARRAY[$2::text, 'isApproved'], 'true'::jsonb),
				ARRAY[$2::text, 'approvedBy'], to_jsonb($3::text)),
				ARRAY[$2::text, 'approvedAt'], to_jsonb(NOW())),
			updated_at = NOW()
		WHERE id=$1 AND jsonb_array_length(data) > $2
	`, researchID, recordIndex, approvedBy)
	if err != nil {
		return false, fmt.Errorf("approve research record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve research record rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertDocumentRef(ctx context.Context, item DocumentRef) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_refs (id, user_id, research_id, file_name, object_key, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.UserID, item.ResearchID, item.FileName, item.ObjectKey, item.ContentType, item.Size)
	if err != nil {
		return fmt.Errorf("insert document ref: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocumentRef(ctx context.Context, documentID, userID string) (DocumentRef, error) {
	var item DocumentRef
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, research_id, file_name, object_key, content_type, size_bytes, uploaded_at
		FROM document_refs
		WHERE id=$1 AND user_id=$2
	`, documentID, userID).Scan(&item.ID, &item.UserID, &item.ResearchID, &item.FileName, &item.ObjectKey, &item.ContentType, &item.Size, &item.UploadedAt)
	if err != nil {
		return DocumentRef{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListDocumentRefs(ctx context.Context, userID string) ([]DocumentRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, research_id, file_name, object_key, content_type, size_bytes, uploaded_at
		FROM document_refs
		WHERE user_id=$1
		ORDER BY uploaded_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list document refs: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentRef, 0)
	for rows.Next() {
		var item DocumentRef
		if err := rows.Scan(&item.ID, &item.UserID, &item.ResearchID, &item.FileName, &item.ObjectKey, &item.ContentType, &item.Size, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document ref: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document refs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteDocumentRef(ctx context.Context, documentID, userID string) (DocumentRef, bool, error) {
	var item DocumentRef
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM document_refs
		WHERE id=$1 AND user_id=$2
		RETURNING id, user_id, research_id, file_name, object_key, content_type, size_bytes, uploaded_at
	`, documentID, userID).Scan(&item.ID, &item.UserID, &item.ResearchID, &item.FileName, &item.ObjectKey, &item.ContentType, &item.Size, &item.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRef{}, false, nil
	}
	if err != nil {
		return DocumentRef{}, false, fmt.Errorf("delete document ref: %w", err)
	}
	return item, true, nil
}

func (s *PostgresStore) InsertNamedVersion(ctx context.Context, researchID, name, hash, createdBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO named_versions (research_id, version_name, commit_hash, created_by_name)
		VALUES ($1, $2, $3, $4)
	`, researchID, name, hash, createdBy)
	if err != nil {
		return fmt.Errorf("insert named version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNamedVersions(ctx context.Context, researchID string) ([]NamedVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_name, commit_hash, created_by_name, created_at
		FROM named_versions
		WHERE research_id=$1
		ORDER BY created_at DESC
	`, researchID)
	if err != nil {
		return nil, fmt.Errorf("list named versions: %w", err)
	}
	defer rows.Close()

	items := make([]NamedVersion, 0)
	for rows.Next() {
		var item NamedVersion
		if err := rows.Scan(&item.Name, &item.Hash, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan named version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate named versions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SummaryCounts(ctx context.Context) (users int, sessions int, drafts int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		err = fmt.Errorf("count users: %w", err)
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM research_results`).Scan(&sessions); err != nil {
		err = fmt.Errorf("count research results: %w", err)
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM research_results WHERE is_draft`).Scan(&drafts); err != nil {
		err = fmt.Errorf("count drafts: %w", err)
		return
	}
	return
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
