package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"bofu/api/internal/auth"
	"bofu/api/internal/authpw"
	"bofu/api/internal/config"
	"bofu/api/internal/export"
	"bofu/api/internal/gitrepo"
	"bofu/api/internal/product"
	"bofu/api/internal/search"
	"bofu/api/internal/store"
	"bofu/api/internal/util"
	"bofu/api/internal/viewstate"
	"bofu/api/internal/webhook"
)

// Session is the authenticated caller as seen by handlers.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	IsAdmin      bool
	JTI          string
	ExpiresAt    time.Time
}

// SubmitInput is the research submission payload. At least one document,
// blog link, or product line must be present.
type SubmitInput struct {
	TabID        string
	Documents    []webhook.Document
	BlogLinks    []string
	ProductLines []string
}

// SaveInput saves a parsed record set as a named research result.
// ClientSaveID guards against duplicate submissions of the same save.
type SaveInput struct {
	ClientSaveID string
	Title        string
	Records      []product.Analysis
	IsDraft      bool
}

// ResearchView is a fully loaded research result with parsed records.
type ResearchView struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	IsDraft   bool               `json:"isDraft"`
	Records   []product.Analysis `json:"records"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// ViewStatePayload is the wire shape of a view-controller state.
type ViewStatePayload struct {
	View            string             `json:"view"`
	Path            string             `json:"path"`
	ShowHistory     bool               `json:"showHistory"`
	ResearchID      string             `json:"researchId,omitempty"`
	ActiveStep      int                `json:"activeStep,omitempty"`
	CameFromHistory bool               `json:"cameFromHistory,omitempty"`
	Results         []product.Analysis `json:"results,omitempty"`
}

type dataStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	InsertResearchResult(ctx context.Context, item store.ResearchResult) error
	UpdateResearchResult(ctx context.Context, researchID, userID, title string, data []byte, isDraft bool) (bool, error)
	GetResearchResult(ctx context.Context, researchID, userID string) (store.ResearchResult, error)
	GetResearchResultByID(ctx context.Context, researchID string) (store.ResearchResult, error)
	ListResearchResults(ctx context.Context, userID string) ([]store.ResearchSummary, error)
	DeleteResearchResult(ctx context.Context, researchID, userID string) (bool, error)
	ApproveResearchRecord(ctx context.Context, researchID string, recordIndex int, approvedBy string) (bool, error)
	InsertDocumentRef(ctx context.Context, item store.DocumentRef) error
	GetDocumentRef(ctx context.Context, documentID, userID string) (store.DocumentRef, error)
	ListDocumentRefs(ctx context.Context, userID string) ([]store.DocumentRef, error)
	DeleteDocumentRef(ctx context.Context, documentID, userID string) (store.DocumentRef, bool, error)
	InsertNamedVersion(ctx context.Context, researchID, name, hash, createdBy string) error
	ListNamedVersions(ctx context.Context, researchID string) ([]store.NamedVersion, error)
	SummaryCounts(ctx context.Context) (int, int, int, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type credentialService interface {
	SignUp(ctx context.Context, req authpw.SignUpRequest) (store.User, error)
	SignIn(ctx context.Context, req authpw.SignInRequest) (store.User, error)
}

type analysisClient interface {
	SubmitResearch(ctx context.Context, req webhook.SubmitRequest) ([]byte, error)
	IdentifyCompetitors(ctx context.Context, analysis product.Analysis) (product.Competitors, error)
	AnalyzeCompetitors(ctx context.Context, analysis product.Analysis, competitors product.Competitors) (string, error)
}

type gitService interface {
	EnsureResearchRepo(researchID string, initial gitrepo.Content, author string) error
	CommitRecords(researchID string, content gitrepo.Content, author, message string) (store.CommitInfo, error)
	History(researchID string, limit int) ([]store.CommitInfo, error)
	GetContentByHash(researchID, hash string) (gitrepo.Content, error)
	GetCommitByHash(researchID, hash string) (store.CommitInfo, error)
	CreateTag(researchID, hash, name string) error
	DeleteRepo(researchID string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexResearch(rec search.ResearchRecord, products []search.ProductRecord)
	DeleteResearch(id string)
}

type exportService interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// documentStore is nil when object storage is not configured.
type documentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Deps carries the collaborators wired in by cmd/api.
type Deps struct {
	Store    dataStore
	Sessions sessionStore
	Creds    credentialService
	Hooks    analysisClient
	Git      gitService
	Search   searchService
	Export   exportService
	Docs     documentStore
	Snaps    *viewstate.Store
	Views    *viewstate.Controller
}

type processedSave struct {
	researchID string
	at         time.Time
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	creds    credentialService
	hooks    analysisClient
	git      gitService
	search   searchService
	export   exportService
	docs     documentStore
	snaps    *viewstate.Store
	views    *viewstate.Controller

	saveGuardTTL   time.Duration
	saveMu         sync.Mutex
	processedSaves map[string]processedSave
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:            cfg,
		store:          deps.Store,
		sessions:       deps.Sessions,
		creds:          deps.Creds,
		hooks:          deps.Hooks,
		git:            deps.Git,
		search:         deps.Search,
		export:         deps.Export,
		docs:           deps.Docs,
		snaps:          deps.Snaps,
		views:          deps.Views,
		saveGuardTTL:   5 * time.Minute,
		processedSaves: make(map[string]processedSave),
	}
	// The controller re-fetches saved records through the service itself.
	if s.views == nil && s.snaps != nil {
		s.views = viewstate.NewController(s.snaps, s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Sessions ──

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.creds.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if strings.Contains(err.Error(), "already registered") {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password, tabID string) (Session, *ViewStatePayload, error) {
	user, err := s.creds.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}

	var restored *ViewStatePayload
	if tabID != "" && s.views != nil {
		state := s.views.OnSignIn(ctx, user.ID, tabID, user.IsAdmin)
		payload := statePayload(state)
		restored = &payload
	}
	return session, restored, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Admin: user.IsAdmin,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		IsAdmin:      user.IsAdmin,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		IsAdmin:   user.IsAdmin,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken, tabID string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	if session.UserID != "" && s.views != nil {
		s.views.OnSignOut(ctx, session.UserID, tabID)
	}
	return nil
}

// ── Research ──

// Submit validates the research input, calls the analysis webhook, parses
// the response into records, and transitions the caller's view state to
// results. The parser is total: a webhook response always yields at least
// one record.
func (s *Service) Submit(ctx context.Context, session Session, input SubmitInput) (ViewStatePayload, error) {
	if len(input.Documents) == 0 && len(trimAll(input.BlogLinks)) == 0 && len(trimAll(input.ProductLines)) == 0 {
		return ViewStatePayload{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			"At least one document, blog link, or product line is required", nil)
	}

	raw, err := s.hooks.SubmitResearch(ctx, webhook.SubmitRequest{
		Documents:    input.Documents,
		BlogLinks:    trimAll(input.BlogLinks),
		ProductLines: trimAll(input.ProductLines),
	})
	if err != nil {
		return ViewStatePayload{}, domainError(http.StatusBadGateway, "WEBHOOK_FAILED", "Analysis webhook failed", map[string]any{
			"reason": err.Error(),
		})
	}

	records := product.Parse(raw)

	state := s.currentState(ctx, session.UserID, input.TabID)
	state = viewstate.Reduce(state, viewstate.SubmitSucceeded{Results: records})
	if s.views != nil && input.TabID != "" {
		s.views.Checkpoint(ctx, session.UserID, input.TabID, state)
	}
	return statePayload(state), nil
}

// Save persists a record set as a research result. A repeated save with
// the same ClientSaveID within the guard window returns the original id
// instead of inserting a second row.
func (s *Service) Save(ctx context.Context, session Session, input SaveInput) (string, bool, error) {
	if len(input.Records) == 0 {
		return "", false, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "records are required", nil)
	}

	if input.ClientSaveID != "" {
		if id, ok := s.recentSave(session.UserID, input.ClientSaveID); ok {
			return id, true, nil
		}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Research Results"
	}
	data, err := json.Marshal(input.Records)
	if err != nil {
		return "", false, fmt.Errorf("marshal records: %w", err)
	}

	researchID := util.NewID("res")
	if err := s.store.InsertResearchResult(ctx, store.ResearchResult{
		ID:      researchID,
		UserID:  session.UserID,
		Title:   title,
		Data:    data,
		IsDraft: input.IsDraft,
	}); err != nil {
		return "", false, err
	}

	content := gitrepo.Content{Title: title, Records: input.Records}
	if err := s.git.EnsureResearchRepo(researchID, content, session.UserName); err != nil {
		log.Printf("gitrepo: ensure repo for %s: %v", researchID, err)
	}

	s.indexResearch(researchID, session.UserID, title, input.Records)
	if input.ClientSaveID != "" {
		s.rememberSave(session.UserID, input.ClientSaveID, researchID)
	}
	return researchID, false, nil
}

func (s *Service) List(ctx context.Context, session Session) ([]store.ResearchSummary, error) {
	return s.store.ListResearchResults(ctx, session.UserID)
}

func (s *Service) Get(ctx context.Context, session Session, researchID string) (ResearchView, error) {
	row, err := s.store.GetResearchResult(ctx, researchID, session.UserID)
	if err != nil {
		return ResearchView{}, err
	}
	return toResearchView(row)
}

func (s *Service) Update(ctx context.Context, session Session, researchID string, input SaveInput) (ResearchView, error) {
	if len(input.Records) == 0 {
		return ResearchView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "records are required", nil)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Research Results"
	}
	data, err := json.Marshal(input.Records)
	if err != nil {
		return ResearchView{}, fmt.Errorf("marshal records: %w", err)
	}

	ok, err := s.store.UpdateResearchResult(ctx, researchID, session.UserID, title, data, input.IsDraft)
	if err != nil {
		return ResearchView{}, err
	}
	if !ok {
		return ResearchView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Research result not found", nil)
	}

	content := gitrepo.Content{Title: title, Records: input.Records}
	if _, err := s.git.CommitRecords(researchID, content, session.UserName, "Update research results"); err != nil {
		log.Printf("gitrepo: commit %s: %v", researchID, err)
	}

	s.indexResearch(researchID, session.UserID, title, input.Records)
	return s.Get(ctx, session, researchID)
}

func (s *Service) Delete(ctx context.Context, session Session, researchID string) error {
	ok, err := s.store.DeleteResearchResult(ctx, researchID, session.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Research result not found", nil)
	}
	s.search.DeleteResearch(researchID)
	if err := s.git.DeleteRepo(researchID); err != nil {
		log.Printf("gitrepo: delete repo %s: %v", researchID, err)
	}
	return nil
}

// Revisions lists the git-backed save history plus named versions.
func (s *Service) Revisions(ctx context.Context, session Session, researchID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetResearchResult(ctx, researchID, session.UserID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	commits, err := s.git.History(researchID, limit)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListNamedVersions(ctx, researchID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"revisions":     commits,
		"namedVersions": versions,
	}, nil
}

func (s *Service) RevisionByHash(ctx context.Context, session Session, researchID, hash string) (map[string]any, error) {
	if _, err := s.store.GetResearchResult(ctx, researchID, session.UserID); err != nil {
		return nil, err
	}
	content, err := s.git.GetContentByHash(researchID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	commit, err := s.git.GetCommitByHash(researchID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return map[string]any{
		"commit":  commit,
		"title":   content.Title,
		"records": content.Records,
	}, nil
}

// SaveNamedVersion tags the current head (or a given hash) with a
// human-readable name.
func (s *Service) SaveNamedVersion(ctx context.Context, session Session, researchID, hash, name string) (store.NamedVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.NamedVersion{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if _, err := s.store.GetResearchResult(ctx, researchID, session.UserID); err != nil {
		return store.NamedVersion{}, err
	}
	commit, err := s.git.GetCommitByHash(researchID, hash)
	if err != nil {
		return store.NamedVersion{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	if err := s.git.CreateTag(researchID, commit.Hash, tagName(name, commit.Hash)); err != nil {
		return store.NamedVersion{}, err
	}
	if err := s.store.InsertNamedVersion(ctx, researchID, name, commit.Hash, session.UserName); err != nil {
		return store.NamedVersion{}, err
	}
	return store.NamedVersion{Name: name, Hash: commit.Hash, CreatedBy: session.UserName}, nil
}

// ApproveRecord stamps approval metadata on one record of a research
// result. Admin only, and not limited to the admin's own research.
func (s *Service) ApproveRecord(ctx context.Context, session Session, researchID string, recordIndex int) (ResearchView, error) {
	if !session.IsAdmin {
		return ResearchView{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if recordIndex < 0 {
		return ResearchView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "recordIndex must be non-negative", nil)
	}
	ok, err := s.store.ApproveResearchRecord(ctx, researchID, recordIndex, session.UserName)
	if err != nil {
		return ResearchView{}, err
	}
	if !ok {
		return ResearchView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Research record not found", nil)
	}
	row, err := s.store.GetResearchResultByID(ctx, researchID)
	if err != nil {
		return ResearchView{}, err
	}
	return toResearchView(row)
}

// IdentifyCompetitors calls the competitor-identification webhook for one
// record and persists the returned lists on it.
func (s *Service) IdentifyCompetitors(ctx context.Context, session Session, researchID string, recordIndex int) (product.Competitors, error) {
	row, records, err := s.loadRecords(ctx, session.UserID, researchID)
	if err != nil {
		return product.Competitors{}, err
	}
	if recordIndex < 0 || recordIndex >= len(records) {
		return product.Competitors{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "recordIndex out of range", nil)
	}

	competitors, err := s.hooks.IdentifyCompetitors(ctx, records[recordIndex])
	if err != nil {
		return product.Competitors{}, domainError(http.StatusBadGateway, "WEBHOOK_FAILED", "Competitor identification failed", map[string]any{
			"reason": err.Error(),
		})
	}

	records[recordIndex].Competitors = &competitors
	if err := s.persistRecords(ctx, session, row, records, "Identify competitors"); err != nil {
		return product.Competitors{}, err
	}
	return competitors, nil
}

// AnalyzeCompetitors runs the full competitor analysis for one record and
// stores the returned document URL on it. Competitors are identified
// first if the record has none yet.
func (s *Service) AnalyzeCompetitors(ctx context.Context, session Session, researchID string, recordIndex int) (string, error) {
	row, records, err := s.loadRecords(ctx, session.UserID, researchID)
	if err != nil {
		return "", err
	}
	if recordIndex < 0 || recordIndex >= len(records) {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "recordIndex out of range", nil)
	}

	record := records[recordIndex]
	if record.Competitors == nil {
		competitors, err := s.hooks.IdentifyCompetitors(ctx, record)
		if err != nil {
			return "", domainError(http.StatusBadGateway, "WEBHOOK_FAILED", "Competitor identification failed", map[string]any{
				"reason": err.Error(),
			})
		}
		record.Competitors = &competitors
	}

	docURL, err := s.hooks.AnalyzeCompetitors(ctx, record, *record.Competitors)
	if err != nil {
		return "", domainError(http.StatusBadGateway, "WEBHOOK_FAILED", "Competitor analysis failed", map[string]any{
			"reason": err.Error(),
		})
	}

	record.CompetitorAnalysisURL = docURL
	records[recordIndex] = record
	if err := s.persistRecords(ctx, session, row, records, "Analyze competitors"); err != nil {
		return "", err
	}
	return docURL, nil
}

func (s *Service) Export(ctx context.Context, session Session, researchID string, format export.Format) (*export.Result, error) {
	return s.export.Export(ctx, export.Request{
		ResearchID: researchID,
		UserID:     session.UserID,
		Format:     format,
	})
}

func (s *Service) Search(ctx context.Context, session Session, text, filterType string, limit, offset int) (search.Response, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(search.Query{
		Text:       text,
		UserID:     session.UserID,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	}), nil
}

// AdminSummary reports row counts across the system. Admin only.
func (s *Service) AdminSummary(ctx context.Context, session Session) (map[string]any, error) {
	if !session.IsAdmin {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	users, sessions, drafts, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"users":    users,
		"sessions": sessions,
		"drafts":   drafts,
	}, nil
}

// ── Uploaded source documents ──

func (s *Service) UploadDocument(ctx context.Context, session Session, fileName, contentType string, size int64, body io.Reader) (store.DocumentRef, string, error) {
	if s.docs == nil {
		return store.DocumentRef{}, "", domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Document storage not configured", nil)
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return store.DocumentRef{}, "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "fileName is required", nil)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	docID := util.NewID("doc")
	objectKey := session.UserID + "/" + docID + "/" + fileName
	if err := s.docs.Put(ctx, objectKey, body, size, contentType); err != nil {
		return store.DocumentRef{}, "", fmt.Errorf("store document: %w", err)
	}

	ref := store.DocumentRef{
		ID:          docID,
		UserID:      session.UserID,
		FileName:    fileName,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Size:        size,
	}
	if err := s.store.InsertDocumentRef(ctx, ref); err != nil {
		return store.DocumentRef{}, "", err
	}

	url, err := s.docs.PresignGet(ctx, objectKey, 15*time.Minute)
	if err != nil {
		log.Printf("docstore: presign %s: %v", objectKey, err)
		url = ""
	}
	return ref, url, nil
}

func (s *Service) ListDocuments(ctx context.Context, session Session) ([]store.DocumentRef, error) {
	return s.store.ListDocumentRefs(ctx, session.UserID)
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (store.DocumentRef, string, error) {
	if s.docs == nil {
		return store.DocumentRef{}, "", domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Document storage not configured", nil)
	}
	ref, err := s.store.GetDocumentRef(ctx, documentID, session.UserID)
	if err != nil {
		return store.DocumentRef{}, "", err
	}
	url, err := s.docs.PresignGet(ctx, ref.ObjectKey, 15*time.Minute)
	if err != nil {
		return store.DocumentRef{}, "", fmt.Errorf("presign document: %w", err)
	}
	return ref, url, nil
}

// DownloadDocument streams a stored document back to its owner. The
// caller closes the reader.
func (s *Service) DownloadDocument(ctx context.Context, session Session, documentID string) (store.DocumentRef, io.ReadCloser, error) {
	if s.docs == nil {
		return store.DocumentRef{}, nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Document storage not configured", nil)
	}
	ref, err := s.store.GetDocumentRef(ctx, documentID, session.UserID)
	if err != nil {
		return store.DocumentRef{}, nil, err
	}
	body, err := s.docs.Get(ctx, ref.ObjectKey)
	if err != nil {
		return store.DocumentRef{}, nil, fmt.Errorf("fetch document %s: %w", ref.ObjectKey, err)
	}
	return ref, body, nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) error {
	ref, ok, err := s.store.DeleteDocumentRef(ctx, documentID, session.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
	}
	if s.docs != nil {
		if err := s.docs.Delete(ctx, ref.ObjectKey); err != nil {
			log.Printf("docstore: delete %s: %v", ref.ObjectKey, err)
		}
	}
	return nil
}

// ── View state ──

func (s *Service) ViewState(ctx context.Context, session Session, tabID string) ViewStatePayload {
	return statePayload(s.currentState(ctx, session.UserID, tabID))
}

// ApplyViewEvent runs one typed event through the reducer and checkpoints
// the result. Path changes route through the controller so path authority
// holds; history selections fetch the referenced records server-side.
func (s *Service) ApplyViewEvent(ctx context.Context, session Session, tabID string, event viewstate.Event) (ViewStatePayload, error) {
	state := s.currentState(ctx, session.UserID, tabID)

	switch e := event.(type) {
	case viewstate.PathChanged:
		next, redirect := s.views.OnPathChange(e.Path, state, true)
		if redirect {
			next, _ = s.views.OnPathChange("/", next, true)
		}
		state = next
	case viewstate.HistorySelected:
		if len(e.Results) == 0 && e.ResearchID != "" {
			if records, err := s.ResearchRecords(ctx, session.UserID, e.ResearchID); err == nil {
				e.Results = records
			}
		}
		state = viewstate.Reduce(state, e)
	default:
		state = viewstate.Reduce(state, event)
	}

	s.views.Checkpoint(ctx, session.UserID, tabID, state)
	return statePayload(state), nil
}

func (s *Service) ApplyViewIntent(ctx context.Context, session Session, tabID string, intent viewstate.Intent) (ViewStatePayload, error) {
	state := s.currentState(ctx, session.UserID, tabID)
	state = viewstate.Apply(state, intent)
	s.views.Checkpoint(ctx, session.UserID, tabID, state)
	return statePayload(state), nil
}

func (s *Service) TabVisible(ctx context.Context, session Session, tabID string) ViewStatePayload {
	state := s.currentState(ctx, session.UserID, tabID)
	state = s.views.OnTabVisible(ctx, session.UserID, tabID, state, true)
	return statePayload(state)
}

// ResearchRecords loads the record array of one saved research result.
// Satisfies viewstate.ResultFetcher.
func (s *Service) ResearchRecords(ctx context.Context, userID, researchID string) ([]product.Analysis, error) {
	_, records, err := s.loadRecords(ctx, userID, researchID)
	return records, err
}

// ── internals ──

func (s *Service) currentState(ctx context.Context, userID, tabID string) viewstate.State {
	if s.snaps != nil && tabID != "" {
		if snapshot, ok := s.snaps.Load(ctx, userID, tabID); ok {
			return snapshot.Restore()
		}
	}
	return viewstate.State{CurrentView: viewstate.ViewMain}
}

func (s *Service) loadRecords(ctx context.Context, userID, researchID string) (store.ResearchResult, []product.Analysis, error) {
	row, err := s.store.GetResearchResult(ctx, researchID, userID)
	if err != nil {
		return store.ResearchResult{}, nil, err
	}
	var records []product.Analysis
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &records); err != nil {
			return store.ResearchResult{}, nil, fmt.Errorf("decode records for %s: %w", researchID, err)
		}
	}
	return row, records, nil
}

func (s *Service) persistRecords(ctx context.Context, session Session, row store.ResearchResult, records []product.Analysis, message string) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	ok, err := s.store.UpdateResearchResult(ctx, row.ID, session.UserID, row.Title, data, row.IsDraft)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Research result not found", nil)
	}
	if _, err := s.git.CommitRecords(row.ID, gitrepo.Content{Title: row.Title, Records: records}, session.UserName, message); err != nil {
		log.Printf("gitrepo: commit %s: %v", row.ID, err)
	}
	s.indexResearch(row.ID, session.UserID, row.Title, records)
	return nil
}

func (s *Service) indexResearch(researchID, userID, title string, records []product.Analysis) {
	products := make([]search.ProductRecord, 0, len(records))
	for i, record := range records {
		products = append(products, search.ProductRecord{
			ID:          fmt.Sprintf("%s:%d", researchID, i),
			ResearchID:  researchID,
			UserID:      userID,
			ProductName: record.ProductDetails.Name,
			CompanyName: record.CompanyName,
			Description: record.ProductDetails.Description,
		})
	}
	s.search.IndexResearch(search.ResearchRecord{
		ID:     researchID,
		UserID: userID,
		Title:  title,
	}, products)
}

func (s *Service) recentSave(userID, clientSaveID string) (string, bool) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	now := time.Now()
	for key, entry := range s.processedSaves {
		if now.Sub(entry.at) > s.saveGuardTTL {
			delete(s.processedSaves, key)
		}
	}
	entry, ok := s.processedSaves[userID+":"+clientSaveID]
	if !ok {
		return "", false
	}
	return entry.researchID, true
}

func (s *Service) rememberSave(userID, clientSaveID, researchID string) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.processedSaves[userID+":"+clientSaveID] = processedSave{researchID: researchID, at: time.Now()}
}

func toResearchView(row store.ResearchResult) (ResearchView, error) {
	var records []product.Analysis
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &records); err != nil {
			return ResearchView{}, fmt.Errorf("decode records for %s: %w", row.ID, err)
		}
	}
	return ResearchView{
		ID:        row.ID,
		Title:     row.Title,
		IsDraft:   row.IsDraft,
		Records:   records,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func statePayload(state viewstate.State) ViewStatePayload {
	return ViewStatePayload{
		View:            string(state.CurrentView),
		Path:            state.CurrentView.Path(),
		ShowHistory:     state.ShowHistory,
		ResearchID:      state.CurrentResearchID,
		ActiveStep:      state.ActiveStep,
		CameFromHistory: state.CameFromHistory,
		Results:         state.AnalysisResults,
	}
}

func tagName(label, commitHash string) string {
	slug := strings.ToLower(strings.TrimSpace(label))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "version"
	}
	short := commitHash
	if len(short) > 8 {
		short = short[:8]
	}
	return "v-" + slug + "-" + short
}

func trimAll(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
