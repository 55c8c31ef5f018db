package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bofu/api/internal/config"
	"bofu/api/internal/gitrepo"
	"bofu/api/internal/product"
	"bofu/api/internal/search"
	"bofu/api/internal/store"
	"bofu/api/internal/viewstate"
	"bofu/api/internal/webhook"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeDataStore struct {
	getUserByIDFn          func(ctx context.Context, id string) (store.User, error)
	revokeAccessFn         func(ctx context.Context, jti string, exp time.Time) error
	isAccessRevokedFn      func(ctx context.Context, jti string) (bool, error)
	insertResearchFn       func(ctx context.Context, item store.ResearchResult) error
	updateResearchFn       func(ctx context.Context, id, userID, title string, data []byte, isDraft bool) (bool, error)
	getResearchFn          func(ctx context.Context, id, userID string) (store.ResearchResult, error)
	listResearchFn         func(ctx context.Context, userID string) ([]store.ResearchSummary, error)
	deleteResearchFn       func(ctx context.Context, id, userID string) (bool, error)
	approveRecordFn        func(ctx context.Context, id string, index int, approvedBy string) (bool, error)
	getResearchByIDFn      func(ctx context.Context, id string) (store.ResearchResult, error)
	insertDocumentRefFn    func(ctx context.Context, item store.DocumentRef) error
	getDocumentRefFn       func(ctx context.Context, id, userID string) (store.DocumentRef, error)
	listDocumentRefsFn     func(ctx context.Context, userID string) ([]store.DocumentRef, error)
	deleteDocumentRefFn    func(ctx context.Context, id, userID string) (store.DocumentRef, bool, error)
	insertNamedVersionFn   func(ctx context.Context, id, name, hash, createdBy string) error
	listNamedVersionsFn    func(ctx context.Context, id string) ([]store.NamedVersion, error)
	summaryCountsFn        func(ctx context.Context) (int, int, int, error)
	pingFn                 func(ctx context.Context) error
}

func (f *fakeDataStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{ID: id, DisplayName: "Tester"}, nil
}

func (f *fakeDataStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	if f.revokeAccessFn != nil {
		return f.revokeAccessFn(ctx, jti, exp)
	}
	return nil
}

func (f *fakeDataStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessRevokedFn != nil {
		return f.isAccessRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeDataStore) InsertResearchResult(ctx context.Context, item store.ResearchResult) error {
	if f.insertResearchFn != nil {
		return f.insertResearchFn(ctx, item)
	}
	return nil
}

func (f *fakeDataStore) UpdateResearchResult(ctx context.Context, id, userID, title string, data []byte, isDraft bool) (bool, error) {
	if f.updateResearchFn != nil {
		return f.updateResearchFn(ctx, id, userID, title, data, isDraft)
	}
	return true, nil
}

func (f *fakeDataStore) GetResearchResult(ctx context.Context, id, userID string) (store.ResearchResult, error) {
	if f.getResearchFn != nil {
		return f.getResearchFn(ctx, id, userID)
	}
	return store.ResearchResult{}, sql.ErrNoRows
}

func (f *fakeDataStore) ListResearchResults(ctx context.Context, userID string) ([]store.ResearchSummary, error) {
	if f.listResearchFn != nil {
		return f.listResearchFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeDataStore) DeleteResearchResult(ctx context.Context, id, userID string) (bool, error) {
	if f.deleteResearchFn != nil {
		return f.deleteResearchFn(ctx, id, userID)
	}
	return false, nil
}

func (f *fakeDataStore) ApproveResearchRecord(ctx context.Context, id string, index int, approvedBy string) (bool, error) {
	if f.approveRecordFn != nil {
		return f.approveRecordFn(ctx, id, index, approvedBy)
	}
	return false, nil
}

func (f *fakeDataStore) GetResearchResultByID(ctx context.Context, id string) (store.ResearchResult, error) {
	if f.getResearchByIDFn != nil {
		return f.getResearchByIDFn(ctx, id)
	}
	return store.ResearchResult{}, sql.ErrNoRows
}

func (f *fakeDataStore) InsertDocumentRef(ctx context.Context, item store.DocumentRef) error {
	if f.insertDocumentRefFn != nil {
		return f.insertDocumentRefFn(ctx, item)
	}
	return nil
}

func (f *fakeDataStore) GetDocumentRef(ctx context.Context, id, userID string) (store.DocumentRef, error) {
	if f.getDocumentRefFn != nil {
		return f.getDocumentRefFn(ctx, id, userID)
	}
	return store.DocumentRef{}, sql.ErrNoRows
}

func (f *fakeDataStore) ListDocumentRefs(ctx context.Context, userID string) ([]store.DocumentRef, error) {
	if f.listDocumentRefsFn != nil {
		return f.listDocumentRefsFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeDataStore) DeleteDocumentRef(ctx context.Context, id, userID string) (store.DocumentRef, bool, error) {
	if f.deleteDocumentRefFn != nil {
		return f.deleteDocumentRefFn(ctx, id, userID)
	}
	return store.DocumentRef{}, false, nil
}

func (f *fakeDataStore) InsertNamedVersion(ctx context.Context, id, name, hash, createdBy string) error {
	if f.insertNamedVersionFn != nil {
		return f.insertNamedVersionFn(ctx, id, name, hash, createdBy)
	}
	return nil
}

func (f *fakeDataStore) ListNamedVersions(ctx context.Context, id string) ([]store.NamedVersion, error) {
	if f.listNamedVersionsFn != nil {
		return f.listNamedVersionsFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeDataStore) SummaryCounts(ctx context.Context) (int, int, int, error) {
	if f.summaryCountsFn != nil {
		return f.summaryCountsFn(ctx)
	}
	return 0, 0, 0, nil
}

func (f *fakeDataStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeSessionStore struct {
	saveFn   func(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	lookupFn func(ctx context.Context, tokenHash string) (store.User, error)
	revokeFn func(ctx context.Context, tokenHash string) error
}

func (f *fakeSessionStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, tokenHash, user, expiresAt)
	}
	return nil
}

func (f *fakeSessionStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupFn != nil {
		return f.lookupFn(ctx, tokenHash)
	}
	return store.User{}, errors.New("not found")
}

func (f *fakeSessionStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeFn != nil {
		return f.revokeFn(ctx, tokenHash)
	}
	return nil
}

type fakeHooks struct {
	submitFn      func(ctx context.Context, req webhook.SubmitRequest) ([]byte, error)
	identifyFn    func(ctx context.Context, analysis product.Analysis) (product.Competitors, error)
	analyzeFn     func(ctx context.Context, analysis product.Analysis, competitors product.Competitors) (string, error)
	submitCalls   int
	identifyCalls int
}

func (f *fakeHooks) SubmitResearch(ctx context.Context, req webhook.SubmitRequest) ([]byte, error) {
	f.submitCalls++
	if f.submitFn != nil {
		return f.submitFn(ctx, req)
	}
	return []byte(`[]`), nil
}

func (f *fakeHooks) IdentifyCompetitors(ctx context.Context, analysis product.Analysis) (product.Competitors, error) {
	f.identifyCalls++
	if f.identifyFn != nil {
		return f.identifyFn(ctx, analysis)
	}
	return product.Competitors{}, nil
}

func (f *fakeHooks) AnalyzeCompetitors(ctx context.Context, analysis product.Analysis, competitors product.Competitors) (string, error) {
	if f.analyzeFn != nil {
		return f.analyzeFn(ctx, analysis, competitors)
	}
	return "", errors.New("not configured")
}

type fakeGit struct {
	ensureFn     func(researchID string, initial gitrepo.Content, author string) error
	commitFn     func(researchID string, content gitrepo.Content, author, message string) (store.CommitInfo, error)
	historyFn    func(researchID string, limit int) ([]store.CommitInfo, error)
	contentFn    func(researchID, hash string) (gitrepo.Content, error)
	commitByFn   func(researchID, hash string) (store.CommitInfo, error)
	tagFn        func(researchID, hash, name string) error
	deleteFn     func(researchID string) error
	deletedRepos []string
}

func (f *fakeGit) EnsureResearchRepo(researchID string, initial gitrepo.Content, author string) error {
	if f.ensureFn != nil {
		return f.ensureFn(researchID, initial, author)
	}
	return nil
}

func (f *fakeGit) CommitRecords(researchID string, content gitrepo.Content, author, message string) (store.CommitInfo, error) {
	if f.commitFn != nil {
		return f.commitFn(researchID, content, author, message)
	}
	return store.CommitInfo{Hash: "abc123"}, nil
}

func (f *fakeGit) History(researchID string, limit int) ([]store.CommitInfo, error) {
	if f.historyFn != nil {
		return f.historyFn(researchID, limit)
	}
	return nil, nil
}

func (f *fakeGit) GetContentByHash(researchID, hash string) (gitrepo.Content, error) {
	if f.contentFn != nil {
		return f.contentFn(researchID, hash)
	}
	return gitrepo.Content{}, errors.New("not found")
}

func (f *fakeGit) GetCommitByHash(researchID, hash string) (store.CommitInfo, error) {
	if f.commitByFn != nil {
		return f.commitByFn(researchID, hash)
	}
	return store.CommitInfo{}, errors.New("not found")
}

func (f *fakeGit) CreateTag(researchID, hash, name string) error {
	if f.tagFn != nil {
		return f.tagFn(researchID, hash, name)
	}
	return nil
}

func (f *fakeGit) DeleteRepo(researchID string) error {
	f.deletedRepos = append(f.deletedRepos, researchID)
	if f.deleteFn != nil {
		return f.deleteFn(researchID)
	}
	return nil
}

type fakeSearch struct {
	searchFn   func(q search.Query) search.Response
	indexed    []search.ResearchRecord
	deletedIDs []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexResearch(rec search.ResearchRecord, products []search.ProductRecord) {
	f.indexed = append(f.indexed, rec)
}

func (f *fakeSearch) DeleteResearch(id string) {
	f.deletedIDs = append(f.deletedIDs, id)
}

type testEnv struct {
	service *Service
	store   *fakeDataStore
	hooks   *fakeHooks
	git     *fakeGit
	search  *fakeSearch
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	snaps := viewstate.NewStoreWithClient(client, time.Hour)

	dataStore := &fakeDataStore{}
	hooks := &fakeHooks{}
	gitSvc := &fakeGit{}
	searchSvc := &fakeSearch{}

	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}

	svc := New(cfg, Deps{
		Store:    dataStore,
		Sessions: &fakeSessionStore{},
		Hooks:    hooks,
		Git:      gitSvc,
		Search:   searchSvc,
		Snaps:    snaps,
	})

	return &testEnv{
		service: svc,
		store:   dataStore,
		hooks:   hooks,
		git:     gitSvc,
		search:  searchSvc,
		redis:   mr,
	}
}

func testSession() Session {
	return Session{UserID: "usr_1", UserName: "Tester"}
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Submit(context.Background(), testSession(), SubmitInput{
		TabID:     "tab-1",
		BlogLinks: []string{"  ", ""},
	})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" || domainErr.Status != 422 {
		t.Fatalf("unexpected error %d %s", domainErr.Status, domainErr.Code)
	}
	if env.hooks.submitCalls != 0 {
		t.Fatalf("webhook called %d times for empty input", env.hooks.submitCalls)
	}
}

func TestSubmitParsesAndTransitionsToResults(t *testing.T) {
	env := newTestEnv(t)
	env.hooks.submitFn = func(ctx context.Context, req webhook.SubmitRequest) ([]byte, error) {
		if len(req.BlogLinks) != 1 || req.BlogLinks[0] != "https://example.com/blog" {
			t.Fatalf("unexpected payload: %+v", req)
		}
		return []byte("```json\n[{\"companyName\":\"Acme\",\"productDetails\":{\"name\":\"Widget\"}}]\n```"), nil
	}

	state, err := env.service.Submit(context.Background(), testSession(), SubmitInput{
		TabID:     "tab-1",
		BlogLinks: []string{" https://example.com/blog "},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if state.View != "results" {
		t.Fatalf("expected results view, got %q", state.View)
	}
	if len(state.Results) != 1 || state.Results[0].CompanyName != "Acme" {
		t.Fatalf("unexpected records: %+v", state.Results)
	}

	// The transition must have been checkpointed for this tab.
	restored := env.service.ViewState(context.Background(), testSession(), "tab-1")
	if restored.View != "results" || len(restored.Results) != 1 {
		t.Fatalf("snapshot not persisted: %+v", restored)
	}
}

func TestSubmitWebhookFailure(t *testing.T) {
	env := newTestEnv(t)
	env.hooks.submitFn = func(ctx context.Context, req webhook.SubmitRequest) ([]byte, error) {
		return nil, errors.New("upstream 502")
	}

	_, err := env.service.Submit(context.Background(), testSession(), SubmitInput{
		TabID:        "tab-1",
		ProductLines: []string{"Widget"},
	})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "WEBHOOK_FAILED" {
		t.Fatalf("expected WEBHOOK_FAILED, got %v", err)
	}
}

func TestSaveDuplicateGuard(t *testing.T) {
	env := newTestEnv(t)
	inserts := 0
	env.store.insertResearchFn = func(ctx context.Context, item store.ResearchResult) error {
		inserts++
		return nil
	}

	records := []product.Analysis{{CompanyName: "Acme"}}
	input := SaveInput{ClientSaveID: "save-1", Title: "Acme research", Records: records}

	first, duplicate, err := env.service.Save(context.Background(), testSession(), input)
	if err != nil || duplicate {
		t.Fatalf("first save: id=%q duplicate=%v err=%v", first, duplicate, err)
	}

	second, duplicate, err := env.service.Save(context.Background(), testSession(), input)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !duplicate || second != first {
		t.Fatalf("expected duplicate save to return %q, got %q (duplicate=%v)", first, second, duplicate)
	}
	if inserts != 1 {
		t.Fatalf("expected one insert, got %d", inserts)
	}
	if len(env.search.indexed) != 1 {
		t.Fatalf("expected one index call, got %d", len(env.search.indexed))
	}
}

func TestSaveGuardExpires(t *testing.T) {
	env := newTestEnv(t)
	env.service.saveGuardTTL = time.Millisecond

	input := SaveInput{ClientSaveID: "save-1", Records: []product.Analysis{{CompanyName: "Acme"}}}
	first, _, err := env.service.Save(context.Background(), testSession(), input)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	second, duplicate, err := env.service.Save(context.Background(), testSession(), input)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if duplicate || second == first {
		t.Fatalf("expected fresh save after guard expiry, got duplicate=%v id=%q", duplicate, second)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.ApproveRecord(context.Background(), testSession(), "res_1", 0)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN for non-admin, got %v", err)
	}

	approved := false
	env.store.approveRecordFn = func(ctx context.Context, id string, index int, approvedBy string) (bool, error) {
		approved = true
		if approvedBy != "Admin" {
			t.Fatalf("unexpected approver %q", approvedBy)
		}
		return true, nil
	}
	env.store.getResearchByIDFn = func(ctx context.Context, id string) (store.ResearchResult, error) {
		return store.ResearchResult{ID: id, UserID: "usr_2", Data: []byte(`[{"companyName":"Acme"}]`)}, nil
	}

	admin := Session{UserID: "usr_2", UserName: "Admin", IsAdmin: true}
	if _, err := env.service.ApproveRecord(context.Background(), admin, "res_1", 0); err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if !approved {
		t.Fatal("approve not persisted")
	}
}

func TestApproveWorksAcrossOwners(t *testing.T) {
	env := newTestEnv(t)

	// Row belongs to usr_owner; the approving admin is usr_admin.
	env.store.approveRecordFn = func(ctx context.Context, id string, index int, approvedBy string) (bool, error) {
		if id != "res_other" || index != 1 {
			t.Fatalf("unexpected approve target %s[%d]", id, index)
		}
		return true, nil
	}
	env.store.getResearchByIDFn = func(ctx context.Context, id string) (store.ResearchResult, error) {
		return store.ResearchResult{
			ID:     id,
			UserID: "usr_owner",
			Title:  "Owner research",
			Data:   []byte(`[{"companyName":"Acme"},{"companyName":"Globex","isApproved":true}]`),
		}, nil
	}
	env.store.getResearchFn = func(ctx context.Context, id, userID string) (store.ResearchResult, error) {
		t.Fatal("approval reload must not be scoped to the caller")
		return store.ResearchResult{}, nil
	}

	admin := Session{UserID: "usr_admin", UserName: "Admin", IsAdmin: true}
	view, err := env.service.ApproveRecord(context.Background(), admin, "res_other", 1)
	if err != nil {
		t.Fatalf("admin approve of another user's research: %v", err)
	}
	if len(view.Records) != 2 || !view.Records[1].IsApproved {
		t.Fatalf("unexpected view after approve: %+v", view.Records)
	}
}

func TestDeleteCleansSearchAndRepo(t *testing.T) {
	env := newTestEnv(t)
	env.store.deleteResearchFn = func(ctx context.Context, id, userID string) (bool, error) {
		return true, nil
	}

	if err := env.service.Delete(context.Background(), testSession(), "res_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(env.search.deletedIDs) != 1 || env.search.deletedIDs[0] != "res_1" {
		t.Fatalf("search index not cleaned: %v", env.search.deletedIDs)
	}
	if len(env.git.deletedRepos) != 1 || env.git.deletedRepos[0] != "res_1" {
		t.Fatalf("git repo not deleted: %v", env.git.deletedRepos)
	}
}

func TestAnalyzeCompetitorsStoresDocumentURL(t *testing.T) {
	env := newTestEnv(t)
	env.store.getResearchFn = func(ctx context.Context, id, userID string) (store.ResearchResult, error) {
		return store.ResearchResult{
			ID:     id,
			UserID: userID,
			Title:  "Acme research",
			Data:   []byte(`[{"companyName":"Acme","productDetails":{"name":"Widget"}}]`),
		}, nil
	}
	env.hooks.identifyFn = func(ctx context.Context, analysis product.Analysis) (product.Competitors, error) {
		return product.Competitors{Direct: []string{"Globex"}}, nil
	}
	env.hooks.analyzeFn = func(ctx context.Context, analysis product.Analysis, competitors product.Competitors) (string, error) {
		if len(competitors.Direct) != 1 {
			t.Fatalf("competitors not forwarded: %+v", competitors)
		}
		return "https://docs.example.com/report", nil
	}

	var savedData []byte
	env.store.updateResearchFn = func(ctx context.Context, id, userID, title string, data []byte, isDraft bool) (bool, error) {
		savedData = data
		return true, nil
	}

	docURL, err := env.service.AnalyzeCompetitors(context.Background(), testSession(), "res_1", 0)
	if err != nil {
		t.Fatalf("AnalyzeCompetitors: %v", err)
	}
	if docURL != "https://docs.example.com/report" {
		t.Fatalf("unexpected doc url %q", docURL)
	}
	if env.hooks.identifyCalls != 1 {
		t.Fatalf("expected identify call for record without competitors, got %d", env.hooks.identifyCalls)
	}

	var persisted []product.Analysis
	if err := json.Unmarshal(savedData, &persisted); err != nil {
		t.Fatalf("decode persisted records: %v", err)
	}
	if persisted[0].CompetitorAnalysisURL != docURL {
		t.Fatalf("doc url not persisted: %+v", persisted[0])
	}
	if persisted[0].Competitors == nil || len(persisted[0].Competitors.Direct) != 1 {
		t.Fatalf("competitors not persisted: %+v", persisted[0])
	}
}

func TestHistorySelectedFetchesRecords(t *testing.T) {
	env := newTestEnv(t)
	env.store.getResearchFn = func(ctx context.Context, id, userID string) (store.ResearchResult, error) {
		if id != "res_7" || userID != "usr_1" {
			t.Fatalf("unexpected lookup %s/%s", id, userID)
		}
		return store.ResearchResult{ID: id, UserID: userID, Data: []byte(`[{"companyName":"Acme"}]`)}, nil
	}

	state, err := env.service.ApplyViewEvent(context.Background(), testSession(), "tab-1",
		viewstate.HistorySelected{ResearchID: "res_7"})
	if err != nil {
		t.Fatalf("ApplyViewEvent: %v", err)
	}
	if state.View != "results" || state.ResearchID != "res_7" {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(state.Results) != 1 || state.Results[0].CompanyName != "Acme" {
		t.Fatalf("records not fetched: %+v", state.Results)
	}
}

func TestPathChangeIsAuthoritative(t *testing.T) {
	env := newTestEnv(t)
	session := testSession()

	state, err := env.service.ApplyViewEvent(context.Background(), session, "tab-1",
		viewstate.PathChanged{Path: "/history"})
	if err != nil {
		t.Fatalf("ApplyViewEvent: %v", err)
	}
	if state.View != "history" || !state.ShowHistory {
		t.Fatalf("path not authoritative: %+v", state)
	}

	// Unknown paths while authenticated land on main.
	state, err = env.service.ApplyViewEvent(context.Background(), session, "tab-1",
		viewstate.PathChanged{Path: "/nope"})
	if err != nil {
		t.Fatalf("ApplyViewEvent: %v", err)
	}
	if state.View != "main" {
		t.Fatalf("expected main for unknown path, got %q", state.View)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	revoked := ""
	sessions := &fakeSessionStore{
		lookupFn: func(ctx context.Context, tokenHash string) (store.User, error) {
			return store.User{ID: "usr_1", DisplayName: "Tester"}, nil
		},
		revokeFn: func(ctx context.Context, tokenHash string) error {
			revoked = tokenHash
			return nil
		},
	}
	env.service.sessions = sessions

	session, err := env.service.Refresh(context.Background(), "old-refresh-token")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if revoked == "" {
		t.Fatal("old refresh token not revoked")
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatalf("incomplete session: %+v", session)
	}
}

func TestAdminSummaryGated(t *testing.T) {
	env := newTestEnv(t)
	env.store.summaryCountsFn = func(ctx context.Context) (int, int, int, error) {
		return 3, 7, 2, nil
	}

	if _, err := env.service.AdminSummary(context.Background(), testSession()); err == nil {
		t.Fatal("expected FORBIDDEN for non-admin")
	}

	payload, err := env.service.AdminSummary(context.Background(), Session{UserID: "usr_2", IsAdmin: true})
	if err != nil {
		t.Fatalf("AdminSummary: %v", err)
	}
	if payload["sessions"] != 7 {
		t.Fatalf("unexpected summary %+v", payload)
	}
}
