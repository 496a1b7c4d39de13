package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/calsync/internal/adapters/driven/auth"
	"github.com/custodia-labs/calsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driving"
	"github.com/custodia-labs/calsync/internal/core/services"
)

const testToken = "test-token"

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeScheduler struct {
	mu       sync.Mutex
	syncNow  []string
	outcome  *domain.CycleOutcome
	err      error
	active   []string
}

var _ driving.SyncScheduler = (*fakeScheduler)(nil)

func (f *fakeScheduler) Start(context.Context) error { return nil }
func (f *fakeScheduler) Stop() error                 { return nil }

func (f *fakeScheduler) SyncNow(_ context.Context, workspaceID, accountID string, syncType domain.SyncType) (*domain.CycleOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.syncNow = append(f.syncNow, workspaceID+"/"+accountID+"/"+string(syncType))
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &domain.CycleOutcome{WorkspaceID: workspaceID, AccountID: accountID}, nil
}

func (f *fakeScheduler) ActiveSlots() []string { return f.active }

func (f *fakeScheduler) syncNowCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.syncNow...)
}

type fakeWriteBack struct {
	pushErr    error
	deleteErr  error
	resolveErr error

	pushed     []string
	deleted    []string
	resolved   []string
	resolution string
}

var _ driving.WriteBackCoordinator = (*fakeWriteBack)(nil)

func (f *fakeWriteBack) PushTaskUpdate(_ context.Context, _ *domain.IntegrationAccount, task *domain.MirroredTask) error {
	f.pushed = append(f.pushed, task.ID)
	return f.pushErr
}

func (f *fakeWriteBack) DeleteTask(_ context.Context, _ *domain.IntegrationAccount, task *domain.MirroredTask) error {
	f.deleted = append(f.deleted, task.ID)
	return f.deleteErr
}

func (f *fakeWriteBack) ResolveConflict(_ context.Context, _ *domain.IntegrationAccount, task *domain.MirroredTask, resolution string) error {
	f.resolved = append(f.resolved, task.ID)
	f.resolution = resolution
	return f.resolveErr
}

type fakeProvider struct {
	exchangeErr error
	email       string
	emailErr    error
	exchanged   []string
}

func (f *fakeProvider) AuthURL(state, redirectURI string) string {
	return "https://auth.example.com/consent?state=" + state + "&redirect_uri=" + redirectURI
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code, _ string) (*domain.OAuthToken, error) {
	f.exchanged = append(f.exchanged, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &domain.OAuthToken{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC(),
	}, nil
}

func (f *fakeProvider) RefreshAccessToken(context.Context, string) (*domain.OAuthToken, error) {
	return nil, domain.ErrAuthExpired
}

func (f *fakeProvider) UserEmail(context.Context, string) (string, error) {
	if f.emailErr != nil {
		return "", f.emailErr
	}
	return f.email, nil
}

type testEnv struct {
	server    *Server
	handler   http.Handler
	accounts  *memory.AccountStore
	events    *memory.EventStore
	tasks     *memory.TaskStore
	scheduler *fakeScheduler
	writeback *fakeWriteBack
	provider  *fakeProvider
	sealer    *services.AuthManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	accounts := memory.NewAccountStore()
	events := memory.NewEventStore()
	tasks := memory.NewTaskStore()
	scheduler := &fakeScheduler{}
	writeback := &fakeWriteBack{}
	provider := &fakeProvider{email: "user@example.com"}

	sealer, err := services.NewAuthManager(testKey, accounts, provider)
	require.NoError(t, err)

	server := NewServer(
		Config{
			Addr:        "127.0.0.1:0",
			RedirectURL: "http://127.0.0.1:8484/api/v1/auth/google/callback",
			Scopes:      []string{"calendar.readonly", "tasks"},
		},
		accounts, events, tasks, scheduler, writeback, provider,
		auth.NewStaticAuthorizer(testToken), sealer,
	)

	return &testEnv{
		server:    server,
		handler:   server.Handler(),
		accounts:  accounts,
		events:    events,
		tasks:     tasks,
		scheduler: scheduler,
		writeback: writeback,
		provider:  provider,
		sealer:    sealer,
	}
}

// do performs a request with the shared bearer token.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedAccount(t *testing.T) domain.IntegrationAccount {
	t.Helper()

	access, err := e.sealer.Encrypt("plain-access-token")
	require.NoError(t, err)
	refresh, err := e.sealer.Encrypt("plain-refresh-token")
	require.NoError(t, err)

	account := domain.IntegrationAccount{
		ID:            "acc-1",
		WorkspaceID:   "ws-1",
		ExternalEmail: "user@example.com",
		AccessToken:   access,
		RefreshToken:  refresh,
		TokenExpiry:   time.Now().Add(time.Hour).UTC(),
		Settings:      domain.DefaultSyncSettings(),
		Status:        domain.AccountActive,
	}
	require.NoError(t, e.accounts.Save(context.Background(), account))
	return account
}

func (e *testEnv) seedTask(t *testing.T, status domain.SyncStatus) domain.MirroredTask {
	t.Helper()

	task := domain.MirroredTask{
		ID:             "local-1",
		WorkspaceID:    "ws-1",
		AccountID:      "acc-1",
		ExternalTaskID: "t-1",
		ExternalListID: "list-1",
		Title:          "Buy milk",
		Status:         "needsAction",
		SyncStatus:     status,
		LastSyncedAt:   time.Now().Add(-time.Hour).UTC(),
	}
	require.NoError(t, e.tasks.Upsert(context.Background(), task))
	return task
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
