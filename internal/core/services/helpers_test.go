package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/calsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// fakeOAuth is a test double for driven.OAuthProvider.
type fakeOAuth struct {
	mu           sync.Mutex
	refreshToken *domain.OAuthToken
	refreshErr   error
	refreshCalls int
}

func (f *fakeOAuth) AuthURL(state, redirectURI string) string {
	return "https://auth.example.com/consent?state=" + state
}

func (f *fakeOAuth) ExchangeCode(_ context.Context, code, redirectURI string) (*domain.OAuthToken, error) {
	return &domain.OAuthToken{
		AccessToken:  "access-for-" + code,
		RefreshToken: "refresh-for-" + code,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeOAuth) RefreshAccessToken(_ context.Context, refreshToken string) (*domain.OAuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshToken, nil
}

func (f *fakeOAuth) UserEmail(_ context.Context, _ string) (string, error) {
	return "user@example.com", nil
}

func (f *fakeOAuth) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// fakeCalendarClient serves canned calendar listings.
type fakeCalendarClient struct {
	calendars []domain.RemoteCalendar
	events    map[string][]domain.RemoteEvent
	eventErr  map[string]error
	listErr   error
}

func (f *fakeCalendarClient) ListCalendars(_ context.Context) ([]domain.RemoteCalendar, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.calendars, nil
}

func (f *fakeCalendarClient) ListEvents(_ context.Context, calendarID string, _ domain.SyncWindow) ([]domain.RemoteEvent, error) {
	if err := f.eventErr[calendarID]; err != nil {
		return nil, err
	}
	return f.events[calendarID], nil
}

// fakeTaskClient serves canned task listings.
type fakeTaskClient struct {
	lists   []domain.RemoteTaskList
	tasks   map[string][]domain.RemoteTask
	taskErr map[string]error
	listErr error
}

func (f *fakeTaskClient) ListTaskLists(_ context.Context) ([]domain.RemoteTaskList, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.lists, nil
}

func (f *fakeTaskClient) ListTasks(_ context.Context, listID string) ([]domain.RemoteTask, error) {
	if err := f.taskErr[listID]; err != nil {
		return nil, err
	}
	return f.tasks[listID], nil
}

// fakeTaskWriter records write attempts and fails per-strategy on demand.
type fakeTaskWriter struct {
	remote   *domain.RemoteTask
	getErr   error
	subtasks []domain.RemoteTask

	updateErr   error
	patchErr    error
	rawPutErr   error
	rawPatchErr error
	deleteErr   map[string]error

	updateCalls   int
	patchCalls    int
	rawPutCalls   int
	rawPatchCalls int
	deleted       []string
	lastPayload   domain.RemoteTask
}

func (f *fakeTaskWriter) GetTask(_ context.Context, listID, taskID string) (*domain.RemoteTask, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.remote == nil {
		return nil, domain.ErrNotFound
	}
	return f.remote, nil
}

func (f *fakeTaskWriter) UpdateTask(_ context.Context, listID, taskID string, task domain.RemoteTask) error {
	f.updateCalls++
	f.lastPayload = task
	return f.updateErr
}

func (f *fakeTaskWriter) PatchTask(_ context.Context, listID, taskID string, task domain.RemoteTask) error {
	f.patchCalls++
	f.lastPayload = task
	return f.patchErr
}

func (f *fakeTaskWriter) RawPut(_ context.Context, listID, taskID string, task domain.RemoteTask) error {
	f.rawPutCalls++
	f.lastPayload = task
	return f.rawPutErr
}

func (f *fakeTaskWriter) RawPatch(_ context.Context, listID, taskID string, task domain.RemoteTask) error {
	f.rawPatchCalls++
	f.lastPayload = task
	return f.rawPatchErr
}

func (f *fakeTaskWriter) DeleteTask(_ context.Context, listID, taskID string) error {
	if err := f.deleteErr[taskID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, taskID)
	return nil
}

func (f *fakeTaskWriter) ListSubtasks(_ context.Context, listID, parentID string) ([]domain.RemoteTask, error) {
	return f.subtasks, nil
}

// fakeFactory hands out the fakes and counts how often the network layer
// was reached.
type fakeFactory struct {
	mu       sync.Mutex
	calendar *fakeCalendarClient
	tasks    *fakeTaskClient
	writer   *fakeTaskWriter
	calls    int
}

func (f *fakeFactory) bump() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeFactory) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFactory) CalendarClient(_ context.Context, _ string) (driven.CalendarClient, error) {
	f.bump()
	return f.calendar, nil
}

func (f *fakeFactory) TaskClient(_ context.Context, _ string) (driven.TaskClient, error) {
	f.bump()
	return f.tasks, nil
}

func (f *fakeFactory) TaskWriter(_ context.Context, _ string) (driven.TaskWriter, error) {
	f.bump()
	return f.writer, nil
}

// newTestAuth builds an AuthManager over an in-memory account store.
func newTestAuth(t *testing.T, accounts driven.AccountStore, oauth driven.OAuthProvider) *AuthManager {
	t.Helper()
	mgr, err := NewAuthManager(testKey, accounts, oauth)
	require.NoError(t, err)
	return mgr
}

// newTestAccount builds an active account with encrypted tokens that do not
// need refreshing, saved in the store.
func newTestAccount(t *testing.T, mgr *AuthManager, accounts driven.AccountStore) *domain.IntegrationAccount {
	t.Helper()

	access, err := mgr.Encrypt("plain-access-token")
	require.NoError(t, err)
	refresh, err := mgr.Encrypt("plain-refresh-token")
	require.NoError(t, err)

	account := &domain.IntegrationAccount{
		ID:            "acc-1",
		WorkspaceID:   "ws-1",
		ExternalEmail: "user@example.com",
		AccessToken:   access,
		RefreshToken:  refresh,
		TokenExpiry:   time.Now().Add(time.Hour),
		Settings:      domain.DefaultSyncSettings(),
		Status:        domain.AccountActive,
	}
	require.NoError(t, accounts.Save(context.Background(), *account))
	return account
}

func newMemoryStores() (*memory.AccountStore, *memory.EventStore, *memory.TaskStore) {
	return memory.NewAccountStore(), memory.NewEventStore(), memory.NewTaskStore()
}
