package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudidian/mailsort/internal/auth"
	"github.com/cloudidian/mailsort/internal/category"
	"github.com/cloudidian/mailsort/internal/config"
	"github.com/cloudidian/mailsort/internal/model"
	"github.com/cloudidian/mailsort/internal/store"
)

type fakeEnqueuer struct {
	err   error
	tasks []string
}

func (f *fakeEnqueuer) EnqueueJob(_ context.Context, jobID, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.tasks = append(f.tasks, jobID)
	return "task-" + jobID, nil
}

type fakeRevoker struct {
	revoked []string
}

func (f *fakeRevoker) Revoke(_ context.Context, jobID string) error {
	f.revoked = append(f.revoked, jobID)
	return nil
}

type testAPI struct {
	router   *gin.Engine
	store    *store.Store
	sessions *auth.SessionManager
	enqueuer *fakeEnqueuer
	revoker  *fakeRevoker
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sessions := auth.NewSessionManager("test-secret", time.Hour)
	enqueuer := &fakeEnqueuer{}
	revoker := &fakeRevoker{}
	logger := slog.Default()

	flow := auth.NewFlow(&config.Config{
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURL:  "http://localhost/auth/google/callback",
	})
	cipher, err := auth.NewTokenCipher(testEncryptionKey(t))
	require.NoError(t, err)
	creds := auth.NewCredentialProvider(s, cipher, flow, logger)

	authHandler := NewAuthHandler(flow, creds, sessions, s, logger)
	jobs := NewJobsHandler(s, enqueuer, revoker, logger)
	categories := NewCategoriesHandler(s, logger)
	router := NewRouter(authHandler, jobs, categories, sessions, nil)

	return &testAPI{router: router, store: s, sessions: sessions, enqueuer: enqueuer, revoker: revoker}
}

func (a *testAPI) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := a.sessions.Issue(userID, userID+"@example.com")
	require.NoError(t, err)
	return token
}

func testEncryptionKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestOAuthStartRedirects(t *testing.T) {
	a := newTestAPI(t)

	w := a.request(t, http.MethodGet, "/auth/google/start", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(t, location, "accounts.google.com")
	assert.Contains(t, location, "client-id")
	assert.Contains(t, location, "access_type=offline")
}

func TestOAuthCallbackRejectsStateMismatch(t *testing.T) {
	a := newTestAPI(t)

	w := a.request(t, http.MethodGet, "/auth/google/callback?state=forged&code=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	w := a.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateJob(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, "user-1")

	w := a.request(t, http.MethodPost, "/api/jobs", token, gin.H{"mode": "fast", "scope": "unread"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.StatusPending, job.Status)
	assert.Equal(t, "task-"+job.ID, job.TaskID)
	assert.Equal(t, []string{job.ID}, a.enqueuer.tasks)
}

func TestCreateJobValidation(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, "user-1")

	tests := []struct {
		name string
		body gin.H
	}{
		{"bad mode", gin.H{"mode": "turbo", "scope": "unread"}},
		{"bad scope", gin.H{"mode": "fast", "scope": "everything"}},
		{"empty", gin.H{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.request(t, http.MethodPost, "/api/jobs", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateJobQueueDown(t *testing.T) {
	a := newTestAPI(t)
	a.enqueuer.err = fmt.Errorf("broker unreachable")
	token := a.token(t, "user-1")

	w := a.request(t, http.MethodPost, "/api/jobs", token, gin.H{"mode": "fast", "scope": "unread"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// The orphaned row must be closed out as failed.
	jobs, err := a.store.ListJobsByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.StatusFailed, jobs[0].Status)
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	w := a.request(t, http.MethodGet, "/api/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.request(t, http.MethodGet, "/api/jobs", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetJobOwnership(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, "user-1")

	w := a.request(t, http.MethodPost, "/api/jobs", token, gin.H{"mode": "balanced", "scope": "inbox"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	w = a.request(t, http.MethodGet, "/api/jobs/"+job.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Another user's view: the job does not exist.
	other := a.token(t, "user-2")
	w = a.request(t, http.MethodGet, "/api/jobs/"+job.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.request(t, http.MethodGet, "/api/jobs/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelPendingJob(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, "user-1")

	w := a.request(t, http.MethodPost, "/api/jobs", token, gin.H{"mode": "fast", "scope": "all"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	w = a.request(t, http.MethodDelete, "/api/jobs/"+job.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{job.ID}, a.revoker.revoked)

	stored, err := a.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestCancelRunningJobIsFlagged(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, "user-1")

	w := a.request(t, http.MethodPost, "/api/jobs", token, gin.H{"mode": "fast", "scope": "all"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	claimed, err := a.store.MarkJobRunning(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	w = a.request(t, http.MethodDelete, "/api/jobs/"+job.ID, token, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{job.ID}, a.revoker.revoked)
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, "user-1")

	w := a.request(t, http.MethodPost, "/api/jobs", token, gin.H{"mode": "fast", "scope": "all"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	_, err := a.store.FinishJob(context.Background(), job.ID, model.StatusCompleted, 0, 0, nil, nil)
	require.NoError(t, err)

	w = a.request(t, http.MethodDelete, "/api/jobs/"+job.ID, token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, a.revoker.revoked)
}

func TestListCategories(t *testing.T) {
	a := newTestAPI(t)
	require.NoError(t, a.store.SeedCategories(context.Background(), category.Default()))
	token := a.token(t, "user-1")

	w := a.request(t, http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Categories []store.CategoryRecord `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Categories, 6)
}
