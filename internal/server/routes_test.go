package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investment-server/internal/config"
	"investment-server/internal/store"
)

type downStore struct {
	*store.Memory
}

func (downStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func doRequest(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := NewServer(testConfig(), store.NewMemory())

	rec := doRequest(t, srv.RegisterRoutes(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Store: "up"}, resp)
}

func TestHealth_StoreDown(t *testing.T) {
	srv := NewServer(testConfig(), downStore{store.NewMemory()})

	rec := doRequest(t, srv.RegisterRoutes(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Store)
}

func TestNewRoom(t *testing.T) {
	srv := NewServer(testConfig(), store.NewMemory())

	rec := doRequest(t, srv.RegisterRoutes(), http.MethodPost, "/rooms", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NewRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.GameID, roomCodeLength)
}

func TestAdminReset(t *testing.T) {
	srv, mem, _ := setupTestServer(t)
	h := srv.RegisterRoutes()

	_, err := srv.gameManager.JoinGame(context.Background(), "room1", "Alice", "conn-alice")
	require.NoError(t, err)
	require.NoError(t, srv.sync.Flush(context.Background()))
	require.Equal(t, 1, mem.Len())

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, h, http.MethodPost, "/admin/reset", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, h, http.MethodPost, "/admin/reset", "wrong").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, h, http.MethodGet, "/admin/reset", testToken).Code)

	rec := doRequest(t, h, http.MethodPost, "/admin/reset", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResetAllResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Rooms)
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, 0, srv.rooms.Len())
}

func TestAdminReset_DisabledWithoutToken(t *testing.T) {
	srv, _, _ := setupTestServer(t, func(c *config.Config) { c.OperatorToken = "" })

	rec := doRequest(t, srv.RegisterRoutes(), http.MethodPost, "/admin/reset", "anything")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ShutdownFlushesWrites(t *testing.T) {
	mem := store.NewMemory()
	srv := NewServer(testConfig(), mem)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- srv.Run(ctx) }()

	_, err := srv.gameManager.JoinGame(context.Background(), "room1", "Alice", "conn-alice")
	require.NoError(t, err)

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	require.NoError(t, srv.Shutdown(shutdownCtx))

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	_, err = mem.Load(context.Background(), "room1")
	assert.NoError(t, err)
}
