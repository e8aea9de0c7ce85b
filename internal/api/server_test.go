package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/auth"
	"github.com/ramonehamilton/deckvault/internal/backup"
	"github.com/ramonehamilton/deckvault/internal/catalog"
	"github.com/ramonehamilton/deckvault/internal/service"
	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

type stubSyncer struct{}

func (stubSyncer) Run(context.Context, string) (*catalog.ImportStats, error) {
	return &catalog.ImportStats{}, nil
}

func (stubSyncer) Status() catalog.Status { return catalog.Status{} }

type testEnv struct {
	t      *testing.T
	server *Server
	http   *httptest.Server
	cat    *storagetest.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewTestDB(t)
	cat := storagetest.SeedCatalog(t, db.Conn())
	issuer, err := auth.NewIssuer("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	svc := &service.Services{DB: db, Tokens: issuer}
	cards, err := service.NewCardService(svc, 16)
	require.NoError(t, err)
	manager := backup.NewManager(db, backup.Options{Dir: t.TempDir()})

	facades := &Facades{
		Accounts:  service.NewAccountService(svc),
		Cards:     cards,
		Decks:     service.NewDeckService(svc),
		Shares:    service.NewShareService(svc),
		Inventory: service.NewInventoryService(svc),
		Shopping:  service.NewShoppingService(svc),
		Admin:     service.NewAdminService(svc, stubSyncer{}, manager, nil),
	}
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"*"}
	server := NewServer(cfg, facades, nil)
	go server.WebSocketHub().Run()

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		server.WebSocketHub().Stop()
	})
	return &testEnv{t: t, server: server, http: ts, cat: cat}
}

// do sends a JSON request and decodes the "data" member of the envelope into
// out when out is non-nil.
func (e *testEnv) do(method, path, token string, body interface{}, out interface{}) int {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.HasPrefix(token, auth.APIKeyPrefix) {
		req.Header.Set("X-API-Key", token)
	} else if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	if out != nil && resp.StatusCode < 300 {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&envelope))
		require.NoError(e.t, json.Unmarshal(envelope.Data, out))
	}
	return resp.StatusCode
}

func (e *testEnv) register(username string) string {
	e.t.Helper()
	var session struct {
		Tokens auth.TokenPair `json:"tokens"`
	}
	status := e.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct horse battery",
	}, &session)
	require.Equal(e.t, http.StatusCreated, status)
	return session.Tokens.AccessToken
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Expected development environment, got %s", cfg.Environment)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %v", cfg.RequestTimeout)
	}
}

func TestNewServer_NilConfig(t *testing.T) {
	server := NewServer(nil, &Facades{}, nil)

	if server.Port() != 8080 {
		t.Errorf("Expected default port 8080, got %d", server.Port())
	}
	if server.WebSocketHub() == nil {
		t.Error("Expected wsHub to be initialized")
	}
	if server.NewWebSocketObserver() == nil {
		t.Error("Expected observer")
	}
}

func TestHealthCheck(t *testing.T) {
	server := NewServer(nil, &Facades{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %s", body["status"])
	}
	if body["version"] != "dev" {
		t.Errorf("Expected version dev, got %s", body["version"])
	}
}

func TestJSONContentTypeMiddleware(t *testing.T) {
	server := NewServer(nil, &Facades{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"login":"a"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected 415, got %d", rec.Code)
	}
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/decks", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/decks", "garbage", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/decks", auth.APIKeyPrefix+"nope", nil, nil))

	var me struct {
		Username string `json:"username"`
		IsAdmin  bool   `json:"is_admin"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/auth/me", alice, nil, &me))
	assert.Equal(t, "alice", me.Username)
	assert.True(t, me.IsAdmin)

	var key struct {
		ID        int64  `json:"id"`
		Key       string `json:"key"`
		KeyPrefix string `json:"key_prefix"`
	}
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/auth/api-keys", alice, map[string]string{"name": "cli"}, &key))
	require.True(t, strings.HasPrefix(key.Key, auth.APIKeyPrefix))

	me.Username = ""
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/auth/me", key.Key, nil, &me))
	assert.Equal(t, "alice", me.Username)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, fmt.Sprintf("/api/v1/auth/api-keys/%d", key.ID), alice, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/auth/me", key.Key, nil, nil))

	status := env.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login": "alice", "password": "wrong password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = env.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "ALICE", "email": "other@example.com", "password": "correct horse battery",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestDeckFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")

	var deck struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/decks", alice,
		map[string]string{"name": "Burn", "format": "modern"}, &deck))
	deckPath := fmt.Sprintf("/api/v1/decks/%d", deck.ID)

	status := env.do(http.MethodPost, deckPath+"/cards", alice, map[string]interface{}{
		"printing_id": env.cat.Printing("Lightning Bolt", "M10"),
		"quantity":    4,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, deckPath, bob, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/decks/abc", alice, nil, nil))

	var price struct {
		Mainboard float64 `json:"mainboard"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, deckPath+"/price", alice, nil, &price))
	assert.InDelta(t, 10.0, price.Mainboard, 0.001)

	var legality struct {
		Format string `json:"format"`
		Legal  bool   `json:"legal"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, deckPath+"/legality", alice, nil, &legality))
	assert.Equal(t, "modern", legality.Format)
	assert.True(t, legality.Legal)

	req, err := http.NewRequest(http.MethodGet, env.http.URL+deckPath+"/export?format=text", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	exported, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="Burn.txt"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, string(exported), "4 Lightning Bolt (M10)")
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, deckPath+"/export?format=mtga", alice, nil, nil))

	var share struct {
		Token string `json:"token"`
	}
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, deckPath+"/share", alice, nil, &share))

	var shared struct {
		Owner     string `json:"owner"`
		ViewCount int    `json:"view_count"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/shared/"+share.Token, "", nil, &shared))
	assert.Equal(t, "alice", shared.Owner)
	assert.Equal(t, 1, shared.ViewCount)

	var copied struct {
		ID     int64 `json:"id"`
		UserID int64 `json:"user_id"`
	}
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/shared/"+share.Token+"/import", bob, nil, &copied))
	assert.NotEqual(t, deck.ID, copied.ID)

	var list struct {
		TotalQuantity int `json:"total_quantity"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/shopping", bob, map[string]interface{}{}, &list))
	assert.Equal(t, 4, list.TotalQuantity)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, deckPath+"/share", alice, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/shared/"+share.Token, "", nil, nil))
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, deckPath, alice, nil, nil))
}

func TestInventoryPagination(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	var result struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/inventory/bulk-add", alice,
		map[string]string{"text": "4 Lightning Bolt (M10)\n1 Forest\n1 Sol Ring\nnot a card"}, &result))
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	req, err := http.NewRequest(http.MethodGet, env.http.URL+"/api/v1/inventory?page_size=2&sort=name", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Data       []json.RawMessage `json:"data"`
		Page       int               `json:"page"`
		PageSize   int               `json:"page_size"`
		TotalCount int               `json:"total_count"`
		TotalPages int               `json:"total_pages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/admin/users", bob, nil, nil))

	var users []struct {
		Username string `json:"username"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/admin/users", alice, nil, &users))
	assert.Len(t, users, 2)

	var info struct {
		Filename string `json:"filename"`
	}
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/admin/backups", alice, nil, &info))
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/admin/backups/"+info.Filename, alice, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodDelete, "/api/v1/admin/backups/not-a-backup.txt", alice, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/admin/backups/schedule", alice, nil, nil))

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/admin/sync", alice, nil, nil))

	var stats struct {
		Requests     uint64 `json:"requests"`
		ClientErrors uint64 `json:"client_errors"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/admin/metrics", alice, nil, &stats))
	assert.GreaterOrEqual(t, stats.Requests, uint64(8))
	assert.GreaterOrEqual(t, stats.ClientErrors, uint64(3))
}

func TestAdminEventsWebSocket(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/v1/admin/events"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+bob)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?access_token="+alice, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	deadline := time.Now().Add(time.Second)
	for env.server.WebSocketHub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, env.server.WebSocketHub().ClientCount())
}
