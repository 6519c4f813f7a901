package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/annel0/mmo-npc/internal/arena"
	"github.com/annel0/mmo-npc/internal/auth"
	"github.com/annel0/mmo-npc/internal/config"
	"github.com/annel0/mmo-npc/internal/logging"
	"github.com/annel0/mmo-npc/internal/npc"
	"github.com/annel0/mmo-npc/internal/physics"
	"github.com/annel0/mmo-npc/internal/render"
	"github.com/annel0/mmo-npc/internal/storage"
	"github.com/annel0/mmo-npc/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server  *RestServer
	manager *npc.Manager
	bridge  *render.Bridge
	target  *arena.Target
	history *fakeHistory
}

type fakeHistory struct {
	events []storage.ArchivedEvent
	asked  string
}

func (f *fakeHistory) History(_ context.Context, agentID string, limit int64) ([]storage.ArchivedEvent, error) {
	f.asked = agentID
	return f.events, nil
}

func newFixture(t *testing.T, authDisabled bool) *fixture {
	t.Helper()
	log := logging.NewWriterLogger("api-test", io.Discard, logging.DEBUG)

	cfg := config.DefaultAI()
	repo := storage.NewMemoryPoseRepo()
	bridge := render.NewBridge(repo, log)
	target := arena.NewTarget(vec.Vec2Float{X: 0, Z: 400}, 1, 0)

	m, err := npc.NewManager(&cfg, npc.Dependencies{
		World:    physics.NewWorld(),
		Target:   target,
		Renderer: bridge,
		Observer: bridge,
		Rand:     rand.New(rand.NewSource(11)),
		Logger:   log,
	})
	require.NoError(t, err)

	hash, err := auth.HashPassword("letmein")
	require.NoError(t, err)
	ops, err := auth.NewOperators(config.AuthConfig{
		Operators: map[string]string{"ops": hash},
		TokenTTL:  time.Minute,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	history := &fakeHistory{}
	srv := NewRestServer(Config{
		Manager:      m,
		Bridge:       bridge,
		Poses:        repo,
		Target:       target,
		Operators:    ops,
		History:      history,
		AuthDisabled: authDisabled,
		Registerer:   reg,
		Gatherer:     reg,
		Logger:       log,
	})
	return &fixture{server: srv, manager: m, bridge: bridge, target: target, history: history}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	w, _ := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t, false)

	w, _ := f.do(t, http.MethodGet, "/api/agents", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/agents", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginAndUseToken(t *testing.T) {
	f := newFixture(t, false)

	w, _ := f.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "ops", Password: "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "ops", Password: "letmein"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	w, resp := f.do(t, http.MethodGet, "/api/agents", nil, login.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestSpawnDamageAndDispose(t *testing.T) {
	f := newFixture(t, true)

	w, resp := f.do(t, http.MethodPost, "/api/agents", SpawnRequest{X: 1, Z: 2}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := uint64(resp.Data.(map[string]interface{})["id"].(float64))
	assert.Equal(t, uint64(1), id)

	w, resp = f.do(t, http.MethodPost, "/api/agents/1/damage", DamageRequest{Amount: 30, DirX: 1}, "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(70), snap["health"])
	assert.Equal(t, "hit_react", snap["state"])
	assert.Equal(t, true, snap["aggro_active"])

	w, resp = f.do(t, http.MethodGet, "/api/agents/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, resp.Data.(map[string]interface{})["aggro_remaining"].(float64), 0.0)

	popups := f.bridge.Popups()
	require.Len(t, popups, 1)
	assert.Equal(t, 30, popups[0].Amount)

	w, _ = f.do(t, http.MethodDelete, "/api/agents/1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.manager.Len())

	w, _ = f.do(t, http.MethodDelete, "/api/agents/1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPositionAndRotation(t *testing.T) {
	f := newFixture(t, true)
	id := f.manager.Spawn(vec.Vec3Float{})

	w, resp := f.do(t, http.MethodPut, "/api/agents/1/position", PositionRequest{X: 5, Y: 9, Z: -3}, "")
	require.Equal(t, http.StatusOK, w.Code)
	pos := resp.Data.(map[string]interface{})
	assert.Equal(t, 5.0, pos["x"])
	assert.Equal(t, 0.0, pos["y"], "высота не хранится")
	assert.Equal(t, -3.0, pos["z"])

	w, _ = f.do(t, http.MethodPut, "/api/agents/1/rotation", RotationRequest{Angle: 1.25}, "")
	require.Equal(t, http.StatusOK, w.Code)
	snap, _ := f.manager.Snapshot(id)
	assert.InDelta(t, 1.25, snap.Heading, 1e-9)

	w, _ = f.do(t, http.MethodPut, "/api/agents/abc/rotation", RotationRequest{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodPut, "/api/agents/77/rotation", RotationRequest{}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebugPaths(t *testing.T) {
	f := newFixture(t, true)
	f.manager.Spawn(vec.Vec3Float{})
	f.manager.Spawn(vec.Vec3Float{X: 10})

	_, resp := f.do(t, http.MethodGet, "/api/debug/paths", nil, "")
	assert.Empty(t, resp.Data)

	w, _ := f.do(t, http.MethodPut, "/api/debug", DebugRequest{Enabled: true}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.manager.DebugVisualization())

	_, resp = f.do(t, http.MethodGet, "/api/debug/paths", nil, "")
	paths := resp.Data.([]interface{})
	require.Len(t, paths, 2)
	assert.Equal(t, float64(1), paths[0].(map[string]interface{})["agent_id"])
	assert.Len(t, f.bridge.Paths(), 2)
}

func TestPosesAfterFlush(t *testing.T) {
	f := newFixture(t, true)
	f.manager.Spawn(vec.Vec3Float{X: 2})
	require.NoError(t, f.bridge.Flush(context.Background()))

	_, resp := f.do(t, http.MethodGet, "/api/poses", nil, "")
	poses := resp.Data.([]interface{})
	require.Len(t, poses, 1)
	assert.Equal(t, "idle", poses[0].(map[string]interface{})["state"])
}

func TestTargetPinAndRelease(t *testing.T) {
	f := newFixture(t, true)

	w, _ := f.do(t, http.MethodPut, "/api/target", PositionRequest{X: 3, Z: 4}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, vec.Vec2Float{X: 3, Z: 4}, f.target.Position())

	w, _ = f.do(t, http.MethodDelete, "/api/target", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.target.Pinned())
}

func TestHistoryAndStats(t *testing.T) {
	f := newFixture(t, true)
	f.history.events = []storage.ArchivedEvent{{ID: "e1", EventType: "npc.died", AgentID: "4"}}

	w, resp := f.do(t, http.MethodGet, "/api/agents/4/history?limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", f.history.asked)
	assert.Len(t, resp.Data.([]interface{}), 1)

	f.manager.Spawn(vec.Vec3Float{})
	w, resp = f.do(t, http.MethodGet, "/api/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	agents := resp.Data.(map[string]interface{})["agents"].(map[string]interface{})
	assert.Equal(t, float64(1), agents["total"])
}

func TestResponsesAreGzippedOnRequest(t *testing.T) {
	f := newFixture(t, true)
	for i := 0; i < 12; i++ {
		f.manager.Spawn(vec.Vec3Float{X: float64(i)})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var resp GenericResponse
	require.NoError(t, json.NewDecoder(gz).Decode(&resp))
	assert.Len(t, resp.Data, 12)
}
