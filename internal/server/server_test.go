package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiobuddy/backend/internal/aiassist"
	"radiobuddy/backend/internal/db"
	"radiobuddy/backend/internal/exposureprotocols"
	"radiobuddy/backend/internal/sitepresets"
	presetdomain "radiobuddy/backend/internal/sitepresets/domain"
	presetrepo "radiobuddy/backend/internal/sitepresets/repository"
	teldomain "radiobuddy/backend/internal/telemetry/domain"
	telrepo "radiobuddy/backend/internal/telemetry/repository"
)

const testAdminKey = "test-admin-key"

// memPresetRepo is an in-memory presetrepo.Repository.
type memPresetRepo struct {
	mu        sync.Mutex
	sites     map[string]*presetdomain.Site
	rooms     map[string]*presetdomain.Room
	protocols map[string]*presetdomain.RoomExposureProtocol
}

func newMemPresetRepo() *memPresetRepo {
	return &memPresetRepo{
		sites:     map[string]*presetdomain.Site{},
		rooms:     map[string]*presetdomain.Room{},
		protocols: map[string]*presetdomain.RoomExposureProtocol{},
	}
}

func roomKey(siteID, roomID string) string { return siteID + "/" + roomID }

func protocolKey(siteID, roomID, procedureID string) string {
	return siteID + "/" + roomID + "/" + procedureID
}

func (m *memPresetRepo) CreateSite(_ context.Context, s *presetdomain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[s.SiteID]; ok {
		return presetrepo.ErrSiteExists
	}
	m.sites[s.SiteID] = s
	return nil
}

func (m *memPresetRepo) ListSites(context.Context) ([]*presetdomain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*presetdomain.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}

func (m *memPresetRepo) DeleteSite(_ context.Context, siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sites, siteID)
	for k, room := range m.rooms {
		if room.SiteID == siteID {
			delete(m.rooms, k)
		}
	}
	for k, p := range m.protocols {
		if p.SiteID == siteID {
			delete(m.protocols, k)
		}
	}
	return nil
}

func (m *memPresetRepo) CreateRoom(_ context.Context, r *presetdomain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[r.SiteID]; !ok {
		return presetrepo.ErrSiteNotFound
	}
	if _, ok := m.rooms[roomKey(r.SiteID, r.RoomID)]; ok {
		return presetrepo.ErrRoomExists
	}
	m.rooms[roomKey(r.SiteID, r.RoomID)] = r
	return nil
}

func (m *memPresetRepo) ListRooms(_ context.Context, siteID string) ([]*presetdomain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*presetdomain.Room
	for _, r := range m.rooms {
		if r.SiteID == siteID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

func (m *memPresetRepo) DeleteRoom(_ context.Context, siteID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomKey(siteID, roomID))
	for k, p := range m.protocols {
		if p.SiteID == siteID && p.RoomID == roomID {
			delete(m.protocols, k)
		}
	}
	return nil
}

func (m *memPresetRepo) UpsertProtocol(_ context.Context, p *presetdomain.RoomExposureProtocol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomKey(p.SiteID, p.RoomID)]; !ok {
		return presetrepo.ErrRoomNotFound
	}
	m.protocols[protocolKey(p.SiteID, p.RoomID, p.ProcedureID)] = p
	return nil
}

func (m *memPresetRepo) GetProtocol(_ context.Context, siteID, roomID, procedureID string) (*presetdomain.RoomExposureProtocol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.protocols[protocolKey(siteID, roomID, procedureID)], nil
}

// memTelemetryRepo is an in-memory telrepo.Repository.
type memTelemetryRepo struct {
	mu     sync.Mutex
	events []*teldomain.Event
}

func (m *memTelemetryRepo) Save(_ context.Context, e *teldomain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.events {
		if existing.EventID == e.EventID {
			return telrepo.ErrDuplicateEvent
		}
	}
	e.CreatedAt = time.Now().UTC()
	m.events = append(m.events, e)
	return nil
}

func (m *memTelemetryRepo) List(_ context.Context, sessionID string, limit int) ([]*teldomain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	var out []*teldomain.Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if sessionID != "" && m.events[i].SessionID != sessionID {
			continue
		}
		out = append(out, m.events[i])
	}
	return out, nil
}

type testEnv struct {
	server  *httptest.Server
	presets *memPresetRepo
	events  *memTelemetryRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	presetStore := newMemPresetRepo()
	telemetryStore := &memTelemetryRepo{}
	presets := sitepresets.NewService(presetStore)

	srv := New(Options{
		AdminAPIKey:   testAdminKey,
		DB:            db.NewHandle(""),
		Presets:       presets,
		Resolver:      exposureprotocols.NewResolver(presets),
		TelemetryRepo: telemetryStore,
		Assist:        aiassist.NewService(nil, false, nil),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, presets: presetStore, events: telemetryStore}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, admin bool) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-API-Key", testAdminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func validProtocolPayload() map[string]any {
	return map[string]any{
		"schema_version":   "v1",
		"protocol_id":      "room_chest_pa",
		"protocol_name":    "Room Chest PA",
		"protocol_version": "2026.01",
		"recommendations": []map[string]any{
			{"inputs": map[string]any{"size_class": "M"}, "output": map[string]any{"kvp": 117}},
		},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	// DB handle is unconfigured, so no db field is reported.
	_, hasDB := body["db"]
	assert.False(t, hasDB)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/health", nil, false)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "req-42", resp2.Header.Get("X-Request-ID"))
}

func TestErrorEnvelope_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "http_error", body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestProcedureRules(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/procedure-rules/chest_pa_erect", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chest_pa_erect", body["procedure_id"])
	assert.NotEmpty(t, body["stages"])

	// Legacy spelling normalizes to the same document.
	resp, body = env.do(t, http.MethodGet, "/procedure-rules/chest-pa", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chest_pa_erect", body["procedure_id"])

	resp, body = env.do(t, http.MethodGet, "/procedure-rules/abdomen_ap", nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "http_error", body["error"])
}

func TestExposureProtocol_StaticDefault(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/exposure-protocols/chest_pa_erect", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "default_chest_pa_erect", body["protocol_id"])

	resp, _ = env.do(t, http.MethodGet, "/exposure-protocols/abdomen_ap", nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminKey(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/sites", map[string]any{"site_id": "s1"}, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "http_error", body["error"])

	// Reads stay open.
	resp, _ = env.do(t, http.MethodGet, "/sites", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminKey_NotConfigured(t *testing.T) {
	presets := sitepresets.NewService(newMemPresetRepo())
	srv := New(Options{
		AdminAPIKey:   "",
		DB:            db.NewHandle(""),
		Presets:       presets,
		Resolver:      exposureprotocols.NewResolver(presets),
		TelemetryRepo: &memTelemetryRepo{},
		Assist:        aiassist.NewService(nil, false, nil),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/sites", "application/json", bytes.NewReader([]byte(`{"site_id":"s1"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "service_unavailable", body["error"])
}

func TestSiteLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/sites", map[string]any{"site_id": "clinic-a", "name": "Clinic A"}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "clinic-a", body["site_id"])

	resp, _ = env.do(t, http.MethodPost, "/sites", map[string]any{"site_id": "clinic-a"}, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/sites", map[string]any{"site_id": "Bad ID"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])

	resp, _ = env.do(t, http.MethodDelete, "/sites/clinic-a", nil, true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	listResp, err := http.Get(env.server.URL + "/sites")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var sites []map[string]any
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&sites))
	assert.Empty(t, sites)
}

func TestRoomRequiresSite(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/sites/ghost/rooms", map[string]any{"room_id": "room_1"}, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "http_error", body["error"])
}

func TestProtocolUpsert_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/sites", map[string]any{"site_id": "clinic-a"}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/sites/clinic-a/rooms", map[string]any{"room_id": "room_1"}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodPut,
		"/sites/clinic-a/rooms/room_1/exposure-protocols/chest_pa_erect",
		validProtocolPayload(), true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload, ok := body["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "clinic-a", payload["site_id"])
	assert.Equal(t, "room_1", payload["room_id"])
	assert.Equal(t, "chest_pa_erect", payload["procedure_id"])

	// The resolver now prefers the override over the bundled default.
	resp, body = env.do(t, http.MethodGet,
		"/exposure-protocols/chest_pa_erect?site_id=clinic-a&room_id=room_1", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "room_chest_pa", body["protocol_id"])

	// Legacy spelling reaches the same override.
	resp, body = env.do(t, http.MethodGet,
		"/exposure-protocols/chest-pa?site_id=clinic-a&room_id=room_1", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "room_chest_pa", body["protocol_id"])

	// Without room context the default still answers.
	resp, body = env.do(t, http.MethodGet, "/exposure-protocols/chest_pa_erect", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "default_chest_pa_erect", body["protocol_id"])
}

func TestProtocolUpsert_SchemaFailureNotPersisted(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/sites", map[string]any{"site_id": "clinic-a"}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/sites/clinic-a/rooms", map[string]any{"room_id": "room_1"}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	payload := validProtocolPayload()
	delete(payload, "protocol_id")
	resp, body := env.do(t, http.MethodPut,
		"/sites/clinic-a/rooms/room_1/exposure-protocols/chest_pa_erect", payload, true)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "schema_validation_error", body["error"])
	detail, ok := body["detail"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, detail["message"], "protocol_id")

	// Nothing was written.
	resp, _ = env.do(t, http.MethodGet,
		"/sites/clinic-a/rooms/room_1/exposure-protocols/chest_pa_erect", nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProtocolUpsert_MissingRoom(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPut,
		"/sites/ghost/rooms/room_1/exposure-protocols/chest_pa_erect",
		validProtocolPayload(), true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "http_error", body["error"])
}

func telemetryBody(eventID string) map[string]any {
	return map[string]any{
		"event_id":       eventID,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"schema_version": "v1",
		"event_type":     "prompt_emitted",
		"procedure_id":   "chest_pa_erect",
		"session_id":     "11111111-2222-3333-4444-555555555555",
		"metrics":        map[string]any{"rotation_risk": 0.4},
	}
}

func TestTelemetryIngest(t *testing.T) {
	env := newTestEnv(t)
	eventID := uuid.NewString()

	resp, body := env.do(t, http.MethodPost, "/telemetry/events", telemetryBody(eventID), false)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, eventID, body["event_id"])

	resp, body = env.do(t, http.MethodPost, "/telemetry/events", telemetryBody(eventID), false)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_event", body["error"])

	bad := telemetryBody(uuid.NewString())
	bad["event_type"] = "made_up"
	resp, body = env.do(t, http.MethodPost, "/telemetry/events", bad, false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])
}

func TestTelemetryIngest_NonUUIDEventID(t *testing.T) {
	// The store types event_id as UUID; a malformed id must be rejected at
	// the boundary as a validation failure, never reach the insert.
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/telemetry/events", telemetryBody("evt-1"), false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])

	bad := telemetryBody(uuid.NewString())
	bad["session_id"] = "not-a-uuid"
	resp, body = env.do(t, http.MethodPost, "/telemetry/events", bad, false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])
}

func TestTelemetryList(t *testing.T) {
	env := newTestEnv(t)
	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
		resp, _ := env.do(t, http.MethodPost, "/telemetry/events", telemetryBody(ids[i]), false)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	resp, err := http.Get(env.server.URL + "/telemetry/events?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 2)
	// Newest first.
	assert.Equal(t, ids[2], events[0]["event_id"])
	assert.Equal(t, ids[1], events[1]["event_id"])
}

func TestTelemetryList_BadSessionID(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/telemetry/events?session_id=not-a-uuid", nil, false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])
}

func TestAnalyzePositioning(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/ai/positioning/analyze", map[string]any{
		"procedure_id": "chest_pa_erect",
		"stage_id":     "positioning",
		"metrics":      map[string]any{"pose_confidence": 0.9, "framing_score": 0.9, "rotation_risk": 0.9},
	}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "local", body["source"])
	assert.Equal(t, "Reduce patient rotation slightly.", body["instruction"])

	resp, body = env.do(t, http.MethodPost, "/ai/positioning/analyze", map[string]any{
		"procedure_id": "Chest PA",
		"stage_id":     "positioning",
	}, false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])
}

func TestStoreUnavailable(t *testing.T) {
	// A real Postgres repository over an unconfigured handle turns every
	// store route into a 503 until a DSN is provisioned.
	handle := db.NewHandle("")
	presets := sitepresets.NewService(presetrepo.NewPostgresRepository(handle))
	srv := New(Options{
		AdminAPIKey:   testAdminKey,
		DB:            handle,
		Presets:       presets,
		Resolver:      exposureprotocols.NewResolver(presets),
		TelemetryRepo: &memTelemetryRepo{},
		Assist:        aiassist.NewService(nil, false, nil),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sites")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "service_unavailable", body["error"])
}
