package httpapi_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/routine-quest/internal/auth"
	"github.com/HendryAvila/routine-quest/internal/httpapi"
	"github.com/HendryAvila/routine-quest/internal/routine"
	"github.com/HendryAvila/routine-quest/internal/store"
)

const testSecret = "test-secret"

type fixture struct {
	t       *testing.T
	store   *store.Store
	handler http.Handler
	token   string
	user    *routine.User
}

func newFixture(t *testing.T, tier routine.Tier) *fixture {
	t.Helper()
	st, err := store.New(store.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	u, err := st.CreateUser(context.Background(), routine.NewUserParams{Email: "user@example.com", Tier: tier})
	require.NoError(t, err)
	token, err := auth.NewIssuer(testSecret).Issue(u.ID, time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := httpapi.New(st, auth.NewVerifier(testSecret), logger, httpapi.Options{
		CORSOrigins: []string{"http://localhost:3000"},
		Version:     "test",
	})
	return &fixture{t: t, store: st, handler: srv.Handler(), token: token, user: u}
}

func (f *fixture) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (f *fixture) createRoutine(titles ...string) routine.Routine {
	f.t.Helper()
	steps := make([]map[string]any, len(titles))
	for i, title := range titles {
		steps[i] = map[string]any{"title": title}
	}
	rec := f.do(http.MethodPost, "/api/v1/routines", map[string]any{"title": "Morning", "steps": steps})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[routine.Routine](f.t, rec)
}

func titles(r routine.Routine) []string {
	out := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Title
	}
	return out
}

// ─── Health & auth ──────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	f := newFixture(t, routine.TierPro)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"test"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth_Rejected(t *testing.T) {
	f := newFixture(t, routine.TierPro)

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer nope",
		"scheme":  "Basic " + f.token,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/routines", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture(t, routine.TierPro)
	id := "0b7c8a1e-5d1f-4c55-9a51-7b3c4c3f5e10"

	rec := f.do(http.MethodGet, "/api/v1/routines", nil, "X-Request-ID", id)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t, routine.TierPro)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/routines", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

// ─── Routines ───────────────────────────────────────────────────────────────

func TestRoutineLifecycle(t *testing.T) {
	f := newFixture(t, routine.TierPro)
	created := f.createRoutine("Water", "Stretch")

	assert.Equal(t, 1, created.Version)
	assert.Equal(t, routine.DefaultColor, created.Color)
	assert.Equal(t, []string{"Water", "Stretch"}, titles(created))

	path := "/api/v1/routines/" + itoa(created.ID)

	rec := f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))

	rec = f.do(http.MethodPut, path, map[string]any{"title": "Evening"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[routine.Routine](t, rec)
	assert.Equal(t, "Evening", updated.Title)
	assert.Equal(t, 2, updated.Version)

	rec = f.do(http.MethodPatch, path+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]any](t, rec)["is_active"].(bool))

	rec = f.do(http.MethodPatch, path+"/today-display", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]any](t, rec)["today_display"].(bool))

	rec = f.do(http.MethodGet, path+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, stats["total_steps"])
	assert.Nil(t, stats["last_completed"])

	rec = f.do(http.MethodGet, "/api/v1/routines?is_active=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]routine.Routine](t, rec), 1)

	rec = f.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRoutines_EmptyIsArray(t *testing.T) {
	f := newFixture(t, routine.TierPro)

	rec := f.do(http.MethodGet, "/api/v1/routines", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

// ─── Status mapping ─────────────────────────────────────────────────────────

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, routine.TierFree)
	r := f.createRoutine("Water")
	path := "/api/v1/routines/" + itoa(r.ID)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown routine", http.MethodGet, "/api/v1/routines/9999", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/routines/abc", nil, http.StatusBadRequest},
		{"invalid color", http.MethodPut, path, map[string]any{"color": "blue"}, http.StatusBadRequest},
		{"unknown field", http.MethodPut, path, map[string]any{"colour": "#000000"}, http.StatusBadRequest},
		{"invalid step type", http.MethodPost, path + "/steps", map[string]any{"title": "x", "type": "dance"}, http.StatusBadRequest},
		{"tier routine limit", http.MethodPost, "/api/v1/routines", map[string]any{"title": "Second"}, http.StatusForbidden},
		{"bad skip", http.MethodGet, "/api/v1/routines?skip=-1", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, decode[map[string]any](t, rec)["detail"])
		})
	}
}

type failingStore struct {
	httpapi.Store
}

func (failingStore) GetRoutine(context.Context, int64, int64) (*routine.Routine, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) DeleteRoutine(context.Context, int64, int64) error {
	panic("boom")
}

func TestInternalErrors_AreGeneric(t *testing.T) {
	token, err := auth.NewIssuer(testSecret).Issue(1, time.Hour)
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := httpapi.New(failingStore{}, auth.NewVerifier(testSecret), logger, httpapi.Options{}).Handler()

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/api/v1/routines/1", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"detail":"Internal server error","path":"/api/v1/routines/1"}`, rec.Body.String())
		})
	}
}

// ─── Steps ──────────────────────────────────────────────────────────────────

func TestSteps_AddUpdateDelete(t *testing.T) {
	f := newFixture(t, routine.TierPro)
	r := f.createRoutine("A", "B")
	base := "/api/v1/routines/" + itoa(r.ID) + "/steps"

	rec := f.do(http.MethodPost, base, map[string]any{"title": "Front", "order": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	front := decode[routine.Step](t, rec)
	assert.Equal(t, 1, front.Position)

	rec = f.do(http.MethodPut, base+"/"+itoa(front.ID), map[string]any{"title": "Front!", "difficulty": "hard"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, routine.DifficultyHard, decode[routine.Step](t, rec).Difficulty)

	rec = f.do(http.MethodDelete, base+"/"+itoa(r.Steps[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.GetRoutine(context.Background(), f.user.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Front!", "B"}, titles(*got))
	assert.Equal(t, 2, got.Steps[1].Position)
}

func TestUpdateStep_OrderFieldIgnored(t *testing.T) {
	f := newFixture(t, routine.TierPro)
	r := f.createRoutine("A", "B", "C")
	path := "/api/v1/routines/" + itoa(r.ID) + "/steps/" + itoa(r.Steps[1].ID)

	rec := f.do(http.MethodPut, path, map[string]any{"title": "B2", "order": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[routine.Step](t, rec)
	assert.Equal(t, "B2", updated.Title)
	assert.Equal(t, 2, updated.Position)

	got, err := f.store.GetRoutine(context.Background(), f.user.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B2", "C"}, titles(*got))
}

func TestReorder(t *testing.T) {
	f := newFixture(t, routine.TierPro)
	r := f.createRoutine("A", "B", "C", "D", "E")
	path := "/api/v1/routines/" + itoa(r.ID) + "/steps/" + itoa(r.Steps[1].ID) + "/reorder"

	rec := f.do(http.MethodPatch, path+"?new_order=4", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, body["old_order"])
	assert.EqualValues(t, 4, body["new_order"])
	assert.EqualValues(t, 2, body["shifted"])
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))

	got, err := f.store.GetRoutine(context.Background(), f.user.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D", "B", "E"}, titles(*got))
}

func TestReorder_Errors(t *testing.T) {
	f := newFixture(t, routine.TierPro)
	r := f.createRoutine("A", "B", "C")
	path := "/api/v1/routines/" + itoa(r.ID) + "/steps/" + itoa(r.Steps[0].ID) + "/reorder"

	tests := []struct {
		name    string
		path    string
		headers []string
		want    int
	}{
		{"missing new_order", path, nil, http.StatusBadRequest},
		{"non-integer new_order", path + "?new_order=two", nil, http.StatusBadRequest},
		{"unknown step", "/api/v1/routines/" + itoa(r.ID) + "/steps/9999/reorder?new_order=1", nil, http.StatusNotFound},
		{"stale version", path + "?new_order=2", []string{"If-Match", `"7"`}, http.StatusConflict},
		{"bad If-Match", path + "?new_order=2", []string{"If-Match", "abc"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPatch, tt.path, nil, tt.headers...)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := f.do(http.MethodPatch, path+"?new_order=2", nil, "If-Match", `W/"1"`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
