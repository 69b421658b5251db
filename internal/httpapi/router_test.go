package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/dates"
	"github.com/spigell/internship-recommender/internal/mapping"
	"github.com/spigell/internship-recommender/internal/metrics"
	"github.com/spigell/internship-recommender/internal/recommend"
	"github.com/spigell/internship-recommender/internal/store"
)

var now = time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC)

type stubLoader struct {
	err error
}

func (l stubLoader) Load(context.Context) (*catalog.Records, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &catalog.Records{Items: []*catalog.Record{
		{Title: "Data Intern", Type: "Technology", Cities: "Bangalore", Company: "Acme", Stipend: "10000"},
		{Title: "Python Developer Intern", Type: "Technology", Cities: "Pune", Company: "Beta", Stipend: "20000"},
	}}, nil
}

// recordingRecommender captures the parsed request.
type recordingRecommender struct {
	got recommend.Request
}

func (r *recordingRecommender) Recommend(_ context.Context, req recommend.Request) (*recommend.Response, error) {
	r.got = req
	return &recommend.Response{Message: recommend.ResponseMessage, Recommendations: []mapping.Recommendation{}}, nil
}

func (r *recordingRecommender) Discover(context.Context) ([]mapping.Recommendation, error) {
	return nil, errors.New("not used")
}

func (r *recordingRecommender) Listing(context.Context, int) (*mapping.Recommendation, error) {
	return nil, errors.New("not used")
}

type testServer struct {
	handler http.Handler
	db      *store.DB
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
}

func newTestServer(t *testing.T, loader catalog.Loader) *testServer {
	t.Helper()

	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	m := metrics.New()

	svc := recommend.NewService(loader,
		recommend.WithProfiles(db),
		recommend.WithClock(dates.Fixed(now)),
		recommend.WithLogger(logger),
	)

	return &testServer{
		handler: NewHandler(Deps{
			Recommender: svc,
			Store:       db,
			Metrics:     m,
			Logger:      logger,
			Clock:       dates.Fixed(now),
		}),
		db:      db,
		metrics: m,
		logs:    logs,
	}
}

func (s *testServer) do(t *testing.T, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	rec := srv.do(t, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "OK", body["status"])

	entries := srv.logs.FilterMessage("http").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/health", entries[0].ContextMap()["path"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), entries[0].ContextMap()["request_id"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	rec := srv.do(t, http.MethodDelete, "/api/health", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body APIError
	decode(t, rec, &body)
	assert.Equal(t, "method_not_allowed", body.Error.Code)
}

func TestRecommendationsBodyShapes(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		want   recommend.Request
	}{
		{
			name:   "scalars",
			target: "/api/recommendations",
			body:   `{"sector":"Technology","location":"Pune","tech":"python, sql"}`,
			want:   recommend.Request{UserID: "u1"},
		},
		{
			name:   "lists",
			target: "/api/recommendations",
			body:   `{"sectors":["Technology","Sales"],"locations":["Pune"],"skills":["python","",null,"sql"]}`,
			want:   recommend.Request{UserID: "u1"},
		},
		{
			name:   "query string fallback",
			target: "/api/recommendations?sector=Technology&location=Pune&tech=python,sql",
			want:   recommend.Request{UserID: "u1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := &recordingRecommender{}
			handler := NewHandler(Deps{Recommender: rr})

			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			req.Header.Set(UserHeader, "u1")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want.UserID, rr.got.UserID)
			assert.Equal(t, "Technology", rr.got.Overrides.Sector)
			assert.Equal(t, "Pune", rr.got.Overrides.Location)
			assert.Equal(t, []string{"python", "sql"}, rr.got.Overrides.Skills)
		})
	}
}

func TestRecommendationsInvalidJSON(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	rec := srv.do(t, http.MethodPost, "/api/recommendations", "u1", `{"sector":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendationsHydrateFromStoredProfile(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	rec := srv.do(t, http.MethodPost, "/api/profile", "u1", `{"sector":"Technology","location":"Pune","skills":["python"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/recommendations", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp recommend.Response
	decode(t, rec, &resp)
	assert.Equal(t, recommend.ResponseMessage, resp.Message)
	assert.Equal(t, metrics.SourceLocal, resp.Source)
	assert.Equal(t, "Pune", resp.Query.Location)
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, "Python Developer Intern", resp.Recommendations[0].Title)
	assert.Equal(t, 1, resp.Recommendations[0].ID)
}

func TestRecommendationsCatalogFailure(t *testing.T) {
	srv := newTestServer(t, stubLoader{err: errors.New("no such file")})

	rec := srv.do(t, http.MethodPost, "/api/recommendations", "", `{"sector":"Technology"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body APIError
	decode(t, rec, &body)
	assert.Equal(t, "internal_error", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.Equal(t, 1, srv.logs.FilterMessage("recommend failed").Len())
}

func TestDiscoverAndListing(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	rec := srv.do(t, http.MethodGet, "/api/internships/discover", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var feed struct {
		Internships []mapping.Recommendation `json:"internships"`
		Count       int                      `json:"count"`
	}
	decode(t, rec, &feed)
	assert.Equal(t, 2, feed.Count)
	assert.Equal(t, "Beta", feed.Internships[1].Company)

	rec = srv.do(t, http.MethodGet, "/api/internships/2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		Internship mapping.Recommendation `json:"internship"`
	}
	decode(t, rec, &one)
	assert.Equal(t, 2, one.Internship.ID)
	assert.Equal(t, "pune", one.Internship.Location)

	for _, target := range []string{"/api/internships/3", "/api/internships/abc", "/api/internships/0"} {
		rec = srv.do(t, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestProfileAndSkills(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	rec := srv.do(t, http.MethodGet, "/api/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/profile", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"id":"u1","profile":{"education":"","skills":[],"sector":"","location":""}}}`, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/profile", "u1", `{"education":"B.Tech","sector":"Technology","skills":["go"," "]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/profile", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"id":"u1","profile":{"education":"B.Tech","skills":["go"],"sector":"Technology","location":""}}}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/api/skills", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"skills":{"techSkills":[],"softSkills":[]}}`, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/skills", "u1", `{"techSkills":["python"],"softSkills":["teamwork"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Skills saved","skills":{"techSkills":["python"],"softSkills":["teamwork"]}}`, rec.Body.String())
}

func TestApplicationsLifecycle(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	rec := srv.do(t, http.MethodPost, "/api/applications/upsert", "u1", `{"title":"Data Intern","company":"Acme"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Application store.Application `json:"application"`
	}
	decode(t, rec, &created)
	assert.Equal(t, store.StatusApplied, created.Application.Status)
	assert.Equal(t, store.SourceManual, created.Application.SourceType)

	// same listing again refreshes the existing row
	rec = srv.do(t, http.MethodPost, "/api/applications/upsert", "u1",
		`{"title":"Data Intern","company":"Acme","stipend":12000,"applicationDeadline":"2025-07-10T00:00:00.000Z","sourceType":"recommendation","sourceId":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed struct {
		Application store.Application `json:"application"`
	}
	decode(t, rec, &refreshed)
	assert.Equal(t, created.Application.ID, refreshed.Application.ID)
	assert.Equal(t, 12000, refreshed.Application.Stipend)
	assert.Equal(t, "3", refreshed.Application.SourceID)

	rec = srv.do(t, http.MethodPatch, "/api/applications/"+created.Application.ID, "u1",
		`{"status":"interview_scheduled","interviewDate":"2025-07-05","notes":[{"content":"call went well"}],"title":"ignored"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched struct {
		Application store.Application `json:"application"`
	}
	decode(t, rec, &patched)
	assert.Equal(t, store.StatusInterviewScheduled, patched.Application.Status)
	assert.Equal(t, "Data Intern", patched.Application.Title)
	require.Len(t, patched.Application.Notes, 1)
	assert.Equal(t, "You", patched.Application.Notes[0].Author)

	rec = srv.do(t, http.MethodGet, "/api/applications", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Applications []store.Application `json:"applications"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Applications, 1)

	rec = srv.do(t, http.MethodGet, "/api/applications/upcoming-deadlines", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var upcoming struct {
		Deadlines []store.Deadline `json:"deadlines"`
	}
	decode(t, rec, &upcoming)
	require.Len(t, upcoming.Deadlines, 2)
	assert.Equal(t, "interview", upcoming.Deadlines[0].Type)
	assert.Equal(t, created.Application.ID+"-interview", upcoming.Deadlines[0].ID)

	rec = srv.do(t, http.MethodGet, "/api/applications/recent-activity", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var activity struct {
		Activities []store.Activity `json:"activities"`
	}
	decode(t, rec, &activity)
	assert.NotEmpty(t, activity.Activities)

	// other users cannot see or change it
	rec = srv.do(t, http.MethodGet, "/api/applications", "u2", "")
	assert.JSONEq(t, `{"applications":[]}`, rec.Body.String())
	rec = srv.do(t, http.MethodPatch, "/api/applications/"+created.Application.ID, "u2", `{"status":"rejected"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplicationsValidation(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"missing company", http.MethodPost, "/api/applications/upsert", `{"title":"Data Intern"}`, http.StatusBadRequest},
		{"bad deadline", http.MethodPost, "/api/applications/upsert", `{"title":"A","company":"B","applicationDeadline":"tomorrow"}`, http.StatusBadRequest},
		{"bad status", http.MethodPost, "/api/applications/upsert", `{"title":"A","company":"B","status":"hired"}`, http.StatusBadRequest},
		{"unknown id", http.MethodPatch, "/api/applications/missing", `{"status":"rejected"}`, http.StatusNotFound},
		{"bad priority", http.MethodPatch, "/api/applications/missing", `{"priority":"urgent"}`, http.StatusBadRequest},
		{"no id", http.MethodPatch, "/api/applications/", `{}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.target, "u1", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, stubLoader{})

	srv.do(t, http.MethodGet, "/api/health", "", "")
	rec := srv.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `internship_recommender_http_requests_total{code="200",route="/api/health"} 1`)
}

func TestRecoverFromPanic(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID, Recover(zap.New(core)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic").Len())
}
