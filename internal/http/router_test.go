package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tablemate/go-gather-backend/internal/config"
	"github.com/tablemate/go-gather-backend/internal/domain"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on list endpoints
	if err := db.AutoMigrate(
		&domain.UserProfile{},
		&domain.Gathering{},
		&domain.Participant{},
		&domain.CreditRecord{},
		&domain.RatingRecord{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     1000,
		RateBurst:   200,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Gathering: config.GatheringConfig{
			JoinWindow:         30 * time.Minute,
			RatingLogCap:       200,
			DefaultCreditScore: 80,
			FeedLookahead:      6 * time.Hour,
		},
	}
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	RegisterRoutes(r, NewServices(newTestDB(t), cfg), cfg)
	return r
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t)

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	RegisterRoutes(r, NewServices(newTestDB(t), cfg), cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	RegisterRoutes(r, NewServices(newTestDB(t), cfg), cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// simulate https so HSTS could be eligible if middleware checks scheme
	req.URL.Scheme = "https"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

// doJSON issues a request with an optional JSON body and user header, and
// decodes the JSON response into out when non-nil.
func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil && w.Code < 300 && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w
}

// Full happy path through the mounted API: profile, create, detail, join,
// feed, ratings, credit.
func TestAPI_GatheringLifecycle(t *testing.T) {
	r := newRouter(t)

	// Profile defaults on first fetch.
	var profile domain.UserProfile
	if w := doJSON(t, r, http.MethodGet, "/api/v1/profile", "alice", nil, &profile); w.Code != http.StatusOK {
		t.Fatalf("GET /profile = %d", w.Code)
	}
	if profile.ID != "alice" || profile.DisplayName != "Me" {
		t.Fatalf("default profile = %+v", profile)
	}

	// Edit taste preferences.
	if w := doJSON(t, r, http.MethodPut, "/api/v1/profile", "alice", map[string]any{
		"display_name": "Alice",
		"spice_level":  4,
		"avoid":        []string{"cilantro"},
		"budget_pp":    120,
	}, &profile); w.Code != http.StatusOK {
		t.Fatalf("PUT /profile = %d", w.Code)
	}
	if profile.DisplayName != "Alice" || profile.Taste.SpiceLevel != 4 {
		t.Fatalf("updated profile = %+v", profile)
	}

	// Create a gathering; the snapshot must carry the edited taste.
	var created struct {
		ID            string              `json:"id"`
		Status        string              `json:"status"`
		JoinedCount   int                 `json:"joined_count"`
		SecondsLeft   int64               `json:"seconds_left"`
		TasteSnapshot domain.TasteProfile `json:"creator_taste_snapshot"`
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings", "alice", map[string]any{
		"title":         "Hotpot tonight",
		"cuisine":       "hotpot",
		"start_time":    time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
		"location_name": "Wangjing SOHO",
		"lat":           39.996,
		"lng":           116.48,
		"min_people":    2,
		"max_people":    4,
	}, &created)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /gatherings = %d (%s)", w.Code, w.Body.String())
	}
	if created.Status != "recruiting" || created.JoinedCount != 1 || created.SecondsLeft <= 0 {
		t.Fatalf("created gathering = %+v", created)
	}
	if created.TasteSnapshot.SpiceLevel != 4 {
		t.Fatalf("taste snapshot missing from create response: %+v", created.TasteSnapshot)
	}

	// Bad capacity is a 400 with a stable code.
	w = doJSON(t, r, http.MethodPost, "/api/v1/gatherings", "alice", map[string]any{
		"start_time": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"min_people": 1,
		"max_people": 4,
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad capacity = %d", w.Code)
	}

	// Join as a second user.
	var joined struct {
		JoinedCount int `json:"joined_count"`
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings/"+created.ID+"/join", "bob", nil, &joined); w.Code != http.StatusOK {
		t.Fatalf("POST join = %d (%s)", w.Code, w.Body.String())
	}
	if joined.JoinedCount != 2 {
		t.Fatalf("joined_count = %d; want 2", joined.JoinedCount)
	}

	// Feed sees the gathering with annotations.
	var feedResp struct {
		Count      int `json:"count"`
		Gatherings []struct {
			ID                 string   `json:"id"`
			JoinedCount        int      `json:"joined_count"`
			CreatorCreditScore int      `json:"creator_credit_score"`
			DistanceKm         *float64 `json:"distance_km"`
		} `json:"gatherings"`
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/gatherings?lat=39.99&lng=116.47&cuisine=hotpot", "bob", nil, &feedResp); w.Code != http.StatusOK {
		t.Fatalf("GET feed = %d", w.Code)
	}
	if feedResp.Count != 1 || feedResp.Gatherings[0].ID != created.ID {
		t.Fatalf("feed = %+v", feedResp)
	}
	if feedResp.Gatherings[0].CreatorCreditScore != 80 || feedResp.Gatherings[0].DistanceKm == nil {
		t.Fatalf("feed annotations = %+v", feedResp.Gatherings[0])
	}

	// Bob rates Alice five stars.
	var rated struct {
		Outcomes []struct {
			RateeID string `json:"ratee_id"`
			Applied bool   `json:"applied"`
			Credit  int    `json:"credit"`
		} `json:"outcomes"`
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings/"+created.ID+"/ratings", "bob", map[string]any{
		"ratings": map[string]int{"alice": 5},
	}, &rated); w.Code != http.StatusOK {
		t.Fatalf("POST ratings = %d (%s)", w.Code, w.Body.String())
	}
	if len(rated.Outcomes) != 1 || !rated.Outcomes[0].Applied || rated.Outcomes[0].Credit != 100 {
		t.Fatalf("rating outcomes = %+v", rated.Outcomes)
	}

	// Credit endpoint reflects the rating.
	var credit struct {
		Score       int `json:"score"`
		RatingCount int `json:"rating_count"`
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/credit/alice", "", nil, &credit); w.Code != http.StatusOK {
		t.Fatalf("GET credit = %d", w.Code)
	}
	if credit.Score != 100 || credit.RatingCount != 1 {
		t.Fatalf("credit = %+v", credit)
	}
}

func TestRegisterRoutes_MasksIdentityHeaderInLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog.Logger
	t.Cleanup(func() { zlog.Logger = prev })
	zlog.Logger = zerolog.New(&buf)

	r := newRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-User-ID", "alice-device-7")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}

	logs := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte(`"X-User-Id":"[REDACTED]"`)) {
		t.Fatalf("identity header not masked in access log: %s", logs)
	}
	if bytes.Contains(buf.Bytes(), []byte("alice-device-7")) {
		t.Fatalf("identity header value leaked into access log: %s", logs)
	}
}

func TestAPI_FeedHonorsConfiguredLookahead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.Gathering.FeedLookahead = 10 * time.Minute
	RegisterRoutes(r, NewServices(newTestDB(t), cfg), cfg)

	var created struct {
		ID string `json:"id"`
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings", "alice", map[string]any{
		"start_time": time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
		"min_people": 2,
		"max_people": 4,
	}, &created)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /gatherings = %d", w.Code)
	}

	// Starts in 2 hours; the configured 10-minute horizon must hide it.
	var feedResp struct {
		Count int `json:"count"`
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/gatherings", "bob", nil, &feedResp); w.Code != http.StatusOK {
		t.Fatalf("GET feed = %d", w.Code)
	}
	if feedResp.Count != 0 {
		t.Fatalf("feed count = %d; want 0 under a 10m horizon", feedResp.Count)
	}

	// An explicit per-query window still widens the horizon.
	if w := doJSON(t, r, http.MethodGet, "/api/v1/gatherings?lookahead_minutes=180", "bob", nil, &feedResp); w.Code != http.StatusOK {
		t.Fatalf("GET feed override = %d", w.Code)
	}
	if feedResp.Count != 1 {
		t.Fatalf("feed count = %d; want 1 with lookahead_minutes=180", feedResp.Count)
	}
}

func TestAPI_JoinConflicts(t *testing.T) {
	r := newRouter(t)

	var created struct {
		ID string `json:"id"`
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings", "alice", map[string]any{
		"start_time": time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
		"min_people": 2,
		"max_people": 2,
	}, &created)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /gatherings = %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings/"+created.ID+"/join", "bob", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("join bob = %d", w.Code)
	}

	// Capacity reached: next join is 409 gathering_full.
	w = doJSON(t, r, http.MethodPost, "/api/v1/gatherings/"+created.ID+"/join", "carol", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("join past capacity = %d", w.Code)
	}
	var e struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != "gathering_full" {
		t.Fatalf("error envelope = %s", w.Body.String())
	}

	// Unknown id is 404; malformed id is 400.
	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings/"+uuid.NewString()+"/join", "dan", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("join unknown = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings/not-a-uuid/join", "dan", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("join malformed = %d", w.Code)
	}
}

func TestAPI_RatingsListETag(t *testing.T) {
	r := newRouter(t)

	var created struct {
		ID string `json:"id"`
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings", "alice", map[string]any{
		"start_time": time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339),
		"min_people": 2,
		"max_people": 4,
	}, &created); w.Code != http.StatusCreated {
		t.Fatalf("POST /gatherings = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings/"+created.ID+"/join", "bob", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("join = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/gatherings/"+created.ID+"/ratings", "bob", map[string]any{
		"ratings": map[string]int{"alice": 4},
	}, nil); w.Code != http.StatusOK {
		t.Fatalf("ratings = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/ratings", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /ratings = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag on ratings list")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ratings", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional GET /ratings = %d; want 304", rec.Code)
	}
}
