package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// seedGathering creates a gathering via the API and joins extra users.
func seedGathering(t *testing.T, r *gin.Engine, creator string, members ...string) string {
	t.Helper()
	w := perform(r, http.MethodPost, "/gatherings", creator, createBody(time.Now().Add(2*time.Hour)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d (%s)", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	for _, m := range members {
		if w := perform(r, http.MethodPost, "/gatherings/"+created.ID+"/join", m, nil); w.Code != http.StatusOK {
			t.Fatalf("join %s = %d", m, w.Code)
		}
	}
	return created.ID
}

// ---------- SubmitRatings ----------

func TestSubmitRatings_OKAndSkips(t *testing.T) {
	h, _ := newHandlers(t)
	r := newEngine(h)
	id := seedGathering(t, r, "alice", "bob")

	w := perform(r, http.MethodPost, "/gatherings/"+id+"/ratings", "bob", map[string]any{
		"ratings": map[string]int{"alice": 5, "bob": 4, "nobody": 3},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}

	var resp SubmitRatingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Outcomes) != 3 {
		t.Fatalf("outcomes = %+v", resp.Outcomes)
	}
	applied := 0
	for _, out := range resp.Outcomes {
		if out.Applied {
			applied++
			if out.RateeID != "alice" || out.Credit != 100 {
				t.Fatalf("applied outcome = %+v", out)
			}
		}
	}
	if applied != 1 {
		t.Fatalf("applied = %d; want 1 (self and stranger skipped)", applied)
	}
}

func TestSubmitRatings_Errors(t *testing.T) {
	h, _ := newHandlers(t)
	r := newEngine(h)
	id := seedGathering(t, r, "alice", "bob")

	// Empty or missing ratings map.
	if w := perform(r, http.MethodPost, "/gatherings/"+id+"/ratings", "bob", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty map = %d", w.Code)
	}

	// Malformed and unknown gathering ids.
	if w := perform(r, http.MethodPost, "/gatherings/zzz/ratings", "bob", map[string]any{
		"ratings": map[string]int{"alice": 5},
	}); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed id = %d", w.Code)
	}
	w := perform(r, http.MethodPost, "/gatherings/"+uuid.NewString()+"/ratings", "bob", map[string]any{
		"ratings": map[string]int{"alice": 5},
	})
	if w.Code != http.StatusNotFound || decodeErr(t, w).Code != ErrCodeNotFound {
		t.Fatalf("unknown id = %d (%s)", w.Code, w.Body.String())
	}
}

// ---------- GetCredit ----------

func TestGetCredit_DefaultAndRated(t *testing.T) {
	h, _ := newHandlers(t)
	r := newEngine(h)

	// Unknown user gets the default score.
	w := perform(r, http.MethodGet, "/credit/stranger", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var credit CreditResponse
	_ = json.Unmarshal(w.Body.Bytes(), &credit)
	if credit.Score != 80 || credit.RatingCount != 0 || credit.LastRatedAt != "" {
		t.Fatalf("default credit = %+v", credit)
	}

	// After a rating the score and last_rated_at move.
	id := seedGathering(t, r, "alice", "bob")
	if w := perform(r, http.MethodPost, "/gatherings/"+id+"/ratings", "bob", map[string]any{
		"ratings": map[string]int{"alice": 5},
	}); w.Code != http.StatusOK {
		t.Fatalf("rate = %d", w.Code)
	}

	w = perform(r, http.MethodGet, "/credit/alice", "", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &credit)
	if w.Code != http.StatusOK || credit.Score != 100 || credit.RatingCount != 1 {
		t.Fatalf("rated credit = %+v", credit)
	}
	if credit.LastRatedAt == "" {
		t.Fatalf("last_rated_at missing")
	}
	if _, err := time.Parse(time.RFC3339, credit.LastRatedAt); err != nil {
		t.Fatalf("last_rated_at not RFC 3339: %q", credit.LastRatedAt)
	}
}

// ---------- ListRatings ----------

func TestListRatings_PaginationEnvelope(t *testing.T) {
	h, _ := newHandlers(t)
	r := newEngine(h)
	id := seedGathering(t, r, "alice", "bob", "carol")

	if w := perform(r, http.MethodPost, "/gatherings/"+id+"/ratings", "bob", map[string]any{
		"ratings": map[string]int{"alice": 5, "carol": 3},
	}); w.Code != http.StatusOK {
		t.Fatalf("rate = %d", w.Code)
	}

	w := perform(r, http.MethodGet, "/ratings?page=1&page_size=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ListRatingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Ratings) != 1 || resp.Pagination.Total != 2 || !resp.Pagination.HasNext || resp.Pagination.TotalPages != 2 {
		t.Fatalf("envelope = %+v", resp.Pagination)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag header")
	}
}

func Test_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mk := func(q string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+q, nil)
		return c
	}

	if p, ps := clampPagination(mk("")); p != 1 || ps != 20 {
		t.Fatalf("defaults: %d %d", p, ps)
	}
	if p, ps := clampPagination(mk("page=0&page_size=0")); p != 1 || ps != 1 {
		t.Fatalf("floors: %d %d", p, ps)
	}
	if p, ps := clampPagination(mk("page=3&page_size=500")); p != 3 || ps != 100 {
		t.Fatalf("caps: %d %d", p, ps)
	}
}

// ---------- Profile ----------

func TestProfileEndpoints(t *testing.T) {
	h, _ := newHandlers(t)
	r := newEngine(h)

	w := perform(r, http.MethodGet, "/profile", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET profile = %d", w.Code)
	}

	w = perform(r, http.MethodPut, "/profile", "alice", map[string]any{
		"display_name": "Alice",
		"spice_level":  7, // clamped to 5
		"avoid":        []string{" cilantro "},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT profile = %d (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		DisplayName string `json:"display_name"`
		Taste       struct {
			SpiceLevel int      `json:"spice_level"`
			Avoid      []string `json:"avoid"`
		} `json:"taste"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.DisplayName != "Alice" || resp.Taste.SpiceLevel != 5 || len(resp.Taste.Avoid) != 1 || resp.Taste.Avoid[0] != "cilantro" {
		t.Fatalf("profile = %+v", resp)
	}
}
