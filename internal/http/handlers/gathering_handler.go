// Gathering HTTP handlers.
//
// This file exposes REST endpoints for gathering resources:
//   - POST   /gatherings             (create)
//   - GET    /gatherings             (active feed, distance-sorted)
//   - GET    /gatherings/{id}        (detail, status resolved on read)
//   - POST   /gatherings/{id}/join   (join)
//   - POST   /gatherings/{id}/leave  (leave)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. All status decisions live in the
// service layer; the clock enters exactly once per request, here.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/feed"
	"github.com/tablemate/go-gather-backend/internal/geo"
	"github.com/tablemate/go-gather-backend/internal/services"
	"github.com/tablemate/go-gather-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// GatheringService defines gathering lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GatheringService interface {
	// Create opens a new gathering for the creator profile.
	Create(ctx context.Context, creator *domain.UserProfile, in services.CreateGatheringInput, now time.Time) (*domain.Gathering, error)
	// Get returns a gathering with its status resolved as of now.
	Get(ctx context.Context, id string, now time.Time) (*domain.Gathering, error)
}

// MembershipService defines join/leave operations over gatherings.
type MembershipService interface {
	// Join adds userID to a gathering, enforcing deadline and capacity.
	Join(ctx context.Context, userID, gatheringID string, now time.Time) (*domain.Gathering, error)
	// Leave marks userID's membership as left; never joined is a no-op.
	Leave(ctx context.Context, userID, gatheringID string, now time.Time) (*domain.Gathering, error)
}

// FeedService assembles the active-gatherings feed for the discovery view.
type FeedService interface {
	// ListActive returns resolved, filtered, distance-sorted feed entries.
	ListActive(ctx context.Context, now time.Time, f feed.Filters, viewer *geo.Coordinate) ([]feed.Entry, error)
}

// RatingService defines post-gathering peer rating operations.
type RatingService interface {
	// SubmitRatings applies a batch of star ratings from raterID.
	SubmitRatings(ctx context.Context, gatheringID, raterID string, ratings map[string]int, now time.Time) ([]services.RatingOutcome, error)
	// RecentRatings returns a page of the rating audit log, newest first.
	RecentRatings(ctx context.Context, page, pageSize int) ([]domain.RatingRecord, int64, error)
}

// CreditService exposes read access to the credit ledger.
type CreditService interface {
	// Get returns the credit record for userID, defaulted when unrated.
	Get(ctx context.Context, userID string) (*domain.CreditRecord, error)
}

// ProfileService manages the session user's taste profile.
type ProfileService interface {
	// Ensure returns the profile, creating defaults on first use.
	Ensure(ctx context.Context, userID string) (*domain.UserProfile, error)
	// Update persists profile edits.
	Update(ctx context.Context, userID, displayName string, taste domain.TasteProfile) (*domain.UserProfile, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for gatherings, membership, ratings, credit,
// and profiles. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	gatheringSvc GatheringService
	memberSvc    MembershipService
	feedSvc      FeedService
	ratingSvc    RatingService
	creditSvc    CreditService
	profileSvc   ProfileService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(gatheringSvc GatheringService, memberSvc MembershipService, feedSvc FeedService, ratingSvc RatingService, creditSvc CreditService, profileSvc ProfileService) *Handlers {
	return &Handlers{
		gatheringSvc: gatheringSvc,
		memberSvc:    memberSvc,
		feedSvc:      feedSvc,
		ratingSvc:    ratingSvc,
		creditSvc:    creditSvc,
		profileSvc:   profileSvc,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateGatheringRequest is the JSON payload for opening a gathering.
type CreateGatheringRequest struct {
	// Title optionally names the gathering; a default is used when empty.
	Title string `json:"title" example:"Hotpot tonight"`
	// Cuisine tags the gathering for feed filtering; defaults to "other".
	Cuisine string `json:"cuisine" example:"hotpot"`
	// StartTime is when the meal happens (RFC 3339).
	StartTime time.Time `json:"start_time" binding:"required" example:"2026-03-01T19:00:00+08:00"`
	// LocationName is the human-readable venue.
	LocationName string `json:"location_name" example:"Wangjing SOHO T1"`
	// Lat/Lng are the optional venue coordinates.
	Lat *float64 `json:"lat" example:"39.996"`
	Lng *float64 `json:"lng" example:"116.48"`
	// MinPeople is the quorum needed to confirm (>= 2).
	MinPeople int `json:"min_people" binding:"required" example:"2"`
	// MaxPeople caps joined participants (>= min_people).
	MaxPeople int `json:"max_people" binding:"required" example:"4"`
	// Notes carries free-form expectations for the table.
	Notes string `json:"notes" example:"no cilantro please"`
}

// GatheringResponse is a gathering plus the derived fields clients render.
type GatheringResponse struct {
	*domain.Gathering

	// JoinedCount is the number of currently joined participants.
	JoinedCount int `json:"joined_count"`
	// SecondsLeft is the remaining join-window time, floored at zero.
	SecondsLeft int64 `json:"seconds_left"`
}

// FeedResponse wraps the active-gatherings feed.
type FeedResponse struct {
	Gatherings []feed.Entry `json:"gatherings"`
	Count      int          `json:"count"`
}

//
// Helpers
//

// gatheringView derives the response envelope for a single gathering.
func gatheringView(g *domain.Gathering, now time.Time) GatheringResponse {
	resp := GatheringResponse{Gathering: g, JoinedCount: g.JoinedCount()}
	if left := g.JoinDeadline.Sub(now); left > 0 {
		resp.SecondsLeft = int64(left / time.Second)
	}
	return resp
}

// viewerCoordinate parses optional lat/lng query params. Both must be present
// and well-formed for a viewer location to exist.
func viewerCoordinate(c *gin.Context) *geo.Coordinate {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		return nil
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &geo.Coordinate{Lat: lat, Lng: lng}
}

// failJoin maps membership errors onto stable HTTP codes.
func failJoin(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGatheringNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "gathering not found")
	case errors.Is(err, services.ErrGatheringCancelled):
		fail(c, http.StatusConflict, ErrCodeGatheringCancelled, "gathering was cancelled")
	case errors.Is(err, services.ErrDeadlinePassed):
		fail(c, http.StatusConflict, ErrCodeDeadlinePassed, "join deadline has passed")
	case errors.Is(err, services.ErrGatheringFull):
		fail(c, http.StatusConflict, ErrCodeGatheringFull, "gathering is already at capacity")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateGathering godoc
// @ID          createGathering
// @Summary     Open a new gathering
// @Description Creates a gathering for the current user, snapshots their taste profile, and seats them as creator. The join window opens immediately.
// @Tags        Gatherings
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateGatheringRequest  true  "Create gathering payload"
//
// @Success     201  {object}  handlers.GatheringResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /gatherings [post]
func (h *Handlers) CreateGathering(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	var req CreateGatheringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	creator, err := h.profileSvc.Ensure(ctx, userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	g, err := h.gatheringSvc.Create(ctx, creator, services.CreateGatheringInput{
		Title:        req.Title,
		Cuisine:      req.Cuisine,
		StartTime:    req.StartTime,
		LocationName: req.LocationName,
		Lat:          req.Lat,
		Lng:          req.Lng,
		MinPeople:    req.MinPeople,
		MaxPeople:    req.MaxPeople,
		Notes:        req.Notes,
	}, now)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "min_people must be >= 2, max_people >= min_people, start_time required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, gatheringView(g, now))
}

// ListGatherings godoc
// @ID          listGatherings
// @Summary     Active gatherings feed
// @Description Returns active gatherings starting within the look-ahead window, nearest first when lat/lng are supplied. Each entry carries joined count, creator credit, distance, and join-window countdown.
// @Tags        Gatherings
// @Produce     json
//
// @Param       lat                query  number  false "Viewer latitude"
// @Param       lng                query  number  false "Viewer longitude"
// @Param       cuisine            query  string  false "Only this cuisine tag"    example(hotpot)
// @Param       lookahead_minutes  query  int     false "Feed horizon in minutes"  minimum(1)
//
// @Success     200  {object} handlers.FeedResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gatherings [get]
func (h *Handlers) ListGatherings(c *gin.Context) {
	now := time.Now().UTC()

	f := feed.Filters{Cuisine: strings.TrimSpace(c.Query("cuisine"))}
	if mins := utils.AtoiDefault(c.Query("lookahead_minutes"), 0); mins > 0 {
		f.Lookahead = time.Duration(mins) * time.Minute
	}

	entries, err := h.feedSvc.ListActive(c.Request.Context(), now, f, viewerCoordinate(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, FeedResponse{Gatherings: entries, Count: len(entries)})
}

// GetGathering godoc
// @ID          getGathering
// @Summary     Gathering detail
// @Description Returns one gathering with its participant log. Status is resolved against the current clock before the record is returned.
// @Tags        Gatherings
// @Produce     json
//
// @Param       id  path  string  true  "Gathering ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.GatheringResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Gathering not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gatherings/{id} [get]
func (h *Handlers) GetGathering(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gathering id must be a UUID")
		return
	}
	now := time.Now().UTC()

	g, err := h.gatheringSvc.Get(c.Request.Context(), id, now)
	if err != nil {
		if errors.Is(err, services.ErrGatheringNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "gathering not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gatheringView(g, now))
}

// JoinGathering godoc
// @ID          joinGathering
// @Summary     Join a gathering
// @Description Adds the current user to the gathering. Rejects joins after the deadline, into cancelled gatherings, or past capacity; re-joining while joined is an idempotent success.
// @Tags        Gatherings
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Gathering ID (UUID)"    format(uuid)
//
// @Success     200  {object} handlers.GatheringResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Gathering not found"
// @Failure     409  {object} handlers.ErrorResponse "Deadline passed, cancelled, or full"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gatherings/{id}/join [post]
func (h *Handlers) JoinGathering(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gathering id must be a UUID")
		return
	}
	now := time.Now().UTC()

	g, err := h.memberSvc.Join(c.Request.Context(), userID(c), id, now)
	if err != nil {
		failJoin(c, err)
		return
	}
	ok(c, http.StatusOK, gatheringView(g, now))
}

// LeaveGathering godoc
// @ID          leaveGathering
// @Summary     Leave a gathering
// @Description Marks the current user's membership as left. Leaving never un-confirms a gathering, and users who never joined get a successful no-op.
// @Tags        Gatherings
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Gathering ID (UUID)"    format(uuid)
//
// @Success     200  {object} handlers.GatheringResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Gathering not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gatherings/{id}/leave [post]
func (h *Handlers) LeaveGathering(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gathering id must be a UUID")
		return
	}
	now := time.Now().UTC()

	g, err := h.memberSvc.Leave(c.Request.Context(), userID(c), id, now)
	if err != nil {
		if errors.Is(err, services.ErrGatheringNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "gathering not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gatheringView(g, now))
}
