// Rating and credit HTTP handlers.
//
// This file exposes REST endpoints for the reputation surface:
//   - POST /gatherings/{id}/ratings  (submit a batch of peer ratings)
//   - GET  /credit/{id}              (credit score for a user)
//   - GET  /ratings                  (recent rating log, paginated, ETag support)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablemate/go-gather-backend/internal/domain"
	"github.com/tablemate/go-gather-backend/internal/repo"
	"github.com/tablemate/go-gather-backend/internal/services"
	"github.com/tablemate/go-gather-backend/internal/utils"
)

//
// DTOs
//

// SubmitRatingsRequest is the JSON payload for rating fellow participants.
//
// Ratings maps participant user ids to star scores. Scores land on the 1-5
// scale; out-of-range values are clamped rather than rejected.
type SubmitRatingsRequest struct {
	Ratings map[string]int `json:"ratings" binding:"required" example:"user456:5"`
}

// SubmitRatingsResponse reports the per-target outcome of a rating batch.
type SubmitRatingsResponse struct {
	Outcomes []services.RatingOutcome `json:"outcomes"`
}

// CreditResponse is the reputation view for one user.
type CreditResponse struct {
	UserID      string   `json:"user_id"`
	Score       int      `json:"score"`
	RatingCount int      `json:"rating_count"`
	Tags        []string `json:"tags,omitempty"`
	// LastRatedAt is the RFC 3339 time of the most recent retained rating,
	// empty when the user was never rated.
	LastRatedAt string `json:"last_rated_at,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRatingsResponse wraps a page of the rating log and pagination info.
type ListRatingsResponse struct {
	Ratings    []domain.RatingRecord `json:"ratings"`
	Pagination Pagination            `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// SubmitRatings godoc
// @ID          submitRatings
// @Summary     Rate fellow participants
// @Description Applies a batch of 1-5 star ratings to participants of a gathering. Self-ratings and non-participants are skipped, not failed; the response says per target what happened.
// @Tags        Ratings
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Gathering ID (UUID)"    format(uuid)
// @Param       body       body    handlers.SubmitRatingsRequest  true  "Ratings payload"
//
// @Success     200  {object} handlers.SubmitRatingsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Gathering not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gatherings/{id}/ratings [post]
func (h *Handlers) SubmitRatings(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gathering id must be a UUID")
		return
	}

	var req SubmitRatingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Ratings) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ratings map required")
		return
	}

	now := time.Now().UTC()
	outcomes, err := h.ratingSvc.SubmitRatings(c.Request.Context(), id, userID(c), req.Ratings, now)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGatheringNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "gathering not found")
		case errors.Is(err, services.ErrInvalidRating):
			fail(c, http.StatusBadRequest, ErrCodeRatingFailed, "no ratable participants in batch")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRatingFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, SubmitRatingsResponse{Outcomes: outcomes})
}

// GetCredit godoc
// @ID          getCredit
// @Summary     Credit score for a user
// @Description Returns the credit record for a user id. Unrated users get the default score without a persisted record.
// @Tags        Ratings
// @Produce     json
//
// @Param       id  path  string  true  "User ID"  example(user456)
//
// @Success     200  {object} handlers.CreditResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /credit/{id} [get]
func (h *Handlers) GetCredit(c *gin.Context) {
	ctx := c.Request.Context()
	uid := strings.TrimSpace(c.Param("id"))
	if uid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id required")
		return
	}

	rec, err := h.creditSvc.Get(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	resp := CreditResponse{
		UserID:      rec.UserID,
		Score:       rec.Score,
		RatingCount: rec.RatingCount,
		Tags:        rec.Tags,
	}
	// Last-rated timestamp is best effort; the score stands without it.
	if db := h.ratingDB(); db != nil {
		if _, maxTS, err := repo.UserRatingsStats(ctx, db, uid); err == nil && maxTS != nil {
			resp.LastRatedAt = maxTS.UTC().Format(time.RFC3339)
		}
	}
	ok(c, http.StatusOK, resp)
}

// ListRatings godoc
// @ID          listRatings
// @Summary     Recent ratings (paginated)
// @Description Returns a page of the retained rating log, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Ratings
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListRatingsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /ratings [get]
func (h *Handlers) ListRatings(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.ratingDB(); db != nil {
		count, maxTS, err := repo.RatingsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"ratings:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.ratingSvc.RecentRatings(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListRatingsResponse{
		Ratings: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ratingDB unwraps the concrete rating service for direct stats queries.
func (h *Handlers) ratingDB() *gorm.DB {
	if svc, okSvc := h.ratingSvc.(*services.RatingService); okSvc {
		return svc.DB
	}
	return nil
}
