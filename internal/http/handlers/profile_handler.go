// Profile HTTP handlers.
//
// This file exposes REST endpoints for the session user's taste profile:
//   - GET /profile  (fetch, creating defaults on first use)
//   - PUT /profile  (update display name and taste preferences)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tablemate/go-gather-backend/internal/domain"
)

// UpdateProfileRequest is the JSON payload for editing the user profile.
type UpdateProfileRequest struct {
	// DisplayName replaces the shown name when non-blank.
	DisplayName string `json:"display_name" example:"Ling"`
	// SpiceLevel is on the 0-5 scale; out-of-range values are clamped.
	SpiceLevel int `json:"spice_level" example:"3"`
	// Avoid lists ingredients the user will not eat.
	Avoid []string `json:"avoid" example:"cilantro,offal"`
	// Diet lists dietary restrictions.
	Diet []string `json:"diet" example:"halal"`
	// BudgetPP is the preferred per-person budget.
	BudgetPP int `json:"budget_pp" example:"100"`
	// Notes carries free-form preferences.
	Notes string `json:"notes" example:"prefer quiet places"`
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Current user's profile
// @Description Returns the taste profile for the current user, creating it with defaults (and seeding a credit record) on first use.
// @Tags        Profile
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} domain.UserProfile
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	u, err := h.profileSvc.Ensure(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update the current user's profile
// @Description Persists taste profile edits. Spice level is clamped to 0-5 and list entries are trimmed.
// @Tags        Profile
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.UpdateProfileRequest  true  "Profile payload"
//
// @Success     200  {object} domain.UserProfile
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	u, err := h.profileSvc.Update(c.Request.Context(), userID(c), req.DisplayName, domain.TasteProfile{
		SpiceLevel: req.SpiceLevel,
		Avoid:      req.Avoid,
		Diet:       req.Diet,
		BudgetPP:   req.BudgetPP,
		Notes:      req.Notes,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, u)
}
