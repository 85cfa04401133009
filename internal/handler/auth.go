package handler

import (
	"context" // provides context with cancellation for store calls
	"errors"  // sentinel error matching
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/synapsefest/scan-gate/internal/config"     // app configuration
	"github.com/synapsefest/scan-gate/internal/repository" // volunteer lookups
	"github.com/synapsefest/scan-gate/internal/utils"      // PIN hashing and token issuing
)

// AuthHandler bundles dependencies for the volunteer session endpoints.
// Volunteers sign in on the shared station with their record ID and a
// short device PIN; the session token gates every other route.
type AuthHandler struct {
	Cfg        config.Config
	Volunteers *repository.VolunteerRepo
}

func NewAuthHandler(cfg config.Config, v *repository.VolunteerRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Volunteers: v}
}

// ----- DTOs -----

type loginReq struct {
	VolunteerID string `json:"volunteerId"`
	PIN         string `json:"pin"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type volunteerPart struct {
	ID        string `json:"id"`
	SynapseID string `json:"synapseId"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}
type authResp struct {
	Volunteer volunteerPart `json:"volunteer"`
	Access    tokenPart     `json:"access"`
}

// Login verifies a volunteer ID and PIN against the remote volunteer
// directory and issues a session token. Deactivated volunteers are
// rejected the same way as unknown IDs so the response does not reveal
// which part failed.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.VolunteerID = strings.TrimSpace(req.VolunteerID)
	if req.VolunteerID == "" || req.PIN == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "volunteerId/pin required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Volunteers.GetByID(ctx, req.VolunteerID)
	if err != nil {
		if errors.Is(err, repository.ErrVolunteerNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		// Login needs the remote directory; an unreachable store means the
		// station cannot start a new session, not that the PIN was wrong.
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "volunteer directory unreachable"})
	}
	if !v.Active || !utils.VerifyPIN(v.PINHash, req.PIN) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, v.ID, v.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		Volunteer: volunteerPart{ID: v.ID, SynapseID: v.SynapseID, Name: v.Name, Role: v.Role},
		Access:    tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me: simple protected endpoint echoing the session claims.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"volunteer_id": c.Get("volunteer_id"),
		"role":         c.Get("role"),
	})
}
