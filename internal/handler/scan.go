package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/synapsefest/scan-gate/internal/config"
	"github.com/synapsefest/scan-gate/internal/history"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/offline"
	"github.com/synapsefest/scan-gate/internal/repository"
	"github.com/synapsefest/scan-gate/internal/scanner"
	"github.com/synapsefest/scan-gate/internal/syncer"
)

// ScanHandler bundles the scan-station dependencies behind the HTTP
// surface: the orchestrator that runs the verification pipeline, the
// bounded history journal, the offline queue and the sync engine.
type ScanHandler struct {
	Cfg        config.Config
	Orch       *scanner.Orchestrator
	Hist       *history.Log
	Queue      *offline.Queue
	Sync       *syncer.Engine
	Volunteers *repository.VolunteerRepo
}

func NewScanHandler(cfg config.Config, o *scanner.Orchestrator, h *history.Log, q *offline.Queue, s *syncer.Engine, v *repository.VolunteerRepo) *ScanHandler {
	return &ScanHandler{Cfg: cfg, Orch: o, Hist: h, Queue: q, Sync: s, Volunteers: v}
}

type scanReq struct {
	Code string `json:"code"`
}

type scanResp struct {
	Suppressed bool              `json:"suppressed"`
	Result     *model.ScanResult `json:"result,omitempty"`
}

// Scan runs one manually submitted code through the verification
// pipeline. The camera pipe is the usual source; this endpoint covers
// handheld scanners and manual entry, and goes through the exact same
// cooldown and result-display guards. A suppressed attempt (duplicate
// frame inside a guard window) returns 200 with suppressed=true and no
// result body.
func (h *ScanHandler) Scan(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	vol, err := h.currentVolunteer(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res := h.Orch.Process(ctx, req.Code, vol)
	if res == nil {
		return c.JSON(http.StatusOK, scanResp{Suppressed: true})
	}
	return c.JSON(http.StatusOK, scanResp{Result: res})
}

// StartScanner binds the camera sampler to the calling volunteer's
// session and starts it. Only one session can hold the camera.
func (h *ScanHandler) StartScanner(c echo.Context) error {
	vol, err := h.currentVolunteer(c)
	if err != nil {
		return err
	}
	if err := h.Orch.Start(c.Request().Context(), vol); err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"running": true})
}

// StopScanner halts the camera sampler. Stopping an already stopped
// scanner is a no-op.
func (h *ScanHandler) StopScanner(c echo.Context) error {
	h.Orch.Stop()
	return c.JSON(http.StatusOK, echo.Map{"running": false})
}

// Recent returns the newest entries of the scan journal, newest first.
// The n query parameter caps the page; it defaults to 10.
func (h *ScanHandler) Recent(c echo.Context) error {
	limit := 10
	if s := c.QueryParam("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	return c.JSON(http.StatusOK, echo.Map{"items": h.Hist.Recent(limit)})
}

// Today returns the journal entries for the current event-local day
// along with derived totals.
func (h *ScanHandler) Today(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"items":  h.Hist.Today(),
		"counts": h.Hist.TodayCounts(),
	})
}

type statusResp struct {
	Online         bool              `json:"online"`
	ScannerRunning bool              `json:"scannerRunning"`
	ScannerState   string            `json:"scannerState"`
	SessionScans   int               `json:"sessionScans"`
	PendingSync    int               `json:"pendingSync"`
	Sync           model.SyncSummary `json:"sync"`
}

// Status reports the station's operational state in one call: remote
// connectivity, scanner loop state, the session's admit count and the
// sync engine's summary. The UI polls this endpoint.
func (h *ScanHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResp{
		Online:         h.Sync.Online(),
		ScannerRunning: h.Orch.Running(),
		ScannerState:   h.Orch.State(),
		SessionScans:   h.Orch.SessionScans(),
		PendingSync:    h.Queue.Len(),
		Sync:           h.Sync.Status(),
	})
}

// TriggerSync asks the sync engine for an immediate forced pass. The
// pass runs asynchronously; poll Status for the outcome.
func (h *ScanHandler) TriggerSync(c echo.Context) error {
	h.Sync.TriggerNow()
	return c.JSON(http.StatusAccepted, echo.Map{"state": h.Sync.State()})
}

// ClearQueue discards every pending offline record. The records are
// gone for good, so the route is restricted to admins by the router.
func (h *ScanHandler) ClearQueue(c echo.Context) error {
	dropped := h.Queue.Len()
	if err := h.Queue.Clear(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"dropped": dropped})
}

// currentVolunteer reloads the volunteer behind the session claim. The
// reload (rather than trusting the token alone) means a volunteer
// deactivated mid-shift loses scanning ability on their next request.
func (h *ScanHandler) currentVolunteer(c echo.Context) (*model.Volunteer, error) {
	id, _ := c.Get("volunteer_id").(string)
	if id == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vol, err := h.Volunteers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrVolunteerNotFound) {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "unknown volunteer")
		}
		// The directory may be unreachable while the station is offline.
		// Scanning must keep working, so fall back to the session claims.
		role, _ := c.Get("role").(string)
		return &model.Volunteer{ID: id, Role: role, Active: true}, nil
	}
	if !vol.Active {
		return nil, echo.NewHTTPError(http.StatusForbidden, "volunteer deactivated")
	}
	return vol, nil
}
