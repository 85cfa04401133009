package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/synapsefest/scan-gate/internal/repository"
)

// AdminHandler holds the dependencies for admin-only maintenance routes.
type AdminHandler struct {
	Attendance *repository.AttendanceRepo
	Loc        *time.Location
}

func NewAdminHandler(a *repository.AttendanceRepo, loc *time.Location) *AdminHandler {
	return &AdminHandler{Attendance: a, Loc: loc}
}

// DedupAttendance sweeps one calendar day of attendance records and
// removes duplicates left behind by concurrent stations, keeping the
// earliest record per attendee. The date query parameter selects the
// day (YYYY-MM-DD) and defaults to today in the event time zone. The
// sweep is idempotent; running it twice removes nothing extra.
func (h *AdminHandler) DedupAttendance(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = time.Now().In(h.Loc).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	removed, err := h.Attendance.RemoveDuplicates(ctx, date)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "removed": removed})
}
