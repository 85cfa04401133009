package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/synapsefest/scan-gate/internal/handler"    // import the handlers that implement station logic
	"github.com/synapsefest/scan-gate/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/synapsefest/scan-gate/internal/model"      // role constants for route guards
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// The station supervisor polls this endpoint to decide whether to
	// restart the binary. It must stay reachable while offline.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the volunteer session routes and their middleware.
// Login lives under /v1/auth and needs no existing session; /v1/me requires
// a valid token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	// Volunteers sign in with their record ID and device PIN.
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleVolunteer, model.RoleAdmin))
	auth.GET("/me", a.Me)
}

// RegisterScan registers the scan-station routes. Every route requires a
// volunteer session; the queue clear and dedup sweep additionally require
// the admin role because they discard or delete records.
func RegisterScan(e *echo.Echo, s *handler.ScanHandler, adm *handler.AdminHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleVolunteer, model.RoleAdmin))
	if limiter != nil {
		v1.Use(limiter)
	}

	// Scanning. The camera pipe drives the orchestrator once started;
	// POST /scan covers handheld scanners and manual code entry.
	v1.POST("/scan", s.Scan)
	v1.POST("/scanner/start", s.StartScanner)
	v1.POST("/scanner/stop", s.StopScanner)

	// The journal of recent outcomes shown on the station screen.
	v1.GET("/scans/recent", s.Recent)
	v1.GET("/scans/today", s.Today)

	// Operational state and sync control.
	v1.GET("/status", s.Status)
	v1.POST("/sync/trigger", s.TriggerSync)

	// Destructive maintenance, admin only.
	admin := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	admin.DELETE("/sync/queue", s.ClearQueue)
	admin.POST("/admin/attendance/dedup", adm.DedupAttendance)
}
