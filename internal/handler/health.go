package handler // declare the package name; contains HTTP handlers

import (
	"net/http" // net/http provides status codes and response helpers

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is a simple liveness endpoint used by the station supervisor to
// verify that the service is running. It returns a plain text "ok" with
// an HTTP 200 status code regardless of remote connectivity; offline is
// a normal operating mode, not a failure.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
