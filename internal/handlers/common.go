package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// internalError logs the real cause server-side and returns a generic body,
// so store/infra failures never leak detail to the caller.
func internalError(c echo.Context, err error) error {
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error."})
}
