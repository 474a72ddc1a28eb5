package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jtuchinsky/MCP-Auth/internal/apperr"
	"github.com/jtuchinsky/MCP-Auth/pkg/logger"
)

// writeError maps a service error onto an HTTP response. Internal
// errors are logged at error level with their cause; expected failures
// are warnings. Clients only ever see the taxonomy message.
func writeError(c echo.Context, err error) error {
	log := logger.FromContext(c)
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error("Request failed", zap.Error(err))
	} else {
		log.Warn("Request rejected", zap.Error(err))
	}
	return c.JSON(kind.HTTPStatus(), echo.Map{"error": apperr.Message(err)})
}
