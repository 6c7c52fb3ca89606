package report

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	reportsvc "liblend/service/report"
)

type Controller struct {
	Svc reportsvc.Service
	Log *slog.Logger
}

// GET /v1/admin/reports
func (h *Controller) Reports(c echo.Context) error {
	r, err := h.Svc.Report(c.Request().Context(), time.Now().UTC())
	if err != nil {
		h.Log.Error("reports", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, r)
}

// GET /v1/admin/dashboard
func (h *Controller) Dashboard(c echo.Context) error {
	d, err := h.Svc.Dashboard(c.Request().Context(), time.Now().UTC())
	if err != nil {
		h.Log.Error("dashboard", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, d)
}
