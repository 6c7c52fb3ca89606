package wallet

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	walletsvc "liblend/service/wallet"
)

type TopupReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type Controller struct {
	Svc walletsvc.Service
	Log *slog.Logger
}

// POST /v1/wallet/topups
func (h *Controller) Topup(c echo.Context) error {
	var req TopupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	result, err := h.Svc.Topup(c.Request().Context(), uid, req.Amount)
	if err != nil {
		if errors.Is(err, walletsvc.ErrInvalidAmount) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "amount must be positive"})
		}
		h.Log.Error("topup", "user_id", uid, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, result)
}

// GET /v1/wallet/ledger
func (h *Controller) Ledger(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)

	rows, err := h.Svc.Ledger(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("wallet ledger", "user_id", uid, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": rows})
}
