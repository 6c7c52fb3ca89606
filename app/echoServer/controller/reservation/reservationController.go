package reservation

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	reservationsvc "liblend/service/reservation"
)

type ReserveReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type Controller struct {
	Svc reservationsvc.Service
	Log *slog.Logger
}

// POST /v1/reservations
func (h *Controller) Reserve(c echo.Context) error {
	var req ReserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	res, err := h.Svc.Reserve(c.Request().Context(), uid, req.BookID, time.Now().UTC())
	if err != nil {
		switch reservationsvc.Code(err) {
		case reservationsvc.ErrCopyAvailable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "a copy is available, borrow it instead", "code": "COPY_AVAILABLE"})
		case reservationsvc.ErrAlreadyReserved:
			return c.JSON(http.StatusConflict, echo.Map{"message": "you already have an active reservation", "code": "ALREADY_RESERVED"})
		case reservationsvc.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		}
		h.Log.Error("reserve", "user_id", uid, "book_id", req.BookID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"reservation": res})
}

// POST /v1/reservations/:bookId/cancel
func (h *Controller) Cancel(c echo.Context) error {
	bookID, err := strconv.ParseInt(c.Param("bookId"), 10, 64)
	if err != nil || bookID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid book id"})
	}
	uid, _ := c.Get("user_id").(int64)

	if err := h.Svc.Cancel(c.Request().Context(), uid, bookID); err != nil {
		if reservationsvc.Code(err) == reservationsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "no active reservation for this book"})
		}
		h.Log.Error("cancel reservation", "user_id", uid, "book_id", bookID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reservation cancelled"})
}

// GET /v1/reservations/my
func (h *Controller) My(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)

	list, err := h.Svc.ListFor(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("list reservations", "user_id", uid, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}
