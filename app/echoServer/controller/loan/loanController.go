package loan

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	lendingsvc "liblend/service/lending"
)

type BorrowReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type ReturnReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type Controller struct {
	Svc lendingsvc.Service
	Log *slog.Logger
}

// POST /v1/loans
func (h *Controller) Borrow(c echo.Context) error {
	var req BorrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	loan, err := h.Svc.Borrow(c.Request().Context(), uid, req.BookID, time.Now().UTC())
	if err != nil {
		switch lendingsvc.Code(err) {
		case lendingsvc.ErrBookUnavailable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no copies available", "code": "BOOK_UNAVAILABLE"})
		case lendingsvc.ErrAlreadyBorrowed:
			return c.JSON(http.StatusConflict, echo.Map{"message": "you already hold this book", "code": "ALREADY_BORROWED"})
		case lendingsvc.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		}
		h.Log.Error("borrow", "user_id", uid, "book_id", req.BookID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"loan": loan})
}

// POST /v1/loans/return
func (h *Controller) Return(c echo.Context) error {
	var req ReturnReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	receipt, err := h.Svc.Return(c.Request().Context(), uid, req.BookID, time.Now().UTC())
	if err != nil {
		if lendingsvc.Code(err) == lendingsvc.ErrNoActiveLoan {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "no active loan for this book", "code": "NO_ACTIVE_LOAN"})
		}
		h.Log.Error("return", "user_id", uid, "book_id", req.BookID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, receipt)
}

// GET /v1/loans/my
func (h *Controller) MyHistory(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)

	entries, err := h.Svc.History(c.Request().Context(), uid, time.Now().UTC())
	if err != nil {
		h.Log.Error("loan history", "user_id", uid, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"loans": entries})
}

// POST /v1/loans/:id/fine/pay
func (h *Controller) PayFine(c echo.Context) error {
	loanID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || loanID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid loan id"})
	}
	uid, _ := c.Get("user_id").(int64)

	receipt, err := h.Svc.PayFine(c.Request().Context(), uid, loanID)
	if err != nil {
		switch lendingsvc.Code(err) {
		case lendingsvc.ErrLoanNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "loan not found"})
		case lendingsvc.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "not your loan"})
		case lendingsvc.ErrNoFineDue:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no fine due on this loan", "code": "NO_FINE_DUE"})
		case lendingsvc.ErrFineAlreadyPaid:
			return c.JSON(http.StatusConflict, echo.Map{"message": "fine already settled", "code": "FINE_ALREADY_PAID"})
		case lendingsvc.ErrInsufficientBalance:
			return c.JSON(http.StatusPaymentRequired, echo.Map{"message": "insufficient wallet balance", "code": "INSUFFICIENT_BALANCE"})
		}
		h.Log.Error("pay fine", "user_id", uid, "loan_id", loanID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, receipt)
}
