package echoServer

import (
	"liblend/app/echoServer/controller/auth"
	"liblend/app/echoServer/controller/book"
	"liblend/app/echoServer/controller/loan"
	"liblend/app/echoServer/controller/report"
	"liblend/app/echoServer/controller/reservation"
	"liblend/app/echoServer/controller/wallet"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth        *auth.Controller
	Book        *book.Controller
	Loan        *loan.Controller
	Reservation *reservation.Controller
	Wallet      *wallet.Controller
	Report      *report.Controller
	JWTSecret   string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)

	// Authenticated
	authg := e.Group("/v1")
	authg.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),
	}))
	authg.Use(ExtractIdentity())

	// Books
	authg.GET("/books", c.Book.List)
	authg.GET("/books/search", c.Book.Search)
	authg.GET("/books/:id", c.Book.Detail)

	// Loans
	authg.POST("/loans", c.Loan.Borrow)
	authg.POST("/loans/return", c.Loan.Return)
	authg.GET("/loans/my", c.Loan.MyHistory)
	authg.POST("/loans/:id/fine/pay", c.Loan.PayFine)

	// Reservations
	authg.POST("/reservations", c.Reservation.Reserve)
	authg.POST("/reservations/:bookId/cancel", c.Reservation.Cancel)
	authg.GET("/reservations/my", c.Reservation.My)

	// Wallet
	authg.POST("/wallet/topups", c.Wallet.Topup)
	authg.GET("/wallet/ledger", c.Wallet.Ledger)

	// Admin
	admin := authg.Group("", RequireAdmin())
	admin.POST("/books", c.Book.Create)
	admin.PUT("/books/:id", c.Book.Update)
	admin.DELETE("/books/:id", c.Book.Delete)
	admin.PUT("/books/:id/copies", c.Book.SetTotalCopies)
	admin.GET("/admin/reports", c.Report.Reports)
	admin.GET("/admin/dashboard", c.Report.Dashboard)
}
