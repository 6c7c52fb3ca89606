// Package main library lending API.
//
// @title           Library Lending API
// @version         1.0
// @description     Library lending service (catalog, loans, reservations, fines, reports).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"liblend/app/echoServer"
	authctrl "liblend/app/echoServer/controller/auth"
	bookctrl "liblend/app/echoServer/controller/book"
	loanctrl "liblend/app/echoServer/controller/loan"
	reportctrl "liblend/app/echoServer/controller/report"
	reservationctrl "liblend/app/echoServer/controller/reservation"
	walletctrl "liblend/app/echoServer/controller/wallet"
	"liblend/app/echoServer/validation"
	"liblend/config"
	"liblend/events"
	bookrepo "liblend/repository/book"
	inventoryrepo "liblend/repository/inventory"
	loanrepo "liblend/repository/loan"
	reportrepo "liblend/repository/report"
	reservationrepo "liblend/repository/reservation"
	userrepo "liblend/repository/user"
	walletrepo "liblend/repository/wallet"
	authsvc "liblend/service/auth"
	booksvc "liblend/service/book"
	inventorysvc "liblend/service/inventory"
	lendingsvc "liblend/service/lending"
	reportsvc "liblend/service/report"
	reservationsvc "liblend/service/reservation"
	walletsvc "liblend/service/wallet"
	"liblend/util/database"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// events: a broker is optional, notifications drop without one
	var resEvents reservationsvc.Events = events.Nop{}
	var loanEvents lendingsvc.Events = events.Nop{}
	var pub *events.Publisher
	if cfg.RabbitMQURL != "" {
		p, perr := events.NewPublisher(cfg.RabbitMQURL, log)
		if perr != nil {
			log.Warn("rabbitmq unavailable, events disabled", "err", perr)
		} else {
			defer p.Close()
			pub = p
			resEvents = pub
			loanEvents = pub
		}
	}

	// repos
	ur := userrepo.New(db)
	br := bookrepo.New(db)
	ir := inventoryrepo.New(db)
	lr := loanrepo.New(db)
	rr := reservationrepo.New(db)
	wr := walletrepo.New(db)
	rpr := reportrepo.New(db)

	// services
	ledger := inventorysvc.New(ir, log)
	resSvc := reservationsvc.New(db, rr, ledger, resEvents, log)
	lendSvc := lendingsvc.New(db, lr, ledger, resSvc, wr, log)
	as := authsvc.New(ur, cfg.JWTSecret)
	bs := booksvc.New(br, ledger)
	ws := walletsvc.New(db, wr, log)
	rs := reportsvc.New(rpr)

	// overdue sweep
	notifier := lendingsvc.NewNotifier(lr, loanEvents, time.Hour, log)
	go notifier.Run(ctx)

	// controllers
	authC := &authctrl.Controller{Svc: as, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, Log: log}
	loanC := &loanctrl.Controller{Svc: lendSvc, Log: log}
	resC := &reservationctrl.Controller{Svc: resSvc, Log: log}
	walletC := &walletctrl.Controller{Svc: ws, Log: log}
	reportC := &reportctrl.Controller{Svc: rs, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		broker := "disabled"
		if pub != nil {
			broker = "down"
			if pub.IsHealthy() {
				broker = "ok"
			}
		}
		return c.JSON(200, map[string]any{
			"status": "ok",
			"broker": broker,
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:        authC,
		Book:        bookC,
		Loan:        loanC,
		Reservation: resC,
		Wallet:      walletC,
		Report:      reportC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	slog.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
