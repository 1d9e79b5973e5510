package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/MindLooped/rupaay-fest/internal/auditlog"
	"github.com/MindLooped/rupaay-fest/internal/booking"
	"github.com/MindLooped/rupaay-fest/internal/config"
	"github.com/MindLooped/rupaay-fest/internal/database"
	"github.com/MindLooped/rupaay-fest/internal/handler"
	"github.com/MindLooped/rupaay-fest/internal/layout"
	"github.com/MindLooped/rupaay-fest/internal/mailer"
	"github.com/MindLooped/rupaay-fest/internal/middleware"
	"github.com/MindLooped/rupaay-fest/internal/qr"
	"github.com/MindLooped/rupaay-fest/internal/queue"
	"github.com/MindLooped/rupaay-fest/internal/repository"
	"github.com/MindLooped/rupaay-fest/internal/router"
	queuepub "github.com/MindLooped/rupaay-fest/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("main: no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("main: database: %v", err)
	}
	defer db.Close()

	grid, err := layout.New(cfg.SeatRows, cfg.SeatsPerRow, cfg.BlockedRows)
	if err != nil {
		log.Fatalf("main: seat layout: %v", err)
	}

	event := mailer.EventInfo{Name: cfg.EventName, Date: cfg.EventDate, Venue: cfg.EventVenue}
	repo := repository.NewBookingRepo(db)
	sender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, event)
	encoder := qr.NewEncoder(cfg.EventName)
	audit := auditlog.New(cfg.CSVExportPath, cfg.EventName, cfg.EventDate, cfg.EventVenue)

	svc := booking.NewService(booking.Options{
		Ledger:      repo,
		Grid:        grid,
		Sender:      sender,
		QR:          encoder,
		Audit:       audit,
		Publish:     queuepub.PublishTicketIssued,
		RefPrefix:   cfg.RefPrefix,
		Flow:        cfg.BookingFlow,
		Event:       event,
		MailTimeout: cfg.MailTimeout,
	})

	e := echo.New()
	e.HideBanner = true

	rdb := config.NewRedisClient()
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterBooking(e, handler.NewBookingHandler(svc), &handler.PaymentHandler{}, limiter)
	router.RegisterAdmin(e, &handler.AdminHandler{
		Svc:          svc,
		Audit:        audit,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		JWTSecret:    cfg.JWTSecret,
		TokenTTLMin:  cfg.AdminTokenTTLMin,
	}, cfg.AdminPassword, cfg.JWTSecret)

	// Best effort: the ticket log consumer reconnects on its own and
	// the server stays up without a broker.
	go func() {
		if err := queue.StartTicketConsumer(); err != nil {
			log.Printf("main: ticket consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
