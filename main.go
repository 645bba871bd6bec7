package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/omise/omise-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/takigawalab/indexapi/catalog"
	"github.com/takigawalab/indexapi/config"
	"github.com/takigawalab/indexapi/db"
	"github.com/takigawalab/indexapi/handlers"
	"github.com/takigawalab/indexapi/intake"
	"github.com/takigawalab/indexapi/ledger"
	applog "github.com/takigawalab/indexapi/logger"
	mw "github.com/takigawalab/indexapi/middleware"
	"github.com/takigawalab/indexapi/payment"
	"github.com/takigawalab/indexapi/store"
	"github.com/takigawalab/indexapi/unlock"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	bdb := db.Setup(cfg)
	defer bdb.Close()

	if err := db.CreateTables(context.Background(), bdb); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	st := store.NewPostgres(bdb)
	lg := ledger.New(st)
	cat := catalog.New(st)
	ul := unlock.New(st, lg)

	events, err := payment.OpenEventStore(cfg.EventDBPath)
	if err != nil {
		logger.Fatal("open event store failed", zap.Error(err))
	}
	defer events.Close()

	var provider payment.Provider = payment.StubProvider{}
	var source payment.EventSource = payment.StubEventSource{}
	if cfg.OmiseSecretKey != "" {
		client, err := omise.NewClient(cfg.OmisePublicKey, cfg.OmiseSecretKey)
		if err != nil {
			logger.Fatal("omise client failed", zap.Error(err))
		}
		provider = payment.NewOmiseProvider(client, cfg.PaymentReturnURI)
		source = payment.NewOmiseEventSource(client)
	} else {
		logger.Warn("omise keys not set, using stub checkout provider")
	}
	pay := payment.New(provider, source, events, lg)

	h := handlers.New(st, lg, cat, ul, pay, &intake.MockAnalyzer{Delay: 2 * time.Second}, cfg.JWTKey())

	e := echo.New()
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*", "Authorization"},
		AllowCredentials: true,
	}))

	// Public
	e.POST("/auth/login", h.Signin)
	e.POST("/points/webhook", h.PaymentWebhook)

	// Browsable without a session; a valid token upgrades the view for
	// races the caller has unlocked.
	pub := e.Group("", mw.OptionalJWT(cfg.JWTKey()))
	pub.GET("/races", h.Races)
	pub.GET("/races/top", h.TopRaces)
	pub.GET("/races/:id", h.RaceDetail)
	pub.GET("/notices", h.Notices)
	pub.GET("/features", h.Features)
	pub.GET("/points/packages", h.Packages)

	// Protected – require valid JWT in Authorization header
	api := e.Group("", mw.JWT(cfg.JWTKey()))
	api.GET("/session", h.Session)
	api.POST("/races/:id/unlock", h.UnlockRace)
	api.POST("/points/checkout", h.Checkout)
	api.GET("/mypage/transactions", h.PointHistory)
	api.GET("/mypage/history", h.ViewHistory)
	api.POST("/mypage/friend-bonus", h.FriendBonus)

	// Admin
	admin := e.Group("/admin", mw.JWT(cfg.JWTKey()), mw.Admin())
	admin.GET("/races", h.AdminRaces)
	admin.POST("/races", h.AdminCreateRace)
	admin.GET("/races/:id", h.AdminRaceDetail)
	admin.PUT("/races/:id", h.AdminUpdateRace)
	admin.DELETE("/races/:id", h.AdminDeleteRace)
	admin.PUT("/races/:id/horses", h.AdminReplaceHorses)
	admin.PUT("/races/:id/publish", h.AdminPublishRace)
	admin.PUT("/races/:id/show-on-top", h.AdminShowOnTop)
	admin.PUT("/races/:id/top-order", h.AdminTopOrder)
	admin.GET("/notices", h.AdminNotices)
	admin.POST("/notices", h.AdminCreateNotice)
	admin.PUT("/notices/:id", h.AdminUpdateNotice)
	admin.DELETE("/notices/:id", h.AdminDeleteNotice)
	admin.PUT("/notices/:id/publish", h.AdminToggleNoticePublished)
	admin.PUT("/notices/:id/new", h.AdminToggleNoticeNew)
	admin.GET("/features", h.AdminFeatures)
	admin.POST("/features", h.AdminCreateFeature)
	admin.PUT("/features/:id", h.AdminUpdateFeature)
	admin.DELETE("/features/:id", h.AdminDeleteFeature)
	admin.PUT("/features/:id/publish", h.AdminToggleFeaturePublished)
	admin.PUT("/features/reorder", h.AdminReorderFeatures)
	admin.PUT("/features/:id/move", h.AdminMoveFeature)
	admin.POST("/intake/analyze", h.AdminAnalyzeIntake)

	if cfg.Debug {
		logger.Info("starting server", zap.String("mode", "debug"), zap.String("addr", cfg.Port))
		if err := e.Start(cfg.Port); err != nil {
			logger.Fatal("server exited", zap.Error(err))
		}
		return
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	s := &http.Server{
		Addr:         ":443",
		Handler:      e,
		TLSConfig:    autoTLS.TLSConfig(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	if err := s.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
		logger.Error("tls server exited", zap.Error(err))
		os.Exit(1)
	}
}
