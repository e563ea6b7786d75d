package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/config"
	"github.com/jmehdipour/reminder-gateway/internal/http/middleware"
	"github.com/jmehdipour/reminder-gateway/internal/metrics"
	"github.com/jmehdipour/reminder-gateway/internal/policy"
	"github.com/jmehdipour/reminder-gateway/internal/processor"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"github.com/jmehdipour/reminder-gateway/internal/service/reminders"
	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, logger *zap.Logger) *Server {
	pol := policy.Config{
		MaxPrimaryAttempts: cfg.Policy.MaxPrimaryAttempts,
		MaxBackupAttempts:  cfg.Policy.MaxBackupAttempts,
		RetryDelay:         cfg.Policy.RetryDelay,
		SnoozeDelay:        cfg.Policy.SnoozeDelay,
	}

	// store + repos
	store := repository.NewSQLStore(mysqlDB, cfg.Kafka.Topic)

	var chEventsRepo repository.CHEventsRepository
	if clickhouseDB != nil {
		chEventsRepo = repository.NewCHEventsRepository(clickhouseDB)
	}

	// services and processors
	remindersSvc := reminders.New(store, rds, cfg.Scheduler.NudgeChannel, logger)
	outcomeProc := processor.NewOutcomeProcessor(store, pol, rds, logger)
	responseProc := processor.NewResponseProcessor(store, pol, logger)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// management surface
	authMW := middleware.APIKeyMiddleware(cfg.HTTP.APIKey)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:mgmt:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/reminders", createReminderHandler(remindersSvc))
	v1.GET("/reminders", listRemindersHandler(remindersSvc))
	v1.POST("/reminders/:id/call-now", callNowHandler(remindersSvc))
	if chEventsRepo != nil {
		v1.GET("/reports/calls", listCallEventsHandler(chEventsRepo))
	}

	// telephony surface
	sigMW := middleware.TwilioSignatureMiddleware(
		cfg.Twilio.AuthToken, cfg.Twilio.BaseURL, cfg.Twilio.ValidateSignatures)

	tw := e.Group("/twilio", sigMW)
	tw.POST("/voice", voiceHandler())
	tw.GET("/voice", voiceHandler())
	tw.POST("/gather", gatherHandler(responseProc))
	tw.POST("/call-status", callStatusHandler(outcomeProc))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.e }
