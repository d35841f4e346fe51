package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/JackBungart/perceptive-crm/internal/config"
	"github.com/JackBungart/perceptive-crm/internal/crm"
	"github.com/JackBungart/perceptive-crm/internal/http/middleware"
	"github.com/JackBungart/perceptive-crm/internal/logger"
	"github.com/JackBungart/perceptive-crm/internal/metrics"
	"github.com/JackBungart/perceptive-crm/internal/model"
	"github.com/JackBungart/perceptive-crm/internal/repository"
	"github.com/JackBungart/perceptive-crm/internal/summary"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	usersRepo := repository.NewUsersRepository(mysqlDB)
	contactsRepo := repository.NewContactsRepository(mysqlDB)
	schedulesRepo := repository.NewSchedulesRepository(mysqlDB)
	messagesRepo := repository.NewMessagesRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	chDeliveriesRepo := repository.NewCHDeliveriesRepository(clickhouseDB)

	// services
	contactSvc := crm.NewContactService(
		contactsRepo, messagesRepo, outboxRepo, summary.NewGenerator(), logger.L(), nil,
	)
	scheduleSvc := crm.NewScheduleService(schedulesRepo, contactsRepo, logger.L())

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(usersRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:      rds,
		DefaultRPS: cfg.RateLimit.RPS,
		KeyPrefix:  "rl:user:",
		Window:     time.Second,
	})
	editMW := middleware.RequireRole(model.RoleMaster, model.RoleManagement)

	// routes
	v1 := e.Group("/v1", authMW, rlMW)

	v1.GET("/contacts", listContactsHandler(contactSvc))
	v1.GET("/contacts/:id", getContactHandler(contactSvc))
	v1.POST("/contacts", createContactHandler(contactSvc), editMW)
	v1.PUT("/contacts/:id/pipeline", updatePipelineHandler(contactSvc), editMW)
	v1.POST("/contacts/:id/summary", regenerateSummaryHandler(contactSvc), editMW)

	v1.POST("/schedules", createScheduleHandler(scheduleSvc))
	v1.GET("/schedules", listSchedulesHandler(scheduleSvc))
	v1.GET("/schedules/:id", getScheduleHandler(scheduleSvc))
	v1.DELETE("/schedules/:id", cancelScheduleHandler(scheduleSvc))

	v1.GET("/reports/deliveries", listDeliveriesHandler(chDeliveriesRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	logger.L().Sugar().Infof("http: listening on %s", addr)
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
