package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hudsor01/tenant-flow-sub013/internal/app"
	"github.com/hudsor01/tenant-flow-sub013/internal/config"
	"github.com/hudsor01/tenant-flow-sub013/internal/coordination"
	apperrors "github.com/hudsor01/tenant-flow-sub013/internal/errors"
	"github.com/hudsor01/tenant-flow-sub013/internal/platform/correlation"
	"github.com/hudsor01/tenant-flow-sub013/internal/realtime"
)

const correlationHeader = "X-Correlation-ID"

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	broadcaster *realtime.Broadcaster
	app         *app.Service
	instances   *coordination.InstanceRegistry
	limits      *ConnectionLimits
	db          *pgxpool.Pool
	redisClient *goredis.Client
	startTime   time.Time

	// Test seams for health checks; nil in production.
	redisHealthCheck    redisPinger
	postgresHealthCheck postgresPinger
}

func NewServer(cfg *config.Config, broadcaster *realtime.Broadcaster, appService *app.Service, instances *coordination.InstanceRegistry, db *pgxpool.Pool, redisClient *goredis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		broadcaster: broadcaster,
		app:         appService,
		instances:   instances,
		limits:      NewConnectionLimits(cfg.MaxConnectionsPerIP, cfg.ConnectionRatePerSecond, cfg.ConnectionRateBurst),
		db:          db,
		redisClient: redisClient,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// correlationMiddleware propagates the caller's correlation ID, minting one
// when the header is absent, and echoes it back on the response.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(correlationHeader)
			if id == "" {
				id = correlation.NewID()
			}

			ctx := correlation.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(correlationHeader, id)

			return next(c)
		}
	}
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
