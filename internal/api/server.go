package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/accio/accio/internal/api/handlers"
	apimw "github.com/accio/accio/internal/api/middleware"
	"github.com/accio/accio/internal/api/ratelimit"
	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/config"
	"github.com/accio/accio/internal/history"
	"github.com/accio/accio/internal/scheduler"
	"github.com/accio/accio/internal/session"
	"github.com/accio/accio/internal/websocket"
)

// Session is the part of the session the API drives.
type Session interface {
	View() session.View
	Parse(ctx context.Context, input string) (*types.VideoInfo, error)
	Download(ctx context.Context, input, formatID string) (string, error)
	Refresh()
}

// Deps are the collaborators of the server. Only Session is required.
type Deps struct {
	Session   Session
	Hub       *websocket.Hub
	History   *history.Service
	Scheduler *scheduler.Scheduler
	Logs      LogsProvider
	Limiter   *ratelimit.Limiter
}

// Server handles HTTP requests for the accio companion API.
type Server struct {
	echo      *echo.Echo
	session   Session
	hub       *websocket.Hub
	history   *history.Service
	scheduler *scheduler.Scheduler
	logs      LogsProvider
	limiter   *ratelimit.Limiter
	logger    zerolog.Logger
	cfg       *config.Config
	startTime time.Time
}

// NewServer creates a new API server instance.
func NewServer(deps Deps, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	s := &Server{
		echo:      e,
		session:   deps.Session,
		hub:       deps.Hub,
		history:   deps.History,
		scheduler: deps.Scheduler,
		logs:      deps.Logs,
		limiter:   deps.Limiter,
		logger:    logger.With().Str("component", "api").Logger(),
		cfg:       cfg,
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	// Request body size limit
	s.echo.Use(middleware.BodyLimit("1M"))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Warn().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.hub != nil {
		s.echo.GET("/ws", s.hub.HandleWebSocket)
	}

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.GET("/view", s.getView)
	api.GET("/tasks", s.listTasks)
	api.POST("/refresh", s.refreshTasks)

	var submit []echo.MiddlewareFunc
	if s.limiter != nil {
		submit = append(submit, s.limiter.Middleware())
	}
	api.POST("/parse", s.parseVideo, submit...)
	api.POST("/download", s.enqueueDownload, submit...)

	if s.history != nil {
		history.NewHandlers(s.history).RegisterRoutes(api.Group("/history"))
	}
	if s.scheduler != nil {
		handlers.NewSchedulerHandler(s.scheduler).RegisterRoutes(api.Group("/scheduler/tasks"))
	}
	if s.logs != nil {
		NewLogsHandlers(s.logs).RegisterRoutes(api.Group("/system/logs"))
	}
}

// Start starts the HTTP server.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
