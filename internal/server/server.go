package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/ldi/trellis/pkg/models"
)

// Store is the data the server exposes. *db.DB satisfies it.
type Store interface {
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	ListProjects(ctx context.Context, organizationID *string) ([]*models.Project, error)
	ListModules(ctx context.Context, projectID *string) ([]*models.Module, error)
	ListTasks(ctx context.Context, moduleID *string, status *models.Status) ([]*models.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Task, error)
	UpdateModuleStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.Module, error)
}

type Server struct {
	store  Store
	echo   *echo.Echo
	logger *log.Logger
}

type Option func(*Server)

// WithCache serves list endpoints through c.
func WithCache(c *Cache) Option {
	return func(s *Server) {
		if c != nil {
			s.store = c
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func NewServer(store Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(requestLogger(s.logger))
	s.register(e)
	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.logger.WithField("addr", addr).Info("board server listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// IsClosed reports whether err is the error Start returns after Shutdown.
func IsClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
