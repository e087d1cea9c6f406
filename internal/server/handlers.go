package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/ldi/trellis/internal/db"
	"github.com/ldi/trellis/pkg/models"
)

// maxBodySize bounds status update payloads.
const maxBodySize = 16 * 1024

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) register(e *echo.Echo) {
	e.GET("/healthz", s.healthz)

	api := e.Group("/api")
	api.GET("/organizations", s.listOrganizations)
	api.GET("/organizations/:id/projects", s.listProjects)
	api.GET("/projects/:id/modules", s.listModules)
	api.GET("/modules/:id/tasks", s.listTasks)
	api.PATCH("/tasks/:id/status", s.updateTaskStatus)
	api.PATCH("/modules/:id/status", s.updateModuleStatus)
}

func (s *Server) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) listOrganizations(c echo.Context) error {
	orgs, err := s.store.ListOrganizations(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(orgs))
}

func (s *Server) listProjects(c echo.Context) error {
	id := c.Param("id")
	projects, err := s.store.ListProjects(c.Request().Context(), &id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(projects))
}

func (s *Server) listModules(c echo.Context) error {
	id := c.Param("id")
	modules, err := s.store.ListModules(c.Request().Context(), &id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(modules))
}

func (s *Server) listTasks(c echo.Context) error {
	id := c.Param("id")
	var status *models.Status
	if v := strings.TrimSpace(c.QueryParam("status")); v != "" {
		st := models.Status(v)
		if !st.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status filter "+v)
		}
		status = &st
	}
	tasks, err := s.store.ListTasks(c.Request().Context(), &id, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(tasks))
}

func (s *Server) updateTaskStatus(c echo.Context) error {
	u, err := decodeStatusUpdate(c)
	if err != nil {
		return err
	}
	task, err := s.store.UpdateTaskStatus(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) updateModuleStatus(c echo.Context) error {
	u, err := decodeStatusUpdate(c)
	if err != nil {
		return err
	}
	module, err := s.store.UpdateModuleStatus(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, module)
}

func decodeStatusUpdate(c echo.Context) (models.StatusUpdate, error) {
	var u models.StatusUpdate
	body := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		return u, echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	id := c.Param("id")
	if u.ID != "" && u.ID != id {
		return u, echo.NewHTTPError(http.StatusBadRequest, "body id does not match path")
	}
	if u.Status == "" {
		return u, echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	u.ID = id
	return u, nil
}

// handleError writes every failure as {"message": ...}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	case errors.Is(err, db.ErrNotFound):
		code = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, db.ErrInvalidStatus):
		code = http.StatusUnprocessableEntity
		msg = err.Error()
	default:
		s.logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if werr := c.JSON(code, errorResponse{Message: msg}); werr != nil {
		s.logger.WithError(werr).Warn("failed to write error response")
	}
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
