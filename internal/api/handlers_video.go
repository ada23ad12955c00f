package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/accio/accio/internal/backend/types"
)

type parseRequest struct {
	URL string `json:"url" validate:"max=4096"`
}

type downloadRequest struct {
	URL      string `json:"url" validate:"max=4096"`
	FormatID string `json:"formatId" validate:"max=128"`
}

type downloadResponse struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

// getView returns the complete consumer state.
// GET /api/v1/view
func (s *Server) getView(c echo.Context) error {
	return c.JSON(http.StatusOK, s.session.View())
}

// parseVideo extracts metadata for a URL. A newer parse supersedes this one.
// POST /api/v1/parse
func (s *Server) parseVideo(c echo.Context) error {
	var req parseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	info, err := s.session.Parse(c.Request().Context(), req.URL)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// enqueueDownload queues a download task. An empty url reuses the last parsed
// video; an empty formatId means "best".
// POST /api/v1/download
func (s *Server) enqueueDownload(c echo.Context) error {
	var req downloadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	taskID, err := s.session.Download(c.Request().Context(), req.URL, req.FormatID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, downloadResponse{TaskID: taskID, Message: "Download task started"})
}

// refreshTasks requests an immediate poll. The result arrives over the view.
// POST /api/v1/refresh
func (s *Server) refreshTasks(c echo.Context) error {
	s.session.Refresh()
	return c.NoContent(http.StatusAccepted)
}

// listTasks returns the tasks of the current view in backend order.
// GET /api/v1/tasks
func (s *Server) listTasks(c echo.Context) error {
	view := s.session.View()
	if status := c.QueryParam("status"); status != "" {
		filtered := view.Tasks[:0]
		for _, t := range view.Tasks {
			if t.Status == types.TaskStatus(status) {
				filtered = append(filtered, t)
			}
		}
		view.Tasks = filtered
	}
	return c.JSON(http.StatusOK, view.Tasks)
}
