package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accio/accio/internal/config"
	"github.com/accio/accio/internal/notify"
	"github.com/accio/accio/internal/poller"
)

type statusResponse struct {
	Version      string          `json:"version"`
	StartTime    time.Time       `json:"startTime"`
	Uptime       string          `json:"uptime"`
	Backend      string          `json:"backend,omitempty"`
	Poll         poller.Stats    `json:"poll"`
	Counters     notify.Counters `json:"counters"`
	TaskCount    int             `json:"taskCount"`
	ViewVersion  uint64          `json:"viewVersion"`
	Clients      int             `json:"clients"`
	Submitting   bool            `json:"submitting"`
	HasLastVideo bool            `json:"hasLastVideo"`
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports poll health and notification counters.
// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	view := s.session.View()

	resp := statusResponse{
		Version:      config.Version,
		StartTime:    s.startTime.UTC(),
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Poll:         view.Poll,
		Counters:     view.Counters,
		TaskCount:    len(view.Tasks),
		ViewVersion:  view.Version,
		Submitting:   view.Submitting,
		HasLastVideo: view.Video != nil,
	}
	if s.cfg != nil {
		resp.Backend = s.cfg.Backend.APIURL
	}
	if s.hub != nil {
		resp.Clients = s.hub.ClientCount()
	}
	return c.JSON(http.StatusOK, resp)
}

func intQuery(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return fallback
}
