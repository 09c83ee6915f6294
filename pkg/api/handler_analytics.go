package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/quorum/pkg/analytics"
)

// parseWindow builds an analytics window from start_time, end_time and
// user_id query parameters. Timestamps must be RFC3339.
func parseWindow(c *echo.Context) (analytics.Window, *echo.HTTPError) {
	var w analytics.Window

	if v := c.QueryParam("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return w, echo.NewHTTPError(http.StatusBadRequest, "invalid start_time: must be RFC3339")
		}
		w.Start = t
	}
	if v := c.QueryParam("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return w, echo.NewHTTPError(http.StatusBadRequest, "invalid end_time: must be RFC3339")
		}
		w.End = t
	}
	w.UserID = c.QueryParam("user_id")
	return w, nil
}

// conversationAnalyticsHandler handles GET /analytics/conversation/:id.
func (s *Server) conversationAnalyticsHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}
	if s.analytics == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analytics not available")
	}

	summary, err := s.analytics.Summary(c.Request().Context(), conversationID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// performanceHandler handles GET /analytics/performance.
func (s *Server) performanceHandler(c *echo.Context) error {
	if s.analytics == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analytics not available")
	}
	w, httpErr := parseWindow(c)
	if httpErr != nil {
		return httpErr
	}

	metrics, err := s.analytics.Performance(c.Request().Context(), w)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, metrics)
}

// taskDistributionHandler handles GET /analytics/tasks.
func (s *Server) taskDistributionHandler(c *echo.Context) error {
	if s.analytics == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analytics not available")
	}
	w, httpErr := parseWindow(c)
	if httpErr != nil {
		return httpErr
	}

	stats, err := s.analytics.TaskDistribution(c.Request().Context(), w)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// commonErrorsHandler handles GET /analytics/errors.
func (s *Server) commonErrorsHandler(c *echo.Context) error {
	if s.analytics == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analytics not available")
	}
	w, httpErr := parseWindow(c)
	if httpErr != nil {
		return httpErr
	}

	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be between 1 and 100")
		}
		limit = n
	}

	patterns, err := s.analytics.CommonErrors(c.Request().Context(), limit, w)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, patterns)
}
