package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// defaultUserID is used when a request does not identify the caller.
const defaultUserID = "default_user"

// validTaskTypes are the task types a caller may request directly.
var validTaskTypes = map[string]bool{
	"task_breakdown":   true,
	"explanation":      true,
	"fact_check":       true,
	"coding":           true,
	"final_refinement": true,
}

// AskRequest is the JSON body of POST /ask.
type AskRequest struct {
	Prompt   string `json:"prompt"`
	TaskType string `json:"task_type"`
	UserID   string `json:"user_id"`
}

// askHandler handles POST /ask. It runs the full multi-agent reasoning
// pipeline and returns the assembled report.
func (s *Server) askHandler(c *echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Prompt == "" || req.TaskType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing 'prompt' or 'task_type'.")
	}
	if !validTaskTypes[req.TaskType] {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task_type provided.")
	}

	userID := req.UserID
	if userID == "" {
		userID = defaultUserID
	}

	report := s.orchestrator.Reason(c.Request().Context(), userID, req.Prompt, req.TaskType)
	return c.JSON(http.StatusOK, report)
}

// collaborateHandler handles POST /collaborate. It accepts form input
// and runs the pipeline with the generic task type.
func (s *Server) collaborateHandler(c *echo.Context) error {
	prompt := c.FormValue("prompt")
	userID := c.FormValue("user_id")

	if prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	report := s.orchestrator.Reason(c.Request().Context(), userID, prompt, "general")
	return c.JSON(http.StatusOK, report)
}
