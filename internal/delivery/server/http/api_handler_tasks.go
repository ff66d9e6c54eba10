package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"offload/internal/domain/agent/background"
	agent "offload/internal/domain/agent/ports/agent"
	"offload/internal/shared/logging"
)

type taskHandler struct {
	tasks  TaskSource
	logger logging.Logger
}

// TaskResponse is the progress snapshot served for one task.
type TaskResponse struct {
	agent.TaskProgress
	ElapsedText string `json:"elapsed_text"`
}

// CancelResponse reports the result of a cancel request.
type CancelResponse struct {
	DisplayID string `json:"display_id"`
	Cancelled bool   `json:"cancelled"`
	Force     bool   `json:"force"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *taskHandler) list(c *gin.Context) {
	if h.tasks == nil {
		c.JSON(http.StatusOK, agent.StatusReport{Tasks: []agent.TaskStatus{}})
		return
	}
	report := h.tasks.Report()
	if report.Tasks == nil {
		report.Tasks = []agent.TaskStatus{}
	}
	c.JSON(http.StatusOK, report)
}

func (h *taskHandler) get(c *gin.Context) {
	number, ok := taskNumber(c)
	if !ok {
		return
	}
	progress, found := h.lookup(number)
	if !found {
		c.JSON(http.StatusNotFound, errorResponse{Error: fmt.Sprintf("%s not found", background.DisplayID(number))})
		return
	}
	c.JSON(http.StatusOK, TaskResponse{
		TaskProgress: progress,
		ElapsedText:  progress.Elapsed.Round(time.Millisecond).String(),
	})
}

func (h *taskHandler) cancel(c *gin.Context) {
	number, ok := taskNumber(c)
	if !ok {
		return
	}
	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid force value %q", raw)})
			return
		}
		force = parsed
	}
	if _, found := h.lookup(number); !found {
		c.JSON(http.StatusNotFound, errorResponse{Error: fmt.Sprintf("%s not found", background.DisplayID(number))})
		return
	}
	if !h.tasks.CancelByNumber(number, force) {
		c.JSON(http.StatusConflict, errorResponse{Error: fmt.Sprintf("%s already finished", background.DisplayID(number))})
		return
	}
	h.logger.Info("Cancelled %s via API (force=%t)", background.DisplayID(number), force)
	c.JSON(http.StatusOK, CancelResponse{DisplayID: background.DisplayID(number), Cancelled: true, Force: force})
}

func (h *taskHandler) lookup(number int) (agent.TaskProgress, bool) {
	if h.tasks == nil {
		return agent.TaskProgress{}, false
	}
	return h.tasks.Progress(number)
}

func taskNumber(c *gin.Context) (int, bool) {
	raw := c.Param("number")
	number, err := strconv.Atoi(raw)
	if err != nil || number <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid task number %q", raw)})
		return 0, false
	}
	return number, true
}
