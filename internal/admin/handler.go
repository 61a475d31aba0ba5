package admin

import (
	"net/http"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/httpkit"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
	"github.com/lawjfmiranda/jurbot1/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler exposes the admin control over HTTP.
type Handler struct {
	control *Control
	val     *validator.Validator
	log     *logger.Logger
}

// NewHandler creates the admin HTTP handler.
func NewHandler(control *Control, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{control: control, val: val, log: log}
}

type pauseRequest struct {
	Minutes int `json:"minutes" validate:"gte=0,lte=1440"`
}

// HandleStatus returns the pause and rate window state.
func (h *Handler) HandleStatus(c *gin.Context) {
	status, err := h.control.Status(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "admin store unavailable", nil)
		return
	}
	httpkit.OK(c, status)
}

// HandlePause activates the pause flag, optionally timed.
func (h *Handler) HandlePause(c *gin.Context) {
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "minutes must be between 0 and 1440", nil)
		return
	}

	d := time.Duration(req.Minutes) * time.Minute
	if err := h.control.Pause(c.Request.Context(), d); err != nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "admin store unavailable", nil)
		return
	}

	h.log.Info("processing paused", "minutes", req.Minutes)
	status, _ := h.control.Status(c.Request.Context())
	httpkit.OK(c, status)
}

// HandleResume clears the pause flag.
func (h *Handler) HandleResume(c *gin.Context) {
	if err := h.control.Resume(c.Request.Context()); err != nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "admin store unavailable", nil)
		return
	}

	h.log.Info("processing resumed")
	status, _ := h.control.Status(c.Request.Context())
	httpkit.OK(c, status)
}
