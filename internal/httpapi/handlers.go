package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tidyhost/engage/internal/alert"
	"github.com/tidyhost/engage/internal/backend"
	"github.com/tidyhost/engage/internal/detector"
	"github.com/tidyhost/engage/internal/display"
	"github.com/tidyhost/engage/internal/errors"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/notification"
	"github.com/tidyhost/engage/internal/onboarding"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The display feed is same-host admin UI.
	},
}

// Handler exposes the engagement subsystem over HTTP for the admin session.
type Handler struct {
	center    *notification.Center
	detector  *detector.Detector
	sequencer *alert.Sequencer
	install   *onboarding.InstallMachine
	push      *onboarding.PushMachine
	hub       *display.Hub
	logger    *logger.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	center *notification.Center,
	det *detector.Detector,
	seq *alert.Sequencer,
	install *onboarding.InstallMachine,
	push *onboarding.PushMachine,
	hub *display.Hub,
	log *logger.Logger,
) *Handler {
	return &Handler{
		center:    center,
		detector:  det,
		sequencer: seq,
		install:   install,
		push:      push,
		hub:       hub,
		logger:    log.WithComponent("httpapi"),
	}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status handles GET /api/v1/status with a snapshot of the subsystem.
func (h *Handler) Status(c *gin.Context) {
	state, baseline := h.detector.Status()

	c.JSON(http.StatusOK, gin.H{
		"detector": gin.H{
			"state":           state,
			"baseline_order":  baseline,
			"polls_completed": h.detector.PollCount(),
		},
		"notifications": gin.H{
			"visible": len(h.center.Visible()),
			"total":   h.center.Count(),
		},
		"onboarding": gin.H{
			"install": h.install.State(),
			"push":    h.push.State(),
		},
		"sessions": h.hub.ConnectionCount(),
	})
}

// ListNotifications handles GET /api/v1/notifications.
func (h *Handler) ListNotifications(c *gin.Context) {
	items := h.center.Visible()
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

// DismissNotification handles DELETE /api/v1/notifications/:id.
func (h *Handler) DismissNotification(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	if !h.center.Dismiss(id) {
		errors.AbortWithNotFound(c, "notification not found", map[string]interface{}{"id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dismissed": id})
}

// HoverStart handles POST /api/v1/notifications/:id/hover.
func (h *Handler) HoverStart(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	if !h.center.HoverStart(id) {
		errors.AbortWithNotFound(c, "notification not found", map[string]interface{}{"id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": id})
}

// HoverEnd handles DELETE /api/v1/notifications/:id/hover.
func (h *Handler) HoverEnd(c *gin.Context) {
	id, ok := h.notificationID(c)
	if !ok {
		return
	}

	if !h.center.HoverEnd(id) {
		errors.AbortWithNotFound(c, "notification not found", map[string]interface{}{"id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumed": id})
}

func (h *Handler) notificationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errors.AbortWithBadRequest(c, "invalid notification id", map[string]interface{}{"id": c.Param("id")})
		return 0, false
	}
	return id, true
}

type debugAlertRequest struct {
	OrderID      int64  `json:"orderId"`
	CustomerName string `json:"customerName"`
	PackageName  string `json:"packageName"`
}

// DebugAlert handles POST /api/v1/debug/alert. It runs the full alert
// pipeline with a synthetic order so operators can verify sound and speech
// output on site.
func (h *Handler) DebugAlert(c *gin.Context) {
	req := debugAlertRequest{OrderID: -1, CustomerName: "Test Customer", PackageName: "Test Package"}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"error": err.Error()})
			return
		}
	}

	order := backend.Order{ID: req.OrderID, CustomerName: req.CustomerName, PackageName: req.PackageName}
	// The sound and speech stages run after this handler returns; they need
	// a context that outlives the request.
	h.sequencer.HandleOrder(context.WithoutCancel(c.Request.Context()), order)

	h.logger.Info("debug alert triggered",
		slog.Int64("order_id", order.ID))
	c.JSON(http.StatusOK, gin.H{"triggered": true})
}

type sessionStartRequest struct {
	UserAgent string `json:"userAgent"`
}

// StartSession handles POST /api/v1/onboarding/session. The session's user
// agent drives the platform classification that gates the install banner.
func (h *Handler) StartSession(c *gin.Context) {
	var req sessionStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	platform := onboarding.Classify(req.UserAgent)
	h.install.StartSession(platform)

	c.JSON(http.StatusOK, gin.H{
		"platform":  platform,
		"installed": h.install.Installed(),
		"install":   h.install.State(),
		"push":      h.push.State(),
	})
}

// InstallCaptured handles POST /api/v1/onboarding/install/captured. The
// session reports that the platform handed it a deferred install prompt.
func (h *Handler) InstallCaptured(c *gin.Context) {
	h.install.HandleCapture()
	c.JSON(http.StatusOK, gin.H{"state": h.install.State()})
}

// InstallPrompt handles POST /api/v1/onboarding/install/prompt.
func (h *Handler) InstallPrompt(c *gin.Context) {
	choice, err := h.install.RequestInstall(c.Request.Context())
	if err != nil {
		errors.AbortWithConflict(c, "install prompt not available", map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"choice": choice, "state": h.install.State()})
}

// InstallDismiss handles POST /api/v1/onboarding/install/dismiss.
func (h *Handler) InstallDismiss(c *gin.Context) {
	h.install.DismissBanner()
	c.JSON(http.StatusOK, gin.H{"state": h.install.State()})
}

// AppInstalled handles POST /api/v1/onboarding/installed. The milestone
// marks the install machine terminal and arms the push prompt.
func (h *Handler) AppInstalled(c *gin.Context) {
	if err := h.install.HandleInstalled(c.Request.Context()); err != nil {
		errors.AbortWithInternal(c, "failed to record install", map[string]interface{}{"error": err.Error()})
		return
	}
	h.push.HandleAppInstalled(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"install": h.install.State(),
		"push":    h.push.State(),
	})
}

// PushAccept handles POST /api/v1/onboarding/push/accept.
func (h *Handler) PushAccept(c *gin.Context) {
	if err := h.push.Accept(c.Request.Context()); err != nil {
		errors.AbortWithConflict(c, "push subscription failed", map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.push.State()})
}

// PushDismiss handles POST /api/v1/onboarding/push/dismiss.
func (h *Handler) PushDismiss(c *gin.Context) {
	h.push.Dismiss(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"state": h.push.State()})
}

// DisplayFeed handles GET /ws. The connection receives display events and
// serves capability requests until it closes.
func (h *Handler) DisplayFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	h.hub.Serve(conn)
}
