package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/realtime"
	"github.com/sakif/bird-dropper/internal/service"
)

// NotificationHandler serves the notification list and the live socket.
type NotificationHandler struct {
	notifications *service.NotificationService
	hub           *realtime.Hub
	logger        *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService, hub *realtime.Hub, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, hub: hub, logger: logger}
}

// HandleList returns the newest activity on the caller's posts.
//
// HTTP: GET /api/notifications
// Response: {"success": true, "notifications": ["robin liked your post", ...]}
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	list, err := h.notifications.Recent(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"notifications": list,
	})
}

// HandleSocket upgrades to a WebSocket that receives live events.
//
// HTTP: GET /ws
func (h *NotificationHandler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	h.hub.Serve(w, r, user.ID)
}
