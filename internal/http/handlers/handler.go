package handlers

import (
	"net/http"

	"sodmax/internal/http/middleware"
	"sodmax/internal/service"

	"github.com/gin-gonic/gin"
)

// Disconnector drops a user's live connections
type Disconnector interface {
	CloseUser(userID int64)
}

type Handler struct {
	Sessions *service.Sessions
	Hub      Disconnector
}

func NewHandler(sessions *service.Sessions, hub Disconnector) *Handler {
	return &Handler{Sessions: sessions, Hub: hub}
}

// session returns the caller's session, logging them in on first use.
// On false the response has already been written.
func (h *Handler) session(c *gin.Context) (*service.Session, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	sess, err := h.Sessions.Login(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return sess, true
}
