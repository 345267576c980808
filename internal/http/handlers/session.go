package handlers

import (
	"errors"
	"net/http"

	"sodmax/internal/domain"
	"sodmax/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// Logout stops the caller's timers and closes their notification stream
func (h *Handler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.Sessions.Logout(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		respondError(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.CloseUser(userID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Reset erases every record of the caller
func (h *Handler) Reset(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.Sessions.Reset(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.CloseUser(userID)
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
