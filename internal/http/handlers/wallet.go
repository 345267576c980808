package handlers

import (
	"net/http"
	"strconv"

	"sodmax/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type WithdrawRequest struct {
	Amount    int64  `json:"amount"`
	RequestID string `json:"request_id"`
}

type SettleRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return
	}
	if len(req.RequestID) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	tx, err := sess.Withdraw(c.Request.Context(), req.Amount, req.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, tx)
}

// CompleteWithdrawal marks a user's pending withdrawal as paid (admin only)
func (h *Handler) CompleteWithdrawal(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}
	tx, err := h.Sessions.Withdrawals().Complete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// FailWithdrawal rejects a user's pending withdrawal and refunds it (admin only)
func (h *Handler) FailWithdrawal(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}
	var req SettleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
			return
		}
	}

	admin, _ := middleware.UserID(c)
	reason := req.Reason
	if reason == "" {
		reason = "rejected by admin " + strconv.FormatInt(admin, 10)
	}

	tx, err := h.Sessions.Withdrawals().Fail(c.Request.Context(), userID, c.Param("id"), reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func targetUser(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return 0, false
	}
	return userID, true
}
