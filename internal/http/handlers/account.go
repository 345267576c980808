package handlers

import (
	"net/http"
	"strconv"
	"time"

	"sodmax/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// AccountView is the account plus state derived at read time
type AccountView struct {
	*domain.Account
	BoostActive         bool   `json:"boost_active"`
	EffectiveMultiplier string `json:"effective_multiplier"`
	AutoMiningRunning   bool   `json:"auto_mining_running"`
}

func (h *Handler) Account(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	acc, err := sess.Account(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	c.JSON(http.StatusOK, AccountView{
		Account:             acc,
		BoostActive:         acc.BoostActive(now),
		EffectiveMultiplier: acc.EffectiveMultiplier(now).String(),
		AutoMiningRunning:   sess.AutoMining(),
	})
}

func (h *Handler) Transactions(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	txs, err := sess.Transactions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// Notifications returns the newest notifications first. ?limit= caps the count.
func (h *Handler) Notifications(c *gin.Context) {
	limit := defaultNotificationLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	ns, err := sess.Notifications(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if ns == nil {
		ns = []*domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": ns})
}
