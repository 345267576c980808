package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Mine(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	res, err := sess.ManualMine(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ToggleAutoMining(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	enabled, err := sess.ToggleAutoMining(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auto_mining_enabled": enabled})
}

func (h *Handler) ActivateBoost(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	acc, err := sess.ActivateBoost(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sod_balance":       acc.SODBalance,
		"mining_multiplier": acc.MiningMultiplier.String(),
		"boost_expires_at":  acc.BoostExpiresAt,
	})
}

func (h *Handler) Upgrade(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	res, err := sess.UpgradeMiner(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
