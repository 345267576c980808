package handlers

import (
	"net/http"

	"sodmax/internal/domain"

	"github.com/gin-gonic/gin"
)

type InviteRequest struct {
	InviteeRef string `json:"invitee_ref"`
}

func (h *Handler) Referrals(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	list, err := sess.Referrals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.Referral{}
	}
	c.JSON(http.StatusOK, gin.H{"referrals": list})
}

func (h *Handler) RegisterInvite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
		return
	}

	sess, ok := h.session(c)
	if !ok {
		return
	}
	r, err := sess.RegisterInvite(c.Request.Context(), req.InviteeRef)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) ConfirmReferral(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	r, err := sess.ConfirmReferral(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
