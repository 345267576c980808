package handlers

import (
	"net/http"

	"sodmax/internal/domain"

	"github.com/gin-gonic/gin"
)

// MissionView adds the completion percentage the client renders
type MissionView struct {
	domain.Mission
	Percent     int  `json:"percent"`
	Completable bool `json:"completable"`
}

func missionView(m domain.Mission) MissionView {
	return MissionView{Mission: m, Percent: m.Percent(), Completable: m.Completable()}
}

func (h *Handler) Missions(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	list, err := sess.Missions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]MissionView, 0, len(list))
	for _, m := range list {
		out = append(out, missionView(m))
	}
	c.JSON(http.StatusOK, gin.H{"missions": out})
}

func (h *Handler) ClaimMission(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	m, err := sess.ClaimMission(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, missionView(m))
}

func (h *Handler) ClaimDailyReward(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	r, err := sess.ClaimDailyReward(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
