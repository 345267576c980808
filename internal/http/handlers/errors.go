package handlers

import (
	"errors"
	"net/http"

	"sodmax/internal/domain"
	"sodmax/internal/logger"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrBelowMinimum, http.StatusBadRequest, "below_minimum"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrAlreadyClaimed, http.StatusConflict, "already_claimed"},
	{domain.ErrAlreadyActive, http.StatusConflict, "already_active"},
	{domain.ErrBoostAlreadyActive, http.StatusConflict, "boost_already_active"},
	{domain.ErrDuplicateTransaction, http.StatusConflict, "duplicate_transaction"},
	{domain.ErrDuplicateInvite, http.StatusConflict, "duplicate_invite"},
	{domain.ErrNotPending, http.StatusConflict, "not_pending"},
	{domain.ErrNotAvailable, http.StatusConflict, "not_available"},
	{domain.ErrReentrantOperation, http.StatusConflict, "operation_in_progress"},
	{domain.ErrSessionClosed, http.StatusConflict, "session_closed"},
	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{domain.ErrNotCompletable, http.StatusUnprocessableEntity, "not_completable"},
	{domain.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{domain.ErrPersistence, http.StatusServiceUnavailable, "store_unavailable"},
	{domain.ErrIntegrity, http.StatusInternalServerError, "integrity_violation"},
}

// respondError writes the JSON error for err. Unknown errors become 500.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.Error("request failed", "path", c.FullPath(), "error", err)
			}
			c.JSON(m.status, gin.H{"error": m.code})
			return
		}
	}
	logger.Error("unexpected error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}
