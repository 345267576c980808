package service

import (
	"context"
	"log/slog"
	"time"

	"sodmax/internal/domain"
	"sodmax/internal/logger"

	"github.com/jonboulle/clockwork"
)

// AuditService writes the audit trail as structured log records
type AuditService struct {
	log   *slog.Logger
	clock clockwork.Clock
}

func NewAuditService(clock clockwork.Clock) *AuditService {
	return &AuditService{log: logger.With("component", "audit"), clock: clock}
}

// Log emits one audit entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	entry := domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		CreatedAt: s.clock.Now(),
	}

	level := slog.LevelInfo
	if category == domain.AuditCategoryIntegrity {
		level = slog.LevelError
	}
	s.log.Log(ctx, level, "audit",
		"user_id", entry.UserID,
		"action", entry.Action,
		"category", entry.Category,
		"details", entry.Details,
		"at", entry.CreatedAt.Format(time.RFC3339),
	)
}

func (s *AuditService) LogLogin(ctx context.Context, userID int64) {
	s.Log(ctx, userID, domain.AuditActionLogin, domain.AuditCategorySession, nil)
}

func (s *AuditService) LogLogout(ctx context.Context, userID int64) {
	s.Log(ctx, userID, domain.AuditActionLogout, domain.AuditCategorySession, nil)
}

func (s *AuditService) LogReset(ctx context.Context, userID int64) {
	s.Log(ctx, userID, domain.AuditActionReset, domain.AuditCategorySession, nil)
}

// LogWithdrawRequest logs a withdrawal request
func (s *AuditService) LogWithdrawRequest(ctx context.Context, userID int64, amount int64, txID string) {
	details := map[string]interface{}{
		"amount":         amount,
		"transaction_id": txID,
	}

	s.Log(ctx, userID, domain.AuditActionWithdrawRequest, domain.AuditCategoryWithdrawal, details)
}

// LogWithdrawApprove logs a withdrawal approval
func (s *AuditService) LogWithdrawApprove(ctx context.Context, userID int64, txID string) {
	details := map[string]interface{}{
		"transaction_id": txID,
	}

	s.Log(ctx, userID, domain.AuditActionWithdrawApprove, domain.AuditCategoryWithdrawal, details)
}

// LogWithdrawReject logs a withdrawal rejection
func (s *AuditService) LogWithdrawReject(ctx context.Context, userID int64, txID, reason string) {
	details := map[string]interface{}{
		"transaction_id": txID,
		"reason":         reason,
	}

	s.Log(ctx, userID, domain.AuditActionWithdrawReject, domain.AuditCategoryWithdrawal, details)
}

// LogIntegrity records a conservation mismatch found at load time
func (s *AuditService) LogIntegrity(ctx context.Context, ie *domain.IntegrityError) {
	details := map[string]interface{}{
		"currency": string(ie.Currency),
		"balance":  ie.Balance,
		"sum":      ie.Sum,
	}

	s.Log(ctx, ie.UserID, domain.AuditActionConservationMismatch, domain.AuditCategoryIntegrity, details)
}
