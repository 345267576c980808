package domain

import "time"

// AuditLog is an audit trail entry for actions that matter outside the ledger itself
type AuditLog struct {
	UserID    int64                  `json:"user_id"`
	Action    string                 `json:"action"`
	Category  string                 `json:"category"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

// Audit action categories
const (
	AuditCategorySession    = "session"
	AuditCategoryWithdrawal = "withdrawal"
	AuditCategoryIntegrity  = "integrity"
)

// Audit actions
const (
	AuditActionLogin  = "login"
	AuditActionLogout = "logout"
	AuditActionReset  = "reset"

	AuditActionWithdrawRequest = "withdraw_request"
	AuditActionWithdrawApprove = "withdraw_approve"
	AuditActionWithdrawReject  = "withdraw_reject"

	AuditActionConservationMismatch = "conservation_mismatch"
)
