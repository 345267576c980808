package domain

import "time"

type NotificationKind string

const (
	NotifyMined          NotificationKind = "mined"
	NotifyBoost          NotificationKind = "boost"
	NotifyUpgrade        NotificationKind = "upgrade"
	NotifyReward         NotificationKind = "reward"
	NotifyReferral       NotificationKind = "referral"
	NotifyWithdrawal     NotificationKind = "withdrawal"
	NotifyMissionReady   NotificationKind = "mission_ready"
	NotifyBalanceChanged NotificationKind = "balance"
)

// Notification is a user-facing message describing a ledger event
type Notification struct {
	ID            string           `json:"id"`
	UserID        int64            `json:"user_id"`
	Kind          NotificationKind `json:"kind"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Amount        int64            `json:"amount,omitempty"`
	Currency      Currency         `json:"currency,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
