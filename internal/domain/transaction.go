package domain

import "time"

type TransactionType string

const (
	TxTypeMine             TransactionType = "mine"
	TxTypeAutoMine         TransactionType = "auto_mine"
	TxTypeBoost            TransactionType = "boost"
	TxTypeUpgrade          TransactionType = "upgrade"
	TxTypeMissionReward    TransactionType = "mission_reward"
	TxTypeDailyReward      TransactionType = "daily_reward"
	TxTypeReferralBonus    TransactionType = "referral_bonus"
	TxTypeWithdrawal       TransactionType = "withdrawal"
	TxTypeWithdrawalRefund TransactionType = "withdrawal_refund"
	TxTypeOpeningBalance   TransactionType = "opening_balance"
)

type TransactionStatus string

const (
	TxStatusSuccess TransactionStatus = "success"
	TxStatusPending TransactionStatus = "pending"
	TxStatusFailed  TransactionStatus = "failed"
)

// Transaction is an append-only ledger record. Only withdrawals move from pending
// to success or failed; nothing else is ever rewritten.
type Transaction struct {
	ID             string                 `db:"id" json:"id"`
	UserID         int64                  `db:"user_id" json:"user_id"`
	Type           TransactionType        `db:"type" json:"type"`
	Amount         int64                  `db:"amount" json:"amount"`
	Currency       Currency               `db:"currency" json:"currency"`
	Status         TransactionStatus      `db:"status" json:"status"`
	IdempotencyKey string                 `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Meta           map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
}

// Settleable reports whether the transaction may still change status
func (t *Transaction) Settleable() bool {
	return t.Type == TxTypeWithdrawal && t.Status == TxStatusPending
}

func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.Meta != nil {
		c.Meta = make(map[string]interface{}, len(t.Meta))
		for k, v := range t.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}
