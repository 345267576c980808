package service

import (
	"context"
	"encoding/json"
	"fmt"

	"sodmax/internal/domain"
	"sodmax/internal/logger"
)

// NotificationStore is the part of the store the emitter writes to
type NotificationStore interface {
	AppendNotification(ctx context.Context, n *domain.Notification) error
}

// Pusher delivers a payload to a user's live connections
type Pusher interface {
	SendToUser(userID int64, msg []byte)
}

type wsMessage struct {
	Type string               `json:"type"`
	Data *domain.Notification `json:"data"`
}

// Emitter stores a notification and pushes it to connected clients.
// Failures are logged and never reach the caller.
type Emitter struct {
	store  NotificationStore
	pusher Pusher
}

func NewEmitter(store NotificationStore, pusher Pusher) *Emitter {
	return &Emitter{store: store, pusher: pusher}
}

func (e *Emitter) Emit(ctx context.Context, n *domain.Notification) {
	if err := e.store.AppendNotification(ctx, n); err != nil {
		logger.Warn("failed to store notification", "user_id", n.UserID, "kind", n.Kind, "error", err)
	}

	if e.pusher == nil {
		return
	}
	payload, err := json.Marshal(wsMessage{Type: "notification", Data: n})
	if err != nil {
		logger.Warn("failed to encode notification", "user_id", n.UserID, "error", err)
		return
	}
	e.pusher.SendToUser(n.UserID, payload)
}

// notificationFor describes a committed transaction to the user
func notificationFor(acc *domain.Account, tx *domain.Transaction) *domain.Notification {
	n := &domain.Notification{
		UserID:        acc.UserID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
	}

	switch tx.Type {
	case domain.TxTypeMine, domain.TxTypeAutoMine:
		n.Kind = domain.NotifyMined
		n.Title = "Mined"
		n.Message = fmt.Sprintf("+%d SOD", tx.Amount)
	case domain.TxTypeBoost:
		n.Kind = domain.NotifyBoost
		n.Title = "Boost activated"
		if acc.BoostExpiresAt != nil {
			n.Message = fmt.Sprintf("x%s until %s", acc.MiningMultiplier.String(), acc.BoostExpiresAt.UTC().Format("15:04:05"))
		}
	case domain.TxTypeUpgrade:
		n.Kind = domain.NotifyUpgrade
		n.Title = "Miner upgraded"
		n.Message = fmt.Sprintf("Level %d, power %d", acc.Level, acc.MiningPower)
	case domain.TxTypeMissionReward, domain.TxTypeDailyReward:
		n.Kind = domain.NotifyReward
		n.Title = "Reward claimed"
		n.Message = fmt.Sprintf("+%d Toman", tx.Amount)
	case domain.TxTypeReferralBonus:
		n.Kind = domain.NotifyReferral
		n.Title = "Referral confirmed"
		n.Message = fmt.Sprintf("+%d Toman", tx.Amount)
	case domain.TxTypeWithdrawal:
		n.Kind = domain.NotifyWithdrawal
		switch tx.Status {
		case domain.TxStatusPending:
			n.Title = "Withdrawal requested"
		case domain.TxStatusSuccess:
			n.Title = "Withdrawal completed"
		default:
			n.Title = "Withdrawal failed"
		}
		n.Message = fmt.Sprintf("%d Toman", -tx.Amount)
	case domain.TxTypeWithdrawalRefund:
		n.Kind = domain.NotifyWithdrawal
		n.Title = "Withdrawal failed"
		n.Message = fmt.Sprintf("%d Toman returned", tx.Amount)
	default:
		n.Kind = domain.NotifyBalanceChanged
		n.Title = "Balance changed"
	}
	return n
}
