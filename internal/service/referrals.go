package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"sodmax/internal/domain"
	"sodmax/internal/economy"
	"sodmax/internal/logger"
	"sodmax/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const maxInviteeRefLen = 128

// ReferralService records invites and pays the one-time bonus on confirmation
type ReferralService struct {
	store    repository.Store
	ledger   *LedgerService
	events   EventSink
	notifier Notifier
	clock    clockwork.Clock
	bonus    int64
	locks    *keyedLocks
}

func NewReferralService(store repository.Store, ledger *LedgerService, events EventSink, notifier Notifier, clock clockwork.Clock, bonus int64) *ReferralService {
	return &ReferralService{
		store:    store,
		ledger:   ledger,
		events:   events,
		notifier: notifier,
		clock:    clock,
		bonus:    bonus,
		locks:    newKeyedLocks(),
	}
}

func (s *ReferralService) load(ctx context.Context, userID int64) (*domain.ReferralState, error) {
	st, err := s.store.GetReferralState(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ReferralState{UserID: userID}, nil
	}
	if err != nil {
		return nil, storeError("load referrals", err)
	}
	return st, nil
}

func (s *ReferralService) List(ctx context.Context, userID int64) ([]domain.Referral, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return st.Referrals, nil
}

// RegisterInvite stores a pending referral and counts it on the account
func (s *ReferralService) RegisterInvite(ctx context.Context, userID int64, inviteeRef string) (domain.Referral, error) {
	ref := strings.TrimSpace(inviteeRef)
	if ref == "" || len(ref) > maxInviteeRefLen {
		return domain.Referral{}, domain.ErrInvalidInput
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	st, err := s.load(ctx, userID)
	if err != nil {
		return domain.Referral{}, err
	}
	if st.HasInvitee(ref) {
		return domain.Referral{}, domain.ErrDuplicateInvite
	}

	r := domain.Referral{
		ID:         uuid.NewString(),
		InviteeRef: ref,
		Status:     domain.ReferralPending,
		CreatedAt:  s.clock.Now(),
	}
	st.Referrals = append(st.Referrals, r)
	if err := s.store.SaveReferralState(ctx, st); err != nil {
		return domain.Referral{}, storeError("save referrals", err)
	}

	_, err = s.ledger.Mutate(ctx, userID, func(a *domain.Account, _ time.Time) error {
		n, err := economy.CheckedAdd(a.ReferralCount, 1)
		if err != nil {
			return err
		}
		a.ReferralCount = n
		return nil
	})
	if err != nil {
		st.Referrals = st.Referrals[:len(st.Referrals)-1]
		if rerr := s.store.SaveReferralState(ctx, st); rerr != nil {
			logger.ForUser(userID).Error("referral rollback failed", "referral_id", r.ID, "error", rerr)
		}
		return domain.Referral{}, err
	}

	s.report(ctx, userID, domain.EventReferralInvite)
	return r, nil
}

// ConfirmReferral activates a pending referral and pays the bonus exactly once
func (s *ReferralService) ConfirmReferral(ctx context.Context, userID int64, referralID string) (domain.Referral, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	st, err := s.load(ctx, userID)
	if err != nil {
		return domain.Referral{}, err
	}
	i := st.Find(referralID)
	if i < 0 {
		return domain.Referral{}, domain.ErrNotFound
	}
	r := &st.Referrals[i]
	if r.Status == domain.ReferralActive || r.BonusIssued {
		return *r, domain.ErrAlreadyActive
	}

	bonus := s.bonus
	_, tx, err := s.ledger.Execute(ctx, userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		return economy.Event{
			Type:           domain.TxTypeReferralBonus,
			Currency:       domain.CurrencyToman,
			Amount:         bonus,
			IdempotencyKey: "referral:" + referralID,
			Meta:           map[string]interface{}{"referral_id": referralID, "invitee_ref": r.InviteeRef},
			Mutate: func(a *domain.Account) error {
				n, err := economy.CheckedAdd(a.ReferralEarnings, bonus)
				if err != nil {
					return err
				}
				a.ReferralEarnings = n
				return nil
			},
		}, nil
	})

	activatedAt := s.clock.Now()
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		// bonus was paid but the referral was never marked active
		r.Status = domain.ReferralActive
		r.BonusIssued = true
		r.ActivatedAt = &activatedAt
		if serr := s.store.SaveReferralState(ctx, st); serr != nil {
			logger.ForUser(userID).Warn("referral repair failed", "referral_id", referralID, "error", serr)
		}
		return *r, domain.ErrAlreadyActive
	}
	if err != nil {
		return *r, err
	}

	activatedAt = tx.CreatedAt
	r.Status = domain.ReferralActive
	r.BonusIssued = true
	r.ActivatedAt = &activatedAt
	if err := s.store.SaveReferralState(ctx, st); err != nil {
		logger.ForUser(userID).Error("referral bonus paid but state not saved", "referral_id", referralID, "error", err)
		return *r, storeError("save referrals", err)
	}

	s.report(ctx, userID, domain.EventReferralConfirm)
	return *r, nil
}

func (s *ReferralService) report(ctx context.Context, userID int64, event domain.MissionEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.OnQualifyingEvent(ctx, userID, event); err != nil {
		logger.ForUser(userID).Warn("mission progress update failed", "event", event, "error", err)
	}
}
