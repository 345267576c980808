package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sodmax/internal/config"
	"sodmax/internal/domain"
	"sodmax/internal/economy"
	"sodmax/internal/logger"
	"sodmax/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type DailyReward struct {
	Day     string `json:"day"`
	Streak  int    `json:"streak"`
	Reward  int64  `json:"reward"`
	Balance int64  `json:"toman_balance"`
}

// MissionService advances missions on qualifying events and pays rewards on claim
type MissionService struct {
	store     repository.Store
	ledger    *LedgerService
	notifier  Notifier
	clock     clockwork.Clock
	catalog   []domain.MissionTemplate
	loc       *time.Location
	dailyBase int64
	locks     *keyedLocks
}

func NewMissionService(store repository.Store, ledger *LedgerService, notifier Notifier, clock clockwork.Clock, econ config.Economy) *MissionService {
	return &MissionService{
		store:     store,
		ledger:    ledger,
		notifier:  notifier,
		clock:     clock,
		catalog:   econ.Missions,
		loc:       econ.Location,
		dailyBase: econ.DailyRewardBase,
		locks:     newKeyedLocks(),
	}
}

// load returns the user's missions synced to the catalog and the current day
func (s *MissionService) load(ctx context.Context, userID int64, now time.Time) (*domain.MissionState, error) {
	st, err := s.store.GetMissionState(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		st = &domain.MissionState{UserID: userID}
	case err != nil:
		return nil, storeError("load missions", err)
	}

	if economy.SyncMissions(st, s.catalog, now, s.loc) {
		if err := s.store.SaveMissionState(ctx, st); err != nil {
			return nil, storeError("save missions", err)
		}
	}
	return st, nil
}

// List returns the user's missions with daily rollover applied
func (s *MissionService) List(ctx context.Context, userID int64) ([]domain.Mission, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	st, err := s.load(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return st.Missions, nil
}

// OnQualifyingEvent advances every matching unclaimed mission by one and
// returns the missions that just became claimable. Nothing is paid here.
func (s *MissionService) OnQualifyingEvent(ctx context.Context, userID int64, event domain.MissionEvent) ([]domain.Mission, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.clock.Now()
	st, err := s.load(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	ready := economy.Advance(st, event, now)
	if err := s.store.SaveMissionState(ctx, st); err != nil {
		return nil, storeError("save missions", err)
	}

	for _, m := range ready {
		s.emit(ctx, &domain.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Kind:      domain.NotifyMissionReady,
			Title:     "Mission complete",
			Message:   fmt.Sprintf("%s: claim %d Toman", m.Title, m.Reward),
			CreatedAt: now,
		})
	}
	return ready, nil
}

// Claim pays a completed mission once per period
func (s *MissionService) Claim(ctx context.Context, userID int64, missionID string) (domain.Mission, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	st, err := s.load(ctx, userID, s.clock.Now())
	if err != nil {
		return domain.Mission{}, err
	}

	i := st.Find(missionID)
	if i < 0 {
		return domain.Mission{}, domain.ErrNotFound
	}
	m := &st.Missions[i]
	if m.Claimed {
		return *m, domain.ErrAlreadyClaimed
	}
	if !m.Completable() {
		return *m, domain.ErrNotCompletable
	}

	reward := m.Reward
	key := economy.MissionKey(m)
	_, tx, err := s.ledger.Execute(ctx, userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		return economy.Event{
			Type:           domain.TxTypeMissionReward,
			Currency:       domain.CurrencyToman,
			Amount:         reward,
			IdempotencyKey: key,
			Meta:           map[string]interface{}{"mission_id": missionID},
		}, nil
	})

	claimedAt := s.clock.Now()
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		// paid earlier but the claimed flag never made it to the store
		if prev, ferr := s.store.FindTransactionByKey(ctx, userID, key); ferr == nil {
			claimedAt = prev.CreatedAt
		}
		m.Claimed = true
		m.ClaimedAt = &claimedAt
		if serr := s.store.SaveMissionState(ctx, st); serr != nil {
			logger.ForUser(userID).Warn("mission claim repair failed", "mission_id", missionID, "error", serr)
		}
		return *m, domain.ErrAlreadyClaimed
	}
	if err != nil {
		return *m, err
	}

	m.Claimed = true
	claimedAt = tx.CreatedAt
	m.ClaimedAt = &claimedAt
	if err := s.store.SaveMissionState(ctx, st); err != nil {
		logger.ForUser(userID).Error("mission paid but claim flag not saved", "mission_id", missionID, "error", err)
		return *m, storeError("save missions", err)
	}
	return *m, nil
}

// ClaimDailyReward pays the daily reward once per calendar day
func (s *MissionService) ClaimDailyReward(ctx context.Context, userID int64) (DailyReward, error) {
	var claim economy.DailyClaim
	acc, _, err := s.ledger.Execute(ctx, userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		c, err := economy.NextDailyClaim(acc, s.dailyBase, now, s.loc)
		if err != nil {
			return economy.Event{}, err
		}
		claim = c
		return economy.Event{
			Type:           domain.TxTypeDailyReward,
			Currency:       domain.CurrencyToman,
			Amount:         c.Reward,
			IdempotencyKey: c.Key(),
			Meta:           map[string]interface{}{"streak": c.Streak},
			Mutate: func(a *domain.Account) error {
				economy.MarkDailyClaimed(a, c, now)
				return nil
			},
		}, nil
	})
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		return DailyReward{}, domain.ErrNotAvailable
	}
	if err != nil {
		return DailyReward{}, err
	}

	return DailyReward{
		Day:     claim.Day.Format("2006-01-02"),
		Streak:  claim.Streak,
		Reward:  claim.Reward,
		Balance: acc.TomanBalance,
	}, nil
}

func (s *MissionService) emit(ctx context.Context, n *domain.Notification) {
	if s.notifier != nil {
		s.notifier.Emit(ctx, n)
	}
}
