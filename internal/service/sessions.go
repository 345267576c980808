package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"sodmax/internal/config"
	"sodmax/internal/domain"
	"sodmax/internal/logger"
	"sodmax/internal/repository"

	"github.com/jonboulle/clockwork"
)

// Sessions owns every logged-in user's Session. All services share one ledger,
// so operations on one user serialize no matter which session issues them.
type Sessions struct {
	store       repository.Store
	clock       clockwork.Clock
	econ        config.Economy
	ledger      *LedgerService
	missions    *MissionService
	referrals   *ReferralService
	withdrawals *WithdrawalService
	audit       *AuditService
	emitter     *Emitter

	mu       sync.Mutex
	sessions map[int64]*Session
	logins   *keyedLocks
}

func NewSessions(store repository.Store, pusher Pusher, clock clockwork.Clock, econ config.Economy) *Sessions {
	emitter := NewEmitter(store, pusher)
	audit := NewAuditService(clock)
	ledger := NewLedgerService(store, emitter, clock)
	missions := NewMissionService(store, ledger, emitter, clock, econ)

	return &Sessions{
		store:       store,
		clock:       clock,
		econ:        econ,
		ledger:      ledger,
		missions:    missions,
		referrals:   NewReferralService(store, ledger, missions, emitter, clock, econ.ReferralBonus),
		withdrawals: NewWithdrawalService(ledger, audit, econ.MinWithdrawal),
		audit:       audit,
		emitter:     emitter,
		sessions:    make(map[int64]*Session),
		logins:      newKeyedLocks(),
	}
}

func (s *Sessions) Ledger() *LedgerService { return s.ledger }

func (s *Sessions) Withdrawals() *WithdrawalService { return s.withdrawals }

// Login returns the user's open session, opening one if needed. The account
// is created on first login and its ledger is verified before any timer starts.
func (s *Sessions) Login(ctx context.Context, userID int64) (*Session, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if sess, ok := s.Get(userID); ok {
		return sess, nil
	}

	unlock := s.logins.lock(userID)
	defer unlock()

	if sess, ok := s.Get(userID); ok {
		return sess, nil
	}

	template := domain.NewAccount(userID, s.econ.InitialMiningPower, s.clock.Now())
	template.SODBalance = s.econ.InitialSOD
	template.TomanBalance = s.econ.InitialToman
	acc, err := s.ledger.Open(ctx, template)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Verify(ctx, userID); err != nil {
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			s.audit.LogIntegrity(ctx, ie)
			logger.ForUser(userID).Error("login refused: ledger integrity violation", "error", err)
		}
		return nil, err
	}

	if _, err := s.missions.List(ctx, userID); err != nil {
		return nil, err
	}

	miner := NewMiner(userID, s.ledger, s.missions, s.clock, s.econ)
	if err := miner.Restore(ctx, acc); err != nil {
		miner.Close()
		return nil, err
	}

	sess := &Session{userID: userID, parent: s, miner: miner}

	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()

	ActiveSessions.Inc()
	s.audit.LogLogin(ctx, userID)
	return sess, nil
}

func (s *Sessions) Get(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Logout stops the user's timers before dropping the session
func (s *Sessions) Logout(ctx context.Context, userID int64) error {
	unlock := s.logins.lock(userID)
	defer unlock()

	return s.logoutLocked(ctx, userID)
}

// logoutLocked expects the caller to hold the user's login lock
func (s *Sessions) logoutLocked(ctx context.Context, userID int64) error {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if !ok {
		return domain.ErrNotFound
	}
	sess.close()
	ActiveSessions.Dec()
	s.audit.LogLogout(ctx, userID)
	return nil
}

// Reset logs the user out and erases everything stored for them
// under one login lock, so no request can log back in between the two steps.
func (s *Sessions) Reset(ctx context.Context, userID int64) error {
	unlock := s.logins.lock(userID)
	defer unlock()

	if err := s.logoutLocked(ctx, userID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if err := s.store.RemoveUser(ctx, userID); err != nil {
		return storeError("remove user", err)
	}
	s.audit.LogReset(ctx, userID)
	return nil
}

// Shutdown closes every open session
func (s *Sessions) Shutdown(ctx context.Context) {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[int64]*Session)
	s.mu.Unlock()

	for userID, sess := range all {
		sess.close()
		ActiveSessions.Dec()
		s.audit.LogLogout(ctx, userID)
	}
	logger.Info("sessions closed", "count", len(all))
}

// Session is one logged-in user's handle on the economy
type Session struct {
	userID int64
	parent *Sessions
	miner  *Miner
	closed atomic.Bool
}

func (s *Session) close() {
	s.closed.Store(true)
	s.miner.Close()
}

func (s *Session) check() error {
	if s.closed.Load() {
		return domain.ErrSessionClosed
	}
	return nil
}

func (s *Session) UserID() int64 { return s.userID }

func (s *Session) ManualMine(ctx context.Context) (MineResult, error) {
	return s.miner.ManualMine(ctx)
}

func (s *Session) ToggleAutoMining(ctx context.Context) (bool, error) {
	return s.miner.ToggleAutoMining(ctx)
}

// ActivateBoost buys the configured boost offer
func (s *Session) ActivateBoost(ctx context.Context) (*domain.Account, error) {
	return s.miner.ActivateBoost(ctx, s.parent.econ.Boost)
}

func (s *Session) UpgradeMiner(ctx context.Context) (UpgradeResult, error) {
	return s.miner.Upgrade(ctx)
}

func (s *Session) ClaimMission(ctx context.Context, missionID string) (domain.Mission, error) {
	if err := s.check(); err != nil {
		return domain.Mission{}, err
	}
	return s.parent.missions.Claim(ctx, s.userID, missionID)
}

func (s *Session) ClaimDailyReward(ctx context.Context) (DailyReward, error) {
	if err := s.check(); err != nil {
		return DailyReward{}, err
	}
	return s.parent.missions.ClaimDailyReward(ctx, s.userID)
}

func (s *Session) RegisterInvite(ctx context.Context, inviteeRef string) (domain.Referral, error) {
	if err := s.check(); err != nil {
		return domain.Referral{}, err
	}
	return s.parent.referrals.RegisterInvite(ctx, s.userID, inviteeRef)
}

func (s *Session) ConfirmReferral(ctx context.Context, referralID string) (domain.Referral, error) {
	if err := s.check(); err != nil {
		return domain.Referral{}, err
	}
	return s.parent.referrals.ConfirmReferral(ctx, s.userID, referralID)
}

func (s *Session) Withdraw(ctx context.Context, amount int64, requestID string) (*domain.Transaction, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.parent.withdrawals.Withdraw(ctx, s.userID, amount, requestID)
}

func (s *Session) Account(ctx context.Context) (*domain.Account, error) {
	acc, err := s.parent.store.GetAccount(ctx, s.userID)
	if err != nil {
		return nil, storeError("load account", err)
	}
	return acc, nil
}

func (s *Session) Transactions(ctx context.Context) ([]*domain.Transaction, error) {
	txs, err := s.parent.store.ListTransactions(ctx, s.userID)
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	return txs, nil
}

func (s *Session) Missions(ctx context.Context) ([]domain.Mission, error) {
	return s.parent.missions.List(ctx, s.userID)
}

func (s *Session) Referrals(ctx context.Context) ([]domain.Referral, error) {
	return s.parent.referrals.List(ctx, s.userID)
}

func (s *Session) Notifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	ns, err := s.parent.store.ListNotifications(ctx, s.userID, limit)
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	return ns, nil
}

// AutoMining reports whether the auto-mine ticker is running
func (s *Session) AutoMining() bool {
	return s.miner.AutoMining()
}
