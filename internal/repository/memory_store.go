package repository

import (
	"context"
	"sync"

	"sodmax/internal/domain"
)

type userData struct {
	account       *domain.Account
	transactions  []*domain.Transaction
	byKey         map[string]int
	missions      *domain.MissionState
	referrals     *domain.ReferralState
	notifications []*domain.Notification
}

// MemoryStore keeps all state in process. Values are copied on the way in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]*userData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*userData)}
}

func (s *MemoryStore) user(userID int64) *userData {
	u, ok := s.users[userID]
	if !ok {
		u = &userData{byKey: make(map[string]int)}
		s.users[userID] = u
	}
	return u
}

func (s *MemoryStore) GetAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok || u.account == nil {
		return nil, domain.ErrNotFound
	}
	return u.account.Clone(), nil
}

func (s *MemoryStore) SaveAccount(ctx context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(acc.UserID).account = acc.Clone()
	return nil
}

func (s *MemoryStore) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(tx)
}

func (s *MemoryStore) appendLocked(tx *domain.Transaction) error {
	u := s.user(tx.UserID)
	if tx.IdempotencyKey != "" {
		if _, ok := u.byKey[tx.IdempotencyKey]; ok {
			return domain.ErrDuplicateTransaction
		}
		u.byKey[tx.IdempotencyKey] = len(u.transactions)
	}
	u.transactions = append(u.transactions, tx.Clone())
	return nil
}

func (s *MemoryStore) UpdateTransactionStatus(ctx context.Context, userID int64, txID string, status domain.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateStatusLocked(userID, txID, status)
}

func (s *MemoryStore) updateStatusLocked(userID int64, txID string, status domain.TransactionStatus) error {
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, tx := range u.transactions {
		if tx.ID == txID {
			if !tx.Settleable() {
				return domain.ErrNotPending
			}
			tx.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *MemoryStore) GetTransaction(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID]; ok {
		for _, tx := range u.transactions {
			if tx.ID == txID {
				return tx.Clone(), nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) FindTransactionByKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	i, ok := u.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u.transactions[i].Clone(), nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]*domain.Transaction, len(u.transactions))
	for i, tx := range u.transactions {
		out[i] = tx.Clone()
	}
	return out, nil
}

func (s *MemoryStore) GetMissionState(ctx context.Context, userID int64) (*domain.MissionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok || u.missions == nil {
		return nil, domain.ErrNotFound
	}
	return u.missions.Clone(), nil
}

func (s *MemoryStore) SaveMissionState(ctx context.Context, st *domain.MissionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(st.UserID).missions = st.Clone()
	return nil
}

func (s *MemoryStore) GetReferralState(ctx context.Context, userID int64) (*domain.ReferralState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok || u.referrals == nil {
		return nil, domain.ErrNotFound
	}
	return u.referrals.Clone(), nil
}

func (s *MemoryStore) SaveReferralState(ctx context.Context, st *domain.ReferralState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(st.UserID).referrals = st.Clone()
	return nil
}

func (s *MemoryStore) AppendNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *n
	u := s.user(n.UserID)
	u.notifications = append(u.notifications, &c)
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]*domain.Notification, 0, len(u.notifications))
	for i := len(u.notifications) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		c := *u.notifications[i]
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) RemoveUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, userID)
	return nil
}

// CommitLedgerEntry applies the whole entry under one lock or nothing at all
func (s *MemoryStore) CommitLedgerEntry(ctx context.Context, e LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(e.owner())
	seen := make(map[string]bool, len(e.Transactions))
	for _, tx := range e.Transactions {
		if tx.IdempotencyKey == "" {
			continue
		}
		if _, ok := u.byKey[tx.IdempotencyKey]; ok || seen[tx.IdempotencyKey] {
			return domain.ErrDuplicateTransaction
		}
		seen[tx.IdempotencyKey] = true
	}

	if e.StatusChange != nil {
		if err := s.updateStatusLocked(e.owner(), e.StatusChange.TxID, e.StatusChange.Status); err != nil {
			return err
		}
	}
	for _, tx := range e.Transactions {
		// keys were checked above
		_ = s.appendLocked(tx)
	}
	if e.Account != nil {
		u.account = e.Account.Clone()
	}
	return nil
}
