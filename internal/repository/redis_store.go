package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sodmax/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const redisTxRetries = 5

// RedisStore keeps each user under sodmax:user:<id>:*. Values are JSON encoded;
// multi-key writes go through WATCH + MULTI/EXEC.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func userKey(userID int64, suffix string) string {
	return fmt.Sprintf("sodmax:user:%d:%s", userID, suffix)
}

func (s *RedisStore) GetAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	var a domain.Account
	if err := s.getJSON(ctx, userKey(userID, "account"), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *RedisStore) SaveAccount(ctx context.Context, acc *domain.Account) error {
	return s.setJSON(ctx, userKey(acc.UserID, "account"), acc)
}

func (s *RedisStore) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.CommitLedgerEntry(ctx, LedgerEntry{Transactions: []*domain.Transaction{tx}, UserID: tx.UserID})
}

func (s *RedisStore) UpdateTransactionStatus(ctx context.Context, userID int64, txID string, status domain.TransactionStatus) error {
	return s.CommitLedgerEntry(ctx, LedgerEntry{StatusChange: &StatusChange{TxID: txID, Status: status}, UserID: userID})
}

func (s *RedisStore) GetTransaction(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	return readTransaction(ctx, s.rdb, userID, txID)
}

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func readTransaction(ctx context.Context, c hashGetter, userID int64, txID string) (*domain.Transaction, error) {
	raw, err := c.HGet(ctx, userKey(userID, "tx"), txID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var tx domain.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *RedisStore) FindTransactionByKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error) {
	id, err := s.rdb.HGet(ctx, userKey(userID, "idem"), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetTransaction(ctx, userID, id)
}

func (s *RedisStore) ListTransactions(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	ids, err := s.rdb.LRange(ctx, userKey(userID, "txorder"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raws, err := s.rdb.HMGet(ctx, userKey(userID, "tx"), ids...).Result()
	if err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(raws))
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("transaction %s listed but missing", ids[i])
		}
		var tx domain.Transaction
		if err := json.Unmarshal([]byte(str), &tx); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}

func (s *RedisStore) GetMissionState(ctx context.Context, userID int64) (*domain.MissionState, error) {
	var st domain.MissionState
	if err := s.getJSON(ctx, userKey(userID, "missions"), &st); err != nil {
		return nil, err
	}
	st.UserID = userID
	return &st, nil
}

func (s *RedisStore) SaveMissionState(ctx context.Context, st *domain.MissionState) error {
	return s.setJSON(ctx, userKey(st.UserID, "missions"), st)
}

func (s *RedisStore) GetReferralState(ctx context.Context, userID int64) (*domain.ReferralState, error) {
	var st domain.ReferralState
	if err := s.getJSON(ctx, userKey(userID, "referrals"), &st); err != nil {
		return nil, err
	}
	st.UserID = userID
	return &st, nil
}

func (s *RedisStore) SaveReferralState(ctx context.Context, st *domain.ReferralState) error {
	return s.setJSON(ctx, userKey(st.UserID, "referrals"), st)
}

func (s *RedisStore) AppendNotification(ctx context.Context, n *domain.Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.rdb.LPush(ctx, userKey(n.UserID, "notifications"), raw).Err()
}

func (s *RedisStore) ListNotifications(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raws, err := s.rdb.LRange(ctx, userKey(userID, "notifications"), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Notification, 0, len(raws))
	for _, raw := range raws {
		var n domain.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, nil
}

func (s *RedisStore) RemoveUser(ctx context.Context, userID int64) error {
	keys := make([]string, 0, 7)
	for _, suffix := range []string{"account", "tx", "txorder", "idem", "missions", "referrals", "notifications"} {
		keys = append(keys, userKey(userID, suffix))
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// CommitLedgerEntry watches the user's transaction keys, validates the entry and
// writes it in a single MULTI/EXEC. A concurrent writer makes the whole attempt retry.
func (s *RedisStore) CommitLedgerEntry(ctx context.Context, e LedgerEntry) error {
	userID := e.owner()
	txKey := userKey(userID, "tx")
	idemKey := userKey(userID, "idem")
	orderKey := userKey(userID, "txorder")

	commit := func(rtx *redis.Tx) error {
		for _, t := range e.Transactions {
			if t.IdempotencyKey == "" {
				continue
			}
			exists, err := rtx.HExists(ctx, idemKey, t.IdempotencyKey).Result()
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrDuplicateTransaction
			}
		}

		var settled *domain.Transaction
		if e.StatusChange != nil {
			prev, err := readTransaction(ctx, rtx, userID, e.StatusChange.TxID)
			if err != nil {
				return err
			}
			if !prev.Settleable() {
				return domain.ErrNotPending
			}
			prev.Status = e.StatusChange.Status
			settled = prev
		}

		var accRaw []byte
		if e.Account != nil {
			raw, err := json.Marshal(e.Account)
			if err != nil {
				return err
			}
			accRaw = raw
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if settled != nil {
				raw, err := json.Marshal(settled)
				if err != nil {
					return err
				}
				pipe.HSet(ctx, txKey, settled.ID, raw)
			}
			for _, t := range e.Transactions {
				raw, err := json.Marshal(t)
				if err != nil {
					return err
				}
				pipe.HSet(ctx, txKey, t.ID, raw)
				pipe.RPush(ctx, orderKey, t.ID)
				if t.IdempotencyKey != "" {
					pipe.HSet(ctx, idemKey, t.IdempotencyKey, t.ID)
				}
			}
			if accRaw != nil {
				pipe.Set(ctx, userKey(userID, "account"), accRaw, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < redisTxRetries; i++ {
		err := s.rdb.Watch(ctx, commit, txKey, idemKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func (s *RedisStore) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, 0).Err()
}
