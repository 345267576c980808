package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sodmax/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// PgxPool is the subset of *pgxpool.Pool the store uses
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is satisfied by both the pool and an open pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

type PostgresStore struct {
	db PgxPool
}

func NewPostgresStore(db PgxPool) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `user_id, sod_balance, toman_balance, mining_power, mining_multiplier, level,
	auto_mining_enabled, boost_expires_at, total_mined, today_earned, earned_day, total_earned,
	referral_count, referral_earnings, last_daily_claim_at, daily_streak, created_at, updated_at`

func (s *PostgresStore) GetAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts
		 WHERE user_id = $1`,
		userID,
	)

	var (
		a          domain.Account
		multiplier string
	)
	if err := row.Scan(
		&a.UserID,
		&a.SODBalance,
		&a.TomanBalance,
		&a.MiningPower,
		&multiplier,
		&a.Level,
		&a.AutoMiningEnabled,
		&a.BoostExpiresAt,
		&a.TotalMined,
		&a.TodayEarned,
		&a.EarnedDay,
		&a.TotalEarned,
		&a.ReferralCount,
		&a.ReferralEarnings,
		&a.LastDailyClaimAt,
		&a.DailyStreak,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	m, err := decimal.NewFromString(multiplier)
	if err != nil {
		return nil, fmt.Errorf("parse mining multiplier %q: %w", multiplier, err)
	}
	a.MiningMultiplier = m
	return &a, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, acc *domain.Account) error {
	return saveAccount(ctx, s.db, acc)
}

func saveAccount(ctx context.Context, q querier, a *domain.Account) error {
	_, err := q.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (user_id) DO UPDATE SET
			sod_balance = EXCLUDED.sod_balance,
			toman_balance = EXCLUDED.toman_balance,
			mining_power = EXCLUDED.mining_power,
			mining_multiplier = EXCLUDED.mining_multiplier,
			level = EXCLUDED.level,
			auto_mining_enabled = EXCLUDED.auto_mining_enabled,
			boost_expires_at = EXCLUDED.boost_expires_at,
			total_mined = EXCLUDED.total_mined,
			today_earned = EXCLUDED.today_earned,
			earned_day = EXCLUDED.earned_day,
			total_earned = EXCLUDED.total_earned,
			referral_count = EXCLUDED.referral_count,
			referral_earnings = EXCLUDED.referral_earnings,
			last_daily_claim_at = EXCLUDED.last_daily_claim_at,
			daily_streak = EXCLUDED.daily_streak,
			updated_at = EXCLUDED.updated_at`,
		a.UserID, a.SODBalance, a.TomanBalance, a.MiningPower, a.MiningMultiplier.String(), a.Level,
		a.AutoMiningEnabled, a.BoostExpiresAt, a.TotalMined, a.TodayEarned, a.EarnedDay, a.TotalEarned,
		a.ReferralCount, a.ReferralEarnings, a.LastDailyClaimAt, a.DailyStreak, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	return insertTransaction(ctx, s.db, tx)
}

func insertTransaction(ctx context.Context, q querier, tx *domain.Transaction) error {
	metaJSON, err := json.Marshal(tx.Meta)
	if err != nil || tx.Meta == nil {
		metaJSON = []byte("{}")
	}

	_, err = q.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, currency, status, idempotency_key, meta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.ID, tx.UserID, string(tx.Type), tx.Amount, string(tx.Currency), string(tx.Status),
		tx.IdempotencyKey, metaJSON, tx.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateTransaction
	}
	return err
}

func (s *PostgresStore) UpdateTransactionStatus(ctx context.Context, userID int64, txID string, status domain.TransactionStatus) error {
	return updateTransactionStatus(ctx, s.db, userID, txID, status)
}

func updateTransactionStatus(ctx context.Context, q querier, userID int64, txID string, status domain.TransactionStatus) error {
	tag, err := q.Exec(ctx,
		`UPDATE transactions
		 SET status = $3
		 WHERE user_id = $1 AND id = $2 AND type = 'withdrawal' AND status = 'pending'`,
		userID, txID, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE user_id = $1 AND id = $2)`,
		userID, txID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrNotPending
}

const transactionColumns = `id, user_id, type, amount, currency, status, idempotency_key, meta, created_at`

func (s *PostgresStore) GetTransaction(ctx context.Context, userID int64, txID string) (*domain.Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE user_id = $1 AND id = $2`,
		userID, txID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return firstTransaction(rows)
}

func (s *PostgresStore) FindTransactionByKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE user_id = $1 AND idempotency_key = $2`,
		userID, key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return firstTransaction(rows)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func firstTransaction(rows pgx.Rows) (*domain.Transaction, error) {
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, domain.ErrNotFound
	}
	return txs[0], nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	for rows.Next() {
		var (
			tx                       domain.Transaction
			txType, currency, status string
			metaJSON                 []byte
		)
		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&txType,
			&tx.Amount,
			&currency,
			&status,
			&tx.IdempotencyKey,
			&metaJSON,
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		tx.Type = domain.TransactionType(txType)
		tx.Currency = domain.Currency(currency)
		tx.Status = domain.TransactionStatus(status)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &tx.Meta); err != nil {
				return nil, fmt.Errorf("decode meta of transaction %s: %w", tx.ID, err)
			}
		}
		if len(tx.Meta) == 0 {
			tx.Meta = nil
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

func (s *PostgresStore) GetMissionState(ctx context.Context, userID int64) (*domain.MissionState, error) {
	var st domain.MissionState
	if err := s.getState(ctx, "mission_states", userID, &st); err != nil {
		return nil, err
	}
	st.UserID = userID
	return &st, nil
}

func (s *PostgresStore) SaveMissionState(ctx context.Context, st *domain.MissionState) error {
	return s.saveState(ctx, "mission_states", st.UserID, st)
}

func (s *PostgresStore) GetReferralState(ctx context.Context, userID int64) (*domain.ReferralState, error) {
	var st domain.ReferralState
	if err := s.getState(ctx, "referral_states", userID, &st); err != nil {
		return nil, err
	}
	st.UserID = userID
	return &st, nil
}

func (s *PostgresStore) SaveReferralState(ctx context.Context, st *domain.ReferralState) error {
	return s.saveState(ctx, "referral_states", st.UserID, st)
}

// table is always one of the two constant state table names
func (s *PostgresStore) getState(ctx context.Context, table string, userID int64, dst any) error {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT state FROM `+table+` WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (s *PostgresStore) saveState(ctx context.Context, table string, userID int64, st any) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO `+table+` (user_id, state, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		userID, raw, time.Now().UTC(),
	)
	return err
}

func (s *PostgresStore) AppendNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO notifications (id, user_id, kind, title, message, transaction_id, amount, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Message, n.TransactionID, n.Amount, string(n.Currency), n.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, kind, title, message, transaction_id, amount, currency, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY seq DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var (
			n              domain.Notification
			kind, currency string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Message, &n.TransactionID, &n.Amount, &currency, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = domain.NotificationKind(kind)
		n.Currency = domain.Currency(currency)
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RemoveUser(ctx context.Context, userID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"notifications", "referral_states", "mission_states", "transactions", "accounts"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

// CommitLedgerEntry writes the status change, new transactions and account in one database transaction
func (s *PostgresStore) CommitLedgerEntry(ctx context.Context, e LedgerEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if e.StatusChange != nil {
		if err := updateTransactionStatus(ctx, tx, e.owner(), e.StatusChange.TxID, e.StatusChange.Status); err != nil {
			return err
		}
	}
	for _, t := range e.Transactions {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	if e.Account != nil {
		if err := saveAccount(ctx, tx, e.Account); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
