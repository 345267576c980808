package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sodmax/internal/config"
	"sodmax/internal/domain"
	"sodmax/internal/economy"
	"sodmax/internal/logger"

	"github.com/jonboulle/clockwork"
)

const (
	mineIdle int32 = iota
	mineInFlight
)

const timerOpTimeout = 5 * time.Second

// EventSink receives qualifying events for mission progress
type EventSink interface {
	OnQualifyingEvent(ctx context.Context, userID int64, event domain.MissionEvent) ([]domain.Mission, error)
}

type MineResult struct {
	Earned  int64            `json:"earned"`
	Balance int64            `json:"sod_balance"`
	Ready   []domain.Mission `json:"missions_ready,omitempty"`
}

type UpgradeResult struct {
	Level       int   `json:"level"`
	MiningPower int64 `json:"mining_power"`
	Balance     int64 `json:"sod_balance"`
}

// Miner owns one user's mining: the manual mine guard, the auto-mine ticker
// and the boost expiry timer. Close stops both timers before returning.
type Miner struct {
	userID int64
	ledger *LedgerService
	events EventSink
	clock  clockwork.Clock
	econ   config.Economy

	state  atomic.Int32
	closed atomic.Bool

	mu         sync.Mutex
	autoStop   chan struct{}
	autoWG     sync.WaitGroup
	boostTimer clockwork.Timer
	boostWG    sync.WaitGroup
}

func NewMiner(userID int64, ledger *LedgerService, events EventSink, clock clockwork.Clock, econ config.Economy) *Miner {
	return &Miner{
		userID: userID,
		ledger: ledger,
		events: events,
		clock:  clock,
		econ:   econ,
	}
}

// ManualMine credits floor(power × multiplier) SOD. A second call while one is
// running fails with ErrReentrantOperation.
func (m *Miner) ManualMine(ctx context.Context) (MineResult, error) {
	if m.closed.Load() {
		return MineResult{}, domain.ErrSessionClosed
	}
	if !m.state.CompareAndSwap(mineIdle, mineInFlight) {
		return MineResult{}, domain.ErrReentrantOperation
	}
	defer m.state.Store(mineIdle)

	acc, tx, err := m.ledger.Execute(ctx, m.userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		earned, err := economy.MineYield(acc, now, economy.ManualRate)
		if err != nil {
			return economy.Event{}, err
		}
		if earned == 0 {
			return economy.Event{}, domain.ErrInvalidAmount
		}
		return economy.Event{
			Type:     domain.TxTypeMine,
			Currency: domain.CurrencySOD,
			Amount:   earned,
			Meta:     map[string]interface{}{"multiplier": acc.EffectiveMultiplier(now).String()},
			Mutate: func(a *domain.Account) error {
				return economy.RecordMined(a, earned, now, m.econ.Location)
			},
		}, nil
	})
	if err != nil {
		return MineResult{}, err
	}
	MiningCredits.WithLabelValues("manual").Add(float64(tx.Amount))

	ready := m.report(ctx, domain.EventManualMine)
	return MineResult{Earned: tx.Amount, Balance: acc.SODBalance, Ready: ready}, nil
}

// ToggleAutoMining flips the persisted flag and starts or stops the ticker to match.
// When it returns false no further auto-mine credit happens.
func (m *Miner) ToggleAutoMining(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return false, domain.ErrSessionClosed
	}

	acc, err := m.ledger.Mutate(ctx, m.userID, func(a *domain.Account, _ time.Time) error {
		a.AutoMiningEnabled = !a.AutoMiningEnabled
		return nil
	})
	if err != nil {
		return false, err
	}

	if acc.AutoMiningEnabled {
		m.startAutoLocked()
	} else {
		m.stopAutoLocked()
	}
	logger.ForUser(m.userID).Info("auto mining toggled", "enabled", acc.AutoMiningEnabled)
	return acc.AutoMiningEnabled, nil
}

// AutoMining reports whether the ticker is running
func (m *Miner) AutoMining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoStop != nil
}

func (m *Miner) startAutoLocked() {
	if m.autoStop != nil {
		return
	}
	stop := make(chan struct{})
	ticker := m.clock.NewTicker(m.econ.AutoMineInterval)
	m.autoStop = stop

	m.autoWG.Add(1)
	go func() {
		defer m.autoWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				select {
				case <-stop:
					return
				default:
				}
				m.autoTick()
			}
		}
	}()
}

// stopAutoLocked returns once the ticker goroutine has exited
func (m *Miner) stopAutoLocked() {
	if m.autoStop == nil {
		return
	}
	close(m.autoStop)
	m.autoStop = nil
	m.autoWG.Wait()
}

func (m *Miner) autoTick() {
	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()

	_, tx, err := m.ledger.Execute(ctx, m.userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		if !acc.AutoMiningEnabled {
			return economy.Event{}, errSkip
		}
		earned, err := economy.MineYield(acc, now, m.econ.AutoMineRate)
		if err != nil {
			return economy.Event{}, err
		}
		if earned == 0 {
			return economy.Event{}, errSkip
		}
		return economy.Event{
			Type:     domain.TxTypeAutoMine,
			Currency: domain.CurrencySOD,
			Amount:   earned,
			Mutate: func(a *domain.Account) error {
				return economy.RecordMined(a, earned, now, m.econ.Location)
			},
		}, nil
	})
	switch {
	case errors.Is(err, errSkip):
		return
	case err != nil:
		logger.ForUser(m.userID).Warn("auto mine tick failed", "error", err)
		return
	}
	MiningCredits.WithLabelValues("auto").Add(float64(tx.Amount))
}

// ActivateBoost debits offer.Cost SOD and raises the multiplier until the offer expires.
// A boost cannot be bought while another one is running.
func (m *Miner) ActivateBoost(ctx context.Context, offer domain.BoostOffer) (*domain.Account, error) {
	if m.closed.Load() {
		return nil, domain.ErrSessionClosed
	}
	if !offer.Valid() {
		return nil, domain.ErrInvalidAmount
	}

	acc, _, err := m.ledger.Execute(ctx, m.userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		if acc.BoostActive(now) {
			return economy.Event{}, domain.ErrBoostAlreadyActive
		}
		return economy.Event{
			Type:     domain.TxTypeBoost,
			Currency: domain.CurrencySOD,
			Amount:   -offer.Cost,
			Meta: map[string]interface{}{
				"multiplier":       offer.Multiplier.String(),
				"duration_seconds": int64(offer.Duration / time.Second),
			},
			Mutate: func(a *domain.Account) error {
				return economy.StartBoost(a, offer, now)
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if !m.closed.Load() {
		m.armBoostLocked(*acc.BoostExpiresAt)
	}
	m.mu.Unlock()

	m.report(ctx, domain.EventBoost)
	return acc, nil
}

func (m *Miner) armBoostLocked(expires time.Time) {
	m.cancelBoostLocked()

	d := expires.Sub(m.clock.Now())
	if d < 0 {
		d = 0
	}
	m.boostWG.Add(1)
	m.boostTimer = m.clock.AfterFunc(d, func() {
		defer m.boostWG.Done()
		m.expireBoost()
	})
}

func (m *Miner) cancelBoostLocked() {
	if m.boostTimer == nil {
		return
	}
	if m.boostTimer.Stop() {
		m.boostWG.Done()
	}
	m.boostTimer = nil
}

func (m *Miner) expireBoost() {
	if m.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()

	_, err := m.ledger.Mutate(ctx, m.userID, func(a *domain.Account, now time.Time) error {
		if !economy.EndBoost(a, now) {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		logger.ForUser(m.userID).Warn("boost expiry failed", "error", err)
		return
	}
	logger.ForUser(m.userID).Info("boost expired")
}

// Upgrade debits the upgrade cost and raises power and level together
func (m *Miner) Upgrade(ctx context.Context) (UpgradeResult, error) {
	if m.closed.Load() {
		return UpgradeResult{}, domain.ErrSessionClosed
	}

	acc, _, err := m.ledger.Execute(ctx, m.userID, func(acc *domain.Account, now time.Time) (economy.Event, error) {
		return economy.Event{
			Type:     domain.TxTypeUpgrade,
			Currency: domain.CurrencySOD,
			Amount:   -m.econ.UpgradeCost,
			Meta:     map[string]interface{}{"from_level": acc.Level},
			Mutate: func(a *domain.Account) error {
				return economy.ApplyUpgrade(a, m.econ.UpgradePowerStep, m.econ.UpgradeLevelStep)
			},
		}, nil
	})
	if err != nil {
		return UpgradeResult{}, err
	}

	m.report(ctx, domain.EventUpgrade)
	return UpgradeResult{Level: acc.Level, MiningPower: acc.MiningPower, Balance: acc.SODBalance}, nil
}

// Restore resumes timers for a freshly loaded account
func (m *Miner) Restore(ctx context.Context, acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return domain.ErrSessionClosed
	}

	if acc.AutoMiningEnabled {
		m.startAutoLocked()
	}

	if acc.BoostExpiresAt == nil {
		return nil
	}
	if acc.BoostActive(m.clock.Now()) {
		m.armBoostLocked(*acc.BoostExpiresAt)
		return nil
	}

	_, err := m.ledger.Mutate(ctx, m.userID, func(a *domain.Account, now time.Time) error {
		if !economy.EndBoost(a, now) {
			return errUnchanged
		}
		return nil
	})
	return err
}

// Close stops the ticker and the boost timer and waits for any running callback
func (m *Miner) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	m.mu.Lock()
	m.stopAutoLocked()
	m.cancelBoostLocked()
	m.mu.Unlock()

	m.boostWG.Wait()
}

func (m *Miner) report(ctx context.Context, event domain.MissionEvent) []domain.Mission {
	if m.events == nil {
		return nil
	}
	ready, err := m.events.OnQualifyingEvent(ctx, m.userID, event)
	if err != nil {
		logger.ForUser(m.userID).Warn("mission progress update failed", "event", event, "error", err)
	}
	return ready
}
