package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/songdex/internal/domain"
)

// Action defines behavior when the request quota is used up.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request.
	ActionReject Action = "reject"
)

// Store is the persistence interface for quota counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Tracker counts provider requests per UTC day and month with optional persistence.
// Acquire decides in memory, then writes behind to the store.
type Tracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         Action
	provider       string
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          Store
	logger         *zap.Logger
	now            func() time.Time
}

// NewTracker creates a tracker. A zero limit is unlimited.
func NewTracker(provider string, dailyLimit, monthlyLimit int64, action Action, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	now := t.now()
	t.lastDayReset = truncateToDay(now)
	t.lastMonthReset = truncateToMonth(now)
	return t
}

// WithStore attaches a persistence store and loads the current counters.
func (t *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	t.store = store
	t.loadFromStore(ctx)
	return t
}

func (t *Tracker) loadFromStore(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if val, err := t.store.Get(ctx, t.dailyKey(now)); err == nil {
		t.dailyUsed = val
	} else {
		t.logger.Warn("Failed to load daily quota from store", zap.Error(err))
	}
	if val, err := t.store.Get(ctx, t.monthlyKey(now)); err == nil {
		t.monthlyUsed = val
	} else {
		t.logger.Warn("Failed to load monthly quota from store", zap.Error(err))
	}

	t.logger.Info("Lookup quota loaded from store",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
}

func (t *Tracker) dailyKey(ts time.Time) string {
	return fmt.Sprintf("%squota:%s:daily:%s", domain.KeyPrefix, t.provider, ts.Format("2006-01-02"))
}

func (t *Tracker) monthlyKey(ts time.Time) string {
	return fmt.Sprintf("%squota:%s:monthly:%s", domain.KeyPrefix, t.provider, ts.Format("2006-01"))
}

// Acquire reserves one provider request. It fails with domain.ErrQuotaExceeded
// when the quota is used up and the action is reject; nothing is counted then.
// Check and count happen under one lock, so concurrent callers cannot overshoot.
func (t *Tracker) Acquire(_ context.Context) error {
	t.mu.Lock()
	t.resetIfNeeded()
	if err := t.checkLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	dailyKey, monthlyKey := t.addLocked(1)
	store := t.store
	t.mu.Unlock()

	t.persist(store, dailyKey, monthlyKey, 1)
	return nil
}

// check reports whether another request fits the quota without counting it.
func (t *Tracker) check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return t.checkLocked()
}

// record counts n requests unconditionally.
func (t *Tracker) record(n int64) {
	t.mu.Lock()
	t.resetIfNeeded()
	dailyKey, monthlyKey := t.addLocked(n)
	store := t.store
	t.mu.Unlock()

	t.persist(store, dailyKey, monthlyKey, n)
}

func (t *Tracker) checkLocked() error {
	dailyExceeded := t.dailyLimit > 0 && t.dailyUsed >= t.dailyLimit
	monthlyExceeded := t.monthlyLimit > 0 && t.monthlyUsed >= t.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if t.action == ActionReject {
		return domain.ErrQuotaExceeded
	}

	t.logger.Warn("Lookup quota exceeded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.dailyLimit),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.monthlyLimit),
	)
	return nil
}

func (t *Tracker) addLocked(n int64) (dailyKey, monthlyKey string) {
	t.dailyUsed += n
	t.monthlyUsed += n
	now := t.now()
	return t.dailyKey(now), t.monthlyKey(now)
}

func (t *Tracker) persist(store Store, dailyKey, monthlyKey string, n int64) {
	if store == nil {
		return
	}

	// Write-behind on a detached context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, n); err != nil {
		t.logger.Warn("Failed to persist daily quota", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, n); err != nil {
		t.logger.Warn("Failed to persist monthly quota", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// RemainingDaily returns requests left today (-1 if unlimited).
func (t *Tracker) RemainingDaily() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return remaining(t.dailyLimit, t.dailyUsed)
}

// RemainingMonthly returns requests left this month (-1 if unlimited).
func (t *Tracker) RemainingMonthly() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNeeded()
	return remaining(t.monthlyLimit, t.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (t *Tracker) resetIfNeeded() {
	now := t.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(t.lastDayReset) {
		t.dailyUsed = 0
		t.lastDayReset = today
	}
	if thisMonth.After(t.lastMonthReset) {
		t.monthlyUsed = 0
		t.lastMonthReset = thisMonth
	}
}

func truncateToDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}
