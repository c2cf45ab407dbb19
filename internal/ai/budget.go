package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetChecker checks and records token usage against per-user budgets.
type BudgetChecker interface {
	// Check returns true if the user has budget remaining.
	Check(ctx context.Context, userID string) (bool, error)
	// Record records token usage for a user.
	Record(ctx context.Context, userID string, tokens int) error
	// Usage returns current usage and the applicable budget (0 = unlimited).
	Usage(ctx context.Context, userID string) (used int64, budget int64, err error)
}

// InMemoryBudget is a simple in-memory budget tracker for development and tests.
type InMemoryBudget struct {
	mu            sync.RWMutex
	defaultBudget int64
	budgets       map[string]int64 // user -> budget limit
	usage         map[string]int64 // user -> tokens used
}

// NewInMemoryBudget creates a new in-memory budget tracker. A zero default
// budget means users without an explicit budget are unlimited.
func NewInMemoryBudget(defaultBudget int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultBudget: defaultBudget,
		budgets:       make(map[string]int64),
		usage:         make(map[string]int64),
	}
}

// SetBudget sets the token budget for a user.
func (b *InMemoryBudget) SetBudget(userID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[userID] = tokens
}

func (b *InMemoryBudget) Check(_ context.Context, userID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	budget := b.limitLocked(userID)
	if budget <= 0 {
		return true, nil
	}
	return b.usage[userID] < budget, nil
}

func (b *InMemoryBudget) Record(_ context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[userID] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, userID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[userID], b.limitLocked(userID), nil
}

func (b *InMemoryBudget) limitLocked(userID string) int64 {
	if budget, ok := b.budgets[userID]; ok {
		return budget
	}
	return b.defaultBudget
}

// RedisBudget tracks daily token usage in Redis. Usage counters expire with
// the window so budgets reset without a sweeper.
type RedisBudget struct {
	client        redis.Cmdable
	prefix        string
	defaultBudget int64
	window        time.Duration
	now           func() time.Time
}

// NewRedisBudget creates a Redis-backed budget with a daily window.
func NewRedisBudget(client redis.Cmdable, defaultBudget int64) *RedisBudget {
	return &RedisBudget{
		client:        client,
		prefix:        "ai:budget",
		defaultBudget: defaultBudget,
		window:        24 * time.Hour,
		now:           time.Now,
	}
}

// SetBudget stores a per-user budget overriding the default.
func (b *RedisBudget) SetBudget(ctx context.Context, userID string, tokens int64) error {
	if err := b.client.Set(ctx, b.limitKey(userID), tokens, 0).Err(); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

func (b *RedisBudget) Check(ctx context.Context, userID string) (bool, error) {
	used, budget, err := b.Usage(ctx, userID)
	if err != nil {
		return false, err
	}
	if budget <= 0 {
		return true, nil
	}
	return used < budget, nil
}

func (b *RedisBudget) Record(ctx context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	key := b.usageKey(userID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.ExpireNX(ctx, key, b.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, userID string) (int64, int64, error) {
	used, err := b.client.Get(ctx, b.usageKey(userID)).Int64()
	if err != nil && err != redis.Nil {
		return 0, 0, fmt.Errorf("read usage: %w", err)
	}

	budget, err := b.client.Get(ctx, b.limitKey(userID)).Int64()
	switch {
	case err == redis.Nil:
		budget = b.defaultBudget
	case err != nil:
		return 0, 0, fmt.Errorf("read budget: %w", err)
	}
	return used, budget, nil
}

func (b *RedisBudget) usageKey(userID string) string {
	return fmt.Sprintf("%s:used:%s:%s", b.prefix, userID, b.now().UTC().Format("2006-01-02"))
}

func (b *RedisBudget) limitKey(userID string) string {
	return fmt.Sprintf("%s:limit:%s", b.prefix, userID)
}
