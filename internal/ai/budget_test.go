package ai

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestInMemoryBudget_Check(t *testing.T) {
	tests := []struct {
		name    string
		deflt   int64
		budget  int64 // 0 = not set
		records []int
		want    bool
	}{
		{"no budget means unlimited", 0, 0, []int{1_000_000}, true},
		{"within budget", 0, 1000, []int{500}, true},
		{"over budget", 0, 100, []int{150}, false},
		{"exact budget is exhausted", 0, 100, []int{100}, false},
		{"default budget applies", 50, 0, []int{60}, false},
		{"explicit budget overrides default", 50, 1000, []int{60}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := NewInMemoryBudget(tt.deflt)
			if tt.budget > 0 {
				b.SetBudget("user1", tt.budget)
			}
			for _, tokens := range tt.records {
				if err := b.Record(ctx, "user1", tokens); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}
			ok, err := b.Check(ctx, "user1")
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Check() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestInMemoryBudget_MultipleRecords(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBudget(0)
	b.SetBudget("user1", 1000)

	for _, tokens := range []int{100, 200, 300} {
		if err := b.Record(ctx, "user1", tokens); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	used, budget, err := b.Usage(ctx, "user1")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used != 600 {
		t.Errorf("used = %d, want 600", used)
	}
	if budget != 1000 {
		t.Errorf("budget = %d, want 1000", budget)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(0)
	if err := b.Record(context.Background(), "user1", -10); err == nil {
		t.Fatal("Record() should return error for negative tokens")
	}
}

func TestInMemoryBudget_IsolatedUsers(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBudget(0)
	b.SetBudget("user1", 100)
	b.SetBudget("user2", 200)

	b.Record(ctx, "user1", 150)
	b.Record(ctx, "user2", 50)

	ok1, _ := b.Check(ctx, "user1")
	ok2, _ := b.Check(ctx, "user2")

	if ok1 {
		t.Error("user1 should be over budget (150 >= 100)")
	}
	if !ok2 {
		t.Error("user2 should be within budget (50 < 200)")
	}
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBudget(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	b := NewRedisBudget(client, 100)
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day }

	ok, err := b.Check(ctx, "user1")
	if err != nil || !ok {
		t.Fatalf("Check() fresh user = %v, %v", ok, err)
	}

	if err := b.Record(ctx, "user1", 60); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := b.Record(ctx, "user1", 40); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	used, budget, err := b.Usage(ctx, "user1")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used != 100 || budget != 100 {
		t.Errorf("Usage() = %d/%d, want 100/100", used, budget)
	}
	if ok, _ := b.Check(ctx, "user1"); ok {
		t.Error("Check() = true after spending the budget")
	}

	ttl, err := client.TTL(ctx, b.usageKey("user1")).Result()
	if err != nil || ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("usage key TTL = %v, %v", ttl, err)
	}

	if err := b.SetBudget(ctx, "user1", 500); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if ok, _ := b.Check(ctx, "user1"); !ok {
		t.Error("Check() = false after raising the budget")
	}

	// A new day starts a fresh counter.
	b.now = func() time.Time { return day.Add(24 * time.Hour) }
	used, _, _ = b.Usage(ctx, "user1")
	if used != 0 {
		t.Errorf("used on next day = %d, want 0", used)
	}
}

func TestRedisBudget_NegativeTokens(t *testing.T) {
	b := NewRedisBudget(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 0)
	err := b.Record(context.Background(), "user1", -1)
	if err == nil {
		t.Fatal("Record() should reject negative tokens")
	}
}
