package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

var (
	reportDate = domain.Date{Year: 2024, Month: time.March, Day: 6}
	office365  = ratelimit.Relay{Transport: "smtp", Host: "smtp.office365.com"}
)

// fakeClock advances only when the limiter sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(t *testing.T, rdb *goredis.Client, relay ratelimit.Relay, quota ratelimit.Quota, clock *fakeClock) *RelayQuotaLimiter {
	t.Helper()

	limiter, err := NewRelayQuotaLimiter(rdb, relay, quota)
	if err != nil {
		t.Fatalf("NewRelayQuotaLimiter() error = %v", err)
	}
	if clock != nil {
		limiter.now = clock.Now
		limiter.sleep = clock.Sleep
	}
	return limiter
}

func TestRelayQuotaLimiterPacesBatchIntoNextMinute(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)
	clock := &fakeClock{now: time.Date(2024, time.March, 6, 8, 0, 10, 0, time.UTC)}
	limiter := newTestLimiter(t, rdb, office365, ratelimit.Quota{PerMinute: 2, PerDay: 100}, clock)

	sentAt := make([]time.Time, 0, 3)
	for i := 0; i < 3; i++ {
		if err := limiter.Acquire(context.Background(), reportDate); err != nil {
			t.Fatalf("Acquire(%d) error = %v", i, err)
		}
		sentAt = append(sentAt, clock.Now())
	}

	if len(clock.sleeps) != 1 || clock.sleeps[0] != 50*time.Second {
		t.Fatalf("sleeps = %v, want one 50s wait until the next minute", clock.sleeps)
	}
	if sentAt[1].Minute() != 0 || sentAt[2].Minute() != 1 || sentAt[2].Second() != 0 {
		t.Fatalf("send times = %v, want the third message at 08:01:00", sentAt)
	}
}

func TestRelayQuotaLimiterSharesQuotaPerRelay(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)
	clock := &fakeClock{now: time.Date(2024, time.March, 6, 8, 0, 0, 0, time.UTC)}
	quota := ratelimit.Quota{PerMinute: 1}

	first := newTestLimiter(t, rdb, office365, quota, clock)
	second := newTestLimiter(t, rdb, ratelimit.Relay{Transport: "SMTP", Host: " SMTP.office365.com "}, quota, clock)
	other := newTestLimiter(t, rdb, ratelimit.Relay{Transport: "http", Host: "mail.example.test"}, quota, clock)

	if err := first.Acquire(context.Background(), reportDate); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if err := other.Acquire(context.Background(), reportDate); err != nil {
		t.Fatalf("other relay Acquire() error = %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none across different relays", clock.sleeps)
	}

	if err := second.Acquire(context.Background(), reportDate); err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("sleeps = %v, want the same relay to be throttled once", clock.sleeps)
	}
}

func TestRelayQuotaLimiterDailyQuota(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedis(t)
	clock := &fakeClock{now: time.Date(2024, time.March, 6, 8, 0, 0, 0, time.UTC)}
	limiter := newTestLimiter(t, rdb, office365, ratelimit.Quota{PerMinute: 1, PerDay: 2}, clock)

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(context.Background(), reportDate); err != nil {
			t.Fatalf("Acquire(%d) error = %v", i, err)
		}
	}

	got, err := mr.Get("report-dispatch:relay:smtp:smtp.office365.com:day:2024-03-06")
	if err != nil {
		t.Fatalf("daily counter: %v", err)
	}
	if got != "2" {
		t.Fatalf("daily counter = %s, want 2: throttled attempts must not count", got)
	}

	sleeps := len(clock.sleeps)
	err = limiter.Acquire(context.Background(), reportDate)
	if !errors.Is(err, ratelimit.ErrDailyQuotaExhausted) {
		t.Fatalf("Acquire() error = %v, want ErrDailyQuotaExhausted", err)
	}
	if len(clock.sleeps) != sleeps {
		t.Fatal("an exhausted daily quota should fail without waiting")
	}

	nextDay := domain.Date{Year: 2024, Month: time.March, Day: 7}
	clock.now = clock.now.Add(24 * time.Hour)
	if err := limiter.Acquire(context.Background(), nextDay); err != nil {
		t.Fatalf("Acquire(next day) error = %v", err)
	}
}

func TestRelayQuotaLimiterWaitHonoursContext(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)
	limiter := newTestLimiter(t, rdb, office365, ratelimit.Quota{PerMinute: 1}, nil)
	fixed := time.Date(2024, time.March, 6, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	if err := limiter.Acquire(context.Background(), reportDate); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Acquire(ctx, reportDate)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Acquire() took %v, want it bounded by the deadline", elapsed)
	}
}

func TestNewRelayQuotaLimiterValidation(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)

	testCases := []struct {
		name   string
		client *goredis.Client
		relay  ratelimit.Relay
		quota  ratelimit.Quota
	}{
		{name: "nil client", relay: office365},
		{name: "missing host", client: rdb, relay: ratelimit.Relay{Transport: "smtp"}},
		{name: "missing transport", client: rdb, relay: ratelimit.Relay{Host: "smtp.office365.com"}},
		{name: "negative daily quota", client: rdb, relay: office365, quota: ratelimit.Quota{PerDay: -1}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewRelayQuotaLimiter(tc.client, tc.relay, tc.quota); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	limiter, err := NewRelayQuotaLimiter(rdb, office365, ratelimit.Quota{})
	if err != nil {
		t.Fatalf("NewRelayQuotaLimiter() error = %v", err)
	}
	if limiter.quota.PerMinute != defaultPerMinute {
		t.Fatalf("PerMinute = %d, want default %d", limiter.quota.PerMinute, defaultPerMinute)
	}
	if err := limiter.Acquire(context.Background(), domain.Date{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Acquire(zero date) error = %v, want ErrValidation", err)
	}
}

func newTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb, mr
}
