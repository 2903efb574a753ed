package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultPerMinute = 30
	quotaWindow      = time.Minute
	dayKeyTTL        = 48 * time.Hour
)

const (
	reserveAllowed   = 1
	reserveThrottled = 0
	reserveExhausted = -1
)

// reserveScript takes one message from the minute window of the relay.
// Throttled attempts never count against the daily allowance.
// KEYS: minute window, report day. ARGV: per minute, window ms, per day, day ttl s.
var reserveScript = goredis.NewScript(`
local perDay = tonumber(ARGV[3])
if perDay > 0 then
  local sent = tonumber(redis.call("GET", KEYS[2]) or "0")
  if sent >= perDay then
    return -1
  end
end
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
if perDay > 0 then
  redis.call("INCR", KEYS[2])
  redis.call("EXPIRE", KEYS[2], ARGV[4])
end
return 1
`)

var _ ratelimit.RelayLimiter = (*RelayQuotaLimiter)(nil)

// RelayQuotaLimiter enforces a relay quota in Redis so that every instance
// sending through the same relay draws from one allowance. A zero PerDay
// disables the daily allowance.
type RelayQuotaLimiter struct {
	client *goredis.Client
	relay  ratelimit.Relay
	quota  ratelimit.Quota
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRelayQuotaLimiter(client *goredis.Client, relay ratelimit.Relay, quota ratelimit.Quota) (*RelayQuotaLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := relay.Validate(); err != nil {
		return nil, err
	}
	if quota.PerMinute <= 0 {
		quota.PerMinute = defaultPerMinute
	}
	if quota.PerDay < 0 {
		return nil, fmt.Errorf("invalid daily quota %d", quota.PerDay)
	}

	return &RelayQuotaLimiter{
		client: client,
		relay:  relay,
		quota:  quota,
		now:    time.Now,
		sleep:  sleepWithContext,
	}, nil
}

// Acquire waits for the next minute window while the relay is throttled and
// fails fast once the daily allowance for date is used up.
func (l *RelayQuotaLimiter) Acquire(ctx context.Context, date domain.Date) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("relay limiter is not initialized")
	}
	if date.IsZero() {
		return fmt.Errorf("%w: report date is required", domain.ErrValidation)
	}

	for {
		wait, err := l.reserve(ctx, date)
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reserve returns zero when a message may be sent, otherwise the time left
// until the current minute window closes.
func (l *RelayQuotaLimiter) reserve(ctx context.Context, date domain.Date) (time.Duration, error) {
	now := l.now().UTC()
	window := now.Truncate(quotaWindow)

	keys := []string{
		fmt.Sprintf("report-dispatch:relay:%s:minute:%d", l.relay, window.Unix()),
		fmt.Sprintf("report-dispatch:relay:%s:day:%s", l.relay, date),
	}
	result, err := reserveScript.Run(ctx, l.client, keys,
		l.quota.PerMinute,
		quotaWindow.Milliseconds(),
		l.quota.PerDay,
		int64(dayKeyTTL.Seconds()),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve relay quota: %w", err)
	}

	switch result {
	case reserveAllowed:
		return 0, nil
	case reserveThrottled:
		return window.Add(quotaWindow).Sub(now), nil
	case reserveExhausted:
		return 0, fmt.Errorf("%w: %d messages via %s on %s", ratelimit.ErrDailyQuotaExhausted, l.quota.PerDay, l.relay, date)
	default:
		return 0, fmt.Errorf("unexpected relay quota result %d", result)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
