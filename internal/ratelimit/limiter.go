package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
)

// ErrDailyQuotaExhausted means the relay accepted its daily allowance for
// the report date. Waiting within the batch cannot help.
var ErrDailyQuotaExhausted = errors.New("relay daily quota exhausted")

// Relay identifies the outbound mail relay. Every process sending through
// the same relay shares its quota.
type Relay struct {
	Transport string
	Host      string
}

func (r Relay) Validate() error {
	if strings.TrimSpace(r.Transport) == "" {
		return fmt.Errorf("relay transport is required")
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("relay host is required")
	}
	return nil
}

func (r Relay) String() string {
	return strings.ToLower(strings.TrimSpace(r.Transport)) + ":" + strings.ToLower(strings.TrimSpace(r.Host))
}

// Quota is the sending allowance of a relay. Office 365 accepts 30 messages
// per minute and 10000 recipients per day for a single mailbox.
type Quota struct {
	PerMinute int
	PerDay    int
}

// RelayLimiter paces report emails so a batch stays inside the relay quota.
// Acquire blocks until one message may be sent for the report date.
type RelayLimiter interface {
	Acquire(ctx context.Context, date domain.Date) error
}
