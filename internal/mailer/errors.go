package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a delivery failure.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindConnection Kind = "connection"
	KindRejected   Kind = "rejected"
	KindTimeout    Kind = "timeout"
	KindUnknown    Kind = "unknown"
)

// DeliveryError is returned by transports for classified failures.
type DeliveryError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("mail delivery error (%s)", e.Kind))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf classifies err. Deadline errors win over the transport's own kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && deliveryErr.Kind != "" {
		return deliveryErr.Kind
	}

	if netErr != nil {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	return KindUnknown
}
