// Package mailer delivers rendered class reports to teachers.
package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// Mailer is the outbound mail transport port.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Attachment is a single file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one report email.
type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return &DeliveryError{Kind: KindRejected, Message: "recipient is required"}
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return &DeliveryError{Kind: KindRejected, Message: fmt.Sprintf("invalid recipient %q", m.To), Cause: err}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return &DeliveryError{Kind: KindRejected, Message: "subject is required"}
	}
	if m.Attachment != nil && strings.TrimSpace(m.Attachment.Filename) == "" {
		return &DeliveryError{Kind: KindRejected, Message: "attachment filename is required"}
	}
	return nil
}
