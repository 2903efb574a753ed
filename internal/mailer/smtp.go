package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// ErrTLSUnavailable is returned when the relay cannot upgrade the session
// to TLS and insecure delivery is not allowed.
var ErrTLSUnavailable = errors.New("starttls not available")

// SMTPConfig holds the relay settings for SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// AllowInsecure permits a relay that does not offer STARTTLS. Reports
	// and credentials then travel in clear text.
	AllowInsecure bool
}

// SMTPMailer sends each message over its own STARTTLS session.
type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *net.Dialer
	now    func() time.Time
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.From = strings.TrimSpace(cfg.From)

	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid smtp port %d", cfg.Port)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	return &SMTPMailer{
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: 15 * time.Second},
		now:    time.Now,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m == nil {
		return fmt.Errorf("mailer is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	raw, err := buildMIME(m.cfg.From, msg, m.now())
	if err != nil {
		return &DeliveryError{Kind: KindRejected, Message: "build message", Cause: err}
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := m.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DeliveryError{Kind: dialKind(err), Message: "dial " + addr, Cause: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Closing the connection unblocks the SMTP exchange on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := m.exchange(conn, msg.To, raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &DeliveryError{Kind: KindTimeout, Message: "smtp session interrupted", Cause: errors.Join(ctxErr, err)}
		}
		return err
	}
	return nil
}

func (m *SMTPMailer) exchange(conn net.Conn, to string, raw []byte) error {
	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return &DeliveryError{Kind: KindConnection, Message: "smtp greeting", Cause: err}
	}
	defer client.Close()

	secured := false
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return &DeliveryError{Kind: KindConnection, Message: "starttls", Cause: err}
		}
		secured = true
	} else if !m.cfg.AllowInsecure {
		return &DeliveryError{Kind: KindConnection, Message: "relay does not offer STARTTLS", Cause: ErrTLSUnavailable}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			var protoErr *textproto.Error
			if !secured && !errors.As(err, &protoErr) {
				// PlainAuth refused to send credentials over the clear connection.
				return &DeliveryError{Kind: KindConnection, Message: "smtp login needs tls", Cause: err}
			}
			return &DeliveryError{Kind: KindAuth, Message: "smtp login", Cause: err}
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return smtpError("mail from", err)
	}
	if err := client.Rcpt(to); err != nil {
		return smtpError("rcpt to", err)
	}

	w, err := client.Data()
	if err != nil {
		return smtpError("data", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return &DeliveryError{Kind: KindConnection, Message: "write body", Cause: err}
	}
	if err := w.Close(); err != nil {
		return smtpError("end data", err)
	}

	return client.Quit()
}

func smtpError(stage string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		kind := KindConnection
		switch {
		case protoErr.Code == 530 || protoErr.Code == 535:
			kind = KindAuth
		case protoErr.Code >= 500:
			kind = KindRejected
		}
		return &DeliveryError{Kind: kind, StatusCode: protoErr.Code, Message: stage, Cause: err}
	}
	return &DeliveryError{Kind: KindConnection, Message: stage, Cause: err}
}

func dialKind(err error) Kind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindConnection
}

// buildMIME renders msg as an RFC 5322 message with the report attached.
func buildMIME(from string, msg Message, now time.Time) ([]byte, error) {
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	if msg.Attachment != nil {
		err := m.AttachReader(
			msg.Attachment.Filename,
			bytes.NewReader(msg.Attachment.Data),
			gomail.WithFileContentType(gomail.ContentType(attachmentContentType(msg.Attachment))),
		)
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", msg.Attachment.Filename, err)
		}
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return buf.Bytes(), nil
}
