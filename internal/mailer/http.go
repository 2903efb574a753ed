package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultHTTPTimeout = 20 * time.Second

type httpAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type httpMailRequest struct {
	From        string           `json:"from"`
	To          string           `json:"to"`
	Subject     string           `json:"subject"`
	Text        string           `json:"text"`
	Attachments []httpAttachment `json:"attachments,omitempty"`
}

// HTTPMailer posts messages as JSON to a mail relay API.
type HTTPMailer struct {
	client   *resty.Client
	endpoint string
	from     string
}

func NewHTTPMailer(endpoint, token, from string) (*HTTPMailer, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)
	if strings.TrimSpace(token) != "" {
		client.SetAuthToken(strings.TrimSpace(token))
	}

	return NewHTTPMailerWithClient(endpoint, from, client)
}

func NewHTTPMailerWithClient(endpoint, from string, client *resty.Client) (*HTTPMailer, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("mail api endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid mail api endpoint: %w", err)
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPMailer{
		client:   client,
		endpoint: trimmedEndpoint,
		from:     strings.TrimSpace(from),
	}, nil
}

func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("mailer is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	reqBody := httpMailRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	if msg.Attachment != nil {
		reqBody.Attachments = []httpAttachment{{
			Filename:    msg.Attachment.Filename,
			ContentType: attachmentContentType(msg.Attachment),
			Content:     base64.StdEncoding.EncodeToString(msg.Attachment.Data),
		}}
	}

	response, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(m.endpoint)
	if err != nil {
		kind := KindConnection
		if KindOf(err) == KindTimeout {
			kind = KindTimeout
		}
		return &DeliveryError{
			Kind:    kind,
			Message: "mail api request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return &DeliveryError{Kind: KindConnection, Message: "mail api returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &DeliveryError{
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
		Message:    statusMessage(statusCode, strings.TrimSpace(response.String())),
	}
}

func kindForStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return KindTimeout
	case statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError:
		return KindConnection
	case statusCode >= http.StatusBadRequest:
		return KindRejected
	default:
		return KindUnknown
	}
}

func statusMessage(statusCode int, body string) string {
	base := fmt.Sprintf("mail api returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func attachmentContentType(a *Attachment) string {
	if strings.TrimSpace(a.ContentType) == "" {
		return "application/octet-stream"
	}
	return a.ContentType
}
