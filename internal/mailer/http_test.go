package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func testMessage() Message {
	return Message{
		To:      "ayse@school.test",
		Subject: "Daily Attendance Report - 5A (2024-03-04)",
		Body:    "Please find attached the attendance report for class 5A.",
		Attachment: &Attachment{
			Filename:    "attendance_5A_2024-03-04.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.3 fake"),
		},
	}
}

func TestHTTPMailerSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody httpMailRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	m, err := NewHTTPMailer(server.URL, "secret-token", "reports@school.test")
	if err != nil {
		t.Fatalf("NewHTTPMailer() error = %v", err)
	}

	msg := testMessage()
	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotBody.From != "reports@school.test" {
		t.Fatalf("request.from = %q", gotBody.From)
	}
	if gotBody.To != msg.To || gotBody.Subject != msg.Subject || gotBody.Text != msg.Body {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	if len(gotBody.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(gotBody.Attachments))
	}

	att := gotBody.Attachments[0]
	if att.Filename != "attendance_5A_2024-03-04.pdf" || att.ContentType != "application/pdf" {
		t.Fatalf("unexpected attachment metadata: %+v", att)
	}
	decoded, err := base64.StdEncoding.DecodeString(att.Content)
	if err != nil {
		t.Fatalf("attachment content is not base64: %v", err)
	}
	if string(decoded) != "%PDF-1.3 fake" {
		t.Fatalf("attachment content = %q", decoded)
	}
}

func TestHTTPMailerSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		statusCode int
		wantKind   Kind
	}{
		{name: "unauthorized is auth", statusCode: http.StatusUnauthorized, wantKind: KindAuth},
		{name: "forbidden is auth", statusCode: http.StatusForbidden, wantKind: KindAuth},
		{name: "bad request is rejected", statusCode: http.StatusBadRequest, wantKind: KindRejected},
		{name: "unprocessable is rejected", statusCode: http.StatusUnprocessableEntity, wantKind: KindRejected},
		{name: "too many requests is connection", statusCode: http.StatusTooManyRequests, wantKind: KindConnection},
		{name: "internal server error is connection", statusCode: http.StatusInternalServerError, wantKind: KindConnection},
		{name: "gateway timeout is timeout", statusCode: http.StatusGatewayTimeout, wantKind: KindTimeout},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("relay failed"))
			}))
			defer server.Close()

			m, err := NewHTTPMailer(server.URL, "", "reports@school.test")
			if err != nil {
				t.Fatalf("NewHTTPMailer() error = %v", err)
			}

			err = m.Send(context.Background(), testMessage())
			if err == nil {
				t.Fatal("expected error")
			}

			if got := KindOf(err); got != tc.wantKind {
				t.Fatalf("KindOf() = %q, want %q", got, tc.wantKind)
			}

			var deliveryErr *DeliveryError
			if !errors.As(err, &deliveryErr) {
				t.Fatalf("expected DeliveryError, got %T", err)
			}
			if deliveryErr.StatusCode != tc.statusCode {
				t.Fatalf("DeliveryError.StatusCode = %d, want %d", deliveryErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestHTTPMailerSendTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m, err := NewHTTPMailerWithClient(server.URL, "reports@school.test", resty.New())
	if err != nil {
		t.Fatalf("NewHTTPMailerWithClient() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = m.Send(ctx, testMessage())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := KindOf(err); got != KindTimeout {
		t.Fatalf("KindOf() = %q, want %q (err=%v)", got, KindTimeout, err)
	}
}

func TestHTTPMailerRejectsInvalidMessage(t *testing.T) {
	t.Parallel()

	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m, err := NewHTTPMailer(server.URL, "", "reports@school.test")
	if err != nil {
		t.Fatalf("NewHTTPMailer() error = %v", err)
	}

	msg := testMessage()
	msg.To = "not-an-address"
	err = m.Send(context.Background(), msg)
	if got := KindOf(err); got != KindRejected {
		t.Fatalf("KindOf() = %q, want %q", got, KindRejected)
	}
	if called {
		t.Fatal("relay must not be called for an invalid message")
	}
}

func TestNewHTTPMailerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPMailer("", "", "reports@school.test"); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewHTTPMailer("::bad", "", "reports@school.test"); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
	if _, err := NewHTTPMailer("http://relay.test/send", "", " "); err == nil {
		t.Fatal("expected error for missing sender")
	}
}
