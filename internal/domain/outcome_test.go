package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTeacherEligible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		teacher Teacher
		want    bool
		reason  string
	}{
		{name: "eligible", teacher: Teacher{Email: "a@school.test", ClassName: "5A"}, want: true},
		{name: "missing email", teacher: Teacher{ClassName: "5A"}, reason: "missing email"},
		{name: "blank class", teacher: Teacher{Email: "a@school.test", ClassName: "  "}, reason: "missing class"},
		{name: "missing both", teacher: Teacher{}, reason: "missing email and class"},
	}

	for _, tt := range tests {
		got, reason := tt.teacher.Eligible()
		if got != tt.want || reason != tt.reason {
			t.Fatalf("%s: Eligible() = %v, %q, want %v, %q", tt.name, got, reason, tt.want, tt.reason)
		}
	}
}

func TestNewRunOutcome(t *testing.T) {
	t.Parallel()

	date := Date{2026, time.October, 14}
	results := []RecipientResult{
		Delivered(Teacher{ID: 1}, time.Second),
		Failed(Teacher{ID: 2}, FailureTimeout, errors.New("deadline exceeded"), time.Second),
		Delivered(Teacher{ID: 3}, time.Second),
	}
	skipped := []SkippedRecipient{{RecipientID: 4, Reason: "missing email"}}

	outcome := NewRunOutcome(date, results, skipped)
	if outcome.Attempted != 3 || outcome.Delivered != 2 {
		t.Fatalf("attempted=%d delivered=%d, want 3 and 2", outcome.Attempted, outcome.Delivered)
	}
	if len(outcome.Failed) != 1 || outcome.Failed[0].RecipientID != 2 || outcome.Failed[0].Kind != FailureTimeout {
		t.Fatalf("failed = %+v, want recipient 2 timeout", outcome.Failed)
	}
	if !outcome.PartialFailure() {
		t.Fatal("expected partial failure")
	}
	if !strings.Contains(outcome.Summary(), "attempted 3, delivered 2, failed 1, skipped 1") {
		t.Fatalf("Summary() = %q", outcome.Summary())
	}
}

func TestClassReportEnvelope(t *testing.T) {
	t.Parallel()

	r := ClassReport{ClassName: "5A", Date: Date{2026, time.October, 14}}
	if r.Subject() != "Daily Attendance Report for Class 5A - 2026-10-14" {
		t.Fatalf("Subject() = %q", r.Subject())
	}
	if r.AttachmentFilename() != "5A_attendance_2026-10-14.pdf" {
		t.Fatalf("AttachmentFilename() = %q", r.AttachmentFilename())
	}
	if !strings.HasSuffix(r.Body(), "your class, 5A.") {
		t.Fatalf("Body() = %q", r.Body())
	}
}
