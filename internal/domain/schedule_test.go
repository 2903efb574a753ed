package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseSendDays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		conv WeekdayConvention
		want []Weekday
	}{
		{name: "empty", raw: "", conv: ConventionMonday0, want: nil},
		{name: "monday based", raw: "0,2,4", conv: ConventionMonday0, want: []Weekday{Monday, Wednesday, Friday}},
		{name: "whitespace and duplicates", raw: " 4 , 0,,0 ", conv: ConventionMonday0, want: []Weekday{Monday, Friday}},
		{name: "seven read as sunday", raw: "7", conv: ConventionMonday0, want: []Weekday{Sunday}},
		{name: "out of range discarded", raw: "-1,8,99,3", conv: ConventionMonday0, want: []Weekday{Thursday}},
		{name: "garbage discarded", raw: "x,*,2", conv: ConventionMonday0, want: []Weekday{Wednesday}},
		{name: "sunday one", raw: "1,2,7", conv: ConventionSunday1, want: []Weekday{Monday, Saturday, Sunday}},
		{name: "sunday one rejects zero", raw: "0", conv: ConventionSunday1, want: nil},
		{name: "monday one", raw: "1,7", conv: ConventionMonday1, want: []Weekday{Monday, Sunday}},
		{name: "names", raw: "Mon,wednesday,FRI", conv: ConventionSunday1, want: []Weekday{Monday, Wednesday, Friday}},
		{name: "bad name", raw: "mo,mondays", conv: ConventionMonday0, want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseSendDays(tt.raw, tt.conv).Days()
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSendDays(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ParseSendDays(%q) = %v, want %v", tt.raw, got, tt.want)
				}
			}
		})
	}
}

func TestWeekdayConventionRoundTrip(t *testing.T) {
	t.Parallel()

	for d := Monday; d <= Sunday; d++ {
		for _, conv := range []WeekdayConvention{ConventionMonday0, ConventionSunday1, ConventionMonday1} {
			got, ok := conv.Normalize(conv.Encode(d))
			if !ok || got != d {
				t.Fatalf("%s: Normalize(Encode(%s)) = %s, %v", conv, d, got, ok)
			}
		}

		sunday1 := ParseSendDays(itoa(ConventionSunday1.Encode(d)), ConventionSunday1)
		monday0 := ParseSendDays(itoa(ConventionMonday0.Encode(d)), ConventionMonday0)
		if sunday1 != monday0 {
			t.Fatalf("weekday %s: sunday1 set %v != monday0 set %v", d, sunday1.Days(), monday0.Days())
		}
	}
}

func TestWeekdayFromTime(t *testing.T) {
	t.Parallel()

	// 2026-10-14 is a Wednesday.
	wed := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)
	if got := WeekdayFromTime(wed.Weekday()); got != Wednesday {
		t.Fatalf("WeekdayFromTime() = %s, want wed", got)
	}
	if got := DateOf(wed).Weekday(); got != Wednesday {
		t.Fatalf("Date.Weekday() = %s, want wed", got)
	}
	if got := WeekdayFromTime(time.Sunday); got != Sunday {
		t.Fatalf("WeekdayFromTime(Sunday) = %s, want sun", got)
	}
}

func TestWeekdaySetFormat(t *testing.T) {
	t.Parallel()

	set := NewWeekdaySet(Friday, Monday, Weekday(9), Wednesday)
	if got := set.Format(); got != "0,2,4" {
		t.Fatalf("Format() = %q, want 0,2,4", got)
	}
	if (WeekdaySet(0)).Format() != "" {
		t.Fatal("empty set should format as empty string")
	}
	if got := set.FormatAs(ConventionSunday1); got != "2,4,6" {
		t.Fatalf("FormatAs(sunday1) = %q, want 2,4,6", got)
	}
	if got := ParseSendDays(set.FormatAs(ConventionMonday1), ConventionMonday1); got != set {
		t.Fatalf("monday1 round trip = %v, want %v", got.Days(), set.Days())
	}
}

func TestParseWeekdayCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token  string
		conv   WeekdayConvention
		want   Weekday
		wantOK bool
	}{
		{token: " Wed ", conv: ConventionMonday0, want: Wednesday, wantOK: true},
		{token: "thursday", conv: ConventionSunday1, want: Thursday, wantOK: true},
		{token: "1", conv: ConventionSunday1, want: Sunday, wantOK: true},
		{token: "7", conv: ConventionMonday0, want: Sunday, wantOK: true},
		{token: "8", conv: ConventionMonday1, wantOK: false},
		{token: "-1", conv: ConventionMonday0, wantOK: false},
		{token: "funday", conv: ConventionMonday0, wantOK: false},
	}

	for _, tt := range tests {
		got, ok := ParseWeekdayCode(tt.token, tt.conv)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Fatalf("ParseWeekdayCode(%q, %s) = (%s, %v), want (%s, %v)", tt.token, tt.conv, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseSendTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   TimeOfDay
		wantOK bool
	}{
		{raw: "08:00", want: TimeOfDay{8, 0}, wantOK: true},
		{raw: " 17:45 ", want: TimeOfDay{17, 45}, wantOK: true},
		{raw: "7:05", want: TimeOfDay{7, 5}, wantOK: true},
		{raw: "25:99", want: DefaultSendTime},
		{raw: "", want: DefaultSendTime},
		{raw: "noon", want: DefaultSendTime},
	}

	for _, tt := range tests {
		got, ok := ParseSendTime(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("ParseSendTime(%q) = %v, %v, want %v, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}

	if _, err := ValidateSendTime("24:00"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ValidateSendTime() error = %v, want ErrValidation", err)
	}
}

func TestTimeOfDayReachedBy(t *testing.T) {
	t.Parallel()

	at := TimeOfDay{Hour: 8, Minute: 0}
	day := time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

	if at.ReachedBy(day.Add(7*time.Hour + 59*time.Minute + 59*time.Second)) {
		t.Fatal("07:59:59 should not reach 08:00")
	}
	if !at.ReachedBy(day.Add(8 * time.Hour)) {
		t.Fatal("08:00 should reach 08:00")
	}
	if !at.ReachedBy(day.Add(23 * time.Hour)) {
		t.Fatal("23:00 should reach 08:00")
	}
}

func TestDateParseAndFormat(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2026-03-07")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if d.String() != "2026-03-07" {
		t.Fatalf("String() = %s, want 2026-03-07", d)
	}

	if _, err := ParseDate("07/03/2026"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseDate() error = %v, want ErrValidation", err)
	}

	marker := DispatchMarker{LastRunDate: &d}
	if !marker.SentOn(Date{2026, time.March, 7}) {
		t.Fatal("marker should match same date")
	}
	if (DispatchMarker{}).SentOn(d) {
		t.Fatal("empty marker should never match")
	}
}

func itoa(n int) string {
	return string(rune('0' + n))
}
