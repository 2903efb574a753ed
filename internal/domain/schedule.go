package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings keys owned by the configuration store.
const (
	SettingSendDays           = "send_days"
	SettingSendDaysConvention = "send_days_convention"
	SettingSendTime           = "send_time"
	SettingLastReportSentDate = "last_report_sent_date"
)

// DefaultSendTime is used when send_time is missing or unparsable.
var DefaultSendTime = TimeOfDay{Hour: 8, Minute: 0}

// Weekday is the canonical weekday index, Monday=0 .. Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func (w Weekday) IsValid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.IsValid() {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// WeekdayFromTime converts a time.Weekday (Sunday=0) to the Monday-based index.
func WeekdayFromTime(wd time.Weekday) Weekday {
	return Weekday((int(wd) + 6) % 7)
}

// WeekdayConvention describes how integer weekday codes are stored.
type WeekdayConvention string

const (
	// ConventionMonday0 stores Monday=0..Sunday=6. A stored 7 is read as Sunday.
	ConventionMonday0 WeekdayConvention = "monday0"
	// ConventionSunday1 stores Sunday=1..Saturday=7.
	ConventionSunday1 WeekdayConvention = "sunday1"
	// ConventionMonday1 stores Monday=1..Sunday=7.
	ConventionMonday1 WeekdayConvention = "monday1"
)

func (c WeekdayConvention) IsValid() bool {
	switch c {
	case ConventionMonday0, ConventionSunday1, ConventionMonday1:
		return true
	}
	return false
}

// ParseWeekdayConvention returns ConventionMonday0 for empty or unknown input.
func ParseWeekdayConvention(s string) WeekdayConvention {
	c := WeekdayConvention(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return ConventionMonday0
	}
	return c
}

// Normalize maps a stored integer code to the canonical index.
func (c WeekdayConvention) Normalize(code int) (Weekday, bool) {
	switch c {
	case ConventionSunday1:
		if code < 1 || code > 7 {
			return 0, false
		}
		return Weekday((code + 5) % 7), true
	case ConventionMonday1:
		if code < 1 || code > 7 {
			return 0, false
		}
		return Weekday(code - 1), true
	default:
		if code >= 0 && code <= 6 {
			return Weekday(code), true
		}
		if code == 7 {
			return Sunday, true
		}
		return 0, false
	}
}

// Encode is the inverse of Normalize.
func (c WeekdayConvention) Encode(w Weekday) int {
	switch c {
	case ConventionSunday1:
		return (int(w)+1)%7 + 1
	case ConventionMonday1:
		return int(w) + 1
	default:
		return int(w)
	}
}

// WeekdaySet is a set of canonical weekdays. The zero value is empty.
type WeekdaySet uint8

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d Weekday) WeekdaySet {
	if !d.IsValid() {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Contains(d Weekday) bool {
	return d.IsValid() && s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool { return s == 0 }

// Days returns the members in Monday..Sunday order.
func (s WeekdaySet) Days() []Weekday {
	days := make([]Weekday, 0, 7)
	for d := Monday; d <= Sunday; d++ {
		if s.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

// Format renders the set as comma-separated canonical codes, e.g. "0,2,4".
func (s WeekdaySet) Format() string {
	days := s.Days()
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// FormatAs renders the set as comma-separated codes in conv, in Monday..Sunday order.
func (s WeekdaySet) FormatAs(conv WeekdayConvention) string {
	days := s.Days()
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(conv.Encode(d)))
	}
	return strings.Join(parts, ",")
}

// ParseSendDays parses a stored send_days value. Unknown codes are dropped.
func ParseSendDays(raw string, conv WeekdayConvention) WeekdaySet {
	var set WeekdaySet
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if day, ok := ParseWeekdayCode(part, conv); ok {
			set = set.With(day)
		}
	}
	return set
}

// ParseWeekdayCode reads one send_days token: a weekday name or an integer
// code in the given convention.
func ParseWeekdayCode(token string, conv WeekdayConvention) (Weekday, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if day, ok := weekdayByName(token); ok {
		return day, true
	}
	code, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return conv.Normalize(code)
}

func weekdayByName(s string) (Weekday, bool) {
	if len(s) < 3 {
		return 0, false
	}
	prefix := s[:3]
	for i, name := range weekdayNames {
		if prefix == name && strings.HasPrefix(fullWeekdayNames[i], s) {
			return Weekday(i), true
		}
	}
	return 0, false
}

var fullWeekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ReachedBy reports whether the wall-clock time of now is at or after t.
func (t TimeOfDay) ReachedBy(now time.Time) bool {
	h, m, _ := now.Clock()
	return h*60+m >= t.Hour*60+t.Minute
}

// ParseSendTime parses HH:MM. On failure it returns DefaultSendTime and false.
func ParseSendTime(raw string) (TimeOfDay, bool) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return DefaultSendTime, false
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, true
}

// ValidateSendTime is the strict form used when an operator saves settings.
func ValidateSendTime(raw string) (TimeOfDay, error) {
	t, ok := ParseSendTime(raw)
	if !ok {
		return TimeOfDay{}, fmt.Errorf("%w: send time must be HH:MM, got %q", ErrValidation, raw)
	}
	return t, nil
}

// ScheduleConfig is the operator-owned schedule read by the policy.
type ScheduleConfig struct {
	SendDays WeekdaySet
	SendTime TimeOfDay
}

// DispatchMarker records the last date on which a batch committed.
type DispatchMarker struct {
	LastRunDate *Date
}

// SentOn reports whether the marker equals d.
func (m DispatchMarker) SentOn(d Date) bool {
	return m.LastRunDate != nil && *m.LastRunDate == d
}
