// Package schedule decides whether the daily report batch should run.
//
// Decide is pure: it reads only its arguments, so it can be evaluated on every
// polling tick and from the manual trigger without side effects.
package schedule

import (
	"fmt"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
)

// Action is the outcome of a policy evaluation.
type Action string

const (
	ActionRun  Action = "RUN"
	ActionSkip Action = "SKIP"
)

// Reason explains a Skip. It is empty for Run.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNotScheduledDay  Reason = "NOT_SCHEDULED_DAY"
	ReasonTooEarly         Reason = "TOO_EARLY"
	ReasonAlreadySentToday Reason = "ALREADY_SENT_TODAY"
)

func (r Reason) String() string { return string(r) }

// Decision is returned by Decide.
type Decision struct {
	Action Action
	Reason Reason
	Date   domain.Date
}

func (d Decision) ShouldRun() bool { return d.Action == ActionRun }

func (d Decision) String() string {
	if d.ShouldRun() {
		return fmt.Sprintf("run for %s", d.Date)
	}
	return fmt.Sprintf("skip for %s: %s", d.Date, d.Reason)
}

func run(date domain.Date) Decision {
	return Decision{Action: ActionRun, Date: date}
}

func skip(date domain.Date, reason Reason) Decision {
	return Decision{Action: ActionSkip, Reason: reason, Date: date}
}

// Decide applies the day, time and duplicate gates in that order.
// now must already be in the school's location.
func Decide(now time.Time, cfg domain.ScheduleConfig, marker domain.DispatchMarker) Decision {
	today := domain.DateOf(now)

	if !cfg.SendDays.Contains(domain.WeekdayFromTime(now.Weekday())) {
		return skip(today, ReasonNotScheduledDay)
	}
	if !cfg.SendTime.ReachedBy(now) {
		return skip(today, ReasonTooEarly)
	}
	if marker.SentOn(today) {
		return skip(today, ReasonAlreadySentToday)
	}
	return run(today)
}

// Force returns a Run decision for now's date regardless of the gates.
func Force(now time.Time) Decision {
	return run(domain.DateOf(now))
}
