package domain

import (
	"fmt"
	"strings"
	"time"
)

// Teacher is a potential report recipient.
type Teacher struct {
	ID        int64
	Name      string
	Email     string
	ClassName string
}

// Eligible reports whether the teacher can receive a class report.
// The returned reason is empty when eligible.
func (t Teacher) Eligible() (bool, string) {
	email := strings.TrimSpace(t.Email)
	class := strings.TrimSpace(t.ClassName)
	switch {
	case email == "" && class == "":
		return false, "missing email and class"
	case email == "":
		return false, "missing email"
	case class == "":
		return false, "missing class"
	}
	return true, ""
}

// Student is a roster member.
type Student struct {
	ID        int64
	Name      string
	ClassName string
}

// AttendanceScan is a single fingerprint check-in.
type AttendanceScan struct {
	ID        int64
	StudentID int64
	ScannedAt time.Time
}

// AttendanceStatus is the computed status of a student on a date.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceUnknown AttendanceStatus = "UNKNOWN"
)

func (s AttendanceStatus) String() string { return string(s) }

func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceUnknown:
		return true
	}
	return false
}

// Label is the human-readable form used in rendered reports.
func (s AttendanceStatus) Label() string {
	switch s {
	case AttendancePresent:
		return "Present"
	case AttendanceLate:
		return "Late"
	case AttendanceAbsent:
		return "Absent"
	default:
		return "Unknown"
	}
}

// RosterEntry pairs a student with their status for the report date.
type RosterEntry struct {
	Student Student
	Status  AttendanceStatus
}

// ClassReport is the attachment and envelope for one recipient.
type ClassReport struct {
	ClassName string
	Date      Date
}

func (r ClassReport) Subject() string {
	return fmt.Sprintf("Daily Attendance Report for Class %s - %s", r.ClassName, r.Date)
}

func (r ClassReport) Body() string {
	return fmt.Sprintf("Please find attached the daily attendance report for your class, %s.", r.ClassName)
}

func (r ClassReport) AttachmentFilename() string {
	return fmt.Sprintf("%s_attendance_%s.pdf", r.ClassName, r.Date)
}
