package recovery

import (
	"math"
	"time"
)

// civilDay returns the number of whole days between the Unix epoch and the
// calendar date of t, read in t's own location.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// NormalizeDate strips the clock from t and returns its calendar date as
// midnight UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ElapsedDays returns the number of calendar days from startDate to now.
// The result is negative when startDate lies after now.
func ElapsedDays(startDate, now time.Time) int {
	return int(civilDay(now) - civilDay(startDate))
}

// DeriveCurrentDay returns clamp(floor(now - startDate) + 1, 1, ProgramLength).
func DeriveCurrentDay(startDate, now time.Time) int {
	day := ElapsedDays(startDate, now) + 1
	if day < 1 {
		return 1
	}
	if day > ProgramLength {
		return ProgramLength
	}
	return day
}

// DeriveStatus reports whether the program is still running at now.
func DeriveStatus(startDate, now time.Time) ProgramStatus {
	if ElapsedDays(startDate, now) >= ProgramLength {
		return StatusCompleted
	}
	return StatusActive
}

// DaysRemaining returns the days left after today, never negative.
func DaysRemaining(startDate, now time.Time) int {
	left := ProgramLength - ElapsedDays(startDate, now) - 1
	if left < 0 {
		return 0
	}
	if left > ProgramLength-1 {
		return ProgramLength - 1
	}
	return left
}

// IsFuture reports whether date falls on a later calendar day than now.
func IsFuture(date, now time.Time) bool {
	return civilDay(date) > civilDay(now)
}

// ValidDay reports whether day lies inside the program.
func ValidDay(day int) bool {
	return day >= 1 && day <= ProgramLength
}

// Percentage returns round(100 * completed / total), or 0 when total is 0.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(completed) / float64(total)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// CurrentDay derives the enrollment's program day at now.
func (e Enrollment) CurrentDay(now time.Time) int {
	return DeriveCurrentDay(e.StartDate.UTC(), now)
}

// Status derives the enrollment's lifecycle state at now.
func (e Enrollment) Status(now time.Time) ProgramStatus {
	return DeriveStatus(e.StartDate.UTC(), now)
}
