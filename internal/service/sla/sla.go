// Package sla classifies due timestamps against a warning window.
package sla

import "time"

type Status string

const (
	Overdue Status = "overdue"
	DueSoon Status = "due_soon"
	OnTrack Status = "on_track"
	// None means no badge: the item is complete or carries no deadline.
	None Status = ""
)

const DefaultWarningWindow = 24 * time.Hour

// Classify compares dueAt with now. A due time exactly window away is still
// due_soon; one nanosecond past now is overdue.
func Classify(dueAt, now time.Time, window time.Duration) Status {
	if window <= 0 {
		window = DefaultWarningWindow
	}
	remaining := dueAt.Sub(now)
	switch {
	case remaining < 0:
		return Overdue
	case remaining <= window:
		return DueSoon
	default:
		return OnTrack
	}
}

// Rank orders statuses for queue sorting: overdue first, unbadged last.
func Rank(s Status) int {
	switch s {
	case Overdue:
		return 0
	case DueSoon:
		return 1
	case OnTrack:
		return 2
	default:
		return 3
	}
}

// FollowupDue is the deadline for a fall follow-up.
func FollowupDue(occurredAt time.Time, followupDays int) time.Time {
	return occurredAt.Add(time.Duration(followupDays) * 24 * time.Hour)
}

// ReportDue is the deadline for an assessment review.
func ReportDue(assessedAt time.Time, turnaroundHours int) time.Time {
	return assessedAt.Add(time.Duration(turnaroundHours) * time.Hour)
}
