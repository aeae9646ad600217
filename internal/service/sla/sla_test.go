package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Boundaries(t *testing.T) {
	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		dueAt time.Time
		want  Status
	}{
		{"exactly at window edge", now.Add(24 * time.Hour), DueSoon},
		{"one second past window", now.Add(24*time.Hour + time.Second), OnTrack},
		{"one second late", now.Add(-time.Second), Overdue},
		{"due right now", now, DueSoon},
		{"far future", now.Add(72 * time.Hour), OnTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.dueAt, now, DefaultWarningWindow))
		})
	}
}

func TestClassify_CustomWindow(t *testing.T) {
	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, OnTrack, Classify(now.Add(3*time.Hour), now, 2*time.Hour))
	assert.Equal(t, DueSoon, Classify(now.Add(3*time.Hour), now, 0), "zero window falls back to 24h")
}

func TestRankOrder(t *testing.T) {
	assert.Less(t, Rank(Overdue), Rank(DueSoon))
	assert.Less(t, Rank(DueSoon), Rank(OnTrack))
	assert.Less(t, Rank(OnTrack), Rank(None))
}

func TestFollowupDue(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC), FollowupDue(occurred, 3))
	assert.Equal(t, occurred.Add(48*time.Hour), ReportDue(occurred, 48))
}
