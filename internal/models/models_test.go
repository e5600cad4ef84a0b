package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Host ")
	require.NoError(t, err)
	assert.Equal(t, RoleHost, r)
	assert.True(t, r.IsStaff())
	assert.False(t, RoleGuest.IsStaff())

	_, err = ParseRole("speaker")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestParseParticipantRoleDefaultsToViewer(t *testing.T) {
	assert.Equal(t, ParticipantHost, ParseParticipantRole("host"))
	assert.Equal(t, ParticipantViewer, ParseParticipantRole(""))
	assert.Equal(t, ParticipantViewer, ParseParticipantRole("admin"))
}

func TestWebinarStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to WebinarStatus
		ok       bool
	}{
		{StatusScheduled, StatusLive, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusLive, StatusCompleted, true},
		{StatusLive, StatusScheduled, false},
		{StatusCompleted, StatusLive, false},
		{StatusCancelled, StatusScheduled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSubscriptionIsCurrent(t *testing.T) {
	now := time.Date(2025, 10, 5, 12, 0, 0, 0, time.UTC)
	s := &Subscription{IsActive: true, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	assert.True(t, s.IsCurrent(now))
	assert.False(t, s.IsCurrent(now.Add(time.Hour)))

	s.IsActive = false
	assert.False(t, s.IsCurrent(now))
}
