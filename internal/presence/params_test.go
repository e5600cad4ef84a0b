package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/live/internal/models"
)

func TestParseConnectParams(t *testing.T) {
	p, err := ParseConnectParams("12", "34", "host")
	require.NoError(t, err)
	assert.Equal(t, ConnectParams{WebinarID: 12, UserID: 34, Role: models.ParticipantHost}, p)

	p, err = ParseConnectParams("12", "abc", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.UserID)
	assert.Equal(t, models.ParticipantViewer, p.Role)

	for _, bad := range []string{"", "x", "0", "-3"} {
		_, err := ParseConnectParams(bad, "1", "viewer")
		assert.ErrorIs(t, err, ErrInvalidWebinar, bad)
	}
}

func TestSyntheticUserIDIsStableAndNegative(t *testing.T) {
	a := SyntheticUserID("conn-1")
	assert.Equal(t, a, SyntheticUserID("conn-1"))
	assert.NotEqual(t, a, SyntheticUserID("conn-2"))
	assert.Less(t, a, int64(0))
}
