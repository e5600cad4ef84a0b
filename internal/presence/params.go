package presence

import (
	"errors"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"github.com/aura-webinar/live/internal/models"
)

// ErrInvalidWebinar means the connection did not name a usable webinar and stays ungrouped.
var ErrInvalidWebinar = errors.New("invalid webinar id")

// ConnectParams are the query parameters of a real-time connection.
type ConnectParams struct {
	WebinarID int64
	UserID    int64 // 0 when absent; Register substitutes a synthetic id
	Role      models.ParticipantRole
}

// ParseConnectParams parses webinarId, userId and role. A malformed userId is treated as absent.
func ParseConnectParams(webinarID, userID, role string) (ConnectParams, error) {
	p := ConnectParams{Role: models.ParseParticipantRole(role)}
	id, err := strconv.ParseInt(strings.TrimSpace(webinarID), 10, 64)
	if err != nil || id <= 0 {
		return p, ErrInvalidWebinar
	}
	p.WebinarID = id
	if uid, err := strconv.ParseInt(strings.TrimSpace(userID), 10, 64); err == nil && uid > 0 {
		p.UserID = uid
	}
	return p, nil
}

// SyntheticUserID derives a stable negative user id from a connection id.
// Real user ids are positive, so the two never collide.
func SyntheticUserID(connID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(connID))
	v := int64(h.Sum64() & math.MaxInt64)
	if v == 0 {
		v = 1
	}
	return -v
}
