package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCounts(t *testing.T) {
	ObserveCounts(context.Background(), 77, 3, 4)
	assert.Equal(t, float64(3), testutil.ToFloat64(WebinarViewers.WithLabelValues("77")))
	assert.Equal(t, float64(4), testutil.ToFloat64(WebinarParticipants.WithLabelValues("77")))

	ObserveCounts(context.Background(), 77, 0, 0)
	assert.Equal(t, 0, testutil.CollectAndCount(WebinarParticipants))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("x")))
}
