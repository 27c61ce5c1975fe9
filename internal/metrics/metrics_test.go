package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()
	require.NotNil(t, m)
	require.NotNil(t, m.Registry())

	m.TransfersInitiated.Inc()
	m.TransfersByOutcome.WithLabelValues("COMPLETED").Inc()
	m.TransfersByOutcome.WithLabelValues("FAILED").Add(2)
	m.ReservationConflicts.Inc()
	m.ReviewEscalations.Inc()
	m.GatewayCallDuration.WithLabelValues("mpesa", "submit").Observe(0.42)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransfersInitiated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransfersByOutcome.WithLabelValues("COMPLETED")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TransfersByOutcome.WithLabelValues("FAILED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReservationConflicts))
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Each instance registers on its own registry so tests and binaries
	// never collide on duplicate collector registration.
	a := New()
	b := New()
	assert.NotSame(t, a.Registry(), b.Registry())
}
