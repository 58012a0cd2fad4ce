package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/spindle/internal/logging"
)

// The rate limiter's derived rate/burst must admit exactly the configured
// per-window budget and no more within that same instant.
func TestRateLimiterAllowsBudgetThenThrottles(t *testing.T) {
	c := New(Config{RequestsPerWindow: 50, WindowSeconds: 5, BurstSize: 50}, nil, logging.New("TEST", logging.Warn))

	now := time.Now()
	for i := 0; i < 50; i++ {
		require.True(t, c.limiter.AllowN(now, 1), "call %d should fit the burst budget", i)
	}
	require.False(t, c.limiter.AllowN(now, 1), "51st call in the same instant must be throttled")

	// A full window later the budget has fully replenished.
	require.True(t, c.limiter.AllowN(now.Add(5*time.Second), 1))
}
