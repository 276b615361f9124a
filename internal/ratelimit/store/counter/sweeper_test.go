package counter

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/ratelimit/models"
)

func TestSweeperDropsExpiredWindows(t *testing.T) {
	var clock atomic.Int64
	clock.Store(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	st := NewInMemoryWithClock(func() time.Time { return time.Unix(0, clock.Load()).UTC() })

	ctx := context.Background()
	for _, caller := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := st.Increment(ctx, models.NewKey(models.ActionLogin, caller), time.Minute)
		require.NoError(t, err)
	}
	_, err := st.Increment(ctx, models.NewKey(models.ActionLogin, "203.0.113.9"), time.Hour)
	require.NoError(t, err)
	require.Equal(t, 4, st.Len())

	clock.Add(int64(2 * time.Minute))

	sw := NewSweeper(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, sw.Start("@every 1s"))
	defer func() { <-sw.Stop().Done() }()

	assert.Eventually(t, func() bool { return st.Len() == 1 }, 3*time.Second, 50*time.Millisecond)
	c, err := st.Get(ctx, models.NewKey(models.ActionLogin, "203.0.113.9"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count)
}

func TestSweeperLifecycle(t *testing.T) {
	sw := NewSweeper(NewInMemory(), nil)

	assert.Error(t, sw.Start("whenever you like"))
	require.NoError(t, sw.Start("@every 1h"))
	assert.Error(t, sw.Start("@every 1h"), "a second start is refused")

	<-sw.Stop().Done()
	<-sw.Stop().Done()
}
