package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPosition(roundID string, entry float64, at time.Time) Position {
	return Position{
		RoundID:         roundID,
		EntryTick:       2,
		EntryMultiplier: entry,
		Size:            0.1,
		EntryTime:       at,
	}
}

func TestLedger_OpenAndDuplicate(t *testing.T) {
	l := New()
	p := newPosition("round-a", 1.0, time.Unix(100, 0))

	require.NoError(t, l.Open(p))
	err := l.Open(p)

	assert.ErrorIs(t, err, ErrDuplicatePosition)
	assert.Equal(t, 1, l.Len())
	got, ok := l.Get("round-a")
	require.True(t, ok)
	assert.Equal(t, 1.0, got.CurrentMultiplier)
	assert.Zero(t, got.CurrentProfitPercent)
}

func TestLedger_RefreshKeepsProfitInvariant(t *testing.T) {
	testCases := []struct {
		name       string
		entry      float64
		multiplier float64
		wantPct    float64
		wantProfit float64
	}{
		{name: "Gain", entry: 1.0, multiplier: 1.05, wantPct: 5, wantProfit: 0.005},
		{name: "Loss", entry: 1.2, multiplier: 1.068, wantPct: -11, wantProfit: -0.011},
		{name: "Flat", entry: 1.3, multiplier: 1.3, wantPct: 0, wantProfit: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			l := New()
			require.NoError(t, l.Open(newPosition("r", tc.entry, time.Now())))

			// Act
			first, err := l.Refresh("r", tc.multiplier)
			require.NoError(t, err)
			second, err := l.Refresh("r", tc.multiplier)
			require.NoError(t, err)

			// Assert
			assert.InDelta(t, tc.wantPct, first.CurrentProfitPercent, 1e-9)
			assert.InDelta(t, tc.wantProfit, first.CurrentProfit, 1e-9)
			assert.InDelta(t, (first.CurrentMultiplier/first.EntryMultiplier-1)*100, first.CurrentProfitPercent, 1e-12)
			assert.Equal(t, first, second, "refresh is idempotent")
		})
	}
}

func TestLedger_CloseAndMissing(t *testing.T) {
	l := New()
	require.NoError(t, l.Open(newPosition("round-a", 1.0, time.Now())))

	closed, err := l.Close("round-a")
	require.NoError(t, err)
	assert.Equal(t, "round-a", closed.RoundID)
	assert.False(t, l.Has("round-a"))

	_, err = l.Close("round-a")
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = l.Refresh("round-a", 1.1)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestLedger_AllIsRestartableAndOrdered(t *testing.T) {
	// Arrange
	l := New()
	base := time.Unix(1000, 0)
	require.NoError(t, l.Open(newPosition("round-c", 1.0, base.Add(2*time.Second))))
	require.NoError(t, l.Open(newPosition("round-a", 1.0, base)))
	require.NoError(t, l.Open(newPosition("round-b", 1.0, base.Add(time.Second))))

	collect := func() []string {
		var ids []string
		for p := range l.All() {
			ids = append(ids, p.RoundID)
		}
		return ids
	}

	// Act & Assert
	assert.Equal(t, []string{"round-a", "round-b", "round-c"}, collect())
	assert.Equal(t, []string{"round-a", "round-b", "round-c"}, collect())

	// Closing while ranging is allowed and later iterations reflect it.
	for p := range l.All() {
		_, err := l.Close(p.RoundID)
		require.NoError(t, err)
		break
	}
	assert.Equal(t, []string{"round-b", "round-c"}, collect())
}

func TestLedger_AllBreaksEntryTimeTiesByRoundID(t *testing.T) {
	l := New()
	at := time.Unix(1000, 0)
	require.NoError(t, l.Open(newPosition("round-z", 1.0, at)))
	require.NoError(t, l.Open(newPosition("round-m", 1.0, at)))
	require.NoError(t, l.Open(newPosition("round-early", 1.0, at.Add(-time.Second))))

	var ids []string
	for p := range l.All() {
		ids = append(ids, p.RoundID)
	}
	assert.Equal(t, []string{"round-early", "round-m", "round-z"}, ids)
}

func TestLedger_ConcurrentReaders(t *testing.T) {
	l := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			id := fmt.Sprintf("round-%d", i)
			_ = l.Open(newPosition(id, 1.0, time.Now()))
			_, _ = l.Refresh(id, 1.1)
			if i%2 == 0 {
				_, _ = l.Close(id)
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				for p := range l.All() {
					_ = p.CurrentProfit
				}
				_ = l.Len()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 100, l.Len())
}
