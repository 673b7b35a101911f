package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedRandom replays queued Float64 draws and falls back to 0.5, which means
// "no rug pull, no noise" for any realistic rug chance.
type scriptedRandom struct {
	floats []float64
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRandom) Intn(n int) int { return 0 }

func testParams() Params {
	return Params{
		TickInterval: time.Millisecond,
		RugChance:    0.1,
		MaxTicks:     5,
		Growth:       0.01,
		Noise:        0.01,
		EventBuffer:  64,
	}
}

// newSteppedClock returns a clock whose run is opened but not started, so tests drive
// step() by hand.
func newSteppedClock(t *testing.T, params Params, rnd Random) *Clock {
	t.Helper()
	c := NewClock(zap.NewNop(), params, rnd)
	c.open(context.Background(), params.EventBuffer)
	t.Cleanup(c.cancel)
	return c
}

func drain(c *Clock) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestClock_TickGrowsMultiplier(t *testing.T) {
	// Arrange
	c := newSteppedClock(t, testParams(), &scriptedRandom{})
	require.True(t, c.newRound())

	// Act
	require.True(t, c.step())
	require.True(t, c.step())

	// Assert
	events := drain(c)
	require.Len(t, events, 3)
	assert.Equal(t, EventRoundStart, events[0].Kind)
	assert.Equal(t, 1.0, events[0].Snapshot.CurrentMultiplier)
	assert.Equal(t, EventTick, events[1].Kind)
	assert.Equal(t, 1, events[1].Snapshot.CurrentTick)
	assert.InDelta(t, 1.01, events[1].Snapshot.CurrentMultiplier, 1e-9)
	assert.Equal(t, 2, events[2].Snapshot.TotalTicks)
	assert.InDelta(t, 1.02, events[2].Snapshot.CurrentMultiplier, 1e-9)
}

func TestClock_NoiseIsBounded(t *testing.T) {
	// Draw order per tick: rug draw, noise draw, value-in draw.
	c := newSteppedClock(t, testParams(), &scriptedRandom{floats: []float64{
		0.5,           // round value-in
		0.9, 1.0, 0.5, // max upward noise
		0.9, 0.0, 0.5, // max downward noise
	}})
	require.True(t, c.newRound())
	require.True(t, c.step())
	require.True(t, c.step())

	events := drain(c)
	require.Len(t, events, 3)
	assert.InDelta(t, 1.01*1.01, events[1].Snapshot.CurrentMultiplier, 1e-9)
	assert.InDelta(t, 1.02*0.99, events[2].Snapshot.CurrentMultiplier, 1e-9)
}

func TestClock_RugPullStartsNextRoundSynchronously(t *testing.T) {
	// Arrange: one normal tick, then a rug draw below the chance.
	c := newSteppedClock(t, testParams(), &scriptedRandom{floats: []float64{
		0.5,
		0.9, 0.5, 0.5,
		0.01,
	}})
	require.True(t, c.newRound())
	require.True(t, c.step())

	// Act
	require.True(t, c.step())

	// Assert
	events := drain(c)
	require.Len(t, events, 4)
	rugged := events[2]
	assert.Equal(t, EventRugPull, rugged.Kind)
	assert.True(t, rugged.Snapshot.RugPulled)
	assert.False(t, rugged.Snapshot.Active)
	assert.Equal(t, 1, rugged.Snapshot.CurrentTick, "a rug pull does not advance the tick")

	next := events[3]
	assert.Equal(t, EventRoundStart, next.Kind)
	assert.NotEqual(t, rugged.Snapshot.RoundID, next.Snapshot.RoundID)
	assert.True(t, next.Snapshot.Active)
	assert.Equal(t, 0, next.Snapshot.CurrentTick)

	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, next.Snapshot.RoundID, current.RoundID)
}

func TestClock_RoundEndsAtTickCap(t *testing.T) {
	params := testParams()
	params.RugChance = 0
	c := newSteppedClock(t, params, &scriptedRandom{})
	require.True(t, c.newRound())

	for i := 0; i < params.MaxTicks; i++ {
		require.True(t, c.step())
	}

	events := drain(c)
	// start + 5 ticks + end + next start
	require.Len(t, events, params.MaxTicks+3)
	last := events[params.MaxTicks]
	assert.Equal(t, EventTick, last.Kind)
	assert.Equal(t, params.MaxTicks, last.Snapshot.CurrentTick)

	end := events[params.MaxTicks+1]
	assert.Equal(t, EventRoundEnd, end.Kind)
	assert.False(t, end.Snapshot.Active)
	assert.False(t, end.Snapshot.RugPulled)
	assert.Equal(t, EventRoundStart, events[params.MaxTicks+2].Kind)
	assert.Equal(t, 2, c.Rounds())
}

func TestClock_StepOnInactiveRoundIsNoop(t *testing.T) {
	c := newSteppedClock(t, testParams(), &scriptedRandom{})
	c.current = RoundSnapshot{RoundID: "round-done", Active: false}

	assert.True(t, c.step())
	assert.Empty(t, drain(c))
}

func TestClock_RunOrderingInvariants(t *testing.T) {
	// Arrange: a real run with frequent rug pulls and short rounds.
	params := Params{TickInterval: time.Millisecond, RugChance: 0.2, MaxTicks: 8, Growth: 0.01, Noise: 0.01, EventBuffer: 8}
	c := NewClock(zap.NewNop(), params, nil)
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrClockRunning)

	// Act
	var events []Event
	for ev := range c.Events() {
		events = append(events, ev)
		if len(events) == 300 {
			c.Stop()
			break
		}
	}
	c.Stop() // idempotent

	// Assert
	require.Len(t, events, 300)
	assert.Equal(t, EventRoundStart, events[0].Kind)

	seen := map[string]bool{}
	ended := map[string]bool{}
	current := ""
	lastTick := 0
	for i, ev := range events {
		s := ev.Snapshot
		switch ev.Kind {
		case EventRoundStart:
			assert.False(t, seen[s.RoundID], "round id reused at %d", i)
			seen[s.RoundID] = true
			if current != "" {
				assert.True(t, ended[current], "round started before previous ended at %d", i)
			}
			current, lastTick = s.RoundID, 0
		case EventTick:
			assert.Equal(t, current, s.RoundID)
			assert.False(t, ended[s.RoundID], "tick after terminal event at %d", i)
			assert.True(t, s.Active)
			assert.Equal(t, lastTick+1, s.CurrentTick)
			assert.Greater(t, s.CurrentMultiplier, 0.0)
			lastTick = s.CurrentTick
		case EventRugPull, EventRoundEnd:
			assert.Equal(t, current, s.RoundID)
			assert.False(t, s.Active)
			assert.Equal(t, ev.Kind == EventRugPull, s.RugPulled)
			ended[s.RoundID] = true
		}
	}

	// ranging over the channel terminates only once it is closed
	for range c.Events() {
	}
}

func TestClock_StopBeforeStart(t *testing.T) {
	c := NewClock(zap.NewNop(), testParams(), nil)
	assert.NotPanics(t, c.Stop)
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestEventKind(t *testing.T) {
	assert.Equal(t, "rug_pull", EventRugPull.String())
	assert.True(t, EventRoundEnd.Terminal())
	assert.False(t, EventTick.Terminal())
}
