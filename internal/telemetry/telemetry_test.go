package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rugs-trade-bot-go/internal/game"
)

// recorder is a Sink that keeps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []Event
	gate   chan struct{}
}

func (r *recorder) Emit(ev Event) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestRoundEvent(t *testing.T) {
	at := time.Unix(1700000000, 0)
	ev := RoundEvent(game.Event{
		Kind: game.EventRugPull,
		Snapshot: game.RoundSnapshot{
			RoundID:           "round-1",
			CurrentTick:       42,
			CurrentMultiplier: 1.37,
			TotalPlayers:      12,
			TotalValueIn:      3.5,
			RugPulled:         true,
		},
	}, at)

	assert.Equal(t, Event{
		Kind:       KindRugPull,
		RoundID:    "round-1",
		Tick:       42,
		Multiplier: 1.37,
		Players:    12,
		ValueIn:    3.5,
		Time:       at,
	}, ev)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, Nop{}, b}.Emit(Event{Kind: KindTick})

	assert.Equal(t, []Kind{KindTick}, a.kinds())
	assert.Equal(t, []Kind{KindTick}, b.kinds())
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	sink.Emit(Event{Kind: KindTick, RoundID: "r", Tick: 3})
	sink.Emit(Event{Kind: KindPositionClosed, RoundID: "r", Profit: 0.01, Forced: true})
	sink.Emit(Event{Kind: KindError, RoundID: "r", Error: "boom"})
	sink.Emit(Event{Kind: KindEntrySkipped, RoundID: "r", Reason: "insufficient capital"})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "Position closed", entries[1].Message)
	assert.Equal(t, true, entries[1].ContextMap()["forced"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
}

func TestAsync(t *testing.T) {
	t.Run("DeliversInOrderAndDrainsOnClose", func(t *testing.T) {
		// Arrange
		next := &recorder{}
		a := NewAsync(next, 16, zap.NewNop())

		// Act
		for _, k := range []Kind{KindRoundStart, KindTick, KindRoundEnd} {
			a.Emit(Event{Kind: k})
		}
		a.Close()

		// Assert
		assert.Equal(t, []Kind{KindRoundStart, KindTick, KindRoundEnd}, next.kinds())
		assert.Zero(t, a.Dropped())
	})

	t.Run("DropsWhenFullWithoutBlocking", func(t *testing.T) {
		// Arrange: the downstream sink is stuck until the gate opens.
		next := &recorder{gate: make(chan struct{})}
		a := NewAsync(next, 2, zap.NewNop())

		// Act
		done := make(chan struct{})
		go func() {
			for i := 0; i < 10; i++ {
				a.Emit(Event{Kind: KindTick, Tick: i})
			}
			close(done)
		}()

		// Assert
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Emit blocked on a full queue")
		}
		assert.GreaterOrEqual(t, a.Dropped(), uint64(7))

		close(next.gate)
		a.Close()
		assert.Equal(t, uint64(10), uint64(len(next.kinds()))+a.Dropped())
	})

	t.Run("EmitAfterCloseIsDropped", func(t *testing.T) {
		a := NewAsync(Nop{}, 4, zap.NewNop())
		a.Close()
		a.Close()

		assert.NotPanics(t, func() { a.Emit(Event{Kind: KindTick}) })
		assert.Equal(t, uint64(1), a.Dropped())
	})
}
