package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"rugs-trade-bot-go/internal/config"
)

// ErrClockRunning is returned by Start when the clock is already emitting.
var ErrClockRunning = errors.New("round clock already running")

// Random is the entropy the clock draws from. *rand.Rand satisfies it.
type Random interface {
	Float64() float64
	Intn(n int) int
}

// Params configures the round model.
type Params struct {
	TickInterval time.Duration
	RugChance    float64
	MaxTicks     int
	Growth       float64
	Noise        float64
	EventBuffer  int
}

// ParamsFromConfig converts the game section of the config.
func ParamsFromConfig(cfg config.Game) Params {
	return Params{
		TickInterval: time.Duration(cfg.TickInterval) * time.Millisecond,
		RugChance:    cfg.RugChance,
		MaxTicks:     cfg.MaxTicks,
		Growth:       cfg.Growth,
		Noise:        cfg.Noise,
		EventBuffer:  cfg.EventBuffer,
	}
}

// Clock advances the current round once per tick interval and emits lifecycle events
// on a single channel, in order. It is the only writer of round state.
type Clock struct {
	logger *zap.Logger
	params Params
	rnd    Random
	now    func() time.Time

	mu      sync.RWMutex
	current RoundSnapshot
	rounds  int

	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	events  chan Event
}

// NewClock creates a round clock. A nil rnd seeds a private math/rand source.
func NewClock(logger *zap.Logger, params Params, rnd Random) *Clock {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if params.EventBuffer < 0 {
		params.EventBuffer = 0
	}
	return &Clock{
		logger: logger.Named("round-clock"),
		params: params,
		rnd:    rnd,
		now:    time.Now,
		events: make(chan Event),
	}
}

// Events returns the channel of the current (or last) run. It is closed by Stop.
func (c *Clock) Events() <-chan Event {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.events
}

// Current returns the current round snapshot, if a round has been created.
func (c *Clock) Current() (RoundSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current.RoundID != ""
}

// Rounds returns how many rounds have been created so far.
func (c *Clock) Rounds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rounds
}

// Start creates the first round, emits its RoundStart and then ticks every interval
// until Stop is called or ctx is cancelled.
func (c *Clock) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return ErrClockRunning
	}
	c.open(ctx, c.params.EventBuffer)
	c.running = true

	c.logger.Info("Starting round clock...",
		zap.Duration("tick_interval", c.params.TickInterval),
		zap.Float64("rug_chance", c.params.RugChance),
		zap.Int("max_ticks", c.params.MaxTicks))

	go c.run()
	return nil
}

// Stop halts emission and closes the events channel. After Stop returns no further
// event is delivered. Calling it again, or before Start, is a no-op.
func (c *Clock) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	<-c.done
	close(c.events)
	c.running = false
	c.logger.Info("Round clock stopped", zap.Int("rounds", c.Rounds()))
}

func (c *Clock) open(ctx context.Context, buffer int) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.events = make(chan Event, buffer)
}

func (c *Clock) run() {
	defer close(c.done)

	if !c.newRound() {
		return
	}

	ticker := time.NewTicker(c.params.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.step() {
				return
			}
		}
	}
}

// emit blocks until the consumer takes the event or the run is cancelled.
func (c *Clock) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Clock) newRound() bool {
	round := RoundSnapshot{
		RoundID:           newRoundID(),
		StartTime:         c.now(),
		CurrentMultiplier: 1.0,
		TotalPlayers:      c.rnd.Intn(100) + 10,
		TotalValueIn:      c.rnd.Float64()*10 + 1,
		Active:            true,
	}

	c.mu.Lock()
	c.current = round
	c.rounds++
	c.mu.Unlock()

	c.logger.Debug("New round created", zap.String("round_id", round.RoundID))
	return c.emit(Event{Kind: EventRoundStart, Snapshot: round})
}

// step advances the current round by one tick. It returns false once the run is
// cancelled mid-emission.
func (c *Clock) step() bool {
	c.mu.Lock()
	round := c.current
	if !round.Active {
		c.mu.Unlock()
		return true
	}

	if c.rnd.Float64() < c.params.RugChance {
		round.Active = false
		round.RugPulled = true
		c.current = round
		c.mu.Unlock()

		c.logger.Warn("Rug pulled",
			zap.String("round_id", round.RoundID),
			zap.Int("tick", round.CurrentTick),
			zap.Float64("multiplier", round.CurrentMultiplier))
		if !c.emit(Event{Kind: EventRugPull, Snapshot: round}) {
			return false
		}
		return c.newRound()
	}

	round.CurrentTick++
	round.TotalTicks++
	base := 1.0 + float64(round.CurrentTick)*c.params.Growth
	perturbation := 1.0 + (c.rnd.Float64()-0.5)*2*c.params.Noise
	round.CurrentMultiplier = base * perturbation
	round.TotalPlayers += c.rnd.Intn(3)
	round.TotalValueIn += c.rnd.Float64() * 0.5
	c.current = round
	c.mu.Unlock()

	if !c.emit(Event{Kind: EventTick, Snapshot: round}) {
		return false
	}

	if round.CurrentTick < c.params.MaxTicks {
		return true
	}

	round.Active = false
	c.mu.Lock()
	c.current = round
	c.mu.Unlock()

	c.logger.Info("Round ended naturally",
		zap.String("round_id", round.RoundID),
		zap.Int("tick", round.CurrentTick))
	if !c.emit(Event{Kind: EventRoundEnd, Snapshot: round}) {
		return false
	}
	return c.newRound()
}
