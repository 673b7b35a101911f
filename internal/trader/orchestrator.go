package trader

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/gateway"
	"rugs-trade-bot-go/internal/ledger"
	"rugs-trade-bot-go/internal/strategy"
	"rugs-trade-bot-go/internal/telemetry"
	"rugs-trade-bot-go/internal/tracing"
)

// lowBalanceWarning is the wallet balance under which startup logs a warning.
const lowBalanceWarning = 0.01

// State is the lifecycle state of the orchestrator.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// RoundSource produces round lifecycle events. *game.Clock satisfies it.
type RoundSource interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan game.Event
	Current() (game.RoundSnapshot, bool)
}

// Options holds the position sizing and exit settings.
type Options struct {
	MaxPositionSize float64
	CapitalFraction float64
	DustThreshold   float64
	ExitRetries     int
	Simulation      bool
}

// OptionsFromConfig converts the trading section of the config.
func OptionsFromConfig(cfg config.Trading) Options {
	return Options{
		MaxPositionSize: cfg.MaxPositionSize,
		CapitalFraction: cfg.CapitalFraction,
		DustThreshold:   cfg.DustThreshold,
		ExitRetries:     cfg.ExitRetries,
		Simulation:      cfg.DryRun,
	}
}

// Components are the collaborators the orchestrator drives.
type Components struct {
	Clock    RoundSource
	Strategy strategy.Strategy
	Executor gateway.Executor
	Balance  gateway.BalanceSource
	Sink     telemetry.Sink
	Tracer   *tracing.Tracer
}

// Stats are running totals since the process started.
type Stats struct {
	Entries        int     `json:"entries"`
	Exits          int     `json:"exits"`
	ForcedExits    int     `json:"forcedExits"`
	Skipped        int     `json:"skipped"`
	Errors         int     `json:"errors"`
	RealizedProfit float64 `json:"realizedProfit"`
}

// Orchestrator consumes round events, asks the strategy for entries and exits, keeps
// the ledger and calls the execution boundary.
type Orchestrator struct {
	logger   *zap.Logger
	clock    RoundSource
	strategy strategy.Strategy
	ledger   *ledger.Ledger
	executor gateway.Executor
	balance  gateway.BalanceSource
	sink     telemetry.Sink
	tracer   *tracing.Tracer
	opts     Options
	now      func() time.Time

	mu        sync.Mutex
	state     State
	startedAt time.Time
	events    <-chan game.Event
	quit      chan struct{}
	loopDone  chan struct{}
	stopped   chan struct{}

	statsMu sync.Mutex
	stats   Stats

	// finals holds the terminal snapshot of ended rounds that still have a position.
	// Only the event loop and the shutdown drain touch it, as does settling.
	finals   map[string]game.RoundSnapshot
	settling bool
}

// NewOrchestrator wires the components. Missing sink or tracer default to no-ops.
func NewOrchestrator(logger *zap.Logger, c Components, opts Options) *Orchestrator {
	if c.Sink == nil {
		c.Sink = telemetry.Nop{}
	}
	if c.Tracer == nil {
		c.Tracer, _ = tracing.New(false, nil)
	}
	if opts.ExitRetries <= 0 {
		opts.ExitRetries = 1
	}
	return &Orchestrator{
		logger:   logger.Named("orchestrator").With(zap.String("strategy", c.Strategy.Name())),
		clock:    c.Clock,
		strategy: c.Strategy,
		ledger:   ledger.New(),
		executor: c.Executor,
		balance:  c.Balance,
		sink:     c.Sink,
		tracer:   c.Tracer,
		opts:     opts,
		now:      time.Now,
		finals:   make(map[string]game.RoundSnapshot),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// StartedAt returns when the current run began, or zero when idle.
func (o *Orchestrator) StartedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startedAt
}

// StrategyName returns the name of the configured strategy.
func (o *Orchestrator) StrategyName() string {
	return o.strategy.Name()
}

// Positions yields the open positions. Safe to call from any goroutine.
func (o *Orchestrator) Positions() iter.Seq[ledger.Position] {
	return o.ledger.All()
}

// OpenPositions returns the number of open positions.
func (o *Orchestrator) OpenPositions() int {
	return o.ledger.Len()
}

// CurrentRound returns the latest snapshot of the round source.
func (o *Orchestrator) CurrentRound() (game.RoundSnapshot, bool) {
	return o.clock.Current()
}

// Stats returns a copy of the running totals.
func (o *Orchestrator) Stats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	return o.stats
}

// Start checks the wallet, starts the round source and the event loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.State() != StateIdle {
		return ErrNotIdle
	}
	o.logger.Info("Strategy starting",
		zap.Float64("max_position_size", o.opts.MaxPositionSize),
		zap.Bool("dry_run", o.opts.Simulation))
	o.checkBalance(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrNotIdle
	}

	if err := o.clock.Start(ctx); err != nil {
		return fmt.Errorf("failed to start round source: %w", err)
	}

	o.events = o.clock.Events()
	o.quit = make(chan struct{})
	o.loopDone = make(chan struct{})
	o.settling = false
	o.startedAt = o.now()
	o.state = StateRunning

	go o.run(ctx, o.events, o.quit, o.loopDone)
	o.logger.Info("Strategy started")
	return nil
}

func (o *Orchestrator) checkBalance(ctx context.Context) {
	balance, err := o.balance.AvailableBalance(ctx)
	if err != nil {
		o.logger.Warn("Could not read wallet balance at startup", zap.Error(err))
		return
	}
	o.logger.Info("Wallet balance", zap.Float64("balance", balance))
	if balance < lowBalanceWarning {
		o.logger.Warn("Wallet balance is low, entries may be skipped",
			zap.Float64("balance", balance),
			zap.Float64("threshold", lowBalanceWarning))
	}
}

// Stop halts the round source, waits for the in-flight event, handles the events the
// source had already emitted, then force-exits every open position. Concurrent calls
// wait for the first one; calling it while idle is a no-op.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateIdle:
		o.mu.Unlock()
		return nil
	case StateStopping:
		stopped := o.stopped
		o.mu.Unlock()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	o.state = StateStopping
	o.stopped = make(chan struct{})
	stopped := o.stopped
	o.mu.Unlock()

	o.logger.Info("Strategy stopping", zap.Int("open_positions", o.ledger.Len()))

	close(o.quit)
	o.clock.Stop()
	<-o.loopDone

	o.settle(ctx)
	o.drain(ctx)
	o.strategy.Reset()

	o.mu.Lock()
	o.state = StateIdle
	o.startedAt = time.Time{}
	o.mu.Unlock()
	close(stopped)

	o.logger.Info("Strategy stopped", zap.Any("stats", o.Stats()))
	return nil
}

// run handles events one at a time, in order, until quit is closed or the source ends.
// Events it leaves unread are handled by Stop.
func (o *Orchestrator) run(ctx context.Context, events <-chan game.Event, quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		default:
		}

		select {
		case <-quit:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handle(ctx, ev)
		}
	}
}

// settle handles events still buffered in the stopped source until it reports closed,
// so a rug pull or round end emitted before Stop settles its round. No entries are made.
func (o *Orchestrator) settle(ctx context.Context) {
	o.settling = true
	for {
		select {
		case ev, ok := <-o.events:
			if !ok {
				return
			}
			o.handle(ctx, ev)
		case <-ctx.Done():
			o.logger.Warn("Shutdown deadline reached before all round events were handled", zap.Error(ctx.Err()))
			return
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, ev game.Event) {
	s := ev.Snapshot
	ctx, span := o.tracer.Start(ctx, "round."+ev.Kind.String(), trace.WithAttributes(
		attribute.String("round.id", s.RoundID),
		attribute.Int("round.tick", s.CurrentTick),
		attribute.Float64("round.multiplier", s.CurrentMultiplier),
	))
	defer span.End()

	o.sink.Emit(telemetry.RoundEvent(ev, o.now()))

	switch ev.Kind {
	case game.EventRoundStart:
		o.strategy.Observe(s)
		o.evaluateEntry(ctx, s)
	case game.EventTick:
		o.onTick(ctx, s)
	case game.EventRugPull, game.EventRoundEnd:
		o.onRoundOver(ctx, s)
	}
}

func (o *Orchestrator) onTick(ctx context.Context, s game.RoundSnapshot) {
	o.strategy.Observe(s)
	o.retryStranded(ctx, s.RoundID)

	if o.ledger.Has(s.RoundID) {
		pos, err := o.ledger.Refresh(s.RoundID, s.CurrentMultiplier)
		if err != nil {
			o.reportError(ctx, s, "refresh failed", err)
		} else if o.strategy.ShouldExit(pos, s) {
			o.exit(ctx, pos, s, false)
		}
	}

	if s.Active && !o.ledger.Has(s.RoundID) {
		o.evaluateEntry(ctx, s)
	}
}

func (o *Orchestrator) onRoundOver(ctx context.Context, s game.RoundSnapshot) {
	if o.ledger.Has(s.RoundID) {
		o.finals[s.RoundID] = s
		pos, err := o.ledger.Refresh(s.RoundID, s.CurrentMultiplier)
		if err != nil {
			o.reportError(ctx, s, "refresh failed", err)
		} else if o.exit(ctx, pos, s, true) {
			delete(o.finals, s.RoundID)
		}
	}
	o.strategy.EndRound(s.RoundID)
}

// retryStranded retries forced exits of positions left over from ended rounds.
func (o *Orchestrator) retryStranded(ctx context.Context, current string) {
	for pos := range o.ledger.All() {
		if pos.RoundID == current {
			continue
		}
		final := o.finalSnapshot(pos)
		if o.exit(ctx, pos, final, true) {
			delete(o.finals, pos.RoundID)
		}
	}
}

// finalSnapshot returns the snapshot a forced exit of pos settles against.
func (o *Orchestrator) finalSnapshot(pos ledger.Position) game.RoundSnapshot {
	if s, ok := o.finals[pos.RoundID]; ok {
		return s
	}
	if s, ok := o.clock.Current(); ok && s.RoundID == pos.RoundID {
		return s
	}
	// The round is over but its outcome was never observed.
	return game.RoundSnapshot{
		RoundID:           pos.RoundID,
		CurrentTick:       pos.EntryTick,
		CurrentMultiplier: pos.CurrentMultiplier,
		Active:            false,
	}
}

// evaluateEntry asks the strategy for a signal and enters on buy. Entry is skipped
// whenever the snapshot is not active, and while settling a stopped source.
func (o *Orchestrator) evaluateEntry(ctx context.Context, s game.RoundSnapshot) {
	if o.settling {
		return
	}
	hasOpen := o.ledger.Has(s.RoundID)
	sig := o.strategy.AnalyzeRound(s, hasOpen)
	if sig.Action != strategy.ActionBuy || hasOpen || !s.Active || s.RugPulled {
		return
	}
	o.enter(ctx, s, sig)
}

func (o *Orchestrator) enter(ctx context.Context, s game.RoundSnapshot, sig strategy.TradeSignal) {
	balance, err := o.balance.AvailableBalance(ctx)
	if err != nil {
		o.reportError(ctx, s, sig.Reason, &ExecutionError{Op: OpBalance, RoundID: s.RoundID, Err: err})
		return
	}

	size := min(o.opts.MaxPositionSize, balance*o.opts.CapitalFraction)
	if size < o.opts.DustThreshold {
		err := fmt.Errorf("%w: size %.6f below %.6f (balance %.6f)", ErrInsufficientCapital, size, o.opts.DustThreshold, balance)
		o.addStats(func(st *Stats) { st.Skipped++ })
		o.sink.Emit(telemetry.Event{
			Kind:       telemetry.KindEntrySkipped,
			RoundID:    s.RoundID,
			Strategy:   o.strategy.Name(),
			Tick:       s.CurrentTick,
			Multiplier: s.CurrentMultiplier,
			Size:       size,
			Reason:     "insufficient capital",
			Confidence: sig.Confidence,
			Error:      err.Error(),
			Time:       o.now(),
		})
		return
	}

	conf, err := o.executor.SubmitBuy(ctx, gateway.Order{
		RoundID:    s.RoundID,
		Size:       size,
		Multiplier: s.CurrentMultiplier,
	})
	if err != nil {
		o.reportError(ctx, s, sig.Reason, &ExecutionError{Op: OpBuy, RoundID: s.RoundID, Err: err})
		return
	}

	pos := ledger.Position{
		RoundID:         s.RoundID,
		EntryTick:       s.CurrentTick,
		EntryMultiplier: s.CurrentMultiplier,
		Size:            size,
		EntryTime:       o.now(),
	}
	if err := o.ledger.Open(pos); err != nil {
		o.reportError(ctx, s, "ledger invariant violated", err)
		return
	}

	o.addStats(func(st *Stats) { st.Entries++ })
	o.sink.Emit(telemetry.Event{
		Kind:       telemetry.KindPositionOpened,
		RoundID:    pos.RoundID,
		Strategy:   o.strategy.Name(),
		Tick:       pos.EntryTick,
		Multiplier: pos.EntryMultiplier,
		Size:       pos.Size,
		Reason:     sig.Reason,
		Confidence: sig.Confidence,
		Signature:  conf.Signature,
		Simulation: o.opts.Simulation,
		Time:       pos.EntryTime,
	})
}

// exit sells pos at snapshot s. It reports whether the position was closed.
func (o *Orchestrator) exit(ctx context.Context, pos ledger.Position, s game.RoundSnapshot, forced bool) bool {
	conf, err := o.executor.SubmitSell(ctx, gateway.Order{
		RoundID:    pos.RoundID,
		Size:       pos.Size,
		Multiplier: s.CurrentMultiplier,
		RugPulled:  s.RugPulled,
	})
	if err != nil {
		o.reportError(ctx, s, "exit failed, position kept open", &ExecutionError{Op: OpSell, RoundID: pos.RoundID, Err: err})
		return false
	}

	closed, err := o.ledger.Close(pos.RoundID)
	if err != nil {
		o.reportError(ctx, s, "ledger invariant violated", err)
		return false
	}

	realized := conf.Amount - closed.Size
	realizedPct := 0.0
	if closed.Size > 0 {
		realizedPct = realized / closed.Size * 100
	}
	reason := "strategy exit"
	if forced {
		reason = "forced exit"
	}

	o.addStats(func(st *Stats) {
		st.Exits++
		if forced {
			st.ForcedExits++
		}
		st.RealizedProfit += realized
	})
	o.sink.Emit(telemetry.Event{
		Kind:          telemetry.KindPositionClosed,
		RoundID:       closed.RoundID,
		Strategy:      o.strategy.Name(),
		Tick:          s.CurrentTick,
		Multiplier:    s.CurrentMultiplier,
		Size:          closed.Size,
		Profit:        realized,
		ProfitPercent: realizedPct,
		Forced:        forced,
		Reason:        reason,
		Signature:     conf.Signature,
		Simulation:    o.opts.Simulation,
		Time:          o.now(),
	})
	return true
}

// drain force-exits every open position, retrying each sell a few times.
func (o *Orchestrator) drain(ctx context.Context) {
	for pos := range o.ledger.All() {
		final := o.finalSnapshot(pos)
		closed := false
		for attempt := 0; attempt < o.opts.ExitRetries && !closed && ctx.Err() == nil; attempt++ {
			closed = o.exit(ctx, pos, final, true)
		}
		if closed {
			delete(o.finals, pos.RoundID)
			continue
		}
		o.logger.Error("Position stranded at shutdown",
			zap.String("round_id", pos.RoundID),
			zap.Float64("size", pos.Size),
			zap.Float64("entry_multiplier", pos.EntryMultiplier))
	}
}

func (o *Orchestrator) reportError(ctx context.Context, s game.RoundSnapshot, reason string, err error) {
	trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())
	o.addStats(func(st *Stats) { st.Errors++ })

	if errors.Is(err, ledger.ErrDuplicatePosition) || errors.Is(err, ledger.ErrPositionNotFound) {
		reason = "BUG: position ledger out of sync: " + reason
	}

	o.sink.Emit(telemetry.Event{
		Kind:       telemetry.KindError,
		RoundID:    s.RoundID,
		Strategy:   o.strategy.Name(),
		Tick:       s.CurrentTick,
		Multiplier: s.CurrentMultiplier,
		Reason:     reason,
		Error:      err.Error(),
		Time:       o.now(),
	})
}

func (o *Orchestrator) addStats(fn func(*Stats)) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	fn(&o.stats)
}
