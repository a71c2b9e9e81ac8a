package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haclabs/simcore/internal/sim"
	"github.com/haclabs/simcore/internal/store"
)

// Engine executes the simulation lifecycle: snapshot creation, run launch,
// event recording, reset, and completion.
//
// Durability lives entirely in the store; the engine holds only coordination
// state (logical clock, per-run reset locks, notification fan-out). Two
// engine processes must not share one database file: the reset lock is
// in-process.
//
// Thread-safety model:
//   - All exported operations are safe from any goroutine
//   - The store's single-connection pool serializes writes
//   - Reset mutual exclusion uses a per-run TryLock
type Engine struct {
	store    *store.Store
	clock    *Clock
	times    TimeSource
	ids      IDGenerator
	printed  PrintedIDGenerator
	notifier *Notifier
	logger   *slog.Logger

	resetLocks sync.Map // run ID -> *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeSource overrides the wall clock. Used by tests and the scenario
// harness for deterministic timestamps.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		e.times = ts
	}
}

// WithIDGenerator overrides row ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithPrintedIDs overrides printed identifier generation.
func WithPrintedIDs(g PrintedIDGenerator) Option {
	return func(e *Engine) {
		e.printed = g
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the logical clock, typically NewClockAt(maxStoredSeq) when
// reopening an existing database.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine over a store.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		clock:    NewClock(),
		times:    SystemTime{},
		ids:      UUIDv7Generator{},
		printed:  RandomPrintedIDs{},
		notifier: NewNotifier(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Notifier exposes the engine's notification fan-out for subscribers.
func (e *Engine) Notifier() *Notifier {
	return e.notifier
}

// getRun loads a run scoped to the actor's tenant, mapping missing rows to
// a not-found operation error.
func (e *Engine) getRun(ctx context.Context, actor sim.Actor, runID string) (sim.Run, error) {
	run, err := e.store.GetRun(ctx, actor.Tenant, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Run{}, NewNotFoundError("run", runID)
	}
	if err != nil {
		return sim.Run{}, fmt.Errorf("load run: %w", err)
	}
	return run, nil
}

// resetLock returns the per-run mutex guarding resets.
func (e *Engine) resetLock(runID string) *sync.Mutex {
	mu, _ := e.resetLocks.LoadOrStore(runID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
