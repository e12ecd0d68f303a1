// Package collector implements the live orchestration core: one
// ExchangeSession per exchange, fanned out to per-symbol subscriptions, with
// a LiveCollector tracking which (exchange, symbol) pairs are actively
// collecting and reporting their health through a rate-gated process
// registry.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ratelimit"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

// LiveCollector owns every live exchange session, the set of currently
// collecting symbols, and the mapping from a symbol to its registered
// process id. A single failure establishing one session, or subscribing one
// symbol, never prevents any other symbol — on any exchange — from starting
// or continuing to collect.
type LiveCollector struct {
	factory     ports.AdapterFactory
	credentials ports.CredentialResolver
	tickerStore ports.TickerStore
	registry    ports.ProcessRegistry
	gate        *ratelimit.Gate
	logger      *logrus.Logger

	mu         sync.Mutex
	sessions   map[string]*session     // exchangeName -> session
	active     map[ticker.Key]struct{} // currently-collecting symbols
	processIDs map[ticker.Key]string   // symbol -> registered process id
}

// New constructs a LiveCollector. gate may be nil, in which case
// ratelimit.DefaultWindow is used.
func New(
	factory ports.AdapterFactory,
	credentials ports.CredentialResolver,
	tickerStore ports.TickerStore,
	registry ports.ProcessRegistry,
	gate *ratelimit.Gate,
	logger *logrus.Logger,
) *LiveCollector {
	if gate == nil {
		gate = ratelimit.New(ratelimit.DefaultWindow)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LiveCollector{
		factory:     factory,
		credentials: credentials,
		tickerStore: tickerStore,
		registry:    registry,
		gate:        gate,
		logger:      logger,
		sessions:    make(map[string]*session),
		active:      make(map[ticker.Key]struct{}),
		processIDs:  make(map[ticker.Key]string),
	}
}

// StartAll starts collection for every ref in refs, one at a time and in
// order, through StartOne; each exchange gets exactly one session, shared by
// all of its symbols. Refs are not grouped by exchange: when session
// construction fails for an exchange, it is attempted again for each later
// ref on that exchange. Per-ref failures are collected and returned
// together; they never stop the remaining refs from being attempted.
func (lc *LiveCollector) StartAll(ctx context.Context, refs []ticker.SymbolRef) error {
	var errs []error
	for _, ref := range refs {
		if err := lc.StartOne(ctx, ref); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("start all: %d of %d refs failed: %w", len(errs), len(refs), joinErrs(errs))
	}
	return nil
}

// StartOne starts collection for a single symbol. It is idempotent: calling
// it again for a symbol that is already active is a no-op that returns nil.
// Session construction is shared across symbols of the same exchange; the
// first symbol on an exchange pays the cost of dialing, every subsequent
// symbol on that exchange reuses the existing session.
func (lc *LiveCollector) StartOne(ctx context.Context, ref ticker.SymbolRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("start one: %w", err)
	}
	key := ref.Key()

	lc.mu.Lock()
	if _, ok := lc.active[key]; ok {
		lc.mu.Unlock()
		return nil
	}
	sess, ok := lc.sessions[ref.ExchangeName]
	lc.mu.Unlock()

	if !ok {
		var err error
		sess, err = newSession(ctx, lc.factory, lc.credentials, ref.ExchangeName, ref.ExchangeID, lc.logger)
		if err != nil {
			lc.reportError(key, ref, err)
			return fmt.Errorf("start %s: %w", key, err)
		}
		lc.mu.Lock()
		if existing, raced := lc.sessions[ref.ExchangeName]; raced {
			sess = existing
		} else {
			lc.sessions[ref.ExchangeName] = sess
		}
		lc.mu.Unlock()
	}

	if err := lc.registerStarting(ctx, key, ref); err != nil {
		lc.logger.WithFields(logrus.Fields{
			"key":      key,
			"exchange": ref.ExchangeName,
			"symbol":   ref.Symbol,
			"error":    err,
		}).Warn("process registry starting-state registration failed, symbol not started")
		return fmt.Errorf("start %s: register process: %w", key, err)
	}

	cb := lc.callbackFor(ref.ExchangeName)
	if err := sess.subscribe(ctx, ref.Symbol, cb); err != nil {
		lc.reportError(key, ref, err)
		// The external registry entry is left in "starting" for its own
		// liveness policy to reap; this collector's internal bookkeeping
		// still must satisfy "ProcessIdMap present iff key in ActiveSet".
		lc.mu.Lock()
		delete(lc.processIDs, key)
		lc.mu.Unlock()
		return fmt.Errorf("start %s: %w", key, err)
	}

	lc.mu.Lock()
	lc.active[key] = struct{}{}
	lc.mu.Unlock()

	return nil
}

// IsCollecting reports whether key is currently an active subscription.
func (lc *LiveCollector) IsCollecting(key ticker.Key) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	_, ok := lc.active[key]
	return ok
}

// ActiveCount returns the number of currently active subscriptions.
func (lc *LiveCollector) ActiveCount() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return len(lc.active)
}

// ExchangeNames returns the names of every exchange with a live session,
// in no particular order. Used only for health snapshots.
func (lc *LiveCollector) ExchangeNames() []string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	names := make([]string, 0, len(lc.sessions))
	for name := range lc.sessions {
		names = append(names, name)
	}
	return names
}

// StopAll tears down every session via the adapter factory's shutdown path,
// and clears all in-memory tracking state. It is safe to call StartAll
// again afterward; new sessions will be constructed from scratch.
func (lc *LiveCollector) StopAll(ctx context.Context) error {
	lc.mu.Lock()
	lc.active = make(map[ticker.Key]struct{})
	lc.processIDs = make(map[ticker.Key]string)
	lc.sessions = make(map[string]*session)
	lc.mu.Unlock()

	lc.gate.Reset()

	if lc.factory == nil {
		return nil
	}
	if err := lc.factory.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop all: %w", err)
	}
	return nil
}

// callbackFor builds the shared TickCallback handed to every symbol
// subscribed on exchangeName. The callback writes the record to the ticker
// store on every call, and reports to the process registry only when the
// rate gate admits the key — decoupling the hot write path from the cold
// liveness path.
func (lc *LiveCollector) callbackFor(exchangeName string) ports.TickCallback {
	return func(rec ticker.Record) {
		ctx := context.Background()
		key := ticker.RecordKey(rec)

		lc.writeTicker(ctx, key, rec)

		// The gate is keyed on wall-clock observation time, not rec.Time:
		// rec.Time is adapter/exchange event time and is not guaranteed
		// monotonic across reconnects, so using it here could either
		// spuriously reject a long stretch of real ticks or let a
		// timestamp-compressed replay burst bypass the throttle entirely.
		if lc.gate.Admit(key, time.Now()) {
			lc.reportRunning(ctx, key, rec)
		}
	}
}

func (lc *LiveCollector) writeTicker(ctx context.Context, key ticker.Key, rec ticker.Record) {
	if lc.tickerStore == nil {
		return
	}
	sess, err := lc.tickerStore.Open(ctx)
	if err != nil {
		lc.logger.WithFields(logrus.Fields{"key": key, "error": err}).Warn("ticker store session open failed")
		return
	}
	defer sess.Close()

	if err := sess.SetTicker(ctx, rec); err != nil {
		lc.logger.WithFields(logrus.Fields{"key": key, "error": err}).Warn("ticker store write failed")
	}
}

func (lc *LiveCollector) registerStarting(ctx context.Context, key ticker.Key, ref ticker.SymbolRef) error {
	if lc.registry == nil {
		return nil
	}
	sess, err := lc.registry.Open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	params := map[string]any{
		"exchange": ref.ExchangeName,
		"symbol":   ref.Symbol,
	}
	id, err := sess.RegisterProcess(ctx, ports.ProcessTypeTick, string(key), params, "starting", ports.ProcessStarting)
	if err != nil {
		return err
	}

	lc.mu.Lock()
	lc.processIDs[key] = id
	lc.mu.Unlock()
	return nil
}

func (lc *LiveCollector) reportRunning(ctx context.Context, key ticker.Key, rec ticker.Record) {
	msg := fmt.Sprintf("tick at %s", rec.Time.Format(time.RFC3339Nano))
	lc.reportStatus(ctx, key, ports.ProcessRunning, msg)
}

// reportError logs an isolated per-symbol or per-exchange failure at warn
// level. It deliberately does not touch the external process registry: a
// failed-to-start symbol's entry is left in "starting" state for the
// registry's own liveness policy to reap.
func (lc *LiveCollector) reportError(key ticker.Key, ref ticker.SymbolRef, cause error) {
	lc.logger.WithFields(logrus.Fields{
		"key":      key,
		"exchange": ref.ExchangeName,
		"symbol":   ref.Symbol,
		"error":    cause,
	}).Warn("exchange session failure, isolated to this symbol")
}

func (lc *LiveCollector) reportStatus(ctx context.Context, key ticker.Key, status ports.ProcessStatus, message string) {
	if lc.registry == nil {
		return
	}
	lc.mu.Lock()
	id, ok := lc.processIDs[key]
	lc.mu.Unlock()
	if !ok {
		return
	}

	sess, err := lc.registry.Open(ctx)
	if err != nil {
		lc.logger.WithFields(logrus.Fields{"key": key, "error": err}).Warn("process registry session open failed")
		return
	}
	defer sess.Close()

	if err := sess.UpdateProcess(ctx, id, status, message); err != nil {
		lc.logger.WithFields(logrus.Fields{"key": key, "error": err}).Warn("process registry update failed")
	}
}

func joinErrs(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
