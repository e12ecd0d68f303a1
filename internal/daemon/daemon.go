// Package daemon implements the externally visible lifecycle object: the
// three-valued state machine (Stopped / Running / Errored, paired with
// collector presence), the process-registry registration for the daemon
// itself, and the health snapshot surface.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/collector"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ratelimit"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

// Status is the three-valued lifecycle tag. It is always interpreted
// together with collector presence; neither alone determines dispatch.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusErrored Status = "error"
)

// Daemon is the top-level lifecycle object. It owns at most one
// LiveCollector at a time, its own process-registry id, and the current
// Status tag. The (Status, collector-present) pair is the entire dispatch
// state; a collector present with a Status other than Running is the
// Inconsistent configuration, a programmer-error condition that is logged
// and refused rather than acted on.
type Daemon struct {
	factory     ports.AdapterFactory
	credentials ports.CredentialResolver
	tickerStore ports.TickerStore
	registry    ports.ProcessRegistry
	configStore ports.ConfigStore
	gateWindow  time.Duration
	logger      *logrus.Logger

	mu        sync.Mutex
	status    Status
	lc        *collector.LiveCollector
	processID string
}

// Config bundles the external collaborators and tunables a Daemon needs.
// GateWindow is passed through to a fresh ratelimit.Gate created for every
// LiveCollector this daemon constructs; a zero value uses
// ratelimit.DefaultWindow.
type Config struct {
	Factory     ports.AdapterFactory
	Credentials ports.CredentialResolver
	TickerStore ports.TickerStore
	Registry    ports.ProcessRegistry
	ConfigStore ports.ConfigStore
	GateWindow  int64 // seconds; 0 uses ratelimit.DefaultWindow
	Logger      *logrus.Logger
}

// New constructs a Daemon in the Stopped state. No collaborator calls are
// made until Start or ProcessTicker is invoked.
func New(cfg Config) *Daemon {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	window := ratelimit.DefaultWindow
	if cfg.GateWindow > 0 {
		window = time.Duration(cfg.GateWindow) * time.Second
	}
	return &Daemon{
		factory:     cfg.Factory,
		credentials: cfg.Credentials,
		tickerStore: cfg.TickerStore,
		registry:    cfg.Registry,
		configStore: cfg.ConfigStore,
		gateWindow:  window,
		logger:      logger,
		status:      StatusStopped,
	}
}

// Status returns the current three-valued tag.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// HasCollector reports whether the daemon currently owns a LiveCollector.
func (d *Daemon) HasCollector() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lc != nil
}

// inconsistentLocked reports whether the daemon is in the programmer-error state:
// a collector is present but Status is not Running. Caller must hold d.mu.
func (d *Daemon) inconsistentLocked() bool {
	return d.lc != nil && d.status != StatusRunning
}

// Start transitions Stopped -> Running: loads the full symbol set from the
// configuration store, constructs a LiveCollector around it, registers the
// daemon-level process entry, and instructs the collector to open sessions.
// A failure in any step before startAll transitions the daemon to Errored
// and is returned to the caller. Partial subscription failures during
// startAll do not cause Errored; see collector.LiveCollector's isolation
// guarantee. Calling Start while already Running is an idempotent no-op.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.inconsistentLocked() {
		d.mu.Unlock()
		d.logger.WithFields(logrus.Fields{"status": d.status, "hasCollector": true}).
			Error("daemon start refused: inconsistent state")
		return fmt.Errorf("daemon: inconsistent state (collector present, status %q)", d.status)
	}
	if d.status == StatusRunning {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	refs, err := d.loadSymbols(ctx)
	if err != nil {
		d.mu.Lock()
		d.status = StatusErrored
		d.mu.Unlock()
		return fmt.Errorf("daemon start: load symbols: %w", err)
	}

	lc := collector.New(d.factory, d.credentials, d.tickerStore, d.registry, ratelimit.New(d.gateWindow), d.logger)

	processID, err := d.registerDaemon(ctx)
	if err != nil {
		d.mu.Lock()
		d.status = StatusErrored
		d.mu.Unlock()
		return fmt.Errorf("daemon start: register daemon: %w", err)
	}

	d.mu.Lock()
	d.lc = lc
	d.status = StatusRunning
	d.processID = processID
	d.mu.Unlock()

	if err := lc.StartAll(ctx, refs); err != nil {
		d.logger.WithFields(logrus.Fields{"error": err}).Warn("bulk start had isolated per-symbol failures")
	}

	return nil
}

// ProcessTicker implements the three-valued admission check: Stopped
// cold-starts a fresh, unseeded LiveCollector around s; Running admits s if
// not already collecting; Inconsistent refuses with a logged error;
// Errored behaves like Stopped (a fresh attempt is reasonable after a prior
// start failure).
func (d *Daemon) ProcessTicker(ctx context.Context, s ticker.SymbolRef) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("daemon process ticker: %w", err)
	}

	d.mu.Lock()
	if d.inconsistentLocked() {
		d.mu.Unlock()
		d.logger.WithFields(logrus.Fields{"status": d.status, "hasCollector": true, "key": s.Key()}).
			Error("processTicker refused: inconsistent state")
		return nil
	}
	status := d.status
	lc := d.lc
	d.mu.Unlock()

	if status == StatusRunning && lc != nil {
		if lc.IsCollecting(s.Key()) {
			return nil
		}
		return lc.StartOne(ctx, s)
	}

	// Stopped or Errored: cold-start an empty collector around s alone.
	newLC := collector.New(d.factory, d.credentials, d.tickerStore, d.registry, ratelimit.New(d.gateWindow), d.logger)

	d.mu.Lock()
	d.lc = newLC
	d.status = StatusRunning
	d.mu.Unlock()

	return newLC.StartOne(ctx, s)
}

// Stop transitions Running -> Stopped: tears down the collector, deregisters
// the daemon entry, and drops the collector reference. Teardown errors are
// logged, never raised. Calling Stop while already Stopped is an idempotent
// no-op.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	lc := d.lc
	processID := d.processID
	if lc == nil {
		d.status = StatusStopped
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := lc.StopAll(ctx); err != nil {
		d.logger.WithFields(logrus.Fields{"error": err}).Warn("collector teardown error during stop")
	}

	if err := d.deregisterDaemon(ctx, processID); err != nil {
		d.logger.WithFields(logrus.Fields{"error": err}).Warn("daemon deregistration error during stop")
	}

	d.mu.Lock()
	d.lc = nil
	d.status = StatusStopped
	d.processID = ""
	d.mu.Unlock()

	return nil
}

// Health is the minimal-copy snapshot returned by GetHealth. It is built
// without holding any long-lived lock on collector state.
type Health struct {
	Status       Status   `json:"status"`
	Running      bool     `json:"running"`
	ProcessID    string   `json:"process_id,omitempty"`
	HasCollector bool     `json:"has_collector"`
	Exchanges    []string `json:"exchanges"`
	ActiveCount  int      `json:"active_count"`
}

// GetHealth returns a point-in-time snapshot: status tag, running boolean,
// daemon-level process id if any, collector presence, subscribed exchange
// names, and the total ActiveSet count.
func (d *Daemon) GetHealth() Health {
	d.mu.Lock()
	status := d.status
	processID := d.processID
	lc := d.lc
	d.mu.Unlock()

	h := Health{
		Status:       status,
		Running:      status == StatusRunning,
		ProcessID:    processID,
		HasCollector: lc != nil,
	}
	if lc != nil {
		h.Exchanges = lc.ExchangeNames()
		h.ActiveCount = lc.ActiveCount()
	}
	return h
}

func (d *Daemon) loadSymbols(ctx context.Context) ([]ticker.SymbolRef, error) {
	if d.configStore == nil {
		return nil, nil
	}
	sess, err := d.configStore.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	defer sess.Close()

	refs, err := sess.ListAllSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all symbols: %w", err)
	}
	return refs, nil
}

func (d *Daemon) registerDaemon(ctx context.Context) (string, error) {
	if d.registry == nil {
		return "", nil
	}
	sess, err := d.registry.Open(ctx)
	if err != nil {
		return "", err
	}
	defer sess.Close()

	return sess.RegisterProcess(ctx, ports.ProcessTypeTick, "daemon", nil, "starting", ports.ProcessStarting)
}

func (d *Daemon) deregisterDaemon(ctx context.Context, processID string) error {
	if d.registry == nil || processID == "" {
		return nil
	}
	sess, err := d.registry.Open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return sess.UpdateProcess(ctx, processID, ports.ProcessError, "stopped")
}
