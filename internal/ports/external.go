// Package ports declares the external collaborator contracts the
// orchestrator depends on: the exchange adapter factory, the ticker store,
// the process registry, the configuration store, and the credential
// resolver. Per the teacher's convention of injecting collaborators rather
// than reaching for module-level singletons, every concrete Daemon/
// LiveCollector is constructed with implementations of these interfaces.
package ports

import (
	"context"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

// ExchangeDescriptor is the minimal identity an adapter factory needs to
// open a session for one exchange.
type ExchangeDescriptor struct {
	Name string
	ID   int
}

// CredentialProvider is invoked by the adapter to obtain API credentials
// for the session it is establishing. Empty strings are valid: public
// ticker streams do not require authentication.
type CredentialProvider func(ctx context.Context) (apiKey, apiSecret string, err error)

// TickCallback is invoked by an ExchangeHandler for every decoded tick on
// an adapter-chosen goroutine.
type TickCallback func(ticker.Record)

// ExchangeHandler is one logical adapter-owned WebSocket session to one
// exchange. The adapter owns connection establishment, authentication, and
// auto-reconnection; the handler only exposes per-symbol subscription.
type ExchangeHandler interface {
	SubscribeTicker(ctx context.Context, symbol string, cb TickCallback) error
}

// AdapterFactory is the initialize-once, shutdown-once lifecycle the core
// depends on for all exchange connectivity.
type AdapterFactory interface {
	GetWebSocketHandler(ctx context.Context, descriptor ExchangeDescriptor, creds CredentialProvider) (ExchangeHandler, error)
	Shutdown(ctx context.Context) error
}

// CredentialResolver returns API key material for an exchange id. A
// resolver failure is not itself an error to the caller: ExchangeSession
// construction treats it as "fall back to public access."
type CredentialResolver interface {
	Resolve(ctx context.Context, exchangeID int) (apiKey, apiSecret string, err error)
}

// TickerSession is a scoped connection to the ticker store, guaranteed
// released by the caller via Close.
type TickerSession interface {
	SetTicker(ctx context.Context, record ticker.Record) error
	Close() error
}

// TickerStore opens scoped sessions for writing the latest value of a
// (exchange, symbol) pair. Only the latest value is retained; it must be
// safe under concurrent writers.
type TickerStore interface {
	Open(ctx context.Context) (TickerSession, error)
}

// ProcessStatus is the closed status enum the process registry accepts.
type ProcessStatus string

const (
	ProcessStarting ProcessStatus = "starting"
	ProcessRunning  ProcessStatus = "running"
	ProcessError    ProcessStatus = "error"
)

// ProcessType is the closed process-type enum; TICK is the only value this
// core ever registers.
type ProcessType string

const ProcessTypeTick ProcessType = "TICK"

// RegistrySession is a scoped connection to the process registry.
type RegistrySession interface {
	RegisterProcess(ctx context.Context, processType ProcessType, component string, params map[string]any, message string, status ProcessStatus) (string, error)
	UpdateProcess(ctx context.Context, processID string, status ProcessStatus, message string) error
	Close() error
}

// ProcessRegistry opens scoped sessions against the process health/liveness
// directory.
type ProcessRegistry interface {
	Open(ctx context.Context) (RegistrySession, error)
}

// ConfigSession is a scoped connection to the configuration store.
type ConfigSession interface {
	ListAllSymbols(ctx context.Context) ([]ticker.SymbolRef, error)
	Close() error
}

// ConfigStore opens scoped sessions against the symbol/exchange metadata
// store.
type ConfigStore interface {
	Open(ctx context.Context) (ConfigSession, error)
}
