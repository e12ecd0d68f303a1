// Package ticker defines the value types exchanged between the collector
// core and its external collaborators: the decoded price update, the
// subscription descriptor, and the canonical key that identifies one.
package ticker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one decoded price update delivered by an exchange adapter.
// It is immutable and transient: owned only by the in-flight callback that
// received it, never stored by the core itself.
type Record struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Volume    decimal.Decimal `json:"volume"`
	Time      time.Time       `json:"time"`
}

// SymbolRef describes a target subscription: which exchange, which symbol
// on that exchange, and the exchange id used to look up credentials.
// (exchangeName, symbol) uniquely identifies a subscription.
type SymbolRef struct {
	Symbol       string `json:"symbol"`
	ExchangeName string `json:"exchange_name"`
	ExchangeID   int    `json:"exchange_id"`
}

// Validate reports whether every field processTicker requires is present.
func (s SymbolRef) Validate() error {
	if s.ExchangeName == "" {
		return fmt.Errorf("symbol ref: exchange name is required")
	}
	if s.Symbol == "" {
		return fmt.Errorf("symbol ref: symbol is required")
	}
	if s.ExchangeID == 0 {
		return fmt.Errorf("symbol ref: exchange id is required")
	}
	return nil
}

// Key returns the canonical SubscriptionKey for this SymbolRef.
func (s SymbolRef) Key() Key {
	return Key(s.ExchangeName + ":" + s.Symbol)
}

// Key is the canonical "exchangeName:symbol" identifier used by the active
// set, the rate gate, and the process registry map.
type Key string

// RecordKey builds the canonical Key for a decoded Record.
func RecordKey(r Record) Key {
	return Key(r.Exchange + ":" + r.Symbol)
}
