package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
)

// session wraps a single adapter-owned WebSocket handler for one exchange.
// It multiplexes every symbol subscribed on that exchange through the
// shared callback the owning LiveCollector hands it; consumers outside
// this package never see a session directly.
type session struct {
	exchangeName string
	handler      ports.ExchangeHandler
	logger       *logrus.Logger
}

// newSession resolves credentials for exchangeID (falling back to public
// access on resolver failure) and asks the adapter factory for a handler.
// The session is ready as soon as the factory call returns without error;
// the factory itself owns connection establishment and reconnection.
func newSession(
	ctx context.Context,
	factory ports.AdapterFactory,
	credentials ports.CredentialResolver,
	exchangeName string,
	exchangeID int,
	logger *logrus.Logger,
) (*session, error) {
	creds := func(ctx context.Context) (string, string, error) {
		if credentials == nil {
			return "", "", nil
		}
		apiKey, apiSecret, err := credentials.Resolve(ctx, exchangeID)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"exchange": exchangeName,
				"error":    err,
			}).Warn("credential resolution failed, falling back to public access")
			return "", "", nil
		}
		return apiKey, apiSecret, nil
	}

	handler, err := factory.GetWebSocketHandler(ctx, ports.ExchangeDescriptor{
		Name: exchangeName,
		ID:   exchangeID,
	}, creds)
	if err != nil {
		return nil, fmt.Errorf("construct session for exchange %s: %w", exchangeName, err)
	}

	return &session{
		exchangeName: exchangeName,
		handler:      handler,
		logger:       logger,
	}, nil
}

// subscribe asks the adapter to subscribe the given symbol, routing ticks
// through cb. A hard subscribe error is reported to the caller for this
// symbol only; it never disturbs other symbols already subscribed on this
// session.
func (s *session) subscribe(ctx context.Context, symbol string, cb ports.TickCallback) error {
	if err := s.handler.SubscribeTicker(ctx, symbol, cb); err != nil {
		return fmt.Errorf("subscribe %s on %s: %w", symbol, s.exchangeName, err)
	}
	return nil
}
