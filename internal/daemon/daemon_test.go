package daemon

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

type fakeHandler struct{ mu sync.Mutex }

func (h *fakeHandler) SubscribeTicker(ctx context.Context, symbol string, cb ports.TickCallback) error {
	return nil
}

type fakeFactory struct {
	mu        sync.Mutex
	builds    int
	shutdowns int
	failBuild bool
}

func (f *fakeFactory) GetWebSocketHandler(ctx context.Context, d ports.ExchangeDescriptor, creds ports.CredentialProvider) (ports.ExchangeHandler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.failBuild {
		return nil, fmt.Errorf("fake build failure")
	}
	return &fakeHandler{}, nil
}

func (f *fakeFactory) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

type fakeConfigSession struct{ refs []ticker.SymbolRef }

func (s *fakeConfigSession) ListAllSymbols(ctx context.Context) ([]ticker.SymbolRef, error) {
	return s.refs, nil
}
func (s *fakeConfigSession) Close() error { return nil }

type fakeConfigStore struct {
	refs    []ticker.SymbolRef
	failErr error
}

func (s *fakeConfigStore) Open(ctx context.Context) (ports.ConfigSession, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	return &fakeConfigSession{refs: s.refs}, nil
}

type fakeRegistrySession struct{ reg *fakeRegistry }

func (s *fakeRegistrySession) RegisterProcess(ctx context.Context, pt ports.ProcessType, component string, params map[string]any, message string, status ports.ProcessStatus) (string, error) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	s.reg.nextID++
	return fmt.Sprintf("proc-%d", s.reg.nextID), nil
}

func (s *fakeRegistrySession) UpdateProcess(ctx context.Context, processID string, status ports.ProcessStatus, message string) error {
	return nil
}

func (s *fakeRegistrySession) Close() error { return nil }

type fakeRegistry struct {
	mu     sync.Mutex
	nextID int
}

func (r *fakeRegistry) Open(ctx context.Context) (ports.RegistrySession, error) {
	return &fakeRegistrySession{reg: r}, nil
}

type fakeTickerSession struct{}

func (s *fakeTickerSession) SetTicker(ctx context.Context, rec ticker.Record) error { return nil }
func (s *fakeTickerSession) Close() error                                          { return nil }

type fakeTickerStore struct{}

func (s *fakeTickerStore) Open(ctx context.Context) (ports.TickerSession, error) {
	return &fakeTickerSession{}, nil
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testRef(exchange, symbol string) ticker.SymbolRef {
	return ticker.SymbolRef{ExchangeName: exchange, Symbol: symbol, ExchangeID: 1}
}

func newTestDaemon(factory *fakeFactory, cfgStore ports.ConfigStore) *Daemon {
	return New(Config{
		Factory:     factory,
		TickerStore: &fakeTickerStore{},
		Registry:    &fakeRegistry{},
		ConfigStore: cfgStore,
		Logger:      silentLogger(),
	})
}

func TestStart_ColdStartsCollectorWithConfiguredSymbols(t *testing.T) {
	factory := &fakeFactory{}
	cfgStore := &fakeConfigStore{refs: []ticker.SymbolRef{
		testRef("kraken", "BTC/USD"),
		testRef("kraken", "ETH/USD"),
		testRef("bitmex", "XBT/USD"),
	}}
	d := newTestDaemon(factory, cfgStore)

	require.NoError(t, d.Start(context.Background()))

	assert.Equal(t, StatusRunning, d.Status())
	h := d.GetHealth()
	assert.Equal(t, 3, h.ActiveCount)
	assert.ElementsMatch(t, []string{"kraken", "bitmex"}, h.Exchanges)
}

func TestStart_IsIdempotentWhenAlreadyRunning(t *testing.T) {
	factory := &fakeFactory{}
	cfgStore := &fakeConfigStore{refs: []ticker.SymbolRef{testRef("kraken", "BTC/USD")}}
	d := newTestDaemon(factory, cfgStore)

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))

	assert.Equal(t, StatusRunning, d.Status())
	assert.Equal(t, 1, d.GetHealth().ActiveCount)
}

func TestStart_ConfigStoreFailureTransitionsToErrored(t *testing.T) {
	factory := &fakeFactory{}
	cfgStore := &fakeConfigStore{failErr: fmt.Errorf("config store unreachable")}
	d := newTestDaemon(factory, cfgStore)

	err := d.Start(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StatusErrored, d.Status())
	assert.False(t, d.HasCollector())
}

func TestProcessTicker_ColdStartFromStopped(t *testing.T) {
	factory := &fakeFactory{}
	d := newTestDaemon(factory, &fakeConfigStore{})

	ref := testRef("kraken", "BTC/USD")
	require.NoError(t, d.ProcessTicker(context.Background(), ref))

	assert.Equal(t, StatusRunning, d.Status())
	h := d.GetHealth()
	assert.Equal(t, 1, h.ActiveCount)
	assert.Equal(t, []string{"kraken"}, h.Exchanges)
}

func TestProcessTicker_AdmitsNewSymbolWhileRunning(t *testing.T) {
	factory := &fakeFactory{}
	cfgStore := &fakeConfigStore{refs: []ticker.SymbolRef{
		testRef("kraken", "BTC/USD"),
		testRef("kraken", "ETH/USD"),
		testRef("bitmex", "XBT/USD"),
	}}
	d := newTestDaemon(factory, cfgStore)
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.ProcessTicker(context.Background(), testRef("kraken", "XRP/USD")))

	h := d.GetHealth()
	assert.Equal(t, 4, h.ActiveCount)
	assert.ElementsMatch(t, []string{"kraken", "bitmex"}, h.Exchanges)
	// S3: no additional get-websocket-handler call for kraken; still one per exchange.
	assert.Equal(t, 2, factory.builds)
}

func TestProcessTicker_DuplicateIsNoOp(t *testing.T) {
	factory := &fakeFactory{}
	d := newTestDaemon(factory, &fakeConfigStore{})
	ref := testRef("kraken", "BTC/USD")

	require.NoError(t, d.ProcessTicker(context.Background(), ref))
	require.NoError(t, d.ProcessTicker(context.Background(), ref))

	assert.Equal(t, 1, d.GetHealth().ActiveCount)
}

func TestProcessTicker_RejectsInvalidInput(t *testing.T) {
	factory := &fakeFactory{}
	d := newTestDaemon(factory, &fakeConfigStore{})

	err := d.ProcessTicker(context.Background(), ticker.SymbolRef{Symbol: "BTC/USD"})
	assert.Error(t, err)
	assert.Equal(t, StatusStopped, d.Status())
}

func TestStop_TransitionsToStoppedAndDropsCollector(t *testing.T) {
	factory := &fakeFactory{}
	cfgStore := &fakeConfigStore{refs: []ticker.SymbolRef{testRef("kraken", "BTC/USD")}}
	d := newTestDaemon(factory, cfgStore)
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, StatusStopped, d.Status())
	assert.False(t, d.HasCollector())
	assert.Equal(t, 1, factory.shutdowns)
}

func TestStop_IsIdempotentWhenAlreadyStopped(t *testing.T) {
	d := newTestDaemon(&fakeFactory{}, &fakeConfigStore{})
	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, StatusStopped, d.Status())
}

func TestGetHealth_StoppedSnapshot(t *testing.T) {
	d := newTestDaemon(&fakeFactory{}, &fakeConfigStore{})
	h := d.GetHealth()
	assert.Equal(t, StatusStopped, h.Status)
	assert.False(t, h.Running)
	assert.False(t, h.HasCollector)
	assert.Equal(t, 0, h.ActiveCount)
}
