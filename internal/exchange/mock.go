package exchange

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jxskiss/base62"

	"volume-bot-go/internal/models"
)

// MockClient is an in-memory exchange for tests and dry runs. It serves a
// synthetic order book around a drifting mid price and accepts every order.
// With a non-zero seed its market data is deterministic.
type MockClient struct {
	mu       sync.Mutex
	rng      *rand.Rand
	mid      float64
	openPx   float64
	nextID   int64
	orders   map[string]*models.Order
	balances map[string]models.Balance
	closed   bool
}

// NewMockClient builds a mock exchange. seed 0 means seed from the clock.
func NewMockClient(seed int64) *MockClient {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockClient{
		rng:    rand.New(rand.NewSource(seed)),
		mid:    100.0,
		openPx: 100.0,
		orders: make(map[string]*models.Order),
		balances: map[string]models.Balance{
			"USDT": {Free: 1_000_000, Total: 1_000_000},
			"BTC":  {Free: 1_000, Total: 1_000},
		},
	}
}

// drift moves the mid price a random step up to 0.1% in either direction.
// Callers must hold mu.
func (c *MockClient) drift() {
	c.mid *= 1 + (c.rng.Float64()-0.5)*0.002
}

func (c *MockClient) GetBalance(ctx context.Context) (map[string]models.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewAPIError("mock", 0, err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]models.Balance, len(c.balances))
	for asset, b := range c.balances {
		out[asset] = b
	}
	return out, nil
}

func (c *MockClient) GetOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewAPIError("mock", 0, err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drift()

	// 0.2% spread around the mid, five levels a side.
	halfSpread := c.mid * 0.001
	book := &models.OrderBook{Symbol: symbol}
	for i := 0; i < 5; i++ {
		step := float64(i) * halfSpread
		book.Bids = append(book.Bids, models.PriceLevel{
			Price:    c.mid - halfSpread - step,
			Quantity: 0.5 + c.rng.Float64()*5,
		})
		book.Asks = append(book.Asks, models.PriceLevel{
			Price:    c.mid + halfSpread + step,
			Quantity: 0.5 + c.rng.Float64()*5,
		})
	}
	return book, nil
}

func (c *MockClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewAPIError("mock", 0, err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drift()

	halfSpread := c.mid * 0.001
	return &models.Ticker{
		Symbol:            symbol,
		LastPrice:         c.mid,
		BidPrice:          c.mid - halfSpread,
		AskPrice:          c.mid + halfSpread,
		HighPrice:         c.mid * 1.01,
		LowPrice:          c.mid * 0.99,
		Volume:            1000 + c.rng.Float64()*9000,
		PriceChangePct:    (c.mid - c.openPx) / c.openPx * 100,
		HasPriceChangePct: true,
	}, nil
}

func (c *MockClient) PlaceOrder(ctx context.Context, symbol string, side models.Side, orderType models.OrderType, quantity, price float64) (string, error) {
	if err := validateOrder(orderType, quantity, price); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", NewAPIError("mock", 0, err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	orderID := string(base62.FormatInt(c.nextID))
	c.orders[orderID] = &models.Order{
		Symbol:          symbol,
		Side:            side,
		Type:            orderType,
		Price:           price,
		Quantity:        quantity,
		ExchangeOrderID: orderID,
		Status:          models.OrderStatusFilled,
		CreatedAt:       time.Now(),
	}
	return orderID, nil
}

func (c *MockClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return NewAPIError("mock", 404, "order not found: "+orderID)
	}
	if order.Status == models.OrderStatusPending || order.Status == models.OrderStatusPartiallyFilled {
		order.Status = models.OrderStatusCanceled
	}
	return nil
}

func (c *MockClient) GetOrderStatus(ctx context.Context, symbol, orderID string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return nil, NewAPIError("mock", 404, "order not found: "+orderID)
	}
	copied := *order
	return &copied, nil
}

func (c *MockClient) GetTradingPairs(ctx context.Context) ([]models.PairInfo, error) {
	return []models.PairInfo{
		{Symbol: "BTC_USDT", BaseAsset: "BTC", QuoteAsset: "USDT", PricePrecision: 2, QuantityPrecision: 6, MinQuantity: 0.000_01, MaxQuantity: 9000},
		{Symbol: "ETH_USDT", BaseAsset: "ETH", QuoteAsset: "USDT", PricePrecision: 2, QuantityPrecision: 5, MinQuantity: 0.000_1, MaxQuantity: 90000},
	}, nil
}

// PlacedOrders returns every order the mock has accepted, in no particular
// order. Test helper.
func (c *MockClient) PlacedOrders() []models.Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Order, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, *o)
	}
	return out
}

func (c *MockClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called. Test helper.
func (c *MockClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ Client = (*MockClient)(nil)
