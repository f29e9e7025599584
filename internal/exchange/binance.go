package exchange

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"volume-bot-go/internal/models"
)

// BinanceClient implements Client on top of the official spot SDK, which
// owns request signing and transport.
type BinanceClient struct {
	client *binance.Client
}

// NewBinanceClient builds a spot client for the given credentials.
func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	return &BinanceClient{client: binance.NewClient(apiKey, secretKey)}
}

// binanceSymbol strips the pair delimiter: "BTC_USDT" -> "BTCUSDT".
func binanceSymbol(symbol string) string {
	symbol = strings.ReplaceAll(symbol, "_", "")
	symbol = strings.ReplaceAll(symbol, "-", "")
	return strings.ReplaceAll(symbol, "/", "")
}

func (c *BinanceClient) wrapErr(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return NewAPIError("binance", int(apiErr.Code), apiErr.Message)
	}
	return NewAPIError("binance", 0, err.Error())
}

func (c *BinanceClient) GetBalance(ctx context.Context) (map[string]models.Balance, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.wrapErr(err)
	}

	balances := make(map[string]models.Balance, len(account.Balances))
	for _, b := range account.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		balances[b.Asset] = models.Balance{
			Free:   free,
			Locked: locked,
			Total:  free + locked,
		}
	}
	return balances, nil
}

func (c *BinanceClient) GetOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error) {
	depth, err := c.client.NewDepthService().
		Symbol(binanceSymbol(symbol)).
		Limit(20).
		Do(ctx)
	if err != nil {
		return nil, c.wrapErr(err)
	}

	book := &models.OrderBook{Symbol: symbol}
	for _, bid := range depth.Bids {
		book.Bids = append(book.Bids, models.PriceLevel{
			Price:    parseFloat(bid.Price),
			Quantity: parseFloat(bid.Quantity),
		})
	}
	for _, ask := range depth.Asks {
		book.Asks = append(book.Asks, models.PriceLevel{
			Price:    parseFloat(ask.Price),
			Quantity: parseFloat(ask.Quantity),
		})
	}
	return book, nil
}

func (c *BinanceClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	stats, err := c.client.NewListPriceChangeStatsService().
		Symbol(binanceSymbol(symbol)).
		Do(ctx)
	if err != nil {
		return nil, c.wrapErr(err)
	}
	if len(stats) == 0 {
		return nil, NewAPIError("binance", 0, "empty ticker response for "+symbol)
	}

	s := stats[0]
	return &models.Ticker{
		Symbol:            symbol,
		LastPrice:         parseFloat(s.LastPrice),
		BidPrice:          parseFloat(s.BidPrice),
		AskPrice:          parseFloat(s.AskPrice),
		HighPrice:         parseFloat(s.HighPrice),
		LowPrice:          parseFloat(s.LowPrice),
		Volume:            parseFloat(s.Volume),
		PriceChangePct:    parseFloat(s.PriceChangePercent),
		HasPriceChangePct: true,
	}, nil
}

func (c *BinanceClient) PlaceOrder(ctx context.Context, symbol string, side models.Side, orderType models.OrderType, quantity, price float64) (string, error) {
	if err := validateOrder(orderType, quantity, price); err != nil {
		return "", err
	}

	service := c.client.NewCreateOrderService().
		Symbol(binanceSymbol(symbol)).
		Side(binance.SideType(side)).
		Type(binance.OrderType(orderType)).
		Quantity(formatFloat(quantity))
	if orderType == models.OrderTypeLimit {
		service = service.
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(formatFloat(price))
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return "", c.wrapErr(err)
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (c *BinanceClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return NewAPIError("binance", 0, "bad order id "+orderID)
	}
	_, err = c.client.NewCancelOrderService().
		Symbol(binanceSymbol(symbol)).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return c.wrapErr(err)
	}
	return nil
}

func (c *BinanceClient) GetOrderStatus(ctx context.Context, symbol, orderID string) (*models.Order, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, NewAPIError("binance", 0, "bad order id "+orderID)
	}
	order, err := c.client.NewGetOrderService().
		Symbol(binanceSymbol(symbol)).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return nil, c.wrapErr(err)
	}

	return &models.Order{
		Symbol:          symbol,
		Side:            models.Side(order.Side),
		Type:            models.OrderType(order.Type),
		Price:           parseFloat(order.Price),
		Quantity:        parseFloat(order.OrigQuantity),
		ExchangeOrderID: orderID,
		Status:          normalizeStatus(string(order.Status)),
	}, nil
}

func (c *BinanceClient) GetTradingPairs(ctx context.Context) ([]models.PairInfo, error) {
	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.wrapErr(err)
	}

	pairs := make([]models.PairInfo, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		pair := models.PairInfo{
			Symbol:     s.BaseAsset + "_" + s.QuoteAsset,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}
		if pf := s.PriceFilter(); pf != nil {
			pair.PricePrecision = decimalsOf(pf.TickSize)
		}
		if lf := s.LotSizeFilter(); lf != nil {
			pair.QuantityPrecision = decimalsOf(lf.StepSize)
			pair.MinQuantity = parseFloat(lf.MinQuantity)
			pair.MaxQuantity = parseFloat(lf.MaxQuantity)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (c *BinanceClient) Close() error {
	return nil
}

var _ Client = (*BinanceClient)(nil)

// normalizeStatus maps exchange order states onto the recorded statuses.
func normalizeStatus(status string) string {
	switch strings.ToUpper(status) {
	case "NEW", "OPEN", "PENDING", "ACTIVE":
		return models.OrderStatusPending
	case "FILLED", "CLOSED", "DONE":
		return models.OrderStatusFilled
	case "PARTIALLY_FILLED":
		return models.OrderStatusPartiallyFilled
	case "CANCELED", "CANCELLED", "EXPIRED":
		return models.OrderStatusCanceled
	case "REJECTED":
		return models.OrderStatusRejected
	default:
		return models.OrderStatusPending
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// decimalsOf counts the significant decimal places of a filter step such as
// "0.00100000" (-> 3).
func decimalsOf(step string) int {
	dot := strings.IndexByte(step, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(step[dot+1:], "0")
	return len(frac)
}
