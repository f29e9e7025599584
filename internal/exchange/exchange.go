package exchange

import (
	"context"
	"errors"
	"fmt"

	"volume-bot-go/internal/models"
)

// Client is the capability surface every exchange implementation must
// provide. The trading engine only ever talks to this interface, so live
// exchanges and the mock are interchangeable.
type Client interface {
	// GetBalance returns the account balances keyed by asset code.
	GetBalance(ctx context.Context) (map[string]models.Balance, error)

	// GetOrderBook returns a depth snapshot with bids and asks ordered
	// most-favorable first.
	GetOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error)

	// GetTicker returns 24h market statistics for the symbol.
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)

	// PlaceOrder submits an order and returns the exchange order id.
	// LIMIT orders require price > 0; this is validated before any
	// network call.
	PlaceOrder(ctx context.Context, symbol string, side models.Side, orderType models.OrderType, quantity, price float64) (string, error)

	// CancelOrder cancels an open order by exchange order id.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetOrderStatus returns the current state of an order.
	GetOrderStatus(ctx context.Context, symbol, orderID string) (*models.Order, error)

	// GetTradingPairs returns the symbols tradable on the exchange with
	// their trading rules.
	GetTradingPairs(ctx context.Context) ([]models.PairInfo, error)

	// Close releases any resources held by the client. It must be safe to
	// call more than once.
	Close() error
}

// APIError normalizes every transport, HTTP, and exchange-reported failure.
// Code carries the exchange's own error code where one exists, or the HTTP
// status otherwise; zero means the request never reached the exchange.
type APIError struct {
	Exchange string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: code=%d, msg=%s", e.Exchange, e.Code, e.Message)
}

// NewAPIError wraps a failure in the normalized exchange error type.
func NewAPIError(exchange string, code int, message string) *APIError {
	return &APIError{Exchange: exchange, Code: code, Message: message}
}

// IsAPIError reports whether err is (or wraps) an APIError, which the engine
// treats as transient.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// Validation errors returned before any network call is made.
var (
	ErrMissingPrice        = errors.New("limit order requires a price")
	ErrInvalidQuantity     = errors.New("order quantity must be positive")
	ErrUnsupportedExchange = errors.New("unsupported exchange")
)

func validateOrder(orderType models.OrderType, quantity, price float64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if orderType == models.OrderTypeLimit && price <= 0 {
		return ErrMissingPrice
	}
	return nil
}
