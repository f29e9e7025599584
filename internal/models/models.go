package models

import "time"

// BotStatus is the lifecycle state of a bot configuration.
type BotStatus string

const (
	StatusIdle      BotStatus = "idle"
	StatusRunning   BotStatus = "running"
	StatusStopped   BotStatus = "stopped"
	StatusCompleted BotStatus = "completed"
	StatusError     BotStatus = "error"
)

// Terminal reports whether the status requires an operator reset before the
// bot can be started again.
func (s BotStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Side is the trade direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType is the declared order type sent to the exchange.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// Order statuses as recorded at placement time from the exchange response.
const (
	OrderStatusPending         = "PENDING"
	OrderStatusFilled          = "FILLED"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
)

// BotConfig holds the full configuration and running state of one volume bot.
type BotConfig struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	Exchange string `json:"exchange"` // exchange code, e.g. "BINANCE", "PIONEX"
	Symbol   string `json:"symbol"`   // trading pair, e.g. "BTC_USDT"

	// Credentials are opaque to the engine and handed to the exchange
	// client untouched.
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase,omitempty"`

	TotalOrderVolume float64 `json:"total_order_volume"` // total base-asset volume to generate
	RemainingVolume  float64 `json:"remaining_volume"`   // volume still to be traded
	PerOrderVolume   float64 `json:"per_order_volume"`   // target volume per cycle

	PriceDecimals    int `json:"price_decimals"`
	QuantityDecimals int `json:"quantity_decimals"`

	TimeInterval int     `json:"time_interval"` // seconds between trading cycles
	Tolerance    float64 `json:"tolerance"`     // minimum acceptable spread percent

	Status       BotStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	LastRun      time.Time `json:"last_run,omitempty"`

	CompletedVolume  float64 `json:"completed_volume"`
	TotalOrders      int     `json:"total_orders"`
	SuccessfulOrders int     `json:"successful_orders"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interval returns the configured sleep between trading cycles.
func (b *BotConfig) Interval() time.Duration {
	if b.TimeInterval <= 0 {
		return time.Minute
	}
	return time.Duration(b.TimeInterval) * time.Second
}

// Order is one order record as submitted to an exchange.
type Order struct {
	ID              string    `json:"id"`
	BotID           string    `json:"bot_id"`
	Symbol          string    `json:"symbol"`
	Side            Side      `json:"side"`
	Type            OrderType `json:"type"`
	Price           float64   `json:"price"`
	Quantity        float64   `json:"quantity"`
	ExchangeOrderID string    `json:"exchange_order_id"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// BotLog is one append-only diagnostic entry attached to a bot. The engine
// only ever writes these; it never reads them back.
type BotLog struct {
	BotID     string    `json:"bot_id"`
	Level     string    `json:"level"` // DEBUG, INFO, WARNING, ERROR, CRITICAL
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// PriceLevel is one price step in an order book side.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is one depth snapshot. Bids and asks are ordered most-favorable
// first: bids descending by price, asks ascending.
type OrderBook struct {
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// Ticker holds 24h market statistics for a symbol. HasPriceChangePct is
// false on exchanges that do not report a 24h change figure.
type Ticker struct {
	Symbol            string  `json:"symbol"`
	LastPrice         float64 `json:"last_price"`
	BidPrice          float64 `json:"bid_price"`
	AskPrice          float64 `json:"ask_price"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	Volume            float64 `json:"volume"`
	PriceChangePct    float64 `json:"price_change_percent"`
	HasPriceChangePct bool    `json:"-"`
}

// Balance is the funds held in one asset on the account.
type Balance struct {
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
	Total  float64 `json:"total"`
}

// PairInfo holds the trading rules for one symbol as reported by the
// exchange.
type PairInfo struct {
	Symbol            string  `json:"symbol"`
	BaseAsset         string  `json:"base_asset"`
	QuoteAsset        string  `json:"quote_asset"`
	PricePrecision    int     `json:"price_precision"`
	QuantityPrecision int     `json:"quantity_precision"`
	MinQuantity       float64 `json:"min_quantity"`
	MaxQuantity       float64 `json:"max_quantity"`
}

// BaseAsset extracts the base currency from a delimited pair symbol such as
// "BTC_USDT". It returns "" when the symbol carries no delimiter.
func BaseAsset(symbol string) string {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '_' || symbol[i] == '-' || symbol[i] == '/' {
			return symbol[:i]
		}
	}
	return ""
}

// QuoteAsset extracts the quote currency from a pair symbol such as
// "BTC_USDT". Symbols without a delimiter fall back to a suffix match
// against common quote currencies.
func QuoteAsset(symbol string) string {
	for i := len(symbol) - 1; i >= 0; i-- {
		if symbol[i] == '_' || symbol[i] == '-' || symbol[i] == '/' {
			return symbol[i+1:]
		}
	}
	for _, quote := range []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"} {
		if len(symbol) > len(quote) && symbol[len(symbol)-len(quote):] == quote {
			return quote
		}
	}
	return ""
}
