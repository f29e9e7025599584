package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"volume-bot-go/internal/models"
)

const pionexBaseURL = "https://api.pionex.com"

// PionexClient implements Client against the Pionex REST API with
// hand-rolled HMAC-SHA256 request signing.
type PionexClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewPionexClient builds a Pionex client for the given credentials.
func NewPionexClient(apiKey, secretKey string) *PionexClient {
	return &PionexClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    pionexBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL points the client at a different host. Used by tests.
func (c *PionexClient) SetBaseURL(u string) {
	c.baseURL = u
}

// pionexEnvelope is the common response wrapper. A missing or true Result
// with code 0 means success.
type pionexEnvelope struct {
	Result  *bool           `json:"result,omitempty"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// sign computes hex(HMAC-SHA256(secret, timestamp + METHOD + pathWithQuery + body)).
func (c *PionexClient) sign(timestamp, method, pathWithQuery string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(pathWithQuery))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *PionexClient) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return NewAPIError("pionex", 0, "encoding request: "+err.Error())
		}
	}

	pathWithQuery := path
	if len(query) > 0 {
		pathWithQuery += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathWithQuery, bytes.NewReader(body))
	if err != nil {
		return NewAPIError("pionex", 0, err.Error())
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-TIMESTAMP", timestamp)
	req.Header.Set("X-SIGNATURE", c.sign(timestamp, method, pathWithQuery, body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAPIError("pionex", 0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewAPIError("pionex", resp.StatusCode, "reading response: "+err.Error())
	}

	var envelope pionexEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return NewAPIError("pionex", resp.StatusCode, "decoding response: "+err.Error())
	}

	if resp.StatusCode >= 300 || envelope.Code != 0 || (envelope.Result != nil && !*envelope.Result) {
		code := envelope.Code
		if code == 0 {
			code = resp.StatusCode
		}
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return NewAPIError("pionex", code, msg)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return NewAPIError("pionex", 0, "decoding data: "+err.Error())
		}
	}
	return nil
}

func (c *PionexClient) GetBalance(ctx context.Context) (map[string]models.Balance, error) {
	var data struct {
		Balances []struct {
			Coin   string `json:"coin"`
			Free   string `json:"free"`
			Frozen string `json:"frozen"`
		} `json:"balances"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/account/balances", nil, nil, &data); err != nil {
		return nil, err
	}

	balances := make(map[string]models.Balance, len(data.Balances))
	for _, b := range data.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Frozen)
		if free == 0 && locked == 0 {
			continue
		}
		balances[b.Coin] = models.Balance{Free: free, Locked: locked, Total: free + locked}
	}
	return balances, nil
}

func (c *PionexClient) GetOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("limit", "20")

	var data struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/market/depth", query, nil, &data); err != nil {
		return nil, err
	}

	book := &models.OrderBook{Symbol: symbol}
	for _, level := range data.Bids {
		book.Bids = append(book.Bids, models.PriceLevel{Price: parseFloat(level[0]), Quantity: parseFloat(level[1])})
	}
	for _, level := range data.Asks {
		book.Asks = append(book.Asks, models.PriceLevel{Price: parseFloat(level[0]), Quantity: parseFloat(level[1])})
	}
	return book, nil
}

func (c *PionexClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	var data struct {
		Tickers []struct {
			Symbol string `json:"symbol"`
			Open   string `json:"open"`
			Close  string `json:"close"`
			High   string `json:"high"`
			Low    string `json:"low"`
			Volume string `json:"volume"`
		} `json:"tickers"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/market/tickers", query, nil, &data); err != nil {
		return nil, err
	}
	if len(data.Tickers) == 0 {
		return nil, NewAPIError("pionex", 0, "empty ticker response for "+symbol)
	}

	t := data.Tickers[0]
	ticker := &models.Ticker{
		Symbol:    symbol,
		LastPrice: parseFloat(t.Close),
		HighPrice: parseFloat(t.High),
		LowPrice:  parseFloat(t.Low),
		Volume:    parseFloat(t.Volume),
	}
	// Pionex does not report a 24h change figure; derive it from open/close.
	if open := parseFloat(t.Open); open > 0 {
		ticker.PriceChangePct = (ticker.LastPrice - open) / open * 100
		ticker.HasPriceChangePct = true
	}
	return ticker, nil
}

func (c *PionexClient) PlaceOrder(ctx context.Context, symbol string, side models.Side, orderType models.OrderType, quantity, price float64) (string, error) {
	if err := validateOrder(orderType, quantity, price); err != nil {
		return "", err
	}

	payload := map[string]string{
		"symbol": symbol,
		"side":   string(side),
		"type":   string(orderType),
		"size":   formatFloat(quantity),
	}
	if orderType == models.OrderTypeLimit {
		payload["price"] = formatFloat(price)
	}

	var data struct {
		OrderID int64 `json:"orderId"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/trade/order", nil, payload, &data); err != nil {
		return "", err
	}
	return strconv.FormatInt(data.OrderID, 10), nil
}

func (c *PionexClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return NewAPIError("pionex", 0, "bad order id "+orderID)
	}
	payload := map[string]interface{}{
		"symbol":  symbol,
		"orderId": id,
	}
	return c.doRequest(ctx, http.MethodDelete, "/api/v1/trade/order", nil, payload, nil)
}

func (c *PionexClient) GetOrderStatus(ctx context.Context, symbol, orderID string) (*models.Order, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("orderId", orderID)

	var data struct {
		OrderID int64  `json:"orderId"`
		Symbol  string `json:"symbol"`
		Side    string `json:"side"`
		Type    string `json:"type"`
		Price   string `json:"price"`
		Size    string `json:"size"`
		Status  string `json:"status"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/trade/order", query, nil, &data); err != nil {
		return nil, err
	}

	return &models.Order{
		Symbol:          symbol,
		Side:            models.Side(data.Side),
		Type:            models.OrderType(data.Type),
		Price:           parseFloat(data.Price),
		Quantity:        parseFloat(data.Size),
		ExchangeOrderID: orderID,
		Status:          normalizeStatus(data.Status),
	}, nil
}

func (c *PionexClient) GetTradingPairs(ctx context.Context) ([]models.PairInfo, error) {
	var data struct {
		Symbols []struct {
			Symbol         string `json:"symbol"`
			BaseCurrency   string `json:"baseCurrency"`
			QuoteCurrency  string `json:"quoteCurrency"`
			BasePrecision  int    `json:"basePrecision"`
			QuotePrecision int    `json:"quotePrecision"`
			MinTradeSize   string `json:"minTradeSize"`
			MaxTradeSize   string `json:"maxTradeSize"`
		} `json:"symbols"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/common/symbols", nil, nil, &data); err != nil {
		return nil, err
	}

	pairs := make([]models.PairInfo, 0, len(data.Symbols))
	for _, s := range data.Symbols {
		pairs = append(pairs, models.PairInfo{
			Symbol:            s.Symbol,
			BaseAsset:         s.BaseCurrency,
			QuoteAsset:        s.QuoteCurrency,
			PricePrecision:    s.QuotePrecision,
			QuantityPrecision: s.BasePrecision,
			MinQuantity:       parseFloat(s.MinTradeSize),
			MaxQuantity:       parseFloat(s.MaxTradeSize),
		})
	}
	return pairs, nil
}

func (c *PionexClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Client = (*PionexClient)(nil)
