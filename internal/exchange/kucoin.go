package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"volume-bot-go/internal/models"
)

const (
	kucoinBaseURL = "https://api.kucoin.com"
	kucoinOK      = "200000"
)

// KucoinClient implements Client against the KuCoin REST API. KuCoin signs
// with base64 HMAC-SHA256 and additionally requires an encrypted passphrase
// header (API key version 2).
type KucoinClient struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string
	httpClient *http.Client
}

// NewKucoinClient builds a KuCoin client for the given credentials.
func NewKucoinClient(apiKey, secretKey, passphrase string) *KucoinClient {
	return &KucoinClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		baseURL:    kucoinBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL points the client at a different host. Used by tests.
func (c *KucoinClient) SetBaseURL(u string) {
	c.baseURL = u
}

// kucoinSymbol rewrites the pair delimiter: "BTC_USDT" -> "BTC-USDT".
func kucoinSymbol(symbol string) string {
	symbol = strings.ReplaceAll(symbol, "_", "-")
	return strings.ReplaceAll(symbol, "/", "-")
}

type kucoinEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *KucoinClient) hmacBase64(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *KucoinClient) doRequest(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return NewAPIError("kucoin", 0, "encoding request: "+err.Error())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return NewAPIError("kucoin", 0, err.Error())
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	strToSign := timestamp + method + endpoint + string(body)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("KC-API-KEY", c.apiKey)
	req.Header.Set("KC-API-SIGN", c.hmacBase64(strToSign))
	req.Header.Set("KC-API-TIMESTAMP", timestamp)
	req.Header.Set("KC-API-PASSPHRASE", c.hmacBase64(c.passphrase))
	req.Header.Set("KC-API-KEY-VERSION", "2")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAPIError("kucoin", 0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewAPIError("kucoin", resp.StatusCode, "reading response: "+err.Error())
	}

	var envelope kucoinEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return NewAPIError("kucoin", resp.StatusCode, "decoding response: "+err.Error())
	}

	if envelope.Code != kucoinOK {
		code := resp.StatusCode
		if parsed := int(parseFloat(envelope.Code)); parsed != 0 {
			code = parsed
		}
		msg := envelope.Msg
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return NewAPIError("kucoin", code, msg)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return NewAPIError("kucoin", 0, "decoding data: "+err.Error())
		}
	}
	return nil
}

func (c *KucoinClient) GetBalance(ctx context.Context) (map[string]models.Balance, error) {
	var data []struct {
		Currency  string `json:"currency"`
		Type      string `json:"type"`
		Balance   string `json:"balance"`
		Available string `json:"available"`
		Holds     string `json:"holds"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/accounts?type=trade", nil, &data); err != nil {
		return nil, err
	}

	balances := make(map[string]models.Balance, len(data))
	for _, a := range data {
		free := parseFloat(a.Available)
		locked := parseFloat(a.Holds)
		if free == 0 && locked == 0 {
			continue
		}
		balances[a.Currency] = models.Balance{Free: free, Locked: locked, Total: parseFloat(a.Balance)}
	}
	return balances, nil
}

func (c *KucoinClient) GetOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error) {
	var data struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	endpoint := "/api/v1/market/orderbook/level2_20?symbol=" + kucoinSymbol(symbol)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
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

func (c *KucoinClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	var data struct {
		Symbol     string `json:"symbol"`
		Buy        string `json:"buy"`
		Sell       string `json:"sell"`
		ChangeRate string `json:"changeRate"`
		High       string `json:"high"`
		Low        string `json:"low"`
		Vol        string `json:"vol"`
		Last       string `json:"last"`
	}
	endpoint := "/api/v1/market/stats?symbol=" + kucoinSymbol(symbol)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return nil, err
	}

	return &models.Ticker{
		Symbol:            symbol,
		LastPrice:         parseFloat(data.Last),
		BidPrice:          parseFloat(data.Buy),
		AskPrice:          parseFloat(data.Sell),
		HighPrice:         parseFloat(data.High),
		LowPrice:          parseFloat(data.Low),
		Volume:            parseFloat(data.Vol),
		PriceChangePct:    parseFloat(data.ChangeRate) * 100,
		HasPriceChangePct: data.ChangeRate != "",
	}, nil
}

func (c *KucoinClient) PlaceOrder(ctx context.Context, symbol string, side models.Side, orderType models.OrderType, quantity, price float64) (string, error) {
	if err := validateOrder(orderType, quantity, price); err != nil {
		return "", err
	}

	payload := map[string]string{
		"clientOid": uuid.NewString(),
		"symbol":    kucoinSymbol(symbol),
		"side":      strings.ToLower(string(side)),
		"type":      strings.ToLower(string(orderType)),
		"size":      formatFloat(quantity),
	}
	if orderType == models.OrderTypeLimit {
		payload["price"] = formatFloat(price)
	}

	var data struct {
		OrderID string `json:"orderId"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/orders", payload, &data); err != nil {
		return "", err
	}
	return data.OrderID, nil
}

func (c *KucoinClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/v1/orders/"+orderID, nil, nil)
}

func (c *KucoinClient) GetOrderStatus(ctx context.Context, symbol, orderID string) (*models.Order, error) {
	var data struct {
		ID          string `json:"id"`
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Type        string `json:"type"`
		Price       string `json:"price"`
		Size        string `json:"size"`
		DealSize    string `json:"dealSize"`
		IsActive    bool   `json:"isActive"`
		CancelExist bool   `json:"cancelExist"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/orders/"+orderID, nil, &data); err != nil {
		return nil, err
	}

	// KuCoin reports flags instead of a status string.
	status := models.OrderStatusPending
	switch {
	case data.CancelExist:
		status = models.OrderStatusCanceled
	case !data.IsActive && parseFloat(data.DealSize) >= parseFloat(data.Size):
		status = models.OrderStatusFilled
	case parseFloat(data.DealSize) > 0:
		status = models.OrderStatusPartiallyFilled
	}

	return &models.Order{
		Symbol:          symbol,
		Side:            models.Side(strings.ToUpper(data.Side)),
		Type:            models.OrderType(strings.ToUpper(data.Type)),
		Price:           parseFloat(data.Price),
		Quantity:        parseFloat(data.Size),
		ExchangeOrderID: orderID,
		Status:          status,
	}, nil
}

func (c *KucoinClient) GetTradingPairs(ctx context.Context) ([]models.PairInfo, error) {
	var data []struct {
		Symbol         string `json:"symbol"`
		BaseCurrency   string `json:"baseCurrency"`
		QuoteCurrency  string `json:"quoteCurrency"`
		BaseIncrement  string `json:"baseIncrement"`
		PriceIncrement string `json:"priceIncrement"`
		BaseMinSize    string `json:"baseMinSize"`
		BaseMaxSize    string `json:"baseMaxSize"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v2/symbols", nil, &data); err != nil {
		return nil, err
	}

	pairs := make([]models.PairInfo, 0, len(data))
	for _, s := range data {
		pairs = append(pairs, models.PairInfo{
			Symbol:            strings.ReplaceAll(s.Symbol, "-", "_"),
			BaseAsset:         s.BaseCurrency,
			QuoteAsset:        s.QuoteCurrency,
			PricePrecision:    decimalsOf(s.PriceIncrement),
			QuantityPrecision: decimalsOf(s.BaseIncrement),
			MinQuantity:       parseFloat(s.BaseMinSize),
			MaxQuantity:       parseFloat(s.BaseMaxSize),
		})
	}
	return pairs, nil
}

func (c *KucoinClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Client = (*KucoinClient)(nil)
