package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volume-bot-go/internal/models"
)

func TestFactory(t *testing.T) {
	for _, code := range []string{"BINANCE", "binance", "PIONEX", "KUCOIN", "MOCK", "mock"} {
		t.Run(code, func(t *testing.T) {
			client, err := NewClient(&models.BotConfig{Exchange: code, APIKey: "k", SecretKey: "s"})
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.NoError(t, client.Close())
		})
	}

	_, err := NewClient(&models.BotConfig{Exchange: "HUOBI"})
	assert.ErrorIs(t, err, ErrUnsupportedExchange)
}

func TestFactoryRegister(t *testing.T) {
	Register("FAKEX", func(creds Credentials) (Client, error) {
		return NewMockClient(1), nil
	})
	client, err := NewClient(&models.BotConfig{Exchange: "fakex"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

// LIMIT orders without a price and non-positive quantities must fail before
// any network traffic.
func TestOrderValidation(t *testing.T) {
	clients := map[string]Client{
		"binance": NewBinanceClient("k", "s"),
		"pionex":  NewPionexClient("k", "s"),
		"kucoin":  NewKucoinClient("k", "s", "p"),
		"mock":    NewMockClient(1),
	}
	ctx := context.Background()
	for name, client := range clients {
		t.Run(name, func(t *testing.T) {
			_, err := client.PlaceOrder(ctx, "BTC_USDT", models.Sell, models.OrderTypeLimit, 1, 0)
			assert.ErrorIs(t, err, ErrMissingPrice)

			_, err = client.PlaceOrder(ctx, "BTC_USDT", models.Buy, models.OrderTypeLimit, 0, 100)
			assert.ErrorIs(t, err, ErrInvalidQuantity)
		})
	}
}

func TestMockClientDeterministicUnderSeed(t *testing.T) {
	ctx := context.Background()
	a := NewMockClient(42)
	b := NewMockClient(42)

	bookA, err := a.GetOrderBook(ctx, "BTC_USDT")
	require.NoError(t, err)
	bookB, err := b.GetOrderBook(ctx, "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, bookA, bookB)

	// Bids below asks, both five levels deep.
	require.Len(t, bookA.Bids, 5)
	require.Len(t, bookA.Asks, 5)
	assert.Less(t, bookA.Bids[0].Price, bookA.Asks[0].Price)
}

func TestMockClientOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMockClient(7)

	id, err := m.PlaceOrder(ctx, "BTC_USDT", models.Sell, models.OrderTypeLimit, 0.5, 100.12)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	order, err := m.GetOrderStatus(ctx, "BTC_USDT", id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, order.Status)
	assert.Equal(t, 0.5, order.Quantity)

	_, err = m.GetOrderStatus(ctx, "BTC_USDT", "nope")
	assert.True(t, IsAPIError(err))

	assert.Len(t, m.PlacedOrders(), 1)
}

// The pionex transport must sign timestamp+METHOD+path+body with the secret
// and normalize the response envelope.
func TestPionexSigningAndEnvelope(t *testing.T) {
	const secret = "test-secret"
	var gotAuth struct {
		key, ts, sig, path string
		body               []byte
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.key = r.Header.Get("X-API-KEY")
		gotAuth.ts = r.Header.Get("X-TIMESTAMP")
		gotAuth.sig = r.Header.Get("X-SIGNATURE")
		gotAuth.path = r.URL.RequestURI()
		gotAuth.body, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": true,
			"code":   0,
			"data":   map[string]interface{}{"orderId": 12345},
		})
	}))
	defer server.Close()

	client := NewPionexClient("test-key", secret)
	client.SetBaseURL(server.URL)

	orderID, err := client.PlaceOrder(context.Background(), "BTC_USDT", models.Buy, models.OrderTypeLimit, 0.5, 100.12)
	require.NoError(t, err)
	assert.Equal(t, "12345", orderID)

	assert.Equal(t, "test-key", gotAuth.key)
	require.NotEmpty(t, gotAuth.ts)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gotAuth.ts))
	mac.Write([]byte(http.MethodPost))
	mac.Write([]byte(gotAuth.path))
	mac.Write(gotAuth.body)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotAuth.sig)
}

func TestPionexErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":  false,
			"code":    10007,
			"message": "invalid symbol",
		})
	}))
	defer server.Close()

	client := NewPionexClient("k", "s")
	client.SetBaseURL(server.URL)

	_, err := client.GetOrderBook(context.Background(), "NOPE_USDT")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10007, apiErr.Code)
	assert.Equal(t, "invalid symbol", apiErr.Message)
}

// KuCoin signs with base64 HMAC and sends the encrypted passphrase header.
func TestKucoinHeaders(t *testing.T) {
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": "200000",
			"data": map[string]interface{}{"orderId": "abc123"},
		})
	}))
	defer server.Close()

	client := NewKucoinClient("key", "secret", "passphrase")
	client.SetBaseURL(server.URL)

	orderID, err := client.PlaceOrder(context.Background(), "BTC_USDT", models.Sell, models.OrderTypeLimit, 1, 99.5)
	require.NoError(t, err)
	assert.Equal(t, "abc123", orderID)

	assert.Equal(t, "key", headers.Get("KC-API-KEY"))
	assert.Equal(t, "2", headers.Get("KC-API-KEY-VERSION"))
	assert.NotEmpty(t, headers.Get("KC-API-SIGN"))
	assert.NotEmpty(t, headers.Get("KC-API-TIMESTAMP"))
	// The passphrase header is the HMAC of the passphrase, never the
	// plaintext.
	assert.NotEqual(t, "passphrase", headers.Get("KC-API-PASSPHRASE"))
	assert.NotEmpty(t, headers.Get("KC-API-PASSPHRASE"))
}

func TestKucoinErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"code": "400100",
			"msg":  "order size below minimum",
		})
	}))
	defer server.Close()

	client := NewKucoinClient("k", "s", "p")
	client.SetBaseURL(server.URL)

	_, err := client.PlaceOrder(context.Background(), "BTC_USDT", models.Buy, models.OrderTypeLimit, 0.001, 100)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400100, apiErr.Code)
	assert.Equal(t, "order size below minimum", apiErr.Message)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, models.OrderStatusPending, normalizeStatus("NEW"))
	assert.Equal(t, models.OrderStatusFilled, normalizeStatus("FILLED"))
	assert.Equal(t, models.OrderStatusPartiallyFilled, normalizeStatus("PARTIALLY_FILLED"))
	assert.Equal(t, models.OrderStatusCanceled, normalizeStatus("CANCELLED"))
	assert.Equal(t, models.OrderStatusRejected, normalizeStatus("REJECTED"))
	assert.Equal(t, models.OrderStatusPending, normalizeStatus("SOMETHING_ELSE"))
}

func TestSymbolHelpers(t *testing.T) {
	assert.Equal(t, "BTCUSDT", binanceSymbol("BTC_USDT"))
	assert.Equal(t, "BTC-USDT", kucoinSymbol("BTC_USDT"))
	assert.Equal(t, 3, decimalsOf("0.00100000"))
	assert.Equal(t, 0, decimalsOf("1"))
}
