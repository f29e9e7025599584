package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volume-bot-go/internal/models"
)

func makeBook(bids, asks []models.PriceLevel) *models.OrderBook {
	return &models.OrderBook{Symbol: "BTC_USDT", Bids: bids, Asks: asks}
}

func TestSpreadMetrics(t *testing.T) {
	book := makeBook(
		[]models.PriceLevel{{Price: 100.0, Quantity: 2}, {Price: 99.5, Quantity: 1}},
		[]models.PriceLevel{{Price: 101.0, Quantity: 1}, {Price: 101.5, Quantity: 3}},
	)

	m, err := Spread(book)
	require.NoError(t, err)

	assert.Equal(t, 100.0, m.BestBid)
	assert.Equal(t, 101.0, m.BestAsk)
	assert.InDelta(t, 1.0, m.Spread, 1e-9)
	assert.InDelta(t, 100.5, m.MidPrice, 1e-9)
	assert.InDelta(t, 1.0/100.5*100, m.SpreadPct, 1e-9)
}

func TestSpreadInsufficientDepth(t *testing.T) {
	cases := map[string]*models.OrderBook{
		"nil book":   nil,
		"empty book": makeBook(nil, nil),
		"no bids":    makeBook(nil, []models.PriceLevel{{Price: 101, Quantity: 1}}),
		"no asks":    makeBook([]models.PriceLevel{{Price: 100, Quantity: 1}}, nil),
	}
	for name, book := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Spread(book)
			assert.ErrorIs(t, err, ErrInsufficientDepth)
		})
	}
}

func TestDepthSentiment(t *testing.T) {
	bullish := makeBook(
		[]models.PriceLevel{{Price: 100, Quantity: 10}, {Price: 99, Quantity: 5}},
		[]models.PriceLevel{{Price: 101, Quantity: 3}},
	)
	assert.Equal(t, Bullish, DepthSentiment(bullish))

	bearish := makeBook(
		[]models.PriceLevel{{Price: 100, Quantity: 2}},
		[]models.PriceLevel{{Price: 101, Quantity: 8}},
	)
	assert.Equal(t, Bearish, DepthSentiment(bearish))

	// Equal depth reads bearish.
	tied := makeBook(
		[]models.PriceLevel{{Price: 100, Quantity: 5}},
		[]models.PriceLevel{{Price: 101, Quantity: 5}},
	)
	assert.Equal(t, Bearish, DepthSentiment(tied))
}

func TestTrendSentiment(t *testing.T) {
	bidHeavy := makeBook(
		[]models.PriceLevel{{Price: 100, Quantity: 13}},
		[]models.PriceLevel{{Price: 101, Quantity: 10}},
	)
	askHeavy := makeBook(
		[]models.PriceLevel{{Price: 100, Quantity: 7}},
		[]models.PriceLevel{{Price: 101, Quantity: 10}},
	)

	up := &models.Ticker{PriceChangePct: 2.5, HasPriceChangePct: true}
	down := &models.Ticker{PriceChangePct: -1.5, HasPriceChangePct: true}

	assert.Equal(t, Bullish, TrendSentiment(bidHeavy, up))
	assert.Equal(t, Bearish, TrendSentiment(askHeavy, down))

	// Ratio and change disagreeing reads neutral.
	assert.Equal(t, Neutral, TrendSentiment(bidHeavy, down))
	assert.Equal(t, Neutral, TrendSentiment(askHeavy, up))

	// A ratio between the thresholds reads neutral regardless of change.
	balanced := makeBook(
		[]models.PriceLevel{{Price: 100, Quantity: 10}},
		[]models.PriceLevel{{Price: 101, Quantity: 10}},
	)
	assert.Equal(t, Neutral, TrendSentiment(balanced, up))
	assert.Equal(t, Neutral, TrendSentiment(balanced, down))
}

func TestTrendSentimentWithoutTicker(t *testing.T) {
	book := makeBook(
		[]models.PriceLevel{{Price: 100, Quantity: 20}},
		[]models.PriceLevel{{Price: 101, Quantity: 1}},
	)
	assert.Equal(t, Neutral, TrendSentiment(book, nil))
	assert.Equal(t, Neutral, TrendSentiment(book, &models.Ticker{PriceChangePct: 5}))
}
