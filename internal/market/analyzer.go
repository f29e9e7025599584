// Package market computes spread metrics and sentiment from order book
// snapshots. Everything here is a pure function so the trading engine can be
// tested against fixed books.
package market

import (
	"errors"

	"volume-bot-go/internal/models"
)

// ErrInsufficientDepth is returned when a book is missing one or both sides
// and no spread can be computed.
var ErrInsufficientDepth = errors.New("order book has insufficient depth")

// Sentiment is the market direction read from depth or trend data.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// Volume-ratio thresholds for trend sentiment.
const (
	bullishVolumeRatio = 1.2
	bearishVolumeRatio = 0.8
)

// Metrics holds the spread figures derived from the top of the book.
type Metrics struct {
	BestBid   float64
	BestAsk   float64
	Spread    float64
	MidPrice  float64
	SpreadPct float64
}

// Spread derives the top-of-book metrics from a snapshot. Both sides must be
// non-empty.
func Spread(book *models.OrderBook) (*Metrics, error) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, ErrInsufficientDepth
	}

	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price
	mid := (bestBid + bestAsk) / 2

	m := &Metrics{
		BestBid:  bestBid,
		BestAsk:  bestAsk,
		Spread:   bestAsk - bestBid,
		MidPrice: mid,
	}
	if mid > 0 {
		m.SpreadPct = m.Spread / mid * 100
	}
	return m, nil
}

// DepthSentiment compares total quoted bid quantity against ask quantity.
// More bids than asks reads bullish; ties read bearish.
func DepthSentiment(book *models.OrderBook) Sentiment {
	var bidQty, askQty float64
	for _, level := range book.Bids {
		bidQty += level.Quantity
	}
	for _, level := range book.Asks {
		askQty += level.Quantity
	}
	if bidQty > askQty {
		return Bullish
	}
	return Bearish
}

// TrendSentiment reads direction from the bid/ask volume ratio combined with
// the 24h price change. It falls back to neutral when neither threshold
// fires or when the ticker carries no change figure.
func TrendSentiment(book *models.OrderBook, ticker *models.Ticker) Sentiment {
	if ticker == nil || !ticker.HasPriceChangePct {
		return Neutral
	}

	var bidQty, askQty float64
	for _, level := range book.Bids {
		bidQty += level.Quantity
	}
	for _, level := range book.Asks {
		askQty += level.Quantity
	}
	if askQty == 0 {
		return Neutral
	}

	ratio := bidQty / askQty
	switch {
	case ratio > bullishVolumeRatio && ticker.PriceChangePct > 0:
		return Bullish
	case ratio < bearishVolumeRatio && ticker.PriceChangePct < 0:
		return Bearish
	default:
		return Neutral
	}
}
