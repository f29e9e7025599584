// Package decision turns spread metrics and sentiment into a concrete order
// plan: whether to trade this cycle, at what price, and in what size.
package decision

import (
	"github.com/shopspring/decimal"

	"volume-bot-go/internal/market"
)

// Weight ranges for the in-spread price draw, per sentiment. A bullish read
// skews the fill price toward the ask, a bearish one toward the bid.
const (
	bullishLow, bullishHigh = 0.6, 0.9
	bearishLow, bearishHigh = 0.1, 0.4
)

// buyDiscount shifts the paired buy leg just under the sell price so the
// two legs cross.
const buyDiscount = 0.999

// RNG is the source of the price-placement draw. *rand.Rand satisfies it.
type RNG interface {
	Float64() float64
}

// Params carries everything a single cycle's decision depends on.
type Params struct {
	Metrics          *market.Metrics
	Sentiment        market.Sentiment
	Tolerance        float64 // minimum spread pct worth trading
	PerOrderVolume   float64
	RemainingVolume  float64
	PriceDecimals    int
	QuantityDecimals int
}

// Plan is the paired-order plan for one cycle. BuyQuantity may be smaller
// than SellQuantity (or zero) when remaining volume cannot cover a full
// second leg.
type Plan struct {
	SellPrice    float64
	SellQuantity float64
	BuyPrice     float64
	BuyQuantity  float64
}

// TotalQuantity is the base-asset volume the plan will consume if both legs
// succeed.
func (p *Plan) TotalQuantity() float64 {
	return p.SellQuantity + p.BuyQuantity
}

// Truncate rounds toward zero to the given number of decimal places.
func Truncate(v float64, decimals int) float64 {
	f, _ := decimal.NewFromFloat(v).Truncate(int32(decimals)).Float64()
	return f
}

// Build computes the order plan for one cycle. It returns (nil, reason) when
// the cycle should be skipped: spread within tolerance, or no tradable
// quantity left after truncation.
func Build(p Params, rng RNG) (*Plan, string) {
	m := p.Metrics
	if m.SpreadPct <= p.Tolerance {
		return nil, "spread within tolerance"
	}

	w := drawWeight(p.Sentiment, rng)
	price := Truncate(m.BestBid+m.Spread*w, p.PriceDecimals)
	// Truncation can push the draw below the bid; clamping keeps the
	// order inside the book.
	if price < m.BestBid {
		price = m.BestBid
	}
	if price > m.BestAsk {
		price = m.BestAsk
	}

	sellQty := Truncate(minFloat(p.PerOrderVolume, p.RemainingVolume), p.QuantityDecimals)
	if sellQty <= 0 {
		return nil, "no tradable quantity"
	}

	plan := &Plan{
		SellPrice:    price,
		SellQuantity: sellQty,
		BuyPrice:     Truncate(price*buyDiscount, p.PriceDecimals),
	}
	if plan.BuyPrice <= 0 {
		plan.BuyPrice = price
	}

	// The buy leg mirrors the sell leg but never commits more than the
	// volume left after the sell leg.
	left := p.RemainingVolume - sellQty
	plan.BuyQuantity = Truncate(minFloat(sellQty, left), p.QuantityDecimals)
	if plan.BuyQuantity < 0 {
		plan.BuyQuantity = 0
	}

	return plan, ""
}

func drawWeight(sentiment market.Sentiment, rng RNG) float64 {
	u := rng.Float64()
	switch sentiment {
	case market.Bullish:
		return bullishLow + u*(bullishHigh-bullishLow)
	case market.Bearish:
		return bearishLow + u*(bearishHigh-bearishLow)
	default:
		return u
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
