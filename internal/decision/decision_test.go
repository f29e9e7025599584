package decision

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volume-bot-go/internal/market"
)

// fixedRNG always draws the same value.
type fixedRNG struct{ v float64 }

func (f fixedRNG) Float64() float64 { return f.v }

func baseParams() Params {
	return Params{
		Metrics: &market.Metrics{
			BestBid:   100.00,
			BestAsk:   100.50,
			Spread:    0.50,
			MidPrice:  100.25,
			SpreadPct: 0.50 / 100.25 * 100,
		},
		Sentiment:        market.Neutral,
		Tolerance:        0.05,
		PerOrderVolume:   1.5,
		RemainingVolume:  10,
		PriceDecimals:    2,
		QuantityDecimals: 3,
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, 1.234, Truncate(1.23499, 3))
	assert.Equal(t, 1.239, Truncate(1.2399999, 3))
	assert.Equal(t, 100.0, Truncate(100.0, 2))
	assert.Equal(t, 0.0, Truncate(0.0009, 3))
}

func TestBuildSkipsWithinTolerance(t *testing.T) {
	p := baseParams()
	p.Tolerance = 1.0 // spread pct is ~0.499

	plan, reason := Build(p, fixedRNG{0.5})
	assert.Nil(t, plan)
	assert.Equal(t, "spread within tolerance", reason)
}

func TestBuildSkipsWithoutQuantity(t *testing.T) {
	p := baseParams()
	p.RemainingVolume = 0.0004 // truncates to zero at 3 decimals

	plan, reason := Build(p, fixedRNG{0.5})
	assert.Nil(t, plan)
	assert.Equal(t, "no tradable quantity", reason)
}

// The computed price must stay inside [bestBid, bestAsk] for any draw,
// including after truncation.
func TestBuildPriceWithinBookForAnySeed(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		for _, sentiment := range []market.Sentiment{market.Neutral, market.Bullish, market.Bearish} {
			p := baseParams()
			p.Sentiment = sentiment

			plan, _ := Build(p, rng)
			require.NotNil(t, plan)
			assert.GreaterOrEqual(t, plan.SellPrice, p.Metrics.BestBid, "seed %d %s", seed, sentiment)
			assert.LessOrEqual(t, plan.SellPrice, p.Metrics.BestAsk, "seed %d %s", seed, sentiment)
			assert.LessOrEqual(t, plan.BuyPrice, plan.SellPrice)
			assert.Greater(t, plan.BuyPrice, 0.0)
		}
	}
}

func TestBuildSentimentSkew(t *testing.T) {
	p := baseParams()

	// A mid draw under bullish weighting lands in the upper part of the
	// spread, under bearish in the lower part.
	p.Sentiment = market.Bullish
	bull, _ := Build(p, fixedRNG{0.5})
	require.NotNil(t, bull)
	// w = 0.6 + 0.5*0.3 = 0.75 -> 100.375 truncated to 100.37
	assert.Equal(t, 100.37, bull.SellPrice)

	p.Sentiment = market.Bearish
	bear, _ := Build(p, fixedRNG{0.5})
	require.NotNil(t, bear)
	// w = 0.1 + 0.5*0.3 = 0.25 -> 100.125 truncated to 100.12
	assert.Equal(t, 100.12, bear.SellPrice)

	assert.Less(t, bear.SellPrice, bull.SellPrice)
}

func TestBuildQuantityIsMinOfPerOrderAndRemaining(t *testing.T) {
	p := baseParams()
	p.PerOrderVolume = 2
	p.RemainingVolume = 0.75

	plan, _ := Build(p, fixedRNG{0.5})
	require.NotNil(t, plan)
	assert.Equal(t, 0.75, plan.SellQuantity)
}

// With a full tank the buy leg mirrors the sell leg.
func TestBuildPairedLegs(t *testing.T) {
	p := baseParams()

	plan, _ := Build(p, fixedRNG{0.5})
	require.NotNil(t, plan)
	assert.Equal(t, plan.SellQuantity, plan.BuyQuantity)
	assert.Equal(t, Truncate(plan.SellPrice*0.999, p.PriceDecimals), plan.BuyPrice)
}

// When remaining volume cannot cover both legs, the buy leg shrinks (or
// disappears) rather than overcommitting.
func TestBuildBuyLegNeverOvercommits(t *testing.T) {
	p := baseParams()
	p.PerOrderVolume = 1.5
	p.RemainingVolume = 2 // sell takes 1.5, only 0.5 left

	plan, _ := Build(p, fixedRNG{0.5})
	require.NotNil(t, plan)
	assert.Equal(t, 1.5, plan.SellQuantity)
	assert.Equal(t, 0.5, plan.BuyQuantity)
	assert.LessOrEqual(t, plan.TotalQuantity(), p.RemainingVolume)

	p.RemainingVolume = 1.5 // nothing left after the sell leg
	plan, _ = Build(p, fixedRNG{0.5})
	require.NotNil(t, plan)
	assert.Equal(t, 1.5, plan.SellQuantity)
	assert.Equal(t, 0.0, plan.BuyQuantity)
}
