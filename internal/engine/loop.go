package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"volume-bot-go/internal/decision"
	"volume-bot-go/internal/exchange"
	"volume-bot-go/internal/logger"
	"volume-bot-go/internal/market"
	"volume-bot-go/internal/models"
	"volume-bot-go/internal/monitoring"
	"volume-bot-go/internal/store"
)

// requestTimeout bounds every exchange call made inside a cycle.
const requestTimeout = 10 * time.Second

// loop drives one running bot. It owns the exchange client for the bot's
// lifetime and is the only writer of that bot's status while running.
type loop struct {
	botID  string
	repo   store.Repository
	client exchange.Client
	rng    decision.RNG
	log    *zap.SugaredLogger
}

// run executes trading cycles until the volume is exhausted, the context is
// cancelled, the config disappears, or a fatal fault occurs. The final
// status is persisted before returning.
func (l *loop) run(ctx context.Context) {
	defer l.client.Close()

	monitoring.ActiveBots.Inc()
	defer monitoring.ActiveBots.Dec()

	for {
		if ctx.Err() != nil {
			l.persistStopped()
			return
		}

		// The config is re-read every cycle so external edits (volume
		// top-ups, interval changes) take effect without a restart.
		bot, err := l.repo.GetBot(l.botID)
		if errors.Is(err, store.ErrBotNotFound) {
			l.log.Infow("configuration removed, exiting", "bot_id", l.botID)
			return
		}
		if err != nil {
			l.fail(fmt.Errorf("reloading configuration: %w", err))
			return
		}
		if bot.Status != models.StatusRunning {
			l.log.Infow("status changed externally, exiting", "bot_id", l.botID, "status", bot.Status)
			return
		}
		if bot.RemainingVolume <= 0 {
			l.complete(bot)
			return
		}

		if err := l.cycle(ctx, bot); err != nil {
			if ctx.Err() != nil {
				l.persistStopped()
				return
			}
			if transient(err) {
				l.warn(bot, err)
			} else {
				l.fail(err)
				return
			}
		}

		if !l.sleep(ctx, bot.Interval()) {
			l.persistStopped()
			return
		}
	}
}

// cycle runs one poll-decide-trade pass. Transient errors are returned for
// the caller to log and retry next cycle.
func (l *loop) cycle(ctx context.Context, bot *models.BotConfig) error {
	monitoring.CyclesTotal.WithLabelValues(bot.Symbol).Inc()

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	// Balance is informational: the exchange rejects underfunded orders
	// on its own, so a fetch failure here is not worth skipping the cycle.
	if balances, err := l.client.GetBalance(reqCtx); err != nil {
		l.log.Warnw("balance fetch failed", "bot_id", bot.ID, "error", err)
	} else if quote := models.QuoteAsset(bot.Symbol); quote != "" {
		l.log.Debugw("balance", "bot_id", bot.ID, "asset", quote, "free", balances[quote].Free)
	}

	book, err := l.client.GetOrderBook(reqCtx, bot.Symbol)
	if err != nil {
		return fmt.Errorf("fetching order book: %w", err)
	}

	metrics, err := market.Spread(book)
	if err != nil {
		return err
	}
	monitoring.SpreadPct.WithLabelValues(bot.Symbol).Set(metrics.SpreadPct)

	// The ticker refines sentiment where the venue provides one; depth
	// alone decides otherwise.
	sentiment := market.DepthSentiment(book)
	if ticker, err := l.client.GetTicker(reqCtx, bot.Symbol); err != nil {
		l.log.Debugw("ticker unavailable, using depth sentiment", "bot_id", bot.ID, "error", err)
	} else if trend := market.TrendSentiment(book, ticker); trend != market.Neutral {
		sentiment = trend
	}

	plan, skip := decision.Build(decision.Params{
		Metrics:          metrics,
		Sentiment:        sentiment,
		Tolerance:        bot.Tolerance,
		PerOrderVolume:   bot.PerOrderVolume,
		RemainingVolume:  bot.RemainingVolume,
		PriceDecimals:    bot.PriceDecimals,
		QuantityDecimals: bot.QuantityDecimals,
	}, l.rng)
	if plan == nil {
		l.log.Debugw("cycle skipped", "bot_id", bot.ID, "reason", skip,
			"spread_pct", metrics.SpreadPct, "tolerance", bot.Tolerance)
		l.touch(bot.ID)
		return nil
	}

	l.log.Infow("placing order pair", "bot_id", bot.ID, "symbol", bot.Symbol,
		"sentiment", sentiment, "sell_price", plan.SellPrice, "sell_qty", plan.SellQuantity,
		"buy_price", plan.BuyPrice, "buy_qty", plan.BuyQuantity)

	l.placeLeg(ctx, bot, models.Sell, plan.SellPrice, plan.SellQuantity)
	if ctx.Err() == nil && plan.BuyQuantity > 0 {
		l.placeLeg(ctx, bot, models.Buy, plan.BuyPrice, plan.BuyQuantity)
	}

	l.touch(bot.ID)
	return nil
}

// placeLeg submits one leg and persists its outcome. A failed leg is logged
// and counted but never aborts the cycle; the other leg stands.
func (l *loop) placeLeg(ctx context.Context, bot *models.BotConfig, side models.Side, price, qty float64) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	orderID, err := l.client.PlaceOrder(reqCtx, bot.Symbol, side, models.OrderTypeLimit, qty, price)

	record := &models.Order{
		BotID:    bot.ID,
		Symbol:   bot.Symbol,
		Side:     side,
		Type:     models.OrderTypeLimit,
		Price:    price,
		Quantity: qty,
	}

	if err != nil {
		record.Status = models.OrderStatusRejected
		record.ErrorMessage = err.Error()
		monitoring.OrdersFailed.WithLabelValues(bot.Symbol, string(side)).Inc()

		l.botLog(bot.ID, "ERROR", fmt.Sprintf("%s order for %s failed: %v", side, bot.Symbol, err))
		if storeErr := l.repo.AppendOrder(record); storeErr != nil {
			l.log.Errorw("recording failed order", "bot_id", bot.ID, "error", storeErr)
		}
		if _, updErr := l.repo.UpdateBot(bot.ID, func(b *models.BotConfig) error {
			b.TotalOrders++
			return nil
		}); updErr != nil {
			l.log.Errorw("updating counters", "bot_id", bot.ID, "error", updErr)
		}
		return
	}

	record.ExchangeOrderID = orderID
	record.Status = models.OrderStatusPending
	monitoring.OrdersPlaced.WithLabelValues(bot.Symbol, string(side)).Inc()

	if storeErr := l.repo.AppendOrder(record); storeErr != nil {
		l.log.Errorw("recording order", "bot_id", bot.ID, "error", storeErr)
	}

	updated, updErr := l.repo.UpdateBot(bot.ID, func(b *models.BotConfig) error {
		b.RemainingVolume -= qty
		if b.RemainingVolume < 0 {
			b.RemainingVolume = 0
		}
		b.CompletedVolume += qty
		b.TotalOrders++
		b.SuccessfulOrders++
		return nil
	})
	if updErr != nil {
		l.log.Errorw("updating counters", "bot_id", bot.ID, "error", updErr)
		return
	}
	monitoring.RemainingVolume.WithLabelValues(bot.ID, bot.Symbol).Set(updated.RemainingVolume)
	bot.RemainingVolume = updated.RemainingVolume

	l.botLog(bot.ID, "INFO", fmt.Sprintf("%s %s %s qty=%s price=%s order=%s",
		side, models.OrderTypeLimit, bot.Symbol, trim(qty), trim(price), orderID))
}

// sleep waits out the polling interval, returning false when the context is
// cancelled first.
func (l *loop) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// transient reports whether the loop should retry next cycle rather than die.
func transient(err error) bool {
	return exchange.IsAPIError(err) || errors.Is(err, market.ErrInsufficientDepth)
}

func (l *loop) touch(botID string) {
	if _, err := l.repo.UpdateBot(botID, func(b *models.BotConfig) error {
		b.LastRun = time.Now()
		return nil
	}); err != nil {
		l.log.Errorw("updating last run", "bot_id", botID, "error", err)
	}
}

func (l *loop) warn(bot *models.BotConfig, err error) {
	l.log.Warnw("cycle failed, will retry", "bot_id", bot.ID, "error", err)
	l.botLog(bot.ID, "WARNING", err.Error())
}

func (l *loop) complete(bot *models.BotConfig) {
	l.log.Infow("volume target reached", "bot_id", bot.ID,
		"completed_volume", bot.CompletedVolume, "total_orders", bot.TotalOrders)
	l.botLog(bot.ID, "INFO", "total order volume reached, bot completed")
	l.setStatus(models.StatusCompleted, "")
}

func (l *loop) fail(err error) {
	l.log.Errorw("bot stopped on fault", "bot_id", l.botID, "error", err)
	l.botLog(l.botID, "CRITICAL", err.Error())
	l.setStatus(models.StatusError, err.Error())
}

func (l *loop) persistStopped() {
	l.log.Infow("stop acknowledged", "bot_id", l.botID)
	l.setStatus(models.StatusStopped, "")
}

// setStatus writes a terminal or stopped status. Statuses set externally
// (stopped via the manager's force path) are left alone.
func (l *loop) setStatus(status models.BotStatus, errMsg string) {
	_, err := l.repo.UpdateBot(l.botID, func(b *models.BotConfig) error {
		if b.Status != models.StatusRunning {
			return nil
		}
		b.Status = status
		b.ErrorMessage = errMsg
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrBotNotFound) {
		l.log.Errorw("persisting status", "bot_id", l.botID, "status", status, "error", err)
	}
}

func (l *loop) botLog(botID, level, message string) {
	entry := &models.BotLog{BotID: botID, Level: level, Message: message}
	if err := l.repo.AppendLog(entry); err != nil {
		l.log.Errorw("appending bot log", "bot_id", botID, "error", err)
	}
}

func trim(f float64) string {
	return fmt.Sprintf("%g", f)
}

// defaultLog is the logger used when a loop is built without one.
func defaultLog() *zap.SugaredLogger {
	return logger.S()
}
