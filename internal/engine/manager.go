package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"volume-bot-go/internal/decision"
	"volume-bot-go/internal/exchange"
	"volume-bot-go/internal/models"
	"volume-bot-go/internal/store"
)

// Manager errors. store.ErrBotNotFound passes through for unknown ids.
var (
	ErrAlreadyRunning     = errors.New("bot is already running")
	ErrNotRunning         = errors.New("bot is not running")
	ErrInsufficientVolume = errors.New("bot has no remaining volume")
)

// handle tracks one live loop. done is closed by the loop goroutine when it
// has fully exited, including its final status write.
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures a Manager. Zero values get sensible defaults; tests
// override NewClient and NewRNG.
type Options struct {
	// NewClient builds the exchange client for a bot. Defaults to the
	// factory keyed on the bot's exchange code.
	NewClient func(bot *models.BotConfig) (exchange.Client, error)

	// NewRNG builds the price-draw source for one loop.
	NewRNG func() decision.RNG

	// StopTimeout bounds how long Stop waits for a loop to acknowledge.
	StopTimeout time.Duration

	Log *zap.SugaredLogger
}

// Manager owns the registry of running bots. All map access is serialized
// through mu; loops themselves run unlocked.
type Manager struct {
	repo        store.Repository
	newClient   func(bot *models.BotConfig) (exchange.Client, error)
	newRNG      func() decision.RNG
	stopTimeout time.Duration
	log         *zap.SugaredLogger

	mu      sync.Mutex
	running map[string]*handle
}

// NewManager builds a manager over the given repository.
func NewManager(repo store.Repository, opts Options) *Manager {
	if opts.NewClient == nil {
		opts.NewClient = func(bot *models.BotConfig) (exchange.Client, error) {
			return exchange.NewClient(bot)
		}
	}
	if opts.NewRNG == nil {
		opts.NewRNG = func() decision.RNG {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = defaultLog()
	}
	return &Manager{
		repo:        repo,
		newClient:   opts.NewClient,
		newRNG:      opts.NewRNG,
		stopTimeout: opts.StopTimeout,
		log:         opts.Log,
		running:     make(map[string]*handle),
	}
}

// Start spawns the trading loop for a bot. Exactly one caller wins a
// concurrent race; the rest get ErrAlreadyRunning. Start returns as soon as
// the loop is spawned, it does not wait for the first cycle.
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.running[id]; ok {
		return ErrAlreadyRunning
	}

	bot, err := m.repo.GetBot(id)
	if err != nil {
		return err
	}
	if bot.RemainingVolume <= 0 {
		return ErrInsufficientVolume
	}

	client, err := m.newClient(bot)
	if err != nil {
		return err
	}

	if _, err := m.repo.UpdateBot(id, func(b *models.BotConfig) error {
		b.Status = models.StatusRunning
		b.ErrorMessage = ""
		return nil
	}); err != nil {
		client.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, done: make(chan struct{})}
	m.running[id] = h

	l := &loop{
		botID:  id,
		repo:   m.repo,
		client: client,
		rng:    m.newRNG(),
		log:    m.log,
	}
	go func() {
		defer close(h.done)
		defer m.release(id, h)
		l.run(ctx)
	}()

	m.log.Infow("bot started", "bot_id", id, "symbol", bot.Symbol, "exchange", bot.Exchange)
	return nil
}

// release drops the handle once its loop is done with it. The identity check
// keeps a stale release from removing a successor loop's handle.
func (m *Manager) release(id string, h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[id] == h {
		delete(m.running, id)
	}
}

// Stop cancels a running loop and waits up to the stop timeout for it to
// acknowledge. The handle stays registered until the loop has drained, so a
// concurrent Start keeps getting ErrAlreadyRunning instead of spawning a
// second loop for the same id. On timeout the status is forced to stopped;
// Stop reports success either way.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	h, ok := m.running[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	h.cancel()
	select {
	case <-h.done:
		m.log.Infow("bot stopped", "bot_id", id)
	case <-time.After(m.stopTimeout):
		m.log.Warnw("stop timed out, forcing status", "bot_id", id, "timeout", m.stopTimeout)
		m.forceStopped(id)
	}
	m.release(id, h)
	return nil
}

// forceStopped persists the stopped status when a loop failed to do so
// itself within the timeout.
func (m *Manager) forceStopped(id string) {
	_, err := m.repo.UpdateBot(id, func(b *models.BotConfig) error {
		if b.Status == models.StatusRunning {
			b.Status = models.StatusStopped
		}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrBotNotFound) {
		m.log.Errorw("forcing stopped status", "bot_id", id, "error", err)
	}
}

// IsRunning reports whether a loop is registered for the id.
func (m *Manager) IsRunning(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[id]
	return ok
}

// RunningCount returns the number of live loops.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Reconcile flags zombie configurations: persisted as running but with no
// live loop in the registry. Those are moved to error status so operators
// see they died without a clean shutdown.
func (m *Manager) Reconcile() error {
	bots, err := m.repo.ListBots()
	if err != nil {
		return fmt.Errorf("listing bots: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bot := range bots {
		if bot.Status != models.StatusRunning {
			continue
		}
		if _, ok := m.running[bot.ID]; ok {
			continue
		}
		id := bot.ID
		if _, err := m.repo.UpdateBot(id, func(b *models.BotConfig) error {
			if b.Status != models.StatusRunning {
				return nil
			}
			b.Status = models.StatusError
			b.ErrorMessage = "found running in storage with no live loop"
			return nil
		}); err != nil {
			m.log.Errorw("reconciling zombie bot", "bot_id", id, "error", err)
			continue
		}
		m.log.Warnw("zombie bot moved to error status", "bot_id", id)
	}
	return nil
}

// Shutdown stops every running bot. Each loop gets the stop timeout to
// acknowledge and, as with Stop, stays registered until it has drained.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	handles := make(map[string]*handle, len(m.running))
	for id, h := range m.running {
		handles[id] = h
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, h := range handles {
		wg.Add(1)
		go func(id string, h *handle) {
			defer wg.Done()
			h.cancel()
			select {
			case <-h.done:
			case <-time.After(m.stopTimeout):
				m.forceStopped(id)
			}
			m.release(id, h)
		}(id, h)
	}
	wg.Wait()
	m.log.Infow("all bots stopped", "count", len(handles))
}

// Reset returns a terminal or stopped bot to idle with its full volume
// restored. Running bots must be stopped first.
func (m *Manager) Reset(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.running[id]; ok {
		return ErrAlreadyRunning
	}
	_, err := m.repo.UpdateBot(id, func(b *models.BotConfig) error {
		b.Status = models.StatusIdle
		b.ErrorMessage = ""
		b.RemainingVolume = b.TotalOrderVolume
		b.CompletedVolume = 0
		b.TotalOrders = 0
		b.SuccessfulOrders = 0
		return nil
	})
	return err
}
