package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"volume-bot-go/internal/models"
)

// memoryStore is a map-backed Repository with the same atomicity contract
// as the badger implementation. Used in tests.
type memoryStore struct {
	mu     sync.Mutex
	bots   map[string]models.BotConfig
	orders map[string][]models.Order
	logs   map[string][]models.BotLog
}

// NewMemoryStore builds an empty in-memory repository.
func NewMemoryStore() Repository {
	return &memoryStore{
		bots:   make(map[string]models.BotConfig),
		orders: make(map[string][]models.Order),
		logs:   make(map[string][]models.BotLog),
	}
}

func (s *memoryStore) SaveBot(bot *models.BotConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot.UpdatedAt = time.Now()
	s.bots[bot.ID] = *bot
	return nil
}

func (s *memoryStore) GetBot(id string) (*models.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot, ok := s.bots[id]
	if !ok {
		return nil, ErrBotNotFound
	}
	copied := bot
	return &copied, nil
}

func (s *memoryStore) ListBots() ([]*models.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bots := make([]*models.BotConfig, 0, len(s.bots))
	for _, bot := range s.bots {
		copied := bot
		bots = append(bots, &copied)
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].ID < bots[j].ID })
	return bots, nil
}

func (s *memoryStore) UpdateBot(id string, mutate func(*models.BotConfig) error) (*models.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bot, ok := s.bots[id]
	if !ok {
		return nil, ErrBotNotFound
	}
	if err := mutate(&bot); err != nil {
		return nil, err
	}
	bot.UpdatedAt = time.Now()
	s.bots[id] = bot
	copied := bot
	return &copied, nil
}

func (s *memoryStore) DeleteBot(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bots, id)
	return nil
}

func (s *memoryStore) AppendOrder(order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	s.orders[order.BotID] = append(s.orders[order.BotID], *order)
	return nil
}

func (s *memoryStore) ListOrders(botID string) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]*models.Order, 0, len(s.orders[botID]))
	for i := range s.orders[botID] {
		copied := s.orders[botID][i]
		orders = append(orders, &copied)
	}
	return orders, nil
}

func (s *memoryStore) AppendLog(log *models.BotLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.logs[log.BotID] = append(s.logs[log.BotID], *log)
	return nil
}

func (s *memoryStore) ListLogs(botID string, limit int) ([]*models.BotLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.logs[botID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	logs := make([]*models.BotLog, 0, len(entries))
	for i := range entries {
		copied := entries[i]
		logs = append(logs, &copied)
	}
	return logs, nil
}

func (s *memoryStore) Close() error {
	return nil
}
