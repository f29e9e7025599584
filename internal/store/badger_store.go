package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"volume-bot-go/internal/models"
)

// Key layout. Orders and logs embed a nanosecond timestamp so prefix scans
// come back in insertion order.
const (
	botPrefix   = "bot:"
	orderPrefix = "order:"
	logPrefix   = "log:"
)

// badgerStore is the BadgerDB implementation of Repository.
type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at dbPath.
func NewBadgerStore(dbPath string) (Repository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is noisy; errors still surface from the
	// operations themselves.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerStore{db: db}, nil
}

func botKey(id string) []byte {
	return []byte(botPrefix + id)
}

func (s *badgerStore) SaveBot(bot *models.BotConfig) error {
	bot.UpdatedAt = time.Now()
	data, err := json.Marshal(bot)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(botKey(bot.ID), data)
	})
}

func (s *badgerStore) GetBot(id string) (*models.BotConfig, error) {
	var bot models.BotConfig
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(botKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &bot)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrBotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (s *badgerStore) ListBots() ([]*models.BotConfig, error) {
	var bots []*models.BotConfig
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(botPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var bot models.BotConfig
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &bot)
			})
			if err != nil {
				return err
			}
			bots = append(bots, &bot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bots, nil
}

// UpdateBot performs the read-modify-write inside one badger transaction.
// Badger aborts conflicting concurrent transactions with ErrConflict, so the
// whole read-mutate-write is retried until it commits; counters and the
// remaining volume never lose a decrement.
func (s *badgerStore) UpdateBot(id string, mutate func(*models.BotConfig) error) (*models.BotConfig, error) {
	for {
		updated, err := s.updateBotOnce(id, mutate)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return updated, err
	}
}

func (s *badgerStore) updateBotOnce(id string, mutate func(*models.BotConfig) error) (*models.BotConfig, error) {
	var updated *models.BotConfig
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(botKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrBotNotFound
		}
		if err != nil {
			return err
		}

		var bot models.BotConfig
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &bot)
		}); err != nil {
			return err
		}

		if err := mutate(&bot); err != nil {
			return err
		}
		bot.UpdatedAt = time.Now()

		data, err := json.Marshal(&bot)
		if err != nil {
			return err
		}
		if err := txn.Set(botKey(id), data); err != nil {
			return err
		}
		updated = &bot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *badgerStore) DeleteBot(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(botKey(id))
	})
}

func (s *badgerStore) AppendOrder(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%020d:%s", orderPrefix, order.BotID, order.CreatedAt.UnixNano(), order.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *badgerStore) ListOrders(botID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(orderPrefix + botID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var order models.Order
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &order)
			})
			if err != nil {
				return err
			}
			orders = append(orders, &order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *badgerStore) AppendLog(log *models.BotLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%020d:%s", logPrefix, log.BotID, log.CreatedAt.UnixNano(), uuid.NewString()[:8])
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *badgerStore) ListLogs(botID string, limit int) ([]*models.BotLog, error) {
	var logs []*models.BotLog
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(logPrefix + botID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(logs) >= limit {
				return nil
			}
			var entry models.BotLog
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			logs = append(logs, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
