package store

import (
	"errors"

	"volume-bot-go/internal/models"
)

// ErrBotNotFound is returned when a bot id has no persisted configuration.
var ErrBotNotFound = errors.New("bot not found")

// Repository abstracts the persistence layer from the engine and the API.
// Orders and logs are append-only sinks; bot configurations support atomic
// read-modify-write through UpdateBot.
type Repository interface {
	// SaveBot writes the full configuration, overwriting any previous
	// version.
	SaveBot(bot *models.BotConfig) error

	// GetBot loads one configuration. Missing ids fail with
	// ErrBotNotFound.
	GetBot(id string) (*models.BotConfig, error)

	// ListBots loads every stored configuration.
	ListBots() ([]*models.BotConfig, error)

	// UpdateBot applies mutate to the stored configuration inside a
	// single transaction and returns the updated copy. The engine's
	// volume decrement relies on this being atomic.
	UpdateBot(id string, mutate func(*models.BotConfig) error) (*models.BotConfig, error)

	// DeleteBot removes a configuration and is a no-op for unknown ids.
	DeleteBot(id string) error

	// AppendOrder records one submitted order.
	AppendOrder(order *models.Order) error

	// ListOrders returns a bot's orders, oldest first.
	ListOrders(botID string) ([]*models.Order, error)

	// AppendLog records one diagnostic entry.
	AppendLog(log *models.BotLog) error

	// ListLogs returns up to limit of a bot's log entries, oldest first.
	// limit <= 0 means no limit.
	ListLogs(botID string, limit int) ([]*models.BotLog, error)

	// Close flushes and closes the underlying database.
	Close() error
}
