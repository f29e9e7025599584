package exchange

import (
	"fmt"
	"strings"

	"volume-bot-go/internal/models"
)

// Credentials carries the opaque API credentials for one bot. Passphrase is
// only used by exchanges that require one.
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
}

// Constructor builds a client from credentials.
type Constructor func(creds Credentials) (Client, error)

var constructors = map[string]Constructor{
	"BINANCE": func(creds Credentials) (Client, error) {
		return NewBinanceClient(creds.APIKey, creds.SecretKey), nil
	},
	"PIONEX": func(creds Credentials) (Client, error) {
		return NewPionexClient(creds.APIKey, creds.SecretKey), nil
	},
	"KUCOIN": func(creds Credentials) (Client, error) {
		return NewKucoinClient(creds.APIKey, creds.SecretKey, creds.Passphrase), nil
	},
	"MOCK": func(creds Credentials) (Client, error) {
		return NewMockClient(0), nil
	},
}

// Register adds a constructor for an exchange code. It is meant for tests
// and for wiring additional venues without touching this package.
func Register(code string, ctor Constructor) {
	constructors[strings.ToUpper(code)] = ctor
}

// NewClient builds the client for a bot's exchange code. Unknown codes fail
// with ErrUnsupportedExchange.
func NewClient(bot *models.BotConfig) (Client, error) {
	ctor, ok := constructors[strings.ToUpper(bot.Exchange)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, bot.Exchange)
	}
	return ctor(Credentials{
		APIKey:     bot.APIKey,
		SecretKey:  bot.SecretKey,
		Passphrase: bot.Passphrase,
	})
}
