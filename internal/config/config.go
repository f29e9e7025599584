package config

import (
	"encoding/json"
	"fmt"
	"os"

	"volume-bot-go/internal/models"
)

// LoadConfig reads the daemon configuration from a JSON file and fills in
// defaults for optional fields.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &models.Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if config.DBPath == "" {
		config.DBPath = "volume_bot.db"
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 30
	}

	return config, nil
}

// LoadBotConfig reads a single bot definition from a JSON file.
func LoadBotConfig(path string) (*models.BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	bot := &models.BotConfig{}
	if err := json.Unmarshal(data, bot); err != nil {
		return nil, fmt.Errorf("parsing bot definition %s: %w", path, err)
	}

	return bot, nil
}
