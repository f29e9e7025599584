package models

// Config holds the daemon-level settings loaded at startup. Per-bot trading
// parameters live in BotConfig and are stored in the database.
type Config struct {
	DBPath        string    `json:"db_path"`        // badger database directory
	ListenAddr    string    `json:"listen_addr"`    // HTTP control API address, e.g. ":8080"
	StopTimeout   int       `json:"stop_timeout"`   // seconds to wait for a bot to acknowledge a stop
	ReconcileOnly bool      `json:"reconcile_only"` // reconcile stale state and exit
	Bots          []string  `json:"bots,omitempty"` // bot definition files imported at startup
	LogConfig     LogConfig `json:"log"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	Output     string `json:"output"`      // "console", "file", "both"
	File       string `json:"file"`        // log file path
	MaxSize    int    `json:"max_size"`    // max size of one log file in MB
	MaxBackups int    `json:"max_backups"` // max number of rotated files kept
	MaxAge     int    `json:"max_age"`     // max age of rotated files in days
	Compress   bool   `json:"compress"`    // gzip rotated files
}
