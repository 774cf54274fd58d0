package config

// Config is the daemon's configuration document (JSON or YAML on disk).
// All durations are Go duration strings (e.g. "500ms", "10s", "720h").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Triggers  TriggerConfig   `json:"triggers"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Retention RetentionConfig `json:"retention"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the document store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// TriggerConfig controls the trigger engine.
type TriggerConfig struct {
	// Timezone is an IANA TZ name, e.g. "Europe/Riga". Empty means the
	// process-local zone.
	Timezone string `json:"timezone,omitempty"`
}

// DeliveryConfig controls where fired notifications go. With telegram
// disabled, notifications are written to the log.
type DeliveryConfig struct {
	RatePerSec int            `json:"rate_per_sec,omitempty"`
	Telegram   TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// RetentionConfig controls the tombstone purge sweep.
type RetentionConfig struct {
	// Window is how long soft-deleted entities are recoverable.
	// Default: 720h (30 days).
	Window string `json:"window,omitempty"`
	// SweepEvery is the purge interval. Default: 6h.
	SweepEvery string `json:"sweep_every,omitempty"`
}
