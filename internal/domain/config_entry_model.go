package domain

import "strconv"

const (
	ConfigKeyTimeout             = "timeout"
	ConfigKeyAutoCleanupEnabled  = "auto_cleanup_enabled"
	ConfigKeyAutoCleanupInterval = "auto_cleanup_interval"

	DefaultTimeoutSeconds      = 3600
	DefaultAutoCleanupEnabled  = true
	DefaultAutoCleanupInterval = 300
	MinAutoCleanupInterval     = 30

	// MaxTimeoutSeconds (ten years) and MaxAutoCleanupInterval keep second
	// counts well inside time.Duration's range.
	MaxTimeoutSeconds      = 10 * 365 * 24 * 60 * 60
	MaxAutoCleanupInterval = MaxTimeoutSeconds
)

// ConfigEntry is a single row of the key/value settings table.
type ConfigEntry struct {
	Key   string `gorm:"primaryKey;size:50"`
	Value string `gorm:"type:text;not null"`
}

func (ConfigEntry) TableName() string {
	return "config"
}

// DefaultConfigEntries returns the rows seeded on first start.
func DefaultConfigEntries() []ConfigEntry {
	return []ConfigEntry{
		{Key: ConfigKeyTimeout, Value: strconv.Itoa(DefaultTimeoutSeconds)},
		{Key: ConfigKeyAutoCleanupEnabled, Value: strconv.FormatBool(DefaultAutoCleanupEnabled)},
		{Key: ConfigKeyAutoCleanupInterval, Value: strconv.Itoa(DefaultAutoCleanupInterval)},
	}
}
