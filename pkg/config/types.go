package config

import (
	"encoding/json"
	"fmt"
	"time"
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

const (
	defaultPollInterval  = Duration(60 * time.Second)
	defaultListenAddr    = ":8080"
	defaultDBPath        = "netmon.db"
	defaultRetentionDays = 30
	defaultCleanupHour   = 3
)

// SourceConfig describes the remote device's status endpoint.
type SourceConfig struct {
	Host  string `json:"host"`  // e.g., 192.168.1.1
	Port  int    `json:"port"`  // e.g., 8321
	Token string `json:"token"` // optional bearer credential
}

// Config represents the configuration for the netmon service.
type Config struct {
	ListenAddr    string       `json:"listen_addr"`    // e.g., :8080
	DBPath        string       `json:"db_path"`        // SQLite database path
	Source        SourceConfig `json:"source"`         // remote device endpoint
	PollInterval  Duration     `json:"poll_interval"`  // how often to poll the device
	RetentionDays int          `json:"retention_days"` // raw sample retention horizon
	CleanupHour   int          `json:"cleanup_hour"`   // UTC hour for the daily prune job
}

// Validate fills defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.Source.Host == "" {
		return errNoSourceHost
	}

	if c.Source.Port <= 0 || c.Source.Port > 65535 {
		return fmt.Errorf("%w: %d", errInvalidSourcePort, c.Source.Port)
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}

	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}

	if c.RetentionDays <= 0 {
		c.RetentionDays = defaultRetentionDays
	}

	if c.CleanupHour < 0 || c.CleanupHour > 23 {
		c.CleanupHour = defaultCleanupHour
	}

	return nil
}
