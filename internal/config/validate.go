package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/sleepcheck/internal/alert"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Validate checks the loaded configuration and resolves derived fields.
// Load calls it automatically.
func (c *Config) Validate() error {
	children, err := ParseChildren(c.Facility.ChildrenRaw)
	if err != nil {
		return fmt.Errorf("facility.children: %w", err)
	}
	if len(children) == 0 {
		return fmt.Errorf("facility.children: at least one child is required")
	}
	c.Facility.Children = children

	loc, err := time.LoadLocation(c.Facility.Timezone)
	if err != nil {
		return fmt.Errorf("facility.timezone: %w", err)
	}
	c.Facility.Location = loc

	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.driver must be memory, redis or postgres (got %q)", c.Store.Driver)
	}

	if err := c.Alert.validate(); err != nil {
		return fmt.Errorf("alert: %w", err)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.Heartbeat.Interval < 0 {
		return fmt.Errorf("heartbeat.interval must be >= 0 (got %v)", c.Heartbeat.Interval)
	}

	return nil
}

func (a *AlertConfig) validate() error {
	tone := a.Tone()
	if err := tone.Validate(); err != nil {
		return err
	}
	if !a.MuteAudio && len(a.AudioCommand) == 0 {
		return fmt.Errorf("audio_command is required unless audio is muted")
	}
	if a.HapticPin < 0 {
		return fmt.Errorf("haptic_pin must be >= 0 (got %d)", a.HapticPin)
	}
	if _, err := alert.ParsePermission(a.NotificationPermission); err != nil {
		return err
	}
	return nil
}

// Tone returns the configured alert tone.
func (a AlertConfig) Tone() alert.Tone {
	t := alert.DefaultTone()
	t.FrequencyHz = a.ToneHz
	t.Duration = a.ToneDuration
	t.Volume = a.ToneVolume
	return t
}

// ParseChildren parses "id=name,id2=name2". Whitespace around entries is
// ignored and a bare id names itself. IDs must be unique.
func ParseChildren(raw string) ([]Child, error) {
	var out []Child
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, _ := strings.Cut(part, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" {
			return nil, fmt.Errorf("empty child id in %q", part)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate child id %q", id)
		}
		seen[id] = true
		if name == "" {
			name = id
		}
		out = append(out, Child{ID: id, Name: name})
	}
	return out, nil
}
