// Package config loads the daemon configuration from YAML and environment.
package config

import (
	"time"
)

// Config is the root daemon configuration.
type Config struct {
	Facility  FacilityConfig  `yaml:"facility"`
	Operator  OperatorConfig  `yaml:"operator"`
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Alert     AlertConfig     `yaml:"alert"`
	Log       LogConfig       `yaml:"log"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// FacilityConfig describes the room the daemon serves.
type FacilityConfig struct {
	Name     string `yaml:"name"     env:"FACILITY_NAME"     env-default:"Sleep Check"`
	Timezone string `yaml:"timezone" env:"FACILITY_TIMEZONE" env-default:"Local"`
	// ChildrenRaw is a comma-separated list of id=name pairs ("c1=Ada,c2=Bo").
	// A bare id uses the id as the name.
	ChildrenRaw string `yaml:"children" env:"FACILITY_CHILDREN"`

	// Parsed from ChildrenRaw in Validate.
	Children []Child `yaml:"-" env:"-"`
	// Location is Timezone resolved in Validate.
	Location *time.Location `yaml:"-" env:"-"`
}

// Child is one configured child.
type Child struct {
	ID   string
	Name string
}

// OperatorConfig is the fallback staff identity for requests without headers.
type OperatorConfig struct {
	Initials string `yaml:"initials" env:"OPERATOR_INITIALS"`
	ID       string `yaml:"id"       env:"OPERATOR_ID"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"             env:"HTTP_ADDR"             env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// StoreConfig selects the event log backend.
type StoreConfig struct {
	Driver    string        `yaml:"driver"     env:"STORE_DRIVER"     env-default:"memory"`
	KeyPrefix string        `yaml:"key_prefix" env:"STORE_KEY_PREFIX" env-default:"sleepcheck:"`
	Retention time.Duration `yaml:"retention"  env:"STORE_RETENTION"  env-default:"0s"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"     env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

// MQTTConfig holds the outbound feed settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"      env:"MQTT_ENABLED"      env-default:"false"`
	Broker      string `yaml:"broker"       env:"MQTT_BROKER"       env-default:"tcp://localhost:1883"`
	ClientID    string `yaml:"client_id"    env:"MQTT_CLIENT_ID"    env-default:"sleepcheck"`
	TopicPrefix string `yaml:"topic_prefix" env:"MQTT_TOPIC_PREFIX" env-default:"sleepcheck"`
	BufferSize  int    `yaml:"buffer_size"  env:"MQTT_BUFFER_SIZE"  env-default:"256"`
}

// AlertConfig holds alert channel settings. Thresholds are regulatory and
// not configurable.
type AlertConfig struct {
	// MuteAudio disables the tone channel.
	MuteAudio    bool          `yaml:"mute_audio"    env:"ALERT_MUTE_AUDIO"`
	AudioCommand []string      `yaml:"audio_command" env:"ALERT_AUDIO_COMMAND" env-default:"aplay,-q,-" env-separator:","`
	ToneHz       float64       `yaml:"tone_hz"       env:"ALERT_TONE_HZ"       env-default:"800"`
	ToneDuration time.Duration `yaml:"tone_duration" env:"ALERT_TONE_DURATION" env-default:"500ms"`
	ToneVolume   float64       `yaml:"tone_volume"   env:"ALERT_TONE_VOLUME"   env-default:"0.6"`

	HapticEnabled bool   `yaml:"haptic_enabled" env:"ALERT_HAPTIC_ENABLED" env-default:"false"`
	HapticChip    string `yaml:"haptic_chip"    env:"ALERT_HAPTIC_CHIP"    env-default:"gpiochip0"`
	HapticPin     int    `yaml:"haptic_pin"     env:"ALERT_HAPTIC_PIN"     env-default:"18"`

	// NotificationPermission is the initial grant state: default, granted or denied.
	NotificationPermission string        `yaml:"notification_permission" env:"ALERT_NOTIFICATION_PERMISSION" env-default:"default"`
	NotificationTitle      string        `yaml:"notification_title"      env:"ALERT_NOTIFICATION_TITLE"      env-default:"Sleep check"`
	Timeout                time.Duration `yaml:"timeout"                 env:"ALERT_TIMEOUT"                 env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// HeartbeatConfig controls the MQTT status heartbeat.
type HeartbeatConfig struct {
	// Interval between heartbeats. Zero disables them.
	Interval time.Duration `yaml:"interval" env:"HEARTBEAT_INTERVAL" env-default:"15m"`
}

// ChildIDs returns the configured child IDs in order.
func (c *Config) ChildIDs() []string {
	ids := make([]string, len(c.Facility.Children))
	for i, ch := range c.Facility.Children {
		ids[i] = ch.ID
	}
	return ids
}
