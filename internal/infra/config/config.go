package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App        AppSettings        `mapstructure:"app"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Kafka      KafkaSettings      `mapstructure:"kafka"`
	JWT        JWTSettings        `mapstructure:"jwt"`
	Telemetry  TelemetrySettings  `mapstructure:"telemetry"`
	Revocation RevocationSettings `mapstructure:"revocation"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RedisSettings configures the remote revocation backend. Host, port and
// password must all be set for the service to use Redis at all.
type RedisSettings struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	DB          int           `mapstructure:"db"`
	Password    string        `mapstructure:"password"`
	TLSEnabled  bool          `mapstructure:"tls_enabled"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Complete reports whether enough connection settings are present to dial Redis.
func (s RedisSettings) Complete() bool {
	return strings.TrimSpace(s.Host) != "" && s.Port > 0 && s.Password != ""
}

// Addr returns the host:port dial address.
func (s RedisSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// KafkaSettings configures revocation event fan-out between instances
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	GroupID     string   `mapstructure:"group_id"`
}

type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Leeway time.Duration `mapstructure:"leeway"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// RevocationSettings tunes the failover revocation store.
type RevocationSettings struct {
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	HealthInterval    time.Duration `mapstructure:"health_interval"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	DefaultTTL        time.Duration `mapstructure:"default_ttl"`
	HashKeys          bool          `mapstructure:"hash_keys"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CHAT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"redis.dial_timeout",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.group_id",
		"jwt.secret",
		"jwt.leeway",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"revocation.operation_timeout",
		"revocation.health_interval",
		"revocation.reconnect_interval",
		"revocation.default_ttl",
		"revocation.hash_keys",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	return &cfg, nil
}

// normalize drops blank broker entries and forces hashed store keys once
// revocations are published to Kafka, so no raw token leaves the process.
func (c *AppConfig) normalize() {
	brokers := c.Kafka.Brokers[:0]
	for _, broker := range c.Kafka.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	c.Kafka.Brokers = brokers

	if len(c.Kafka.Brokers) > 0 {
		c.Revocation.HashKeys = true
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chat-app")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.allowed_origins", []string{"*"})

	// Redis has no host/port/password defaults: leaving any of them unset
	// runs the service on the in-memory revocation store.
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "chat:revoked")
	v.SetDefault("redis.dial_timeout", "3s")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "chat")
	v.SetDefault("kafka.group_id", "")

	v.SetDefault("jwt.leeway", "0s")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "chat-app")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("revocation.operation_timeout", "2s")
	v.SetDefault("revocation.health_interval", "5s")
	v.SetDefault("revocation.reconnect_interval", "0s")
	v.SetDefault("revocation.default_ttl", "24h")
	v.SetDefault("revocation.hash_keys", false)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "CHAT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
