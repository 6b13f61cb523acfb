package config

import (
	"time"

	commoncfg "lodepa-air/pkg/config"
)

// Config lodepa-air service configuration, read from the environment
type Config struct {
	HTTP struct {
		Addr string
	}
	Database commoncfg.DatabaseConfig
	Redis    commoncfg.RedisConfig
	MQTT     struct {
		commoncfg.MQTTConfig
		Enabled     bool
		TopicPrefix string
	}
	Cache struct {
		ThresholdPrefix string
		ThresholdTTL    time.Duration
		StatusPrefix    string
		StatusTTL       time.Duration
	}
	Evaluation struct {
		Schedule    string // cron spec
		Concurrency int    // per-parameter fallback fan-out
	}
	Alarm struct {
		Stream         string
		StreamMaxLen   int64
		WebhookURL     string
		WebhookTimeout time.Duration
		WebhookRetries int
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment over built-in defaults
func Load() *Config {
	env := commoncfg.Env("")
	cfg := &Config{}
	cfg.HTTP.Addr = env.String("HTTP_ADDR", ":8080")

	cfg.Database = commoncfg.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "lodepa",
		SSLMode:         "disable",
		MaxConns:        20,
		MaxIdle:         5,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = commoncfg.RedisConfig{
		Addr:        "localhost:6379",
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
	cfg.Redis.LoadFromEnv("REDIS")

	// disabled by default, the stream notifier alone is enough for local runs
	cfg.MQTT.Enabled = env.Bool("MQTT_ENABLED", false)
	cfg.MQTT.MQTTConfig = commoncfg.MQTTConfig{
		Broker:         "tcp://localhost:1883",
		ClientID:       "lodepa-air",
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 5 * time.Second,
	}
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTT.TopicPrefix = env.String("MQTT_TOPIC_PREFIX", "lodepa/alarms")

	cfg.Cache.ThresholdPrefix = env.String("CACHE_THRESHOLD_PREFIX", "air:thresholds:")
	cfg.Cache.ThresholdTTL = env.Seconds("CACHE_THRESHOLD_TTL", 300*time.Second)
	cfg.Cache.StatusPrefix = env.String("CACHE_STATUS_PREFIX", "air:status:")
	cfg.Cache.StatusTTL = env.Seconds("CACHE_STATUS_TTL", 180*time.Second)

	cfg.Evaluation.Schedule = env.String("EVAL_SCHEDULE", "@every 60s")
	cfg.Evaluation.Concurrency = env.Int("EVAL_CONCURRENCY", 8)

	cfg.Alarm.Stream = env.String("ALARM_STREAM", "air:alarms")
	cfg.Alarm.StreamMaxLen = int64(env.Int("ALARM_STREAM_MAXLEN", 10000))
	cfg.Alarm.WebhookURL = env.String("ALARM_WEBHOOK_URL", "")
	cfg.Alarm.WebhookTimeout = env.Seconds("ALARM_WEBHOOK_TIMEOUT", 5*time.Second)
	cfg.Alarm.WebhookRetries = env.Int("ALARM_WEBHOOK_RETRIES", 3)

	cfg.Log.Level = env.String("LOG_LEVEL", "info")
	cfg.Log.Format = env.String("LOG_FORMAT", "json")

	return cfg
}
