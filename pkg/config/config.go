package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
)

// Env reads variables named <prefix>_<KEY>, or <KEY> when the prefix is empty.
// Unset, empty and unparsable values yield the default.
type Env string

func (e Env) name(key string) string {
	if e == "" {
		return key
	}
	return string(e) + "_" + key
}

func (e Env) String(key, def string) string {
	if v := os.Getenv(e.name(key)); v != "" {
		return v
	}
	return def
}

func (e Env) Int(key string, def int) int {
	v := os.Getenv(e.name(key))
	if v == "" {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}

func (e Env) Bool(key string, def bool) bool {
	v := os.Getenv(e.name(key))
	if v == "" {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Seconds reads a whole number of seconds
func (e Env) Seconds(key string, def time.Duration) time.Duration {
	return time.Duration(e.Int(key, int(def/time.Second))) * time.Second
}

// DatabaseConfig PostgreSQL connection and pool settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// GetDSN builds the lib/pq keyword/value connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv overrides the current values with <prefix>_HOST, <prefix>_PORT, ...
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	env := Env(prefix)
	c.Host = env.String("HOST", c.Host)
	c.Port = env.Int("PORT", c.Port)
	c.User = env.String("USER", c.User)
	c.Password = env.String("PASSWORD", c.Password)
	c.Database = env.String("NAME", c.Database)
	c.SSLMode = env.String("SSLMODE", c.SSLMode)
	c.MaxConns = env.Int("MAX_CONNS", c.MaxConns)
	c.MaxIdle = env.Int("MAX_IDLE", c.MaxIdle)
	c.ConnMaxLifetime = env.Seconds("CONN_MAX_LIFETIME", c.ConnMaxLifetime)
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

func (c *RedisConfig) LoadFromEnv(prefix string) {
	env := Env(prefix)
	c.Addr = env.String("ADDR", c.Addr)
	c.Password = env.String("PASSWORD", c.Password)
	c.DB = env.Int("DB", c.DB)
	c.PoolSize = env.Int("POOL_SIZE", c.PoolSize)
}

// MQTTConfig MQTT broker settings
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (c *MQTTConfig) LoadFromEnv(prefix string) {
	env := Env(prefix)
	c.Broker = env.String("BROKER", c.Broker)
	c.ClientID = env.String("CLIENT_ID", c.ClientID)
	c.Username = env.String("USERNAME", c.Username)
	c.Password = env.String("PASSWORD", c.Password)
	if qos := env.Int("QOS", int(c.QoS)); qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}
