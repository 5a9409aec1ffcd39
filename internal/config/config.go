package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration, read from .env and the environment.
type Config struct {
	Port        string
	LogLevel    string
	Operator    string
	Custody     string
	JWTSecret   string
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Queues      QueueConfig
	CancelAge   time.Duration
	Cooldown    time.Duration
	IdentityKey string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// QueueConfig names the Redis lists shared with the token custody bridge.
type QueueConfig struct {
	Transfers  string
	Deposits   string
	DeadLetter string
}

var bindings = map[string]string{
	"server.port":                 "PORT",
	"log.level":                   "LOG_LEVEL",
	"escrow.operator":             "ESCROW_OPERATOR",
	"escrow.account":              "ESCROW_ACCOUNT",
	"jwt.secret_key":              "JWT_SECRET_KEY",
	"database.enabled":            "DATABASE_ENABLED",
	"database.host":               "DATABASE_HOST",
	"database.port":               "DATABASE_PORT",
	"database.user":               "DATABASE_USER",
	"database.password":           "DATABASE_PASSWORD",
	"database.name":               "DATABASE_NAME",
	"database.ssl_mode":           "DATABASE_SSL_MODE",
	"redis.host":                  "REDIS_HOST",
	"redis.port":                  "REDIS_PORT",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"kafka.brokers":               "KAFKA_BROKERS",
	"kafka.topic":                 "KAFKA_TOPIC",
	"queues.transfers":            "CUSTODY_TRANSFER_QUEUE",
	"queues.deposits":             "CUSTODY_DEPOSIT_QUEUE",
	"queues.dead_letter":          "CUSTODY_DEAD_LETTER_QUEUE",
	"identity.key":                "IDENTITY_STATUS_KEY",
	"params.buyer_cancel_min_age": "BUYER_CANCEL_MIN_AGE",
	"params.arbitration_cooldown": "ARBITRATION_COOLDOWN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("escrow.operator", "escrow")
	v.SetDefault("escrow.account", "escrow")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "escrow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "escrow.offers")
	v.SetDefault("queues.transfers", "custody:transfers")
	v.SetDefault("queues.deposits", "custody:deposits")
	v.SetDefault("queues.dead_letter", "custody:deposits:dead")
	v.SetDefault("identity.key", "identity:status")
	v.SetDefault("params.buyer_cancel_min_age", 24*time.Hour)
	v.SetDefault("params.arbitration_cooldown", 72*time.Hour)
}

// Load reads the .env file at path (optional) and the environment.
func Load(path string) *Config {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	for key, env := range bindings {
		v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
	// .env entries are keyed by their variable name; the environment still wins.
	for key, env := range bindings {
		if name := strings.ToLower(env); v.InConfig(name) {
			v.SetDefault(key, v.Get(name))
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	var brokers []string
	for _, b := range strings.Split(v.GetString("kafka.brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return &Config{
		Port:      v.GetString("server.port"),
		LogLevel:  v.GetString("log.level"),
		Operator:  v.GetString("escrow.operator"),
		Custody:   v.GetString("escrow.account"),
		JWTSecret: v.GetString("jwt.secret_key"),
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   v.GetString("kafka.topic"),
		},
		Queues: QueueConfig{
			Transfers:  v.GetString("queues.transfers"),
			Deposits:   v.GetString("queues.deposits"),
			DeadLetter: v.GetString("queues.dead_letter"),
		},
		CancelAge:   v.GetDuration("params.buyer_cancel_min_age"),
		Cooldown:    v.GetDuration("params.arbitration_cooldown"),
		IdentityKey: v.GetString("identity.key"),
	}
}
