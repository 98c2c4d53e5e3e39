// Package config reads the daemon's settings from the environment, loading
// a .env file first when one is present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DB struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type SMTP struct {
	Email    string
	Password string
	Host     string
	Port     int
}

func (s SMTP) Enabled() bool { return s.Host != "" && s.Email != "" }

type Config struct {
	Env              string
	LogLevel         string
	DB               DB
	Redis            Redis
	Kafka            Kafka
	SMTP             SMTP
	NettingSchedule  string
	ReminderSchedule string
	MetricsAddr      string
	OpTimeout        time.Duration
	LockTTL          time.Duration
}

// Load reads the configuration. A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Env:      get("APP_ENV", "development"),
		LogLevel: get("LOG_LEVEL", "info"),
		DB: DB{
			Driver:   get("DB_DRIVER", "mysql"),
			User:     getenv("DB_USER"),
			Password: getenv("DB_PASSWORD"),
			Host:     get("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT"),
			Name:     getenv("DB_NAME"),
		},
		Redis: Redis{
			Addr:     getenv("REDIS_ADDR"),
			Password: getenv("REDIS_PASSWORD"),
		},
		Kafka: Kafka{
			Topic: get("KAFKA_TOPIC", "ledger-events"),
		},
		SMTP: SMTP{
			Email:    getenv("SMTP_EMAIL"),
			Password: getenv("SMTP_PASS"),
			Host:     getenv("SMTP_HOST"),
		},
		NettingSchedule:  get("NETTING_SCHEDULE", "30 0 * * *"),
		ReminderSchedule: get("REMINDER_SCHEDULE", "0 9 * * *"),
		MetricsAddr:      get("METRICS_ADDR", ":9102"),
	}

	switch cfg.DB.Driver {
	case "mysql":
		if cfg.DB.Port == "" {
			cfg.DB.Port = "3306"
		}
	case "pgx":
		if cfg.DB.Port == "" {
			cfg.DB.Port = "5432"
		}
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q: want mysql or pgx", cfg.DB.Driver)
	}

	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	var err error
	if cfg.Redis.DB, err = atoi(get("REDIS_DB", "0"), "REDIS_DB"); err != nil {
		return Config{}, err
	}
	if cfg.SMTP.Host != "" {
		if cfg.SMTP.Port, err = atoi(get("SMTP_PORT", "587"), "SMTP_PORT"); err != nil {
			return Config{}, err
		}
	}
	if cfg.OpTimeout, err = duration(get("OP_TIMEOUT", "5s"), "OP_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = duration(get("LOCK_TTL", "30s"), "LOCK_TTL"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func atoi(v, key string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func duration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
