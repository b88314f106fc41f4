package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory    = "memory"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
)

// Config aggregates application configuration. Values come from defaults,
// an optional config.yaml and environment variables, later sources winning.
type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	StoreBackend        string
	MongoURI            string
	MongoDB             string
	FirestoreProject    string
	FirebaseCredentials string

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaClientID      string
	RentalEventsTopic  string
	ConsumerGroup      string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SweepSchedule          string
	PatternRefreshSchedule string
	JobLockTTL             time.Duration

	RecurringHorizonDays int
	MaxConflictRetries   int
	MaxRentalDays        int
	IdempotencyTTL       time.Duration
}

// Load reads configuration. configPath may name a specific file; when empty
// config.yaml is looked up in . and ./config and is optional.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("MONGO_DB", "dogshare")
	v.SetDefault("KAFKA_TOPIC_PREFIX", "")
	v.SetDefault("KAFKA_CLIENT_ID", "dogshare")
	v.SetDefault("RENTAL_EVENTS_TOPIC", "marketplace.rental.events.v1")
	v.SetDefault("CONSUMER_GROUP", "dogshare-availability")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "500ms")
	v.SetDefault("RETRY_BACKOFF", "1s,5s,30s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SWEEP_SCHEDULE", "@every 15m")
	v.SetDefault("PATTERN_REFRESH_SCHEDULE", "@daily")
	v.SetDefault("JOB_LOCK_TTL", "5m")
	v.SetDefault("RECURRING_HORIZON_DAYS", 90)
	v.SetDefault("MAX_CONFLICT_RETRIES", 3)
	v.SetDefault("MAX_RENTAL_DAYS", 90)
	v.SetDefault("IDEMP_TTL", "168h")
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:                    v.GetString("APP_ENV"),
		LogLevel:               strings.ToLower(v.GetString("LOG_LEVEL")),
		HTTPAddr:               v.GetString("HTTP_ADDR"),
		StoreBackend:           strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND"))),
		MongoURI:               v.GetString("MONGO_URI"),
		MongoDB:                v.GetString("MONGO_DB"),
		FirestoreProject:       v.GetString("FIRESTORE_PROJECT"),
		FirebaseCredentials:    v.GetString("FIREBASE_CREDENTIALS"),
		KafkaBrokers:           splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopicPrefix:       v.GetString("KAFKA_TOPIC_PREFIX"),
		KafkaClientID:          v.GetString("KAFKA_CLIENT_ID"),
		RentalEventsTopic:      v.GetString("RENTAL_EVENTS_TOPIC"),
		ConsumerGroup:          v.GetString("CONSUMER_GROUP"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                v.GetInt("REDIS_DB"),
		SweepSchedule:          v.GetString("SWEEP_SCHEDULE"),
		PatternRefreshSchedule: v.GetString("PATTERN_REFRESH_SCHEDULE"),
		RecurringHorizonDays:   v.GetInt("RECURRING_HORIZON_DAYS"),
		MaxConflictRetries:     v.GetInt("MAX_CONFLICT_RETRIES"),
		MaxRentalDays:          v.GetInt("MAX_RENTAL_DAYS"),
	}
	var err error
	if cfg.OutboxPollInterval, err = parseDuration(v, "OUTBOX_POLL_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.JobLockTTL, err = parseDuration(v, "JOB_LOCK_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDuration(v, "IDEMP_TTL"); err != nil {
		return Config{}, err
	}
	for _, raw := range splitList(v.GetString("RETRY_BACKOFF")) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo backend")
		}
	case BackendFirestore:
		if c.FirestoreProject == "" && c.FirebaseCredentials == "" {
			return errors.New("config: FIRESTORE_PROJECT or FIREBASE_CREDENTIALS is required for the firestore backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.RecurringHorizonDays <= 0 {
		return errors.New("config: RECURRING_HORIZON_DAYS must be positive")
	}
	if c.MaxRentalDays <= 0 {
		return errors.New("config: MAX_RENTAL_DAYS must be positive")
	}
	return nil
}

// KafkaEnabled reports whether a broker list was configured.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
