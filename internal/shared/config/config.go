package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

type Config struct {
	Server    ServerConfig
	TLS       TLSConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Firebase  FirebaseConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Budget    BudgetConfig
	Kafka     KafkaConfig
	Messages  MessagesConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// ListenLedger starts the LISTEN/NOTIFY consumer for externally written expenses.
	ListenLedger bool
}

type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string
}

// Enabled reports whether enough is configured to build a Firebase app.
func (c FirebaseConfig) Enabled() bool {
	return c.CredentialsFile != "" || c.ProjectID != ""
}

type AuthConfig struct {
	// Disabled skips token verification and treats every request as DevUserID.
	Disabled  bool
	DevUserID string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type BudgetConfig struct {
	Location   *time.Location
	Categories []string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type MessagesConfig struct {
	File string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	Environment  string
	MetricsPort  string
	SampleRatio  float64
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	schedulerWorkers, err := getIntEnv("SCHEDULER_WORKERS", 5)
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := getIntEnv("SCHEDULER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	sampleRatio, err := getFloatEnv("OTEL_TRACE_SAMPLE_RATIO", 1)
	if err != nil {
		return nil, err
	}
	location, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: getListEnv("ALLOWED_HOSTS"),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         dbPort,
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			DBName:       getEnv("DB_NAME", "budget_master"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			ListenLedger: getBoolEnv("DB_LISTEN_LEDGER", true),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		},
		Auth: AuthConfig{
			Disabled:  getBoolEnv("AUTH_DISABLED", false),
			DevUserID: getEnv("DEV_USER_ID", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			ScheduleTimes: getListEnv("SCHEDULER_TIMES"),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Budget: BudgetConfig{
			Location:   location,
			Categories: getListEnv("CATEGORIES"),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "budget-events"),
		},
		Messages: MessagesConfig{
			File: getEnv("MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "budget-master-api"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
			SampleRatio:  sampleRatio,
		},
	}
	if len(cfg.Scheduler.ScheduleTimes) == 0 {
		cfg.Scheduler.ScheduleTimes = []string{"08:00"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory, StorePostgres:
	case StoreFirestore:
		if !c.Firebase.Enabled() {
			return fmt.Errorf("FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_FILE is required when STORE_BACKEND=firestore")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want memory, postgres or firestore", c.Store.Backend)
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	if c.Auth.Disabled && c.Auth.DevUserID == "" {
		return fmt.Errorf("DEV_USER_ID is required when AUTH_DISABLED=true")
	}
	if !c.Auth.Disabled && !c.Firebase.Enabled() {
		return fmt.Errorf("FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_FILE is required unless AUTH_DISABLED=true")
	}

	for _, hhmm := range c.Scheduler.ScheduleTimes {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("invalid SCHEDULER_TIMES entry %q: %w", hhmm, err)
		}
	}
	if c.Scheduler.WorkerCount < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// getListEnv splits a comma-separated variable, dropping blank entries.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
