package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Marketplace backend (order summaries, push registration)
	BackendBaseURL  string
	BackendAPIToken string

	// Order polling
	PollInterval time.Duration // Interval between pending-orders polls (default: 5s)

	// State persistence ("file" or "postgres")
	StoreDriver   string
	StateFilePath string
	DatabaseURL   string

	// Database Connection Pool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// Cross-instance event fanout (optional)
	NatsURL string

	// Alert channels
	AudioEnabled     bool
	AudioPlayCommand string // player binary (default: paplay)
	AlertSoundFile   string
	SpeechEnabled    bool
	SpeechCommand    string // synthesizer binary (default: espeak-ng)
	SpeechLocale     string
	AlertProfileFile string // optional yaml overriding titles/templates
	AlertProfile     *AlertProfile

	// Push subscription
	PushDefaultPublicKey string // fallback when backend omits a key

	// Reminders
	ReminderCron  string // cron expression, empty disables
	ReminderTitle string
	ReminderBody  string

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string
}

// AlertProfile customizes the content of new-order alerts.
type AlertProfile struct {
	Title          string `yaml:"title"`
	BodyTemplate   string `yaml:"body_template"`
	SpeechTemplate string `yaml:"speech_template"`
	Locale         string `yaml:"locale"`
}

var (
	AppConfig *Config

	DefaultPollInterval = 5 * time.Second
)

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8090"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Backend
		BackendBaseURL:  getEnvOrDefault("BACKEND_BASE_URL", "http://127.0.0.1:8080"),
		BackendAPIToken: getEnvOrDefault("BACKEND_API_TOKEN", ""),

		// Polling
		PollInterval: getEnvAsDuration("ORDER_POLL_INTERVAL", DefaultPollInterval),

		// Persistence
		StoreDriver:   getEnvOrDefault("STORE_DRIVER", "file"),
		StateFilePath: getEnvOrDefault("STATE_FILE_PATH", "engage-state.json"),
		DatabaseURL:   getEnvOrDefault("DATABASE_URL", "postgres://localhost/engage?sslmode=disable"),

		// Database Connection Pool
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 1),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		// Fanout
		NatsURL: getEnvOrDefault("NATS_URL", ""),

		// Alert channels
		AudioEnabled:     getEnvOrDefault("AUDIO_ENABLED", "true") == "true",
		AudioPlayCommand: getEnvOrDefault("AUDIO_PLAY_COMMAND", "paplay"),
		AlertSoundFile:   getEnvOrDefault("ALERT_SOUND_FILE", "assets/new-order.wav"),
		SpeechEnabled:    getEnvOrDefault("SPEECH_ENABLED", "true") == "true",
		SpeechCommand:    getEnvOrDefault("SPEECH_COMMAND", "espeak-ng"),
		SpeechLocale:     getEnvOrDefault("SPEECH_LOCALE", "en-US"),
		AlertProfileFile: getEnvOrDefault("ALERT_PROFILE_FILE", ""),

		// Push
		PushDefaultPublicKey: getEnvOrDefault("PUSH_DEFAULT_PUBLIC_KEY", ""),

		// Reminders
		ReminderCron:  getEnvOrDefault("REMINDER_CRON", ""),
		ReminderTitle: getEnvOrDefault("REMINDER_TITLE", "Reminder"),
		ReminderBody:  getEnvOrDefault("REMINDER_BODY", "Upload photos for completed cleanings"),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", ""),
	}

	AppConfig.AlertProfile = defaultAlertProfile(AppConfig.SpeechLocale)

	if AppConfig.AlertProfileFile != "" {
		file, err := os.Open(AppConfig.AlertProfileFile)
		if err != nil {
			log.Printf("Warning: cannot open alert profile %s: %v, using defaults", AppConfig.AlertProfileFile, err)
			return
		}
		defer file.Close()

		if err := LoadAlertProfile(file, AppConfig.AlertProfile); err != nil {
			log.Printf("Warning: cannot parse alert profile %s: %v, using defaults", AppConfig.AlertProfileFile, err)
			AppConfig.AlertProfile = defaultAlertProfile(AppConfig.SpeechLocale)
		}
	}
}

func defaultAlertProfile(locale string) *AlertProfile {
	return &AlertProfile{
		Title:          "New order",
		BodyTemplate:   "%s booked %s",
		SpeechTemplate: "New order received. %s booked %s.",
		Locale:         locale,
	}
}

// LoadAlertProfile decodes a yaml alert profile into profile.
func LoadAlertProfile(reader io.Reader, profile *AlertProfile) error {
	decoder := yaml.NewDecoder(reader)
	return decoder.Decode(profile)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
