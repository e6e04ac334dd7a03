package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBDriver string
	DBURL    string
	LogLevel string

	CORSOrigins []string

	RedisAddress string

	StorageProvider string
	StorageLocalDir string
	GCSBucket       string
	GCSCredentials  string
	PublicBaseURL   string
	FileTokenSecret string
	FileTokenTTL    time.Duration

	AIValidationURL     string
	AIValidationTimeout time.Duration

	UndoWindow       time.Duration
	SchedulerEnabled bool

	PubSubProjectID string
	PubSubTopic     string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	NotifySMSTo       string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := &Config{
		Port:     envOr("PORT", "8080"),
		DBDriver: envOr("DB_DRIVER", "postgres"),
		DBURL:    os.Getenv("DB_URL"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		CORSOrigins: splitList(envOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),

		RedisAddress: os.Getenv("REDIS_ADDRESS"),

		StorageProvider: strings.ToLower(envOr("STORAGE_PROVIDER", "local")),
		StorageLocalDir: envOr("STORAGE_LOCAL_DIR", "./uploads"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		GCSCredentials:  os.Getenv("GCS_CREDENTIALS_JSON"),
		PublicBaseURL:   strings.TrimRight(envOr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		FileTokenSecret: os.Getenv("FILE_TOKEN_SECRET"),
		FileTokenTTL:    time.Duration(envInt("FILE_TOKEN_TTL_MINUTES", 60)) * time.Minute,

		AIValidationURL:     os.Getenv("AI_VALIDATION_URL"),
		AIValidationTimeout: time.Duration(envInt("AI_VALIDATION_TIMEOUT_SECONDS", 60)) * time.Second,

		UndoWindow:       time.Duration(envInt("UNDO_WINDOW_SECONDS", 30)) * time.Second,
		SchedulerEnabled: envBool("SCHEDULER_ENABLED", true),

		PubSubProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:     os.Getenv("PUBSUB_TOPIC"),

		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		NotifySMSTo:       os.Getenv("NOTIFY_SMS_TO"),
	}

	if cfg.DBDriver == "postgres" && cfg.DBURL == "" {
		log.Fatal("DB_URL is not set")
	}
	if cfg.DBDriver == "sqlite" && cfg.DBURL == "" {
		cfg.DBURL = "customsdesk.db"
	}
	if cfg.FileTokenSecret == "" {
		log.Println("FILE_TOKEN_SECRET not set; using a random per-process secret")
	}

	return cfg
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
