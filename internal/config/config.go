package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	AdminJWTSecret     string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Oracle (language model) configuration
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string
	LLMTimeout     time.Duration

	// Clinic defaults
	ClinicTimezone            string
	DefaultAppointmentMinutes int

	// Reminders
	ReminderCooldownDays    int
	ReminderSendInterval    time.Duration
	ReminderSendRate        float64
	ReminderSendConcurrency int
	DailySummaryHour        int

	// Inbound chat transport
	UseMemoryQueue        bool
	InboundQueueURL       string
	WorkerCount           int
	TelegramBotToken      string
	TelegramWebhookSecret string

	// E-mail
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),

		ClinicTimezone:            getEnv("CLINIC_TIMEZONE", "Europe/Istanbul"),
		DefaultAppointmentMinutes: getEnvAsInt("DEFAULT_APPOINTMENT_MINUTES", 30),

		ReminderCooldownDays:    getEnvAsInt("REMINDER_COOLDOWN_DAYS", 30),
		ReminderSendInterval:    getEnvAsDuration("REMINDER_SEND_INTERVAL", 24*time.Hour),
		ReminderSendRate:        getEnvAsFloat("REMINDER_SEND_RATE", 1),
		ReminderSendConcurrency: getEnvAsInt("REMINDER_SEND_CONCURRENCY", 1),
		DailySummaryHour:        getEnvAsInt("DAILY_SUMMARY_HOUR", 20),

		UseMemoryQueue:        getEnvAsBool("USE_MEMORY_QUEUE", true),
		InboundQueueURL:       getEnv("INBOUND_QUEUE_URL", ""),
		WorkerCount:           getEnvAsInt("WORKER_COUNT", 2),
		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Klinik Asistan"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
