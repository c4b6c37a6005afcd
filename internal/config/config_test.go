package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("CLINIC_TIMEZONE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("REMINDER_COOLDOWN_DAYS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.ClinicTimezone != "Europe/Istanbul" {
		t.Fatalf("expected Istanbul default timezone, got %s", cfg.ClinicTimezone)
	}
	if cfg.DefaultAppointmentMinutes != 30 {
		t.Fatalf("expected 30 minute appointments, got %d", cfg.DefaultAppointmentMinutes)
	}
	if cfg.ReminderCooldownDays != 30 {
		t.Fatalf("expected 30 day cooldown, got %d", cfg.ReminderCooldownDays)
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Fatalf("expected 20s oracle timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://panel.example.com, ,https://admin.example.com")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("REMINDER_SEND_RATE", "2.5")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("EMAIL_PROVIDER", " SendGrid ")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.LLMTimeout)
	}
	if cfg.ReminderSendRate != 2.5 {
		t.Fatalf("expected send rate override, got %v", cfg.ReminderSendRate)
	}
	if cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue disabled")
	}
	if cfg.EmailProvider != "sendgrid" {
		t.Fatalf("expected normalized provider, got %q", cfg.EmailProvider)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("REMINDER_SEND_INTERVAL", "daily")
	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected default worker count, got %d", cfg.WorkerCount)
	}
	if cfg.ReminderSendInterval != 24*time.Hour {
		t.Fatalf("expected default interval, got %s", cfg.ReminderSendInterval)
	}
}
