// Package config loads the process-wide settings of spec §4.9 from the
// environment, with an optional Secrets Manager bootstrap for credentials,
// mirroring the teacher's env-var-driven Config/DefaultConfig shape.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// Config holds every setting in spec §4.9's table plus the record-store
// connection details required by C1.
type Config struct {
	Port int

	DataRoot string

	RecordStoreURL      string
	RecordStoreEmail    string
	RecordStorePassword string

	MaxQueueSize        int
	RateLimitPerDay      int
	MaxConcurrentJobs    int
	PollInterval         time.Duration
	JobExpiry            time.Duration
	QualityProbeMinChars int
	QualityProbeTimeout  time.Duration
	ExpiryReapInterval   time.Duration

	QualityProbeURL string

	// ScriptModel selects the Script stage's LLM (spec §B: Claude is
	// primary, Gemini the fallback): "haiku"/"sonnet" dispatch to
	// anthropic-sdk-go, "gemini-flash"/"gemini-pro" to the Gemini REST path.
	ScriptModel string
	// TTSProvider selects the Audio stage's synthesis backend: "elevenlabs"
	// or "polly".
	TTSProvider string

	SecretPrefix string
}

// Load reads a .env file if present (local dev parity; never required in
// production) and then builds a Config from the environment, applying
// defaults from spec §4.9.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:     envInt("PORT", 8080),
		DataRoot: envOr("DATA_ROOT", "/app/data"),

		RecordStoreURL:      os.Getenv("RECORD_STORE_URL"),
		RecordStoreEmail:    os.Getenv("RECORD_STORE_ADMIN_EMAIL"),
		RecordStorePassword: os.Getenv("RECORD_STORE_ADMIN_PASSWORD"),

		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 10),
		RateLimitPerDay:      envInt("RATE_LIMIT_PER_DAY", 5),
		MaxConcurrentJobs:    envInt("MAX_CONCURRENT_JOBS", 2),
		PollInterval:         envSeconds("POLL_INTERVAL_SECONDS", 5),
		JobExpiry:            envHours("JOB_EXPIRY_HOURS", 24),
		QualityProbeMinChars: envInt("QUALITY_PROBE_MIN_CHARS", 200),
		QualityProbeTimeout:  envSeconds("QUALITY_PROBE_TIMEOUT_SECONDS", 30),
		ExpiryReapInterval:   envSeconds("EXPIRY_REAP_INTERVAL_SECONDS", 3600),

		QualityProbeURL: os.Getenv("QUALITY_PROBE_URL"),

		ScriptModel: envOr("SCRIPT_MODEL", "haiku"),
		TTSProvider: envOr("TTS_PROVIDER", "elevenlabs"),

		SecretPrefix: envOr("SECRET_PREFIX", ""),
	}

	if cfg.RecordStoreURL == "" {
		return Config{}, fmt.Errorf("RECORD_STORE_URL is required")
	}
	if cfg.RecordStoreEmail == "" || cfg.RecordStorePassword == "" {
		return Config{}, fmt.Errorf("RECORD_STORE_ADMIN_EMAIL and RECORD_STORE_ADMIN_PASSWORD are required")
	}

	return cfg, nil
}

// LoadSecrets fetches API keys for the pipeline stages from Secrets Manager
// when cfg.SecretPrefix is set, falling back silently to whatever is
// already in the environment. Mirrors the teacher's async loadSecrets: it
// is safe to call in a background goroutine so it never blocks server
// startup.
func LoadSecrets(ctx context.Context, prefix string, logger *slog.Logger) error {
	if prefix == "" {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	client := secretsmanager.NewFromConfig(awsCfg)

	secrets := map[string]string{
		"ANTHROPIC_API_KEY":  prefix + "ANTHROPIC_API_KEY",
		"ELEVENLABS_API_KEY": prefix + "ELEVENLABS_API_KEY",
		"JINA_API_KEY":       prefix + "JINA_API_KEY",
	}

	for envVar, secretID := range secrets {
		if os.Getenv(envVar) != "" {
			continue
		}
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			os.Setenv(envVar, *result.SecretString)
			logger.Info("loaded secret", "secret_id", secretID)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(envInt(key, fallbackSeconds)) * time.Second
}

func envHours(key string, fallbackHours int) time.Duration {
	return time.Duration(envInt(key, fallbackHours)) * time.Hour
}
