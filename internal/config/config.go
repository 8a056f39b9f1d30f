package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port       int    `env:"PORT" env-default:"8080"`
	DataPath   string `env:"DATA_PATH" env-default:"./data"`
	UploadPath string `env:"UPLOAD_PATH"`
	DBPath     string `env:"DB_PATH"`
	CachePath  string `env:"CACHE_PATH"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	WhisperModel string `env:"WHISPER_MODEL" env-default:"whisper-1"`
	SummaryModel string `env:"SUMMARY_MODEL" env-default:"gpt-4o-mini"`

	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" env-default:"120s"`
	SummarizeTimeout  time.Duration `env:"SUMMARIZE_TIMEOUT" env-default:"60s"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" env-default:"104857600"`

	// UploadRateLimit caps uploads per client IP per minute. External calls
	// are billed per request, so this endpoint gets its own limit.
	UploadRateLimit int `env:"UPLOAD_RATE_LIMIT" env-default:"30"`

	CORSOrigins []string `env:"CORS_ORIGINS" env-default:"*"`
}

func MustLoad() *Config {
	// Optional .env file for local development; real deployments set env vars.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}

	if cfg.UploadPath == "" {
		cfg.UploadPath = cfg.DataPath + "/uploads"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = cfg.DataPath + "/meetscribe.db"
	}
	if cfg.CachePath == "" {
		cfg.CachePath = cfg.DataPath + "/cache"
	}

	return &cfg
}
