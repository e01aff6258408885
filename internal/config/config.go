package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	ChatModel    string `envconfig:"CHAT_MODEL"`

	// Speech-to-text fallback for videos without captions. Needs
	// yt-dlp on the host and an OpenAI key for Whisper.
	EnableSpeechFallback bool          `envconfig:"ENABLE_SPEECH_FALLBACK" default:"false"`
	YTDLPPath            string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	TempDir              string        `envconfig:"TEMP_DIR" default:"/tmp/videokb"`
	DownloadTimeout      time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"5m"`
	TranscribeTimeout    time.Duration `envconfig:"TRANSCRIBE_TIMEOUT" default:"10m"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// Optional archive of raw caption payloads.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"videokb-captions"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// Bootstrap: create initial owner and API key on startup
	InitOwnerName string `envconfig:"INIT_OWNER_NAME"`
	InitAPIKey    string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("VIDEOKB", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
