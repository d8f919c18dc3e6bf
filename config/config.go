package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env            string `envconfig:"ENV" default:"production"`
	Port           string `envconfig:"PORT" default:"5200"`
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Token the gateway presents on every request.
	ServiceToken string `envconfig:"TREND_SERVICE_TOKEN" required:"true"`

	// Hosted backend (REST/RPC)
	BackendURL     string        `envconfig:"SUPABASE_URL" required:"true"`
	BackendKey     string        `envconfig:"SUPABASE_SERVICE_KEY" required:"true"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"8s"`

	// Object storage (R2 / S3 compatible). Empty account id falls back to local disk.
	StorageAccountID string `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	StorageEndpoint  string `envconfig:"STORAGE_ENDPOINT"`
	StorageKeyID     string `envconfig:"R2_ACCESS_KEY_ID"`
	StorageSecret    string `envconfig:"R2_ACCESS_KEY_SECRET"`
	StorageBucket    string `envconfig:"R2_BUCKET_NAME" default:"trend-images"`
	CDNBaseURL       string `envconfig:"CDN_BASE_URL"`
	UploadDir        string `envconfig:"UPLOAD_DIR" default:"uploads"`

	// Scoring and payment
	QualityPolicy      string  `envconfig:"QUALITY_POLICY" default:"weighted"`
	ScrollBaseRate     float64 `envconfig:"SCROLL_BASE_RATE" default:"0.10"`
	ValidationBaseRate float64 `envconfig:"VALIDATION_BASE_RATE" default:"0.05"`
	MaxSubmissionPay   float64 `envconfig:"MAX_SINGLE_SUBMISSION" default:"3.00"`

	// Streaks
	StreakWindow    time.Duration `envconfig:"STREAK_WINDOW" default:"3m"`
	StreakTimeout   time.Duration `envconfig:"STREAK_TIMEOUT" default:"60s"`
	TrendsForStreak int           `envconfig:"TRENDS_FOR_STREAK" default:"3"`

	// Workers
	EnterprisePollInterval time.Duration `envconfig:"ENTERPRISE_POLL_INTERVAL" default:"10s"`
	ProfileSyncInterval    time.Duration `envconfig:"PROFILE_SYNC_INTERVAL" default:"1m"`

	RequestsPerMinute float64 `envconfig:"REQUESTS_PER_MINUTE" default:"120"`
	RequestBurst      int     `envconfig:"REQUEST_BURST" default:"20"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
