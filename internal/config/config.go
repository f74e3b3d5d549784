package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	AppBaseURL       string
	Mode             string
	Environment      string
	AuthCookieSecure bool
	DefaultOrgID     int64

	OTLPEndpoint string

	Cloud     CloudConfig
	Bootstrap BootstrapConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Storage   StorageConfig
	Analysis  AnalysisConfig
	LLM       LLMConfig
	Search    SearchConfig
	SMTP      SMTPConfig
	Alert     AlertConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
}

// BootstrapConfig controls startup seeding for self-hosted installs.
type BootstrapConfig struct {
	EnsureDefaultOrgAndUser bool
	AllowSignUp             bool
	AllowAssignOrg          bool
	AutoAssignOrgID         string
	AutoAssignOrgRole       string
	AllowAssignUserRole     string
}

type CloudConfig struct {
	OrganizationID   string
	OrganizationName string
	Metrics          CloudMetricsConfig
}

type CloudMetricsConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
}

// StorageConfig selects the document object-storage backend.
type StorageConfig struct {
	Driver          string // "local" or "gcs"
	LocalDir        string
	GCSBucket       string
	GCSCredentials  string // raw service-account JSON, optional (ADC otherwise)
	GCSUploadPrefix string
}

// AnalysisConfig configures the document-analysis provider.
type AnalysisConfig struct {
	Provider      string // "azure" or "fake"
	AzureEndpoint string
	AzureAPIKey   string
	Preprocess    bool
}

// LLMConfig configures the chat-completions provider used for
// HS-code suggestion and CV screening.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// SearchConfig configures the lead-sourcing search provider.
type SearchConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// AlertConfig configures failure notifications.
type AlertConfig struct {
	WebhookURL string
	Email      string
}

// PipelineConfig controls the background document pipeline and screening runner.
type PipelineConfig struct {
	Enabled           bool
	RunInterval       time.Duration
	BatchSize         int
	ScreeningInterval time.Duration
	ScreeningBatch    int
}

// RateLimitConfig controls org-level API throttling.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	APIRate       float64
	APIBurst      int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	mode := normalizeMode(getenv("APP_MODE", ModeOSS))
	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "corematch"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		AppBaseURL:       strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),
		Mode:             mode,
		Environment:      environment,
		AuthCookieSecure: authCookieSecure,
		DefaultOrgID:     getenvInt64("DEFAULT_ORG", 0),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),
		Cloud: CloudConfig{
			OrganizationID:   strings.TrimSpace(getenv("CLOUD_ORGANIZATION_ID", "")),
			OrganizationName: getenv("CLOUD_ORGANIZATION_NAME", ""),
			Metrics: CloudMetricsConfig{
				Enabled:   getenvBool("CLOUD_METRICS_ENABLED", true),
				Exporter:  strings.ToLower(getenv("CLOUD_METRICS_EXPORTER", "")),
				Endpoint:  strings.TrimSpace(getenv("CLOUD_METRICS_ENDPOINT", "")),
				AuthToken: strings.TrimSpace(getenv("CLOUD_METRICS_AUTH_TOKEN", "")),
			},
		},
		Bootstrap: BootstrapConfig{
			EnsureDefaultOrgAndUser: getenvBool("BOOTSTRAP_DEFAULT_ORG_AND_USER", true),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "corematch"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 30)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 5)),
		Storage: StorageConfig{
			Driver:          strings.ToLower(getenv("STORAGE_DRIVER", "local")),
			LocalDir:        getenv("STORAGE_LOCAL_DIR", "data/documents"),
			GCSBucket:       strings.TrimSpace(getenv("GCS_BUCKET", "")),
			GCSCredentials:  strings.TrimSpace(getenv("GCS_CREDENTIALS_JSON", "")),
			GCSUploadPrefix: getenv("GCS_UPLOAD_PREFIX", "documents"),
		},
		Analysis: AnalysisConfig{
			Provider:      strings.ToLower(getenv("ANALYSIS_PROVIDER", "fake")),
			AzureEndpoint: strings.TrimSpace(getenv("AZURE_VISION_ENDPOINT", "")),
			AzureAPIKey:   strings.TrimSpace(getenv("AZURE_VISION_KEY", "")),
			Preprocess:    getenvBool("ANALYSIS_PREPROCESS", true),
		},
		LLM: LLMConfig{
			BaseURL: getenv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  strings.TrimSpace(getenv("LLM_API_KEY", "")),
			Model:   getenv("LLM_MODEL", "gpt-4o-mini"),
			Timeout: getenvDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Search: SearchConfig{
			BaseURL: getenv("SEARCH_BASE_URL", "https://api.exa.ai"),
			APIKey:  strings.TrimSpace(getenv("SEARCH_API_KEY", "")),
			Timeout: getenvDuration("SEARCH_TIMEOUT", 15*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			Port:     int(getenvInt64("SMTP_PORT", 587)),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "noreply@corematch.local"),
		},
		Alert: AlertConfig{
			WebhookURL: strings.TrimSpace(getenv("ALERT_WEBHOOK_URL", "")),
			Email:      strings.TrimSpace(getenv("ALERT_EMAIL", "")),
		},
		Pipeline: PipelineConfig{
			Enabled:           getenvBool("PIPELINE_ENABLED", true),
			RunInterval:       getenvDuration("PIPELINE_RUN_INTERVAL", 15*time.Second),
			BatchSize:         int(getenvInt64("PIPELINE_BATCH_SIZE", 10)),
			ScreeningInterval: getenvDuration("SCREENING_RUN_INTERVAL", 30*time.Second),
			ScreeningBatch:    int(getenvInt64("SCREENING_BATCH_SIZE", 5)),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       int(getenvInt64("REDIS_DB", 0)),
			APIRate:       getenvFloat("RATE_LIMIT_API_RATE", 20),
			APIBurst:      int(getenvInt64("RATE_LIMIT_API_BURST", 40)),
		},
	}

	return cfg
}

const (
	ModeOSS        = "oss"
	ModeCloud      = "cloud"
	ModeStandalone = "standalone"
)

func (c Config) IsCloud() bool {
	return c.Mode == ModeCloud
}

func normalizeMode(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case ModeCloud:
		return ModeCloud
	case ModeStandalone, ModeOSS:
		return ModeOSS
	default:
		return ModeOSS
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
