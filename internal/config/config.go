package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends the analysis pipeline can run against.
const (
	BackendJamAI  = "jamai"
	BackendOpenAI = "openai"
)

type Config struct {
	// Server config
	Server ServerConfig

	// inference platform config
	Platform PlatformConfig

	// OpenAI backend config
	OpenAI OpenAIConfig

	// object storage for staged uploads
	Storage StorageConfig

	// letter and text processing settings
	Referral ReferralConfig

	// database config, optional
	Database DatabaseConfig

	// CSRF and session cookie config
	Security SecurityConfig

	Log LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string
	Environment  string // development, staging, production
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxUploadMB  int64
}

// PlatformConfig selects the inference backend and holds the JamAI Base
// project settings.
type PlatformConfig struct {
	Backend   string
	BaseURL   string
	ProjectID string
	Token     string
	Timeout   time.Duration

	CTTable         string
	ImageColumn     string
	ContextColumn   string
	FindingsColumn  string
	DiagnosisColumn string
	SOPColumn       string

	AudioTable            string
	AudioInputColumn      string
	AudioTranscriptColumn string
}

// OpenAIConfig holds the OpenAI backend settings.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	VisionModel     string
	TranscribeModel string
}

// StorageConfig points at an S3 compatible bucket. Empty Bucket disables it.
type StorageConfig struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	Prefix        string
}

// ReferralConfig holds the clinic profile and text parsing settings.
type ReferralConfig struct {
	Marker           string
	HospitalKeyword  string
	Physician        string
	Clinic           string
	DefaultPatientID string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	CSRFKey           string
	TrustedOrigins    []string
	SessionCookieName string
	SessionTTL        time.Duration
	SecureCookies     bool // true in production
	SnapshotSecret    string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// UsesDatabase reports whether snapshots are kept in Postgres.
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	cfg.Server = ServerConfig{
		Address:     getEnvOrDefault("SERVER_ADDRESS", ":8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
	}
	if cfg.Server.ReadTimeout, err = getDuration("SERVER_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	// analysis requests wait on the remote model
	if cfg.Server.WriteTimeout, err = getDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	maxUpload, err := strconv.ParseInt(getEnvOrDefault("MAX_UPLOAD_MB", "25"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}
	cfg.Server.MaxUploadMB = maxUpload

	cfg.Platform = PlatformConfig{
		Backend:   strings.ToLower(getEnvOrDefault("AI_BACKEND", BackendJamAI)),
		BaseURL:   getEnvOrDefault("JAMAI_BASE_URL", "https://api.jamaibase.com"),
		ProjectID: os.Getenv("JAMAI_PROJECT_ID"),
		Token:     os.Getenv("JAMAI_API_KEY"),

		CTTable:         getEnvOrDefault("JAMAI_CT_TABLE", "ct_scan"),
		ImageColumn:     getEnvOrDefault("JAMAI_CT_IMAGE_COLUMN", "ct_scan_result"),
		ContextColumn:   os.Getenv("JAMAI_CT_CONTEXT_COLUMN"),
		FindingsColumn:  getEnvOrDefault("JAMAI_CT_FINDINGS_COLUMN", "description"),
		DiagnosisColumn: getEnvOrDefault("JAMAI_CT_DIAGNOSIS_COLUMN", "diagnosis"),
		SOPColumn:       getEnvOrDefault("JAMAI_CT_SOP_COLUMN", "malaysia_referral_SOP"),

		AudioTable:            getEnvOrDefault("JAMAI_AUDIO_TABLE", "audi_feed"),
		AudioInputColumn:      getEnvOrDefault("JAMAI_AUDIO_INPUT_COLUMN", "doc_notes"),
		AudioTranscriptColumn: getEnvOrDefault("JAMAI_AUDIO_TRANSCRIPT_COLUMN", "transciption"),
	}
	if cfg.Platform.Timeout, err = getDuration("JAMAI_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}

	cfg.OpenAI = OpenAIConfig{
		APIKey:          os.Getenv("OPENAI_API_KEY"),
		BaseURL:         os.Getenv("OPENAI_BASE_URL"),
		VisionModel:     getEnvOrDefault("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		TranscribeModel: getEnvOrDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
	}

	cfg.Storage = StorageConfig{
		Endpoint:      os.Getenv("R2_ENDPOINT"),
		Region:        getEnvOrDefault("R2_REGION", "auto"),
		AccessKey:     os.Getenv("R2_ACCESS_KEY"),
		SecretKey:     os.Getenv("R2_SECRET_KEY"),
		Bucket:        os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL: os.Getenv("R2_PUBLIC_BASE_URL"),
		Prefix:        getEnvOrDefault("R2_PREFIX", "ct-referral"),
	}

	cfg.Referral = ReferralConfig{
		Marker:           getEnvOrDefault("BILINGUAL_MARKER", "[BM]"),
		HospitalKeyword:  getEnvOrDefault("HOSPITAL_KEYWORD", "hospital"),
		Physician:        getEnvOrDefault("REFERRING_PHYSICIAN", "Dr. Ali"),
		Clinic:           getEnvOrDefault("CLINIC_NAME", "Klinik Desa AI"),
		DefaultPatientID: getEnvOrDefault("DEFAULT_PATIENT_ID", "1023"),
	}

	cfg.Database = DatabaseConfig{
		URL: os.Getenv("DATABASE_URL"),
	}

	secure, err := strconv.ParseBool(getEnvOrDefault("SECURE_COOKIES", strconv.FormatBool(cfg.Server.Environment == "production")))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURE_COOKIES: %w", err)
	}
	cfg.Security = SecurityConfig{
		CSRFKey:           os.Getenv("CSRF_KEY"),
		TrustedOrigins:    strings.Fields(os.Getenv("CSRF_TRUSTED_ORIGINS")),
		SessionCookieName: getEnvOrDefault("SESSION_COOKIE_NAME", "ct_referral_session"),
		SecureCookies:     secure,
		SnapshotSecret:    os.Getenv("SNAPSHOT_SECRET"),
	}
	if cfg.Security.SessionTTL, err = getDuration("SESSION_TTL", 12*time.Hour); err != nil {
		return nil, err
	}

	cfg.Log = LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present and valid.
func (c *Config) validate() error {
	var errs []error

	// CSRF key must be set and sufficiently long
	if c.Security.CSRFKey == "" {
		errs = append(errs, errors.New("CSRF_KEY is required"))
	} else if len(c.Security.CSRFKey) < 32 {
		errs = append(errs, errors.New("CSRF_KEY must be at least 32 characters"))
	}

	switch c.Platform.Backend {
	case BackendJamAI:
		if c.Platform.ProjectID == "" {
			errs = append(errs, errors.New("JAMAI_PROJECT_ID is required for the jamai backend"))
		}
		if c.Platform.Token == "" {
			errs = append(errs, errors.New("JAMAI_API_KEY is required for the jamai backend"))
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("AI_BACKEND must be one of: jamai, openai (got: %s)", c.Platform.Backend))
	}

	// The platform fetches staged uploads by their public URL
	if c.Storage.Bucket != "" && c.Storage.PublicBaseURL == "" {
		errs = append(errs, errors.New("R2_PUBLIC_BASE_URL is required when R2_BUCKET_NAME is set"))
	}

	// Snapshots are encrypted at rest
	if c.UsesDatabase() && len(c.Security.SnapshotSecret) < 16 {
		errs = append(errs, errors.New("SNAPSHOT_SECRET of at least 16 characters is required when DATABASE_URL is set"))
	}

	if c.Referral.Marker == "" {
		errs = append(errs, errors.New("BILINGUAL_MARKER must not be empty"))
	}

	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.Security.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	// Validate environment is a known value
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.Server.Environment] {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of: development, staging, production (got: %s)", c.Server.Environment))
	}

	// Combine all errors
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}

	return nil
}

// getEnvOrDefault returns the .env value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// MustLoad is like Load but panics on error.
// Used in main() where its required to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
