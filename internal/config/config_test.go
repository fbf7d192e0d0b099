package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSRFKey = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDRESS", "APP_ENV", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"SERVER_IDLE_TIMEOUT", "MAX_UPLOAD_MB", "AI_BACKEND", "JAMAI_TIMEOUT",
		"JAMAI_CT_CONTEXT_COLUMN", "OPENAI_API_KEY", "R2_BUCKET_NAME", "R2_PUBLIC_BASE_URL", "DATABASE_URL",
		"SNAPSHOT_SECRET", "SECURE_COOKIES", "SESSION_TTL", "BILINGUAL_MARKER",
		"HOSPITAL_KEYWORD", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("CSRF_KEY", testCSRFKey)
	t.Setenv("JAMAI_PROJECT_ID", "proj_test")
	t.Setenv("JAMAI_API_KEY", "jamai_pat_test")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int64(25), cfg.Server.MaxUploadMB)
	assert.Equal(t, BackendJamAI, cfg.Platform.Backend)
	assert.Equal(t, 120*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, "ct_scan", cfg.Platform.CTTable)
	assert.Equal(t, "transciption", cfg.Platform.AudioTranscriptColumn)
	assert.Empty(t, cfg.Platform.ContextColumn)
	assert.Equal(t, "[BM]", cfg.Referral.Marker)
	assert.Equal(t, "hospital", cfg.Referral.HospitalKeyword)
	assert.Equal(t, "Dr. Ali", cfg.Referral.Physician)
	assert.Equal(t, "1023", cfg.Referral.DefaultPatientID)
	assert.Equal(t, 12*time.Hour, cfg.Security.SessionTTL)
	assert.False(t, cfg.Security.SecureCookies)
	assert.False(t, cfg.UsesDatabase())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("AI_BACKEND", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://localhost/ct")
	t.Setenv("SNAPSHOT_SECRET", "a-long-enough-secret")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CSRF_TRUSTED_ORIGINS", "clinic.example.my localhost:8080")
	t.Setenv("R2_BUCKET_NAME", "scans")
	t.Setenv("R2_PUBLIC_BASE_URL", "https://scans.example.my")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Security.SecureCookies)
	assert.Equal(t, BackendOpenAI, cfg.Platform.Backend)
	assert.True(t, cfg.UsesDatabase())
	assert.Equal(t, 30*time.Minute, cfg.Security.SessionTTL)
	assert.Equal(t, []string{"clinic.example.my", "localhost:8080"}, cfg.Security.TrustedOrigins)
	assert.Equal(t, "https://scans.example.my", cfg.Storage.PublicBaseURL)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing csrf key", map[string]string{"CSRF_KEY": ""}, "CSRF_KEY is required"},
		{"short csrf key", map[string]string{"CSRF_KEY": "short"}, "at least 32 characters"},
		{"missing jamai token", map[string]string{"JAMAI_API_KEY": ""}, "JAMAI_API_KEY is required"},
		{"openai without key", map[string]string{"AI_BACKEND": "openai"}, "OPENAI_API_KEY is required"},
		{"unknown backend", map[string]string{"AI_BACKEND": "bedrock"}, "AI_BACKEND must be one of"},
		{"database without secret", map[string]string{"DATABASE_URL": "postgres://x"}, "SNAPSHOT_SECRET"},
		{"bucket without public url", map[string]string{"R2_BUCKET_NAME": "scans"}, "R2_PUBLIC_BASE_URL is required"},
		{"unknown env", map[string]string{"APP_ENV": "qa"}, "APP_ENV must be one of"},
		{"bad duration", map[string]string{"SESSION_TTL": "soon"}, "invalid SESSION_TTL"},
		{"bad upload size", map[string]string{"MAX_UPLOAD_MB": "lots"}, "invalid MAX_UPLOAD_MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CSRF_KEY", "")

	assert.Panics(t, func() { MustLoad() })
}
