package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: localhost
    database: marketplace
    user: marketplace
  redis:
    address: localhost:6379
auth:
  mode: header
  admin_email_suffixes: ["@corp.example.com"]
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 4, cfg.Notifications.DispatchWorkers)
	assert.Equal(t, "approved-listings", cfg.Search.Index)
	assert.Equal(t, []string{"@corp.example.com"}, cfg.Auth.AdminEmailSuffixes)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_MARKETPLACE_DB_HOST", "db.internal")
	path := writeConfig(t, `
database:
  postgres:
    host: "${TEST_MARKETPLACE_DB_HOST}"
    database: marketplace
    user: marketplace
  redis:
    address: localhost:6379
auth:
  mode: header
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_AdminSuffixesFromEnv(t *testing.T) {
	t.Setenv("ADMIN_EMAIL_SUFFIXES", "@a.example.com, @b.example.com")
	path := writeConfig(t, `
database:
  postgres:
    host: localhost
    database: marketplace
    user: marketplace
  redis:
    address: localhost:6379
auth:
  mode: header
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"@a.example.com", "@b.example.com"}, cfg.Auth.AdminEmailSuffixes)
}

func TestLoadFromFile_RedisIsOptional(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: localhost
    database: marketplace
    user: marketplace
auth:
  mode: header
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Redis.Address)
}

func TestLoadFromFile_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing postgres host",
			body: `
database:
  postgres:
    database: marketplace
    user: marketplace
  redis:
    address: localhost:6379
auth:
  mode: header
`,
			wantErr: "database.postgres.host is required",
		},
		{
			name: "keycloak mode without url",
			body: `
database:
  postgres:
    host: localhost
    database: marketplace
    user: marketplace
  redis:
    address: localhost:6379
auth:
  mode: keycloak
`,
			wantErr: "auth.keycloak.url",
		},
		{
			name: "unknown auth mode",
			body: `
database:
  postgres:
    host: localhost
    database: marketplace
    user: marketplace
  redis:
    address: localhost:6379
auth:
  mode: basic
`,
			wantErr: "auth.mode must be keycloak or header",
		},
		{
			name: "sns without topic",
			body: `
database:
  postgres:
    host: localhost
    database: marketplace
    user: marketplace
  redis:
    address: localhost:6379
auth:
  mode: header
integrations:
  aws:
    sns:
      enabled: true
`,
			wantErr: "topic_arn is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"review-listing": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.Equal(t, 2, GetWorkerConfig(cfg, "review-listing").MaxJobsActive)
	assert.False(t, GetWorkerConfig(cfg, "review-listing").Enabled)

	def := GetWorkerConfig(cfg, "unknown")
	assert.True(t, def.Enabled)
	assert.Equal(t, 5, def.MaxJobsActive)
}
