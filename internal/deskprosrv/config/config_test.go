package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"1h", time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"h", 0, true},
		{"10x", 0, true},
		{"xh", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTokenDuration(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		assert.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestLoadConfigFromString(t *testing.T) {
	defer SetConfig(defaultConfig())
	t.Setenv("DESKPRO_TEST_NEON_KEY", "neon-secret")

	err := LoadConfigFromString(`
server_port = "9000"
tenant_dev_mode = true
access_token_validity = "2h"

[neon]
api_key = "${DESKPRO_TEST_NEON_KEY}"
project_id = "proj-1"

[dev_tenant_db]
host = "localhost"
port = 5433
dbname = "devtenant"
`)
	require.NoError(t, err)
	c := Config()
	assert.Equal(t, "9000", c.ServerPort)
	assert.True(t, c.TenantDevMode)
	assert.Equal(t, 2*time.Hour, c.AccessTokenTTL())
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL())
	assert.Equal(t, "neon-secret", c.Neon.APIKey)
	assert.Equal(t, "proj-1", c.Neon.ProjectID)
	assert.Equal(t, DefaultNeonBaseURL, c.Neon.BaseURL)
	assert.Equal(t, DefaultNeonTimeout, c.NeonTimeout())
	assert.Equal(t, 5433, c.DevTenantDB.Port)
}

func TestProductionRequiresSecrets(t *testing.T) {
	defer SetConfig(defaultConfig())
	err := LoadConfigFromString(`production = true`)
	assert.Error(t, err)

	err = LoadConfigFromString(`
production = true
tenant_dev_mode = true
jwt_secret_key = "a"
field_encryption_key = "b"
admin_api_key = "c"
`)
	assert.ErrorContains(t, err, "tenant_dev_mode")
}
