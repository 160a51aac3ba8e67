package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/drawroom/config"
)

func envOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom("", "", envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
	assert.Equal(t, "8080", cfg.HostPort)
	assert.Equal(t, config.StoreDynamo, cfg.StoreBackend)
}

func TestLoadFrom_Precedence(t *testing.T) {
	yamlPath := writeFile(t, "drawroom.yaml", `
host_port: "9000"
store_backend: postgres
postgres_dsn: postgres://yaml
redis_endpoint: yaml-redis:6379
allowed_origins:
  - https://a.example
`)
	dotenvPath := writeFile(t, "config.env", "REDIS_ENDPOINT=dotenv-redis:6379\nJWT_SECRET=ZG90ZW52\nHOST_PORT=9100\n")

	cfg, err := config.LoadFrom(yamlPath, dotenvPath, envOf(map[string]string{
		"HOST_PORT": "9200",
		"DEV_MODE":  "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9200", cfg.HostPort)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "dotenv-redis:6379", cfg.RedisEndpoint)
	assert.Equal(t, "ZG90ZW52", cfg.JWTSecret)
	assert.Equal(t, config.StorePostgres, cfg.StoreBackend)
	assert.Equal(t, "postgres://yaml", cfg.PostgresDSN)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowedOrigins)
}

func TestLoadFrom_MissingDotenvIsIgnored(t *testing.T) {
	_, err := config.LoadFrom("", filepath.Join(t.TempDir(), "config.env"), envOf(nil))
	assert.NoError(t, err)
}

func TestLoadFrom_Errors(t *testing.T) {
	_, err := config.LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"), "", envOf(nil))
	assert.Error(t, err)

	badYaml := writeFile(t, "bad.yaml", "host_port: [\n")
	_, err = config.LoadFrom(badYaml, "", envOf(nil))
	assert.Error(t, err)

	_, err = config.LoadFrom("", "", envOf(map[string]string{"DEV_MODE": "maybe"}))
	assert.Error(t, err)
}

func TestLoadFrom_AllowedOriginsList(t *testing.T) {
	cfg, err := config.LoadFrom("", "", envOf(map[string]string{"ALLOWED_ORIGINS": " https://a.example, ,https://b.example"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.OriginAllowed("https://b.example"))
	assert.False(t, cfg.OriginAllowed("https://c.example"))

	assert.True(t, config.Defaults().OriginAllowed("anything"))
}

func TestValidate(t *testing.T) {
	cfg := config.Defaults()
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "not base64!"
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "c2VjcmV0"
	require.NoError(t, cfg.Validate())
	secret, err := cfg.JWTSecretBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), secret)

	cfg.StoreBackend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg.StoreBackend = config.StorePostgres
	assert.Error(t, cfg.Validate())
	cfg.PostgresDSN = "postgres://localhost/drawroom"
	assert.NoError(t, cfg.Validate())
}
