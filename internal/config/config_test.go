package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  env: production
  port: 9090
storage:
  driver: memory
jwt:
  alg: HS256
  hs_secret: from-file
ws:
  ping_interval_seconds: 10
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAndDerivedDurations(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, c.App.Port)
	assert.Equal(t, ":9090", c.App.Addr())
	assert.False(t, c.Dev())
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, 10*time.Second, c.PingInterval)
	assert.Equal(t, 12*time.Second, c.PongWait)
	assert.Equal(t, 10*time.Second, c.WriteDeadline)
	assert.Equal(t, 15*time.Second, c.ShutdownTimeout)
	assert.Equal(t, 10, c.Uploads.MaxFiles)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("APP_JWT_HS_SECRET", "from-env")
	t.Setenv("APP_REDIS_ADDR", "localhost:6379")
	t.Setenv("APP_KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWT.HSSecret)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("APP_JWT_HS_SECRET", "s")
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.App.Port)
	assert.Equal(t, "mongo", c.Storage.Driver)
}

func TestValidate(t *testing.T) {
	c := &Config{}
	c.Storage.Driver = "memory"
	c.JWT.Alg = "RS256"
	c.Uploads.MaxFiles = 10
	c.WS.PingIntervalSeconds = 1
	c.WS.WriteDeadlineSeconds = 1
	assert.ErrorContains(t, c.Validate(), "public_key_path")

	c.JWT.PublicKeyPath = "/keys/pub.pem"
	assert.NoError(t, c.Validate())

	c.Storage.Driver = "postgres"
	assert.ErrorContains(t, c.Validate(), "storage.driver")
}
