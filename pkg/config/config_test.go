package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, []string{"fred", "file", "synthetic"}, c.Pipeline.Providers)
	assert.Equal(t, int64(42), c.Pipeline.Seed)
	assert.Equal(t, "daily", c.Pipeline.Frequency)
	assert.Equal(t, 2*time.Minute, c.Redis.LockTTL)
	assert.Equal(t, time.Minute, c.ClickHouse.MaxExecTime)
	assert.False(t, c.Pipeline.StrictSinks)
	assert.Len(t, c.FRED.Series, 4)
	require.Len(t, c.Pipeline.Derived, 2)
	assert.Equal(t, "Inflation", c.Pipeline.Derived[1].Target)
}

func TestLoadOverridesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: prod
server:
  port: 9090
pipeline:
  providers: [file, synthetic]
  frequency: monthly
  derived:
    - kind: moving_average
      source: GDP
      window: 3
  indicators:
    - name: rate
      base: 5
      min: 0
      max: 10
`))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, []string{"file", "synthetic"}, c.Pipeline.Providers)
	require.Len(t, c.Pipeline.Derived, 1)
	assert.Equal(t, 3, c.Pipeline.Derived[0].Window)
	require.NotNil(t, c.Pipeline.Indicators[0].Max)
	assert.Equal(t, 10.0, *c.Pipeline.Indicators[0].Max)
}

func TestKafkaConsumerGroupID(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.True(t, c.Kafka.Consumer.GroupPerReplica)
	assert.Equal(t, "econdash-api-1", c.Kafka.ConsumerGroupID("api-1"))
	assert.Equal(t, "econdash", c.Kafka.ConsumerGroupID(""))

	c.Kafka.Consumer.GroupPerReplica = false
	assert.Equal(t, "econdash", c.Kafka.ConsumerGroupID("api-1"))
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown provider":    "environment: x\npipeline:\n  providers: [ftp]\n",
		"clickhouse disabled": "environment: x\npipeline:\n  providers: [clickhouse]\n",
		"bad start":           "environment: x\npipeline:\n  start_date: 2000/01/01\n",
		"bad derived":         "environment: x\npipeline:\n  derived:\n    - kind: median\n      source: GDP\n",
		"half clamp":          "environment: x\npipeline:\n  indicators:\n    - name: a\n      min: 1\n",
		"kafka no brokers":    "environment: x\nkafka:\n  enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FRED_API_KEY", "secret")
	t.Setenv("DATA_FILE", "/tmp/merged.csv")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("HTTP_PORT", "7070")

	c, err := LoadWithEnv(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", c.FRED.APIKey)
	assert.Equal(t, "/tmp/merged.csv", c.Pipeline.PreferredPath)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 7070, c.Server.Port)

	t.Setenv("HTTP_PORT", "eighty")
	_, err = LoadWithEnv(writeConfig(t, "environment: test\n"))
	assert.Error(t, err)
}
