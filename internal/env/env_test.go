package env

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestConfig struct {
	Host    string        `env:"TEST_HOST" default:"localhost"`
	Port    int           `env:"TEST_PORT" default:"8080"`
	Enabled bool          `env:"TEST_ENABLED" default:"true"`
	Backoff float64       `env:"TEST_BACKOFF" default:"2.0"`
	Tick    time.Duration `env:"TEST_TICK" default:"5m"`
	NoDef   string        `env:"TEST_NO_DEF"`
}

func TestLoad(t *testing.T) {
	os.Clearenv()
	os.Setenv("TEST_HOST", "example.com")
	os.Setenv("TEST_PORT", "9090")
	os.Setenv("TEST_ENABLED", "false")
	os.Setenv("TEST_BACKOFF", "1.5")
	os.Setenv("TEST_TICK", "30s")
	os.Setenv("TEST_NO_DEF", "foo")

	var cfg TestConfig
	err := Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.5, cfg.Backoff)
	assert.Equal(t, 30*time.Second, cfg.Tick)
	assert.Equal(t, "foo", cfg.NoDef)
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	var cfg TestConfig
	err := Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2.0, cfg.Backoff)
	assert.Equal(t, 5*time.Minute, cfg.Tick)
	assert.Empty(t, cfg.NoDef)
}

func TestLoad_EmptyStringRespected(t *testing.T) {
	os.Clearenv()
	os.Setenv("TEST_HOST", "")

	var cfg TestConfig
	err := Load(&cfg)
	require.NoError(t, err)

	// An explicitly set empty string wins over the default.
	assert.Equal(t, "", cfg.Host)
	// Port not set, so uses default.
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_InvalidInt(t *testing.T) {
	os.Clearenv()
	os.Setenv("TEST_PORT", "not-a-number")

	var cfg TestConfig
	err := Load(&cfg)
	require.Error(t, err)

	var invalid ErrInvalidValue
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "TEST_PORT", invalid.EnvVar)
}

func TestLoad_NestedStructValidation(t *testing.T) {
	type Inner struct {
		Name string `env:"TEST_INNER_NAME"`
	}

	type Outer struct {
		Inner Inner
		Port  int `env:"TEST_OUTER_PORT" default:"1000"`
	}

	os.Clearenv()
	os.Setenv("TEST_INNER_NAME", "nested")

	var cfg Outer
	err := Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "nested", cfg.Inner.Name)
	assert.Equal(t, 1000, cfg.Port)
}

func TestLoad_NotStructPointer(t *testing.T) {
	var s string
	assert.Error(t, Load(&s))
	assert.Error(t, Load(TestConfig{}))
}
