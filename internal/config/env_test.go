package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvFallback(t *testing.T) {
	require.NoError(t, os.Unsetenv("ASTEROBIA_TEST_STR"))
	assert.Equal(t, "fallback", GetEnv("ASTEROBIA_TEST_STR", "fallback"))

	t.Setenv("ASTEROBIA_TEST_STR", "value")
	assert.Equal(t, "value", GetEnv("ASTEROBIA_TEST_STR", "fallback"))
}

func TestGetEnvIntParsesOrFallsBack(t *testing.T) {
	t.Setenv("ASTEROBIA_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("ASTEROBIA_TEST_INT", 1))

	t.Setenv("ASTEROBIA_TEST_INT", "not-a-number")
	assert.Equal(t, 1, GetEnvInt("ASTEROBIA_TEST_INT", 1))
}

func TestGetEnvFloatParsesOrFallsBack(t *testing.T) {
	t.Setenv("ASTEROBIA_TEST_FLOAT", "3.14")
	assert.InDelta(t, 3.14, GetEnvFloat("ASTEROBIA_TEST_FLOAT", 1.0), 1e-9)

	t.Setenv("ASTEROBIA_TEST_FLOAT", "nope")
	assert.Equal(t, 1.0, GetEnvFloat("ASTEROBIA_TEST_FLOAT", 1.0))
}

func TestGetEnvDurationParsesOrFallsBack(t *testing.T) {
	t.Setenv("ASTEROBIA_TEST_DURATION", "5s")
	assert.Equal(t, 5*time.Second, GetEnvDuration("ASTEROBIA_TEST_DURATION", time.Second))

	t.Setenv("ASTEROBIA_TEST_DURATION", "bogus")
	assert.Equal(t, time.Second, GetEnvDuration("ASTEROBIA_TEST_DURATION", time.Second))
}
