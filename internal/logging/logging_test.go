package logging

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2021, 6, 1, 12, 30, 0, 0, time.UTC)
	got := LogFilePath("logs", "sql2collisions", start)
	assert.Contains(t, got, "sql2collisions.20210601_123000.log")
}

func TestSetupCreatesLogFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir() + "/logs"
	viper.Set("logLevel", "debug")
	viper.Set("logsDir", dir)
	viper.Set("graylog.enabled", false)

	log, err := Setup("testtool")
	require.NoError(t, err)
	log.Info().Msg("hello")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSetupDefaultsBadLevel(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("logLevel", "nonsense")
	viper.Set("graylog.enabled", false)

	_, err := Setup("testtool")
	assert.NoError(t, err)
}
