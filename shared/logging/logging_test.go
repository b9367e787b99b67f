package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "report.log")

	closer, err := Setup("info", false, logFile)
	require.NoError(t, err)
	defer log.SetOutput(os.Stderr)

	log.Info("hello from the report")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the report")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestSetupDebugOverridesLevel(t *testing.T) {
	closer, err := Setup("warn", true, "")
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestSetupInvalidLevel(t *testing.T) {
	_, err := Setup("chatty", false, "")
	assert.Error(t, err)
}
