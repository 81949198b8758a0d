package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPipedPassphrase(t *testing.T) {
	for _, input := range []string{"hunter2\n", "hunter2\r\n", "hunter2", "hunter2\nignored\n"} {
		enclave, err := readPipedPassphrase(strings.NewReader(input))
		require.NoError(t, err)
		buf, err := enclave.Open()
		require.NoError(t, err)
		assert.Equal(t, "hunter2", buf.String())
		buf.Destroy()
	}
}

func TestEmptyPassphrase(t *testing.T) {
	for _, input := range []string{"", "\n", "\r\n"} {
		_, err := readPipedPassphrase(strings.NewReader(input))
		assert.ErrorIs(t, err, errEmptyPassphrase)
	}
}

func TestLoadConfigFromArgs(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := loadConfig([]string{"app.happ", "data"})
	require.NoError(t, err)
	assert.Equal(t, "app.happ", cfg.BundlePath())
	assert.Equal(t, "data", cfg.DatastorePath())
	assert.Equal(t, "main-app", cfg.AppID())
	assert.Equal(t, uint16(8888), cfg.AppPort())
}
