package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyBundlePath, "app.happ")
	return v
}

func TestDefaults(t *testing.T) {
	c, err := NewNodeConfig(testViper())
	require.NoError(t, err)

	assert.Equal(t, "main-app", c.AppID())
	assert.Equal(t, uint16(8888), c.AppPort())
	assert.Equal(t, uint16(1234), c.AdminPort())
	assert.Equal(t, "databases", c.DatastorePath())
	assert.Equal(t, "keystore", c.KeystorePath())
	assert.Equal(t, filepath.Join("databases", "keystore.sqlite3"), c.EmbeddedKeystorePath())
	assert.Equal(t, 18, c.KeystoreWorkFactor())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HC_RUNNER_APP_ID", "other-app")
	c, err := NewNodeConfig(testViper())
	require.NoError(t, err)
	assert.Equal(t, "other-app", c.AppID())
}

func TestValidation(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"bad extension":   func(v *viper.Viper) { v.Set(KeyBundlePath, "app.dna") },
		"missing bundle":  func(v *viper.Viper) { v.Set(KeyBundlePath, "") },
		"empty app id":    func(v *viper.Viper) { v.Set(KeyAppID, "  ") },
		"port range":      func(v *viper.Viper) { v.Set(KeyAppPort, 70000) },
		"relative url":    func(v *viper.Viper) { v.Set(KeyBootstrapURL, "bootstrap") },
		"arc clamping":    func(v *viper.Viper) { v.Set(KeyGossipArcClamping, "half") },
		"work factor":     func(v *viper.Viper) { v.Set(KeyKeystoreWorkFactor, 0) },
		"empty datastore": func(v *viper.Viper) { v.Set(KeyDatastorePath, "") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := testViper()
			mutate(v)
			_, err := NewNodeConfig(v)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HC_RUNNER_TEST_LOAD_ENV=yes\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("HC_RUNNER_TEST_LOAD_ENV") })

	require.NoError(t, LoadEnv(envFile))
	assert.Equal(t, "yes", os.Getenv("HC_RUNNER_TEST_LOAD_ENV"))

	// missing files are fine
	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))
}

func TestReadConfigFileMissing(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetConfigName("runner")
	v.AddConfigPath(t.TempDir())
	require.NoError(t, ReadConfigFile(v))
}
