package test_helpers

import (
	"path/filepath"
	"testing"

	"github.com/eagraf/holochain-runner/internal/node/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// TestWorkFactor keeps scrypt cheap in tests.
const TestWorkFactor = 10

// NewTestConfig builds a config rooted in dir: datastore at dir/databases, an
// embedded keystore, OS-assigned ports and a bundle at dir/app.happ. overrides
// are applied last, keyed by config.Key* constants.
func NewTestConfig(t *testing.T, dir string, overrides map[string]interface{}) *config.NodeConfig {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set(config.KeyDatastorePath, filepath.Join(dir, "databases"))
	v.Set(config.KeyKeystorePath, "")
	v.Set(config.KeyBundlePath, filepath.Join(dir, "app.happ"))
	v.Set(config.KeyAppPort, 0)
	v.Set(config.KeyAdminPort, 0)
	v.Set(config.KeyKeystoreWorkFactor, TestWorkFactor)
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.NewNodeConfig(v)
	require.NoError(t, err)
	return cfg
}
