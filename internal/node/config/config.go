package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/eagraf/holochain-runner/internal/node/constants"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Viper keys. Flag names use dashes; they are bound onto these keys by the CLI.
const (
	KeyAppID              = "app_id"
	KeyAppPort            = "app_ws_port"
	KeyAdminPort          = "admin_ws_port"
	KeyDatastorePath      = "datastore_path"
	KeyKeystorePath       = "keystore_path"
	KeyBundlePath         = "happ_path"
	KeyBootstrapURL       = "bootstrap_url"
	KeySignalURL          = "webrtc_signal_url"
	KeyNetworkSeed        = "network_seed"
	KeyGossipArcClamping  = "gossip_arc_clamping"
	KeyLogLevel           = "log_level"
	KeyMetricsAddr        = "metrics_addr"
	KeyKeystoreWorkFactor = "keystore_work_factor"
)

var ErrInvalidConfig = errors.New("config: invalid")

// LoadEnv reads an optional .env file from the working directory into the process
// environment. Existing variables win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !isNotExist(err) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// SetDefaults registers defaults, env binding and config file search paths on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAppID, constants.DefaultAppID)
	v.SetDefault(KeyAppPort, constants.DefaultAppPort)
	v.SetDefault(KeyAdminPort, constants.DefaultAdminPort)
	v.SetDefault(KeyDatastorePath, constants.DefaultDatastorePath)
	v.SetDefault(KeyKeystorePath, constants.DefaultKeystorePath)
	v.SetDefault(KeyBootstrapURL, constants.DefaultBootstrapURL)
	v.SetDefault(KeySignalURL, constants.DefaultSignalURL)
	v.SetDefault(KeyGossipArcClamping, constants.ArcClampingNone)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyKeystoreWorkFactor, constants.DefaultKeystoreWorkFactor)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yml")
	v.SetConfigName("runner")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.holochain-runner")
}

// ReadConfigFile reads the optional runner.yml. A missing file is not an error.
func ReadConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	log.Debug().Msgf("Loaded runner config file %s", v.ConfigFileUsed())
	return nil
}

// NodeConfig is built once per process and never mutated afterwards. For the app
// id and app port the datastore is authoritative on restarts: these are only the
// values used when nothing is installed yet.
type NodeConfig struct {
	appID              string
	appPort            uint16
	adminPort          uint16
	datastorePath      string
	keystorePath       string
	bundlePath         string
	bootstrapURL       string
	signalURL          string
	networkSeed        string
	gossipArcClamping  string
	logLevel           string
	metricsAddr        string
	keystoreWorkFactor int
}

// NewNodeConfig builds and validates a NodeConfig from v.
func NewNodeConfig(v *viper.Viper) (*NodeConfig, error) {
	appPort, err := port(v, KeyAppPort)
	if err != nil {
		return nil, err
	}
	adminPort, err := port(v, KeyAdminPort)
	if err != nil {
		return nil, err
	}
	c := &NodeConfig{
		appID:              strings.TrimSpace(v.GetString(KeyAppID)),
		appPort:            appPort,
		adminPort:          adminPort,
		datastorePath:      v.GetString(KeyDatastorePath),
		keystorePath:       v.GetString(KeyKeystorePath),
		bundlePath:         v.GetString(KeyBundlePath),
		bootstrapURL:       v.GetString(KeyBootstrapURL),
		signalURL:          v.GetString(KeySignalURL),
		networkSeed:        v.GetString(KeyNetworkSeed),
		gossipArcClamping:  v.GetString(KeyGossipArcClamping),
		logLevel:           v.GetString(KeyLogLevel),
		metricsAddr:        v.GetString(KeyMetricsAddr),
		keystoreWorkFactor: v.GetInt(KeyKeystoreWorkFactor),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func port(v *viper.Viper, key string) (uint16, error) {
	p := v.GetInt(key)
	if p < 0 || p > 65535 {
		return 0, fmt.Errorf("%w: %s %d out of range", ErrInvalidConfig, key, p)
	}
	return uint16(p), nil
}

func (c *NodeConfig) validate() error {
	if c.appID == "" {
		return fmt.Errorf("%w: app id is required", ErrInvalidConfig)
	}
	if c.datastorePath == "" {
		return fmt.Errorf("%w: datastore path is required", ErrInvalidConfig)
	}
	if c.bundlePath == "" {
		return fmt.Errorf("%w: bundle path is required", ErrInvalidConfig)
	}
	if filepath.Ext(c.bundlePath) != constants.BundleExtension {
		return fmt.Errorf("%w: bundle file extension should be %s, but got %q", ErrInvalidConfig, constants.BundleExtension, filepath.Ext(c.bundlePath))
	}
	for key, raw := range map[string]string{KeyBootstrapURL: c.bootstrapURL, KeySignalURL: c.signalURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an absolute url", ErrInvalidConfig, key, raw)
		}
	}
	switch c.gossipArcClamping {
	case constants.ArcClampingNone, constants.ArcClampingFull, constants.ArcClampingEmpty:
	default:
		return fmt.Errorf("%w: gossip arc clamping must be %q or %q, got %q", ErrInvalidConfig, constants.ArcClampingFull, constants.ArcClampingEmpty, c.gossipArcClamping)
	}
	if c.keystoreWorkFactor < 1 || c.keystoreWorkFactor > 22 {
		return fmt.Errorf("%w: keystore work factor %d out of range", ErrInvalidConfig, c.keystoreWorkFactor)
	}
	return nil
}

func (c *NodeConfig) AppID() string { return c.appID }

// AppPort is the requested app interface port; 0 lets the OS pick.
func (c *NodeConfig) AppPort() uint16 { return c.appPort }

func (c *NodeConfig) AdminPort() uint16 { return c.adminPort }

func (c *NodeConfig) DatastorePath() string { return c.datastorePath }

// KeystorePath is empty when the keystore lives inside the datastore.
func (c *NodeConfig) KeystorePath() string { return c.keystorePath }

func (c *NodeConfig) BundlePath() string { return c.bundlePath }

func (c *NodeConfig) BootstrapURL() string { return c.bootstrapURL }

func (c *NodeConfig) SignalURL() string { return c.signalURL }

func (c *NodeConfig) NetworkSeed() string { return c.networkSeed }

func (c *NodeConfig) GossipArcClamping() string { return c.gossipArcClamping }

func (c *NodeConfig) LogLevel() string { return c.logLevel }

func (c *NodeConfig) MetricsAddr() string { return c.metricsAddr }

func (c *NodeConfig) KeystoreWorkFactor() int { return c.keystoreWorkFactor }

func (c *NodeConfig) EmbeddedKeystorePath() string {
	return filepath.Join(c.datastorePath, "keystore.sqlite3")
}
