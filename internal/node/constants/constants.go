package constants

const (
	DefaultAppID         = "main-app"
	DefaultAppPort       = 8888
	DefaultAdminPort     = 1234
	DefaultDatastorePath = "databases"
	DefaultKeystorePath  = "keystore"
	DefaultBootstrapURL  = "https://bootstrap.holo.host"
	DefaultSignalURL     = "wss://signal.holo.host"

	// BundleExtension is the file extension app bundles must carry.
	BundleExtension = ".happ"

	// Arc clamping modes accepted by the network configuration.
	ArcClampingNone  = ""
	ArcClampingFull  = "full"
	ArcClampingEmpty = "empty"

	// DefaultKeystoreWorkFactor is the scrypt log2 work factor used to seal keystore
	// secrets. age's own default.
	DefaultKeystoreWorkFactor = 18

	// Env prefix for viper, e.g. HC_RUNNER_APP_ID.
	EnvPrefix = "HC_RUNNER"
)
