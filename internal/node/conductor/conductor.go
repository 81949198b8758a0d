// Package conductor is the embedded runtime the runner supervises. It keeps the
// conductor state (registered DNAs, installed apps, app interfaces) in a raft
// backed hdb database inside the datastore, owns the keystore, and serves the
// admin and app websocket interfaces.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	state "github.com/eagraf/holochain-runner/core/state/conductor"
	"github.com/eagraf/holochain-runner/internal/bundle"
	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/eagraf/holochain-runner/internal/node/config"
	"github.com/eagraf/holochain-runner/internal/node/hdb"
	"github.com/eagraf/holochain-runner/internal/node/hdb/consensus"
	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/eagraf/holochain-runner/internal/runner"
	"github.com/rs/zerolog"
)

var (
	ErrDnaNotRegistered = errors.New("conductor: dna not registered")
	ErrDnaRejected      = errors.New("conductor: dna rejected")
	ErrShutdown         = errors.New("conductor: shut down")
)

type Option func(*options)

type options struct {
	logger *zerolog.Logger
	raft   consensus.Options
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRaftOptions overrides consensus timeouts, mostly for tests.
func WithRaftOptions(raft consensus.Options) Option {
	return func(o *options) {
		o.raft = raft
	}
}

type Conductor struct {
	cfg    *config.NodeConfig
	db     *hdb.Database
	ks     keystore.Keystore
	logger *zerolog.Logger

	admin *wsInterface

	mu         sync.Mutex
	interfaces map[uint16]*wsInterface
	stopped    bool

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ runner.Runtime = (*Conductor)(nil)

// Factory adapts New to the runner's RuntimeFactory.
func Factory(passphrase *memguard.Enclave, opts ...Option) runner.RuntimeFactory {
	return func(ctx context.Context, cfg *config.NodeConfig) (runner.Runtime, error) {
		return New(ctx, cfg, passphrase, opts...)
	}
}

// New opens the keystore and conductor state, then binds the admin interface and
// every app interface recorded by previous runs.
func New(ctx context.Context, cfg *config.NodeConfig, passphrase *memguard.Enclave, opts ...Option) (*Conductor, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		nop := zerolog.Nop()
		o.logger = &nop
	}
	logger := o.logger.With().Str("component", "conductor").Logger()

	ks, err := openKeystore(cfg, passphrase)
	if err != nil {
		return nil, err
	}
	if err := ensureTLSEntry(ctx, ks); err != nil {
		ks.Close()
		return nil, err
	}

	publisher := pubsub.NewSimplePublisher[hdb.StateUpdate]()
	publisher.AddSubscriber(hdb.NewStateUpdateLogger(&logger))
	db, err := hdb.Open(ctx, hdb.DatabaseConfig{
		Dir:       cfg.DatastorePath(),
		Schema:    &state.ConductorSchema{},
		Logger:    &logger,
		Publisher: publisher,
		Raft:      o.raft,
	})
	if err != nil {
		ks.Close()
		return nil, fmt.Errorf("opening conductor state: %w", err)
	}

	c := &Conductor{
		cfg:        cfg,
		db:         db,
		ks:         ks,
		logger:     &logger,
		interfaces: make(map[uint16]*wsInterface),
	}
	if err := c.start(ctx); err != nil {
		c.teardown(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Conductor) start(ctx context.Context) error {
	current, err := c.state()
	if err != nil {
		return err
	}
	if err := state.CheckSchemaVersion(current.SchemaVersion); err != nil {
		return err
	}

	network := c.network()
	var transitions []hdb.Transition
	if !current.Initialized() {
		transitions = append(transitions, &state.InitializeTransition{Network: network})
	} else {
		if state.NeedsUpgrade(current.SchemaVersion) {
			transitions = append(transitions, &state.UpgradeSchemaTransition{From: current.SchemaVersion})
		}
		if current.Network == nil || *current.Network != *network {
			c.logger.Info().Msg("network parameters changed since last run")
			transitions = append(transitions, &state.SetNetworkTransition{Network: network})
		}
	}
	if len(transitions) > 0 {
		if _, err := c.db.ProposeTransitions(ctx, transitions); err != nil {
			return err
		}
	}
	c.logger.Info().
		Str("bootstrap_url", network.BootstrapURL).
		Str("signal_url", network.SignalURL).
		Str("gossip_arc_clamping", network.GossipArcClamping).
		Bool("network_seed", network.NetworkSeed != "").
		Msg("network configured")

	admin, err := listenInterface("admin", c.cfg.AdminPort(), c.handleAdmin, c.logger)
	if err != nil {
		return err
	}
	c.admin = admin

	current, err = c.state()
	if err != nil {
		return err
	}
	for _, iface := range current.AppInterfaces {
		if _, err := c.bindAppInterface(iface.InstalledAppID, iface.Port); err != nil {
			return err
		}
	}
	for _, app := range current.Apps {
		if app.Status == state.AppStatusEnabled {
			c.logger.Info().Int("cells", len(app.Cells)).Msgf("app %s running", app.InstalledAppID)
		}
	}
	return nil
}

func (c *Conductor) network() *state.Network {
	return &state.Network{
		BootstrapURL:      c.cfg.BootstrapURL(),
		SignalURL:         c.cfg.SignalURL(),
		NetworkSeed:       c.cfg.NetworkSeed(),
		GossipArcClamping: c.cfg.GossipArcClamping(),
	}
}

func (c *Conductor) state() (*state.ConductorState, error) {
	return state.ParseState(c.db.Bytes())
}

func (c *Conductor) checkRunning() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrShutdown
	}
	return nil
}

// AdminPort is the port the admin interface is bound to.
func (c *Conductor) AdminPort() uint16 {
	return c.admin.Port()
}

func (c *Conductor) ListApps(ctx context.Context) ([]string, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	s, err := c.state()
	if err != nil {
		return nil, err
	}
	return s.AppIDs(), nil
}

func (c *Conductor) Keystore() keystore.Keystore {
	return c.ks
}

func (c *Conductor) RegisterDNA(ctx context.Context, dna *bundle.DnaFile) (bundle.DnaHash, error) {
	if err := c.checkRunning(); err != nil {
		return bundle.DnaHash{}, err
	}
	if err := dna.Def.Validate(); err != nil {
		return bundle.DnaHash{}, fmt.Errorf("%w: %w", ErrDnaRejected, err)
	}
	hash := dna.Hash()
	_, err := c.db.ProposeTransitions(ctx, []hdb.Transition{
		&state.RegisterDnaTransition{DnaRecord: &state.DnaRecord{
			Hash:        hash.String(),
			Name:        dna.Def.Name,
			Role:        dna.Role,
			NetworkSeed: dna.Def.NetworkSeed,
		}},
	})
	if err != nil {
		return bundle.DnaHash{}, err
	}
	c.logger.Debug().Msgf("registered dna %s for role %s", hash, dna.Role)
	return hash, nil
}

func (c *Conductor) InstallApp(ctx context.Context, appID string, agent keystore.AgentPubKey, cells []state.InstalledCell) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	_, err := c.db.ProposeTransitions(ctx, []hdb.Transition{
		&state.InstallAppTransition{
			InstalledAppID: appID,
			AgentPubKey:    agent.String(),
			Cells:          cells,
		},
	})
	return err
}

// EnableApp activates every cell of appID. A cell whose DNA was never registered
// cannot run; such cells are reported and the app stays disabled.
func (c *Conductor) EnableApp(ctx context.Context, appID string) (*state.AppInfo, []runner.CellError, error) {
	if err := c.checkRunning(); err != nil {
		return nil, nil, err
	}
	s, err := c.state()
	if err != nil {
		return nil, nil, err
	}
	app, ok := s.GetAppByID(appID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", state.ErrAppNotFound, appID)
	}

	var cellErrs []runner.CellError
	for _, cell := range app.Cells {
		if _, ok := s.GetDnaByHash(cell.DnaHash); !ok {
			cellErrs = append(cellErrs, runner.CellError{
				Cell: cell.CellID,
				Err:  fmt.Errorf("%w: %s", ErrDnaNotRegistered, cell.DnaHash),
			})
		}
	}
	if len(cellErrs) > 0 {
		return app, cellErrs, nil
	}

	if app.Status != state.AppStatusEnabled {
		updated, err := c.db.ProposeTransitions(ctx, []hdb.Transition{
			&state.EnableAppTransition{InstalledAppID: appID},
		})
		if err != nil {
			return nil, nil, err
		}
		s, err = state.ParseState(updated.Bytes())
		if err != nil {
			return nil, nil, err
		}
		app, _ = s.GetAppByID(appID)
	}
	return app, nil, nil
}

func (c *Conductor) AppInfo(ctx context.Context, appID string) (*state.AppInfo, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	s, err := c.state()
	if err != nil {
		return nil, err
	}
	app, ok := s.GetAppByID(appID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", state.ErrAppNotFound, appID)
	}
	return app, nil
}

func (c *Conductor) ListAppInterfaces(ctx context.Context, appID string) ([]uint16, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	s, err := c.state()
	if err != nil {
		return nil, err
	}
	ifaces := s.InterfacesForApp(appID)
	ports := make([]uint16, 0, len(ifaces))
	for _, iface := range ifaces {
		ports = append(ports, iface.Port)
	}
	return ports, nil
}

// AddAppInterface binds a new app interface and records it. Nothing is recorded
// if the bind fails.
func (c *Conductor) AddAppInterface(ctx context.Context, appID string, port uint16) (uint16, error) {
	if err := c.checkRunning(); err != nil {
		return 0, err
	}
	s, err := c.state()
	if err != nil {
		return 0, err
	}
	if _, ok := s.GetAppByID(appID); !ok {
		return 0, fmt.Errorf("%w: %s", state.ErrAppNotFound, appID)
	}

	iface, err := c.bindAppInterface(appID, port)
	if err != nil {
		return 0, err
	}
	_, err = c.db.ProposeTransitions(ctx, []hdb.Transition{
		&state.AddAppInterfaceTransition{AppInterface: &state.AppInterface{
			Port:           iface.Port(),
			InstalledAppID: appID,
		}},
	})
	if err != nil {
		c.unbindAppInterface(iface)
		return 0, err
	}
	return iface.Port(), nil
}

func (c *Conductor) bindAppInterface(appID string, port uint16) (*wsInterface, error) {
	handler := func(ctx context.Context, req *Request) (interface{}, error) {
		return c.handleApp(ctx, appID, req)
	}
	iface, err := listenInterface("app:"+appID, port, handler, c.logger)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.interfaces[iface.Port()] = iface
	c.mu.Unlock()
	return iface, nil
}

func (c *Conductor) unbindAppInterface(iface *wsInterface) {
	c.mu.Lock()
	delete(c.interfaces, iface.Port())
	c.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = iface.Close(ctx)
}

// Shutdown closes the interfaces, the state database and the keystore. Calls
// after the first return the first call's result.
func (c *Conductor) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.teardown(ctx)
		if c.shutdownErr == nil {
			c.logger.Info().Msg("conductor stopped")
		}
	})
	return c.shutdownErr
}

func (c *Conductor) teardown(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	ifaces := make([]*wsInterface, 0, len(c.interfaces)+1)
	for _, iface := range c.interfaces {
		ifaces = append(ifaces, iface)
	}
	c.interfaces = make(map[uint16]*wsInterface)
	c.mu.Unlock()
	if c.admin != nil {
		ifaces = append(ifaces, c.admin)
	}

	var errs []error
	for _, iface := range ifaces {
		if err := iface.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ks.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
