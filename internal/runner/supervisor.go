package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eagraf/holochain-runner/internal/bundle"
	"github.com/eagraf/holochain-runner/internal/node/config"
	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/eagraf/holochain-runner/internal/node/signals"
	"github.com/rs/zerolog"
)

// ShutdownTimeout bounds how long teardown waits for the runtime to stop.
const ShutdownTimeout = 30 * time.Second

var (
	ErrDatastoreSetup = errors.New("runner: datastore setup failed")
	ErrRuntimeStart   = errors.New("runner: runtime failed to start")
)

type LifecycleState int

const (
	Starting LifecycleState = iota
	DatastoreChecked
	RuntimeUp
	Orchestrating
	Ready
	ShutdownRequested
	Stopping
	Stopped
	Failed
)

var lifecycleNames = [...]string{
	"starting", "datastore_checked", "runtime_up", "orchestrating", "ready",
	"shutdown_requested", "stopping", "stopped", "failed",
}

func (s LifecycleState) String() string {
	if s >= 0 && int(s) < len(lifecycleNames) {
		return lifecycleNames[s]
	}
	return fmt.Sprintf("LifecycleState(%d)", int(s))
}

// RuntimeFactory constructs and starts the runtime for cfg.
type RuntimeFactory func(ctx context.Context, cfg *config.NodeConfig) (Runtime, error)

type Supervisor struct {
	cfg     *config.NodeConfig
	factory RuntimeFactory
	signals pubsub.Publisher[signals.StateSignal]
	metrics *Metrics
	logger  *zerolog.Logger
}

type Option func(*Supervisor)

// WithSignals sends progress signals to pub. Without it signals are dropped.
func WithSignals(pub pubsub.Publisher[signals.StateSignal]) Option {
	return func(s *Supervisor) {
		s.signals = pub
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

func NewSupervisor(cfg *config.NodeConfig, factory RuntimeFactory, opts ...Option) *Supervisor {
	nop := zerolog.Nop()
	s := &Supervisor{
		cfg:     cfg,
		factory: factory,
		logger:  &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start checks the datastore, starts the runtime and spawns the orchestration
// pass. Errors returned here are fatal setup errors; orchestration failures are
// reported through the returned Node. Cancelling ctx after Start returns does not
// interrupt orchestration; use Node.Shutdown.
func (s *Supervisor) Start(ctx context.Context) (*Node, error) {
	recorder := &signals.Recorder{}
	pub := signals.Tee{recorder, s.metrics.wrap(s.signals)}

	n := &Node{
		token:        NewShutdownToken(),
		metrics:      s.metrics,
		logger:       s.logger,
		orchestrated: make(chan struct{}),
		done:         make(chan struct{}),
	}
	n.setState(Starting)

	if err := s.checkDatastore(ctx, pub); err != nil {
		n.setState(Failed)
		return nil, err
	}
	n.setState(DatastoreChecked)

	rt, err := s.factory(ctx, s.cfg)
	if err != nil {
		n.setState(Failed)
		return nil, fmt.Errorf("%w: %s", ErrRuntimeStart, err)
	}
	n.rt = rt
	n.setState(RuntimeUp)

	orchCtx := context.WithoutCancel(ctx)
	n.setState(Orchestrating)
	go n.orchestrate(orchCtx, pub, recorder, s.appParams())
	go n.teardown()
	return n, nil
}

func (s *Supervisor) checkDatastore(ctx context.Context, pub pubsub.Publisher[signals.StateSignal]) error {
	path := s.cfg.DatastorePath()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		s.logger.Info().Msgf("using existing datastore at %s", path)
		signals.Emit(ctx, pub, signals.IsNotFirstRun)
		return nil
	case errors.Is(err, os.ErrNotExist):
		signals.Emit(ctx, pub, signals.IsFirstRun)
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("%w: creating %s: %s", ErrDatastoreSetup, path, err)
		}
		s.logger.Info().Msgf("created datastore at %s", path)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrDatastoreSetup, err)
	}
}

func (s *Supervisor) appParams() AppParams {
	bundlePath := s.cfg.BundlePath()
	return AppParams{
		AppID:       s.cfg.AppID(),
		NetworkSeed: s.cfg.NetworkSeed(),
		AppPort:     s.cfg.AppPort(),
		LoadBundle: func() ([]byte, error) {
			return bundle.ReadFile(bundlePath)
		},
	}
}

// Node is the handle to a started runtime and its orchestration pass.
type Node struct {
	rt      Runtime
	token   *ShutdownToken
	metrics *Metrics
	logger  *zerolog.Logger

	mu          sync.Mutex
	state       LifecycleState
	readiness   *Readiness
	orchErr     error
	shutdownErr error

	orchestrated chan struct{}
	done         chan struct{}
}

func (n *Node) orchestrate(ctx context.Context, pub pubsub.Publisher[signals.StateSignal], recorder *signals.Recorder, app AppParams) {
	start := time.Now()
	readiness, err := EnsureAppReady(ctx, n.rt, pub, app)
	n.metrics.observeOrchestration(time.Since(start).Seconds(), err)

	if err != nil {
		n.logger.Error().Err(err).Msg("orchestration failed")
	} else if verr := signals.Validate(recorder.Signals()); verr != nil {
		n.logger.Debug().Err(verr).Msgf("unexpected progress sequence %v", recorder.Signals())
	}

	n.mu.Lock()
	n.readiness = readiness
	n.orchErr = err
	if n.state == Orchestrating {
		if err != nil {
			n.setStateLocked(Failed)
		} else {
			n.setStateLocked(Ready)
		}
	}
	n.mu.Unlock()
	close(n.orchestrated)
}

// teardown runs once a shutdown is requested, but never before the orchestration
// pass has finished, so an in-flight install completes first.
func (n *Node) teardown() {
	<-n.token.Requested()
	n.mu.Lock()
	if n.state < ShutdownRequested || n.state == Failed {
		n.setStateLocked(ShutdownRequested)
	}
	n.mu.Unlock()

	<-n.orchestrated
	n.setState(Stopping)
	n.logger.Info().Msg("shutting down runtime")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := n.rt.Shutdown(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("runtime shutdown failed")
	}

	n.mu.Lock()
	n.shutdownErr = err
	n.setStateLocked(Stopped)
	n.mu.Unlock()
	n.token.Complete()
	close(n.done)
}

// AwaitReady blocks until the orchestration pass ends, returning its result.
func (n *Node) AwaitReady(ctx context.Context) (*Readiness, error) {
	select {
	case <-n.orchestrated:
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.readiness, n.orchErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown requests teardown. It returns immediately; wait on Done.
func (n *Node) Shutdown() {
	if n.token.Request() {
		n.logger.Info().Msg("shutdown requested")
	}
}

// Done is closed once the runtime has fully stopped.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Err reports the orchestration failure, if any, and once stopped any error from
// runtime shutdown.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return errors.Join(n.orchErr, n.shutdownErr)
}

func (n *Node) State() LifecycleState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Node) ShutdownState() ShutdownState {
	return n.token.State()
}

func (n *Node) setState(s LifecycleState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setStateLocked(s)
}

func (n *Node) setStateLocked(s LifecycleState) {
	if n.state != s {
		n.logger.Debug().Msgf("lifecycle %s -> %s", n.state, s)
	}
	n.state = s
	n.metrics.setState(s)
}
