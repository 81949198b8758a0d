// Package consensus runs a single-voter raft instance over a bolt log, giving a
// state machine a durable, replayable write-ahead log.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	"github.com/rs/zerolog"
)

const (
	RetainSnapshotCount = 2
	RaftTimeout         = 10 * time.Second

	// localAddress is never dialed; the in-memory transport only identifies
	// the single voter.
	localAddress = "conductor"
)

var ErrNoLeadership = errors.New("consensus: did not receive leadership")

type Options struct {
	Dir    string
	Logger *zerolog.Logger

	// Timeouts override raft's defaults when non-zero. Tests shorten them.
	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
	CommitTimeout    time.Duration
}

// Cluster is a raft instance whose only member is this process.
type Cluster struct {
	dir      string
	instance *raft.Raft
	log      *raftboltdb.BoltStore
	logger   *zerolog.Logger
}

// Open starts raft over the log in opts.Dir, bootstrapping a new single-voter
// cluster if no state exists, and blocks until this node leads and every
// committed entry has been applied to fsm.
func Open(ctx context.Context, opts Options, fsm raft.FSM) (*Cluster, error) {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, fmt.Errorf("error creating raft directory: %s", err)
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(localAddress)
	config.LogOutput = raftLogWriter{logger: logger}
	config.LogLevel = "WARN"
	if opts.HeartbeatTimeout > 0 {
		config.HeartbeatTimeout = opts.HeartbeatTimeout
		config.LeaderLeaseTimeout = opts.HeartbeatTimeout
	}
	if opts.ElectionTimeout > 0 {
		config.ElectionTimeout = opts.ElectionTimeout
	}
	if opts.CommitTimeout > 0 {
		config.CommitTimeout = opts.CommitTimeout
	}

	// Create the snapshot store. This allows the Raft to truncate the log.
	snapshots, err := raft.NewFileSnapshotStore(opts.Dir, RetainSnapshotCount, config.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("file snapshot store: %s", err)
	}

	// The bolt store serves as both log store and stable store.
	boltDB, err := raftboltdb.NewBoltStore(filepath.Join(opts.Dir, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("new bolt store: %s", err)
	}

	existing, err := raft.HasExistingState(boltDB, boltDB, snapshots)
	if err != nil {
		boltDB.Close()
		return nil, err
	}

	addr, transport := raft.NewInmemTransport(localAddress)
	ra, err := raft.NewRaft(config, fsm, boltDB, boltDB, snapshots, transport)
	if err != nil {
		boltDB.Close()
		return nil, fmt.Errorf("new raft: %s", err)
	}

	if !existing {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      config.LocalID,
					Address: addr,
				},
			},
		}
		if err := ra.BootstrapCluster(configuration).Error(); err != nil {
			_ = ra.Shutdown().Error()
			boltDB.Close()
			return nil, fmt.Errorf("bootstrap raft: %s", err)
		}
	}

	c := &Cluster{
		dir:      opts.Dir,
		instance: ra,
		log:      boltDB,
		logger:   logger,
	}
	if err := c.awaitLeadership(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	// Replays any committed entries into the FSM before callers read state.
	if err := ra.Barrier(RaftTimeout).Error(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("raft barrier: %s", err)
	}
	logger.Debug().Bool("restored", existing).Uint64("last_index", ra.LastIndex()).Msgf("raft log opened at %s", opts.Dir)
	return c, nil
}

func (c *Cluster) awaitLeadership(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.NewTimer(RaftTimeout)
	defer timeout.Stop()
	for {
		if c.instance.State() == raft.Leader {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return ErrNoLeadership
		case <-ticker.C:
		}
	}
}

// Apply commits data to the log and returns the FSM's response for it.
func (c *Cluster) Apply(data []byte) (interface{}, error) {
	future := c.instance.Apply(data, RaftTimeout)

	// future.Error() blocks until the entry is committed and applied
	if err := future.Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrRaftShutdown) {
			return nil, fmt.Errorf("%w: %s", ErrNoLeadership, err)
		}
		return nil, fmt.Errorf("error applying log entry: %s", err)
	}
	return future.Response(), nil
}

// Snapshot compacts the log into a snapshot of the current FSM state.
func (c *Cluster) Snapshot() error {
	return c.instance.Snapshot().Error()
}

func (c *Cluster) Close() error {
	err := c.instance.Shutdown().Error()
	if cerr := c.log.Close(); err == nil {
		err = cerr
	}
	return err
}

// raftLogWriter forwards raft's own hclog output into zerolog.
type raftLogWriter struct {
	logger *zerolog.Logger
}

var _ io.Writer = raftLogWriter{}

func (w raftLogWriter) Write(p []byte) (int, error) {
	n := len(p)
	for n > 0 && (p[n-1] == '\n' || p[n-1] == '\r') {
		n--
	}
	if n > 0 {
		w.logger.Debug().Str("component", "raft").Msg(string(p[:n]))
	}
	return len(p), nil
}
