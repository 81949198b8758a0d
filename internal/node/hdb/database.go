package hdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/eagraf/holochain-runner/internal/node/hdb/consensus"
	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/rs/zerolog"
)

// DatabaseConfig locates a database on disk and names its schema.
type DatabaseConfig struct {
	Dir       string
	Schema    Schema
	Logger    *zerolog.Logger
	Publisher pubsub.Publisher[StateUpdate]

	// Raft overrides consensus timeouts; Dir and Logger are filled in.
	Raft consensus.Options
}

// Database is a JSON document persisted through a raft log.
type Database struct {
	schema  Schema
	fsm     *FSM
	cluster *consensus.Cluster
	logger  *zerolog.Logger

	// proposals validate against the current state, so they are serialized.
	mu     sync.Mutex
	closed bool
}

// Open loads the database in cfg.Dir, replaying its log, or creates an empty one.
func Open(ctx context.Context, cfg DatabaseConfig) (*Database, error) {
	if cfg.Schema == nil {
		return nil, errors.New("hdb: database config has no schema")
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	fsm, err := NewFSM(cfg.Schema, cfg.Publisher)
	if err != nil {
		return nil, err
	}

	opts := cfg.Raft
	opts.Dir = cfg.Dir
	opts.Logger = logger
	cluster, err := consensus.Open(ctx, opts, fsm)
	if err != nil {
		return nil, err
	}
	return &Database{
		schema:  cfg.Schema,
		fsm:     fsm,
		cluster: cluster,
		logger:  logger,
	}, nil
}

func (d *Database) Name() string {
	return d.schema.Name()
}

func (d *Database) Bytes() []byte {
	return d.fsm.State().Bytes()
}

// ProposeTransitions validates the transitions in order against a branch of the
// current state and, if all pass, commits them as a single log entry. The
// committed state is returned.
func (d *Database) ProposeTransitions(ctx context.Context, transitions []Transition) (*JSONState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	branch, err := d.fsm.State().Copy()
	if err != nil {
		return nil, err
	}

	wrappers := make([]*TransitionWrapper, 0, len(transitions))
	for _, t := range transitions {
		if err := t.Validate(branch.Bytes()); err != nil {
			return nil, &TransitionError{Type: t.Type(), Err: err}
		}

		patch, err := t.Patch(branch.Bytes())
		if err != nil {
			return nil, &TransitionError{Type: t.Type(), Err: err}
		}

		if err := branch.ApplyPatch(patch); err != nil {
			return nil, &TransitionError{Type: t.Type(), Err: err}
		}

		wrapped, err := WrapTransition(t, patch)
		if err != nil {
			return nil, err
		}
		wrappers = append(wrappers, wrapped)
	}

	entry, err := json.Marshal(wrappers)
	if err != nil {
		return nil, err
	}

	resp, err := d.cluster.Apply(entry)
	if err != nil {
		return nil, err
	}
	if respErr, ok := resp.(error); ok {
		return nil, respErr
	}
	if _, ok := resp.([]byte); !ok {
		return nil, fmt.Errorf("unexpected state machine response %T", resp)
	}
	return d.fsm.State().Copy()
}

// Snapshot compacts the raft log.
func (d *Database) Snapshot() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.cluster.Snapshot()
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.cluster.Close()
}
