package hdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog/log"
)

// FSM applies committed log entries to a JSONState. Each entry is a JSON array of
// TransitionWrappers whose patches are applied in order; an entry either applies
// completely or not at all.
type FSM struct {
	schemaType string
	state      *JSONState
	publisher  pubsub.Publisher[StateUpdate]
}

var _ raft.FSM = (*FSM)(nil)

func NewFSM(schema Schema, publisher pubsub.Publisher[StateUpdate]) (*FSM, error) {
	initState, err := schema.InitState()
	if err != nil {
		return nil, err
	}
	state, err := NewJSONState(schema.Bytes(), initState)
	if err != nil {
		return nil, err
	}
	return &FSM{
		schemaType: schema.Name(),
		state:      state,
		publisher:  publisher,
	}, nil
}

// State returns the live state. Callers must not mutate it.
func (f *FSM) State() *JSONState {
	return f.state
}

// Apply returns the new state bytes, or an error value if the entry could not be
// applied. Raft hands the return value back to the proposer.
func (f *FSM) Apply(entry *raft.Log) interface{} {
	if entry.Type != raft.LogCommand {
		return nil
	}

	var wrappers []*TransitionWrapper
	if err := json.Unmarshal(entry.Data, &wrappers); err != nil {
		return fmt.Errorf("%w: undecodable log entry %d: %s", ErrTransitionRejected, entry.Index, err)
	}

	branch, err := f.state.Copy()
	if err != nil {
		return err
	}
	for _, w := range wrappers {
		if err := branch.ApplyPatch(w.Patch); err != nil {
			return &TransitionError{Type: w.Type, Err: fmt.Errorf("%w: %s", ErrTransitionRejected, err)}
		}
	}

	old := f.state.Bytes()
	newState := branch.Bytes()
	if err := f.state.Replace(newState); err != nil {
		return err
	}

	f.publish(&StateUpdate{
		Index:       entry.Index,
		SchemaType:  f.schemaType,
		Transitions: wrappers,
		OldState:    old,
		NewState:    newState,
	})
	return newState
}

func (f *FSM) publish(update *StateUpdate) {
	if f.publisher == nil {
		return
	}
	if err := f.publisher.PublishEvent(context.Background(), update); err != nil {
		log.Error().Err(err).Msgf("error publishing %s state update", f.schemaType)
	}
}

func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{state: f.state.Bytes()}, nil
}

func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	doc, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	if err := f.state.Replace(doc); err != nil {
		return fmt.Errorf("restoring %s snapshot: %w", f.schemaType, err)
	}
	f.publish(&StateUpdate{
		SchemaType: f.schemaType,
		Restore:    true,
		NewState:   doc,
	})
	return nil
}

type fsmSnapshot struct {
	state []byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.state); err != nil {
		_ = sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
