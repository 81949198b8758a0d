package hdb

import (
	"github.com/rs/zerolog"
	"github.com/wI2L/jsondiff"
)

// StateUpdate is published after the state machine applies a log entry, or
// replaces its whole state from a snapshot (Restore set).
type StateUpdate struct {
	Index       uint64
	SchemaType  string
	Restore     bool
	Transitions []*TransitionWrapper
	OldState    []byte
	NewState    []byte
}

// StateUpdateLogger is a subscriber for StateUpdates that logs the resulting diff.
type StateUpdateLogger struct {
	logger *zerolog.Logger
}

func NewStateUpdateLogger(logger *zerolog.Logger) *StateUpdateLogger {
	return &StateUpdateLogger{
		logger: logger,
	}
}

func (s *StateUpdateLogger) Name() string {
	return "StateUpdateLogger"
}

func (s *StateUpdateLogger) ConsumeEvent(event *StateUpdate) error {
	if event.Restore {
		s.logger.Debug().Msgf("restored %s state at index %d", event.SchemaType, event.Index)
		return nil
	}
	types := make([]string, 0, len(event.Transitions))
	for _, t := range event.Transitions {
		types = append(types, t.Type)
	}

	ev := s.logger.Debug().Uint64("index", event.Index).Strs("transitions", types)
	if len(event.OldState) > 0 {
		patch, err := jsondiff.CompareJSON(event.OldState, event.NewState)
		if err == nil {
			ev = ev.Str("diff", patch.String())
		}
	}
	ev.Msgf("applied %s transitions", event.SchemaType)
	return nil
}
