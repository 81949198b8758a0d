package hdb

import (
	"encoding/json"
)

// Schema describes one kind of database document.
type Schema interface {
	Name() string
	Bytes() []byte
	InitState() ([]byte, error)
}

// Transition is a validated change to a document, expressed as a JSON patch
// generated from the current state.
type Transition interface {
	Type() string
	Patch(oldState []byte) ([]byte, error)
	Validate(oldState []byte) error
}

// TransitionWrapper is the form a transition takes in the replicated log. Only the
// patch is needed to replay it; the rest is kept for logging and auditing.
type TransitionWrapper struct {
	Type       string          `json:"type"`
	Patch      json.RawMessage `json:"patch"`
	Transition json.RawMessage `json:"transition"`
}

func WrapTransition(t Transition, patch []byte) (*TransitionWrapper, error) {
	transition, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	return &TransitionWrapper{
		Type:       t.Type(),
		Patch:      patch,
		Transition: transition,
	}, nil
}
