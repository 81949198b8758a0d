package hdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/qri-io/jsonschema"
)

func keyError(errs []jsonschema.KeyError) error {
	s := strings.Builder{}
	for _, e := range errs {
		s.WriteString(fmt.Sprintf("%s\n", e.Error()))
	}
	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.TrimSpace(s.String()))
}

// JSONState is a JSON document that always satisfies its schema. Patches that
// would break the schema are rejected and leave the document untouched.
type JSONState struct {
	schemaRaw []byte
	schema    *jsonschema.Schema
	state     []byte

	mu sync.RWMutex
}

func NewJSONState(jsonSchema []byte, initState []byte) (*JSONState, error) {
	rs := &jsonschema.Schema{}
	err := json.Unmarshal(jsonSchema, rs)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %s", err)
	}
	if err := validate(rs, initState); err != nil {
		return nil, err
	}

	return &JSONState{
		schemaRaw: jsonSchema,
		schema:    rs,
		state:     initState,
	}, nil
}

func validate(schema *jsonschema.Schema, doc []byte) error {
	keyErrs, err := schema.ValidateBytes(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("error validating state: %s", err)
	}
	if len(keyErrs) != 0 {
		return keyError(keyErrs)
	}
	return nil
}

func (s *JSONState) ApplyPatch(patchJSON []byte) error {
	updated, err := s.ValidatePatch(patchJSON)
	if err != nil {
		return err
	}

	// only update state if everything worked out
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = updated
	return nil
}

// ValidatePatch returns the document patchJSON would produce, without applying it.
func (s *JSONState) ValidatePatch(patchJSON []byte) ([]byte, error) {
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON patch: %s", err)
	}
	updated, err := patch.Apply(s.Bytes())
	if err != nil {
		return nil, fmt.Errorf("error applying patch to current state: %s", err)
	}

	// check that updated state still fulfills the schema
	if err := validate(s.schema, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Replace swaps in a whole document, e.g. one restored from a snapshot.
func (s *JSONState) Replace(doc []byte) error {
	if err := validate(s.schema, doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = doc
	return nil
}

func (s *JSONState) Unmarshal(dest interface{}) error {
	return json.Unmarshal(s.Bytes(), dest)
}

func (s *JSONState) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *JSONState) Copy() (*JSONState, error) {
	if s.schemaRaw == nil {
		return nil, errors.New("json state has no schema")
	}
	return NewJSONState(s.schemaRaw, s.Bytes())
}
