package conductor

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/mod/semver"
)

const SchemaName = "conductor"

// SchemaVersion is written by the initialize transition. A datastore written by a
// newer minor version, or any other major version, is refused.
const SchemaVersion = "v1.1.0"

var ErrIncompatibleSchema = errors.New("conductor: incompatible state schema version")

var conductorSchemaRaw = `
{
	"$defs": {
		"dna": {
			"type": "object",
			"properties": {
				"hash": { "type": "string", "pattern": "^uhC0k" },
				"name": { "type": "string" },
				"role": { "type": "string" },
				"network_seed": { "type": "string" }
			},
			"required": [ "hash", "name" ]
		},
		"cell": {
			"type": "object",
			"properties": {
				"role_name": { "type": "string" },
				"dna_hash": { "type": "string", "pattern": "^uhC0k" },
				"agent_pub_key": { "type": "string", "pattern": "^uhCAk" }
			},
			"required": [ "role_name", "dna_hash", "agent_pub_key" ]
		},
		"app": {
			"type": "object",
			"properties": {
				"installed_app_id": { "type": "string", "minLength": 1 },
				"agent_pub_key": { "type": "string", "pattern": "^uhCAk" },
				"status": {
					"type": "string",
					"enum": [ "disabled", "enabled" ]
				},
				"cells": {
					"type": "array",
					"items": { "$ref": "#/$defs/cell" }
				},
				"installed_at": { "type": "string" }
			},
			"required": [ "installed_app_id", "agent_pub_key", "status", "cells" ]
		},
		"app_interface": {
			"type": "object",
			"properties": {
				"port": { "type": "integer", "minimum": 1, "maximum": 65535 },
				"installed_app_id": { "type": "string" }
			},
			"required": [ "port", "installed_app_id" ]
		}
	},
	"title": "Conductor State",
	"type": "object",
	"properties": {
		"schema_version": { "type": "string" },
		"network": {
			"type": "object",
			"properties": {
				"bootstrap_url": { "type": "string" },
				"signal_url": { "type": "string" },
				"network_seed": { "type": "string" },
				"gossip_arc_clamping": {
					"type": "string",
					"enum": [ "", "full", "empty" ]
				}
			}
		},
		"dnas": {
			"type": "array",
			"items": { "$ref": "#/$defs/dna" }
		},
		"apps": {
			"type": "array",
			"items": { "$ref": "#/$defs/app" }
		},
		"app_interfaces": {
			"type": "array",
			"items": { "$ref": "#/$defs/app_interface" }
		}
	},
	"required": [ "schema_version", "dnas", "apps", "app_interfaces" ]
}`

type ConductorSchema struct{}

func (s *ConductorSchema) Name() string {
	return SchemaName
}

func (s *ConductorSchema) Bytes() []byte {
	return []byte(conductorSchemaRaw)
}

// InitState is the state of a datastore that has never been initialized.
func (s *ConductorSchema) InitState() ([]byte, error) {
	return NewConductorState().Bytes()
}

// CheckSchemaVersion reports whether state written at version can be read by this
// build. An empty version means the datastore was never initialized.
func CheckSchemaVersion(version string) error {
	if version == "" {
		return nil
	}
	if !semver.IsValid(version) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrIncompatibleSchema, version)
	}
	if semver.Major(version) != semver.Major(SchemaVersion) {
		return fmt.Errorf("%w: datastore is %s, runner supports %s", ErrIncompatibleSchema, version, semver.Major(SchemaVersion))
	}
	if semver.Compare(version, SchemaVersion) > 0 {
		return fmt.Errorf("%w: datastore is %s, newer than %s", ErrIncompatibleSchema, version, SchemaVersion)
	}
	return nil
}

// NeedsUpgrade reports whether an initialized datastore predates SchemaVersion.
func NeedsUpgrade(version string) bool {
	return version != "" && semver.Compare(version, SchemaVersion) < 0
}

func ParseState(b []byte) (*ConductorState, error) {
	var s ConductorState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
