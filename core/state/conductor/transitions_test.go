package conductor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/eagraf/holochain-runner/internal/node/hdb"
	"github.com/qri-io/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAgent = "uhCAkAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	testDna   = "uhC0kAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

func testTransitions(oldState *ConductorState, transitions []hdb.Transition) (*ConductorState, error) {
	schema := &ConductorSchema{}
	if oldState == nil {
		oldState = NewConductorState()
	}
	initBytes, err := oldState.Bytes()
	if err != nil {
		return nil, err
	}
	jsonState, err := hdb.NewJSONState(schema.Bytes(), initBytes)
	if err != nil {
		return nil, err
	}

	for _, t := range transitions {
		err := t.Validate(jsonState.Bytes())
		if err != nil {
			return nil, fmt.Errorf("transition validation failed: %w", err)
		}

		patch, err := t.Patch(jsonState.Bytes())
		if err != nil {
			return nil, err
		}

		err = jsonState.ApplyPatch(patch)
		if err != nil {
			return nil, err
		}
	}

	return ParseState(jsonState.Bytes())
}

func installed(t *testing.T) *ConductorState {
	state, err := testTransitions(nil, []hdb.Transition{
		&InitializeTransition{Network: &Network{BootstrapURL: "https://bootstrap.holo.host", SignalURL: "wss://signal.holo.host"}},
		&RegisterDnaTransition{DnaRecord: &DnaRecord{Hash: testDna, Name: "alpha", Role: "alpha"}},
		&InstallAppTransition{
			InstalledAppID: "main-app",
			AgentPubKey:    testAgent,
			Cells: []InstalledCell{
				{RoleName: "alpha", CellID: CellID{DnaHash: testDna, AgentPubKey: testAgent}},
			},
		},
	})
	require.NoError(t, err)
	return state
}

func TestSchemaParsing(t *testing.T) {
	rs := &jsonschema.Schema{}
	err := json.Unmarshal([]byte(conductorSchemaRaw), rs)
	require.NoError(t, err)

	s := &ConductorSchema{}
	assert.Equal(t, "conductor", s.Name())
	initState, err := s.InitState()
	require.NoError(t, err)

	keyErrs, err := rs.ValidateBytes(context.Background(), initState)
	require.NoError(t, err)
	assert.Empty(t, keyErrs)
}

func TestInitialize(t *testing.T) {
	state, err := testTransitions(nil, []hdb.Transition{
		&InitializeTransition{Network: &Network{GossipArcClamping: "full"}},
	})
	require.NoError(t, err)
	assert.True(t, state.Initialized())
	assert.Equal(t, SchemaVersion, state.SchemaVersion)
	assert.Equal(t, "full", state.Network.GossipArcClamping)

	_, err = testTransitions(state, []hdb.Transition{&InitializeTransition{}})
	assert.Error(t, err)

	_, err = testTransitions(nil, []hdb.Transition{
		&InitializeTransition{Network: &Network{GossipArcClamping: "half"}},
	})
	assert.ErrorIs(t, err, hdb.ErrSchemaViolation)
}

func TestInstallAndEnable(t *testing.T) {
	state := installed(t)
	app, ok := state.GetAppByID("main-app")
	require.True(t, ok)
	assert.Equal(t, AppStatusDisabled, app.Status)
	assert.NotEmpty(t, app.InstalledAt)
	assert.Equal(t, []string{"main-app"}, state.AppIDs())

	_, err := testTransitions(state, []hdb.Transition{
		&InstallAppTransition{InstalledAppID: "main-app", AgentPubKey: testAgent},
	})
	assert.ErrorIs(t, err, ErrAppAlreadyInstalled)

	enabled, err := testTransitions(state, []hdb.Transition{
		&EnableAppTransition{InstalledAppID: "main-app"},
		&EnableAppTransition{InstalledAppID: "main-app"},
	})
	require.NoError(t, err)
	app, _ = enabled.GetAppByID("main-app")
	assert.Equal(t, AppStatusEnabled, app.Status)

	_, err = testTransitions(state, []hdb.Transition{&EnableAppTransition{InstalledAppID: "other"}})
	assert.ErrorIs(t, err, ErrAppNotFound)
}

func TestInstallRejectsForeignCells(t *testing.T) {
	_, err := testTransitions(nil, []hdb.Transition{
		&InstallAppTransition{
			InstalledAppID: "main-app",
			AgentPubKey:    testAgent,
			Cells: []InstalledCell{
				{RoleName: "a", CellID: CellID{DnaHash: testDna, AgentPubKey: "uhCAkBBBB"}},
			},
		},
	})
	assert.Error(t, err)

	_, err = testTransitions(nil, []hdb.Transition{
		&InstallAppTransition{
			InstalledAppID: "main-app",
			AgentPubKey:    testAgent,
			Cells: []InstalledCell{
				{RoleName: "a", CellID: CellID{DnaHash: testDna, AgentPubKey: testAgent}},
				{RoleName: "a", CellID: CellID{DnaHash: testDna, AgentPubKey: testAgent}},
			},
		},
	})
	assert.Error(t, err)
}

func TestRegisterDnaIdempotent(t *testing.T) {
	record := &DnaRecord{Hash: testDna, Name: "alpha"}
	state, err := testTransitions(nil, []hdb.Transition{
		&RegisterDnaTransition{DnaRecord: record},
		&RegisterDnaTransition{DnaRecord: record},
	})
	require.NoError(t, err)
	assert.Len(t, state.Dnas, 1)

	_, err = testTransitions(nil, []hdb.Transition{
		&RegisterDnaTransition{DnaRecord: &DnaRecord{Hash: "bogus", Name: "alpha"}},
	})
	assert.ErrorIs(t, err, hdb.ErrSchemaViolation)
}

func TestAddAppInterface(t *testing.T) {
	state := installed(t)
	state, err := testTransitions(state, []hdb.Transition{
		&AddAppInterfaceTransition{AppInterface: &AppInterface{Port: 8888, InstalledAppID: "main-app"}},
	})
	require.NoError(t, err)
	ifaces := state.InterfacesForApp("main-app")
	require.Len(t, ifaces, 1)
	assert.Equal(t, uint16(8888), ifaces[0].Port)
	assert.Empty(t, state.InterfacesForApp("other"))

	_, err = testTransitions(state, []hdb.Transition{
		&AddAppInterfaceTransition{AppInterface: &AppInterface{Port: 8888, InstalledAppID: "main-app"}},
	})
	assert.ErrorIs(t, err, ErrPortInUse)

	_, err = testTransitions(state, []hdb.Transition{
		&AddAppInterfaceTransition{AppInterface: &AppInterface{Port: 9000, InstalledAppID: "other"}},
	})
	assert.ErrorIs(t, err, ErrAppNotFound)

	_, err = testTransitions(state, []hdb.Transition{
		&AddAppInterfaceTransition{AppInterface: &AppInterface{Port: 0, InstalledAppID: "main-app"}},
	})
	assert.ErrorIs(t, err, hdb.ErrSchemaViolation)
}

func TestSchemaVersionGate(t *testing.T) {
	assert.NoError(t, CheckSchemaVersion(""))
	assert.NoError(t, CheckSchemaVersion(SchemaVersion))
	assert.NoError(t, CheckSchemaVersion("v1.0.0"))
	assert.ErrorIs(t, CheckSchemaVersion("v1.9.0"), ErrIncompatibleSchema)
	assert.ErrorIs(t, CheckSchemaVersion("v2.0.0"), ErrIncompatibleSchema)
	assert.ErrorIs(t, CheckSchemaVersion("latest"), ErrIncompatibleSchema)

	assert.True(t, NeedsUpgrade("v1.0.0"))
	assert.False(t, NeedsUpgrade(SchemaVersion))
	assert.False(t, NeedsUpgrade(""))

	old := NewConductorState()
	old.SchemaVersion = "v1.0.0"
	upgraded, err := testTransitions(old, []hdb.Transition{&UpgradeSchemaTransition{From: "v1.0.0"}})
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, upgraded.SchemaVersion)

	_, err = testTransitions(upgraded, []hdb.Transition{&UpgradeSchemaTransition{From: SchemaVersion}})
	assert.Error(t, err)
}
