package conductor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	TransitionInitialize      = "initialize"
	TransitionUpgradeSchema   = "upgrade_schema"
	TransitionSetNetwork      = "set_network"
	TransitionRegisterDna     = "register_dna"
	TransitionInstallApp      = "install_app"
	TransitionEnableApp       = "enable_app"
	TransitionAddAppInterface = "add_app_interface"
)

var (
	ErrAppAlreadyInstalled = errors.New("conductor: app already installed")
	ErrAppNotFound         = errors.New("conductor: app not found")
	ErrPortInUse           = errors.New("conductor: app interface port already recorded")
)

func parseOld(oldState []byte) (*ConductorState, error) {
	var s ConductorState
	if err := json.Unmarshal(oldState, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func addPatch(path string, value interface{}) ([]byte, error) {
	marshaled, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`[{
		"op": "add",
		"path": "%s",
		"value": %s
	}]`, path, marshaled)), nil
}

type InitializeTransition struct {
	Network *Network `json:"network"`
}

func (t *InitializeTransition) Type() string {
	return TransitionInitialize
}

func (t *InitializeTransition) Patch(oldState []byte) ([]byte, error) {
	patch := []map[string]interface{}{
		{"op": "replace", "path": "/schema_version", "value": SchemaVersion},
	}
	if t.Network != nil {
		patch = append(patch, map[string]interface{}{"op": "add", "path": "/network", "value": t.Network})
	}
	return json.Marshal(patch)
}

func (t *InitializeTransition) Validate(oldState []byte) error {
	old, err := parseOld(oldState)
	if err != nil {
		return err
	}
	if old.Initialized() {
		return fmt.Errorf("conductor state already initialized at %s", old.SchemaVersion)
	}
	return nil
}

// UpgradeSchemaTransition stamps an older compatible datastore with the current
// schema version. Every change inside a major version only adds optional fields.
type UpgradeSchemaTransition struct {
	From string `json:"from"`
}

func (t *UpgradeSchemaTransition) Type() string {
	return TransitionUpgradeSchema
}

func (t *UpgradeSchemaTransition) Patch(oldState []byte) ([]byte, error) {
	return []byte(fmt.Sprintf(`[{
		"op": "replace",
		"path": "/schema_version",
		"value": "%s"
	}]`, SchemaVersion)), nil
}

func (t *UpgradeSchemaTransition) Validate(oldState []byte) error {
	old, err := parseOld(oldState)
	if err != nil {
		return err
	}
	if old.SchemaVersion != t.From {
		return fmt.Errorf("schema version is %s, not %s", old.SchemaVersion, t.From)
	}
	if err := CheckSchemaVersion(t.From); err != nil {
		return err
	}
	if !NeedsUpgrade(t.From) {
		return fmt.Errorf("schema version %s is current", t.From)
	}
	return nil
}

type SetNetworkTransition struct {
	Network *Network `json:"network"`
}

func (t *SetNetworkTransition) Type() string {
	return TransitionSetNetwork
}

func (t *SetNetworkTransition) Patch(oldState []byte) ([]byte, error) {
	return addPatch("/network", t.Network)
}

func (t *SetNetworkTransition) Validate(oldState []byte) error {
	if t.Network == nil {
		return fmt.Errorf("network cannot be nil")
	}
	return nil
}

// RegisterDnaTransition records a DNA. Registering the same hash again is a no-op.
type RegisterDnaTransition struct {
	*DnaRecord
}

func (t *RegisterDnaTransition) Type() string {
	return TransitionRegisterDna
}

func (t *RegisterDnaTransition) Patch(oldState []byte) ([]byte, error) {
	old, err := parseOld(oldState)
	if err != nil {
		return nil, err
	}
	if _, ok := old.GetDnaByHash(t.Hash); ok {
		return []byte(`[]`), nil
	}
	return addPatch("/dnas/-", t.DnaRecord)
}

func (t *RegisterDnaTransition) Validate(oldState []byte) error {
	if t.DnaRecord == nil {
		return fmt.Errorf("dna record cannot be nil")
	}
	return nil
}

// InstallAppTransition adds an app with all of its cells at once, disabled.
type InstallAppTransition struct {
	InstalledAppID string          `json:"installed_app_id"`
	AgentPubKey    string          `json:"agent_pub_key"`
	Cells          []InstalledCell `json:"cells"`
}

func (t *InstallAppTransition) Type() string {
	return TransitionInstallApp
}

func (t *InstallAppTransition) Patch(oldState []byte) ([]byte, error) {
	cells := t.Cells
	if cells == nil {
		cells = make([]InstalledCell, 0)
	}
	return addPatch("/apps/-", &AppInfo{
		InstalledAppID: t.InstalledAppID,
		AgentPubKey:    t.AgentPubKey,
		Status:         AppStatusDisabled,
		Cells:          cells,
		InstalledAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (t *InstallAppTransition) Validate(oldState []byte) error {
	old, err := parseOld(oldState)
	if err != nil {
		return err
	}
	if t.InstalledAppID == "" {
		return fmt.Errorf("installed app id cannot be empty")
	}
	if _, ok := old.GetAppByID(t.InstalledAppID); ok {
		return fmt.Errorf("%w: %s", ErrAppAlreadyInstalled, t.InstalledAppID)
	}
	roles := make(map[string]bool, len(t.Cells))
	for _, c := range t.Cells {
		if roles[c.RoleName] {
			return fmt.Errorf("duplicate role %s", c.RoleName)
		}
		roles[c.RoleName] = true
		if c.AgentPubKey != t.AgentPubKey {
			return fmt.Errorf("cell %s belongs to agent %s, not %s", c.RoleName, c.AgentPubKey, t.AgentPubKey)
		}
	}
	return nil
}

type EnableAppTransition struct {
	InstalledAppID string `json:"installed_app_id"`
}

func (t *EnableAppTransition) Type() string {
	return TransitionEnableApp
}

func (t *EnableAppTransition) Patch(oldState []byte) ([]byte, error) {
	old, err := parseOld(oldState)
	if err != nil {
		return nil, err
	}
	for i, app := range old.Apps {
		if app.InstalledAppID == t.InstalledAppID {
			return []byte(fmt.Sprintf(`[{
				"op": "replace",
				"path": "/apps/%d/status",
				"value": "%s"
			}]`, i, AppStatusEnabled)), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAppNotFound, t.InstalledAppID)
}

func (t *EnableAppTransition) Validate(oldState []byte) error {
	old, err := parseOld(oldState)
	if err != nil {
		return err
	}
	if _, ok := old.GetAppByID(t.InstalledAppID); !ok {
		return fmt.Errorf("%w: %s", ErrAppNotFound, t.InstalledAppID)
	}
	return nil
}

type AddAppInterfaceTransition struct {
	*AppInterface
}

func (t *AddAppInterfaceTransition) Type() string {
	return TransitionAddAppInterface
}

func (t *AddAppInterfaceTransition) Patch(oldState []byte) ([]byte, error) {
	return addPatch("/app_interfaces/-", t.AppInterface)
}

func (t *AddAppInterfaceTransition) Validate(oldState []byte) error {
	if t.AppInterface == nil {
		return fmt.Errorf("app interface cannot be nil")
	}
	old, err := parseOld(oldState)
	if err != nil {
		return err
	}
	if _, ok := old.GetAppByID(t.InstalledAppID); !ok {
		return fmt.Errorf("%w: %s", ErrAppNotFound, t.InstalledAppID)
	}
	for _, iface := range old.AppInterfaces {
		if iface.Port == t.Port {
			return fmt.Errorf("%w: %d", ErrPortInUse, t.Port)
		}
	}
	return nil
}
