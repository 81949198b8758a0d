package conductor

import "encoding/json"

// Core structs for the conductor state.

type AppStatus string

const (
	AppStatusDisabled AppStatus = "disabled"
	AppStatusEnabled  AppStatus = "enabled"
)

type CellID struct {
	DnaHash     string `json:"dna_hash"`
	AgentPubKey string `json:"agent_pub_key"`
}

func (c CellID) String() string {
	return c.DnaHash + ":" + c.AgentPubKey
}

type InstalledCell struct {
	RoleName string `json:"role_name"`
	CellID
}

type AppInfo struct {
	InstalledAppID string          `json:"installed_app_id"`
	AgentPubKey    string          `json:"agent_pub_key"`
	Status         AppStatus       `json:"status"`
	Cells          []InstalledCell `json:"cells"`
	InstalledAt    string          `json:"installed_at,omitempty"`
}

type AppInterface struct {
	Port           uint16 `json:"port"`
	InstalledAppID string `json:"installed_app_id"`
}

type DnaRecord struct {
	Hash        string `json:"hash"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	NetworkSeed string `json:"network_seed,omitempty"`
}

type Network struct {
	BootstrapURL      string `json:"bootstrap_url"`
	SignalURL         string `json:"signal_url"`
	NetworkSeed       string `json:"network_seed,omitempty"`
	GossipArcClamping string `json:"gossip_arc_clamping"`
}

type ConductorState struct {
	SchemaVersion string          `json:"schema_version"`
	Network       *Network        `json:"network,omitempty"`
	Dnas          []*DnaRecord    `json:"dnas"`
	Apps          []*AppInfo      `json:"apps"`
	AppInterfaces []*AppInterface `json:"app_interfaces"`
}

func NewConductorState() *ConductorState {
	return &ConductorState{
		Dnas:          make([]*DnaRecord, 0),
		Apps:          make([]*AppInfo, 0),
		AppInterfaces: make([]*AppInterface, 0),
	}
}

func (s *ConductorState) Bytes() ([]byte, error) {
	return json.Marshal(s)
}

func (s *ConductorState) Initialized() bool {
	return s.SchemaVersion != ""
}

func (s *ConductorState) GetAppByID(appID string) (*AppInfo, bool) {
	for _, app := range s.Apps {
		if app.InstalledAppID == appID {
			return app, true
		}
	}
	return nil, false
}

func (s *ConductorState) GetDnaByHash(hash string) (*DnaRecord, bool) {
	for _, dna := range s.Dnas {
		if dna.Hash == hash {
			return dna, true
		}
	}
	return nil, false
}

// AppIDs lists installed app ids in installation order.
func (s *ConductorState) AppIDs() []string {
	ids := make([]string, 0, len(s.Apps))
	for _, app := range s.Apps {
		ids = append(ids, app.InstalledAppID)
	}
	return ids
}

// InterfacesForApp lists interfaces attached to appID in creation order.
func (s *ConductorState) InterfacesForApp(appID string) []*AppInterface {
	res := make([]*AppInterface, 0)
	for _, iface := range s.AppInterfaces {
		if iface.InstalledAppID == appID {
			res = append(res, iface)
		}
	}
	return res
}
