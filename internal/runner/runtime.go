// Package runner turns an app bundle and a datastore into a ready node: it
// resolves the agent identity, installs and enables the app once, makes sure the
// app has an interface, and coordinates shutdown with the runtime.
package runner

import (
	"context"
	"fmt"

	state "github.com/eagraf/holochain-runner/core/state/conductor"
	"github.com/eagraf/holochain-runner/internal/bundle"
	"github.com/eagraf/holochain-runner/internal/keystore"
)

//go:generate mockgen -destination=mocks/mock_runtime.go -package=mocks . Runtime

// Runtime is the conductor the runner drives. Implementations synchronize
// internally; the runner never locks around calls.
type Runtime interface {
	// ListApps returns installed app ids in installation order.
	ListApps(ctx context.Context) ([]string, error)
	Keystore() keystore.Keystore
	// RegisterDNA makes a DNA available for installation. It is safe to call
	// concurrently and to call again with an already registered DNA.
	RegisterDNA(ctx context.Context, dna *bundle.DnaFile) (bundle.DnaHash, error)
	// InstallApp records the app and all its cells atomically, disabled.
	InstallApp(ctx context.Context, appID string, agent keystore.AgentPubKey, cells []state.InstalledCell) error
	// EnableApp activates the app's cells. Cells that fail to activate are
	// reported alongside the app record rather than failing the call.
	EnableApp(ctx context.Context, appID string) (*state.AppInfo, []CellError, error)
	AppInfo(ctx context.Context, appID string) (*state.AppInfo, error)
	// ListAppInterfaces returns the ports bound for appID in creation order.
	ListAppInterfaces(ctx context.Context, appID string) ([]uint16, error)
	// AddAppInterface binds a new interface; port 0 lets the OS choose. The bound
	// port is returned.
	AddAppInterface(ctx context.Context, appID string, port uint16) (uint16, error)
	// Shutdown stops the runtime and returns once all of its tasks have exited.
	Shutdown(ctx context.Context) error
}

// CellError is one cell's activation failure.
type CellError struct {
	Cell state.CellID
	Err  error
}

func (e CellError) Error() string {
	return fmt.Sprintf("cell %s: %s", e.Cell, e.Err)
}
