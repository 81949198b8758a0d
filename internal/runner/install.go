package runner

import (
	"context"
	"fmt"

	state "github.com/eagraf/holochain-runner/core/state/conductor"
	"github.com/eagraf/holochain-runner/internal/bundle"
	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DnaRegistrationError identifies the role whose DNA could not be decoded or was
// rejected by the runtime.
type DnaRegistrationError struct {
	Role string
	Err  error
}

func (e *DnaRegistrationError) Error() string {
	return fmt.Sprintf("registering dna for role %s: %s", e.Role, e.Err)
}

func (e *DnaRegistrationError) Unwrap() error {
	return e.Err
}

// CellActivationError is the representative failure when enabling an app leaves
// some cells inactive. Only the last cell error reported by the runtime is kept;
// Dropped counts the others.
type CellActivationError struct {
	AppID   string
	Cell    state.CellID
	Err     error
	Dropped int
}

func (e *CellActivationError) Error() string {
	msg := fmt.Sprintf("enabling app %s: cell %s failed to activate: %s", e.AppID, e.Cell, e.Err)
	if e.Dropped > 0 {
		msg += fmt.Sprintf(" (%d more cell errors not shown)", e.Dropped)
	}
	return msg
}

func (e *CellActivationError) Unwrap() error {
	return e.Err
}

// InstallApp decodes appBundle, registers its DNAs concurrently, and installs
// them as one app for agent. Nothing is installed unless every registration
// succeeds.
func InstallApp(ctx context.Context, rt Runtime, appID string, agent keystore.AgentPubKey, appBundle []byte, networkSeed string) error {
	decoded, err := bundle.Decode(appBundle)
	if err != nil {
		return err
	}

	roles := decoded.Manifest.Roles
	dnas := make([]*bundle.DnaFile, len(roles))
	for i, role := range roles {
		dna, err := decoded.DnaFile(role, networkSeed)
		if err != nil {
			return &DnaRegistrationError{Role: role.Name, Err: err}
		}
		dnas[i] = dna
	}

	hashes := make([]bundle.DnaHash, len(dnas))
	g, gctx := errgroup.WithContext(ctx)
	for i, dna := range dnas {
		i, dna := i, dna
		g.Go(func() error {
			hash, err := rt.RegisterDNA(gctx, dna)
			if err != nil {
				return &DnaRegistrationError{Role: dna.Role, Err: err}
			}
			hashes[i] = hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	cells := make([]state.InstalledCell, len(dnas))
	for i, dna := range dnas {
		cells[i] = state.InstalledCell{
			RoleName: dna.Role,
			CellID: state.CellID{
				DnaHash:     hashes[i].String(),
				AgentPubKey: agent.String(),
			},
		}
	}

	if err := rt.InstallApp(ctx, appID, agent, cells); err != nil {
		return fmt.Errorf("installing app %s: %w", appID, err)
	}
	log.Info().Int("cells", len(cells)).Msgf("installed app %s", appID)
	return nil
}

// EnableApp enables appID and checks the runtime reports it enabled.
func EnableApp(ctx context.Context, rt Runtime, appID string) (*state.AppInfo, error) {
	info, cellErrs, err := rt.EnableApp(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("enabling app %s: %w", appID, err)
	}
	if len(cellErrs) > 0 {
		last := cellErrs[len(cellErrs)-1]
		for _, ce := range cellErrs[:len(cellErrs)-1] {
			log.Debug().Err(ce.Err).Msgf("dropped activation error for cell %s", ce.Cell)
		}
		return nil, &CellActivationError{
			AppID:   appID,
			Cell:    last.Cell,
			Err:     last.Err,
			Dropped: len(cellErrs) - 1,
		}
	}
	if info == nil {
		return nil, fmt.Errorf("enabling app %s: runtime returned no app info", appID)
	}
	if info.Status != state.AppStatusEnabled {
		return nil, fmt.Errorf("enabling app %s: app is %s after enable", appID, info.Status)
	}
	log.Info().Msgf("enabled app %s", appID)
	return info, nil
}
