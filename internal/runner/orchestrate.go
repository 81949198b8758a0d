package runner

import (
	"context"
	"errors"
	"fmt"

	state "github.com/eagraf/holochain-runner/core/state/conductor"
	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/eagraf/holochain-runner/internal/node/signals"
	"github.com/rs/zerolog/log"
)

// AppParams is what one orchestration pass needs to know about the app.
type AppParams struct {
	AppID       string
	NetworkSeed string
	AppPort     uint16
	// LoadBundle is only called when the app has to be installed.
	LoadBundle func() ([]byte, error)
}

// Readiness describes the node once an orchestration pass succeeds.
type Readiness struct {
	AppID        string
	AppPort      uint16
	Agent        keystore.AgentPubKey
	FirstInstall bool
}

// EnsureAppReady brings the runtime to a state where app.AppID, or the app a
// previous run installed, is installed, enabled and reachable. On a datastore
// with no apps it installs and enables the bundle and binds a new interface on
// app.AppPort. Otherwise the persisted app and its first interface are reused
// and no install signals are emitted. IsReady is emitted last on success.
func EnsureAppReady(ctx context.Context, rt Runtime, pub pubsub.Publisher[signals.StateSignal], app AppParams) (*Readiness, error) {
	if app.AppID == "" {
		return nil, errors.New("app id cannot be empty")
	}
	apps, err := rt.ListApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing installed apps: %w", err)
	}

	agent, err := FindOrGenerateKey(ctx, rt.Keystore(), pub)
	if err != nil {
		return nil, err
	}

	res := &Readiness{
		AppID: app.AppID,
		Agent: agent,
	}

	if len(apps) == 0 {
		res.FirstInstall = true
		if err := installAndEnable(ctx, rt, pub, app, agent); err != nil {
			return nil, err
		}

		signals.Emit(ctx, pub, signals.AddingAppInterface)
		port, _, err := AllocateOrReuse(ctx, rt, app.AppID, app.AppPort)
		if err != nil {
			return nil, err
		}
		res.AppPort = port
	} else {
		// The datastore is authoritative for which app this node runs.
		res.AppID = apps[0]
		if res.AppID != app.AppID {
			log.Warn().Msgf("datastore already has app %s installed, ignoring configured app id %s", res.AppID, app.AppID)
		}
		if err := ensureEnabled(ctx, rt, res.AppID); err != nil {
			return nil, err
		}

		port, created, err := AllocateOrReuse(ctx, rt, res.AppID, app.AppPort)
		if err != nil {
			return nil, err
		}
		if created {
			log.Warn().Msgf("app %s had no interface, bound a new one on port %d", res.AppID, port)
		}
		res.AppPort = port
	}

	signals.Emit(ctx, pub, signals.IsReady)
	return res, nil
}

func installAndEnable(ctx context.Context, rt Runtime, pub pubsub.Publisher[signals.StateSignal], app AppParams, agent keystore.AgentPubKey) error {
	signals.Emit(ctx, pub, signals.InstallingApp)
	if app.LoadBundle == nil {
		return errors.New("no app bundle to install")
	}
	appBundle, err := app.LoadBundle()
	if err != nil {
		return err
	}
	if err := InstallApp(ctx, rt, app.AppID, agent, appBundle, app.NetworkSeed); err != nil {
		return err
	}

	signals.Emit(ctx, pub, signals.EnablingApp)
	_, err = EnableApp(ctx, rt, app.AppID)
	return err
}

// ensureEnabled finishes an enable that a previous run did not get to, for
// example when it stopped between install and enable. No signals are emitted.
func ensureEnabled(ctx context.Context, rt Runtime, appID string) error {
	info, err := rt.AppInfo(ctx, appID)
	if err != nil {
		return fmt.Errorf("reading app %s: %w", appID, err)
	}
	if info.Status == state.AppStatusEnabled {
		return nil
	}
	log.Warn().Msgf("app %s is installed but %s, enabling it", appID, info.Status)
	_, err = EnableApp(ctx, rt, appID)
	return err
}
