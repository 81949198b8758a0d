package runner_test

import (
	"context"
	"errors"
	"testing"

	state "github.com/eagraf/holochain-runner/core/state/conductor"
	"github.com/eagraf/holochain-runner/internal/bundle"
	"github.com/eagraf/holochain-runner/internal/keystore"
	ksmocks "github.com/eagraf/holochain-runner/internal/keystore/mocks"
	"github.com/eagraf/holochain-runner/internal/node/signals"
	"github.com/eagraf/holochain-runner/internal/runner"
	"github.com/eagraf/holochain-runner/internal/runner/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRuntime(t *testing.T) (*mocks.MockRuntime, *ksmocks.MockKeystore) {
	ctrl := gomock.NewController(t)
	rt := mocks.NewMockRuntime(ctrl)
	ks := ksmocks.NewMockKeystore(ctrl)
	rt.EXPECT().Keystore().Return(ks).AnyTimes()
	return rt, ks
}

func appParams(t *testing.T, appID string, port uint16) runner.AppParams {
	appBundle := encodeBundle(t, map[string]bundle.DnaDef{"alpha": testDna("alpha")})
	return runner.AppParams{
		AppID:   appID,
		AppPort: port,
		LoadBundle: func() ([]byte, error) {
			return appBundle, nil
		},
	}
}

func TestEnsureAppReadyFresh(t *testing.T) {
	rt, ks := newRuntime(t)
	agent := agentKey(7)

	gomock.InOrder(
		rt.EXPECT().ListApps(gomock.Any()).Return(nil, nil),
		ks.EXPECT().ListEntries(gomock.Any()).Return(nil, nil),
		ks.EXPECT().NewSignKeypairRandom(gomock.Any()).Return(agent, nil),
		rt.EXPECT().RegisterDNA(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, dna *bundle.DnaFile) (bundle.DnaHash, error) {
				return dna.Hash(), nil
			}),
		rt.EXPECT().InstallApp(gomock.Any(), "main-app", agent, gomock.Len(1)).Return(nil),
		rt.EXPECT().EnableApp(gomock.Any(), "main-app").Return(
			&state.AppInfo{InstalledAppID: "main-app", Status: state.AppStatusEnabled}, nil, nil),
		rt.EXPECT().ListAppInterfaces(gomock.Any(), "main-app").Return(nil, nil),
		rt.EXPECT().AddAppInterface(gomock.Any(), "main-app", uint16(8888)).Return(uint16(8888), nil),
	)

	rec := &signals.Recorder{}
	res, err := runner.EnsureAppReady(bg, rt, rec, appParams(t, "main-app", 8888))
	require.NoError(t, err)
	assert.Equal(t, &runner.Readiness{
		AppID:        "main-app",
		AppPort:      8888,
		Agent:        agent,
		FirstInstall: true,
	}, res)
	assert.Equal(t, []signals.StateSignal{
		signals.CreatingKeys,
		signals.RegisteringDna,
		signals.InstallingApp,
		signals.EnablingApp,
		signals.AddingAppInterface,
		signals.IsReady,
	}, rec.Signals())
}

func TestEnsureAppReadyRestart(t *testing.T) {
	rt, ks := newRuntime(t)
	agent := agentKey(7)

	rt.EXPECT().ListApps(gomock.Any()).Return([]string{"persisted-app"}, nil)
	ks.EXPECT().ListEntries(gomock.Any()).Return([]keystore.Entry{signingEntry(0, agent)}, nil)
	rt.EXPECT().AppInfo(gomock.Any(), "persisted-app").Return(
		&state.AppInfo{InstalledAppID: "persisted-app", Status: state.AppStatusEnabled}, nil)
	rt.EXPECT().ListAppInterfaces(gomock.Any(), "persisted-app").Return([]uint16{9001}, nil)

	rec := &signals.Recorder{}
	params := appParams(t, "main-app", 8888)
	params.LoadBundle = func() ([]byte, error) {
		t.Fatal("bundle loaded on restart")
		return nil, nil
	}
	res, err := runner.EnsureAppReady(bg, rt, rec, params)
	require.NoError(t, err)
	assert.Equal(t, "persisted-app", res.AppID)
	assert.Equal(t, uint16(9001), res.AppPort)
	assert.Equal(t, agent, res.Agent)
	assert.False(t, res.FirstInstall)
	assert.Equal(t, []signals.StateSignal{signals.IsReady}, rec.Signals())
}

func TestEnsureAppReadyFinishesInterruptedEnable(t *testing.T) {
	rt, ks := newRuntime(t)
	agent := agentKey(7)

	rt.EXPECT().ListApps(gomock.Any()).Return([]string{"main-app"}, nil)
	ks.EXPECT().ListEntries(gomock.Any()).Return([]keystore.Entry{signingEntry(0, agent)}, nil)
	gomock.InOrder(
		rt.EXPECT().AppInfo(gomock.Any(), "main-app").Return(
			&state.AppInfo{InstalledAppID: "main-app", Status: state.AppStatusDisabled}, nil),
		rt.EXPECT().EnableApp(gomock.Any(), "main-app").Return(
			&state.AppInfo{InstalledAppID: "main-app", Status: state.AppStatusEnabled}, nil, nil),
		rt.EXPECT().ListAppInterfaces(gomock.Any(), "main-app").Return(nil, nil),
		rt.EXPECT().AddAppInterface(gomock.Any(), "main-app", uint16(0)).Return(uint16(40001), nil),
	)

	rec := &signals.Recorder{}
	res, err := runner.EnsureAppReady(bg, rt, rec, appParams(t, "main-app", 0))
	require.NoError(t, err)
	assert.Equal(t, uint16(40001), res.AppPort)
	assert.Equal(t, []signals.StateSignal{signals.IsReady}, rec.Signals())
}

func TestEnsureAppReadyFailures(t *testing.T) {
	t.Run("empty app id", func(t *testing.T) {
		rt, _ := newRuntime(t)
		_, err := runner.EnsureAppReady(bg, rt, nil, runner.AppParams{})
		assert.Error(t, err)
	})

	t.Run("keystore", func(t *testing.T) {
		rt, ks := newRuntime(t)
		rt.EXPECT().ListApps(gomock.Any()).Return(nil, nil)
		ks.EXPECT().ListEntries(gomock.Any()).Return(nil, errors.New("locked"))

		rec := &signals.Recorder{}
		_, err := runner.EnsureAppReady(bg, rt, rec, appParams(t, "main-app", 0))
		var ksErr *keystore.KeystoreError
		assert.ErrorAs(t, err, &ksErr)
		assert.Empty(t, rec.Signals())
	})

	t.Run("bundle load", func(t *testing.T) {
		rt, ks := newRuntime(t)
		rt.EXPECT().ListApps(gomock.Any()).Return(nil, nil)
		ks.EXPECT().ListEntries(gomock.Any()).Return([]keystore.Entry{signingEntry(0, agentKey(1))}, nil)

		missing := errors.New("no such file")
		params := runner.AppParams{
			AppID:      "main-app",
			LoadBundle: func() ([]byte, error) { return nil, missing },
		}
		rec := &signals.Recorder{}
		_, err := runner.EnsureAppReady(bg, rt, rec, params)
		assert.ErrorIs(t, err, missing)
		assert.Equal(t, []signals.StateSignal{signals.InstallingApp}, rec.Signals())
	})

	t.Run("enable", func(t *testing.T) {
		rt, ks := newRuntime(t)
		rt.EXPECT().ListApps(gomock.Any()).Return(nil, nil)
		ks.EXPECT().ListEntries(gomock.Any()).Return([]keystore.Entry{signingEntry(0, agentKey(1))}, nil)
		rt.EXPECT().RegisterDNA(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, dna *bundle.DnaFile) (bundle.DnaHash, error) {
				return dna.Hash(), nil
			})
		rt.EXPECT().InstallApp(gomock.Any(), "main-app", gomock.Any(), gomock.Any()).Return(nil)
		cellErr := errors.New("cell failed")
		rt.EXPECT().EnableApp(gomock.Any(), "main-app").Return(nil,
			[]runner.CellError{{Cell: state.CellID{DnaHash: "uhC0ka"}, Err: cellErr}}, nil)

		rec := &signals.Recorder{}
		_, err := runner.EnsureAppReady(bg, rt, rec, appParams(t, "main-app", 0))
		assert.ErrorIs(t, err, cellErr)
		assert.Equal(t, []signals.StateSignal{signals.InstallingApp, signals.EnablingApp}, rec.Signals())
	})
}
