package runner_test

import (
	"errors"
	"testing"

	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/eagraf/holochain-runner/internal/keystore/mocks"
	"github.com/eagraf/holochain-runner/internal/node/signals"
	"github.com/eagraf/holochain-runner/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestFindExistingKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	ks := mocks.NewMockKeystore(ctrl)

	first := agentKey(1)
	ks.EXPECT().ListEntries(gomock.Any()).Return([]keystore.Entry{
		{Index: 0, Kind: keystore.KindTLSCert, PublicKey: []byte("cert")},
		{Index: 1, Kind: keystore.KindSeed, PublicKey: []byte("seed")},
		{Index: 2, Kind: keystore.KindSignEd25519, PublicKey: []byte("short")},
		{Index: 3, Kind: "something_new", PublicKey: agentKey(9).Bytes()},
		signingEntry(4, first),
		signingEntry(5, agentKey(2)),
	}, nil)

	rec := &signals.Recorder{}
	key, err := runner.FindOrGenerateKey(bg, ks, rec)
	require.NoError(t, err)
	assert.Equal(t, first, key)
	assert.Empty(t, rec.Signals())
}

func TestGenerateKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	ks := mocks.NewMockKeystore(ctrl)

	generated := agentKey(7)
	gomock.InOrder(
		ks.EXPECT().ListEntries(gomock.Any()).Return([]keystore.Entry{
			{Index: 0, Kind: keystore.KindTLSCert, PublicKey: []byte("cert")},
		}, nil),
		ks.EXPECT().NewSignKeypairRandom(gomock.Any()).Return(generated, nil),
	)

	rec := &signals.Recorder{}
	key, err := runner.FindOrGenerateKey(bg, ks, rec)
	require.NoError(t, err)
	assert.Equal(t, generated, key)
	assert.Equal(t, []signals.StateSignal{signals.CreatingKeys, signals.RegisteringDna}, rec.Signals())
}

func TestKeystoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	ks := mocks.NewMockKeystore(ctrl)
	boom := errors.New("socket closed")

	ks.EXPECT().ListEntries(gomock.Any()).Return(nil, boom)
	_, err := runner.FindOrGenerateKey(bg, ks, nil)
	var kerr *keystore.KeystoreError
	require.ErrorAs(t, err, &kerr)
	assert.ErrorIs(t, err, boom)

	ks.EXPECT().ListEntries(gomock.Any()).Return(nil, nil)
	ks.EXPECT().NewSignKeypairRandom(gomock.Any()).Return(keystore.AgentPubKey{}, boom)
	rec := &signals.Recorder{}
	_, err = runner.FindOrGenerateKey(bg, ks, rec)
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, []signals.StateSignal{signals.CreatingKeys}, rec.Signals())
}
