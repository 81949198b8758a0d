package test_helpers

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/awnumar/memguard"
	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkFactor keeps scrypt cheap in tests.
const TestWorkFactor = 10

func NewSealer(t *testing.T, passphrase string) *keystore.Sealer {
	t.Helper()
	sealer, err := keystore.NewSealer(memguard.NewEnclave([]byte(passphrase)), TestWorkFactor)
	require.NoError(t, err)
	return sealer
}

// Opener opens a backend at a fixed location with the given sealer.
type Opener func(sealer *keystore.Sealer) (keystore.Keystore, error)

// RunConformance exercises the behaviour every backend must share.
func RunConformance(t *testing.T, open Opener) {
	ctx := context.Background()

	ks, err := open(NewSealer(t, "correct horse"))
	require.NoError(t, err)

	entries, err := ks.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	importer, ok := ks.(keystore.Importer)
	require.True(t, ok, "backend should accept imported entries")

	_, err = importer.ImportEntry(ctx, keystore.KindTLSCert, []byte("cert"), []byte("cert-secret"))
	require.NoError(t, err)

	first, err := ks.NewSignKeypairRandom(ctx)
	require.NoError(t, err)
	assert.False(t, first.IsZero())

	_, err = importer.ImportEntry(ctx, keystore.KindSeed, []byte("seed"), []byte("seed-secret"))
	require.NoError(t, err)

	second, err := ks.NewSignKeypairRandom(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	entries, err = ks.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, keystore.KindTLSCert, entries[0].Kind)
	assert.Equal(t, keystore.KindSignEd25519, entries[1].Kind)
	assert.Equal(t, keystore.KindSeed, entries[2].Kind)
	assert.Equal(t, keystore.KindSignEd25519, entries[3].Kind)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Index, entries[i].Index)
	}
	k, ok := entries[1].SigningKey()
	require.True(t, ok)
	assert.Equal(t, first, k)

	require.NoError(t, ks.Close())
	_, err = ks.ListEntries(ctx)
	assert.ErrorIs(t, err, keystore.ErrClosed)

	// reopening with the same passphrase sees the same entries in the same order
	ks, err = open(NewSealer(t, "correct horse"))
	require.NoError(t, err)
	reopened, err := ks.ListEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, reopened)
	require.NoError(t, ks.Close())

	_, err = open(NewSealer(t, "wrong horse"))
	assert.ErrorIs(t, err, keystore.ErrWrongPassphrase)
	var ke *keystore.KeystoreError
	assert.ErrorAs(t, err, &ke)
}

// RandomAgentKey returns a fresh agent key without touching any keystore.
func RandomAgentKey(t *testing.T) keystore.AgentPubKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	k, err := keystore.AgentPubKeyFromBytes(pub)
	require.NoError(t, err)
	return k
}
