package lair

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/eagraf/holochain-runner/internal/keystore/test_helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keystore")
	test_helpers.RunConformance(t, func(sealer *keystore.Sealer) (keystore.Keystore, error) {
		return Open(dir, sealer)
	})
}

func TestIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	ks, err := Open(dir, test_helpers.NewSealer(t, "pass"))
	require.NoError(t, err)
	defer ks.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, entriesDir, "README"), []byte("hi"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, entriesDir, "abc.entry"), []byte("hi"), 0600))

	entries, err := ks.ListEntries(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCorruptEntryIsKeystoreError(t *testing.T) {
	dir := t.TempDir()
	ks, err := Open(dir, test_helpers.NewSealer(t, "pass"))
	require.NoError(t, err)
	defer ks.Close()

	require.NoError(t, os.WriteFile(ks.entryPath(1), []byte{0xff, 0x00}, 0600))
	_, err = ks.ListEntries(testContext(t))
	var ke *keystore.KeystoreError
	assert.ErrorAs(t, err, &ke)
}

// testContext stands in for testing.T.Context, which needs Go 1.24.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
