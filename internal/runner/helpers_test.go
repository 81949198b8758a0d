package runner_test

import (
	"context"
	"os"
	"testing"

	"github.com/eagraf/holochain-runner/internal/bundle"
	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/stretchr/testify/require"
)

func testDna(name string) bundle.DnaDef {
	return bundle.DnaDef{
		Name:  name,
		Zomes: []bundle.Zome{{Name: "main", Code: []byte("\x00asm " + name)}},
	}
}

func encodeBundle(t *testing.T, roles map[string]bundle.DnaDef) []byte {
	t.Helper()
	b, err := bundle.Build("test-app", roles)
	require.NoError(t, err)
	encoded, err := b.Encode()
	require.NoError(t, err)
	return encoded
}

func writeBundle(t *testing.T, path string, roles map[string]bundle.DnaDef) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, encodeBundle(t, roles), 0600))
}

func agentKey(b byte) keystore.AgentPubKey {
	var k keystore.AgentPubKey
	for i := range k {
		k[i] = b
	}
	return k
}

func signingEntry(idx uint64, k keystore.AgentPubKey) keystore.Entry {
	return keystore.Entry{Index: idx, Kind: keystore.KindSignEd25519, PublicKey: k.Bytes()}
}

var bg = context.Background()
