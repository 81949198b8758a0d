package bundle

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDna(name string) DnaDef {
	return DnaDef{
		Name:  name,
		Zomes: []Zome{{Name: "main", Code: []byte("\x00asm")}},
	}
}

func TestDecodeBuiltBundle(t *testing.T) {
	b, err := Build("app", map[string]DnaDef{
		"alpha": testDna("alpha"),
		"beta":  testDna("beta"),
	})
	require.NoError(t, err)
	encoded, err := b.Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "app", decoded.Manifest.Name)
	require.Len(t, decoded.Manifest.Roles, 2)
	assert.Equal(t, "alpha", decoded.Manifest.Roles[0].Name)
	assert.Equal(t, "beta", decoded.Manifest.Roles[1].Name)

	dna, err := decoded.DnaFile(decoded.Manifest.Roles[0], "")
	require.NoError(t, err)
	assert.Equal(t, "alpha", dna.Role)
	assert.NoError(t, dna.Def.Validate())
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("not gzip"))
	assert.ErrorIs(t, err, ErrMalformedBundle)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte{0xff, 0xff})
	require.NoError(t, zw.Close())
	_, err = Decode(gz.Bytes())
	assert.ErrorIs(t, err, ErrMalformedBundle)

	noRoles := &AppBundle{Manifest: AppManifest{ManifestVersion: ManifestVersion, Name: "x"}}
	encoded, err := noRoles.Encode()
	require.NoError(t, err)
	_, err = Decode(encoded)
	assert.ErrorIs(t, err, ErrMalformedBundle)

	missing := &AppBundle{Manifest: AppManifest{
		ManifestVersion: ManifestVersion,
		Roles:           []RoleManifest{{Name: "a", Dna: DnaLocation{Path: "a.dna"}}},
	}}
	encoded, err = missing.Encode()
	require.NoError(t, err)
	_, err = Decode(encoded)
	assert.ErrorIs(t, err, ErrMalformedBundle)

	wrongVersion, err := Build("x", map[string]DnaDef{"a": testDna("a")})
	require.NoError(t, err)
	wrongVersion.Manifest.ManifestVersion = "2"
	encoded, err = wrongVersion.Encode()
	require.NoError(t, err)
	_, err = Decode(encoded)
	assert.ErrorIs(t, err, ErrMalformedBundle)
}

func TestMalformedDnaResource(t *testing.T) {
	b, err := Build("x", map[string]DnaDef{"a": testDna("a")})
	require.NoError(t, err)
	b.Resources["a.dna"] = []byte{0xff}
	_, err = b.DnaFile(b.Manifest.Roles[0], "")
	assert.ErrorIs(t, err, ErrMalformedDna)
}

func TestNetworkSeedChangesHash(t *testing.T) {
	b, err := Build("x", map[string]DnaDef{"a": testDna("a")})
	require.NoError(t, err)
	role := b.Manifest.Roles[0]

	plain, err := b.DnaFile(role, "")
	require.NoError(t, err)
	again, err := b.DnaFile(role, "")
	require.NoError(t, err)
	assert.Equal(t, plain.Hash(), again.Hash())

	seeded, err := b.DnaFile(role, "seed-1")
	require.NoError(t, err)
	assert.Equal(t, "seed-1", seeded.Def.NetworkSeed)
	assert.NotEqual(t, plain.Hash(), seeded.Hash())

	roleSeed := "role-seed"
	role.Dna.NetworkSeed = &roleSeed
	fromRole, err := b.DnaFile(role, "")
	require.NoError(t, err)
	assert.Equal(t, "role-seed", fromRole.Def.NetworkSeed)
	overridden, err := b.DnaFile(role, "seed-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.Hash(), overridden.Hash())
}

func TestDnaValidate(t *testing.T) {
	ok := testDna("a")
	assert.NoError(t, ok.Validate())

	cases := []DnaDef{
		{Zomes: ok.Zomes},
		{Name: "a"},
		{Name: "a", Zomes: []Zome{{Code: []byte{1}}}},
		{Name: "a", Zomes: []Zome{{Name: "z"}}},
		{Name: "a", Zomes: []Zome{{Name: "z", Code: []byte{1}}, {Name: "z", Code: []byte{1}}}},
	}
	for _, c := range cases {
		assert.ErrorIs(t, c.Validate(), ErrInvalidDna)
	}
}

func TestDnaHashText(t *testing.T) {
	h, err := HashDna(testDna("a"))
	require.NoError(t, err)
	text, err := h.MarshalText()
	require.NoError(t, err)

	var parsed DnaHash
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, h, parsed)
	assert.Error(t, parsed.UnmarshalText([]byte("uhCAkxxxx")))
}
