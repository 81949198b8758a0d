// Package bundle decodes .happ app bundles: a gzip-compressed CBOR document
// holding an app manifest and the DNA resources it references.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// ManifestVersion is the only manifest version this runner understands.
const ManifestVersion = "1"

// maxBundleSize bounds decompression of untrusted bundles.
const maxBundleSize = 256 << 20

var ErrMalformedBundle = errors.New("bundle: malformed app bundle")

type DnaLocation struct {
	Path        string  `cbor:"1,keyasint"`
	NetworkSeed *string `cbor:"2,keyasint,omitempty"`
}

type RoleManifest struct {
	Name string      `cbor:"1,keyasint"`
	Dna  DnaLocation `cbor:"2,keyasint"`
}

type AppManifest struct {
	ManifestVersion string         `cbor:"1,keyasint"`
	Name            string         `cbor:"2,keyasint"`
	Description     string         `cbor:"3,keyasint,omitempty"`
	Roles           []RoleManifest `cbor:"4,keyasint"`
}

type AppBundle struct {
	Manifest  AppManifest       `cbor:"1,keyasint"`
	Resources map[string][]byte `cbor:"2,keyasint"`
}

func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read app bundle from path %s: %w", path, err)
	}
	return b, nil
}

// Decode parses and validates a bundle. Only the container and manifest are
// checked here; individual DNAs are decoded per role by DnaFile.
func Decode(b []byte) (*AppBundle, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedBundle, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, maxBundleSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedBundle, err)
	}
	if len(raw) > maxBundleSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrMalformedBundle, maxBundleSize)
	}

	var bundle AppBundle
	if err := decMode.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedBundle, err)
	}
	if err := bundle.validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (b *AppBundle) validate() error {
	m := b.Manifest
	if m.ManifestVersion != ManifestVersion {
		return fmt.Errorf("%w: unsupported manifest version %q", ErrMalformedBundle, m.ManifestVersion)
	}
	if len(m.Roles) == 0 {
		return fmt.Errorf("%w: manifest declares no roles", ErrMalformedBundle)
	}
	seen := make(map[string]bool, len(m.Roles))
	for _, r := range m.Roles {
		if r.Name == "" {
			return fmt.Errorf("%w: role without a name", ErrMalformedBundle)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate role %s", ErrMalformedBundle, r.Name)
		}
		seen[r.Name] = true
		if _, ok := b.Resources[r.Dna.Path]; !ok {
			return fmt.Errorf("%w: role %s references missing resource %s", ErrMalformedBundle, r.Name, r.Dna.Path)
		}
	}
	return nil
}

// Encode is the inverse of Decode.
func (b *AppBundle) Encode() ([]byte, error) {
	raw, err := encMode.Marshal(b)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DnaFile decodes the DNA for role and applies the network seed. A non-empty
// override wins over the role's seed, which wins over the DNA's own.
func (b *AppBundle) DnaFile(role RoleManifest, seedOverride string) (*DnaFile, error) {
	raw, ok := b.Resources[role.Dna.Path]
	if !ok {
		return nil, fmt.Errorf("%w: role %s references missing resource %s", ErrMalformedBundle, role.Name, role.Dna.Path)
	}
	def, err := DecodeDna(raw)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", role.Name, err)
	}
	switch {
	case seedOverride != "":
		def.NetworkSeed = seedOverride
	case role.Dna.NetworkSeed != nil:
		def.NetworkSeed = *role.Dna.NetworkSeed
	}
	return newDnaFile(role.Name, *def)
}
