package bundle

import (
	"fmt"
	"sort"
)

// Build assembles a bundle with one role per DNA definition, storing each DNA
// under "<role>.dna". Used by tooling and tests to produce .happ files.
func Build(name string, roles map[string]DnaDef, order ...string) (*AppBundle, error) {
	if len(order) == 0 {
		for role := range roles {
			order = append(order, role)
		}
		sort.Strings(order)
	}
	b := &AppBundle{
		Manifest: AppManifest{
			ManifestVersion: ManifestVersion,
			Name:            name,
		},
		Resources: make(map[string][]byte, len(roles)),
	}
	for _, role := range order {
		def, ok := roles[role]
		if !ok {
			return nil, fmt.Errorf("no dna for role %s", role)
		}
		encoded, err := EncodeDna(def)
		if err != nil {
			return nil, err
		}
		path := role + ".dna"
		b.Resources[path] = encoded
		b.Manifest.Roles = append(b.Manifest.Roles, RoleManifest{
			Name: role,
			Dna:  DnaLocation{Path: path},
		})
	}
	return b, nil
}
