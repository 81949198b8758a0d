package bundle

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

const dnaHashPrefix = "uhC0k"

// dnaDomainKey separates DNA hashes from any other BLAKE3 use.
var dnaDomainKey = [32]byte{
	'h', 'o', 'l', 'o', 'c', 'h', 'a', 'i', 'n', '-', 'r', 'u', 'n', 'n', 'e', 'r',
	'.', 'd', 'n', 'a', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var (
	ErrMalformedDna = errors.New("bundle: malformed dna")
	ErrInvalidDna   = errors.New("bundle: invalid dna")
)

type DnaHash [32]byte

func (h DnaHash) String() string {
	return dnaHashPrefix + base64.RawURLEncoding.EncodeToString(h[:])
}

func (h DnaHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *DnaHash) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) < len(dnaHashPrefix) || s[:len(dnaHashPrefix)] != dnaHashPrefix {
		return fmt.Errorf("dna hash %q missing %s prefix", s, dnaHashPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s[len(dnaHashPrefix):])
	if err != nil {
		return err
	}
	if len(raw) != len(h) {
		return fmt.Errorf("dna hash must be %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return nil
}

type Zome struct {
	Name string `cbor:"1,keyasint"`
	Code []byte `cbor:"2,keyasint"`
}

// DnaDef is the content of one DNA resource in an app bundle.
type DnaDef struct {
	Name        string `cbor:"1,keyasint"`
	NetworkSeed string `cbor:"2,keyasint,omitempty"`
	Properties  []byte `cbor:"3,keyasint,omitempty"`
	Zomes       []Zome `cbor:"4,keyasint"`
}

// Validate reports whether the DNA could run. The conductor refuses to register
// DNAs that fail it.
func (d *DnaDef) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDna)
	}
	if len(d.Zomes) == 0 {
		return fmt.Errorf("%w: %s has no zomes", ErrInvalidDna, d.Name)
	}
	seen := make(map[string]bool, len(d.Zomes))
	for _, z := range d.Zomes {
		if z.Name == "" {
			return fmt.Errorf("%w: %s has an unnamed zome", ErrInvalidDna, d.Name)
		}
		if seen[z.Name] {
			return fmt.Errorf("%w: %s has duplicate zome %s", ErrInvalidDna, d.Name, z.Name)
		}
		seen[z.Name] = true
		if len(z.Code) == 0 {
			return fmt.Errorf("%w: zome %s/%s has no code", ErrInvalidDna, d.Name, z.Name)
		}
	}
	return nil
}

// DnaFile is a decoded DNA with its network seed applied.
type DnaFile struct {
	Role string
	Def  DnaDef
	hash DnaHash
}

func (f *DnaFile) Hash() DnaHash {
	return f.hash
}

// EncodeDna encodes def deterministically.
func EncodeDna(def DnaDef) ([]byte, error) {
	return encMode.Marshal(def)
}

func DecodeDna(b []byte) (*DnaDef, error) {
	var def DnaDef
	if err := decMode.Unmarshal(b, &def); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedDna, err)
	}
	return &def, nil
}

// HashDna is the keyed BLAKE3 hash of def's deterministic encoding. Changing the
// network seed changes the hash, which is what partitions networks.
func HashDna(def DnaDef) (DnaHash, error) {
	encoded, err := EncodeDna(def)
	if err != nil {
		return DnaHash{}, err
	}
	h, err := blake3.NewKeyed(dnaDomainKey[:])
	if err != nil {
		return DnaHash{}, err
	}
	_, _ = h.Write(encoded)
	var out DnaHash
	copy(out[:], h.Sum(nil))
	return out, nil
}

func newDnaFile(role string, def DnaDef) (*DnaFile, error) {
	hash, err := HashDna(def)
	if err != nil {
		return nil, err
	}
	return &DnaFile{
		Role: role,
		Def:  def,
		hash: hash,
	}, nil
}

// NewDnaFile wraps an already decoded definition, computing its hash.
func NewDnaFile(role string, def DnaDef) (*DnaFile, error) {
	return newDnaFile(role, def)
}
