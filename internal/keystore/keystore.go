// Package keystore defines the capability set the runner needs from a secret
// store: enumerate what is stored, and mint a new random signing keypair.
// Backends live in sub-packages and are selected when the conductor is built.
package keystore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// agentKeyPrefix is prepended to the base64url rendering of agent keys so they
// are recognisable in logs and on the host protocol.
const agentKeyPrefix = "uhCAk"

// AgentPubKey is the public half of an ed25519 signing keypair; it identifies this
// node's agent in every cell it runs.
type AgentPubKey [32]byte

func AgentPubKeyFromBytes(b []byte) (AgentPubKey, error) {
	var k AgentPubKey
	if len(b) != len(k) {
		return k, fmt.Errorf("agent key must be %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

func ParseAgentPubKey(s string) (AgentPubKey, error) {
	if !strings.HasPrefix(s, agentKeyPrefix) {
		return AgentPubKey{}, fmt.Errorf("agent key %q missing %s prefix", s, agentKeyPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, agentKeyPrefix))
	if err != nil {
		return AgentPubKey{}, err
	}
	return AgentPubKeyFromBytes(raw)
}

func (k AgentPubKey) String() string {
	return agentKeyPrefix + base64.RawURLEncoding.EncodeToString(k[:])
}

func (k AgentPubKey) Bytes() []byte {
	return k[:]
}

func (k AgentPubKey) IsZero() bool {
	return k == AgentPubKey{}
}

type EntryKind string

const (
	KindSignEd25519 EntryKind = "sign_ed25519"
	KindTLSCert     EntryKind = "tls_cert"
	KindSeed        EntryKind = "seed"
)

// Entry is the public view of one stored item. Entries are returned in the
// backend's enumeration order, which is creation order for both backends.
type Entry struct {
	Index     uint64
	Kind      EntryKind
	Tag       string
	PublicKey []byte
}

// SigningKey returns the entry's agent key if it is a well-formed ed25519 signing
// keypair.
func (e Entry) SigningKey() (AgentPubKey, bool) {
	if e.Kind != KindSignEd25519 {
		return AgentPubKey{}, false
	}
	k, err := AgentPubKeyFromBytes(e.PublicKey)
	if err != nil {
		return AgentPubKey{}, false
	}
	return k, true
}

//go:generate mockgen -destination=mocks/mock_keystore.go -package=mocks . Keystore

type Keystore interface {
	// ListEntries returns every stored entry in enumeration order.
	ListEntries(ctx context.Context) ([]Entry, error)
	// NewSignKeypairRandom generates and persists a new ed25519 keypair.
	NewSignKeypairRandom(ctx context.Context) (AgentPubKey, error)
	Close() error
}

// Importer is implemented by backends that accept externally produced entries,
// such as TLS certificates or locked seeds.
type Importer interface {
	ImportEntry(ctx context.Context, kind EntryKind, public, secret []byte) (Entry, error)
}

var ErrClosed = errors.New("keystore: closed")

// KeystoreError marks a failure talking to the keystore. It is never retried.
type KeystoreError struct {
	Op  string
	Err error
}

func (e *KeystoreError) Error() string {
	return fmt.Sprintf("keystore: %s: %s", e.Op, e.Err)
}

func (e *KeystoreError) Unwrap() error {
	return e.Err
}

func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ke *KeystoreError
	if errors.As(err, &ke) {
		return err
	}
	return &KeystoreError{Op: op, Err: err}
}
