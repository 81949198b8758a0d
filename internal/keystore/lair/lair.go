// Package lair is a file-backed keystore laid out like a lair keystore directory:
// one CBOR file per entry, named by its index, so enumeration order is creation
// order. Secrets are sealed under the keystore passphrase.
package lair

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	entriesDir    = "entries"
	entrySuffix   = ".entry"
	canaryFile    = "passphrase.age"
	indexDigits   = 8
	filePerm      = 0600
	directoryPerm = 0700
)

type entryFile struct {
	Kind         string `cbor:"1,keyasint"`
	Tag          string `cbor:"2,keyasint"`
	PublicKey    []byte `cbor:"3,keyasint"`
	SealedSecret []byte `cbor:"4,keyasint"`
}

type Keystore struct {
	root   string
	sealer *keystore.Sealer

	mu     sync.Mutex
	closed bool
}

var _ keystore.Keystore = (*Keystore)(nil)
var _ keystore.Importer = (*Keystore)(nil)

// Open opens the keystore rooted at dir, creating it if needed. An existing
// keystore must be unlocked by the same passphrase it was created with.
func Open(dir string, sealer *keystore.Sealer) (*Keystore, error) {
	if err := os.MkdirAll(filepath.Join(dir, entriesDir), directoryPerm); err != nil {
		return nil, keystore.Wrap("open", err)
	}

	canaryPath := filepath.Join(dir, canaryFile)
	sealed, err := os.ReadFile(canaryPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		sealed, err = sealer.NewCanary()
		if err != nil {
			return nil, keystore.Wrap("seal canary", err)
		}
		if err := writeFileAtomic(canaryPath, sealed); err != nil {
			return nil, keystore.Wrap("write canary", err)
		}
		log.Info().Msgf("Created keystore at %s", dir)
	case err != nil:
		return nil, keystore.Wrap("read canary", err)
	default:
		if err := sealer.CheckCanary(sealed); err != nil {
			return nil, keystore.Wrap("unlock", err)
		}
	}

	return &Keystore{
		root:   dir,
		sealer: sealer,
	}, nil
}

func (k *Keystore) ListEntries(ctx context.Context) ([]keystore.Entry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, keystore.Wrap("list entries", keystore.ErrClosed)
	}
	indexes, err := k.indexes()
	if err != nil {
		return nil, keystore.Wrap("list entries", err)
	}

	entries := make([]keystore.Entry, 0, len(indexes))
	for _, idx := range indexes {
		if err := ctx.Err(); err != nil {
			return nil, keystore.Wrap("list entries", err)
		}
		f, err := k.readEntry(idx)
		if err != nil {
			return nil, keystore.Wrap(fmt.Sprintf("read entry %d", idx), err)
		}
		entries = append(entries, keystore.Entry{
			Index:     idx,
			Kind:      keystore.EntryKind(f.Kind),
			Tag:       f.Tag,
			PublicKey: f.PublicKey,
		})
	}
	return entries, nil
}

func (k *Keystore) NewSignKeypairRandom(ctx context.Context) (keystore.AgentPubKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return keystore.AgentPubKey{}, keystore.Wrap("generate keypair", err)
	}
	entry, err := k.ImportEntry(ctx, keystore.KindSignEd25519, pub, priv.Seed())
	if err != nil {
		return keystore.AgentPubKey{}, err
	}
	agent, _ := entry.SigningKey()
	return agent, nil
}

func (k *Keystore) ImportEntry(ctx context.Context, kind keystore.EntryKind, public, secret []byte) (keystore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return keystore.Entry{}, keystore.Wrap("import entry", err)
	}
	sealed, err := k.sealer.Seal(secret)
	if err != nil {
		return keystore.Entry{}, keystore.Wrap("seal secret", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return keystore.Entry{}, keystore.Wrap("import entry", keystore.ErrClosed)
	}
	indexes, err := k.indexes()
	if err != nil {
		return keystore.Entry{}, keystore.Wrap("import entry", err)
	}
	next := uint64(1)
	if len(indexes) > 0 {
		next = indexes[len(indexes)-1] + 1
	}

	f := entryFile{
		Kind:         string(kind),
		Tag:          uuid.New().String(),
		PublicKey:    public,
		SealedSecret: sealed,
	}
	b, err := cbor.Marshal(f)
	if err != nil {
		return keystore.Entry{}, keystore.Wrap("encode entry", err)
	}
	if err := writeFileAtomic(k.entryPath(next), b); err != nil {
		return keystore.Entry{}, keystore.Wrap("write entry", err)
	}
	return keystore.Entry{
		Index:     next,
		Kind:      kind,
		Tag:       f.Tag,
		PublicKey: public,
	}, nil
}

func (k *Keystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	return nil
}

// indexes returns the stored entry indexes in ascending order. Files that do not
// look like entries are skipped.
func (k *Keystore) indexes() ([]uint64, error) {
	dirEntries, err := os.ReadDir(filepath.Join(k.root, entriesDir))
	if err != nil {
		return nil, err
	}
	indexes := make([]uint64, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		idx, err := strconv.ParseUint(strings.TrimSuffix(name, entrySuffix), 10, 64)
		if err != nil {
			continue
		}
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes, nil
}

func (k *Keystore) entryPath(idx uint64) string {
	return filepath.Join(k.root, entriesDir, fmt.Sprintf("%0*d%s", indexDigits, idx, entrySuffix))
}

func (k *Keystore) readEntry(idx uint64) (*entryFile, error) {
	b, err := os.ReadFile(k.entryPath(idx))
	if err != nil {
		return nil, err
	}
	var f entryFile
	if err := cbor.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
