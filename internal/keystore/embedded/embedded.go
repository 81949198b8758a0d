// Package embedded keeps the keystore inside the datastore as a sqlite database,
// for nodes configured without a separate keystore directory.
package embedded

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const canaryKey = "passphrase_canary"

type entryRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Kind         string `gorm:"not null"`
	Tag          string `gorm:"uniqueIndex;not null"`
	PublicKey    []byte
	SealedSecret []byte
	CreatedAt    time.Time
}

func (entryRecord) TableName() string {
	return "keystore_entries"
}

type metaRecord struct {
	Key   string `gorm:"primaryKey;column:name"`
	Value []byte
}

func (metaRecord) TableName() string {
	return "keystore_meta"
}

type Keystore struct {
	db     *gorm.DB
	sealer *keystore.Sealer

	mu     sync.Mutex
	closed bool
}

var _ keystore.Keystore = (*Keystore)(nil)
var _ keystore.Importer = (*Keystore)(nil)

// Open opens (or creates) the sqlite keystore at path.
func Open(path string, sealer *keystore.Sealer) (*Keystore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, keystore.Wrap("open", err)
	}
	ks := &Keystore{
		db:     db,
		sealer: sealer,
	}
	if err := ks.init(); err != nil {
		_ = ks.closeDB()
		return nil, err
	}
	return ks, nil
}

func (k *Keystore) init() error {
	if err := k.db.AutoMigrate(&entryRecord{}, &metaRecord{}); err != nil {
		return keystore.Wrap("migrate", err)
	}

	var canary metaRecord
	err := k.db.Where("name = ?", canaryKey).First(&canary).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sealed, err := k.sealer.NewCanary()
		if err != nil {
			return keystore.Wrap("seal canary", err)
		}
		if err := k.db.Create(&metaRecord{Key: canaryKey, Value: sealed}).Error; err != nil {
			return keystore.Wrap("write canary", err)
		}
		log.Info().Msg("Created embedded keystore")
		return nil
	case err != nil:
		return keystore.Wrap("read canary", err)
	default:
		return keystore.Wrap("unlock", k.sealer.CheckCanary(canary.Value))
	}
}

func (k *Keystore) ListEntries(ctx context.Context) ([]keystore.Entry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, keystore.Wrap("list entries", keystore.ErrClosed)
	}

	var records []entryRecord
	err := k.db.WithContext(ctx).Order("id asc").Find(&records).Error
	if err != nil {
		return nil, keystore.Wrap("list entries", err)
	}
	entries := make([]keystore.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, keystore.Entry{
			Index:     r.ID,
			Kind:      keystore.EntryKind(r.Kind),
			Tag:       r.Tag,
			PublicKey: r.PublicKey,
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
	sealed, err := k.sealer.Seal(secret)
	if err != nil {
		return keystore.Entry{}, keystore.Wrap("seal secret", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return keystore.Entry{}, keystore.Wrap("import entry", keystore.ErrClosed)
	}

	record := &entryRecord{
		Kind:         string(kind),
		Tag:          uuid.New().String(),
		PublicKey:    public,
		SealedSecret: sealed,
	}
	if err := k.db.WithContext(ctx).Create(record).Error; err != nil {
		return keystore.Entry{}, keystore.Wrap("import entry", err)
	}
	return keystore.Entry{
		Index:     record.ID,
		Kind:      kind,
		Tag:       record.Tag,
		PublicKey: public,
	}, nil
}

func (k *Keystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.closeDB()
}

func (k *Keystore) closeDB() error {
	sqlDB, err := k.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
