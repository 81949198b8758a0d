package conductor

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"
	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/eagraf/holochain-runner/internal/keystore/embedded"
	"github.com/eagraf/holochain-runner/internal/keystore/lair"
	"github.com/eagraf/holochain-runner/internal/node/config"
)

// openKeystore picks the backend from configuration: a lair directory when a
// keystore path is set, otherwise a sqlite keystore inside the datastore.
func openKeystore(cfg *config.NodeConfig, passphrase *memguard.Enclave) (keystore.Keystore, error) {
	sealer, err := keystore.NewSealer(passphrase, cfg.KeystoreWorkFactor())
	if err != nil {
		return nil, keystore.Wrap("open", err)
	}
	if path := cfg.KeystorePath(); path != "" {
		return lair.Open(path, sealer)
	}
	path := cfg.EmbeddedKeystorePath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, keystore.Wrap("open", err)
	}
	return embedded.Open(path, sealer)
}

// ensureTLSEntry gives the conductor a transport certificate the first time a
// keystore is used. Backends that cannot import entries are left alone.
func ensureTLSEntry(ctx context.Context, ks keystore.Keystore) error {
	importer, ok := ks.(keystore.Importer)
	if !ok {
		return nil
	}
	entries, err := ks.ListEntries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Kind == keystore.KindTLSCert {
			return nil
		}
	}

	der, key, err := selfSignedCert()
	if err != nil {
		return keystore.Wrap("generate tls cert", err)
	}
	_, err = importer.ImportEntry(ctx, keystore.KindTLSCert, der, key)
	return err
}

func selfSignedCert() (der []byte, pkcs8 []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "holochain-runner conductor"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		return nil, nil, err
	}
	pkcs8, err = x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	return der, pkcs8, nil
}
