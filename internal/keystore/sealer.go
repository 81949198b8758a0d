package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/awnumar/memguard"
)

// canaryPlaintext is sealed once when a keystore is created. Unsealing it on open
// proves the passphrase before any entry is touched.
var canaryPlaintext = []byte("holochain-runner keystore")

var ErrWrongPassphrase = errors.New("keystore: passphrase does not unlock this keystore")

// Sealer encrypts entry secrets under the keystore passphrase with age's scrypt
// recipient. The passphrase stays in a memguard enclave and is only decrypted for
// the duration of one seal or unseal.
type Sealer struct {
	passphrase *memguard.Enclave
	workFactor int
}

func NewSealer(passphrase *memguard.Enclave, workFactor int) (*Sealer, error) {
	if passphrase == nil {
		return nil, errors.New("keystore: passphrase is required")
	}
	return &Sealer{
		passphrase: passphrase,
		workFactor: workFactor,
	}, nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	buf, err := s.passphrase.Open()
	if err != nil {
		return nil, fmt.Errorf("opening passphrase enclave: %w", err)
	}
	defer buf.Destroy()

	recipient, err := age.NewScryptRecipient(buf.String())
	if err != nil {
		return nil, err
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	var out bytes.Buffer
	w, err := age.Encrypt(&out, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing sealed secret: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing sealed secret: %w", err)
	}
	return out.Bytes(), nil
}

func (s *Sealer) Unseal(ciphertext []byte) ([]byte, error) {
	buf, err := s.passphrase.Open()
	if err != nil {
		return nil, fmt.Errorf("opening passphrase enclave: %w", err)
	}
	defer buf.Destroy()

	identity, err := age.NewScryptIdentity(buf.String())
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// NewCanary seals the canary plaintext for a fresh keystore.
func (s *Sealer) NewCanary() ([]byte, error) {
	return s.Seal(canaryPlaintext)
}

// CheckCanary returns ErrWrongPassphrase if sealed was not produced under the
// current passphrase.
func (s *Sealer) CheckCanary(sealed []byte) error {
	plain, err := s.Unseal(sealed)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return ErrWrongPassphrase
		}
		return err
	}
	if !bytes.Equal(plain, canaryPlaintext) {
		return ErrWrongPassphrase
	}
	return nil
}
