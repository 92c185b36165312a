// Package keystore persists the box-office ticket signing keypair.
//
// The RSA private key is stored as a PKCS#8 PEM document sealed in an
// armored age file whose only recipient is a scrypt passphrase. The public
// key is stored in clear as a PKIX PEM document so verifiers need no
// passphrase.
package keystore

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"bilheteria-cli/store"
)

const (
	// MinKeyBits is the smallest RSA modulus Generate accepts.
	MinKeyBits = 2048

	// DefaultWorkFactor is the scrypt log2(N) used to seal the private key.
	DefaultWorkFactor = 18

	maxWorkFactor = 22

	privatePEMType = "PRIVATE KEY"
	publicPEMType  = "PUBLIC KEY"
)

var (
	// ErrNotFound is returned when a key record does not exist.
	ErrNotFound = errors.New("keystore: key not found")

	// ErrAuthentication is returned when the passphrase cannot open the
	// private key envelope, or the envelope was altered.
	ErrAuthentication = errors.New("keystore: passphrase rejected or key material tampered")

	errEmptyPassphrase = errors.New("keystore: passphrase is required")
)

// KeyPair is a signing key and its public half.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Store reads and writes the two key records.
type Store struct {
	privatePath string
	publicPath  string
	bits        int
	workFactor  int
}

type Option func(*Store)

// WithKeyBits sets the RSA modulus size used by Generate.
func WithKeyBits(bits int) Option {
	return func(s *Store) { s.bits = bits }
}

// WithWorkFactor sets the scrypt work factor used when sealing.
func WithWorkFactor(logN int) Option {
	return func(s *Store) { s.workFactor = logN }
}

// New binds a Store to the private and public key files named by paths.
func New(paths store.Paths, opts ...Option) *Store {
	s := &Store{
		privatePath: paths.PrivateKey(),
		publicPath:  paths.PublicKey(),
		bits:        MinKeyBits,
		workFactor:  DefaultWorkFactor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exists reports whether a private key record is present. Callers use it
// to avoid regenerating by accident: Generate always overwrites.
func (s *Store) Exists() bool {
	return store.Exists(s.privatePath)
}

// Generate creates a new keypair and persists it, replacing any previous
// one. Tickets signed by the old key stop verifying.
func (s *Store) Generate(passphrase string) (KeyPair, error) {
	if passphrase == "" {
		return KeyPair{}, errEmptyPassphrase
	}
	if s.bits < MinKeyBits {
		return KeyPair{}, fmt.Errorf("keystore: key size %d below minimum %d", s.bits, MinKeyBits)
	}

	private, err := rsa.GenerateKey(rand.Reader, s.bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("keystore: generating RSA key: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return KeyPair{}, fmt.Errorf("keystore: encoding private key: %w", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: privateDER})

	sealed, err := s.seal(privatePEM, passphrase)
	if err != nil {
		return KeyPair{}, err
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("keystore: encoding public key: %w", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: publicDER})

	if err := store.WriteFileAtomic(s.privatePath, sealed, 0o600); err != nil {
		return KeyPair{}, fmt.Errorf("keystore: writing private key: %w", err)
	}
	if err := store.WriteFileAtomic(s.publicPath, publicPEM, 0o644); err != nil {
		return KeyPair{}, fmt.Errorf("keystore: writing public key: %w", err)
	}

	return KeyPair{Private: private, Public: &private.PublicKey}, nil
}

// LoadPrivate opens the private key envelope with passphrase.
func (s *Store) LoadPrivate(passphrase string) (*rsa.PrivateKey, error) {
	sealed, err := os.ReadFile(s.privatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("keystore: reading private key: %w", err)
	}
	if passphrase == "" {
		return nil, ErrAuthentication
	}

	privatePEM, err := s.open(sealed, passphrase)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(privatePEM)
	if block == nil || block.Type != privatePEMType {
		return nil, fmt.Errorf("keystore: private key record holds no %s block", privatePEMType)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: parsing private key: %w", err)
	}
	private, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keystore: private key is %T, want RSA", parsed)
	}
	return private, nil
}

// LoadPublic reads the clear public key record.
func (s *Store) LoadPublic() (*rsa.PublicKey, error) {
	data, err := os.ReadFile(s.publicPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("keystore: reading public key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicPEMType {
		return nil, fmt.Errorf("keystore: public key record holds no %s block", publicPEMType)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: parsing public key: %w", err)
	}
	public, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keystore: public key is %T, want RSA", parsed)
	}
	return public, nil
}

func (s *Store) seal(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("keystore: creating scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(s.workFactor)

	var out bytes.Buffer
	armored := armor.NewWriter(&out)
	writer, err := age.Encrypt(armored, recipient)
	if err != nil {
		return nil, fmt.Errorf("keystore: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("keystore: sealing private key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("keystore: finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("keystore: finalizing armor: %w", err)
	}
	return out.Bytes(), nil
}

// open fails closed: header, passphrase and payload authentication errors
// all surface as ErrAuthentication and no partial plaintext is returned.
func (s *Store) open(sealed []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("keystore: creating scrypt identity: %w", err)
	}
	identity.SetMaxWorkFactor(max(s.workFactor, maxWorkFactor))

	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(sealed)), identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return plaintext, nil
}
