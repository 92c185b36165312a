// Package vault encrypts the persisted room collection under a key derived
// from an operator passphrase.
//
// Each save draws a fresh 16-byte salt and 12-byte nonce, derives a 256-bit
// key with PBKDF2-HMAC-SHA256 and seals the JSON state with AES-GCM. The
// blob file is JSON with base64 salt, nonce and ciphertext fields.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"bilheteria-cli/model"
	"bilheteria-cli/store"
)

const (
	// DefaultIterations is the PBKDF2 iteration count for new blobs.
	DefaultIterations = 200_000

	// MinIterations is the floor applied to configured and stored counts.
	MinIterations = 100_000

	// MaxIterations bounds the work a stored blob can demand before its tag
	// is checked.
	MaxIterations = 10 * DefaultIterations

	saltSize = 16
	keySize  = 32
)

var (
	// ErrAuthentication is returned for a wrong passphrase or a blob that
	// fails its authentication tag.
	ErrAuthentication = errors.New("vault: passphrase rejected or state tampered")

	errEmptyPassphrase = errors.New("vault: passphrase is required")
)

// EncryptedBlob is the on-disk form of the state. Byte fields marshal as
// standard base64.
type EncryptedBlob struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Iterations int    `json:"iterations"`
}

// Vault owns one encrypted state file.
type Vault struct {
	path       string
	iterations int
}

// New binds a Vault to path. Iteration counts are clamped to
// [MinIterations, MaxIterations].
func New(path string, iterations int) *Vault {
	return &Vault{path: path, iterations: clampIterations(iterations)}
}

func clampIterations(n int) int {
	return min(max(n, MinIterations), MaxIterations)
}

// Exists reports whether a blob has been saved.
func (v *Vault) Exists() bool {
	return store.Exists(v.path)
}

// Encrypt seals state under passphrase and replaces the stored blob.
func (v *Vault) Encrypt(state model.State, passphrase string) (EncryptedBlob, error) {
	plaintext, err := json.Marshal(state)
	if err != nil {
		return EncryptedBlob{}, fmt.Errorf("vault: encoding state: %w", err)
	}
	blob, err := Seal(plaintext, passphrase, v.iterations)
	if err != nil {
		return EncryptedBlob{}, err
	}
	if err := store.SaveJSON(v.path, blob, 0o600); err != nil {
		return EncryptedBlob{}, fmt.Errorf("vault: writing state: %w", err)
	}
	return blob, nil
}

// Decrypt loads and opens the stored blob. A missing blob is reported with
// found == false and no error; the caller picks the fallback state. A blob
// that no longer decodes counts as tampered.
func (v *Vault) Decrypt(passphrase string) (state model.State, found bool, err error) {
	blob, found, err := store.LoadJSON[EncryptedBlob](v.path)
	if err != nil {
		if found {
			return model.State{}, true, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return model.State{}, false, fmt.Errorf("vault: reading state: %w", err)
	}
	if !found {
		return model.State{}, false, nil
	}

	plaintext, err := Open(blob, passphrase)
	if err != nil {
		return model.State{}, true, err
	}
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return model.State{}, true, fmt.Errorf("vault: decoding state: %w", err)
	}
	return state, true, nil
}

// Seal encrypts plaintext with a fresh salt and nonce.
func Seal(plaintext []byte, passphrase string, iterations int) (EncryptedBlob, error) {
	if passphrase == "" {
		return EncryptedBlob{}, errEmptyPassphrase
	}
	iterations = clampIterations(iterations)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return EncryptedBlob{}, fmt.Errorf("vault: generating salt: %w", err)
	}
	aead, err := newAEAD(passphrase, salt, iterations)
	if err != nil {
		return EncryptedBlob{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedBlob{}, fmt.Errorf("vault: generating nonce: %w", err)
	}

	return EncryptedBlob{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		Iterations: iterations,
	}, nil
}

// Open authenticates and decrypts blob. It returns no plaintext unless the
// tag verifies.
func Open(blob EncryptedBlob, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errEmptyPassphrase
	}
	iterations := blob.Iterations
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations < MinIterations || iterations > MaxIterations || len(blob.Salt) == 0 {
		return nil, ErrAuthentication
	}

	aead, err := newAEAD(passphrase, blob.Salt, iterations)
	if err != nil {
		return nil, err
	}
	if len(blob.Nonce) != aead.NonceSize() {
		return nil, ErrAuthentication
	}
	plaintext, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newAEAD(passphrase string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: creating GCM: %w", err)
	}
	return aead, nil
}
