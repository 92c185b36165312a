package ticket

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
)

var (
	testKeysOnce sync.Once
	testKey      *rsa.PrivateKey
	otherKey     *rsa.PrivateKey
	testKeysErr  error
)

// signingKeys returns two 2048-bit keys shared by every test in the package.
func signingKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	testKeysOnce.Do(func() {
		testKey, testKeysErr = rsa.GenerateKey(rand.Reader, 2048)
		if testKeysErr != nil {
			return
		}
		otherKey, testKeysErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if testKeysErr != nil {
		t.Fatalf("generating test keys: %v", testKeysErr)
	}
	return testKey, otherKey
}

type staticKeys struct {
	private *rsa.PrivateKey
	err     error
}

func (k staticKeys) LoadPrivate(string) (*rsa.PrivateKey, error) {
	if k.err != nil {
		return nil, k.err
	}
	return k.private, nil
}

func (k staticKeys) LoadPublic() (*rsa.PublicKey, error) {
	if k.err != nil {
		return nil, k.err
	}
	return &k.private.PublicKey, nil
}

type memoryReplay struct {
	ids       map[string]bool
	recordErr error
	checks    int
}

func newMemoryReplay() *memoryReplay {
	return &memoryReplay{ids: map[string]bool{}}
}

func (m *memoryReplay) Contains(id string) bool {
	m.checks++
	return m.ids[id]
}

func (m *memoryReplay) Record(id string) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.ids[id] = true
	return nil
}
