package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "bilheteria"

// File names inside the data directory.
const (
	StateFile      = "state.enc"
	ReplayFile     = "used_tickets.json"
	AdminFile      = "admin.json"
	PrivateKeyFile = "private_key.age"
	PublicKeyFile  = "public_key.pem"
	ticketsDir     = "tickets"
)

// Paths resolves every durable artifact relative to one data directory.
type Paths struct {
	Root string
}

func (p Paths) State() string      { return filepath.Join(p.Root, StateFile) }
func (p Paths) Replay() string     { return filepath.Join(p.Root, ReplayFile) }
func (p Paths) Admin() string      { return filepath.Join(p.Root, AdminFile) }
func (p Paths) PrivateKey() string { return filepath.Join(p.Root, PrivateKeyFile) }
func (p Paths) PublicKey() string  { return filepath.Join(p.Root, PublicKeyFile) }
func (p Paths) Tickets() string    { return filepath.Join(p.Root, ticketsDir) }

// Ticket returns the path an issued ticket is written to.
func (p Paths) Ticket(id string) string {
	return filepath.Join(p.Tickets(), fmt.Sprintf("ticket_%s.json", id))
}

// DefaultDataDir is the per-user directory used when no data_dir is configured.
func DefaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName), nil
}

// LoadJSON decodes path into a T. A missing file is not an error: the zero
// value is returned with found set to false.
func LoadJSON[T any](path string) (T, bool, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, false, nil
		}
		return out, false, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, true, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return out, true, nil
}

// SaveJSON writes v as indented JSON, replacing path atomically.
func SaveJSON[T any](path string, v T, perm os.FileMode) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, payload, perm)
}

// WriteFileAtomic writes data to a temporary sibling and renames it over
// path, so readers never observe a half-written artifact.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
