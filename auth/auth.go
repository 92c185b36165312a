// Package auth keeps the administrator password that guards destructive
// operator actions such as resetting the rooms or regenerating the keypair.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"bilheteria-cli/store"
)

const DefaultCost = bcrypt.DefaultCost

var (
	ErrNotFound      = errors.New("auth: no administrator password set")
	ErrWrongPassword = errors.New("auth: wrong administrator password")
	ErrEmptyPassword = errors.New("auth: administrator password is required")
)

type record struct {
	Hash string `json:"hash"`
}

// Credential is the bcrypt hash stored in the admin record file.
type Credential struct {
	path string
	cost int
}

// New binds a Credential to path. Costs outside bcrypt's range fall back to
// DefaultCost.
func New(path string, cost int) *Credential {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Credential{path: path, cost: cost}
}

func (c *Credential) Exists() bool {
	return store.Exists(c.path)
}

// Set hashes password and replaces the stored record.
func (c *Credential) Set(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return fmt.Errorf("auth: hashing password: %w", err)
	}
	if err := store.SaveJSON(c.path, record{Hash: string(hash)}, 0o600); err != nil {
		return fmt.Errorf("auth: writing record: %w", err)
	}
	return nil
}

// Verify checks password against the stored hash.
func (c *Credential) Verify(password string) error {
	rec, found, err := store.LoadJSON[record](c.path)
	if err != nil {
		return fmt.Errorf("auth: reading record: %w", err)
	}
	if !found || rec.Hash == "" {
		return ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(password)) != nil {
		return ErrWrongPassword
	}
	return nil
}
