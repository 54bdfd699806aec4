// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package devserver

import (
	"sync"
	"time"

	"github.com/volstory/volstory-go/internal/platform/apperr"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/sec"
	"github.com/volstory/volstory-go/pkg/uuidv7"
)

// Account is the dev stub's user record.
//
// Provisional accounts (Registered == false) exist between phone
// verification and the final createAccount call. A restart wipes them,
// which is the accepted dev-stub trade-off.
type Account struct {
	ID          string
	IdentityKey string
	Name        string
	Email       string
	Phone       string
	City        string
	Gender      string
	DateOfBirth string
	Website     string
	Interests   []string
	Skillsets   []string
	Registered  bool
	CreatedAt   time.Time
}

// Registry is the in-memory account and refresh-token store.
//
// # Concurrency
//
// All methods are safe for concurrent use. Refresh tokens are stored only
// as SHA-256 digests; the raw value exists solely in the HTTP response.
type Registry struct {
	mu           sync.Mutex
	byIdentity   map[string]*Account
	byID         map[string]*Account
	refreshIndex map[string]refreshRecord // hashed token -> record
}

type refreshRecord struct {
	accountID string
	expiresAt time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity:   make(map[string]*Account),
		byID:         make(map[string]*Account),
		refreshIndex: make(map[string]refreshRecord),
	}
}

// # Account Lookup

// FindByIdentity returns the account for a provider identity key, or nil.
func (registry *Registry) FindByIdentity(identityKey string) *Account {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if account, ok := registry.byIdentity[identityKey]; ok {
		copied := *account
		return &copied
	}
	return nil
}

// FindByID returns the account with the given ID, or nil.
func (registry *Registry) FindByID(accountID string) *Account {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if account, ok := registry.byID[accountID]; ok {
		copied := *account
		return &copied
	}
	return nil
}

// EnsureProvisional returns the account for the identity key, creating an
// unregistered one when none exists yet. The bool reports whether the
// account was already present.
func (registry *Registry) EnsureProvisional(identityKey, name, email, phone string) (*Account, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if account, ok := registry.byIdentity[identityKey]; ok {
		copied := *account
		return &copied, true
	}

	accountID := uuidv7.New()

	account := &Account{
		ID:          accountID,
		IdentityKey: identityKey,
		Name:        name,
		Email:       email,
		Phone:       phone,
		CreatedAt:   time.Now(),
	}
	registry.byIdentity[identityKey] = account
	registry.byID[accountID] = account

	copied := *account
	return &copied, false
}

// CompleteRegistration fills in the profile and flips the account to
// registered. It fails when the account does not exist or is already
// registered.
func (registry *Registry) CompleteRegistration(accountID string, profile Account) (*Account, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	account, ok := registry.byID[accountID]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	if account.Registered {
		return nil, apperr.Conflict("Account already registered")
	}

	account.Name = profile.Name
	account.Email = profile.Email
	account.City = profile.City
	account.Gender = profile.Gender
	account.DateOfBirth = profile.DateOfBirth
	account.Website = profile.Website
	account.Interests = append([]string(nil), profile.Interests...)
	account.Skillsets = append([]string(nil), profile.Skillsets...)
	if profile.Phone != "" {
		account.Phone = profile.Phone
	}
	account.Registered = true

	copied := *account
	return &copied, nil
}

// # Refresh Tokens

// IssueRefreshToken mints an opaque refresh token bound to the account and
// returns the raw value. Only its hash is retained.
func (registry *Registry) IssueRefreshToken(accountID string) (string, error) {
	token, err := sec.NewRefreshToken()
	if err != nil {
		return "", err
	}

	registry.mu.Lock()
	registry.refreshIndex[sec.HashToken(token)] = refreshRecord{
		accountID: accountID,
		expiresAt: time.Now().Add(constants.RefreshTokenTTL),
	}
	registry.mu.Unlock()

	return token, nil
}

// RedeemRefreshToken resolves a raw refresh token to its account ID.
// Expired records are deleted on contact.
func (registry *Registry) RedeemRefreshToken(token string) (string, bool) {
	hashed := sec.HashToken(token)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	record, ok := registry.refreshIndex[hashed]
	if !ok {
		return "", false
	}
	if time.Now().After(record.expiresAt) {
		delete(registry.refreshIndex, hashed)
		return "", false
	}
	return record.accountID, true
}

// RevokeRefreshToken removes a refresh token. Unknown tokens are a no-op.
func (registry *Registry) RevokeRefreshToken(token string) {
	registry.mu.Lock()
	delete(registry.refreshIndex, sec.HashToken(token))
	registry.mu.Unlock()
}
