// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

// Package identitytest provides a scriptable in-memory [identity.Provider]
// for flow-controller tests and the demo driver.
package identitytest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/volstory/volstory-go/internal/identity"
)

// Fake is a scriptable identity provider.
//
// Zero value is a provider with no session. Populate the public fields to
// script outcomes; the error fields, when set, are returned by the matching
// method instead of the scripted success.
type Fake struct {
	mu sync.Mutex

	// Scripted results.
	GoogleUser     identity.GoogleUser
	PhoneNumber    string // linked onto the identity by ConfirmPhoneLink
	IDToken        string
	VerificationID string

	// Scripted failures.
	SignInErr  error
	LookupErr  error
	TokenErr   error
	SendErr    error
	ConfirmErr error

	// Pre-linked phone: set to simulate an identity that already carries a
	// phone credential before any OTP flow runs.
	LinkedPhone string

	// Call counters.
	ConfirmCalls atomic.Int32
	SendCalls    atomic.Int32
	ResetCalls   atomic.Int32

	signedIn bool
	linked   bool
}

var _ identity.Provider = (*Fake)(nil)
var _ identity.ChallengeResetter = (*Fake)(nil)

// SignInWithGoogle establishes the scripted session.
func (f *Fake) SignInWithGoogle(ctx context.Context) (*identity.GoogleUser, error) {
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	f.mu.Lock()
	f.signedIn = true
	f.linked = f.LinkedPhone != ""
	f.mu.Unlock()
	user := f.GoogleUser
	return &user, nil
}

// CurrentIdentity mirrors the scripted session state.
func (f *Fake) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signedIn {
		return nil, nil
	}
	id := &identity.Identity{
		UID:         f.GoogleUser.UID,
		Email:       f.GoogleUser.Email,
		DisplayName: f.GoogleUser.DisplayName,
		PhotoURL:    f.GoogleUser.PhotoURL,
	}
	if f.linked {
		id.PhoneNumber = f.linkedNumberLocked()
	}
	return id, nil
}

// FreshIDToken returns the scripted token.
func (f *Fake) FreshIDToken(ctx context.Context) (string, error) {
	if f.TokenErr != nil {
		return "", f.TokenErr
	}
	return f.IDToken, nil
}

// SendPhoneVerification returns the scripted verification handle.
func (f *Fake) SendPhoneVerification(ctx context.Context, e164Number string) (string, error) {
	f.SendCalls.Add(1)
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.mu.Lock()
	f.PhoneNumber = e164Number
	f.mu.Unlock()
	return f.VerificationID, nil
}

// ConfirmPhoneLink links the scripted phone number onto the identity.
func (f *Fake) ConfirmPhoneLink(ctx context.Context, verificationID, code string) (*identity.Identity, error) {
	f.ConfirmCalls.Add(1)
	if f.ConfirmErr != nil {
		return nil, f.ConfirmErr
	}
	f.mu.Lock()
	f.linked = true
	f.mu.Unlock()
	return f.CurrentIdentity(ctx)
}

// ResetChallenge implements [identity.ChallengeResetter].
func (f *Fake) ResetChallenge() {
	f.ResetCalls.Add(1)
}

// linkedNumberLocked picks the effective linked number. Caller holds f.mu.
func (f *Fake) linkedNumberLocked() string {
	if f.LinkedPhone != "" {
		return f.LinkedPhone
	}
	return f.PhoneNumber
}
