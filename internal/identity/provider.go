// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package identity defines the capability surface the auth flows consume from
an identity provider, and its error vocabulary.

# Architecture

The mobile clients ship two capability-equivalent adapters (a native SDK and
a browser SDK) behind one interface. This package preserves that contract:
[Provider] is the interface, [RESTProvider] is the Go adapter speaking the
Identity Toolkit REST surface, and identitytest carries the scriptable fake.
The implementation is selected at wiring time, never by runtime branching.
*/
package identity

import (
	"context"

	"github.com/volstory/volstory-go/internal/platform/apperr"
)

// # Error Vocabulary

// Code is a provider error code the flow controllers branch on.
type Code string

const (
	// CodeProviderAlreadyLinked: the phone credential is already linked to
	// this identity. A benign race from a duplicate submit; flows treat it
	// as success.
	CodeProviderAlreadyLinked Code = "provider-already-linked"

	// CodeCredentialInUse: the phone number belongs to a different account.
	CodeCredentialInUse Code = "credential-already-in-use"

	// CodeAccountExists: the credential is tied to an account with a
	// different sign-in method.
	CodeAccountExists Code = "account-exists-with-different-credential"

	// CodeRequiresRecentLogin: the provider demands a fresh sign-in before
	// a sensitive operation (credential linking).
	CodeRequiresRecentLogin Code = "requires-recent-login"

	// CodeInvalidVerificationCode: the submitted OTP is wrong.
	CodeInvalidVerificationCode Code = "invalid-verification-code"
)

// Error builds the canonical provider error for a code.
func Error(code Code, message string) error {
	return apperr.Provider(string(code), message)
}

// CodeOf extracts the provider code from err, or "" when err carries none.
func CodeOf(err error) Code {
	ae := apperr.As(err)
	if ae == nil {
		return ""
	}
	switch Code(ae.Code) {
	case CodeProviderAlreadyLinked, CodeCredentialInUse, CodeAccountExists,
		CodeRequiresRecentLogin, CodeInvalidVerificationCode:
		return Code(ae.Code)
	}
	return ""
}

// # Result Shapes

// GoogleUser is the normalized profile a Google OAuth handshake yields.
type GoogleUser struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Identity is the provider's current signed-in account.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string

	// PhoneNumber is set once a phone credential has been linked. Its
	// presence is the (admittedly heuristic) "registered" signal the
	// Google flow branches on.
	PhoneNumber string
}

// # Capability Surface

// Provider is the identity capability the auth flows consume.
//
// Every method honors context cancellation. Methods return the provider
// error vocabulary above via [Error]; anything else is a transport-level
// failure.
type Provider interface {
	// SignInWithGoogle runs the full OAuth handshake and establishes a
	// provider session. Implementations must sign out any previous session
	// first so the account picker always appears.
	SignInWithGoogle(ctx context.Context) (*GoogleUser, error)

	// CurrentIdentity returns the signed-in account, or nil when the
	// provider session is gone.
	CurrentIdentity(ctx context.Context) (*Identity, error)

	// FreshIDToken force-mints a new ID token for the current identity,
	// reflecting any credentials linked since the last mint.
	FreshIDToken(ctx context.Context) (string, error)

	// SendPhoneVerification starts an SMS verification for an E.164 number
	// and returns the opaque verification handle.
	SendPhoneVerification(ctx context.Context, e164Number string) (string, error)

	// ConfirmPhoneLink confirms the OTP against the verification handle and
	// links the phone credential to the current identity.
	ConfirmPhoneLink(ctx context.Context, verificationID, code string) (*Identity, error)
}

// ChallengeResetter is implemented by adapters that render a challenge
// widget (web reCAPTCHA). The phone flow resets it after a failed send so
// the next attempt starts clean. Native adapters simply don't implement it.
type ChallengeResetter interface {
	ResetChallenge()
}
