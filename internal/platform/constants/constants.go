// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package constants provides centralized, immutable values for the entire SDK.

It defines the persisted storage keys, the backend endpoint paths, default
timeouts, and rate limits shared between different layers of the system.

Categories:

  - Storage Keys: The five persisted keys owned by the session store.
  - Endpoints: Backend paths consumed by the API client and served by the dev stub.
  - Client Timing: Request timeouts for the API client.
  - Server Timing: Read/Write/Idle timeouts for the dev stub server.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "volstory-go"
	AppVersion = "0.1.0-dev"
)

// # Persisted Storage Keys

// Invariant: KeyUserData and KeyRefreshToken must be co-present for a
// session to be restorable. The other keys hydrate independently.
const (
	// KeyAccessToken stores the short-lived bearer credential.
	KeyAccessToken = "access_token"

	// KeyRefreshToken stores the long-lived credential used to mint new access tokens.
	KeyRefreshToken = "refresh_token"

	// KeyUserData stores the serialized User object of the active session.
	KeyUserData = "user_data"

	// KeySignupData stores the serialized onboarding bridge context.
	KeySignupData = "signup_data"

	// KeyRegistrationData stores the serialized multi-step wizard draft.
	KeyRegistrationData = "registration_data"
)

// # Backend Endpoints

const (
	// EndpointSignInWithGoogle exchanges a Google ID token for backend tokens.
	EndpointSignInWithGoogle = "/auth/signInWithGoogle"

	// EndpointLogin is reserved for a future password flow. It shares the
	// unauthenticated-semantics blocklist with the other auth endpoints.
	EndpointLogin = "/auth/login"

	// EndpointRefreshJWT mints a new access token from a refresh token.
	EndpointRefreshJWT = "/auth/refreshJWT"

	// EndpointCreateAccount finalizes registration. Requires a bearer token.
	EndpointCreateAccount = "/user/createAccount"
)

// # Client Timing

const (
	// DefaultRequestTimeout is the deadline for a single backend API call.
	// After this the call fails as a connectivity error.
	DefaultRequestTimeout = 30 * time.Second
)

// # Server Timing (dev stub)

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP on the dev stub.
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 100

	// DefaultOTPSendInterval is the minimum client-side spacing between two
	// OTP send attempts. Provider SMS quotas are the scarce resource here.
	DefaultOTPSendInterval = 30 * time.Second

	// DefaultOTPSendBurst allows an immediate first send plus one quick retry.
	DefaultOTPSendBurst = 2
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderAuthorization = "Authorization"
)

// # Error Envelope Fields

const (
	FieldCode  = "code"
	FieldError = "error"
)

// # Rate Limiter Housekeeping (dev stub)

const (
	// RateLimitCleanupInterval is how often stale per-IP limiters are swept.
	RateLimitCleanupInterval = 5 * time.Minute

	// RateLimitClientTTL is how long an idle IP keeps its limiter state.
	RateLimitClientTTL = 10 * time.Minute
)

// # Token Lifetimes (dev stub)

const (
	// AccessTokenTTL is the validity window of a minted access token.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the validity window of a minted refresh token.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// AuthIssuer is the standard 'iss' claim in minted JWTs.
	AuthIssuer = "volstory.app"
)

// # Registration Wizard

const (
	// WizardTotalSteps is the number of screens in the registration wizard.
	WizardTotalSteps = 3

	// MinRegistrationAge is the minimum age accepted at signup.
	MinRegistrationAge = 13

	// MaxInterests caps the interest tags a user may select.
	MaxInterests = 10
)
