// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

// Package api implements the typed client for the VolStory backend and the
// bearer-token transport that keeps its sessions alive.
//
// # Architecture
//
// [Client] exposes the three endpoints the auth subsystem consumes. It is
// deliberately not a general HTTP client: request and response shapes are
// fixed structs, and every failure is normalized into an [apperr.AppError]
// so flow controllers can branch on code and status instead of strings.
//
// The cross-cutting token logic lives in [AuthTransport], not here; the
// client only builds requests and decodes responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/volstory/volstory-go/internal/platform/apperr"
	"github.com/volstory/volstory-go/internal/platform/constants"
)

// # Wire Shapes

// SignInWithGoogleRequest is the payload for POST /auth/signInWithGoogle.
type SignInWithGoogleRequest struct {
	// IDToken is the OpenID Connect ID token received from the provider.
	IDToken string `json:"idToken"`
}

// SignInResponse is the backend's answer to a Google sign-in exchange.
type SignInResponse struct {
	// RefreshToken is the long-lived token used to mint access tokens.
	RefreshToken string `json:"refreshToken"`

	// IsRegistered reports whether the user completed the registration
	// wizard. False routes the caller into onboarding.
	IsRegistered bool `json:"isRegistered"`

	// AccessToken is the short-lived bearer, when the backend returns one
	// immediately.
	AccessToken string `json:"accessToken,omitempty"`
}

// RefreshJWTRequest is the payload for POST /auth/refreshJWT.
type RefreshJWTRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshJWTResponse carries the freshly minted access token.
type RefreshJWTResponse struct {
	AccessToken string `json:"accessToken"`
}

// CreateAccountRequest is the payload for POST /user/createAccount.
//
// Note the backend's field naming: the wizard collects "skills" but the
// wire field is "skillsets", and first/last name travel joined as "name".
type CreateAccountRequest struct {
	Name         string   `json:"name"`
	DateOfBirth  string   `json:"dateOfBirth"` // ISO 8601
	Gender       string   `json:"gender"`
	City         string   `json:"city"`
	Email        string   `json:"email"`
	MobileNumber string   `json:"mobileNumber"`
	Website      string   `json:"website,omitempty"`
	Interests    []string `json:"interests"`
	Skillsets    []string `json:"skillsets"`
}

// CreateAccountResponse is the backend's answer to account creation.
type CreateAccountResponse struct {
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	IsRegistered bool   `json:"isRegistered,omitempty"`
}

// apiError is the error envelope the backend returns on failure.
type apiError struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`

	// Details carries per-field messages on validation failures.
	Details []apperr.FieldError `json:"details"`
}

// # Client

// Client is the typed VolStory backend client.
//
// # Concurrency
//
// Safe for concurrent use; it holds no mutable state beyond the underlying
// [http.Client].
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient constructs a backend client.
//
// # Parameters
//   - baseURL: Backend origin, no trailing slash (e.g. "https://api.volstory.app").
//   - transport: Round tripper for all calls. Pass the [*AuthTransport] so
//     bearer injection and refresh-and-retry apply; nil falls back to
//     [http.DefaultTransport] (tests, unauthenticated tools).
//   - log: Structured logger.
func NewClient(baseURL string, transport http.RoundTripper, log *slog.Logger) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: transport,
			Timeout:   constants.DefaultRequestTimeout,
		},
		log: log,
	}
}

// BaseURL returns the configured backend origin.
func (client *Client) BaseURL() string { return client.baseURL }

// SignInWithGoogle exchanges a provider ID token for backend tokens.
//
// # Returns
//   - [*SignInResponse] on success.
//   - An [apperr.AppError] with HTTPStatus 401 when the backend does not
//     know this identity. Callers treat that as "not registered", not as a
//     transient failure.
func (client *Client) SignInWithGoogle(ctx context.Context, idToken string) (*SignInResponse, error) {
	var out SignInResponse
	err := client.post(ctx, constants.EndpointSignInWithGoogle, SignInWithGoogleRequest{IDToken: idToken}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshJWT manually mints a new access token.
//
// The [AuthTransport] performs its refreshes through a raw call rather than
// this method; this is exposed for tooling that needs an explicit refresh.
func (client *Client) RefreshJWT(ctx context.Context, refreshToken string) (*RefreshJWTResponse, error) {
	var out RefreshJWTResponse
	err := client.post(ctx, constants.EndpointRefreshJWT, RefreshJWTRequest{RefreshToken: refreshToken}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAccount finalizes registration. The bearer token is attached by the
// transport; callers never pass it explicitly.
func (client *Client) CreateAccount(ctx context.Context, payload CreateAccountRequest) (*CreateAccountResponse, error) {
	var out CreateAccountResponse
	err := client.post(ctx, constants.EndpointCreateAccount, payload, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// post sends a JSON POST and decodes the response into target.
func (client *Client) post(ctx context.Context, path string, body, target any) error {
	// ── 1. Request Construction ───────────────────────────────────────────
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: marshal %s request: %w", path, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("api: build %s request: %w", path, err)
	}
	request.Header.Set("Content-Type", "application/json")

	// ── 2. Dispatch ───────────────────────────────────────────────────────
	response, err := client.http.Do(request)
	if err != nil {
		// The network never answered: timeout, DNS, refused connection, or
		// a refresh failure surfaced by the transport.
		if ae := apperr.As(err); ae != nil {
			return ae
		}
		return apperr.Transport(err)
	}
	defer func() { _ = response.Body.Close() }()

	// ── 3. Error Mapping ──────────────────────────────────────────────────
	if response.StatusCode >= 400 {
		return errorFromResponse(path, response)
	}

	// ── 4. Decode ─────────────────────────────────────────────────────────
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return apperr.Transport(fmt.Errorf("api: decode %s response: %w", path, err))
	}

	return nil
}

// errorFromResponse converts a non-2xx response into an [apperr.AppError]
// carrying the HTTP status and the server's message when one is present.
func errorFromResponse(path string, response *http.Response) *apperr.AppError {
	var envelope apiError
	raw, _ := io.ReadAll(io.LimitReader(response.Body, 64<<10))
	_ = json.Unmarshal(raw, &envelope)

	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}
	if message == "" {
		message = http.StatusText(response.StatusCode)
	}

	code := envelope.Code
	if code == "" {
		code = "API_ERROR"
	}

	return &apperr.AppError{
		Code:       code,
		Message:    message,
		Details:    envelope.Details,
		HTTPStatus: response.StatusCode,
		Cause:      fmt.Errorf("api: %s returned %d", path, response.StatusCode),
	}
}

// # Token Inspection

// TokenExpiry returns the 'exp' claim of a JWT without verifying its
// signature. The client has no signing key and does not need one: the only
// local use of expiry is deciding whether a pre-emptive refresh is worth it,
// and the server re-checks everything anyway.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("api: parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("api: token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
