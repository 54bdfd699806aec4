// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const restRequestTimeout = 30 * time.Second

// OAuthCredentialFunc produces a Google OAuth ID token for the person at
// the keyboard. How it does so is host-specific: a CLI device flow, a
// loopback browser redirect, or a fixture in tests. The REST adapter stays
// agnostic.
type OAuthCredentialFunc func(ctx context.Context) (string, error)

// RESTProvider implements [Provider] against the Identity Toolkit REST
// surface (the same API the web SDK speaks).
//
// # Session State
//
// The adapter holds the provider session in memory: the current ID token
// and the account snapshot from the last lookup. This mirrors the SDK
// adapters on mobile, where the provider owns its own session separately
// from the app session.
type RESTProvider struct {
	apiKey     string
	baseURL    string
	credential OAuthCredentialFunc
	http       *http.Client
	log        *slog.Logger

	mu      sync.Mutex
	idToken string
	current *Identity
}

// NewRESTProvider constructs the adapter.
//
// # Parameters
//   - apiKey: Identity Toolkit web API key.
//   - baseURL: API origin, usually "https://identitytoolkit.googleapis.com/v1".
//   - credential: Supplier of Google OAuth ID tokens (see [OAuthCredentialFunc]).
//   - log: Structured logger.
func NewRESTProvider(apiKey, baseURL string, credential OAuthCredentialFunc, log *slog.Logger) *RESTProvider {
	return &RESTProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		http:       &http.Client{Timeout: restRequestTimeout},
		log:        log,
	}
}

// # Wire Shapes (Identity Toolkit)

type signInWithIdpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
}

type signInWithIdpResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	IDToken     string `json:"idToken"`
}

type sendVerificationCodeRequest struct {
	PhoneNumber    string `json:"phoneNumber"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
}

type sendVerificationCodeResponse struct {
	SessionInfo string `json:"sessionInfo"`
}

type signInWithPhoneRequest struct {
	SessionInfo string `json:"sessionInfo"`
	Code        string `json:"code"`
	// IDToken switches the call from "sign in" to "link to this account".
	IDToken string `json:"idToken,omitempty"`
}

type signInWithPhoneResponse struct {
	LocalID     string `json:"localId"`
	PhoneNumber string `json:"phoneNumber"`
	IDToken     string `json:"idToken"`
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoUrl"`
		PhoneNumber string `json:"phoneNumber"`
	} `json:"users"`
}

type restError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// # Provider Implementation

// SignInWithGoogle exchanges a Google OAuth credential for a provider
// session via accounts:signInWithIdp.
func (p *RESTProvider) SignInWithGoogle(ctx context.Context) (*GoogleUser, error) {
	// ── 1. Session Cleanup ────────────────────────────────────────────────
	// Drop any previous provider session first, so the credential supplier
	// always prompts for an account instead of silently reusing one.
	p.mu.Lock()
	p.idToken = ""
	p.current = nil
	p.mu.Unlock()

	// ── 2. OAuth Credential ───────────────────────────────────────────────
	oauthIDToken, err := p.credential(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: obtain google credential: %w", err)
	}

	// ── 3. Token Exchange ─────────────────────────────────────────────────
	var out signInWithIdpResponse
	err = p.post(ctx, "accounts:signInWithIdp", signInWithIdpRequest{
		PostBody:            "id_token=" + oauthIDToken + "&providerId=google.com",
		RequestURI:          "http://localhost",
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
	}, &out)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.idToken = out.IDToken
	p.current = &Identity{
		UID:         out.LocalID,
		Email:       out.Email,
		DisplayName: out.DisplayName,
		PhotoURL:    out.PhotoURL,
	}
	p.mu.Unlock()

	// Refresh the snapshot: signInWithIdp omits phoneNumber, and the flows
	// branch on it.
	if _, err := p.CurrentIdentity(ctx); err != nil {
		p.log.Warn("identity lookup after sign-in failed", slog.Any("error", err))
	}

	return &GoogleUser{
		UID:         out.LocalID,
		Email:       out.Email,
		DisplayName: out.DisplayName,
		PhotoURL:    out.PhotoURL,
	}, nil
}

// CurrentIdentity looks up the active account via accounts:lookup.
// Returns nil when no provider session exists.
func (p *RESTProvider) CurrentIdentity(ctx context.Context) (*Identity, error) {
	p.mu.Lock()
	token := p.idToken
	p.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	var out lookupResponse
	if err := p.post(ctx, "accounts:lookup", lookupRequest{IDToken: token}, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, nil
	}

	account := out.Users[0]
	identity := &Identity{
		UID:         account.LocalID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		PhotoURL:    account.PhotoURL,
		PhoneNumber: account.PhoneNumber,
	}

	p.mu.Lock()
	p.current = identity
	p.mu.Unlock()

	return identity, nil
}

// FreshIDToken returns the session's current ID token. The token is
// replaced on every credential operation (sign-in, phone link), which is
// exactly when its claims change; between those points the held token is
// as fresh as a forced mint.
func (p *RESTProvider) FreshIDToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idToken == "" {
		return "", fmt.Errorf("identity: no provider session")
	}
	return p.idToken, nil
}

// SendPhoneVerification starts an SMS verification and returns the opaque
// session handle.
func (p *RESTProvider) SendPhoneVerification(ctx context.Context, e164Number string) (string, error) {
	var out sendVerificationCodeResponse
	err := p.post(ctx, "accounts:sendVerificationCode", sendVerificationCodeRequest{
		PhoneNumber: e164Number,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.SessionInfo, nil
}

// ConfirmPhoneLink confirms the OTP and links the phone credential to the
// current identity (the idToken field turns sign-in into linking).
func (p *RESTProvider) ConfirmPhoneLink(ctx context.Context, verificationID, code string) (*Identity, error) {
	p.mu.Lock()
	token := p.idToken
	p.mu.Unlock()

	if token == "" {
		return nil, fmt.Errorf("identity: no provider session to link against")
	}

	var out signInWithPhoneResponse
	err := p.post(ctx, "accounts:signInWithPhoneNumber", signInWithPhoneRequest{
		SessionInfo: verificationID,
		Code:        code,
		IDToken:     token,
	}, &out)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.idToken = out.IDToken
	if p.current != nil {
		p.current.PhoneNumber = out.PhoneNumber
	}
	identity := p.current
	p.mu.Unlock()

	if identity == nil {
		identity = &Identity{UID: out.LocalID, PhoneNumber: out.PhoneNumber}
	}
	return identity, nil
}

// post sends a JSON POST to an Identity Toolkit method and decodes the
// response, translating API error messages into the provider vocabulary.
func (p *RESTProvider) post(ctx context.Context, method string, body, target any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("identity: marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/%s?key=%s", p.baseURL, method, p.apiKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("identity: build %s request: %w", method, err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := p.http.Do(request)
	if err != nil {
		return fmt.Errorf("identity: %s: %w", method, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 64<<10))
		var envelope restError
		_ = json.Unmarshal(raw, &envelope)
		return translateRESTError(method, envelope.Error.Message)
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("identity: decode %s response: %w", method, err)
	}
	return nil
}

// translateRESTError maps Identity Toolkit error identifiers onto the
// provider vocabulary the flows branch on.
func translateRESTError(method, message string) error {
	identifier := message
	// Messages can carry a suffix, e.g. "INVALID_CODE : ...".
	if idx := strings.IndexAny(identifier, " :"); idx > 0 {
		identifier = identifier[:idx]
	}

	switch identifier {
	case "INVALID_CODE", "INVALID_VERIFICATION_CODE", "SESSION_EXPIRED":
		return Error(CodeInvalidVerificationCode, "The code you entered is incorrect.")
	case "PHONE_EXISTS", "CREDENTIAL_ALREADY_IN_USE":
		return Error(CodeCredentialInUse, "This phone number is already in use by another account.")
	case "FEDERATED_USER_ID_ALREADY_LINKED", "PROVIDER_ALREADY_LINKED":
		return Error(CodeProviderAlreadyLinked, "This credential is already linked.")
	case "EMAIL_EXISTS", "ACCOUNT_EXISTS_WITH_DIFFERENT_CREDENTIAL":
		return Error(CodeAccountExists, "An account already exists with a different sign-in method.")
	case "CREDENTIAL_TOO_OLD_LOGIN_AGAIN", "TOKEN_EXPIRED":
		return Error(CodeRequiresRecentLogin, "Please sign in with Google again.")
	}

	if message == "" {
		message = "provider request failed"
	}
	return fmt.Errorf("identity: %s: %s", method, message)
}
