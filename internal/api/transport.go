// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package api

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

	"github.com/volstory/volstory-go/internal/platform/apperr"
	"github.com/volstory/volstory-go/internal/platform/constants"
)

// SessionHook lets the transport update the session without importing the
// session package (which would create an import cycle through the flows).
//
// # Implementations
//
// [session.Store] implements both methods; tests use lightweight fakes.
type SessionHook interface {
	// OnTokenRefreshed is called after a successful refresh with the new
	// access token. The hook owns persisting it and keeping any in-memory
	// user object consistent.
	OnTokenRefreshed(accessToken string)

	// OnSessionExpired is called when the server rejected the refresh token
	// with 401/403. The session is dead and must be torn down.
	OnSessionExpired()
}

// TokenReader is the narrow slice of the storage capability the transport
// needs: reading the two token keys. The session store and the transport
// intentionally share one storage instance (see the session package docs).
type TokenReader interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// blocklist holds the endpoints whose 401 responses carry domain meaning
// ("account not found", "refresh token invalid") rather than "access token
// expired". Refreshing on these would loop forever.
var blocklist = []string{
	constants.EndpointSignInWithGoogle,
	constants.EndpointLogin,
	constants.EndpointRefreshJWT,
}

// refreshOutcome is what queued requests receive when a refresh episode ends.
type refreshOutcome struct {
	token string
	err   error
}

// AuthTransport is an [http.RoundTripper] that attaches the stored bearer
// token to outgoing requests and transparently refreshes it on 401.
//
// # State Machine
//
// The transport is either idle or refreshing. The first request to hit a
// refreshable 401 starts the refresh; requests failing while one is in
// flight enqueue a continuation and are replayed, in FIFO order, with the
// single new token the episode produced. No request is ever retried with a
// stale token, and each request is retried at most once.
//
// # Failure Policy
//
// If the refresh itself fails, every queued continuation is rejected with
// the refresh error (a hanging goroutine is worse than a failed request).
// The session is torn down only when the server actively rejected the
// refresh token (401/403); network faults preserve it so the user can
// retry later.
type AuthTransport struct {
	// Base performs the actual HTTP round trips. nil means
	// [http.DefaultTransport].
	Base http.RoundTripper

	// Storage is the shared key-value store holding the token keys.
	Storage TokenReader

	// Hook receives session updates. Optional; when nil the transport
	// falls back to writing the token keys directly.
	Hook SessionHook

	// RefreshURL is the absolute URL of the refresh endpoint.
	RefreshURL string

	// Log is the structured logger for refresh episodes.
	Log *slog.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome
}

// RoundTrip implements [http.RoundTripper].
func (t *AuthTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	// ── 1. Bearer Injection ───────────────────────────────────────────────
	outgoing := request.Clone(request.Context())
	if token, ok := t.Storage.Get(constants.KeyAccessToken); ok && token != "" {
		outgoing.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := t.base().RoundTrip(outgoing)
	if err != nil {
		return nil, err
	}

	// ── 2. Pass-Through ───────────────────────────────────────────────────
	if response.StatusCode != http.StatusUnauthorized {
		return response, nil
	}

	// A 401 from an unauthenticated-semantics endpoint is a domain signal
	// for the caller, never a refresh trigger.
	if isBlocklisted(request.URL.Path) {
		return response, nil
	}

	// A request whose body cannot be replayed cannot be retried.
	if request.Body != nil && request.GetBody == nil {
		return response, nil
	}

	// ── 3. Refresh Episode ────────────────────────────────────────────────
	drain(response)

	token, refreshErr := t.awaitRefresh(request.Context())
	if refreshErr != nil {
		return nil, refreshErr
	}

	// ── 4. Retry Exactly Once ─────────────────────────────────────────────
	retry := request.Clone(request.Context())
	if request.GetBody != nil {
		body, bodyErr := request.GetBody()
		if bodyErr != nil {
			return nil, fmt.Errorf("api: replay request body: %w", bodyErr)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	return t.base().RoundTrip(retry)
}

// awaitRefresh either joins the in-flight refresh episode (FIFO) or starts
// one. It returns the new access token to retry with.
func (t *AuthTransport) awaitRefresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.refreshing {
		// Enqueue a continuation; it resolves when the episode ends.
		waiter := make(chan refreshOutcome, 1)
		t.waiters = append(t.waiters, waiter)
		t.mu.Unlock()

		select {
		case outcome := <-waiter:
			return outcome.token, outcome.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	t.refreshing = true
	t.mu.Unlock()

	token, err := t.refresh(ctx)

	// Always return to idle, success or not, before releasing waiters.
	t.mu.Lock()
	waiters := t.waiters
	t.waiters = nil
	t.refreshing = false
	t.mu.Unlock()

	for _, waiter := range waiters {
		waiter <- refreshOutcome{token: token, err: err}
	}

	return token, err
}

// refresh performs the actual token refresh and the resulting session
// mutation. Runs outside the mutex; only one goroutine is ever inside.
func (t *AuthTransport) refresh(ctx context.Context) (string, error) {
	// ── 1. Credential Check ───────────────────────────────────────────────
	refreshToken, ok := t.Storage.Get(constants.KeyRefreshToken)
	if !ok || refreshToken == "" {
		// No server was consulted, so HTTPStatus stays 0: the session is
		// preserved and the caller decides what to do.
		return "", &apperr.AppError{
			Code:    "SESSION_EXPIRED",
			Message: "No refresh token available in storage.",
		}
	}

	// ── 2. Raw Refresh Call ───────────────────────────────────────────────
	// Goes straight to the base transport: routing it through this
	// transport would recurse on its own 401.
	newToken, err := t.callRefresh(ctx, refreshToken)
	if err != nil {
		status := apperr.Status(err)
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			// The server actively rejected the refresh token. Dead session.
			t.Log.Warn("refresh token rejected, ending session",
				slog.Int("status", status),
			)
			if t.Hook != nil {
				t.Hook.OnSessionExpired()
			} else {
				t.clearSessionKeys()
			}
		} else {
			// Network or server fault. Keep the session so the user can
			// retry once connectivity returns.
			t.Log.Warn("token refresh failed, session preserved",
				slog.Any("error", err),
			)
		}
		return "", err
	}

	// ── 3. Session Update ─────────────────────────────────────────────────
	if t.Hook != nil {
		t.Hook.OnTokenRefreshed(newToken)
	} else {
		t.Storage.Set(constants.KeyAccessToken, newToken)
	}

	t.Log.Debug("access token refreshed")
	return newToken, nil
}

// callRefresh posts the refresh token and returns the new access token.
func (t *AuthTransport) callRefresh(ctx context.Context, refreshToken string) (string, error) {
	payload, err := json.Marshal(RefreshJWTRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", fmt.Errorf("api: marshal refresh request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.RefreshURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("api: build refresh request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Transport: t.base(),
		Timeout:   constants.DefaultRequestTimeout,
	}

	response, err := client.Do(request)
	if err != nil {
		return "", apperr.Transport(err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= 400 {
		return "", errorFromResponse(constants.EndpointRefreshJWT, response)
	}

	var out RefreshJWTResponse
	if err := json.NewDecoder(response.Body).Decode(&out); err != nil {
		return "", apperr.Transport(fmt.Errorf("api: decode refresh response: %w", err))
	}
	if out.AccessToken == "" {
		return "", apperr.Transport(fmt.Errorf("api: refresh returned empty access token"))
	}

	return out.AccessToken, nil
}

// clearSessionKeys tears the persisted session down when no hook is wired.
func (t *AuthTransport) clearSessionKeys() {
	t.Storage.Remove(constants.KeyAccessToken)
	t.Storage.Remove(constants.KeyRefreshToken)
	t.Storage.Remove(constants.KeyUserData)
	t.Storage.Remove(constants.KeySignupData)
	t.Storage.Remove(constants.KeyRegistrationData)
}

// base returns the effective underlying round tripper.
func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// isBlocklisted reports whether path belongs to an endpoint where 401 means
// "no such account / bad credential" instead of "token expired".
func isBlocklisted(path string) bool {
	for _, endpoint := range blocklist {
		if strings.Contains(path, endpoint) {
			return true
		}
	}
	return false
}

// drain discards and closes a response body so the connection can be reused.
func drain(response *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4<<10))
	_ = response.Body.Close()
}
