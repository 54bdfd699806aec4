// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volstory/volstory-go/internal/api"
	"github.com/volstory/volstory-go/internal/platform/apperr"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/storage"
)

// sessionSpy records transport hook calls. Like the real session store it
// writes the refreshed token through to storage.
type sessionSpy struct {
	kv        *storage.Memory
	mu        sync.Mutex
	refreshed []string
	expired   int
}

func (spy *sessionSpy) OnTokenRefreshed(accessToken string) {
	if spy.kv != nil {
		spy.kv.Set(constants.KeyAccessToken, accessToken)
	}
	spy.mu.Lock()
	defer spy.mu.Unlock()
	spy.refreshed = append(spy.refreshed, accessToken)
}

func (spy *sessionSpy) OnSessionExpired() {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	spy.expired++
}

func (spy *sessionSpy) expiredCount() int {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	return spy.expired
}

// stubBackend is an httptest server that rejects stale bearers and counts
// refresh calls.
type stubBackend struct {
	server       *httptest.Server
	refreshCalls atomic.Int32
	apiCalls     atomic.Int32

	mu           sync.Mutex
	validToken   string
	nextToken    string
	refuseStatus int // when non-zero, the refresh endpoint fails with it
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	backend := &stubBackend{validToken: "fresh-token", nextToken: "fresh-token"}

	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointRefreshJWT, func(writer http.ResponseWriter, request *http.Request) {
		backend.refreshCalls.Add(1)

		// Hold the episode open briefly so concurrently failing requests
		// coalesce onto it instead of starting their own.
		time.Sleep(50 * time.Millisecond)

		backend.mu.Lock()
		refuse := backend.refuseStatus
		token := backend.nextToken
		backend.validToken = token
		backend.mu.Unlock()

		if refuse != 0 {
			writer.WriteHeader(refuse)
			_, _ = writer.Write([]byte(`{"code":"INVALID_REFRESH_TOKEN","error":"Refresh token is invalid or expired."}`))
			return
		}
		_ = json.NewEncoder(writer).Encode(api.RefreshJWTResponse{AccessToken: token})
	})
	mux.HandleFunc("/resource", func(writer http.ResponseWriter, request *http.Request) {
		backend.apiCalls.Add(1)

		backend.mu.Lock()
		valid := "Bearer " + backend.validToken
		backend.mu.Unlock()

		if request.Header.Get("Authorization") != valid {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(request.Body)
		_, _ = writer.Write(body)
	})
	mux.HandleFunc(constants.EndpointSignInWithGoogle, func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
		_, _ = writer.Write([]byte(`{"code":"USER_NOT_FOUND","error":"User not found. Please sign up."}`))
	})

	backend.server = httptest.NewServer(mux)
	t.Cleanup(backend.server.Close)
	return backend
}

func newTransportClient(backend *stubBackend, kv *storage.Memory, spy *sessionSpy) *http.Client {
	return &http.Client{
		Transport: &api.AuthTransport{
			Storage:    kv,
			Hook:       spy,
			RefreshURL: backend.server.URL + constants.EndpointRefreshJWT,
			Log:        slog.Default(),
		},
	}
}

func postResource(t *testing.T, client *http.Client, baseURL, body string) *http.Response {
	t.Helper()
	response, err := client.Post(baseURL+"/resource", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	return response
}

/*
TestAuthTransport_RefreshAndRetryOnce verifies the core episode: a stale
bearer triggers exactly one refresh and the request is replayed, body and
all, with the new token.
*/
func TestAuthTransport_RefreshAndRetryOnce(t *testing.T) {
	backend := newStubBackend(t)
	kv := storage.NewMemory()
	kv.Set(constants.KeyAccessToken, "stale-token")
	kv.Set(constants.KeyRefreshToken, "refresh-1")
	spy := &sessionSpy{kv: kv}

	client := newTransportClient(backend, kv, spy)
	response := postResource(t, client, backend.server.URL, "hello")
	defer func() { _ = response.Body.Close() }()

	assert.Equal(t, http.StatusOK, response.StatusCode)
	body, _ := io.ReadAll(response.Body)
	assert.Equal(t, "hello", string(body), "retry must replay the original body")

	assert.Equal(t, int32(1), backend.refreshCalls.Load())
	assert.Equal(t, int32(2), backend.apiCalls.Load(), "original attempt plus one retry")
	assert.Equal(t, []string{"fresh-token"}, spy.refreshed)
}

/*
TestAuthTransport_ConcurrentRequestsShareOneRefresh verifies that several
requests failing during the same episode produce a single refresh call and
all retry with the one new token.
*/
func TestAuthTransport_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	backend := newStubBackend(t)
	kv := storage.NewMemory()
	kv.Set(constants.KeyAccessToken, "stale-token")
	kv.Set(constants.KeyRefreshToken, "refresh-1")
	spy := &sessionSpy{kv: kv}

	client := newTransportClient(backend, kv, spy)

	const parallel = 8
	var wg sync.WaitGroup
	statuses := make([]int, parallel)

	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			response := postResource(t, client, backend.server.URL, fmt.Sprintf("req-%d", i))
			defer func() { _ = response.Body.Close() }()
			statuses[i] = response.StatusCode
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		assert.Equal(t, http.StatusOK, status, "request %d", i)
	}
	// The requests race the start of the episode: those that got their 401
	// before the first refresh finished must coalesce onto it.
	assert.LessOrEqual(t, backend.refreshCalls.Load(), int32(2))
	assert.GreaterOrEqual(t, backend.refreshCalls.Load(), int32(1))
}

/*
TestAuthTransport_BlocklistedEndpointsPassThrough verifies a 401 from the
auth endpoints is returned untouched: no refresh, no retry.
*/
func TestAuthTransport_BlocklistedEndpointsPassThrough(t *testing.T) {
	backend := newStubBackend(t)
	kv := storage.NewMemory()
	kv.Set(constants.KeyAccessToken, "stale-token")
	kv.Set(constants.KeyRefreshToken, "refresh-1")
	spy := &sessionSpy{kv: kv}

	client := newTransportClient(backend, kv, spy)
	response, err := client.Post(
		backend.server.URL+constants.EndpointSignInWithGoogle,
		"application/json", strings.NewReader(`{"idToken":"x"}`))
	require.NoError(t, err)
	defer func() { _ = response.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
	assert.Equal(t, 0, spy.expiredCount())
}

/*
TestAuthTransport_RefreshRejectionEndsSession verifies a 401 from the
refresh endpoint itself tears the session down via the hook.
*/
func TestAuthTransport_RefreshRejectionEndsSession(t *testing.T) {
	backend := newStubBackend(t)
	backend.mu.Lock()
	backend.refuseStatus = http.StatusUnauthorized
	backend.mu.Unlock()

	kv := storage.NewMemory()
	kv.Set(constants.KeyAccessToken, "stale-token")
	kv.Set(constants.KeyRefreshToken, "dead-refresh")
	spy := &sessionSpy{kv: kv}

	client := newTransportClient(backend, kv, spy)
	_, err := client.Post(backend.server.URL+"/resource", "text/plain", strings.NewReader("x"))

	require.Error(t, err)
	assert.Equal(t, 1, spy.expiredCount())
	assert.Empty(t, spy.refreshed)
}

/*
TestAuthTransport_RefreshServerFaultPreservesSession verifies a 500 from
the refresh endpoint fails the request but does NOT log the user out.
*/
func TestAuthTransport_RefreshServerFaultPreservesSession(t *testing.T) {
	backend := newStubBackend(t)
	backend.mu.Lock()
	backend.refuseStatus = http.StatusInternalServerError
	backend.mu.Unlock()

	kv := storage.NewMemory()
	kv.Set(constants.KeyAccessToken, "stale-token")
	kv.Set(constants.KeyRefreshToken, "refresh-1")
	spy := &sessionSpy{kv: kv}

	client := newTransportClient(backend, kv, spy)
	_, err := client.Post(backend.server.URL+"/resource", "text/plain", strings.NewReader("x"))

	require.Error(t, err)
	assert.Equal(t, 0, spy.expiredCount(), "server faults must not end the session")

	_, hasRefresh := kv.Get(constants.KeyRefreshToken)
	assert.True(t, hasRefresh)
}

/*
TestAuthTransport_MissingRefreshTokenFailsWithoutLogout verifies the
no-credential path: the request fails with SESSION_EXPIRED but carries no
HTTP status, so nothing is torn down.
*/
func TestAuthTransport_MissingRefreshTokenFailsWithoutLogout(t *testing.T) {
	backend := newStubBackend(t)
	kv := storage.NewMemory()
	kv.Set(constants.KeyAccessToken, "stale-token")
	spy := &sessionSpy{kv: kv}

	client := newTransportClient(backend, kv, spy)
	_, err := client.Post(backend.server.URL+"/resource", "text/plain", strings.NewReader("x"))

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "SESSION_EXPIRED", appError.Code)
	assert.Equal(t, 0, appError.HTTPStatus)
	assert.Equal(t, 0, spy.expiredCount())
	assert.Equal(t, int32(0), backend.refreshCalls.Load())
}

/*
TestClient_ErrorEnvelopeParsing verifies the typed client surfaces the
server's message and code from the error envelope.
*/
func TestClient_ErrorEnvelopeParsing(t *testing.T) {
	backend := newStubBackend(t)
	client := api.NewClient(backend.server.URL, nil, slog.Default())

	_, err := client.SignInWithGoogle(context.Background(), "unknown-token")

	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "USER_NOT_FOUND", appError.Code)
	assert.Equal(t, "User not found. Please sign up.", appError.Message)
	assert.Equal(t, http.StatusUnauthorized, appError.HTTPStatus)
}
