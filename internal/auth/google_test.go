// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volstory/volstory-go/internal/api"
	"github.com/volstory/volstory-go/internal/auth"
	"github.com/volstory/volstory-go/internal/identity"
	"github.com/volstory/volstory-go/internal/identity/identitytest"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/storage"
	"github.com/volstory/volstory-go/internal/session"
)

// exchangeStub serves the Google token-exchange endpoint with a scripted
// response.
type exchangeStub struct {
	server *httptest.Server
	calls  atomic.Int32

	status   int
	response api.SignInResponse
}

func newExchangeStub(t *testing.T, status int, response api.SignInResponse) *exchangeStub {
	t.Helper()
	stub := &exchangeStub{status: status, response: response}

	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointSignInWithGoogle, func(writer http.ResponseWriter, request *http.Request) {
		stub.calls.Add(1)
		if stub.status >= 400 {
			writer.WriteHeader(stub.status)
			_, _ = writer.Write([]byte(`{"code":"USER_NOT_FOUND","error":"User not found. Please sign up."}`))
			return
		}
		_ = json.NewEncoder(writer).Encode(stub.response)
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

type flowFixture struct {
	provider *identitytest.Fake
	store    *session.Store
	kv       *storage.Memory
	flow     *auth.GoogleFlow
}

func newGoogleFixture(t *testing.T, fake *identitytest.Fake, stub *exchangeStub) *flowFixture {
	t.Helper()
	kv := storage.NewMemory()
	store := session.NewStore(kv, slog.Default())
	backend := api.NewClient(stub.server.URL, nil, slog.Default())
	return &flowFixture{
		provider: fake,
		store:    store,
		kv:       kv,
		flow:     auth.NewGoogleFlow(fake, backend, store, kv, slog.Default()),
	}
}

func googleFake() *identitytest.Fake {
	return &identitytest.Fake{
		GoogleUser: identity.GoogleUser{
			UID:         "g-uid-1",
			Email:       "asha@example.com",
			DisplayName: "Asha Rao",
			PhotoURL:    "https://example.com/p.jpg",
		},
		IDToken: "provider-id-token",
	}
}

/*
TestGoogleFlow_SignupNewAccount covers the happy signup path: backend does
not know the identity (401), no phone linked, so the flow stashes the
signup context and routes to phone entry.
*/
func TestGoogleFlow_SignupNewAccount(t *testing.T) {
	stub := newExchangeStub(t, http.StatusUnauthorized, api.SignInResponse{})
	fx := newGoogleFixture(t, googleFake(), stub)

	result := fx.flow.SignIn(context.Background(), auth.IntentSignup)

	assert.Equal(t, auth.NavigatePhone, result.Next)
	assert.Equal(t, auth.ConflictNone, result.Conflict)
	assert.False(t, result.IsRegistered)
	assert.Nil(t, result.Alert)
	assert.False(t, fx.store.IsAuthenticated())

	sc := fx.store.SignupContext()
	require.NotNil(t, sc.GoogleData)
	assert.Equal(t, "g-uid-1", sc.GoogleData.UID)
	require.NotNil(t, sc.ProviderUser)
	assert.Empty(t, sc.ProviderUser.PhoneNumber)
}

/*
TestGoogleFlow_SignupExistingAccount covers the conflict: signup requested
but the identity already carries a phone credential. Nothing is mutated.
*/
func TestGoogleFlow_SignupExistingAccount(t *testing.T) {
	stub := newExchangeStub(t, http.StatusOK, api.SignInResponse{
		RefreshToken: "refresh-1",
		IsRegistered: true,
		AccessToken:  "access-1",
	})
	fake := googleFake()
	fake.LinkedPhone = "+15551230001"
	fx := newGoogleFixture(t, fake, stub)

	result := fx.flow.SignIn(context.Background(), auth.IntentSignup)

	assert.Equal(t, auth.ConflictUserExists, result.Conflict)
	assert.Equal(t, auth.NavigateNone, result.Next)
	assert.True(t, result.IsRegistered)
	assert.False(t, fx.store.IsAuthenticated())
	assert.True(t, fx.store.SignupContext().IsEmpty(), "conflict must not stash signup context")
}

/*
TestGoogleFlow_LoginUnregisteredAccount covers the mirror conflict: login
requested but onboarding never finished. The signup context is stashed so
the user can continue into signup without re-authing.
*/
func TestGoogleFlow_LoginUnregisteredAccount(t *testing.T) {
	stub := newExchangeStub(t, http.StatusUnauthorized, api.SignInResponse{})
	fx := newGoogleFixture(t, googleFake(), stub)

	result := fx.flow.SignIn(context.Background(), auth.IntentLogin)

	assert.Equal(t, auth.ConflictUserNotFound, result.Conflict)
	assert.Equal(t, auth.NavigateNone, result.Next)
	assert.False(t, fx.store.IsAuthenticated())
	assert.NotNil(t, fx.store.SignupContext().GoogleData, "continuation data must be stashed")
}

/*
TestGoogleFlow_LoginRegisteredAccount covers the happy login path: tokens
stored, session established, home navigation.
*/
func TestGoogleFlow_LoginRegisteredAccount(t *testing.T) {
	stub := newExchangeStub(t, http.StatusOK, api.SignInResponse{
		RefreshToken: "refresh-1",
		IsRegistered: true,
		AccessToken:  "access-1",
	})
	fake := googleFake()
	fake.LinkedPhone = "+15551230001"
	fx := newGoogleFixture(t, fake, stub)

	result := fx.flow.SignIn(context.Background(), auth.IntentLogin)

	assert.Equal(t, auth.NavigateHome, result.Next)
	require.True(t, fx.store.IsAuthenticated())

	user := fx.store.CurrentUser()
	assert.Equal(t, "Asha Rao", user.Name)
	assert.Equal(t, "refresh-1", user.RefreshToken)
	assert.Equal(t, "+15551230001", user.MobileNumber)

	refresh, _ := fx.kv.Get(constants.KeyRefreshToken)
	assert.Equal(t, "refresh-1", refresh)
}

/*
TestGoogleFlow_TokensPersistBeforeIntentResolution verifies the
crash-safety rule: backend-issued tokens hit storage even when the intent
resolution ends in a conflict.
*/
func TestGoogleFlow_TokensPersistBeforeIntentResolution(t *testing.T) {
	stub := newExchangeStub(t, http.StatusOK, api.SignInResponse{
		RefreshToken: "refresh-1",
		IsRegistered: true,
		AccessToken:  "access-1",
	})
	fake := googleFake()
	fake.LinkedPhone = "+15551230001"
	fx := newGoogleFixture(t, fake, stub)

	result := fx.flow.SignIn(context.Background(), auth.IntentSignup)

	require.Equal(t, auth.ConflictUserExists, result.Conflict)
	refresh, _ := fx.kv.Get(constants.KeyRefreshToken)
	assert.Equal(t, "refresh-1", refresh)
	access, _ := fx.kv.Get(constants.KeyAccessToken)
	assert.Equal(t, "access-1", access)
}

/*
TestGoogleFlow_ProviderFailureAlerts verifies provider errors (including a
cancelled account picker) fold into the generic alert with no mutation.
*/
func TestGoogleFlow_ProviderFailureAlerts(t *testing.T) {
	stub := newExchangeStub(t, http.StatusOK, api.SignInResponse{})
	fake := googleFake()
	fake.SignInErr = identity.Error(identity.CodeRequiresRecentLogin, "sign in cancelled")
	fx := newGoogleFixture(t, fake, stub)

	result := fx.flow.SignIn(context.Background(), auth.IntentLogin)

	require.NotNil(t, result.Alert)
	assert.Equal(t, "Sign In Error", result.Alert.Title)
	assert.False(t, fx.store.IsAuthenticated())
	assert.Equal(t, int32(0), stub.calls.Load(), "backend must not be consulted")
	assert.Empty(t, fx.kv.Snapshot())
}

/*
TestGoogleFlow_BackendFaultStopsFlow verifies a non-401 backend failure
aborts the attempt instead of being treated as "new user".
*/
func TestGoogleFlow_BackendFaultStopsFlow(t *testing.T) {
	stub := newExchangeStub(t, http.StatusInternalServerError, api.SignInResponse{})
	fx := newGoogleFixture(t, googleFake(), stub)

	result := fx.flow.SignIn(context.Background(), auth.IntentSignup)

	require.NotNil(t, result.Alert)
	assert.Equal(t, auth.NavigateNone, result.Next)
	assert.False(t, fx.store.IsAuthenticated())
}
