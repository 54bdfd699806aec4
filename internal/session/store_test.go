// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package session_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/storage"
	"github.com/volstory/volstory-go/internal/session"
)

func newStore(t *testing.T) (*session.Store, *storage.Memory) {
	t.Helper()
	kv := storage.NewMemory()
	return session.NewStore(kv, slog.Default()), kv
}

func demoUser() session.User {
	return session.User{
		UserID:       "usr-1",
		Name:         "Asha Rao",
		Email:        "asha@example.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		MobileNumber: "+15551230001",
	}
}

/*
TestStore_LoginPersistsSession verifies the three session keys are written
and the onboarding drafts are removed.
*/
func TestStore_LoginPersistsSession(t *testing.T) {
	store, kv := newStore(t)

	kv.Set(constants.KeySignupData, `{"googleData":{"uid":"g-1"}}`)
	kv.Set(constants.KeyRegistrationData, `{"firstName":"Asha"}`)

	store.Login(demoUser())

	assert.True(t, store.IsAuthenticated())

	access, _ := kv.Get(constants.KeyAccessToken)
	refresh, _ := kv.Get(constants.KeyRefreshToken)
	_, hasUser := kv.Get(constants.KeyUserData)
	_, hasSignup := kv.Get(constants.KeySignupData)
	_, hasDraft := kv.Get(constants.KeyRegistrationData)

	assert.Equal(t, "access-1", access)
	assert.Equal(t, "refresh-1", refresh)
	assert.True(t, hasUser)
	assert.False(t, hasSignup, "login must clear the signup context")
	assert.False(t, hasDraft, "login must clear the registration draft")
}

/*
TestStore_HydrateRoundTrip verifies a login survives a process restart.
*/
func TestStore_HydrateRoundTrip(t *testing.T) {
	store, kv := newStore(t)
	store.Login(demoUser())

	// A new store over the same storage simulates the restart.
	restored := session.NewStore(kv, slog.Default())
	restored.Hydrate()

	require.True(t, restored.IsAuthenticated())
	user := restored.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "usr-1", user.UserID)
	assert.Equal(t, "Asha Rao", user.Name)
	assert.Equal(t, "refresh-1", user.RefreshToken)
}

/*
TestStore_HydrateFreshestAccessTokenWins verifies that when the transport
refreshed the token after the user was last serialized, the storage value
overrides the one embedded in user_data.
*/
func TestStore_HydrateFreshestAccessTokenWins(t *testing.T) {
	store, kv := newStore(t)
	store.Login(demoUser())

	// Simulate a transport refresh that only touched the token key.
	kv.Set(constants.KeyAccessToken, "access-2")

	restored := session.NewStore(kv, slog.Default())
	restored.Hydrate()

	require.True(t, restored.IsAuthenticated())
	assert.Equal(t, "access-2", restored.CurrentUser().AccessToken)
}

/*
TestStore_HydrateRequiresBothKeys verifies that a refresh token without
user data (or vice versa) does not restore a session.
*/
func TestStore_HydrateRequiresBothKeys(t *testing.T) {
	tests := []struct {
		name string
		seed map[string]string
	}{
		{"refresh_only", map[string]string{constants.KeyRefreshToken: "refresh-1"}},
		{"user_only", map[string]string{constants.KeyUserData: `{"userId":"usr-1"}`}},
		{"access_only", map[string]string{constants.KeyAccessToken: "access-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory()
			for key, value := range tt.seed {
				kv.Set(key, value)
			}

			store := session.NewStore(kv, slog.Default())
			store.Hydrate()

			assert.False(t, store.IsAuthenticated())
			assert.Nil(t, store.CurrentUser())
		})
	}
}

/*
TestStore_HydrateCorruptUserDataFailsSafe verifies that unparseable session
data wipes storage entirely instead of half-loading.
*/
func TestStore_HydrateCorruptUserDataFailsSafe(t *testing.T) {
	kv := storage.NewMemory()
	kv.Set(constants.KeyRefreshToken, "refresh-1")
	kv.Set(constants.KeyUserData, "{not json")
	kv.Set(constants.KeyRegistrationData, `{"firstName":"Asha"}`)

	store := session.NewStore(kv, slog.Default())
	store.Hydrate()

	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, kv.Snapshot(), "corrupt hydration must clear all storage")
}

/*
TestStore_HydrateDraftsRestoreIndependently verifies the wizard draft and
signup context come back without any session present.
*/
func TestStore_HydrateDraftsRestoreIndependently(t *testing.T) {
	kv := storage.NewMemory()
	kv.Set(constants.KeySignupData, `{"googleData":{"uid":"g-1","email":"asha@example.com"}}`)
	kv.Set(constants.KeyRegistrationData, `{"firstName":"Asha","interests":["Travel"]}`)

	store := session.NewStore(kv, slog.Default())
	store.Hydrate()

	assert.False(t, store.IsAuthenticated())

	sc := store.SignupContext()
	require.NotNil(t, sc.GoogleData)
	assert.Equal(t, "g-1", sc.GoogleData.UID)

	draft := store.RegistrationDraft()
	assert.Equal(t, "Asha", draft.FirstName)
	assert.Equal(t, []string{"Travel"}, draft.Interests)
	assert.NotNil(t, draft.Skills)
}

/*
TestStore_LogoutClearsEverything verifies all five persisted keys and all
in-memory state reset on logout.
*/
func TestStore_LogoutClearsEverything(t *testing.T) {
	store, kv := newStore(t)
	store.Login(demoUser())
	store.SetOTPHandle("verif-1")
	store.UpdateRegistrationDraft(session.DraftPatch{FirstName: session.String("Asha")})
	store.SetValidationErrors(map[string]string{"age": "Must be a valid age"})

	store.Logout()

	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.OTPHandle())
	assert.Empty(t, store.ValidationErrors())
	assert.Equal(t, session.EmptyDraft(), store.RegistrationDraft())
	assert.Empty(t, kv.Snapshot())
}

/*
TestStore_DraftPatchClearsFieldErrors verifies the invariant that updating
a field removes its validation error while untouched errors survive.
*/
func TestStore_DraftPatchClearsFieldErrors(t *testing.T) {
	store, _ := newStore(t)
	store.SetValidationErrors(map[string]string{
		"firstName": "Minimum 2 characters",
		"age":       "Must be a valid age",
	})

	store.UpdateRegistrationDraft(session.DraftPatch{FirstName: session.String("Asha")})

	errs := store.ValidationErrors()
	assert.NotContains(t, errs, "firstName")
	assert.Contains(t, errs, "age")
}

/*
TestStore_UpdateSignupContextMerges verifies the shallow merge: a later
provider patch must not drop the earlier provider's data.
*/
func TestStore_UpdateSignupContextMerges(t *testing.T) {
	store, kv := newStore(t)

	store.UpdateSignupContext(session.SignupContext{
		GoogleData: &session.GoogleProfile{UID: "g-1", Email: "asha@example.com"},
	})
	store.UpdateSignupContext(session.SignupContext{
		ProviderUser: &session.ProviderIdentity{UID: "p-1", PhoneNumber: "+15551230001"},
	})

	sc := store.SignupContext()
	require.NotNil(t, sc.GoogleData)
	require.NotNil(t, sc.ProviderUser)
	assert.Equal(t, "g-1", sc.GoogleData.UID)
	assert.Equal(t, "+15551230001", sc.ProviderUser.PhoneNumber)

	_, persisted := kv.Get(constants.KeySignupData)
	assert.True(t, persisted)
}

/*
TestStore_ClearOnboardingDraftKeepsSession verifies the post-registration
cleanup leaves the authenticated user intact.
*/
func TestStore_ClearOnboardingDraftKeepsSession(t *testing.T) {
	store, kv := newStore(t)
	store.Login(demoUser())
	store.UpdateSignupContext(session.SignupContext{
		GoogleData: &session.GoogleProfile{UID: "g-1"},
	})
	store.UpdateRegistrationDraft(session.DraftPatch{FirstName: session.String("Asha")})

	store.ClearOnboardingDraft()

	assert.True(t, store.IsAuthenticated())
	assert.True(t, store.SignupContext().IsEmpty())
	assert.Equal(t, session.EmptyDraft(), store.RegistrationDraft())

	_, hasRefresh := kv.Get(constants.KeyRefreshToken)
	assert.True(t, hasRefresh)
}

/*
TestStore_OnTokenRefreshed verifies the transport hook keeps user_data and
access_token consistent.
*/
func TestStore_OnTokenRefreshed(t *testing.T) {
	t.Run("with_session", func(t *testing.T) {
		store, kv := newStore(t)
		store.Login(demoUser())

		store.OnTokenRefreshed("access-2")

		assert.Equal(t, "access-2", store.CurrentUser().AccessToken)
		access, _ := kv.Get(constants.KeyAccessToken)
		assert.Equal(t, "access-2", access)

		// A restart must come back with the new token.
		restored := session.NewStore(kv, slog.Default())
		restored.Hydrate()
		assert.Equal(t, "access-2", restored.CurrentUser().AccessToken)
	})

	t.Run("without_session", func(t *testing.T) {
		store, kv := newStore(t)

		store.OnTokenRefreshed("access-2")

		access, _ := kv.Get(constants.KeyAccessToken)
		assert.Equal(t, "access-2", access)
		assert.False(t, store.IsAuthenticated())
	})
}

/*
TestStore_OnSessionExpired verifies the transport hook performs a full logout.
*/
func TestStore_OnSessionExpired(t *testing.T) {
	store, kv := newStore(t)
	store.Login(demoUser())

	store.OnSessionExpired()

	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, kv.Snapshot())
}
