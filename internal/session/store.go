// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package session

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/storage"
)

// Store is the single source of truth for session state.
//
// # Scope
//
// It owns: the current user, the authentication flag, the transient signup
// context, the OTP verification handle, the registration draft, and the
// field-level validation errors. All mutation goes through its methods; no
// other component writes session state.
//
// # Concurrency
//
// Every method takes the internal mutex, so the store may be shared between
// flow controllers and the API transport's refresh path.
//
// # Lifecycle
//
// One instance per process. Construct with [NewStore], call [Store.Hydrate]
// at startup, [Store.Logout] tears the session down.
type Store struct {
	mu sync.Mutex

	user             *User
	signupContext    SignupContext
	otpHandle        string
	registrationData RegistrationDraft
	validationErrors map[string]string

	storage storage.Store
	log     *slog.Logger
}

// NewStore constructs an empty, logged-out session store on top of the
// given key-value storage.
func NewStore(store storage.Store, log *slog.Logger) *Store {
	return &Store{
		registrationData: EmptyDraft(),
		validationErrors: map[string]string{},
		storage:          store,
		log:              log,
	}
}

// # Session Lifecycle

// Login persists the session and marks the store authenticated.
//
// # Side Effects
//   - Writes access_token, refresh_token, and the serialized user to storage.
//   - Clears the persisted onboarding drafts: a completed login supersedes
//     any half-finished signup on this device.
func (s *Store) Login(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// ── 1. Persistence ────────────────────────────────────────────────────
	s.storage.Set(constants.KeyAccessToken, user.AccessToken)
	s.storage.Set(constants.KeyRefreshToken, user.RefreshToken)

	if data, err := json.Marshal(user); err == nil {
		s.storage.Set(constants.KeyUserData, string(data))
	} else {
		s.log.Error("session user marshal failed", slog.Any("error", err))
	}

	s.storage.Remove(constants.KeySignupData)
	s.storage.Remove(constants.KeyRegistrationData)

	// ── 2. State Update ───────────────────────────────────────────────────
	u := user
	s.user = &u
}

// Logout removes all five persisted keys and resets the in-memory session
// to defaults, regardless of prior state.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutLocked()
}

// logoutLocked is the shared teardown path. Caller holds s.mu.
func (s *Store) logoutLocked() {
	s.storage.Remove(constants.KeyAccessToken)
	s.storage.Remove(constants.KeyRefreshToken)
	s.storage.Remove(constants.KeyUserData)
	s.storage.Remove(constants.KeySignupData)
	s.storage.Remove(constants.KeyRegistrationData)

	s.user = nil
	s.signupContext = SignupContext{}
	s.otpHandle = ""
	s.validationErrors = map[string]string{}
	s.registrationData = EmptyDraft()
}

// Hydrate restores the session from storage at startup.
//
// # Rules
//   - A session is restored only when refresh_token AND user_data are both
//     present. The freshest access_token in storage wins over the one inside
//     the serialized user (the transport may have refreshed it after the
//     user was last serialized).
//   - The signup context and registration draft restore independently.
//   - Any parse failure wipes all storage and resets to logged-out: a
//     corrupt session is unrecoverable and must not half-load (fail-safe,
//     not fail-loud).
func (s *Store) Hydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken, _ := s.storage.Get(constants.KeyAccessToken)
	refreshToken, hasRefresh := s.storage.Get(constants.KeyRefreshToken)
	userData, hasUser := s.storage.Get(constants.KeyUserData)

	signupData, hasSignup := s.storage.Get(constants.KeySignupData)
	draftData, hasDraft := s.storage.Get(constants.KeyRegistrationData)

	// ── 1. Session Restore ────────────────────────────────────────────────
	if hasRefresh && hasUser {
		var user User
		if err := json.Unmarshal([]byte(userData), &user); err != nil {
			s.hydrationFailed("user_data", err)
			return
		}

		if accessToken != "" {
			user.AccessToken = accessToken
		}
		user.RefreshToken = refreshToken

		s.user = &user
	}

	// ── 2. Draft Restore ──────────────────────────────────────────────────
	if hasSignup {
		var sc SignupContext
		if err := json.Unmarshal([]byte(signupData), &sc); err != nil {
			s.hydrationFailed("signup_data", err)
			return
		}
		s.signupContext = sc
	}

	if hasDraft {
		var draft RegistrationDraft
		if err := json.Unmarshal([]byte(draftData), &draft); err != nil {
			s.hydrationFailed("registration_data", err)
			return
		}
		if draft.Interests == nil {
			draft.Interests = []string{}
		}
		if draft.Skills == nil {
			draft.Skills = []string{}
		}
		s.registrationData = draft
	}
}

// hydrationFailed wipes storage and resets to logged-out. Caller holds s.mu.
func (s *Store) hydrationFailed(key string, err error) {
	s.log.Error("session hydration failed",
		slog.String("key", key),
		slog.Any("error", err),
	)
	s.storage.ClearAll()
	s.user = nil
	s.signupContext = SignupContext{}
	s.otpHandle = ""
	s.validationErrors = map[string]string{}
	s.registrationData = EmptyDraft()
}

// # Onboarding State

// UpdateSignupContext shallow-merges patch into the signup context and
// persists the merged object.
func (s *Store) UpdateSignupContext(patch SignupContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.GoogleData != nil {
		s.signupContext.GoogleData = patch.GoogleData
	}
	if patch.ProviderUser != nil {
		s.signupContext.ProviderUser = patch.ProviderUser
	}

	if data, err := json.Marshal(s.signupContext); err == nil {
		s.storage.Set(constants.KeySignupData, string(data))
	} else {
		s.log.Error("signup context marshal failed", slog.Any("error", err))
	}
}

// SetOTPHandle stores the in-flight phone verification handle. Pure
// in-memory: the handle only needs to survive the hop between the phone
// screen and the OTP screen, so losing it on force-quit is acceptable.
func (s *Store) SetOTPHandle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otpHandle = id
}

// UpdateRegistrationDraft merges patch into the draft, persists the merged
// draft, and clears the validation error of every field the patch touches.
//
// # Invariant
//
// After this call, no key present in patch remains in ValidationErrors. A
// user correcting a field sees its inline error disappear immediately.
func (s *Store) UpdateRegistrationDraft(patch DraftPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registrationData = s.registrationData.merge(patch)

	for _, field := range patch.Fields() {
		delete(s.validationErrors, field)
	}

	if data, err := json.Marshal(s.registrationData); err == nil {
		s.storage.Set(constants.KeyRegistrationData, string(data))
	} else {
		s.log.Error("registration draft marshal failed", slog.Any("error", err))
	}
}

// SetValidationErrors replaces the validation error map wholesale.
func (s *Store) SetValidationErrors(errors map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors == nil {
		errors = map[string]string{}
	}
	s.validationErrors = errors
}

// ClearOnboardingDraft resets the wizard state after a successful
// registration while keeping the session alive.
func (s *Store) ClearOnboardingDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storage.Remove(constants.KeySignupData)
	s.storage.Remove(constants.KeyRegistrationData)

	s.signupContext = SignupContext{}
	s.otpHandle = ""
	s.validationErrors = map[string]string{}
	s.registrationData = EmptyDraft()
}

// # Read Accessors

// CurrentUser returns a copy of the authenticated user, or nil.
func (s *Store) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is present.
// Derived invariant: true iff CurrentUser() != nil.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// SignupContext returns the current onboarding bridge context.
func (s *Store) SignupContext() SignupContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signupContext
}

// OTPHandle returns the in-flight verification handle, or "".
func (s *Store) OTPHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otpHandle
}

// RegistrationDraft returns a copy of the current wizard draft.
func (s *Store) RegistrationDraft() RegistrationDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := s.registrationData
	draft.Interests = append(make([]string, 0, len(s.registrationData.Interests)), s.registrationData.Interests...)
	draft.Skills = append(make([]string, 0, len(s.registrationData.Skills)), s.registrationData.Skills...)
	return draft
}

// ValidationErrors returns a copy of the field→message error map.
func (s *Store) ValidationErrors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.validationErrors))
	for k, v := range s.validationErrors {
		out[k] = v
	}
	return out
}

// # Transport Hook

// OnTokenRefreshed is called by the API transport after a successful token
// refresh. If a session exists, the user is re-logged-in with the merged
// token so user_data stays consistent with access_token; otherwise only the
// persisted token is updated to keep the on-disk session alive.
func (s *Store) OnTokenRefreshed(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		s.storage.Set(constants.KeyAccessToken, accessToken)
		return
	}

	s.user.AccessToken = accessToken
	s.storage.Set(constants.KeyAccessToken, accessToken)
	if data, err := json.Marshal(*s.user); err == nil {
		s.storage.Set(constants.KeyUserData, string(data))
	}
}

// OnSessionExpired is called by the API transport when the server rejected
// the refresh token outright. The session is truly dead.
func (s *Store) OnSessionExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Warn("session expired, logging out")
	s.logoutLocked()
}
