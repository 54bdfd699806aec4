// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/volstory/volstory-go/internal/api"
	"github.com/volstory/volstory-go/internal/identity"
	"github.com/volstory/volstory-go/internal/platform/apperr"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/storage"
	"github.com/volstory/volstory-go/internal/session"
)

// GoogleIntent is what the user asked for when they pressed the button.
type GoogleIntent string

const (
	IntentLogin  GoogleIntent = "login"
	IntentSignup GoogleIntent = "signup"
)

// GoogleResult is the outcome of one Google sign-in attempt.
type GoogleResult struct {
	// Next is the navigation intent. NavigateNone with a Conflict or Alert
	// means "stay and show the condition".
	Next Navigation

	// Conflict is set when the user's intent mismatched their account
	// state. No session mutation happened except the conflict-specific
	// stashing described on [GoogleFlow.SignIn].
	Conflict Conflict

	// IsRegistered echoes the backend's own registration flag. More robust
	// than the phone-linked heuristic; carried so callers can migrate.
	IsRegistered bool

	// Alert is a user-facing failure, nil on success.
	Alert *Alert
}

// GoogleFlow orchestrates the Google sign-in lifecycle: provider OAuth,
// backend token exchange, intent resolution, and session mutation.
//
// # Intent Resolution
//
// The account's "registered" state is inferred from whether a phone
// credential is linked (completing registration requires phone
// verification, so the two travel together):
//
//   - signup + phone linked   → USER_EXISTS conflict, nothing mutated.
//   - login  + no phone       → USER_NOT_FOUND conflict; signup context is
//     stashed so the user can continue into signup without re-authing.
//   - signup + no phone       → stash signup context, go to phone entry.
//   - login  + phone linked   → establish the session, go home.
type GoogleFlow struct {
	provider identity.Provider
	backend  *api.Client
	store    *session.Store
	storage  storage.Store
	log      *slog.Logger
}

// NewGoogleFlow constructs the flow controller.
func NewGoogleFlow(
	provider identity.Provider,
	backend *api.Client,
	store *session.Store,
	kv storage.Store,
	log *slog.Logger,
) *GoogleFlow {
	return &GoogleFlow{
		provider: provider,
		backend:  backend,
		store:    store,
		storage:  kv,
		log:      log,
	}
}

// SignIn runs one Google sign-in attempt for the given intent.
//
// Any provider or transport error (including user cancellation of the
// account picker) is folded into a generic sign-in alert; the session is
// left untouched in every failure path.
func (flow *GoogleFlow) SignIn(ctx context.Context, intent GoogleIntent) GoogleResult {
	// ── 1. Provider OAuth ─────────────────────────────────────────────────
	googleUser, err := flow.provider.SignInWithGoogle(ctx)
	if err != nil {
		return flow.fail(err)
	}

	current, err := flow.provider.CurrentIdentity(ctx)
	if err != nil {
		return flow.fail(err)
	}
	if current == nil {
		return flow.failMsg("Provider session not established.")
	}

	// ── 2. Backend Handshake ──────────────────────────────────────────────
	idToken, err := flow.provider.FreshIDToken(ctx)
	if err != nil {
		return flow.fail(err)
	}

	backendResponse, err := flow.backend.SignInWithGoogle(ctx, idToken)
	if err != nil {
		if apperr.Status(err) != http.StatusUnauthorized {
			// 500 or network fault: stop everything.
			return flow.fail(err)
		}
		// A 401 here means "user not found", a valid outcome for a brand
		// new account, not an error. Synthesize the new-user response.
		backendResponse = &api.SignInResponse{IsRegistered: false}
	}

	// ── 3. Immediate Token Storage ────────────────────────────────────────
	// Persist before resolving intent: a crash between here and Login must
	// not lose tokens the backend already issued.
	if backendResponse.RefreshToken != "" {
		flow.storage.Set(constants.KeyRefreshToken, backendResponse.RefreshToken)
	}
	if backendResponse.AccessToken != "" {
		flow.storage.Set(constants.KeyAccessToken, backendResponse.AccessToken)
	}

	// ── 4. Intent Resolution ──────────────────────────────────────────────
	isPhoneLinked := current.PhoneNumber != ""

	switch {
	case intent == IntentSignup && isPhoneLinked:
		// Signup requested, but this account already completed onboarding.
		flow.log.Info("google signin conflict",
			slog.String("conflict", string(ConflictUserExists)),
		)
		return GoogleResult{
			Conflict:     ConflictUserExists,
			IsRegistered: backendResponse.IsRegistered,
		}

	case intent == IntentLogin && !isPhoneLinked:
		// Login requested, but onboarding never finished. Stash the
		// provider data so a signup continuation can skip re-auth.
		flow.stashSignupContext(googleUser, current)
		flow.log.Info("google signin conflict",
			slog.String("conflict", string(ConflictUserNotFound)),
		)
		return GoogleResult{
			Conflict:     ConflictUserNotFound,
			IsRegistered: backendResponse.IsRegistered,
		}

	case intent == IntentSignup:
		// Happy signup path: continue into phone verification.
		flow.stashSignupContext(googleUser, current)
		return GoogleResult{
			Next:         NavigatePhone,
			IsRegistered: backendResponse.IsRegistered,
		}

	default:
		// Happy login path: establish the session.
		name := googleUser.DisplayName
		if name == "" {
			name = "User"
		}
		flow.store.Login(session.User{
			UserID:          googleUser.UID,
			Name:            name,
			Email:           googleUser.Email,
			AccessToken:     backendResponse.AccessToken,
			RefreshToken:    backendResponse.RefreshToken,
			ProfileImageURL: googleUser.PhotoURL,
			MobileNumber:    current.PhoneNumber,
		})
		flow.log.Info("google login complete", slog.String("uid", googleUser.UID))
		return GoogleResult{
			Next:         NavigateHome,
			IsRegistered: backendResponse.IsRegistered,
		}
	}
}

// stashSignupContext bridges the provider result into the session store for
// the registration flow to consume.
func (flow *GoogleFlow) stashSignupContext(googleUser *identity.GoogleUser, current *identity.Identity) {
	flow.store.UpdateSignupContext(session.SignupContext{
		GoogleData: &session.GoogleProfile{
			UID:         googleUser.UID,
			Email:       googleUser.Email,
			DisplayName: googleUser.DisplayName,
			PhotoURL:    googleUser.PhotoURL,
		},
		ProviderUser: &session.ProviderIdentity{
			UID:         current.UID,
			PhoneNumber: current.PhoneNumber,
		},
	})
}

// fail folds an error into the generic sign-in alert.
func (flow *GoogleFlow) fail(err error) GoogleResult {
	flow.log.Error("google signin failed", slog.Any("error", err))
	return flow.failMsg(err.Error())
}

func (flow *GoogleFlow) failMsg(message string) GoogleResult {
	return GoogleResult{
		Alert: &Alert{Title: "Sign In Error", Message: message},
	}
}
