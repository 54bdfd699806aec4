// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package auth

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/volstory/volstory-go/internal/api"
	"github.com/volstory/volstory-go/internal/identity"
	"github.com/volstory/volstory-go/internal/session"
)

// Verification phases for the reentrancy guard.
const (
	phaseIdle int32 = iota
	phaseVerifying
)

// PhoneResult is the outcome of one SendOTP or VerifyOTP attempt.
type PhoneResult struct {
	// Next is the navigation intent.
	Next Navigation

	// AccountConflict is set when the phone number belongs to a different
	// account. The caller should offer switching to login or retrying with
	// another number; the guard is released so a retry is possible.
	AccountConflict bool

	// Dropped is set when a VerifyOTP call arrived while another was in
	// flight and was silently discarded. Callers must disable their own
	// trigger control during a pending call; a dropped call is never
	// re-signaled.
	Dropped bool

	// Alert is a user-facing failure, nil on success.
	Alert *Alert
}

// PhoneFlow orchestrates phone verification: sending the OTP, confirming
// it, linking the phone credential to the Google identity, and minting the
// backend session.
//
// # Reentrancy
//
// VerifyOTP is guarded by an explicit phase value (idle | verifying)
// swapped with CAS. At most one link attempt is in flight per controller
// instance; concurrent calls are dropped, not queued. On success the guard
// intentionally stays engaged: the caller navigates away and this instance
// is done.
type PhoneFlow struct {
	provider identity.Provider
	backend  *api.Client
	store    *session.Store
	limiter  *rate.Limiter
	log      *slog.Logger

	phase atomic.Int32
}

// NewPhoneFlow constructs the flow controller.
//
// limiter throttles OTP sends client-side (SMS quota is the scarce
// resource); pass nil to disable throttling.
func NewPhoneFlow(
	provider identity.Provider,
	backend *api.Client,
	store *session.Store,
	limiter *rate.Limiter,
	log *slog.Logger,
) *PhoneFlow {
	return &PhoneFlow{
		provider: provider,
		backend:  backend,
		store:    store,
		limiter:  limiter,
		log:      log,
	}
}

// SendOTP triggers SMS delivery to an E.164 number and stores the returned
// verification handle in the session.
func (flow *PhoneFlow) SendOTP(ctx context.Context, phoneNumber string) PhoneResult {
	// ── 1. Client-Side Throttle ───────────────────────────────────────────
	if flow.limiter != nil && !flow.limiter.Allow() {
		return PhoneResult{
			Alert: &Alert{Title: "OTP Error", Message: "Too many attempts. Please wait before requesting another code."},
		}
	}

	// ── 2. Provider Send ──────────────────────────────────────────────────
	verificationID, err := flow.provider.SendPhoneVerification(ctx, phoneNumber)
	if err != nil {
		// A failed send can leave a web challenge widget half-solved;
		// reset it so the next attempt starts clean.
		if resetter, ok := flow.provider.(identity.ChallengeResetter); ok {
			resetter.ResetChallenge()
		}
		flow.log.Error("otp send failed", slog.Any("error", err))
		return PhoneResult{
			Alert: &Alert{Title: "OTP Error", Message: err.Error()},
		}
	}

	// ── 3. Handle Storage ─────────────────────────────────────────────────
	flow.store.SetOTPHandle(verificationID)

	return PhoneResult{Next: NavigateOTP}
}

// VerifyOTP confirms the code, links the phone credential to the signed-in
// Google identity, exchanges a fresh ID token for backend tokens, and
// establishes the session.
func (flow *PhoneFlow) VerifyOTP(ctx context.Context, code string) PhoneResult {
	// ── 1. Guard Check ────────────────────────────────────────────────────
	// Stop immediately if an attempt is already running. Checked before the
	// handle so an in-flight attempt never surfaces "Session Expired".
	if flow.phase.Load() == phaseVerifying {
		return PhoneResult{Dropped: true}
	}

	// ── 2. Handle Check ───────────────────────────────────────────────────
	verificationID := flow.store.OTPHandle()
	if verificationID == "" {
		return PhoneResult{
			Alert: &Alert{Title: "Session Expired", Message: "Please retry phone verification."},
		}
	}

	// ── 3. Engage Guard ───────────────────────────────────────────────────
	if !flow.phase.CompareAndSwap(phaseIdle, phaseVerifying) {
		return PhoneResult{Dropped: true}
	}

	// ── 4. Link Phone Credential ──────────────────────────────────────────
	if _, err := flow.provider.ConfirmPhoneLink(ctx, verificationID, code); err != nil {
		// "Already linked" means a racing duplicate submit won the link.
		// That is success; anything else is classified below.
		if identity.CodeOf(err) != identity.CodeProviderAlreadyLinked {
			return flow.classify(err)
		}
	}

	current, err := flow.provider.CurrentIdentity(ctx)
	if err != nil {
		return flow.classify(err)
	}
	if current == nil {
		flow.phase.Store(phaseIdle)
		return PhoneResult{
			Alert: &Alert{Title: "Verification Failed", Message: "Google session expired."},
		}
	}

	// ── 5. Backend Session Mint ───────────────────────────────────────────
	// A fresh ID token now proves ownership of the verified phone. The
	// Google exchange endpoint doubles as the generic session mint.
	idToken, err := flow.provider.FreshIDToken(ctx)
	if err != nil {
		return flow.classify(err)
	}

	backendResponse, err := flow.backend.SignInWithGoogle(ctx, idToken)
	if err != nil {
		return flow.classify(err)
	}

	// ── 6. Session Establishment ──────────────────────────────────────────
	flow.store.UpdateSignupContext(session.SignupContext{
		ProviderUser: &session.ProviderIdentity{
			UID:         current.UID,
			PhoneNumber: current.PhoneNumber,
		},
	})

	flow.store.Login(session.User{
		UserID:          current.UID,
		Name:            current.DisplayName,
		Email:           current.Email,
		AccessToken:     backendResponse.AccessToken,
		RefreshToken:    backendResponse.RefreshToken,
		ProfileImageURL: current.PhotoURL,
		MobileNumber:    current.PhoneNumber,
	})

	flow.store.SetOTPHandle("")
	flow.log.Info("phone verification complete", slog.String("uid", current.UID))

	// Guard intentionally stays engaged: the caller navigates away.
	return PhoneResult{Next: NavigateRegister}
}

// classify releases the guard and maps a verification failure onto its
// user-facing outcome.
func (flow *PhoneFlow) classify(err error) PhoneResult {
	// Unlock so the user can retry (different code, different number).
	flow.phase.Store(phaseIdle)

	flow.log.Warn("otp verification failed",
		slog.String("code", string(identity.CodeOf(err))),
		slog.Any("error", err),
	)

	switch identity.CodeOf(err) {
	case identity.CodeCredentialInUse, identity.CodeAccountExists:
		// The phone belongs to a different account.
		return PhoneResult{AccountConflict: true}

	case identity.CodeRequiresRecentLogin:
		return PhoneResult{
			Next:  NavigateLogin,
			Alert: &Alert{Title: "Re-auth Required", Message: "Please sign in with Google again."},
		}

	case identity.CodeInvalidVerificationCode:
		return PhoneResult{
			Alert: &Alert{Title: "Incorrect Code", Message: "The code you entered is incorrect."},
		}

	default:
		return PhoneResult{
			Alert: &Alert{Title: "Verification Failed", Message: err.Error()},
		}
	}
}
