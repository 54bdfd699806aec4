// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package register implements the multi-step registration wizard controller.

# Architecture

The wizard is step-indexed over three screens: personal details, interests,
skills. It coordinates per-step validation, draft accumulation in the
session store, and the final account-creation submission. Validation errors
never escape this package; they surface exclusively through the store's
validationErrors map.
*/
package register

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/volstory/volstory-go/internal/api"
	"github.com/volstory/volstory-go/internal/auth"
	"github.com/volstory/volstory-go/internal/platform/apperr"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/storage"
	"github.com/volstory/volstory-go/internal/platform/validate"
	"github.com/volstory/volstory-go/internal/session"
)

// Result is the outcome of a wizard interaction.
type Result struct {
	// Next is the navigation intent. NavigateNone means "stay on the
	// wizard" (advanced a step, or validation failed and the store now
	// holds field errors).
	Next auth.Navigation

	// Alert is a user-facing failure, nil otherwise.
	Alert *auth.Alert
}

// Wizard drives the three-step registration flow.
//
// # Concurrency
//
// One instance per registration screen. The step index and the submission
// flag are mutex-guarded so a UI double-tap cannot double-submit.
type Wizard struct {
	mu          sync.Mutex
	currentStep int
	submitting  bool

	store   *session.Store
	backend *api.Client
	storage storage.Store
	log     *slog.Logger
}

// NewWizard constructs a wizard positioned at step 1.
func NewWizard(store *session.Store, backend *api.Client, kv storage.Store, log *slog.Logger) *Wizard {
	return &Wizard{
		currentStep: 1,
		store:       store,
		backend:     backend,
		storage:     kv,
		log:         log,
	}
}

// CurrentStep returns the active 1-based step index.
func (w *Wizard) CurrentStep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentStep
}

// TotalSteps returns the number of wizard screens.
func (w *Wizard) TotalSteps() int { return constants.WizardTotalSteps }

// Progress returns the completion fraction (0.0 - 1.0) for progress bars.
func (w *Wizard) Progress() float64 {
	return float64(w.CurrentStep()) / float64(constants.WizardTotalSteps)
}

// IsSubmitting reports whether the final submission is in flight.
func (w *Wizard) IsSubmitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// PrefillFromSignup seeds the draft from the signup context stashed by the
// sign-in flows: name and email from the Google profile, phone from the
// verified provider identity. Only empty draft fields are filled.
func (w *Wizard) PrefillFromSignup() {
	signupContext := w.store.SignupContext()
	draft := w.store.RegistrationDraft()
	patch := session.DraftPatch{}

	if google := signupContext.GoogleData; google != nil {
		if draft.Email == "" && google.Email != "" {
			patch.Email = session.String(google.Email)
		}
		if draft.FirstName == "" && google.DisplayName != "" {
			first, last, _ := strings.Cut(google.DisplayName, " ")
			patch.FirstName = session.String(first)
			if draft.LastName == "" && last != "" {
				patch.LastName = session.String(last)
			}
		}
		if draft.ProfileImage == "" && google.PhotoURL != "" {
			patch.ProfileImage = session.String(google.PhotoURL)
		}
	}
	if provider := signupContext.ProviderUser; provider != nil {
		if draft.Phone == "" && provider.PhoneNumber != "" {
			patch.Phone = session.String(provider.PhoneNumber)
		}
	}

	if len(patch.Fields()) > 0 {
		w.store.UpdateRegistrationDraft(patch)
	}
}

// # Validation

// IsStepComplete is the cheap shape check backing the "Continue" button
// state. It enforces only the absolute minimum per step; the authoritative
// rules run in [Wizard.ValidateCurrentStep].
//
// # Rules
//   - Step 1: trimmed names > 1 char, age parses as a number, gender
//     selected, city > 1 char. Website is optional and ignored here.
//   - Step 2: at least one interest.
//   - Step 3: at least one skill.
func (w *Wizard) IsStepComplete(step int) bool {
	draft := w.store.RegistrationDraft()

	switch step {
	case 1:
		_, ageErr := strconv.Atoi(strings.TrimSpace(draft.Age))
		return len(strings.TrimSpace(draft.FirstName)) > 1 &&
			len(strings.TrimSpace(draft.LastName)) > 1 &&
			strings.TrimSpace(draft.Age) != "" && ageErr == nil &&
			draft.Gender != "" &&
			len(strings.TrimSpace(draft.City)) > 1
	case 2:
		return len(draft.Interests) > 0
	case 3:
		return len(draft.Skills) > 0
	default:
		return false
	}
}

// ValidateCurrentStep runs the authoritative rules for the active step and,
// on failure, publishes first-error-per-field into the store.
func (w *Wizard) ValidateCurrentStep() bool {
	return w.validateStep(w.CurrentStep())
}

// validateStep validates one step's slice of the draft.
func (w *Wizard) validateStep(step int) bool {
	draft := w.store.RegistrationDraft()
	v := &validate.Validator{}

	switch step {
	case 1:
		w.personalDetailsRules(v, draft)
	case 2:
		v.MinItems("interests", draft.Interests, 1, "Select at least 1 interest").
			MaxItems("interests", draft.Interests, constants.MaxInterests, "Select up to 10 interests")
	case 3:
		v.MinItems("skills", draft.Skills, 1, "Select at least 1 skill")
	}

	if v.HasErrors() {
		w.store.SetValidationErrors(v.FieldErrors())
		return false
	}

	w.store.SetValidationErrors(map[string]string{})
	return true
}

// personalDetailsRules holds the step-1 schema. Contact fields are
// validated here even when pre-filled.
func (w *Wizard) personalDetailsRules(v *validate.Validator, draft session.RegistrationDraft) {
	v.MinLen("firstName", draft.FirstName, 2).
		MaxLen("firstName", draft.FirstName, 50).
		LettersOnly("firstName", draft.FirstName).
		MinLen("lastName", draft.LastName, 2).
		MaxLen("lastName", draft.LastName, 50).
		LettersOnly("lastName", draft.LastName).
		MinAge("age", draft.Age, constants.MinRegistrationAge).
		OneOf("gender", draft.Gender, "Male", "Female", "Other").
		MinLen("city", draft.City, 2).
		Email("email", draft.Email).
		MinLen("phone", draft.Phone, 10).
		URL("website", draft.Website)
}

// validateAll runs the full merged schema before submission.
func (w *Wizard) validateAll() bool {
	draft := w.store.RegistrationDraft()
	v := &validate.Validator{}

	w.personalDetailsRules(v, draft)
	v.MinItems("interests", draft.Interests, 1, "Select at least 1 interest").
		MaxItems("interests", draft.Interests, constants.MaxInterests, "Select up to 10 interests").
		MinItems("skills", draft.Skills, 1, "Select at least 1 skill")

	if v.HasErrors() {
		w.store.SetValidationErrors(v.FieldErrors())
		return false
	}
	w.store.SetValidationErrors(map[string]string{})
	return true
}

// # Navigation

// Continue re-validates the active step, then either advances or, on the
// last step, runs the final submission.
func (w *Wizard) Continue(ctx context.Context) Result {
	// Re-check even if the button was enabled: the shape check is weaker
	// than the schema.
	if !w.ValidateCurrentStep() {
		return Result{}
	}

	w.mu.Lock()
	if w.currentStep < constants.WizardTotalSteps {
		w.currentStep++
		w.mu.Unlock()
		return Result{}
	}
	if w.submitting {
		// A submission is already in flight; drop the duplicate tap.
		w.mu.Unlock()
		return Result{}
	}
	w.submitting = true
	w.mu.Unlock()

	result := w.submit(ctx)

	w.mu.Lock()
	w.submitting = false
	w.mu.Unlock()

	return result
}

// Back decrements the step, or signals wizard exit at step 1.
func (w *Wizard) Back() Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentStep > 1 {
		w.currentStep--
		return Result{}
	}
	return Result{Next: auth.NavigateBack}
}

// # Submission

// submit validates the full schema, builds the backend payload, creates the
// account, and promotes the draft into a live session.
func (w *Wizard) submit(ctx context.Context) Result {
	// ── 1. Final Validation ───────────────────────────────────────────────
	if !w.validateAll() {
		return Result{
			Alert: &auth.Alert{Title: "Error", Message: "Invalid profile data. Please check your inputs."},
		}
	}

	// ── 2. Session Check ──────────────────────────────────────────────────
	refreshToken, hasRefresh := w.storage.Get(constants.KeyRefreshToken)
	if !hasRefresh || refreshToken == "" {
		return Result{
			Next:  auth.NavigateLogin,
			Alert: &auth.Alert{Title: "Registration Failed", Message: "Session expired. Please login again."},
		}
	}

	// ── 3. Payload Construction ───────────────────────────────────────────
	draft := w.store.RegistrationDraft()
	payload := buildPayload(draft)

	// ── 4. Account Creation ───────────────────────────────────────────────
	response, err := w.backend.CreateAccount(ctx, payload)
	if err != nil {
		return w.submitFailed(err)
	}

	// ── 5. Session Promotion ──────────────────────────────────────────────
	// The transport may have refreshed the access token mid-flight; the
	// stored one is authoritative.
	accessToken, _ := w.storage.Get(constants.KeyAccessToken)

	newRefreshToken := response.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	w.store.Login(session.User{
		UserID:          response.UserID,
		Name:            payload.Name,
		Email:           payload.Email,
		AccessToken:     accessToken,
		RefreshToken:    newRefreshToken,
		ProfileImageURL: draft.ProfileImage,
		City:            payload.City,
		Gender:          payload.Gender,
		DateOfBirth:     payload.DateOfBirth,
		MobileNumber:    payload.MobileNumber,
	})

	// Only clear after the login persisted.
	w.store.ClearOnboardingDraft()

	w.log.Info("registration complete", slog.String("user_id", response.UserID))
	return Result{Next: auth.NavigateHome}
}

// submitFailed surfaces the server message and routes back to login when
// the message indicates a dead session.
func (w *Wizard) submitFailed(err error) Result {
	w.log.Error("registration failed", slog.Any("error", err))

	message := err.Error()
	result := Result{
		Alert: &auth.Alert{Title: "Registration Failed", Message: message},
	}

	if apperr.Status(err) == http.StatusUnauthorized ||
		strings.Contains(message, "expired") ||
		strings.Contains(message, "Unauthorized") {
		result.Next = auth.NavigateLogin
	}
	return result
}

// buildPayload maps the wizard draft onto the backend's wire shape: names
// join into one field, the age string becomes an ISO date of birth, and
// "skills" travels as "skillsets".
func buildPayload(draft session.RegistrationDraft) api.CreateAccountRequest {
	return api.CreateAccountRequest{
		Name:         strings.TrimSpace(draft.FirstName + " " + draft.LastName),
		DateOfBirth:  dateOfBirthFromAge(draft.Age),
		Gender:       draft.Gender,
		City:         draft.City,
		Email:        draft.Email,
		MobileNumber: draft.Phone,
		Website:      draft.Website,
		Interests:    draft.Interests,
		Skillsets:    draft.Skills,
	}
}

// dateOfBirthFromAge derives an ISO 8601 date of birth from a whole-year
// age string. Validation has already guaranteed the parse.
func dateOfBirthFromAge(age string) string {
	years, err := strconv.Atoi(strings.TrimSpace(age))
	if err != nil {
		return ""
	}
	return time.Now().UTC().AddDate(-years, 0, 0).Format(time.RFC3339)
}
