// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/volstory/volstory-go/internal/api"
	"github.com/volstory/volstory-go/internal/platform/apperr"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/middleware"
	"github.com/volstory/volstory-go/internal/platform/respond"
	"github.com/volstory/volstory-go/internal/platform/sec"
	"github.com/volstory/volstory-go/internal/platform/validate"
)

// Handler implements the three auth endpoints the SDK consumes.
//
// # Scope
//
// This is a development stub, not a production backend: identity tokens are
// decoded without signature verification, and accounts live in memory.
type Handler struct {
	registry *Registry
	tokens   *sec.TokenService
	log      *slog.Logger
}

// NewHandler constructs a [Handler] with its dependencies.
func NewHandler(registry *Registry, tokens *sec.TokenService, log *slog.Logger) *Handler {
	return &Handler{registry: registry, tokens: tokens, log: log}
}

// Routes returns a [chi.Router] with the endpoint set the SDK expects.
//
// # Endpoints
//   - POST /auth/signInWithGoogle : Exchanges a provider ID token for backend tokens.
//   - POST /auth/refreshJWT       : Mints a new access token from a refresh token.
//   - POST /user/createAccount    : Finalizes registration (bearer required).
//
// Bearer verification is scoped to the protected group. The sign-in and
// refresh endpoints authenticate by payload, and clients routinely hit
// them carrying a stale bearer from a previous session; rejecting on that
// header would lock those clients out.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post(constants.EndpointSignInWithGoogle, handler.signInWithGoogle)
	router.Post(constants.EndpointRefreshJWT, handler.refreshJWT)

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.Authenticate(handler.tokens))
		protected.Use(middleware.RequireAuth)
		protected.Post(constants.EndpointCreateAccount, handler.createAccount)
	})

	return router
}

// identityClaims is the subset of provider ID-token claims the stub reads.
type identityClaims struct {
	jwt.RegisteredClaims

	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// signInWithGoogle handles POST /auth/signInWithGoogle.
//
// # Semantics
//
// The identity is keyed by the token's subject. A bare Google identity
// (no linked phone) that the registry has never seen gets a 401: the SDK
// reads that as "not registered yet". Once the identity carries a verified
// phone number, a provisional account is created and tokens are minted so
// the registration wizard can call createAccount with a bearer.
func (handler *Handler) signInWithGoogle(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────
	var input api.SignInWithGoogleRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}
	if input.IDToken == "" {
		respond.Error(writer, request, validate.RequiredError("idToken", "is required"))
		return
	}

	// ── 2. Identity Decoding ──────────────────────────────────────────────
	// Unverified parse: the stub trusts whatever the client minted. A real
	// backend verifies the signature against the provider's JWKS.
	claims := identityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(input.IDToken, &claims); err != nil {
		respond.Error(writer, request, apperr.Unauthorized("Invalid identity token"))
		return
	}

	identityKey := claims.Subject
	if identityKey == "" {
		identityKey = claims.Email
	}
	if identityKey == "" {
		respond.Error(writer, request, apperr.Unauthorized("Identity token has no subject"))
		return
	}

	// ── 3. Account Resolution ─────────────────────────────────────────────
	account := handler.registry.FindByIdentity(identityKey)
	if account == nil {
		if claims.PhoneNumber == "" {
			// Google-only identity the backend has never seen.
			respond.Error(writer, request, &apperr.AppError{
				Code:       "USER_NOT_FOUND",
				Message:    "User not found. Please sign up.",
				HTTPStatus: http.StatusUnauthorized,
			})
			return
		}

		created, _ := handler.registry.EnsureProvisional(identityKey, claims.Name, claims.Email, claims.PhoneNumber)
		account = created
	}

	// ── 4. Token Minting ──────────────────────────────────────────────────
	handler.issueSession(writer, request, account, account.Registered)
}

// refreshJWT handles POST /auth/refreshJWT.
func (handler *Handler) refreshJWT(writer http.ResponseWriter, request *http.Request) {
	var input api.RefreshJWTRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	accountID, ok := handler.registry.RedeemRefreshToken(input.RefreshToken)
	if !ok {
		respond.Error(writer, request, &apperr.AppError{
			Code:       "INVALID_REFRESH_TOKEN",
			Message:    "Refresh token is invalid or expired.",
			HTTPStatus: http.StatusUnauthorized,
		})
		return
	}

	accessToken, err := handler.tokens.GenerateAccessToken(accountID, constants.AccessTokenTTL)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	respond.OK(writer, api.RefreshJWTResponse{AccessToken: accessToken})
}

// createAccount handles POST /user/createAccount.
func (handler *Handler) createAccount(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────
	var input api.CreateAccountRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────
	v := &validate.Validator{}
	v.MinLen("name", input.Name, 2).
		MaxLen("name", input.Name, 101).
		Required("dateOfBirth", input.DateOfBirth).
		OneOf("gender", input.Gender, "Male", "Female", "Other").
		MinLen("city", input.City, 2).
		Email("email", input.Email).
		MinLen("mobileNumber", input.MobileNumber, 10).
		URL("website", input.Website).
		MinItems("interests", input.Interests, 1, "Select at least 1 interest").
		MaxItems("interests", input.Interests, constants.MaxInterests, "Select up to 10 interests").
		MinItems("skillsets", input.Skillsets, 1, "Select at least 1 skill")

	if input.DateOfBirth != "" {
		birthDate, err := time.Parse(time.RFC3339, input.DateOfBirth)
		v.Custom("dateOfBirth", err != nil, "Must be an ISO 8601 timestamp")
		if err == nil {
			v.Custom("dateOfBirth", validate.AgeFromDate(birthDate) < constants.MinRegistrationAge,
				"You must be at least 13 years old.")
		}
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Registration ───────────────────────────────────────────────────
	claims := middleware.GetClaims(request.Context())
	account, err := handler.registry.CompleteRegistration(claims.UserID, Account{
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.MobileNumber,
		City:        input.City,
		Gender:      input.Gender,
		DateOfBirth: input.DateOfBirth,
		Website:     input.Website,
		Interests:   input.Interests,
		Skillsets:   input.Skillsets,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Token Rotation ─────────────────────────────────────────────────
	refreshToken, err := handler.registry.IssueRefreshToken(account.ID)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	handler.log.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("city", account.City),
	)

	respond.Created(writer, api.CreateAccountResponse{
		RefreshToken: refreshToken,
		UserID:       account.ID,
		IsRegistered: true,
	})
}

// issueSession mints both tokens for an account and writes the sign-in body.
func (handler *Handler) issueSession(writer http.ResponseWriter, request *http.Request, account *Account, isRegistered bool) {
	accessToken, err := handler.tokens.GenerateAccessToken(account.ID, constants.AccessTokenTTL)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	refreshToken, err := handler.registry.IssueRefreshToken(account.ID)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	respond.OK(writer, api.SignInResponse{
		RefreshToken: refreshToken,
		IsRegistered: isRegistered,
		AccessToken:  accessToken,
	})
}
