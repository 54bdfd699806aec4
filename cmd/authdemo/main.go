// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

// Command authdemo walks the full authentication journey against a running
// devserver: Google sign-in, phone verification, and the three-step
// registration wizard. It exists so the whole SDK surface can be exercised
// from a terminal without a mobile build.
//
// # Usage
//
//	SERVER:  go run ./cmd/devserver
//	DEMO:    go run ./cmd/authdemo -email dev@example.com -phone +15551230001
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"

	"github.com/volstory/volstory-go/internal/api"
	"github.com/volstory/volstory-go/internal/auth"
	"github.com/volstory/volstory-go/internal/identity"
	"github.com/volstory/volstory-go/internal/platform/config"
	"github.com/volstory/volstory-go/internal/platform/constants"
	"github.com/volstory/volstory-go/internal/platform/storage"
	"github.com/volstory/volstory-go/internal/register"
	"github.com/volstory/volstory-go/internal/session"
)

func main() {
	email := flag.String("email", "demo@volstory.app", "google account email for the simulated sign-in")
	name := flag.String("name", "Demo User", "display name for the simulated sign-in")
	phone := flag.String("phone", "+15551230001", "E.164 phone number to verify")
	flag.Parse()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05.000",
	}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	must(log, err, "load configuration")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ── 1. Storage ────────────────────────────────────────────────────────
	kv, err := newStorage(ctx, cfg, log)
	must(log, err, "initialize storage")

	// ── 2. Session + API Wiring ───────────────────────────────────────────
	store := session.NewStore(kv, log)

	transport := &api.AuthTransport{
		Storage:    kv,
		Hook:       store,
		RefreshURL: cfg.APIBaseURL + constants.EndpointRefreshJWT,
		Log:        log,
	}
	backend := api.NewClient(cfg.APIBaseURL, transport, log)

	// ── 3. Identity Provider ──────────────────────────────────────────────
	// The demo runs against the dev stub, which decodes identity tokens
	// without verifying them, so a locally minting provider is enough.
	provider := &demoProvider{email: *email, name: *name}

	// ── 4. Hydration ──────────────────────────────────────────────────────
	store.Hydrate()
	if store.IsAuthenticated() {
		user := store.CurrentUser()
		fmt.Printf("already signed in as %s (%s)\n", user.Name, user.UserID)
		if expiry, expErr := api.TokenExpiry(user.AccessToken); expErr == nil {
			fmt.Printf("access token valid until %s\n", expiry.Format(time.RFC3339))
		}
		return
	}

	// ── 5. Google Sign-In (signup intent) ─────────────────────────────────
	googleFlow := auth.NewGoogleFlow(provider, backend, store, kv, log)
	googleResult := googleFlow.SignIn(ctx, auth.IntentSignup)
	report("google sign-in", googleResult.Next, googleResult.Alert)
	if googleResult.Next != auth.NavigatePhone {
		os.Exit(1)
	}

	// ── 6. Phone Verification ─────────────────────────────────────────────
	phoneFlow := auth.NewPhoneFlow(provider, backend, store,
		rate.NewLimiter(rate.Every(constants.DefaultOTPSendInterval), constants.DefaultOTPSendBurst), log)

	sendResult := phoneFlow.SendOTP(ctx, *phone)
	report("send otp", sendResult.Next, sendResult.Alert)
	if sendResult.Next != auth.NavigateOTP {
		os.Exit(1)
	}

	verifyResult := phoneFlow.VerifyOTP(ctx, demoOTPCode)
	report("verify otp", verifyResult.Next, verifyResult.Alert)
	if verifyResult.Next != auth.NavigateRegister {
		os.Exit(1)
	}

	// ── 7. Registration Wizard ────────────────────────────────────────────
	wizard := register.NewWizard(store, backend, kv, log)
	wizard.PrefillFromSignup()

	store.UpdateRegistrationDraft(session.DraftPatch{
		FirstName: session.String("Demo"),
		LastName:  session.String("User"),
		Age:       session.String("27"),
		Gender:    session.String("Other"),
		City:      session.String("Lisbon"),
		Interests: []string{"Photography", "Travel"},
		Skills:    []string{"Storytelling"},
	})

	for step := 1; step <= wizard.TotalSteps(); step++ {
		stepResult := wizard.Continue(ctx)
		if stepResult.Alert != nil {
			report(fmt.Sprintf("wizard step %d", step), stepResult.Next, stepResult.Alert)
			for field, message := range store.ValidationErrors() {
				fmt.Printf("  %s: %s\n", field, message)
			}
			os.Exit(1)
		}
		if stepResult.Next == auth.NavigateHome {
			user := store.CurrentUser()
			fmt.Printf("registered and signed in as %s (%s)\n", user.Name, user.UserID)
			return
		}
	}

	log.Error("wizard finished without reaching home")
	os.Exit(1)
}

// report prints one journey milestone.
func report(stage string, next auth.Navigation, alert *auth.Alert) {
	if alert != nil {
		fmt.Printf("%-16s -> %s [%s: %s]\n", stage, next, alert.Title, alert.Message)
		return
	}
	fmt.Printf("%-16s -> %s\n", stage, next)
}

// newStorage selects the persistence backend from configuration.
func newStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "memory":
		return storage.NewMemory(), nil
	case "redis":
		return storage.NewRedis(ctx, cfg.RedisURL, "authdemo", log)
	default:
		path := cfg.StoragePath
		if path == "" {
			defaultPath, err := storage.DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = defaultPath
		}
		return storage.NewFile(path, log)
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}

// # Demo Identity Provider

// demoOTPCode is the one code the demo provider accepts.
const demoOTPCode = "123456"

// demoSigningKey signs the locally minted identity tokens. The dev stub
// decodes them without verification, so the value is irrelevant.
var demoSigningKey = []byte("authdemo-local")

// demoProvider is a self-contained [identity.Provider] that mints its own
// identity tokens instead of talking to a real OAuth provider.
type demoProvider struct {
	email string
	name  string

	signedIn    bool
	linkedPhone string
	pendingID   string
	pendingNum  string
}

func (provider *demoProvider) SignInWithGoogle(ctx context.Context) (*identity.GoogleUser, error) {
	provider.signedIn = true
	return &identity.GoogleUser{
		UID:         "demo-" + provider.email,
		Email:       provider.email,
		DisplayName: provider.name,
	}, nil
}

func (provider *demoProvider) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	if !provider.signedIn {
		return nil, nil
	}
	return &identity.Identity{
		UID:         "demo-" + provider.email,
		Email:       provider.email,
		DisplayName: provider.name,
		PhoneNumber: provider.linkedPhone,
	}, nil
}

func (provider *demoProvider) FreshIDToken(ctx context.Context) (string, error) {
	if !provider.signedIn {
		return "", fmt.Errorf("authdemo: no provider session")
	}

	claims := jwt.MapClaims{
		"sub":   "demo-" + provider.email,
		"email": provider.email,
		"name":  provider.name,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if provider.linkedPhone != "" {
		claims["phone_number"] = provider.linkedPhone
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(demoSigningKey)
}

func (provider *demoProvider) SendPhoneVerification(ctx context.Context, e164Number string) (string, error) {
	provider.pendingID = "demo-verification"
	provider.pendingNum = e164Number
	fmt.Printf("(pretend an SMS with code %s arrived at %s)\n", demoOTPCode, e164Number)
	return provider.pendingID, nil
}

func (provider *demoProvider) ConfirmPhoneLink(ctx context.Context, verificationID, code string) (*identity.Identity, error) {
	if verificationID != provider.pendingID || code != demoOTPCode {
		return nil, identity.Error(identity.CodeInvalidVerificationCode, "The verification code is invalid.")
	}
	provider.linkedPhone = provider.pendingNum
	return provider.CurrentIdentity(ctx)
}
