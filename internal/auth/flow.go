// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package auth implements the sign-in flow controllers: the Google OAuth flow
and the phone OTP flow.

# Architecture

Flow controllers sequence provider calls, backend calls, and session-store
mutations. They are the only layer that resolves account-state conflicts,
and the boundary where provider/transport errors stop propagating: every
outcome is folded into a typed result the UI can render (a navigation
intent, a conflict flag, or an alert). Navigation itself is an external
collaborator; controllers only signal intent.
*/
package auth

// Navigation is the routing intent a flow hands back to its caller.
type Navigation int

const (
	// NavigateNone: stay on the current screen.
	NavigateNone Navigation = iota

	// NavigateHome: session established, proceed to the home tabs.
	NavigateHome

	// NavigatePhone: proceed to phone-number entry.
	NavigatePhone

	// NavigateOTP: SMS sent, proceed to code entry.
	NavigateOTP

	// NavigateRegister: proceed to the registration wizard.
	NavigateRegister

	// NavigateLogin: session unusable, return to the login screen.
	NavigateLogin

	// NavigateBack: leave the current flow (wizard exit at step 1).
	NavigateBack
)

// String returns the routing intent's name for logs.
func (n Navigation) String() string {
	switch n {
	case NavigateNone:
		return "none"
	case NavigateHome:
		return "home"
	case NavigatePhone:
		return "phone"
	case NavigateOTP:
		return "otp"
	case NavigateRegister:
		return "register"
	case NavigateLogin:
		return "login"
	case NavigateBack:
		return "back"
	default:
		return "unknown"
	}
}

// Alert is a dismissible user-facing message. State is left unchanged by
// alerting flows, so the user can retry.
type Alert struct {
	Title   string
	Message string
}

// Conflict marks an intent/account-state mismatch during Google sign-in.
type Conflict string

const (
	// ConflictNone: no conflict, standard flow proceeding.
	ConflictNone Conflict = ""

	// ConflictUserExists: signup intent, but the account is already
	// registered. The caller should offer switching to login.
	ConflictUserExists Conflict = "USER_EXISTS"

	// ConflictUserNotFound: login intent, but no registered account. The
	// caller should offer continuing into signup.
	ConflictUserNotFound Conflict = "USER_NOT_FOUND"
)
