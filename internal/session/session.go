// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

// Package session owns the client-side session: the authenticated user, the
// transient onboarding context, and the registration wizard draft.
//
// # Architecture
//
// The types in this file represent the "Truth" of the client. They have no
// dependencies on outer layers (HTTP, identity SDKs) so the flow controllers
// and the UI bindings can share them freely.
package session

// User represents the fully authenticated member of the VolStory platform
// as held by the client.
//
// # Rules
//   - UserID is the backend primary key, distinct from the provider UID.
//   - AccessToken is mutable: the transport refreshes it in place.
//   - Identity fields are replaced wholesale on login or registration.
type User struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`

	// Optional profile fields.
	MobileNumber    string `json:"mobileNumber,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	City            string `json:"city,omitempty"`
	Gender          string `json:"gender,omitempty"`
	DateOfBirth     string `json:"dob,omitempty"` // ISO 8601
}

// GoogleProfile is the normalized result of a Google OAuth handshake,
// identical in shape for the native and web provider adapters.
type GoogleProfile struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// ProviderIdentity is the raw identity-provider account attached to the
// session, carried so the backend account can be linked to the provider UID.
type ProviderIdentity struct {
	UID         string `json:"uid"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// SignupContext bridges the gap between the sign-in providers and the
// registration wizard. It is transient: created when a provider succeeds,
// consumed to pre-fill the registration draft, destroyed on login or logout.
type SignupContext struct {
	GoogleData   *GoogleProfile    `json:"googleData,omitempty"`
	ProviderUser *ProviderIdentity `json:"firebaseUser,omitempty"`
}

// IsEmpty reports whether no provider has populated the context yet.
func (c SignupContext) IsEmpty() bool {
	return c.GoogleData == nil && c.ProviderUser == nil
}

// RegistrationDraft accumulates the wizard's inputs across steps.
//
// Age is kept as the raw text-input string; it is parsed during validation
// and converted to a date of birth only at final submission.
type RegistrationDraft struct {
	// Step 1: personal information.
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       string `json:"age"`
	Gender    string `json:"gender"`
	City      string `json:"city"`

	// Contact information, pre-filled from the providers.
	Phone string `json:"phone"`
	Email string `json:"email"`

	// Optional professional fields.
	Website      string `json:"website"`
	ProfileImage string `json:"profileImage"`

	// Step 2 and 3: preferences.
	Interests []string `json:"interests"`
	Skills    []string `json:"skills"`
}

// EmptyDraft returns the all-empty draft the store resets to.
func EmptyDraft() RegistrationDraft {
	return RegistrationDraft{
		Interests: []string{},
		Skills:    []string{},
	}
}

// merge returns the draft with every non-zero field of patch applied.
// Slice fields replace wholesale when non-nil, matching the partial-update
// semantics of the wizard screens.
func (d RegistrationDraft) merge(patch DraftPatch) RegistrationDraft {
	if patch.FirstName != nil {
		d.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		d.LastName = *patch.LastName
	}
	if patch.Age != nil {
		d.Age = *patch.Age
	}
	if patch.Gender != nil {
		d.Gender = *patch.Gender
	}
	if patch.City != nil {
		d.City = *patch.City
	}
	if patch.Phone != nil {
		d.Phone = *patch.Phone
	}
	if patch.Email != nil {
		d.Email = *patch.Email
	}
	if patch.Website != nil {
		d.Website = *patch.Website
	}
	if patch.ProfileImage != nil {
		d.ProfileImage = *patch.ProfileImage
	}
	if patch.Interests != nil {
		d.Interests = append([]string(nil), patch.Interests...)
	}
	if patch.Skills != nil {
		d.Skills = append([]string(nil), patch.Skills...)
	}
	return d
}

// DraftPatch is a partial update to the registration draft. A nil field is
// "leave unchanged"; a pointer to the zero value is an explicit clear.
type DraftPatch struct {
	FirstName    *string
	LastName     *string
	Age          *string
	Gender       *string
	City         *string
	Phone        *string
	Email        *string
	Website      *string
	ProfileImage *string
	Interests    []string
	Skills       []string
}

// Fields lists the draft field names touched by the patch. The store uses
// it to clear matching validation errors.
func (p DraftPatch) Fields() []string {
	var fields []string
	if p.FirstName != nil {
		fields = append(fields, "firstName")
	}
	if p.LastName != nil {
		fields = append(fields, "lastName")
	}
	if p.Age != nil {
		fields = append(fields, "age")
	}
	if p.Gender != nil {
		fields = append(fields, "gender")
	}
	if p.City != nil {
		fields = append(fields, "city")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.Website != nil {
		fields = append(fields, "website")
	}
	if p.ProfileImage != nil {
		fields = append(fields, "profileImage")
	}
	if p.Interests != nil {
		fields = append(fields, "interests")
	}
	if p.Skills != nil {
		fields = append(fields, "skills")
	}
	return fields
}

// String is a convenience for building string-pointer patch fields.
func String(s string) *string { return &s }
