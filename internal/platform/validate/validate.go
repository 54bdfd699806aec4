// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// This package is used exclusively in flow controllers and the dev stub's
// handlers — never in storage. It ensures that business logic only operates
// on semantically valid data.
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/volstory/volstory-go/internal/platform/apperr"
)

var (
	// lettersRegex matches names: ASCII letters and spaces only.
	lettersRegex = regexp.MustCompile(`^[a-zA-Z\s]+$`)

	// ErrInvalidJSON is returned when a request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// LettersOnly fails if the value contains anything but letters and spaces.
func (v *Validator) LettersOnly(field, value string) *Validator {
	if !lettersRegex.MatchString(value) {
		v.add(field, "Only letters allowed")
	}
	return v
}

// Email fails if the value is not a valid RFC 5322 email address.
func (v *Validator) Email(field, value string) *Validator {
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// URL fails if the non-empty value is not an absolute http(s) URL.
// An empty value passes: optional fields chain Required separately.
func (v *Validator) URL(field, value string) *Validator {
	if value == "" {
		return v
	}
	parsed, err := url.Parse(value)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		v.add(field, "Please enter a valid URL (https://...)")
	}
	return v
}

// OneOf fails if the value is not in the allowed set of strings.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.add(field, fmt.Sprintf("Must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// MinItems fails if the slice holds fewer than min entries.
func (v *Validator) MinItems(field string, values []string, min int, message string) *Validator {
	if len(values) < min {
		v.add(field, message)
	}
	return v
}

// MaxItems fails if the slice holds more than max entries.
func (v *Validator) MaxItems(field string, values []string, max int, message string) *Validator {
	if len(values) > max {
		v.add(field, message)
	}
	return v
}

// MinAge fails if the value does not parse as a whole number of years, or
// if a person of that age (computed against the wall clock) is younger
// than minYears.
//
// # Why string input?
//
// The registration wizard stores age as raw text-input state. Parsing is a
// validation concern, so it lives here rather than in the store.
func (v *Validator) MinAge(field, value string, minYears int) *Validator {
	years, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || years < 0 {
		v.add(field, "Must be a valid age")
		return v
	}
	birthDate := time.Now().AddDate(-years, 0, 0)
	if AgeFromDate(birthDate) < minYears {
		v.add(field, fmt.Sprintf("You must be at least %d years old.", minYears))
	}
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("code", len(code) != 6, "Must be a 6-digit code")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method — call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// FieldErrors collapses the collected failures into a field→message map,
// keeping only the first error per field. This is the shape the session
// store exposes to UI layers.
func (v *Validator) FieldErrors() map[string]string {
	out := make(map[string]string, len(v.errs))
	for _, fe := range v.errs {
		if _, seen := out[fe.Field]; !seen {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}

// AgeFromDate returns the number of whole years between birthDate and now.
func AgeFromDate(birthDate time.Time) int {
	now := time.Now()
	years := now.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
