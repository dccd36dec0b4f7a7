package types

import "errors"

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrConfigNotFound      = errors.New("portal config not found")

	// ErrAlreadySubmitted guards the one-way isPartial transition: a record
	// that has been through final submission never returns to draft.
	ErrAlreadySubmitted = errors.New("application already submitted")

	// Identity upgrade conflicts, recoverable by changing the email.
	ErrEmailInUse      = errors.New("email already in use")
	ErrCredentialInUse = errors.New("credential already linked to another account")

	// Terminal for the code in question, a fresh reset must be requested.
	ErrInvalidResetCode = errors.New("password reset code is invalid or expired")

	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrChecklistIncomplete gates the badge-received conversion: all five
	// milestones must be done first.
	ErrChecklistIncomplete = errors.New("unlicensed checklist is not complete")

	// ErrNotSubmitted guards the checklist operations: the unlicensed flow
	// only starts once final submission has gone through.
	ErrNotSubmitted = errors.New("application has not been submitted")

	// ErrAlreadyLicensed rejects checklist operations on the licensed branch.
	ErrAlreadyLicensed = errors.New("application is on the licensed branch")
)
