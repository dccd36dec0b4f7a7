// Package identity fronts the external identity provider. Applicants start
// out anonymous and are upgraded to a permanent credentialed identity at
// final submission; the application record keeps the same ID across the
// upgrade.
package identity

import "context"

type Identity struct {
	ID        string
	Email     string
	Anonymous bool
}

type Provider interface {
	// SignInAnonymously mints a throwaway identity for an applicant who has
	// not committed to an account yet.
	SignInAnonymously(ctx context.Context) (*Identity, error)

	// LinkWithPermanentCredential upgrades an anonymous identity in place.
	// Fails with types.ErrEmailInUse or types.ErrCredentialInUse; both are
	// recoverable by changing the email.
	LinkWithPermanentCredential(ctx context.Context, ident *Identity, email, password string) (*Identity, error)

	// SendPasswordResetEmail always reports success for unknown addresses.
	SendPasswordResetEmail(ctx context.Context, email string) error

	// VerifyResetCode rejects obviously dead codes up front; the
	// authoritative check happens in ConfirmPasswordReset.
	VerifyResetCode(ctx context.Context, code string) error

	// ConfirmPasswordReset consumes the code. An invalid or expired code is
	// terminal; the applicant must request a new one.
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
}
