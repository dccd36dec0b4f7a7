package server

import (
	"net/mail"
	"regexp"
	"strings"

	"driverhub/pkg/types"
)

var (
	ukMobileReg = regexp.MustCompile(`^07\d{9}$`)

	hasUpperReg  = regexp.MustCompile(`[A-Z]`)
	hasLowerReg  = regexp.MustCompile(`[a-z]`)
	hasDigitReg  = regexp.MustCompile(`[0-9]`)
	hasSymbolReg = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// validateSubmission checks the full form before any network call is made.
// Field-scoped messages keep the applicant's typed state intact client-side.
func validateSubmission(app *types.Application, password, confirmPassword string) map[string]string {
	errs := map[string]string{}

	if strings.TrimSpace(app.FirstName) == "" {
		errs["first_name"] = "First name is required."
	}

	if strings.TrimSpace(app.LastName) == "" {
		errs["last_name"] = "Last name is required."
	}

	email := strings.TrimSpace(app.Email)
	if email == "" {
		errs["email"] = "Email is required."
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs["email"] = "Enter a valid email address."
	}

	phone := strings.ReplaceAll(strings.TrimSpace(app.Phone), " ", "")
	if phone == "" {
		errs["phone"] = "Phone number is required."
	} else if !ukMobileReg.MatchString(phone) {
		errs["phone"] = "Enter a UK mobile number starting 07, 11 digits."
	}

	if strings.TrimSpace(app.Area) == "" {
		errs["area"] = "Tell us which area you want to drive in."
	}

	if msg, ok := passwordStrengthError(password); !ok {
		errs["password"] = msg
	}

	if password != confirmPassword {
		errs["confirm_password"] = "Passwords do not match."
	}

	return errs
}

func passwordStrengthError(password string) (string, bool) {
	hasUpper := hasUpperReg.MatchString(password)
	hasLower := hasLowerReg.MatchString(password)
	hasDigit := hasDigitReg.MatchString(password)
	hasSymbol := hasSymbolReg.MatchString(password)

	if len(password) < 8 || !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return "Password must be at least 8 characters and include uppercase, lowercase, number, and symbol.", false
	}

	return "", true
}
