package server

import (
	"testing"

	"driverhub/pkg/types"

	"github.com/stretchr/testify/assert"
)

func validApp() *types.Application {
	return &types.Application{
		FirstName: "Alex",
		LastName:  "Morgan",
		Email:     "a@example.com",
		Phone:     "07700900000",
		Area:      "Aberdeen",
	}
}

const strongPassword = "Str0ng!Password"

func TestValidateSubmission(t *testing.T) {
	tests := []struct {
		name            string
		mutate          func(*types.Application)
		password        string
		confirmPassword string
		wantFields      []string
	}{
		{
			name:            "valid form passes",
			mutate:          func(a *types.Application) {},
			password:        strongPassword,
			confirmPassword: strongPassword,
		},
		{
			name:            "missing names",
			mutate:          func(a *types.Application) { a.FirstName = ""; a.LastName = "  " },
			password:        strongPassword,
			confirmPassword: strongPassword,
			wantFields:      []string{"first_name", "last_name"},
		},
		{
			name:            "malformed email",
			mutate:          func(a *types.Application) { a.Email = "not-an-email" },
			password:        strongPassword,
			confirmPassword: strongPassword,
			wantFields:      []string{"email"},
		},
		{
			name:            "landline rejected",
			mutate:          func(a *types.Application) { a.Phone = "01224900000" },
			password:        strongPassword,
			confirmPassword: strongPassword,
			wantFields:      []string{"phone"},
		},
		{
			name:            "mobile with spaces accepted",
			mutate:          func(a *types.Application) { a.Phone = "07700 900 000" },
			password:        strongPassword,
			confirmPassword: strongPassword,
		},
		{
			name:            "short mobile rejected",
			mutate:          func(a *types.Application) { a.Phone = "0770090000" },
			password:        strongPassword,
			confirmPassword: strongPassword,
			wantFields:      []string{"phone"},
		},
		{
			name:            "missing area",
			mutate:          func(a *types.Application) { a.Area = "" },
			password:        strongPassword,
			confirmPassword: strongPassword,
			wantFields:      []string{"area"},
		},
		{
			name:            "weak password",
			mutate:          func(a *types.Application) {},
			password:        "password",
			confirmPassword: "password",
			wantFields:      []string{"password"},
		},
		{
			name:            "password mismatch",
			mutate:          func(a *types.Application) {},
			password:        strongPassword,
			confirmPassword: strongPassword + "x",
			wantFields:      []string{"confirm_password"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			app := validApp()
			test.mutate(app)

			errs := validateSubmission(app, test.password, test.confirmPassword)

			assert.Len(t, errs, len(test.wantFields))
			for _, field := range test.wantFields {
				assert.Contains(t, errs, field)
			}
		})
	}
}

func TestPasswordStrengthError(t *testing.T) {
	_, ok := passwordStrengthError("Sh0rt1!")
	assert.False(t, ok, "too short")

	_, ok = passwordStrengthError("Exact1y!")
	assert.True(t, ok, "eight characters is enough")

	_, ok = passwordStrengthError("nouppercase1!aaa")
	assert.False(t, ok)

	_, ok = passwordStrengthError("NOLOWERCASE1!AAA")
	assert.False(t, ok)

	_, ok = passwordStrengthError("NoDigitsHere!!aa")
	assert.False(t, ok)

	_, ok = passwordStrengthError("NoSymbolsHere1aa")
	assert.False(t, ok)

	_, ok = passwordStrengthError(strongPassword)
	assert.True(t, ok)
}
