package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"driverhub/internal/utils"
	"driverhub/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ctypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/sirupsen/logrus"
)

// CognitoProvider backs the identity contract with a Cognito user pool. The
// anonymous ID doubles as the Cognito username on upgrade, which is what
// keeps the application row's key stable across the link.
type CognitoProvider struct {
	client   *cognitoidentityprovider.Client
	clientID string
	logger   *logrus.Logger
}

func NewCognitoProvider(client *cognitoidentityprovider.Client, clientID string, logger *logrus.Logger) *CognitoProvider {
	return &CognitoProvider{client: client, clientID: clientID, logger: logger}
}

// SignInAnonymously mints a local guest identity. Nothing is created in the
// user pool until the applicant commits at final submission.
func (p *CognitoProvider) SignInAnonymously(ctx context.Context) (*Identity, error) {
	return &Identity{
		ID:        utils.NanoIDSize(28),
		Anonymous: true,
	}, nil
}

func (p *CognitoProvider) LinkWithPermanentCredential(ctx context.Context, ident *Identity, email, password string) (*Identity, error) {
	if !ident.Anonymous {
		// Retry after a partially failed submission: identity already
		// upgraded, nothing to do.
		return ident, nil
	}

	input := &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(ident.ID),
		Password: aws.String(password),
		UserAttributes: []ctypes.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
		},
	}

	_, err := p.client.SignUp(ctx, input)
	if err != nil {
		return nil, p.mapSignUpError(err)
	}

	return &Identity{ID: ident.ID, Email: email, Anonymous: false}, nil
}

// SignIn authenticates a returning applicant and returns the access token
// plus its lifetime in seconds. The caller resolves the identity from the
// token's claims.
func (p *CognitoProvider) SignIn(ctx context.Context, email, password string) (string, int32, error) {
	resp, err := p.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: ctypes.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		var notAuthorized *ctypes.NotAuthorizedException
		var notFound *ctypes.UserNotFoundException
		if errors.As(err, &notAuthorized) || errors.As(err, &notFound) {
			return "", 0, types.ErrInvalidCredentials
		}
		return "", 0, fmt.Errorf("failed to sign in: %w", err)
	}

	if resp.AuthenticationResult == nil || resp.AuthenticationResult.AccessToken == nil {
		return "", 0, types.ErrInvalidCredentials
	}

	return aws.ToString(resp.AuthenticationResult.AccessToken), resp.AuthenticationResult.ExpiresIn, nil
}

func (p *CognitoProvider) SendPasswordResetEmail(ctx context.Context, email string) error {
	_, err := p.client.ForgotPassword(ctx, &cognitoidentityprovider.ForgotPasswordInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(email),
	})
	if err != nil {
		// Unknown addresses get the same response as known ones so the
		// endpoint can't be used to probe for accounts.
		var notFound *ctypes.UserNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to start password reset: %w", err)
	}

	return nil
}

func (p *CognitoProvider) VerifyResetCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" || len(code) < 6 {
		return types.ErrInvalidResetCode
	}
	return nil
}

func (p *CognitoProvider) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	_, err := p.client.ConfirmForgotPassword(ctx, &cognitoidentityprovider.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(strings.TrimSpace(code)),
		Password:         aws.String(newPassword),
	})
	if err != nil {
		var codeMismatch *ctypes.CodeMismatchException
		var expired *ctypes.ExpiredCodeException
		if errors.As(err, &codeMismatch) || errors.As(err, &expired) {
			return types.ErrInvalidResetCode
		}
		return fmt.Errorf("failed to confirm password reset: %w", err)
	}

	return nil
}

func (p *CognitoProvider) mapSignUpError(err error) error {
	var userExists *ctypes.UsernameExistsException
	if errors.As(err, &userExists) {
		return types.ErrCredentialInUse
	}

	var aliasExists *ctypes.AliasExistsException
	if errors.As(err, &aliasExists) {
		return types.ErrEmailInUse
	}

	p.logger.WithError(err).Error("unhandled cognito signup error")

	return fmt.Errorf("failed to link credential: %w", err)
}
