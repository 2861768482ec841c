package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trellismart/backend/internal/apperr"
	"github.com/trellismart/backend/internal/auth"
	"github.com/trellismart/backend/internal/entity"
)

func signUpInput() SignUpInput {
	return SignUpInput{
		FullName: "Ada Lovelace",
		Username: "ada",
		Email:    "ada@example.com",
		Number:   "555-0100",
		Password: "s3cret-pass",
	}
}

func TestSignUpDefaultsToBuyerAndHashesPassword(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), auth.NewAuthenticator([]byte("test-secret")))

	user, err := svc.SignUp(context.Background(), signUpInput())
	require.NoError(t, err)

	assert.Equal(t, entity.RoleBuyer, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))
}

func TestSignUpRejectsAdminSelfAssignment(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), auth.NewAuthenticator([]byte("test-secret")))

	in := signUpInput()
	in.Role = string(entity.RoleAdmin)
	_, err := svc.SignUp(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSignUpRejectsMissingFields(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), auth.NewAuthenticator([]byte("test-secret")))

	in := signUpInput()
	in.Email = ""
	_, err := svc.SignUp(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), auth.NewAuthenticator([]byte("test-secret")))

	_, err := svc.SignUp(context.Background(), signUpInput())
	require.NoError(t, err)
	_, err = svc.SignUp(context.Background(), signUpInput())
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSignInIssuesVerifiableToken(t *testing.T) {
	authenticator := auth.NewAuthenticator([]byte("test-secret"))
	svc := NewUserService(newFakeUserRepo(), authenticator)

	in := signUpInput()
	in.Role = string(entity.RoleSeller)
	registered, err := svc.SignUp(context.Background(), in)
	require.NoError(t, err)

	token, user, err := svc.SignIn(context.Background(), "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	identity, err := authenticator.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, identity.UserID)
	assert.Equal(t, entity.RoleSeller, identity.Role)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), auth.NewAuthenticator([]byte("test-secret")))
	_, err := svc.SignUp(context.Background(), signUpInput())
	require.NoError(t, err)

	_, _, err = svc.SignIn(context.Background(), "ada@example.com", "wrong-pass")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, _, err = svc.SignIn(context.Background(), "nobody@example.com", "s3cret-pass")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}
