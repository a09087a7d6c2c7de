package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserHashesPassword(t *testing.T) {
	user, err := CreateUser("finn", "finn@example.com", "secret123")
	require.NoError(t, err)

	assert.NotEmpty(t, user.UUID)
	assert.Equal(t, ROLE_USER, user.Role)
	assert.Equal(t, STATUS_INACTIVE, user.Status)
	assert.NotEqual(t, "secret123", user.Password)
	assert.True(t, user.CheckPassword("secret123"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestCreateUserValidation(t *testing.T) {
	_, err := CreateUser("fi", "finn@example.com", "secret123")
	assert.Error(t, err, "name below minimum length")

	_, err = CreateUser("finn", "not-an-email", "secret123")
	assert.Error(t, err)

	// The minimum applies to the raw password, not the bcrypt hash the
	// struct validator sees afterwards.
	_, err = CreateUser("finn", "finn@example.com", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestGenerateActivationToken(t *testing.T) {
	user := &User{}
	require.NoError(t, user.GenerateActivationToken())
	assert.Len(t, user.ActivationToken, 32)
	require.NotNil(t, user.ActivationSentAt)

	first := user.ActivationToken
	require.NoError(t, user.GenerateActivationToken())
	assert.NotEqual(t, first, user.ActivationToken)
}

func TestUserRoleAndStatusHelpers(t *testing.T) {
	assert.True(t, (&User{Role: ROLE_ADMIN}).IsAdmin())
	assert.False(t, (&User{Role: ROLE_USER}).IsAdmin())
	assert.True(t, (&User{Status: STATUS_ACTIVE}).IsActive())
	assert.False(t, (&User{Status: STATUS_INACTIVE}).IsActive())
}
