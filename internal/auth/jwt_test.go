package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService("secret", 1)
	token, err := s.Generate("ops@example.com", RoleAdmin)
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	token, err := NewJWTService("one", 1).Generate("x", RoleAdmin)
	require.NoError(t, err)

	_, err = NewJWTService("two", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	_, err := NewJWTService("secret", 1).Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
