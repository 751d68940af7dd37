package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, "+94712345678", []string{"passenger"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "+94712345678", claims.Phone)
	assert.Equal(t, []string{"passenger"}, claims.Roles)
	assert.Equal(t, "gotrip-booking", claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestValidateAccessToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	userID := uuid.New()

	t.Run("Rejects Wrong Secret", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(userID, "+94712345678", nil)
		require.NoError(t, err)

		other := NewService("other-secret", time.Hour)
		claims, err := other.ValidateAccessToken(token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("Rejects Expired Token", func(t *testing.T) {
		expired := NewService("test-secret", -time.Minute)
		token, err := expired.GenerateAccessToken(userID, "+94712345678", nil)
		require.NoError(t, err)

		claims, err := expired.ValidateAccessToken(token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("Rejects Garbage", func(t *testing.T) {
		claims, err := svc.ValidateAccessToken("not.a.token")
		assert.Error(t, err)
		assert.Nil(t, claims)
	})
}
