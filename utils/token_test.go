package utils

import (
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")

	token, err := JwtGenerate(JwtCustomClaim{UserId: "u1", UserName: "alice", GroupId: "g1", IsAdmin: true})
	require.NoError(t, err)

	parsed, err := JwtValidate(token)
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	require.True(t, ok)
	assert.Equal(t, "u1", claim.UserId)
	assert.Equal(t, "g1", claim.GroupId)
	assert.True(t, claim.IsAdmin)
	assert.NotZero(t, claim.ExpiresAt)
}

func TestJwtValidateRejects(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	token, err := JwtGenerate(JwtCustomClaim{UserId: "u1"})
	require.NoError(t, err)

	t.Setenv("API_SECRET", "other-secret")
	_, err = JwtValidate(token)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &JwtCustomClaim{UserId: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = JwtValidate(unsigned)
	assert.Error(t, err)
}
