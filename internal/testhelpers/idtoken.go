package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

// IDToken creates an HS256 signed JWT with the given subject and expiry,
// shaped like an Identity Toolkit ID token.
func IDToken(t *testing.T, subject string, expiry time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Issuer:    "https://securetoken.google.com/test-project",
		Audience:  jwt.ClaimStrings{"test-project"},
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-secret"))
	require.NoError(t, err, "failed to sign ID token")

	return signed
}
