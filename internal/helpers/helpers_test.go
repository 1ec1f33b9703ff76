package helpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestSecretValidator(t *testing.T) {
	v := NewSecretValidator("s3cret")

	claims := &Claims{Email: "a@b.c"}
	claims.Subject = "user-1"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	claims.AppMetadata.Roles = []string{"organizer"}
	claims.UserMetadata = map[string]interface{}{"city": "Maribor"}

	got, err := v.Validate("Bearer " + signHS256(t, "s3cret", claims))
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID())
	assert.Equal(t, "organizer", got.AppRole())
	assert.Equal(t, "Maribor", got.DeclaredCity())

	_, err = v.Validate(signHS256(t, "other", claims))
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := *claims
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = v.Validate(signHS256(t, "s3cret", &expired))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStripURLs(t *testing.T) {
	assert.Equal(t, "see for tickets", StripURLs("see https://spam.example/x?y=1 for tickets"))
	assert.Equal(t, "", StripURLs("www.example.com"))
	assert.Equal(t, "great night", StripURLs("  great night  "))
}

func TestParsePagination(t *testing.T) {
	l, o, ok := ParsePagination("", "", 20, 100)
	assert.True(t, ok)
	assert.Equal(t, 20, l)
	assert.Equal(t, 0, o)

	l, _, ok = ParsePagination("500", "3", 20, 100)
	assert.True(t, ok)
	assert.Equal(t, 100, l)

	_, _, ok = ParsePagination("-1", "", 20, 100)
	assert.False(t, ok)
	_, _, ok = ParsePagination("10", "x", 20, 100)
	assert.False(t, ok)
}

func TestCleanID(t *testing.T) {
	assert.Equal(t, "abc", CleanID(` "abc" `))
}
