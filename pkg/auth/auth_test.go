package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfdb/domain/core/valueobjects"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	gen, err := NewJWTGenerator(secret, "bfdb", time.Hour)
	require.NoError(t, err)
	val, err := NewJWTValidator(secret, "bfdb")
	require.NoError(t, err)

	viewer := valueobjects.CurrentViewer{OrgBfOid: "org-1", PersonBfGid: "person-1"}
	token, err := gen.GenerateToken(viewer)
	require.NoError(t, err)

	claims, err := val.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	got, err := claims.Viewer()
	require.NoError(t, err)
	assert.Equal(t, viewer, got)
}

func TestValidateTokenFailures(t *testing.T) {
	val, err := NewJWTValidator(secret, "bfdb")
	require.NoError(t, err)

	sign := func(key string, claims Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{Org: "org-1", RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "person-1",
			Issuer:    "bfdb",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	otherIssuer := valid()
	otherIssuer.Issuer = "someone-else"
	noOrg := valid()
	noOrg.Org = ""

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong key", sign("other", valid()), ErrInvalidSignature},
		{"expired", sign(secret, expired), ErrExpiredToken},
		{"issuer", sign(secret, otherIssuer), ErrInvalidClaims},
		{"missing org", sign(secret, noOrg), ErrInvalidClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := val.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewValidatorRequiresSecret(t *testing.T) {
	_, err := NewJWTValidator("", "bfdb")
	assert.Error(t, err)
	_, err = NewJWTGenerator("", "bfdb", time.Hour)
	assert.Error(t, err)
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k")
	assert.False(t, ok, "third request in the window is refused")

	ok, _ = l.Allow(ctx, "other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "window slid past the old requests")

	require.NoError(t, l.Reset(ctx, "k"))
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestViewerRateLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewViewerRateLimiter(1)
	ok, _ := l.Allow(ctx, "org-1", "p1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "org-1", "p1")
	assert.False(t, ok)
	ok, _ = l.Allow(ctx, "org-2", "p1")
	assert.True(t, ok)

	unlimited := NewViewerRateLimiter(0)
	for i := 0; i < 5; i++ {
		ok, _ = unlimited.Allow(ctx, "org-1", "p1")
		assert.True(t, ok)
	}
}
