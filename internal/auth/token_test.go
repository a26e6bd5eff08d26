package auth

import (
	"testing"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T, clk clock.Clock) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator([]byte("test-secret"), time.Hour, clk)
	require.NoError(t, err)
	return a
}

func TestAuthenticator_IssueVerifyRoundTrip(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAuthenticator(t, clk)

	token, exp, err := a.Issue("user-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(time.Hour), exp)

	id, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "user-1", Role: domain.RoleAdmin}, id)
}

func TestAuthenticator_RejectsExpiredToken(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAuthenticator(t, clk)

	token, _, err := a.Issue("user-1", domain.RoleCustomer)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsForeignSignature(t *testing.T) {
	clk := clock.NewManual(time.Now())
	a := newTestAuthenticator(t, clk)
	other, err := NewAuthenticator([]byte("other-secret"), time.Hour, clk)
	require.NoError(t, err)

	token, _, err := other.Issue("user-1", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsNoneAlgorithmAndUnknownRole(t *testing.T) {
	clk := clock.NewManual(time.Now())
	a := newTestAuthenticator(t, clk)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	})
	s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Verify(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: "ROOT",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	})
	s, err = forged.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = a.Verify(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_IssueRejectsBadInput(t *testing.T) {
	a := newTestAuthenticator(t, clock.NewSystem())

	_, _, err := a.Issue("", domain.RoleCustomer)
	assert.Error(t, err)
	_, _, err = a.Issue("user-1", "GUEST")
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}

	hash, err := h.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.NoError(t, h.Compare(hash, "s3cret-pass"))
	assert.Error(t, h.Compare(hash, "wrong"))
}
