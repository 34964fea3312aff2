package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cms-backend/internal/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, h.Verify("secret123", hash))
	assert.False(t, h.Verify("wrong", hash))
	assert.False(t, h.Verify("secret123", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("secret123", ""))

	other, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes are salted")
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
}

func TestTokenIssueAndVerify(t *testing.T) {
	c := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewTokenService("k", 0, c.now)

	tok, err := tokens.Issue("u1", "alice", domain.RoleAdmin)
	require.NoError(t, err)

	claim, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claim.UserID)
	assert.Equal(t, "alice", claim.Username)
	assert.Equal(t, domain.RoleAdmin, claim.Role)
	assert.Equal(t, c.t, claim.IssuedAt.UTC())
	assert.Equal(t, c.t.Add(time.Hour), claim.ExpiresAt.UTC())
}

func TestTokenExpiry(t *testing.T) {
	c := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewTokenService("k", time.Hour, c.now)

	tok, err := tokens.Issue("u1", "alice", domain.RoleUser)
	require.NoError(t, err)

	c.t = c.t.Add(59 * time.Minute)
	_, err = tokens.Verify(tok)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Minute)
	_, err = tokens.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsTampering(t *testing.T) {
	tokens := NewTokenService("right", time.Hour, nil)
	tok, err := tokens.Issue("u1", "alice", domain.RoleUser)
	require.NoError(t, err)

	_, err = NewTokenService("wrong", time.Hour, nil).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	_, err = tokens.Verify(parts[0] + "." + parts[1] + ".AAAA")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	tokens := NewTokenService("k", time.Hour, nil)
	now := time.Now()
	claims := tokenClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = tokens.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGuardAuthenticate(t *testing.T) {
	tokens := NewTokenService("k", time.Hour, nil)
	guard := NewGuard(tokens)
	tok, err := tokens.Issue("u1", "alice", domain.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "missing", header: "", want: ErrNoToken},
		{name: "not bearer", header: "Basic abc", want: ErrNoToken},
		{name: "empty bearer", header: "Bearer ", want: ErrNoToken},
		{name: "garbage", header: "Bearer garbage", want: ErrInvalidToken},
		{name: "valid", header: "Bearer " + tok},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim, err := guard.Authenticate(tt.header)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", claim.UserID)
		})
	}
}

func TestAuthorize(t *testing.T) {
	owner := Claim{UserID: "u1", Role: domain.RoleUser}
	admin := Claim{UserID: "u2", Role: domain.RoleAdmin}

	assert.NoError(t, Authorize(owner, "u1"))
	assert.ErrorIs(t, Authorize(admin, "u1"), ErrForbidden)
	assert.ErrorIs(t, Authorize(Claim{}, ""), ErrForbidden)
}
