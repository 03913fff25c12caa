package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/domain"
)

func TestSignAndParse(t *testing.T) {
	iss := NewIssuer([]byte("test-secret"), 15*time.Minute)
	u := &domain.User{ID: "u-rider", Role: domain.RoleRider}

	raw, exp, err := iss.Sign(u)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-rider", claims.Subject)
	assert.Equal(t, domain.RoleRider, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer([]byte("test-secret"), time.Minute)
	raw, _, err := iss.Sign(&domain.User{ID: "u-1", Role: domain.RoleCustomer})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewIssuer([]byte("other"), time.Minute)
		_, err := other.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewIssuer([]byte("test-secret"), time.Minute)
		late.now = func() time.Time { return time.Now().Add(time.Hour) }
		_, err := late.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := iss.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{
			Role:             domain.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		})
		s, err := tok.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = iss.Parse(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
