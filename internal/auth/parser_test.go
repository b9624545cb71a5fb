package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrasplan/contracts-service/internal/model"
)

func TestParseRoundTrip(t *testing.T) {
	parser := NewParser("secret")
	principal := model.Principal{UserID: uuid.New(), Role: model.RoleSuprimentos}

	token, err := parser.Issue(principal, time.Hour)
	require.NoError(t, err)

	got, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestParseRejects(t *testing.T) {
	parser := NewParser("secret")
	userID := uuid.New()

	sign := func(claims Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(Claims{Role: "admin", RegisteredClaims: valid}, "other")},
		{"unknown role", sign(Claims{Role: "driver", RegisteredClaims: valid}, "secret")},
		{"bad subject", sign(Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: valid.ExpiresAt,
		}}, "secret")},
		{"expired", sign(Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}, "secret")},
		{"no expiry", sign(Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID.String(),
		}}, "secret")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}
