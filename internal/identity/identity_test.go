package identity_test

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fivew2h/internal/domain"
	"fivew2h/internal/identity"
)

func makeToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(b) + ".sig"
}

func TestDecodeValidToken(t *testing.T) {
	token := makeToken(t, map[string]any{
		identity.RoleClaim:           "Colaborador",
		identity.NameIdentifierClaim: "42",
		identity.NameClaim:           "Ana Souza",
	})

	claims, err := identity.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleColaborador, claims.Role)
	assert.Equal(t, domain.ID("42"), claims.UserID)
	assert.Equal(t, "Ana Souza", claims.Name)
	assert.Contains(t, claims.Raw, identity.RoleClaim)
	assert.Contains(t, claims.Raw, identity.NameIdentifierClaim)
	assert.True(t, claims.Authenticated(time.Now()))
}

func TestDecodeNumericUserID(t *testing.T) {
	token := makeToken(t, map[string]any{
		identity.RoleClaim:           "Lider",
		identity.NameIdentifierClaim: 7,
	})
	claims, err := identity.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, domain.ID("7"), claims.UserID)
	assert.Equal(t, domain.RoleLider, claims.Role)
}

func TestDecodeNonASCIIPayload(t *testing.T) {
	token := makeToken(t, map[string]any{
		identity.RoleClaim:           "Gestor",
		identity.NameIdentifierClaim: "3",
		identity.NameClaim:           "João Conceição",
	})
	claims, err := identity.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "João Conceição", claims.Name)
}

func TestDecodeAcceptsStandardAlphabetWithPadding(t *testing.T) {
	b, _ := json.Marshal(map[string]any{
		identity.RoleClaim:           "Admin",
		identity.NameIdentifierClaim: "1",
		"blob":                       "??>>",
	})
	token := "h." + base64.StdEncoding.EncodeToString(b) + ".s"
	claims, err := identity.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestDecodeFailures(t *testing.T) {
	cases := map[string]string{
		"not a token":   "not-a-valid-token",
		"bad base64":    "a.%%%%.c",
		"not json":      "a." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".c",
		"invalid utf-8": "a." + base64.RawURLEncoding.EncodeToString([]byte{'{', '"', 0xff, '"', ':', '1', '}'}) + ".c",
		"empty":         "",
		"four parts":    "a.b.c.d",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			var claims identity.Claims
			var err error
			assert.NotPanics(t, func() { claims, err = identity.Decode(token) })
			require.Error(t, err)
			assert.True(t, errors.Is(err, identity.ErrMalformed))
			var de *identity.DecodeError
			assert.True(t, errors.As(err, &de))
			assert.False(t, claims.Authenticated(time.Now()))
		})
	}
}

func TestMissingClaimsAreUnauthenticated(t *testing.T) {
	claims, err := identity.Decode(makeToken(t, map[string]any{"sub": "9"}))
	require.NoError(t, err)
	assert.False(t, claims.HasRole())
	assert.True(t, claims.HasUserID())
	assert.False(t, claims.Authenticated(time.Now()))
}

func TestUnknownRoleIsAbsent(t *testing.T) {
	claims, err := identity.Decode(makeToken(t, map[string]any{
		identity.RoleClaim:           "Visitante",
		identity.NameIdentifierClaim: "5",
	}))
	require.NoError(t, err)
	assert.Equal(t, domain.Role(""), claims.Role)
	assert.Equal(t, "Visitante", claims.RawRole)
}

func TestRoleArrayPicksFirstKnown(t *testing.T) {
	claims, err := identity.Decode(makeToken(t, map[string]any{
		identity.RoleClaim:           []string{"Visitante", "Gestor"},
		identity.NameIdentifierClaim: "5",
	}))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGestor, claims.Role)
}

func TestExpiredToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	claims, err := identity.Decode(makeToken(t, map[string]any{
		identity.RoleClaim:           "Admin",
		identity.NameIdentifierClaim: "1",
		"exp":                        now.Add(-time.Minute).Unix(),
	}))
	require.NoError(t, err)
	assert.True(t, claims.Expired(now))
	assert.False(t, claims.Authenticated(now))
	assert.True(t, claims.Authenticated(now.Add(-time.Hour)))
}
