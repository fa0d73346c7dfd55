package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/soc-dashboard/internal/domain"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, scopes map[string]bool, exp time.Time) string {
	t.Helper()
	claims := domain.CustomClaims{
		UserID: "analyst-1",
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestValidator_VerifyToken(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	v := NewValidator(&key.PublicKey, ValidatorOptions{})
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid with bearer prefix", token: "Bearer " + sign(t, key, map[string]bool{domain.ScopeReload: true}, future)},
		{name: "valid raw", token: sign(t, key, nil, future)},
		{name: "expired", token: sign(t, key, nil, time.Now().Add(-time.Hour)), wantErr: true},
		{name: "foreign key", token: sign(t, other, nil, future), wantErr: true},
		{name: "garbage", token: "Bearer not.a.jwt", wantErr: true},
		{name: "empty", token: "Bearer ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "analyst-1", claims.UserID)
		})
	}
}

func TestValidator_RejectsHMAC(t *testing.T) {
	key := newKey(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewValidator(&key.PublicKey, ValidatorOptions{}).VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_RegisteredClaims(t *testing.T) {
	key := newKey(t)
	v := NewValidator(&key.PublicKey, ValidatorOptions{Issuer: "soc-idp", Audience: "socdash", Leeway: time.Minute})

	signWith := func(claims domain.CustomClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}
	registered := func(iss, aud, sub string, exp time.Time) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    iss,
			Audience:  jwt.ClaimStrings{aud},
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		}
	}
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		claims   domain.CustomClaims
		wantErr  error
		wantUser string
	}{
		{name: "matching issuer and audience", claims: domain.CustomClaims{UserID: "analyst-1", RegisteredClaims: registered("soc-idp", "socdash", "", future)}, wantUser: "analyst-1"},
		{name: "subject fills user id", claims: domain.CustomClaims{RegisteredClaims: registered("soc-idp", "socdash", "svc-reloader", future)}, wantUser: "svc-reloader"},
		{name: "no subject", claims: domain.CustomClaims{RegisteredClaims: registered("soc-idp", "socdash", "", future)}, wantErr: ErrNoSubject},
		{name: "foreign issuer", claims: domain.CustomClaims{UserID: "a", RegisteredClaims: registered("other", "socdash", "", future)}, wantErr: jwt.ErrTokenInvalidIssuer},
		{name: "foreign audience", claims: domain.CustomClaims{UserID: "a", RegisteredClaims: registered("soc-idp", "console", "", future)}, wantErr: jwt.ErrTokenInvalidAudience},
		{name: "expired within leeway", claims: domain.CustomClaims{UserID: "a", RegisteredClaims: registered("soc-idp", "socdash", "", time.Now().Add(-10*time.Second))}, wantUser: "a"},
		{name: "expired past leeway", claims: domain.CustomClaims{UserID: "a", RegisteredClaims: registered("soc-idp", "socdash", "", time.Now().Add(-time.Hour))}, wantErr: jwt.ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.VerifyToken("bearer " + signWith(tt.claims))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, claims.UserID)
		})
	}
}

func TestValidator_EmptyHeader(t *testing.T) {
	v := NewValidator(&newKey(t).PublicKey, ValidatorOptions{})
	for _, header := range []string{"", "Bearer", "Bearer   "} {
		_, err := v.VerifyToken(header)
		assert.ErrorIs(t, err, ErrEmptyToken, header)
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key := newKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	parsed, err := ParseRSAPublicKey(pemData)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, parsed.N)

	_, err = ParseRSAPublicKey(nil)
	assert.Error(t, err)
	_, err = ParseRSAPublicKey([]byte("junk"))
	assert.Error(t, err)
}

func TestMiddleware_Chain(t *testing.T) {
	key := newKey(t)
	logger := zaptest.NewLogger(t)
	future := time.Now().Add(time.Hour)

	handler := NewMiddleware(NewValidator(&key.PublicKey, ValidatorOptions{}), logger)(
		RequireScope(domain.ScopeReload, logger)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims, ok := ClaimsFromContext(r.Context())
				require.True(t, ok)
				_, _ = w.Write([]byte(claims.UserID))
			}),
		),
	)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", header: "", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer x", want: http.StatusUnauthorized},
		{name: "missing scope", header: "Bearer " + sign(t, key, map[string]bool{"dashboard.read": true}, future), want: http.StatusForbidden},
		{name: "reload scope", header: "Bearer " + sign(t, key, map[string]bool{domain.ScopeReload: true}, future), want: http.StatusOK},
		{name: "admin", header: "Bearer " + sign(t, key, map[string]bool{"admin": true}, future), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/reload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "analyst-1", rec.Body.String())
			}
		})
	}
}
