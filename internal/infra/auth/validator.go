package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xela07ax/soc-dashboard/internal/domain"
)

var (
	ErrEmptyToken   = errors.New("empty token")
	ErrNoSubject    = errors.New("token has no subject")
	ErrInvalidToken = errors.New("invalid token")
)

// ValidatorOptions: ограничения на токены оператора. Пустые Issuer/Audience не проверяются.
type ValidatorOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration // Допуск расхождения часов для exp/nbf/iat
}

// Validator проверяет токены операторов дашборда: RS* подпись, обязательный exp,
// издатель и аудитория из конфига, непустой субъект.
type Validator struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

func NewValidator(pubKey *rsa.PublicKey, opts ValidatorOptions) *Validator {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	return &Validator{publicKey: pubKey, parser: jwt.NewParser(parserOpts...)}
}

// VerifyToken принимает значение Authorization ("Bearer <jwt>") или сам токен.
func (v *Validator) VerifyToken(header string) (*domain.CustomClaims, error) {
	tokenStr := bearerToken(header)
	if tokenStr == "" {
		return nil, ErrEmptyToken
	}

	claims := &domain.CustomClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	// Журнал перезагрузок должен знать, кто ее запросил
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	return header
}

// ParseRSAPublicKey превращает PEM в ключ для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
