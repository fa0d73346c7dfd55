package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// ScopeReload — право инициировать перезагрузку источников через API.
const ScopeReload = "dashboard.reload"

type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "admin": true или "dashboard.reload": true
	jwt.RegisteredClaims
}

// Allows проверяет scope; admin разрешает все.
func (c *CustomClaims) Allows(scope string) bool {
	if c == nil {
		return false
	}
	return c.Scopes["admin"] || c.Scopes[scope]
}
