// Package token implements the two credential issuance strategies: opaque
// persisted secrets and self-contained JWTs. The strategy is selected once
// at startup from configuration.
package token

import (
	"fmt"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

// NewIssuer selects the issuance strategy from configuration. The jwt
// strategy without signing material is a startup error, not a per-request
// one.
func NewIssuer(cfg conf.Token, tokens biz.AccessTokenRepo) (biz.TokenIssuer, error) {
	switch cfg.Strategy {
	case "opaque":
		return NewOpaqueIssuer(tokens), nil
	case "jwt":
		if cfg.SigningKey == "" {
			return nil, fmt.Errorf("token strategy jwt requires a signing key")
		}
		return NewJWTIssuer([]byte(cfg.SigningKey), cfg.Lifetime.Std(), cfg.Scopes), nil
	default:
		return nil, fmt.Errorf("unknown token strategy %q", cfg.Strategy)
	}
}
