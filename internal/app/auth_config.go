package app

import (
	"time"

	"github.com/easylesson/easylesson-server/internal/auth"
)

const defaultCodeTTL = 15 * time.Minute

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// GoogleProviderConfig converts AuthConfig into GoogleProvider parameters.
func (c AuthConfig) GoogleProviderConfig() auth.GoogleConfig {
	return auth.GoogleConfig{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
	}
}

// CodeTTL returns the verification and reset code lifetime with its default applied.
func (c AuthConfig) CodeTTL() time.Duration {
	if c.Verification.CodeTTL <= 0 {
		return defaultCodeTTL
	}
	return c.Verification.CodeTTL
}
