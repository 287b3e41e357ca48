package middleware

import (
	"errors"
	"time"

	"finsync/internal/common"
	"finsync/internal/config"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const tokenContextKey = "user"

// UserClaims are the claims read from access tokens. Subject is the user id.
type UserClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies bearer tokens and puts the caller's id in the request context.
type Authenticator struct {
	config echojwt.Config
	jwks   *keyfunc.JWKS
}

// NewAuthenticator uses the JWKS endpoint when configured and the shared HS256 secret otherwise.
func NewAuthenticator(cfg config.AuthConfig, logger *zap.Logger) (*Authenticator, error) {
	a := &Authenticator{}
	jwtConfig := echojwt.Config{
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(UserClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c)
		},
	}

	switch {
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Warn("jwks refresh failed", zap.String("url", cfg.JWKSURL), zap.Error(err))
			},
		})
		if err != nil {
			return nil, err
		}
		a.jwks = jwks
		jwtConfig.KeyFunc = jwks.Keyfunc
	case cfg.JWTSecret != "":
		jwtConfig.SigningKey = []byte(cfg.JWTSecret)
		jwtConfig.SigningMethod = echojwt.AlgorithmHS256
	default:
		return nil, errors.New("either JWKS_URL or JWT_SECRET must be set")
	}

	a.config = jwtConfig
	return a, nil
}

// Middleware returns the token check followed by user extraction.
func (a *Authenticator) Middleware() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{echojwt.WithConfig(a.config), RequireUser()}
}

// Close stops the JWKS background refresh.
func (a *Authenticator) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

// RequireUser moves the token subject into the request context.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(tokenContextKey).(*jwt.Token)
			if !ok {
				return common.SendUnauthorizedError(c)
			}

			sub, err := token.Claims.GetSubject()
			if err != nil || sub == "" {
				return common.SendUnauthorizedError(c)
			}
			userID, err := uuid.Parse(sub)
			if err != nil {
				return common.SendUnauthorizedError(c)
			}

			ctx := common.WithUserID(c.Request().Context(), userID)
			if claims, ok := token.Claims.(*UserClaims); ok && claims.Role != "" {
				ctx = common.WithRole(ctx, claims.Role)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
