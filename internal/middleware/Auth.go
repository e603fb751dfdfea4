package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"CapIot.powerfeed/internal/models"
	"CapIot.powerfeed/internal/utils"
)

// CustomClaims holds the non-registered claims we read from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
}

// Validate does nothing for now; scope checks happen per handler if ever needed.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// EnsureValidToken returns a middleware that rejects requests without a
// valid RS256 bearer token issued by issuer for audience.
func EnsureValidToken(issuer, audience string) (func(http.Handler) http.Handler, error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
	return newTokenMiddleware(provider.KeyFunc, issuerURL.String(), audience, validator.RS256)
}

func newTokenMiddleware(keyFunc func(context.Context) (interface{}, error), issuer, audience string, alg validator.SignatureAlgorithm) (func(http.Handler) http.Handler, error) {
	jwtValidator, err := validator.New(
		keyFunc,
		alg,
		issuer,
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Warn("encountered error while validating JWT", "error", err)
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidToken, "Failed to validate JWT.", nil, http.StatusUnauthorized))
	}

	mw := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)
	return func(next http.Handler) http.Handler {
		return mw.CheckJWT(next)
	}, nil
}
