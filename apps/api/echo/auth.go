package echoapi

import (
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/notamil/backend/core"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.Server.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "principalToken",
		Claims:        new(Claims),
	}
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	IsStudent   bool     `json:"is_student,omitempty"`   // -> STUDENT PORTAL
	IsCorrector bool     `json:"is_corrector,omitempty"` // -> CORRECTOR PORTAL
	IsAdmin     bool     `json:"is_admin,omitempty"`     // -> ADMIN PORTAL
	Roles       []string `json:"roles,omitempty"`
}

func GetPrincipalClaims(prin core.Principal) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   prin.ID,
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:        prin.Name,
		Email:       prin.Email,
		IsStudent:   prin.IsStudent(),
		IsCorrector: prin.IsCorrector(),
		IsAdmin:     prin.IsAdmin(),
		Roles:       prin.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)
	return token.SignedString(appJWTConfig.SigningKey)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextPrincipal rebuilds the caller's Principal from its claims.
func getContextPrincipal(ctx echo.Context) (core.Principal, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Principal{}, err
	}
	return core.Principal{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: core.CleanString(claims.Email, true /* lower */),
		Roles: claims.Roles,
	}, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) {
				if match := claims.Roles[i]; role == match {
					return true
				}
			}
		}
	}
	return false
}
