package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"breaksphere/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// UserIDLocal is the fiber locals key holding the authenticated user id.
	UserIDLocal = "userID"

	TokenIssuer   = "breaksphere-api"
	TokenAudience = "breaksphere-client"
)

var errNoToken = errors.New("no token")

// Authenticator verifies session tokens issued by the external session service.
type Authenticator struct {
	secret []byte
	rdb    *redis.Client
}

// NewAuthenticator creates an Authenticator. rdb may be nil, in which case
// revoked token ids are not checked.
func NewAuthenticator(secret string, rdb *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), rdb: rdb}
}

// IssueToken signs a session token for userID. The API never issues tokens
// itself; this is used by the seed command and tests.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify parses tokenString and returns the user id it names.
func (a *Authenticator) Verify(ctx context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", models.NewUnauthorizedError("Invalid or expired token")
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", models.NewUnauthorizedError("Invalid subject claim")
	}

	if claims.ID != "" && a.rdb != nil {
		revoked, err := a.rdb.Exists(ctx, "blacklist:"+claims.ID).Result()
		if err == nil && revoked > 0 {
			return "", models.NewUnauthorizedError("Token has been revoked")
		}
	}

	return sub, nil
}

// Required rejects requests without a valid session.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := tokenFrom(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, err := a.Verify(c.UserContext(), token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		setUser(c, userID)
		return c.Next()
	}
}

// Optional attaches the user when a valid session is present and otherwise
// lets the request through anonymously. An invalid token is treated as absent.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := tokenFrom(c)
		if err != nil {
			return c.Next()
		}
		if userID, err := a.Verify(c.UserContext(), token); err == nil {
			setUser(c, userID)
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(UserIDLocal).(string)
	return uid
}

func setUser(c *fiber.Ctx, userID string) {
	c.Locals(UserIDLocal, userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// tokenFrom reads a bearer token from the Authorization header, falling back to
// the token query parameter used by websocket upgrades.
func tokenFrom(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errNoToken
		}
		return parts[1], nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", errNoToken
}
