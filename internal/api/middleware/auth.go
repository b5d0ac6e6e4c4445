package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/filedeck/internal/providers/auth"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
)

// userKey is the gin context key holding the authenticated *auth.User
const userKey = "filedeck.user"

// Authenticator resolves request credentials to a user
type Authenticator interface {
	UserForToken(token string) (*auth.User, *auth.Session, error)
	Authenticate(username, password string) (*auth.User, error)
}

// Auth attaches the caller identity to the request. Requests without
// credentials pass through as anonymous; bad credentials are rejected.
func Auth(a Authenticator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		user, err := identify(c, a)
		if err != nil {
			log.Debug("rejected credentials",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			c.Header("WWW-Authenticate", `Bearer realm="filedeck"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if user != nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// RequireUser rejects anonymous requests. It must run after Auth.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

func identify(c *gin.Context, a Authenticator) (*auth.User, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, nil
	}
	if token, ok := auth.ParseBearer(header); ok {
		user, _, err := a.UserForToken(token)
		return user, err
	}
	if username, password, ok := c.Request.BasicAuth(); ok {
		return a.Authenticate(username, password)
	}
	return nil, errors.New("unsupported authorization scheme")
}

// CurrentUser returns the authenticated user, or nil for anonymous requests
func CurrentUser(c *gin.Context) *auth.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*auth.User)
	return user
}

// AppContext builds the tool execution context for the request
func AppContext(c *gin.Context) *types.Context {
	user := CurrentUser(c)
	if user == nil {
		return nil
	}
	userID, username := user.ID, user.Username
	return &types.Context{UserID: &userID, Username: &username}
}
