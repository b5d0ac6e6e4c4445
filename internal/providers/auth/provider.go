package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
	"github.com/GriffinCanCode/filedeck/internal/shared/id"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxTokenLength = 128

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for unknown or malformed session tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a session past its TTL
	ErrTokenExpired = errors.New("token expired")
)

// Backend persists users and sessions. *store.Store satisfies it.
type Backend interface {
	Get(bucket, key string, v interface{}) error
	Put(bucket, key string, v interface{}) error
	Delete(bucket, key string) error
	ForEach(bucket, prefix string, fn func(key string, raw []byte) error) error
}

// Provider implements authentication and session management
type Provider struct {
	backend  Backend
	ttl      time.Duration
	cost     int
	now      func() time.Time
	metrics  *monitoring.Metrics
	log      *zap.Logger
	sessions sync.Map // token digest -> *Session
	users    sync.Map // username and user ID -> *User
	signup   sync.Mutex
}

// User represents an authenticated user
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents an active session. The token itself is never stored;
// sessions are keyed by its SHA-256 digest.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options configures a Provider
type Options struct {
	Backend    Backend // nil keeps everything in memory
	SessionTTL time.Duration
	BcryptCost int
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewProvider creates an auth provider and loads persisted users and live sessions
func NewProvider(opts Options) (*Provider, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &Provider{
		backend: opts.Backend,
		ttl:     opts.SessionTTL,
		cost:    opts.BcryptCost,
		now:     opts.Now,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Provider) load() error {
	if a.backend == nil {
		return nil
	}

	users := 0
	err := a.backend.ForEach(store.BucketUsers, "", func(_ string, raw []byte) error {
		var u User
		if err := store.Decode(raw, &u); err != nil {
			return err
		}
		a.storeUser(&u)
		users++
		return nil
	})
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	now := a.now()
	var expired []string
	err = a.backend.ForEach(store.BucketSessions, "", func(key string, raw []byte) error {
		var s Session
		if err := store.Decode(raw, &s); err != nil {
			return err
		}
		if now.After(s.ExpiresAt) {
			expired = append(expired, key)
			return nil
		}
		a.sessions.Store(key, &s)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, key := range expired {
		_ = a.backend.Delete(store.BucketSessions, key)
	}

	a.updateGauge()
	a.log.Info("auth state loaded", zap.Int("users", users), zap.Int("expired_sessions", len(expired)))
	return nil
}

// Definition returns service metadata
func (a *Provider) Definition() types.Service {
	return types.Service{
		ID:          "auth",
		Name:        "Authentication Service",
		Description: "User accounts and session tokens for cloud sync",
		Category:    types.CategoryAuth,
		Capabilities: []string{
			"register",
			"login",
			"logout",
			"verify",
		},
		Tools: []types.Tool{
			{
				ID:          "auth.register",
				Name:        "Register User",
				Description: "Create a new user account",
				Parameters: []types.Parameter{
					{Name: "username", Type: "string", Description: "Username", Required: true},
					{Name: "password", Type: "string", Description: "Password", Required: true},
					{Name: "email", Type: "string", Description: "Email address", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "auth.login",
				Name:        "Login",
				Description: "Authenticate and create session",
				Parameters: []types.Parameter{
					{Name: "username", Type: "string", Description: "Username", Required: true},
					{Name: "password", Type: "string", Description: "Password", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "auth.logout",
				Name:        "Logout",
				Description: "End current session",
				Parameters: []types.Parameter{
					{Name: "token", Type: "string", Description: "Session token", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "auth.verify",
				Name:        "Verify Token",
				Description: "Check if session token is valid",
				Parameters: []types.Parameter{
					{Name: "token", Type: "string", Description: "Session token", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "auth.getUser",
				Name:        "Get Current User",
				Description: "Get authenticated user details",
				Parameters: []types.Parameter{
					{Name: "token", Type: "string", Description: "Session token (defaults to the caller)", Required: false},
				},
				Returns: "object",
			},
		},
	}
}

// Execute runs an auth operation
func (a *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "auth.register":
		return a.register(params)
	case "auth.login":
		return a.login(params)
	case "auth.logout":
		return a.logout(params)
	case "auth.verify":
		return a.verify(params)
	case "auth.getUser":
		return a.getUser(params, appCtx)
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

// Register creates a user account
func (a *Provider) Register(username, password, email string) (*User, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := utils.ValidateEmail(email, false); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	a.signup.Lock()
	defer a.signup.Unlock()

	if _, exists := a.users.Load(username); exists {
		return nil, fmt.Errorf("username already exists")
	}

	user := &User{
		ID:           id.NewUserID().String(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		CreatedAt:    a.now(),
	}
	if a.backend != nil {
		if err := a.backend.Put(store.BucketUsers, user.ID, user); err != nil {
			return nil, fmt.Errorf("failed to persist user: %w", err)
		}
	}
	a.storeUser(user)

	a.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// Authenticate checks a username and password, as used by HTTP Basic auth
func (a *Provider) Authenticate(username, password string) (*User, error) {
	// Validation errors are not revealed to the caller
	if utils.ValidateUsername(username) != nil || utils.ValidatePassword(password) != nil {
		a.recordAttempt("invalid")
		return nil, ErrInvalidCredentials
	}

	val, exists := a.users.Load(username)
	if !exists {
		a.recordAttempt("failure")
		return nil, ErrInvalidCredentials
	}
	user := val.(*User)

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.recordAttempt("failure")
		return nil, ErrInvalidCredentials
	}
	a.recordAttempt("success")
	return user, nil
}

// Login authenticates and opens a session, returning its bearer token
func (a *Provider) Login(username, password string) (string, *Session, error) {
	user, err := a.Authenticate(username, password)
	if err != nil {
		return "", nil, err
	}

	token := generateToken()
	now := a.now()
	session := &Session{
		ID:        id.Default().GenerateWithPrefix("sess"),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}

	key := digest(token)
	if a.backend != nil {
		if err := a.backend.Put(store.BucketSessions, key, session); err != nil {
			return "", nil, fmt.Errorf("failed to persist session: %w", err)
		}
	}
	a.sessions.Store(key, session)
	a.updateGauge()
	return token, session, nil
}

// Logout ends the session for token. Unknown tokens are not an error.
func (a *Provider) Logout(token string) error {
	if err := utils.ValidateString(token, "token", 1, maxTokenLength, true); err != nil {
		return ErrInvalidToken
	}
	key := digest(token)
	a.sessions.Delete(key)
	a.updateGauge()
	if a.backend != nil {
		return a.backend.Delete(store.BucketSessions, key)
	}
	return nil
}

// UserForToken resolves a bearer token to its user
func (a *Provider) UserForToken(token string) (*User, *Session, error) {
	if err := utils.ValidateString(token, "token", 1, maxTokenLength, true); err != nil {
		return nil, nil, ErrInvalidToken
	}

	key := digest(token)
	val, exists := a.sessions.Load(key)
	if !exists {
		return nil, nil, ErrInvalidToken
	}
	session := val.(*Session)

	if a.now().After(session.ExpiresAt) {
		a.sessions.Delete(key)
		a.updateGauge()
		if a.backend != nil {
			_ = a.backend.Delete(store.BucketSessions, key)
		}
		return nil, nil, ErrTokenExpired
	}

	userVal, exists := a.users.Load(session.UserID)
	if !exists {
		return nil, nil, ErrInvalidToken
	}
	return userVal.(*User), session, nil
}

// UserByID looks up a user
func (a *Provider) UserByID(userID string) (*User, bool) {
	if !id.HasPrefix(userID, id.UserPrefix) {
		return nil, false
	}
	val, ok := a.users.Load(userID)
	if !ok {
		return nil, false
	}
	return val.(*User), true
}

// PurgeExpired drops sessions that expired before now
func (a *Provider) PurgeExpired(now time.Time) int {
	n := 0
	a.sessions.Range(func(key, value interface{}) bool {
		if now.After(value.(*Session).ExpiresAt) {
			a.sessions.Delete(key)
			if a.backend != nil {
				_ = a.backend.Delete(store.BucketSessions, key.(string))
			}
			n++
		}
		return true
	})
	if n > 0 {
		a.updateGauge()
	}
	return n
}

func (a *Provider) register(params map[string]interface{}) (*types.Result, error) {
	username := types.GetString(params, "username")
	if username == "" {
		return types.Failure("username required")
	}
	password := types.GetString(params, "password")
	if password == "" {
		return types.Failure("password required")
	}

	user, err := a.Register(username, password, types.GetString(params, "email"))
	if err != nil {
		return types.Failure(err.Error())
	}

	return types.Success(map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (a *Provider) login(params map[string]interface{}) (*types.Result, error) {
	username := types.GetString(params, "username")
	if username == "" {
		return types.Failure("username required")
	}
	password := types.GetString(params, "password")
	if password == "" {
		return types.Failure("password required")
	}

	token, session, err := a.Login(username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return types.Failure(err.Error())
		}
		return nil, err
	}

	return types.Success(map[string]interface{}{
		"token":      token,
		"user_id":    session.UserID,
		"username":   username,
		"expires_at": session.ExpiresAt.Unix(),
	})
}

func (a *Provider) logout(params map[string]interface{}) (*types.Result, error) {
	token := types.GetString(params, "token")
	if token == "" {
		return types.Failure("token required")
	}
	if err := a.Logout(token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return types.Failure(err.Error())
		}
		return nil, err
	}
	return types.Success(map[string]interface{}{"logged_out": true})
}

func (a *Provider) verify(params map[string]interface{}) (*types.Result, error) {
	token := types.GetString(params, "token")
	if token == "" {
		return types.Failure("token required")
	}

	user, session, err := a.UserForToken(token)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return types.Success(map[string]interface{}{"valid": false, "reason": "expired"})
	case err != nil:
		return types.Success(map[string]interface{}{"valid": false})
	}

	return types.Success(map[string]interface{}{
		"valid":      true,
		"user_id":    user.ID,
		"expires_at": session.ExpiresAt.Unix(),
	})
}

func (a *Provider) getUser(params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	var user *User
	if token := types.GetString(params, "token"); token != "" {
		u, _, err := a.UserForToken(token)
		if err != nil {
			return types.Failure(err.Error())
		}
		user = u
	} else {
		u, ok := a.UserByID(appCtx.User())
		if !ok {
			return types.Failure("token required")
		}
		user = u
	}

	return types.Success(map[string]interface{}{
		"user_id":    user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"created_at": user.CreatedAt.Unix(),
	})
}

func (a *Provider) storeUser(u *User) {
	a.users.Store(u.Username, u)
	a.users.Store(u.ID, u)
}

func (a *Provider) recordAttempt(result string) {
	if a.metrics != nil {
		a.metrics.RecordAuthAttempt(result)
	}
}

func (a *Provider) updateGauge() {
	if a.metrics == nil {
		return
	}
	n := 0
	a.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	a.metrics.SetAuthSessionsActive(n)
}

// ParseBearer extracts the token from an "Authorization: Bearer ..." header value
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v - cannot generate secure token", err))
	}
	return base64.URLEncoding.EncodeToString(b)
}
