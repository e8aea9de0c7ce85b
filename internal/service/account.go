package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/auth"
	"github.com/ramonehamilton/deckvault/internal/mtg/shopping"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// AccountService handles registration, login, tokens and API keys.
type AccountService struct {
	services *Services
}

// NewAccountService creates a new AccountService with the given services.
func NewAccountService(services *Services) *AccountService {
	return &AccountService{services: services}
}

// Session is returned by register, login and refresh.
type Session struct {
	User   *models.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// RegisterRequest is the payload of a registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. The first account becomes an administrator.
func (a *AccountService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := auth.ValidateUsername(req.Username); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if err := auth.ValidateEmail(req.Email); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, validationError("%s", err.Error())
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	err = a.services.DB.WithTransaction(ctx, func(tx *sql.Tx) error {
		users := repository.NewUserRepository(tx)

		existing, err := users.GetByUsername(ctx, req.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			return newError(ErrConflict, "username %q is already taken", req.Username)
		}
		existing, err = users.GetByLogin(ctx, req.Email)
		if err != nil {
			return err
		}
		if existing != nil && strings.EqualFold(existing.Email, req.Email) {
			return newError(ErrConflict, "email %q is already registered", req.Email)
		}
		return users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	a.services.logger().Info("user registered",
		zap.Int64("user_id", user.ID), zap.String("username", user.Username), zap.Bool("admin", user.IsAdmin))

	return a.session(user)
}

// Login authenticates by username or email.
func (a *AccountService) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, validationError("username and password are required")
	}

	user, err := repository.NewUserRepository(a.services.conn()).GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		auth.BurnPasswordCheck(password)
		return nil, newError(ErrUnauthorized, "invalid credentials")
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, newError(ErrUnauthorized, "invalid credentials")
	}
	return a.session(user)
}

// Refresh exchanges a refresh token for a new token pair.
func (a *AccountService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := a.services.Tokens.Parse(refreshToken, auth.TokenRefresh)
	if err != nil {
		return nil, newError(ErrUnauthorized, "invalid refresh token")
	}
	user, err := repository.NewUserRepository(a.services.conn()).GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, newError(ErrUnauthorized, "account no longer exists")
	}
	return a.session(user)
}

// Authenticate resolves an access token to its user.
func (a *AccountService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := a.services.Tokens.Parse(accessToken, auth.TokenAccess)
	if err != nil {
		return nil, newError(ErrUnauthorized, "invalid or expired token")
	}
	user, err := repository.NewUserRepository(a.services.conn()).GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, newError(ErrUnauthorized, "account no longer exists")
	}
	return user, nil
}

// AuthenticateAPIKey resolves an API key secret to its owner and records
// the use.
func (a *AccountService) AuthenticateAPIKey(ctx context.Context, secret string) (*models.User, error) {
	if !strings.HasPrefix(secret, auth.APIKeyPrefix) {
		return nil, newError(ErrUnauthorized, "invalid API key")
	}
	conn := a.services.conn()

	key, err := repository.NewAPIKeyRepository(conn).GetByHash(ctx, auth.HashAPIKey(secret))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, newError(ErrUnauthorized, "invalid API key")
	}
	user, err := repository.NewUserRepository(conn).GetByID(ctx, key.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, newError(ErrUnauthorized, "invalid API key")
	}

	if err := repository.NewAPIKeyRepository(conn).TouchLastUsed(ctx, key.ID, time.Now().UTC()); err != nil {
		a.services.logger().Warn("failed to record API key use", zap.Int64("key_id", key.ID), zap.Error(err))
	}
	return user, nil
}

// Me returns the caller's account.
func (a *AccountService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := repository.NewUserRepository(a.services.conn()).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user")
	}
	return user, nil
}

// UserStats summarizes an account.
type UserStats struct {
	User      *models.User             `json:"user"`
	DeckCount int                      `json:"deck_count"`
	Inventory *shopping.InventoryStats `json:"inventory"`
}

// Stats returns deck and inventory totals for the caller.
func (a *AccountService) Stats(ctx context.Context, userID int64) (*UserStats, error) {
	user, err := a.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	inv, err := inventoryStats(ctx, a.services.conn(), userID)
	if err != nil {
		return nil, err
	}
	return &UserStats{User: user, DeckCount: inv.DeckCount, Inventory: inv}, nil
}

// CreatedAPIKey includes the secret, which is only ever returned once.
type CreatedAPIKey struct {
	*models.APIKey
	Key string `json:"key"`
}

// CreateAPIKey generates a key for the caller.
func (a *AccountService) CreateAPIKey(ctx context.Context, userID int64, name string) (*CreatedAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("key name is required")
	}
	if len(name) > 100 {
		return nil, validationError("key name must be at most 100 characters")
	}

	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	key := &models.APIKey{
		UserID:    userID,
		Name:      name,
		KeyPrefix: generated.Prefix,
		KeyHash:   generated.Hash,
	}
	if err := repository.NewAPIKeyRepository(a.services.conn()).Create(ctx, key); err != nil {
		return nil, err
	}
	return &CreatedAPIKey{APIKey: key, Key: generated.Secret}, nil
}

// ListAPIKeys returns the caller's keys without secrets.
func (a *AccountService) ListAPIKeys(ctx context.Context, userID int64) ([]*models.APIKey, error) {
	return repository.NewAPIKeyRepository(a.services.conn()).ListByUser(ctx, userID)
}

// DeleteAPIKey revokes one of the caller's keys.
func (a *AccountService) DeleteAPIKey(ctx context.Context, userID, keyID int64) error {
	deleted, err := repository.NewAPIKeyRepository(a.services.conn()).Delete(ctx, userID, keyID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFound("API key")
	}
	return nil
}

// ListUsers returns every account.
func (a *AccountService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return repository.NewUserRepository(a.services.conn()).List(ctx)
}

// UpdateUserRequest lists the fields an administrator may change.
type UpdateUserRequest struct {
	Email   *string `json:"email,omitempty"`
	IsAdmin *bool   `json:"is_admin,omitempty"`
}

// UpdateUser changes another account. Administrators cannot revoke their own
// admin flag.
func (a *AccountService) UpdateUser(ctx context.Context, actorID, userID int64, req UpdateUserRequest) (*models.User, error) {
	users := repository.NewUserRepository(a.services.conn())
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("user")
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if err := auth.ValidateEmail(email); err != nil {
			return nil, validationError("%s", err.Error())
		}
		other, err := users.GetByLogin(ctx, email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != user.ID && strings.EqualFold(other.Email, email) {
			return nil, newError(ErrConflict, "email %q is already registered", email)
		}
		user.Email = email
	}
	if req.IsAdmin != nil {
		if actorID == userID && !*req.IsAdmin {
			return nil, validationError("cannot revoke your own admin rights")
		}
		user.IsAdmin = *req.IsAdmin
	}

	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes an account and everything it owns.
func (a *AccountService) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return validationError("cannot delete your own account")
	}
	users := repository.NewUserRepository(a.services.conn())
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return notFound("user")
	}
	if err := users.Delete(ctx, userID); err != nil {
		return err
	}
	a.services.logger().Info("user deleted", zap.Int64("user_id", userID), zap.Int64("by", actorID))
	return nil
}

func (a *AccountService) session(user *models.User) (*Session, error) {
	pair, err := a.services.Tokens.Issue(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}
