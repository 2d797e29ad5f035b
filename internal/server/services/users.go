// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, token verification, and
// administrative user management.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avdeev/usersvc/internal/common"
	"github.com/avdeev/usersvc/internal/dbx"
	"github.com/avdeev/usersvc/internal/server/models"
	"github.com/avdeev/usersvc/internal/server/password"
	"github.com/avdeev/usersvc/internal/server/repositories/repomanager"
	"github.com/avdeev/usersvc/internal/server/token"
)

// AuthResult is what a successful registration or login returns to the
// caller: the signed token plus the user's public identity fields.
type AuthResult struct {
	Token string
	Email string
	Name  string
}

// UserService provides account operations:
//   - Register / Login: create accounts, verify credentials, mint tokens
//   - VerifyToken: validate a presented token and recover its claims
//   - Create / List / GetByID / Update / Delete: administrative CRUD
type UserService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	hasher password.Hasher
	tokens *token.Manager
}

// NewUserService constructs a UserService with its collaborators passed
// explicitly; nothing is looked up ambiently.
func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, hasher password.Hasher, tokens *token.Manager) *UserService {
	return &UserService{
		db:     db,
		repos:  repos,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register creates a new account with the lowest-privilege role and returns
// a token for it. A taken email yields common.ErrEmailTaken; unlike login,
// registration deliberately discloses the conflict.
func (s *UserService) Register(ctx context.Context, email, name, plaintext string) (*AuthResult, error) {
	user, err := s.createUser(ctx, email, name, plaintext, models.RoleUser)
	if err != nil {
		return nil, err
	}

	return s.issueFor(user)
}

// Login verifies the credentials and, on success, returns a token for the
// account. Both an unknown email and a wrong password yield
// common.ErrInvalidCredentials; a store failure surfaces as a distinct
// wrapped error.
func (s *UserService) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	user, err := s.Authenticate(ctx, email, plaintext)
	if err != nil {
		return nil, err
	}

	return s.issueFor(user)
}

// Authenticate looks up the account by email and compares the password
// against the stored hash. The credential pair exists only for the duration
// of this call.
func (s *UserService) Authenticate(ctx context.Context, email, plaintext string) (*models.User, error) {
	repo := s.repos.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	if err := s.hasher.Verify(plaintext, user.PasswordHash); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	return user, nil
}

// VerifyToken validates a presented token string and returns its claims.
func (s *UserService) VerifyToken(tokenString string) (*token.Claims, error) {
	return s.tokens.Parse(tokenString)
}

// Create adds an account on behalf of an administrator. Same duplicate-email
// rule as Register; no token is issued.
func (s *UserService) Create(ctx context.Context, email, name, plaintext string) (*models.User, error) {
	return s.createUser(ctx, email, name, plaintext, models.RoleUser)
}

// List returns all registered accounts.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	result, err := s.repos.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	return result, nil
}

// GetByID returns the account with the given ID or common.ErrorNotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return user, nil
}

// Update changes the account's email and display name. The new email must
// remain unique; conflicts yield common.ErrEmailTaken.
func (s *UserService) Update(ctx context.Context, id, email, name string) (*models.User, error) {
	user, err := s.repos.Users(s.db).Update(ctx, &models.User{ID: id, Email: email, Name: name})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrorNotFound
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, common.ErrEmailTaken
		default:
			return nil, fmt.Errorf("user update: %w", err)
		}
	}
	return user, nil
}

// Delete removes the account with the given ID, or returns
// common.ErrorNotFound when no such account exists.
func (s *UserService) Delete(ctx context.Context, id string) error {
	repo := s.repos.Users(s.db)

	exists, err := repo.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}
	if !exists {
		return common.ErrorNotFound
	}

	if err := repo.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("user delete: %w", err)
	}

	return nil
}

// --- helpers below ---

// createUser hashes the password and inserts the account inside one
// transaction, so the duplicate check and the insert see the same state.
func (s *UserService) createUser(ctx context.Context, email, name, plaintext string, role models.Role) (*models.User, error) {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("password hash: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)

		_, err := repo.GetByEmail(ctx, email)
		if err == nil {
			return common.ErrEmailTaken
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user lookup: %w", err)
		}

		created, err := repo.Create(ctx, user)
		if err != nil {
			// Unique index may still fire under concurrent registration.
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrEmailTaken
			}
			return fmt.Errorf("user create: %w", err)
		}
		user = created
		return nil
	}); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *UserService) issueFor(user *models.User) (*AuthResult, error) {
	tok, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("token issue: %w", err)
	}

	return &AuthResult{Token: tok, Email: user.Email, Name: user.Name}, nil
}
