package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"userhub/internal/cache"
	apperrors "userhub/internal/errors"
	"userhub/internal/logging"
	"userhub/internal/model"
	"userhub/internal/repository"
)

// TokenIssuer signs session tokens carrying a user ID and role.
type TokenIssuer interface {
	GenerateToken(userID string, role model.Role) (string, error)
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8,max=72,bcryptlen"`
	Role     model.Role `json:"role" validate:"required,oneof=Admin Candidate Client"`
	Name     string     `json:"name" validate:"required,min=2"`
}

// LoginInput is the payload for authenticating.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateInput is a partial update. Absent fields are left untouched.
type UpdateInput struct {
	Email *string     `json:"email,omitempty" validate:"omitnil,email"`
	Name  *string     `json:"name,omitempty" validate:"omitnil,min=2"`
	Role  *model.Role `json:"role,omitempty" validate:"omitnil,oneof=Admin Candidate Client"`
}

func (in UpdateInput) patch() model.UserPatch {
	return model.UserPatch{Email: in.Email, Name: in.Name, Role: in.Role}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  model.PublicUser `json:"user"`
	Token string           `json:"token"`
}

// UserService exposes the account operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	GetUser(ctx context.Context, id string) (*model.PublicUser, error)
	UpdateUser(ctx context.Context, id string, in UpdateInput) (*model.PublicUser, error)
}

// userService keeps the cache coherent with the durable store. Reads go
// cache first, writes populate the cache after the durable write, and an
// email change removes the entry keyed by the old email.
type userService struct {
	repo   repository.UserRepository
	cache  cache.Repository
	signer TokenIssuer
	log    logging.Logger
}

// NewUserService builds a UserService over its collaborators.
func NewUserService(repo repository.UserRepository, cache cache.Repository, signer TokenIssuer, log logging.Logger) UserService {
	return &userService{
		repo:   repo,
		cache:  cache,
		signer: signer,
		log:    log,
	}
}

// Register creates an account after checking that the email is unused in
// either store.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	exists, err := s.emailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrConflict
	}

	user := &model.User{
		Email: in.Email,
		Role:  in.Role,
		Name:  in.Name,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.populate(ctx, created, true); err != nil {
		return nil, err
	}

	return s.authResult(ctx, created)
}

// emailExists checks the email-keyed cache entry, then the durable store.
// A durable hit is cached so the next check short-circuits.
func (s *userService) emailExists(ctx context.Context, email string) (bool, error) {
	key := cache.UserEmailKey(email)

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if cached != nil {
		return true, nil
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	if err := s.cache.Set(ctx, key, existing, cache.UserTTL); err != nil {
		return false, err
	}
	return true, nil
}

// Login always reads the durable store; the cache is only written.
func (s *userService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.ComparePassword(in.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.populate(ctx, user, false); err != nil {
		return nil, err
	}

	return s.authResult(ctx, user)
}

// GetUser reads the id-keyed entry first. An absent or undecodable entry
// falls through to the durable store, and the result is cached again.
func (s *userService) GetUser(ctx context.Context, id string) (*model.PublicUser, error) {
	key := cache.UserIDKey(id)

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		var pu model.PublicUser
		decodeErr := cached.Decode(&pu)
		if decodeErr == nil {
			return &pu, nil
		}
		s.log.Warn(ctx, "ignoring undecodable cache entry", "key", key, "error", decodeErr)
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}

	pu := user.Public()
	if err := s.cache.Set(ctx, key, pu, cache.UserTTL); err != nil {
		return nil, err
	}
	return &pu, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, in UpdateInput) (*model.PublicUser, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	patch := in.patch()

	// The old email is only needed to find the entry to invalidate.
	var oldEmail string
	if patch.Email != nil {
		prior, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if prior == nil {
			return nil, apperrors.ErrNotFound
		}
		oldEmail = prior.Email
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.ErrNotFound
	}

	if err := s.populate(ctx, updated, patch.Email != nil); err != nil {
		return nil, err
	}

	if patch.Email != nil && *patch.Email != oldEmail {
		if err := s.cache.Delete(ctx, cache.UserEmailKey(oldEmail)); err != nil {
			return nil, err
		}
		s.log.Debug(ctx, "invalidated email cache entry", "user_id", id, "old_email", oldEmail)
	}

	pu := updated.Public()
	return &pu, nil
}

// populate writes the projection under the id key and, when byEmail is set,
// the full record under the email key. The writes are independent.
func (s *userService) populate(ctx context.Context, user *model.User, byEmail bool) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.cache.Set(gctx, cache.UserIDKey(user.ID), user.Public(), cache.UserTTL)
	})
	if byEmail {
		g.Go(func() error {
			return s.cache.Set(gctx, cache.UserEmailKey(user.Email), user, cache.UserTTL)
		})
	}

	return g.Wait()
}

func (s *userService) authResult(ctx context.Context, user *model.User) (*AuthResult, error) {
	token, err := s.signer.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info(ctx, "issued token", "user_id", user.ID, "role", user.Role)

	return &AuthResult{
		User:  user.Public(),
		Token: token,
	}, nil
}
