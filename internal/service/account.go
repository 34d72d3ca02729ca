package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/eventhub/eventhub/internal/auth"
	"github.com/eventhub/eventhub/internal/model"
	"github.com/eventhub/eventhub/internal/permission"
	"github.com/eventhub/eventhub/internal/repository"
	"github.com/google/uuid"
)

// AccountService handles sign-up, login and role assignment.
type AccountService struct {
	users  UserStore
	tokens *auth.TokenIssuer
	now    func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(users UserStore, tokens *auth.TokenIssuer, opts ...Option) *AccountService {
	o := buildOptions(opts)
	return &AccountService{users: users, tokens: tokens, now: o.now}
}

// SignUp creates an account with the default user role.
func (s *AccountService) SignUp(ctx context.Context, req model.SignUpRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        []model.Role{model.RoleUser},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login exchanges credentials for a session token.
func (s *AccountService) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{Token: token, User: user}, nil
}

// Me returns the account behind actor.
func (s *AccountService) Me(ctx context.Context, actor *model.Actor) (*model.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	return s.getUser(ctx, actor.ID)
}

// SetRoles replaces the roles of userID. Admin only.
func (s *AccountService) SetRoles(ctx context.Context, actor *model.Actor, userID string, req model.SetRolesRequest) (*model.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !permission.CanAdminister(actor) {
		return nil, ErrAdminOnly
	}
	if len(req.Roles) == 0 {
		return nil, validationError("roles: user must have at least one role")
	}

	roles := make([]model.Role, 0, len(req.Roles))
	for _, r := range req.Roles {
		r = model.Role(strings.ToLower(strings.TrimSpace(string(r))))
		if !r.Valid() {
			return nil, validationError(fmt.Sprintf("roles: unknown role %q", r))
		}
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}

	if err := s.users.SetRoles(ctx, userID, roles); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("set roles: %w", err)
	}
	return s.getUser(ctx, userID)
}

// EnsureAdmin makes sure an account for email exists and carries the admin
// role, creating it with password when missing. It is meant for startup
// bootstrap, before any admin exists to call SetRoles.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Actor().HasRole(model.RoleAdmin) {
			return user, nil
		}
		roles := append(slices.Clone(user.Roles), model.RoleAdmin)
		if err := s.users.SetRoles(ctx, user.ID, roles); err != nil {
			return nil, fmt.Errorf("grant admin: %w", err)
		}
		user.Roles = roles
		return user, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("get user: %w", err)
	}

	name, _, _ := strings.Cut(email, "@")
	req := model.SignUpRequest{Name: name, Email: email, Password: password}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user = &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Roles:        []model.Role{model.RoleUser, model.RoleAdmin},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return user, nil
}

func (s *AccountService) getUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", validationError(fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	return hash, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
