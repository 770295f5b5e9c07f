package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/logger"
	"github.com/rl1809/inventory-tracker/internal/port"
)

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)

type UserService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	tokens port.TokenIssuer
	log    zerolog.Logger
}

func NewUserService(users port.UserRepository, hasher port.PasswordHasher, tokens port.TokenIssuer) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    logger.WithComponent("users"),
	}
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

func (s *UserService) Login(ctx context.Context, username, password string) (Session, error) {
	v := domain.ValidationErrors{}
	if strings.TrimSpace(username) == "" {
		v.Add("username", "username is required")
	}
	if len(password) < domain.MinPasswordLength {
		v.Add("password", "password must be at least 6 characters")
	}
	if err := v.Err(); err != nil {
		return Session{}, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, errInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return Session{}, errInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(domain.Principal{UserID: user.ID, Username: user.Username, Role: user.Role})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info().Str("username", user.Username).Msg("user logged in")
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Register creates an employee account. Manager accounts are only created by
// an existing manager or from the command line.
func (s *UserService) Register(ctx context.Context, in domain.NewUser) (domain.User, error) {
	in.Role = domain.RoleEmployee
	user, err := s.create(ctx, in)
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info().Str("username", user.Username).Msg("user registered")
	return user, nil
}

// CreateUser creates an account with any role; used by the CLI.
func (s *UserService) CreateUser(ctx context.Context, in domain.NewUser) (domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleEmployee
	}
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in domain.NewUser) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return domain.User{}, err
	}

	if err := s.ensureUsernameFree(ctx, in.Username); err != nil {
		return domain.User{}, err
	}
	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.Create(ctx, domain.User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		Role:         in.Role,
	})
}

func (s *UserService) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return &domain.ConflictError{Message: "username already exists"}
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return &domain.ConflictError{Message: "email already exists"}
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *UserService) Profile(ctx context.Context, p domain.Principal) (domain.User, error) {
	return s.users.GetByID(ctx, p.UserID)
}

// UpdateProfile changes the caller's email and, for managers only, role.
func (s *UserService) UpdateProfile(ctx context.Context, p domain.Principal, patch domain.UserPatch) (domain.User, error) {
	patch.Email = strings.TrimSpace(patch.Email)
	if err := patch.Validate(); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return domain.User{}, err
	}

	if patch.Role != "" && patch.Role != user.Role && user.Role != domain.RoleManager {
		return domain.User{}, fmt.Errorf("%w: you are not authorized to update the role", domain.ErrForbidden)
	}
	if patch.Email != "" && patch.Email != user.Email {
		if err := s.ensureEmailFree(ctx, patch.Email); err != nil {
			return domain.User{}, err
		}
		user.Email = patch.Email
	}
	if patch.Role != "" {
		user.Role = patch.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		return domain.User{}, err
	}
	s.log.Info().Str("username", user.Username).Msg("profile updated")
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, p domain.Principal, current, next string) error {
	v := domain.ValidationErrors{}
	if current == "" {
		v.Add("currentPassword", "current password is required")
	}
	if problem := domain.PasswordProblem(next); problem != "" {
		v.Add("newPassword", "new password "+problem)
	}
	if err := v.Err(); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, current); err != nil {
		return domain.ValidationErrors{"currentPassword": "current password is incorrect"}
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.log.Info().Str("username", user.Username).Msg("password changed")
	return nil
}

func requireManager(p domain.Principal, action string) error {
	if !p.IsManager() {
		return fmt.Errorf("%w: only managers can %s employees", domain.ErrForbidden, action)
	}
	return nil
}

func (s *UserService) CreateEmployee(ctx context.Context, p domain.Principal, in domain.NewUser) (domain.User, error) {
	if err := requireManager(p, "create"); err != nil {
		return domain.User{}, err
	}
	in.Role = domain.RoleEmployee

	employee, err := s.create(ctx, in)
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info().Str("manager", p.Username).Str("employee", employee.Username).Msg("employee created")
	return employee, nil
}

func (s *UserService) ListEmployees(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := requireManager(p, "view"); err != nil {
		return nil, err
	}
	return s.users.ListByRole(ctx, domain.RoleEmployee)
}

func (s *UserService) employee(ctx context.Context, id int64, action string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, &domain.NotFoundError{Entity: "employee", ID: id}
	}
	if err != nil {
		return domain.User{}, err
	}
	if user.Role != domain.RoleEmployee {
		return domain.User{}, domain.ValidationErrors{"id": "can only " + action + " employee accounts"}
	}
	return user, nil
}

func (s *UserService) UpdateEmployee(ctx context.Context, p domain.Principal, id int64, patch domain.UserPatch) (domain.User, error) {
	if err := requireManager(p, "update"); err != nil {
		return domain.User{}, err
	}
	patch.Role = ""
	patch.Username = strings.TrimSpace(patch.Username)
	patch.Email = strings.TrimSpace(patch.Email)
	if err := patch.Validate(); err != nil {
		return domain.User{}, err
	}

	employee, err := s.employee(ctx, id, "update")
	if err != nil {
		return domain.User{}, err
	}

	if patch.Username != "" && patch.Username != employee.Username {
		if err := s.ensureUsernameFree(ctx, patch.Username); err != nil {
			return domain.User{}, err
		}
		employee.Username = patch.Username
	}
	if patch.Email != "" && patch.Email != employee.Email {
		if err := s.ensureEmailFree(ctx, patch.Email); err != nil {
			return domain.User{}, err
		}
		employee.Email = patch.Email
	}
	if patch.Password != "" {
		hash, err := s.hasher.Hash(patch.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		employee.PasswordHash = hash
	}

	if err := s.users.Update(ctx, employee); err != nil {
		return domain.User{}, err
	}
	s.log.Info().Str("manager", p.Username).Str("employee", employee.Username).Msg("employee updated")
	return s.users.GetByID(ctx, id)
}

func (s *UserService) DeleteEmployee(ctx context.Context, p domain.Principal, id int64) error {
	if err := requireManager(p, "delete"); err != nil {
		return err
	}

	employee, err := s.employee(ctx, id, "delete")
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("manager", p.Username).Str("employee", employee.Username).Msg("employee deleted")
	return nil
}
