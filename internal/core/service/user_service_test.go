package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
)

func newUserFixture(t *testing.T) (*UserService, *mockUserRepo, domain.Principal, domain.Principal) {
	t.Helper()
	repo := newMockUserRepo()
	svc := NewUserService(repo, plainHasher{}, stubTokens{})

	manager, err := svc.CreateUser(context.Background(), domain.NewUser{
		Username: "boss", Password: "secret1", Email: "boss@example.com", Role: domain.RoleManager,
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	employee, err := svc.Register(context.Background(), domain.NewUser{
		Username: "worker", Password: "secret2", Email: "worker@example.com",
	})
	if err != nil {
		t.Fatalf("register employee: %v", err)
	}

	return svc, repo,
		domain.Principal{UserID: manager.ID, Username: manager.Username, Role: manager.Role},
		domain.Principal{UserID: employee.ID, Username: employee.Username, Role: employee.Role}
}

func TestRegister_AlwaysEmployee(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), plainHasher{}, stubTokens{})

	user, err := svc.Register(context.Background(), domain.NewUser{
		Username: "eve", Password: "secret1", Role: domain.RoleManager,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Role != domain.RoleEmployee {
		t.Errorf("expected employee role, got %s", user.Role)
	}
	if user.PasswordHash != "hashed:secret1" {
		t.Errorf("expected hashed password, got %q", user.PasswordHash)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _, _, _ := newUserFixture(t)

	_, err := svc.Register(context.Background(), domain.NewUser{Username: "worker", Password: "secret9"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for username, got: %v", err)
	}

	_, err = svc.Register(context.Background(), domain.NewUser{Username: "other", Password: "secret9", Email: "boss@example.com"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for email, got: %v", err)
	}
}

func TestRegister_Invalid(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), plainHasher{}, stubTokens{})

	_, err := svc.Register(context.Background(), domain.NewUser{Username: "ab", Password: "123", Email: "nope"})
	var v domain.ValidationErrors
	if !errors.As(err, &v) {
		t.Fatalf("expected validation errors, got: %v", err)
	}
	for _, field := range []string{"username", "password", "email"} {
		if _, ok := v[field]; !ok {
			t.Errorf("expected %s error, got %v", field, v)
		}
	}
}

func TestPasswordTooLong(t *testing.T) {
	svc, _, _, employee := newUserFixture(t)
	ctx := context.Background()
	long := strings.Repeat("x", domain.MaxPasswordLength+1)

	tests := []struct {
		name  string
		field string
		call  func() error
	}{
		{"register", "password", func() error {
			_, err := svc.Register(ctx, domain.NewUser{Username: "longpw", Password: long})
			return err
		}},
		{"update profile", "password", func() error {
			_, err := svc.UpdateProfile(ctx, employee, domain.UserPatch{Password: long})
			return err
		}},
		{"change password", "newPassword", func() error {
			return svc.ChangePassword(ctx, employee, "secret2", long)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var v domain.ValidationErrors
			if err := tc.call(); !errors.As(err, &v) {
				t.Fatalf("expected validation errors, got: %v", err)
			}
			if _, ok := v[tc.field]; !ok {
				t.Errorf("expected %s error, got %v", tc.field, v)
			}
		})
	}

	exact := strings.Repeat("x", domain.MaxPasswordLength)
	if _, err := svc.Register(ctx, domain.NewUser{Username: "maxpw", Password: exact}); err != nil {
		t.Errorf("expected a %d byte password to be accepted, got: %v", domain.MaxPasswordLength, err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _, employee := newUserFixture(t)

	session, err := svc.Login(context.Background(), "worker", "secret2")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.Token == "" || session.User.ID != employee.UserID {
		t.Errorf("unexpected session: %+v", session)
	}

	_, err = svc.Login(context.Background(), "worker", "wrong-password")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for bad password, got: %v", err)
	}

	_, err = svc.Login(context.Background(), "ghost", "secret2")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for unknown user, got: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _, manager, employee := newUserFixture(t)
	ctx := context.Background()

	updated, err := svc.UpdateProfile(ctx, employee, domain.UserPatch{Email: "new@example.com"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Email != "new@example.com" {
		t.Errorf("expected new email, got %s", updated.Email)
	}

	_, err = svc.UpdateProfile(ctx, employee, domain.UserPatch{Role: domain.RoleManager})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for employee role change, got: %v", err)
	}

	_, err = svc.UpdateProfile(ctx, employee, domain.UserPatch{Email: "boss@example.com"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for taken email, got: %v", err)
	}

	updated, err = svc.UpdateProfile(ctx, manager, domain.UserPatch{Role: domain.RoleEmployee})
	if err != nil {
		t.Fatalf("manager role change failed: %v", err)
	}
	if updated.Role != domain.RoleEmployee {
		t.Errorf("expected role employee, got %s", updated.Role)
	}
}

func TestChangePassword(t *testing.T) {
	svc, repo, _, employee := newUserFixture(t)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, employee, "wrong1", "newsecret")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for wrong current password, got: %v", err)
	}

	if err := svc.ChangePassword(ctx, employee, "secret2", "newsecret"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	stored, _ := repo.GetByID(ctx, employee.UserID)
	if stored.PasswordHash != "hashed:newsecret" {
		t.Errorf("expected new hash, got %q", stored.PasswordHash)
	}
}

func TestEmployees_ManagerOnly(t *testing.T) {
	svc, _, _, employee := newUserFixture(t)
	ctx := context.Background()

	if _, err := svc.ListEmployees(ctx, employee); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden on list, got: %v", err)
	}
	if _, err := svc.CreateEmployee(ctx, employee, domain.NewUser{Username: "x12", Password: "secret"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden on create, got: %v", err)
	}
	if err := svc.DeleteEmployee(ctx, employee, employee.UserID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden on delete, got: %v", err)
	}
}

func TestEmployees_Lifecycle(t *testing.T) {
	svc, repo, manager, _ := newUserFixture(t)
	ctx := context.Background()

	created, err := svc.CreateEmployee(ctx, manager, domain.NewUser{
		Username: "newbie", Password: "secret3", Role: domain.RoleManager,
	})
	if err != nil {
		t.Fatalf("create employee failed: %v", err)
	}
	if created.Role != domain.RoleEmployee {
		t.Errorf("expected employee role, got %s", created.Role)
	}

	list, err := svc.ListEmployees(ctx, manager)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 employees, got %d", len(list))
	}

	updated, err := svc.UpdateEmployee(ctx, manager, created.ID, domain.UserPatch{Username: "veteran", Password: "secret4"})
	if err != nil {
		t.Fatalf("update employee failed: %v", err)
	}
	if updated.Username != "veteran" || updated.PasswordHash != "hashed:secret4" {
		t.Errorf("unexpected employee: %+v", updated)
	}

	if _, err := svc.UpdateEmployee(ctx, manager, manager.UserID, domain.UserPatch{Email: "x@example.com"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error updating a manager, got: %v", err)
	}
	if err := svc.DeleteEmployee(ctx, manager, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	if err := svc.DeleteEmployee(ctx, manager, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected employee gone, got: %v", err)
	}
}
