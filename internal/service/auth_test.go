package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/auth"
)

func validRegistration() Registration {
	return Registration{
		FirstName:       "Robin",
		LastName:        "Redbreast",
		Email:           "Robin@Bird.COM",
		Username:        "robin",
		Password:        "password123",
		ConfirmPassword: "password123",
	}
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)

	s, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if s.ID == "" {
		t.Error("ID should be set")
	}
	if s.Email != "robin@bird.com" {
		t.Errorf("Email = %q, want %q", s.Email, "robin@bird.com")
	}
	if s.PasswordHash == "password123" || s.PasswordHash == "" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", s.PasswordHash)
	}
	if s.IsAdmin {
		t.Error("new accounts must not be admins")
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Registration)
		wantMsg string
	}{
		{"missing first name", func(r *Registration) { r.FirstName = "  " }, "All fields are required"},
		{"missing confirmation", func(r *Registration) { r.ConfirmPassword = "" }, "All fields are required"},
		{"email without at", func(r *Registration) { r.Email = "robin.bird.com" }, "valid email"},
		{"username too short", func(r *Registration) { r.Username = "ro" }, "Username must be"},
		{"username too long", func(r *Registration) { r.Username = strings.Repeat("r", 31) }, "Username must be"},
		{"username bad chars", func(r *Registration) { r.Username = "robin!" }, "Username must be"},
		{"password too short", func(r *Registration) {
			r.Password, r.ConfirmPassword = "short", "short"
		}, "Password must be"},
		{"password too long", func(r *Registration) {
			long := strings.Repeat("p", 73)
			r.Password, r.ConfirmPassword = long, long
		}, "Password must be"},
		{"mismatch", func(r *Registration) { r.ConfirmPassword = "password124" }, "Passwords do not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			reg := validRegistration()
			tt.mutate(&reg)

			_, err := newTestAuthService(db).Register(context.Background(), reg)
			wantErrIs(t, err, apperror.ErrValidation)
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestRegister_AcceptsDotsAndUnderscores(t *testing.T) {
	db := newTestDB(t)
	reg := validRegistration()
	reg.Username = "blue.jay_99"

	if _, err := newTestAuthService(db).Register(context.Background(), reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
}

func TestRegister_Duplicates(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)
	ctx := context.Background()

	if _, err := svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}

	t.Run("email differs only in case", func(t *testing.T) {
		reg := validRegistration()
		reg.Email = "ROBIN@bird.com"
		reg.Username = "robin2"
		_, err := svc.Register(ctx, reg)
		wantErrIs(t, err, apperror.ErrConflict)
		if !strings.Contains(err.Error(), "Email already in use.") {
			t.Errorf("error = %q, want email message", err.Error())
		}
	})

	t.Run("username", func(t *testing.T) {
		reg := validRegistration()
		reg.Email = "other@bird.com"
		_, err := svc.Register(ctx, reg)
		wantErrIs(t, err, apperror.ErrConflict)
		if !strings.Contains(err.Error(), "Username already taken.") {
			t.Errorf("error = %q, want username message", err.Error())
		}
	})
}

// =========================================================================
// AUTHENTICATE TESTS
// =========================================================================

func TestAuthenticate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)
	ctx := context.Background()
	registered, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	t.Run("correct password, any email case", func(t *testing.T) {
		s, err := svc.Authenticate(ctx, "  ROBIN@bird.com ", "password123")
		if err != nil {
			t.Fatalf("Authenticate() error: %v", err)
		}
		if s.ID != registered.ID {
			t.Errorf("ID = %q, want %q", s.ID, registered.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "robin@bird.com", "password124")
		wantErrIs(t, err, apperror.ErrUnauthorized)
		if err.Error() != "Invalid email or password" {
			t.Errorf("error = %q, want %q", err.Error(), "Invalid email or password")
		}
	})

	t.Run("unknown email gives the same answer", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody@bird.com", "password123")
		wantErrIs(t, err, apperror.ErrUnauthorized)
		if err.Error() != "Invalid email or password" {
			t.Errorf("error = %q, want %q", err.Error(), "Invalid email or password")
		}
	})

	t.Run("empty fields", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "", "")
		wantErrIs(t, err, apperror.ErrValidation)
	})
}

// =========================================================================
// GITHUB LOGIN TESTS
// =========================================================================

func TestLoginGitHub_CreatesThenReuses(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)
	ctx := context.Background()
	gh := &auth.GitHubUser{ID: 42, Login: "blue-jay", Name: "Blue Jay Fan", Email: "jay@bird.com"}

	first, err := svc.LoginGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("LoginGitHub() error: %v", err)
	}
	if first.Username != "blue_jay" {
		t.Errorf("Username = %q, want %q", first.Username, "blue_jay")
	}
	if first.FirstName != "Blue" || first.LastName != "Jay Fan" {
		t.Errorf("names = %q %q, want %q %q", first.FirstName, first.LastName, "Blue", "Jay Fan")
	}
	if first.GitHubID == nil || *first.GitHubID != 42 {
		t.Errorf("GitHubID = %v, want 42", first.GitHubID)
	}

	second, err := svc.LoginGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("second LoginGitHub() error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second login ID = %q, want %q", second.ID, first.ID)
	}

	// The account has no usable password.
	_, err = svc.Authenticate(ctx, "jay@bird.com", "!github:")
	wantErrIs(t, err, apperror.ErrUnauthorized)
}

func TestLoginGitHub_LinksByEmail(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)
	ctx := context.Background()
	local := registerStudent(t, db, "robin")

	s, err := svc.LoginGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "robin-gh", Email: "ROBIN@bird.com"})
	if err != nil {
		t.Fatalf("LoginGitHub() error: %v", err)
	}
	if s.ID != local.ID {
		t.Errorf("ID = %q, want the existing account %q", s.ID, local.ID)
	}

	linked, err := db.GetStudentByGitHubID(ctx, 7)
	if err != nil {
		t.Fatalf("GetStudentByGitHubID() error: %v", err)
	}
	if linked.ID != local.ID {
		t.Errorf("linked ID = %q, want %q", linked.ID, local.ID)
	}
}

func TestLoginGitHub_UsernameTaken(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)
	registerStudent(t, db, "robin")

	s, err := svc.LoginGitHub(context.Background(), &auth.GitHubUser{ID: 99, Login: "robin", Email: "other@bird.com"})
	if err != nil {
		t.Fatalf("LoginGitHub() error: %v", err)
	}
	if s.Username != "robin_99" {
		t.Errorf("Username = %q, want %q", s.Username, "robin_99")
	}
}

func TestLoginGitHub_NoEmail(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)

	s, err := svc.LoginGitHub(context.Background(), &auth.GitHubUser{ID: 5, Login: "Wren"})
	if err != nil {
		t.Fatalf("LoginGitHub() error: %v", err)
	}
	if s.Email != "5+wren@users.noreply.github.com" {
		t.Errorf("Email = %q", s.Email)
	}
	if s.FirstName != "Wren" {
		t.Errorf("FirstName = %q, want %q", s.FirstName, "Wren")
	}
}

// =========================================================================
// ADMIN BOOTSTRAP TESTS
// =========================================================================

func TestEnsureAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "Admin@Bird.com", "adminpass1", "admin"); err != nil {
		t.Fatalf("EnsureAdmin() error: %v", err)
	}
	// Running it again on the next start-up is a no-op.
	if err := svc.EnsureAdmin(ctx, "admin@bird.com", "adminpass1", "admin"); err != nil {
		t.Fatalf("second EnsureAdmin() error: %v", err)
	}

	admin, err := svc.Authenticate(ctx, "admin@bird.com", "adminpass1")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if !admin.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
}

func TestEnsureAdmin_LeavesExistingAccountAlone(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAuthService(db)
	ctx := context.Background()
	existing := registerStudent(t, db, "robin")

	if err := svc.EnsureAdmin(ctx, existing.Email, "adminpass1", "admin"); err != nil {
		t.Fatalf("EnsureAdmin() error: %v", err)
	}

	s, err := db.GetStudentByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() error: %v", err)
	}
	if s.IsAdmin {
		t.Error("existing account was promoted")
	}
	if _, err := svc.Authenticate(ctx, existing.Email, "adminpass1"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("admin password should not work on the existing account, got %v", err)
	}
}
