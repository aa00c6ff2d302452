package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// Account field rules.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 8
	MaxNameLength     = 50
)

// usernamePattern allows letters, digits, underscores and dots.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// errInvalidCredentials is the single answer to every failed login, whatever
// the cause, so the response does not reveal which emails are registered.
var errInvalidCredentials = apperror.Unauthorized("Invalid email or password")

// AuthService registers and authenticates students.
//
// DEPENDENCIES:
//   - students  repository.StudentRepository → read/write accounts
//   - passwords *auth.PasswordService        → bcrypt hashing
//
// Sessions are NOT created here. The handler receives the *model.Student and
// hands it to auth.SessionManager, which owns cookies.
type AuthService struct {
	students  repository.StudentRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(students repository.StudentRepository, passwords *auth.PasswordService, logger *slog.Logger) *AuthService {
	return &AuthService{
		students:  students,
		passwords: passwords,
		logger:    logger,
	}
}

// Registration is the sign-up form.
type Registration struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// validate normalises the form in place and returns the first problem found.
func (r *Registration) validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)

	if r.FirstName == "" || r.LastName == "" || r.Email == "" ||
		r.Username == "" || r.Password == "" || r.ConfirmPassword == "" {
		return apperror.ValidationFailed("", "All fields are required")
	}
	if tooLong(r.FirstName, MaxNameLength) || tooLong(r.LastName, MaxNameLength) {
		return apperror.ValidationFailed("first_name",
			fmt.Sprintf("Names must be %d characters or less", MaxNameLength))
	}
	if !strings.Contains(r.Email, "@") {
		return apperror.ValidationFailed("email", "Please enter a valid email address")
	}
	if len(r.Username) < MinUsernameLength || len(r.Username) > MaxUsernameLength ||
		!usernamePattern.MatchString(r.Username) {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be %d-%d characters: letters, numbers, underscores or dots",
				MinUsernameLength, MaxUsernameLength))
	}
	if len(r.Password) < MinPasswordLength || len(r.Password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be between %d and %d characters", MinPasswordLength, auth.MaxPasswordBytes))
	}
	if r.Password != r.ConfirmPassword {
		return apperror.ValidationFailed("confirm_password", "Passwords do not match")
	}
	return nil
}

// Register validates the form and creates the account.
//
// Duplicate email or username comes back from the repository as an
// apperror.ErrConflict carrying the user-facing message.
func (s *AuthService) Register(ctx context.Context, reg Registration) (*model.Student, error) {
	if err := reg.validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}

	student := &model.Student{
		FirstName:            reg.FirstName,
		LastName:             reg.LastName,
		Email:                reg.Email,
		Username:             reg.Username,
		PasswordHash:         hash,
		NotificationsEnabled: true,
	}
	if err := s.students.CreateStudent(ctx, student); err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}

	s.logger.Info("student registered",
		slog.String("id", student.ID),
		slog.String("username", student.Username),
	)
	return student, nil
}

// Authenticate checks an email/password pair.
//
// TIMING:
// When the email is unknown we still run a bcrypt comparison (VerifyDummy),
// so both failure paths cost one bcrypt round and look identical.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.Student, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Email and password are required")
	}

	student, err := s.students.GetStudentByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	if err := s.passwords.Verify(student.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			// Not a mismatch: the stored hash is unusable (GitHub-only account).
			s.logger.Warn("password login on account without usable hash",
				slog.String("id", student.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, errInvalidCredentials
	}
	return student, nil
}

// GetStudent returns the current database row for id.
func (s *AuthService) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.students.GetStudentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting student %s: %w", id, err)
	}
	return student, nil
}

// LoginGitHub maps a GitHub identity onto a student.
//
// LOOKUP ORDER:
//  1. An account already linked to this GitHub id.
//  2. An account with the same (verified) email: link it and log in.
//  3. Otherwise create a new account with no usable password.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.Student, error) {
	if gh == nil {
		return nil, errors.New("github login: GitHub user must not be nil")
	}

	student, err := s.students.GetStudentByGitHubID(ctx, gh.ID)
	if err == nil {
		return student, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("github login: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(gh.Email))
	if email != "" {
		student, err := s.students.GetStudentByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.students.LinkGitHub(ctx, student.ID, gh.ID); err != nil {
				return nil, fmt.Errorf("github login: linking %s: %w", student.ID, err)
			}
			student.GitHubID = &gh.ID
			s.logger.Info("github account linked",
				slog.String("id", student.ID),
				slog.Int64("github_id", gh.ID),
			)
			return student, nil
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("github login: %w", err)
		}
	} else {
		email = strconv.FormatInt(gh.ID, 10) + "+" + strings.ToLower(gh.Login) + "@users.noreply.github.com"
	}

	return s.createGitHubStudent(ctx, gh, email)
}

func (s *AuthService) createGitHubStudent(ctx context.Context, gh *auth.GitHubUser, email string) (*model.Student, error) {
	first, last := splitName(gh.Name, gh.Login)
	id := gh.ID
	// The password hash is not bcrypt, so no password ever matches it.
	student := &model.Student{
		FirstName:            first,
		LastName:             last,
		Email:                email,
		Username:             githubUsername(gh.Login),
		PasswordHash:         "!github:" + xid.New().String(),
		ProfileImageURL:      gh.AvatarURL,
		NotificationsEnabled: true,
		GitHubID:             &id,
	}

	err := s.students.CreateStudent(ctx, student)
	if err != nil && isConflictOn(err, "username") {
		// The login is taken by a local account; disambiguate with the GitHub id.
		student.Username = fmt.Sprintf("%s_%d", student.Username, gh.ID)
		if len(student.Username) > MaxUsernameLength {
			student.Username = "gh_" + strconv.FormatInt(gh.ID, 10)
		}
		err = s.students.CreateStudent(ctx, student)
	}
	if err != nil {
		return nil, fmt.Errorf("github login: creating student: %w", err)
	}

	s.logger.Info("student registered via GitHub",
		slog.String("id", student.ID),
		slog.String("username", student.Username),
	)
	return student, nil
}

// EnsureAdmin creates the administrator account at start-up unless an account
// with that email already exists. It never promotes or modifies an existing
// account.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, username string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	_, err := s.students.GetStudentByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("ensuring admin: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("ensuring admin: %w", err)
	}
	admin := &model.Student{
		FirstName:            "Site",
		LastName:             "Admin",
		Email:                email,
		Username:             username,
		PasswordHash:         hash,
		NotificationsEnabled: true,
		IsAdmin:              true,
	}
	if err := s.students.CreateStudent(ctx, admin); err != nil {
		return fmt.Errorf("ensuring admin: %w", err)
	}
	s.logger.Info("admin account created", slog.String("email", email))
	return nil
}

// splitName turns GitHub's free-form display name into first/last names.
func splitName(name, fallback string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return fallback, "-"
	case 1:
		return fields[0], "-"
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// githubUsername maps a GitHub login onto our username alphabet.
// GitHub allows hyphens, we do not.
func githubUsername(login string) string {
	u := strings.ReplaceAll(login, "-", "_")
	if len(u) > MaxUsernameLength {
		u = u[:MaxUsernameLength]
	}
	for len(u) < MinUsernameLength {
		u += "_"
	}
	return u
}

// isConflictOn reports whether err is a uniqueness failure on field.
func isConflictOn(err error, field string) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) && appErr.Field == field
}
