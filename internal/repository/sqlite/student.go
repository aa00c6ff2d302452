package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *DB implements repository.StudentRepository
var _ repository.StudentRepository = (*DB)(nil)

const studentColumns = `id, first_name, last_name, email, username, password_hash, bio,
	profile_image_url, profile_image_key, timezone, notifications_enabled, is_admin,
	github_id, created_at`

// scanner is the common subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (*model.Student, error) {
	var (
		s        model.Student
		githubID sql.NullInt64
	)
	err := row.Scan(
		&s.ID,
		&s.FirstName,
		&s.LastName,
		&s.Email,
		&s.Username,
		&s.PasswordHash,
		&s.Bio,
		&s.ProfileImageURL,
		&s.ProfileImageKey,
		&s.Timezone,
		&s.NotificationsEnabled,
		&s.IsAdmin,
		&githubID,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		s.GitHubID = &id
	}
	return &s, nil
}

// CreateStudent inserts a new account. The ID and CreatedAt are set in place.
//
// UNIQUENESS IS THE DATABASE'S JOB:
// We do not look the email up first. Two concurrent registrations would both
// pass such a check. Instead the UNIQUE constraint decides, and its failure
// is translated into a Duplicate error naming the offending field.
func (db *DB) CreateStudent(ctx context.Context, s *model.Student) error {
	s.ID = xid.New().String()
	s.CreatedAt = db.now()
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}

	var githubID sql.NullInt64
	if s.GitHubID != nil {
		githubID = sql.NullInt64{Int64: *s.GitHubID, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO students (`+studentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.FirstName,
		s.LastName,
		s.Email,
		s.Username,
		s.PasswordHash,
		s.Bio,
		s.ProfileImageURL,
		s.ProfileImageKey,
		s.Timezone,
		s.NotificationsEnabled,
		s.IsAdmin,
		githubID,
		s.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, "students.email"):
			return apperror.Duplicate("email", "Email already in use.")
		case isUniqueViolation(err, "students.username"):
			return apperror.Duplicate("username", "Username already taken.")
		case isUniqueViolation(err, "students.github_id"):
			return apperror.Duplicate("github_id", "GitHub account already linked.")
		}
		return fmt.Errorf("sqlite: creating student: %w", err)
	}
	return nil
}

// GetStudentByID retrieves an account by its ID.
func (db *DB) GetStudentByID(ctx context.Context, id string) (*model.Student, error) {
	s, err := scanStudent(db.conn.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting student %s: %w", id, err)
	}
	return s, nil
}

// GetStudentByEmail looks an account up by email, ignoring case.
func (db *DB) GetStudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s, err := scanStudent(db.conn.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting student by email: %w", err)
	}
	return s, nil
}

// GetStudentByGitHubID looks up the account linked to a GitHub user.
func (db *DB) GetStudentByGitHubID(ctx context.Context, githubID int64) (*model.Student, error) {
	s, err := scanStudent(db.conn.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE github_id = ?`, githubID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("github:%d", githubID))
		}
		return nil, fmt.Errorf("sqlite: getting student by github id %d: %w", githubID, err)
	}
	return s, nil
}

// LinkGitHub attaches a GitHub account to an existing student.
func (db *DB) LinkGitHub(ctx context.Context, studentID string, githubID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE students SET github_id = ? WHERE id = ?`, githubID, studentID)
	if err != nil {
		if isUniqueViolation(err, "students.github_id") {
			return apperror.Duplicate("github_id", "GitHub account already linked.")
		}
		return fmt.Errorf("sqlite: linking github for %s: %w", studentID, err)
	}
	return expectOneRow(res, apperror.NotFound("user", studentID))
}

// UpdateBio replaces the bio and nothing else.
func (db *DB) UpdateBio(ctx context.Context, studentID, bio string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE students SET bio = ? WHERE id = ?`, bio, studentID)
	if err != nil {
		return fmt.Errorf("sqlite: updating bio for %s: %w", studentID, err)
	}
	return expectOneRow(res, apperror.NotFound("user", studentID))
}

// UpdateUserSettings sets the per-user timezone and notification flag.
func (db *DB) UpdateUserSettings(ctx context.Context, studentID, timezone string, notifications bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE students SET timezone = ?, notifications_enabled = ? WHERE id = ?`,
		timezone, notifications, studentID)
	if err != nil {
		return fmt.Errorf("sqlite: updating settings for %s: %w", studentID, err)
	}
	return expectOneRow(res, apperror.NotFound("user", studentID))
}

// UpdateProfileImage points the profile image at a new stored object.
func (db *DB) UpdateProfileImage(ctx context.Context, studentID, url, key string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE students SET profile_image_url = ?, profile_image_key = ? WHERE id = ?`,
		url, key, studentID)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile image for %s: %w", studentID, err)
	}
	return expectOneRow(res, apperror.NotFound("user", studentID))
}
