// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// ONE *DB, MANY INTERFACES:
// A single DB value satisfies StudentRepository, PostRepository, FollowRepository,
// CollectionRepository, SettingsRepository, NotificationRepository and SessionStore.
// Method names carry the entity (CreatePost, CreateStudent) so they never collide.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no C compiler, no CGo, cross-compiles
// everywhere Go does.
//
// CONNECTION SETTINGS:
// PRAGMAs apply per connection, and every ":memory:" connection is its own empty
// database. Both problems go away by passing the pragmas in the DSN (applied to
// every new connection) and capping the pool at a single connection. SQLite
// serialises writers anyway, so one connection costs little for this workload.
//
// The consequence: never run a second query while iterating *sql.Rows, and never
// touch db.conn while a transaction is open. Either would wait forever for the
// only connection.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Importing the driver package registers "sqlite" with database/sql in its
	// init(). We also use its Error type to classify constraint failures.
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// dsnParams are appended to every path handed to New.
//
//   - foreign_keys(1): SQLite ships with FK enforcement off; cascades need it on.
//   - busy_timeout(5000): wait for a lock instead of failing with SQLITE_BUSY.
//   - _time_format=sqlite: store time.Time as "YYYY-MM-DD HH:MM:SS.SSS+00:00",
//     which SQLite's own date functions (strftime) understand.
const dsnParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/birddropper.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", withParams(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight. In-memory databases
	// silently keep their "memory" journal, which is fine.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func withParams(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + dsnParams
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates every table. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it runs on every start-up.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"students", `
			CREATE TABLE IF NOT EXISTS students (
				id                    TEXT PRIMARY KEY,
				first_name            TEXT NOT NULL,
				last_name             TEXT NOT NULL,
				email                 TEXT NOT NULL UNIQUE,
				username              TEXT NOT NULL UNIQUE COLLATE NOCASE,
				password_hash         TEXT NOT NULL,
				bio                   TEXT NOT NULL DEFAULT '',
				profile_image_url     TEXT NOT NULL DEFAULT '',
				profile_image_key     TEXT NOT NULL DEFAULT '',
				timezone              TEXT NOT NULL DEFAULT 'UTC',
				notifications_enabled INTEGER NOT NULL DEFAULT 1,
				is_admin              INTEGER NOT NULL DEFAULT 0,
				github_id             INTEGER UNIQUE,
				created_at            DATETIME NOT NULL
			);
		`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id         TEXT PRIMARY KEY,
				student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				image_url  TEXT NOT NULL,
				image_key  TEXT NOT NULL,
				caption    TEXT NOT NULL DEFAULT '',
				location   TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_posts_student_id ON posts(student_id);
			CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		`},
		{"likes", `
			CREATE TABLE IF NOT EXISTS likes (
				post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (post_id, student_id)
			);
		`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				body       TEXT NOT NULL,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				follower_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				followee_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				created_at  DATETIME NOT NULL,
				PRIMARY KEY (follower_id, followee_id),
				CHECK (follower_id <> followee_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_id);
		`},
		{"collections", `
			CREATE TABLE IF NOT EXISTS collections (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				image_url   TEXT NOT NULL,
				image_key   TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at  DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_collections_user_id ON collections(user_id);
		`},
		{"collection_likes", `
			CREATE TABLE IF NOT EXISTS collection_likes (
				collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
				student_id    TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
				created_at    DATETIME NOT NULL,
				PRIMARY KEY (collection_id, student_id)
			);
		`},
		// The CHECK pins the table to one row; the seed is a no-op after the first run.
		{"website_settings", `
			CREATE TABLE IF NOT EXISTS website_settings (
				id         INTEGER PRIMARY KEY CHECK (id = 1),
				theme      TEXT NOT NULL,
				language   TEXT NOT NULL,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			INSERT INTO website_settings (id, theme, language) VALUES (1, 'light', 'en')
				ON CONFLICT (id) DO NOTHING;
		`},
		{"sessions", `
			CREATE TABLE IF NOT EXISTS sessions (
				id         TEXT PRIMARY KEY,
				data       TEXT NOT NULL,
				expires_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
		`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the given "table.column". An empty column matches any UNIQUE failure.
func isUniqueViolation(err error, column string) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	msg := se.Error()
	if !strings.Contains(msg, "UNIQUE") {
		return false
	}
	return column == "" || strings.Contains(msg, column)
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY constraint failure.
func isForeignKeyViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY")
}

// expectOneRow turns "zero rows affected" into a NotFound error.
func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
