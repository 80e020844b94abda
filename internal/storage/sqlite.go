package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/certiquest/internal/models"
)

// SQLiteStorage implements Storage using SQLite. List-valued fields
// (reviews, interests, bookmarks) are stored as JSON text columns.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS certifications (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		provider TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		cost REAL NOT NULL DEFAULT 0,
		deadline TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		credibility TEXT NOT NULL DEFAULT 'new',
		faculty_verified INTEGER NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0,
		reviews INTEGER NOT NULL DEFAULT 0,
		review_list TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_certifications_created_at ON certifications(created_at, id);
	CREATE INDEX IF NOT EXISTS idx_certifications_title_provider ON certifications(title, provider);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		university TEXT NOT NULL DEFAULT '',
		degree TEXT NOT NULL DEFAULT '',
		graduation_year INTEGER NOT NULL DEFAULT 0,
		interests TEXT NOT NULL DEFAULT '[]',
		department TEXT NOT NULL DEFAULT '',
		specialization TEXT NOT NULL DEFAULT '',
		years_of_experience INTEGER NOT NULL DEFAULT 0,
		bookmarks TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at, id);
	`
	_, err := db.Exec(schema)
	return err
}

const certColumns = `id, title, provider, link, domain, cost, deadline, description,
	credibility, faculty_verified, rating, reviews, review_list, created_at, updated_at`

const userColumns = `id, email, full_name, role, university, degree, graduation_year, interests,
	department, specialization, years_of_experience, bookmarks, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func marshalList(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func scanCertification(row rowScanner) (*models.Certification, error) {
	var c models.Certification
	var reviewJSON string
	if err := row.Scan(&c.ID, &c.Title, &c.Provider, &c.Link, &c.Domain, &c.Cost, &c.Deadline,
		&c.Description, &c.Credibility, &c.FacultyVerified, &c.Rating, &c.Reviews, &reviewJSON,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if reviewJSON != "" {
		if err := json.Unmarshal([]byte(reviewJSON), &c.ReviewList); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reviews: %w", err)
		}
	}
	return &c, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var interestsJSON, bookmarksJSON string
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.University, &u.Degree,
		&u.GraduationYear, &interestsJSON, &u.Department, &u.Specialization, &u.YearsOfExperience,
		&bookmarksJSON, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if interestsJSON != "" {
		if err := json.Unmarshal([]byte(interestsJSON), &u.Interests); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interests: %w", err)
		}
	}
	if bookmarksJSON != "" {
		if err := json.Unmarshal([]byte(bookmarksJSON), &u.Bookmarks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bookmarks: %w", err)
		}
	}
	return &u, nil
}

// CreateCertification inserts a certification and stamps its timestamps.
func (s *SQLiteStorage) CreateCertification(ctx context.Context, cert *models.Certification) error {
	reviewJSON, err := marshalList(cert.ReviewList)
	if err != nil {
		return fmt.Errorf("failed to marshal reviews: %w", err)
	}
	now := s.now()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO certifications (`+certColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cert.ID, cert.Title, cert.Provider, cert.Link, cert.Domain, cert.Cost, cert.Deadline,
		cert.Description, cert.Credibility, cert.FacultyVerified, cert.Rating, cert.Reviews,
		reviewJSON, cert.CreatedAt, cert.UpdatedAt,
	)
	return err
}

// GetCertification returns a certification by ID.
func (s *SQLiteStorage) GetCertification(ctx context.Context, id string) (*models.Certification, error) {
	cert, err := scanCertification(s.db.QueryRowContext(ctx,
		`SELECT `+certColumns+` FROM certifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("certification %s: %w", id, ErrNotFound)
	}
	return cert, err
}

// FindCertificationByTitleProvider returns the certification with the exact title and provider.
func (s *SQLiteStorage) FindCertificationByTitleProvider(ctx context.Context, title, provider string) (*models.Certification, error) {
	cert, err := scanCertification(s.db.QueryRowContext(ctx,
		`SELECT `+certColumns+` FROM certifications WHERE title = ? AND provider = ?
		 ORDER BY created_at, id LIMIT 1`, title, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("certification %q by %q: %w", title, provider, ErrNotFound)
	}
	return cert, err
}

// UpdateCertification overwrites a certification's mutable fields.
func (s *SQLiteStorage) UpdateCertification(ctx context.Context, cert *models.Certification) error {
	reviewJSON, err := marshalList(cert.ReviewList)
	if err != nil {
		return fmt.Errorf("failed to marshal reviews: %w", err)
	}
	cert.UpdatedAt = s.now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE certifications SET title = ?, provider = ?, link = ?, domain = ?, cost = ?,
		 deadline = ?, description = ?, credibility = ?, faculty_verified = ?, rating = ?,
		 reviews = ?, review_list = ?, updated_at = ?
		 WHERE id = ?`,
		cert.Title, cert.Provider, cert.Link, cert.Domain, cert.Cost, cert.Deadline,
		cert.Description, cert.Credibility, cert.FacultyVerified, cert.Rating, cert.Reviews,
		reviewJSON, cert.UpdatedAt, cert.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("certification %s: %w", cert.ID, ErrNotFound)
	}
	return nil
}

// DeleteCertification removes a certification by ID.
func (s *SQLiteStorage) DeleteCertification(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM certifications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("certification %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListCertifications returns every certification ordered by creation time, then ID.
func (s *SQLiteStorage) ListCertifications(ctx context.Context) ([]*models.Certification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+certColumns+` FROM certifications ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []*models.Certification
	for rows.Next() {
		cert, err := scanCertification(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, rows.Err()
}

// CountCertifications returns the catalog size.
func (s *SQLiteStorage) CountCertifications(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM certifications`).Scan(&count)
	return count, err
}

// CreateUser inserts a user profile.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	interestsJSON, err := marshalList(user.Interests)
	if err != nil {
		return fmt.Errorf("failed to marshal interests: %w", err)
	}
	bookmarksJSON, err := marshalList(user.Bookmarks)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmarks: %w", err)
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FullName, user.Role, user.University, user.Degree,
		user.GraduationYear, interestsJSON, user.Department, user.Specialization,
		user.YearsOfExperience, bookmarksJSON, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// GetUser returns a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, err
}

// GetUserByEmail returns a user by email address.
func (s *SQLiteStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return user, err
}

// UpdateUser overwrites a user's profile fields.
func (s *SQLiteStorage) UpdateUser(ctx context.Context, user *models.User) error {
	interestsJSON, err := marshalList(user.Interests)
	if err != nil {
		return fmt.Errorf("failed to marshal interests: %w", err)
	}
	bookmarksJSON, err := marshalList(user.Bookmarks)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmarks: %w", err)
	}
	user.UpdatedAt = s.now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, full_name = ?, role = ?, university = ?, degree = ?,
		 graduation_year = ?, interests = ?, department = ?, specialization = ?,
		 years_of_experience = ?, bookmarks = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email, user.FullName, user.Role, user.University, user.Degree, user.GraduationYear,
		interestsJSON, user.Department, user.Specialization, user.YearsOfExperience,
		bookmarksJSON, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
	}
	return nil
}

// DeleteUser removes a user by ID.
func (s *SQLiteStorage) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListUsers returns every user ordered by creation time.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CountUsers returns the number of user profiles.
func (s *SQLiteStorage) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
