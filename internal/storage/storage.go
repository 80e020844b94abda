// Package storage defines persistence for certifications and user profiles.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/certiquest/internal/models"
)

// ErrNotFound is returned when a record with the requested ID does not exist.
var ErrNotFound = errors.New("not found")

// CertificationStore persists the certification catalog.
type CertificationStore interface {
	CreateCertification(ctx context.Context, cert *models.Certification) error
	GetCertification(ctx context.Context, id string) (*models.Certification, error)
	UpdateCertification(ctx context.Context, cert *models.Certification) error
	DeleteCertification(ctx context.Context, id string) error
	// ListCertifications returns the whole catalog in creation order, ties broken by ID.
	ListCertifications(ctx context.Context) ([]*models.Certification, error)
	FindCertificationByTitleProvider(ctx context.Context, title, provider string) (*models.Certification, error)
	CountCertifications(ctx context.Context) (int64, error)
}

// UserStore persists user profiles.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Storage combines both stores behind one connection.
type Storage interface {
	CertificationStore
	UserStore
	Close() error
}
