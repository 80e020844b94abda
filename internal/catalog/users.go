package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/storage"
)

// CreateUser stores a new profile. Email, full name and a known role are required;
// emails are unique.
func (s *Service) CreateUser(ctx context.Context, in *models.UserInput) (*models.User, error) {
	if in == nil || strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.FullName) == "" || in.Role == "" {
		return nil, fmt.Errorf("%w: email, fullName and role are required", ErrInvalidInput)
	}
	role := models.NormalizeRole(in.Role)
	switch role {
	case models.RoleStudent, models.RoleFaculty, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("user %s: %w", email, ErrDuplicate)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	user := &models.User{
		ID:                id,
		Email:             email,
		FullName:          strings.TrimSpace(in.FullName),
		Role:              role,
		University:        in.University,
		Degree:            in.Degree,
		GraduationYear:    in.GraduationYear,
		Interests:         cleanInterests(in.Interests),
		Department:        in.Department,
		Specialization:    in.Specialization,
		YearsOfExperience: in.YearsOfExperience,
		Bookmarks:         []string{},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	s.logger.Info("user created", zap.String("id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// cleanInterests trims tags and drops blanks, keeping order.
func cleanInterests(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetUser(ctx, id)
}

// ListUsers returns every profile.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// SetInterests replaces a user's ordered interest tags.
func (s *Service) SetInterests(ctx context.Context, id string, interests []string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Interests = cleanInterests(interests)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update interests: %w", err)
	}
	return user, nil
}

// DeleteUser removes a profile.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("id", id))
	return nil
}

// ToggleBookmark adds certificationID to the user's bookmarks, or removes it when
// already present, and returns the updated list.
func (s *Service) ToggleBookmark(ctx context.Context, userID, certificationID string) ([]string, error) {
	if certificationID == "" {
		return nil, fmt.Errorf("%w: certificationId is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := make([]string, 0, len(user.Bookmarks)+1)
	removed := false
	for _, b := range user.Bookmarks {
		if b == certificationID {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	if !removed {
		kept = append(kept, certificationID)
	}
	user.Bookmarks = kept
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update bookmarks: %w", err)
	}
	return user.Bookmarks, nil
}
