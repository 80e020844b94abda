package models

import (
	"strings"
	"time"
)

// User roles.
const (
	RoleStudent = "Student"
	RoleFaculty = "Faculty"
	RoleAdmin   = "Admin"
)

// User is a student, faculty member, or admin profile. Credentials are managed elsewhere.
type User struct {
	ID       string `json:"id" yaml:"id,omitempty"`
	Email    string `json:"email" yaml:"email"`
	FullName string `json:"fullName" yaml:"full_name"`
	Role     string `json:"role" yaml:"role"`

	University     string   `json:"university,omitempty" yaml:"university,omitempty"`
	Degree         string   `json:"degree,omitempty" yaml:"degree,omitempty"`
	GraduationYear int      `json:"graduationYear,omitempty" yaml:"graduation_year,omitempty"`
	Interests      []string `json:"interests" yaml:"interests,omitempty"`

	Department        string `json:"department,omitempty" yaml:"department,omitempty"`
	Specialization    string `json:"specialization,omitempty" yaml:"specialization,omitempty"`
	YearsOfExperience int    `json:"yearsOfExperience,omitempty" yaml:"years_of_experience,omitempty"`

	Bookmarks []string  `json:"bookmarks" yaml:"bookmarks,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// InterestText joins the user's interests with TextSeparator. An empty list yields "".
func (u *User) InterestText() string {
	return strings.Join(u.Interests, TextSeparator)
}

// NormalizeRole maps case-insensitive role names ("student", "FACULTY") to the canonical form.
// Unknown roles are returned unchanged.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "student":
		return RoleStudent
	case "faculty":
		return RoleFaculty
	case "admin":
		return RoleAdmin
	}
	return role
}

// UserInput is the body of a create-user request.
type UserInput struct {
	ID                string   `json:"id,omitempty" yaml:"id,omitempty"`
	Email             string   `json:"email" yaml:"email"`
	FullName          string   `json:"fullName" yaml:"full_name"`
	Role              string   `json:"role" yaml:"role"`
	University        string   `json:"university,omitempty" yaml:"university,omitempty"`
	Degree            string   `json:"degree,omitempty" yaml:"degree,omitempty"`
	GraduationYear    int      `json:"graduationYear,omitempty" yaml:"graduation_year,omitempty"`
	Interests         []string `json:"interests,omitempty" yaml:"interests,omitempty"`
	Department        string   `json:"department,omitempty" yaml:"department,omitempty"`
	Specialization    string   `json:"specialization,omitempty" yaml:"specialization,omitempty"`
	YearsOfExperience int      `json:"yearsOfExperience,omitempty" yaml:"years_of_experience,omitempty"`
}
