package repository

import (
	"context"
	"errors"

	"studenthub/student-api/internal/model"
)

var (
	ErrNotFound       = errors.New("student not found")
	ErrDuplicateEmail = errors.New("email already taken")
)

// StudentUpdate carries the fields of a full or partial update. Nil fields
// are left untouched.
type StudentUpdate struct {
	Name     *string
	Email    *string
	Phone    *string
	Language *string
}

// Store is the credential store the session manager and the directory
// handlers talk to. Postgres backs it in production; an in-memory
// implementation backs the tests.
type Store interface {
	CreateStudent(ctx context.Context, student model.Student) error
	GetStudentByEmail(ctx context.Context, email string) (model.Student, error)
	GetStudentByID(ctx context.Context, id string) (model.Student, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
	UpdateStudent(ctx context.Context, id string, update StudentUpdate) (model.Student, error)
	DeleteStudent(ctx context.Context, id string) (model.Student, error)
}
