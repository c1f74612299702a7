package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"studenthub/student-api/internal/model"
)

// MemoryStore keeps student records in process memory. It honors the same
// contract as the Postgres store, including email uniqueness, and exists
// so the test suite runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]model.Student
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{students: make(map[string]model.Student)}
}

func (s *MemoryStore) CreateStudent(_ context.Context, student model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.students {
		if strings.EqualFold(existing.Email, student.Email) {
			return ErrDuplicateEmail
		}
	}
	s.students[student.ID] = student
	return nil
}

func (s *MemoryStore) GetStudentByEmail(_ context.Context, email string) (model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, student := range s.students {
		if strings.EqualFold(student.Email, email) {
			return student, nil
		}
	}
	return model.Student{}, ErrNotFound
}

func (s *MemoryStore) GetStudentByID(_ context.Context, id string) (model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	return student, nil
}

func (s *MemoryStore) ListStudents(_ context.Context) ([]model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make([]model.Student, 0, len(s.students))
	for _, student := range s.students {
		students = append(students, student)
	}
	sort.Slice(students, func(i, j int) bool {
		return students[i].CreatedAt.Before(students[j].CreatedAt)
	})
	return students, nil
}

func (s *MemoryStore) UpdateStudent(_ context.Context, id string, update StudentUpdate) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	if update.Email != nil && !strings.EqualFold(*update.Email, student.Email) {
		for _, existing := range s.students {
			if strings.EqualFold(existing.Email, *update.Email) {
				return model.Student{}, ErrDuplicateEmail
			}
		}
		student.Email = *update.Email
	}
	if update.Name != nil {
		student.Name = *update.Name
	}
	if update.Phone != nil {
		student.Phone = *update.Phone
	}
	if update.Language != nil {
		student.Language = *update.Language
	}
	student.UpdatedAt = time.Now().UTC()
	s.students[id] = student
	return student, nil
}

func (s *MemoryStore) DeleteStudent(_ context.Context, id string) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	delete(s.students, id)
	return student, nil
}
