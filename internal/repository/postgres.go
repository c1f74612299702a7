package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"studenthub/student-api/internal/model"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateStudent(ctx context.Context, student model.Student) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, name, email, phone, language, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, student.ID, student.Name, student.Email, student.Phone, student.Language, student.PasswordHash, student.CreatedAt, student.UpdatedAt)
	return translateError(err)
}

func (s *PostgresStore) GetStudentByEmail(ctx context.Context, email string) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, language, password_hash, created_at, updated_at
		FROM students
		WHERE email = $1
	`, email)
	return scanStudent(row)
}

func (s *PostgresStore) GetStudentByID(ctx context.Context, id string) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, language, password_hash, created_at, updated_at
		FROM students
		WHERE id = $1
	`, id)
	return scanStudent(row)
}

func (s *PostgresStore) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, phone, language, password_hash, created_at, updated_at
		FROM students
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := make([]model.Student, 0)
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *PostgresStore) UpdateStudent(ctx context.Context, id string, update StudentUpdate) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE students
		SET name = COALESCE($1, name),
		    email = COALESCE($2, email),
		    phone = COALESCE($3, phone),
		    language = COALESCE($4, language),
		    updated_at = $5
		WHERE id = $6
		RETURNING id, name, email, phone, language, password_hash, created_at, updated_at
	`, update.Name, update.Email, update.Phone, update.Language, time.Now().UTC(), id)
	return scanStudent(row)
}

func (s *PostgresStore) DeleteStudent(ctx context.Context, id string) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM students
		WHERE id = $1
		RETURNING id, name, email, phone, language, password_hash, created_at, updated_at
	`, id)
	return scanStudent(row)
}

func scanStudent(row pgx.Row) (model.Student, error) {
	var student model.Student
	err := row.Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&student.Phone,
		&student.Language,
		&student.PasswordHash,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	if err != nil {
		return model.Student{}, translateError(err)
	}
	return student, nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
