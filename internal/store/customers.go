package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmtools/customer-import/internal/customer"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit.
const uniqueViolation = "23505"

// CustomerStore persists customer records. A duplicate email is reported
// as customer.ErrDuplicateEmail so callers can treat it as an expected
// outcome rather than a storage failure.
type CustomerStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewCustomerStore(pool *pgxpool.Pool, log *slog.Logger) *CustomerStore {
	return &CustomerStore{pool: pool, log: log}
}

// Create inserts one normalized record. Exactly one persistence attempt is
// made per call; retry policy belongs to the caller.
func (s *CustomerStore) Create(ctx context.Context, rec customer.Record) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (id, full_name, email, date_of_birth, timezone)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, rec.FullName, rec.Email, rec.DateOfBirth, rec.Timezone,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, customer.ErrDuplicateEmail
		}
		s.log.Error("customer insert failed", "email", rec.Email, "error", err)
		return uuid.Nil, fmt.Errorf("insert customer: %w", err)
	}
	return id, nil
}

// List returns a page of customers ordered newest first, plus the total
// row count for pagination.
func (s *CustomerStore) List(ctx context.Context, limit, offset int) ([]customer.Customer, int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, full_name, email, date_of_birth, timezone, created_at, updated_at
		 FROM customers
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]customer.Customer, 0, limit)
	for rows.Next() {
		var c customer.Customer
		if err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.DateOfBirth, &c.Timezone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	return customers, total, nil
}

// Get fetches one customer by id.
func (s *CustomerStore) Get(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	var c customer.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT id, full_name, email, date_of_birth, timezone, created_at, updated_at
		 FROM customers WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.FullName, &c.Email, &c.DateOfBirth, &c.Timezone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// Update replaces every field of an existing customer.
func (s *CustomerStore) Update(ctx context.Context, id uuid.UUID, rec customer.Record) (*customer.Customer, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE customers
		 SET full_name = $2, email = $3, date_of_birth = $4, timezone = $5, updated_at = now()
		 WHERE id = $1`,
		id, rec.FullName, rec.Email, rec.DateOfBirth, rec.Timezone,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, customer.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, customer.ErrNotFound
	}
	return s.Get(ctx, id)
}

// Patch applies a partial update; nil fields are left untouched.
func (s *CustomerStore) Patch(ctx context.Context, id uuid.UUID, p customer.Patch) (*customer.Customer, error) {
	sets := make([]string, 0, 4)
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.FullName != nil {
		add("full_name", *p.FullName)
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.DateOfBirth != nil {
		add("date_of_birth", *p.DateOfBirth)
	}
	if p.Timezone != nil {
		add("timezone", *p.Timezone)
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, customer.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("patch customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, customer.ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes one customer by id.
func (s *CustomerStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
