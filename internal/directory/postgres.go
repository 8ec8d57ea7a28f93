package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"loan-assistant/internal/models"
)

const customersSchema = `
CREATE TABLE IF NOT EXISTS customers (
	phone              CHAR(10) PRIMARY KEY,
	name               TEXT NOT NULL,
	pre_approved_limit NUMERIC(14,2) NOT NULL,
	credit_score       INTEGER NOT NULL,
	salary             NUMERIC(14,2) NOT NULL DEFAULT 0,
	email              TEXT NOT NULL DEFAULT '',
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresDirectory reads customers from the customers table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// EnsureSchema creates the customers table when it is missing.
func (p *PostgresDirectory) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, customersSchema); err != nil {
		return fmt.Errorf("create customers table: %w", err)
	}
	return nil
}

func (p *PostgresDirectory) Lookup(ctx context.Context, phone string) (*models.Customer, error) {
	var c models.Customer
	err := p.db.QueryRowContext(ctx, `
		SELECT name, phone, pre_approved_limit, credit_score, salary, email
		FROM customers
		WHERE phone = $1`, phone,
	).Scan(&c.Name, &c.Phone, &c.PreApprovedLimit, &c.CreditScore, &c.Salary, &c.Email)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

// Upsert inserts or refreshes a record.
func (p *PostgresDirectory) Upsert(ctx context.Context, c models.Customer) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO customers (phone, name, pre_approved_limit, credit_score, salary, email, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (phone) DO UPDATE SET
			name = EXCLUDED.name,
			pre_approved_limit = EXCLUDED.pre_approved_limit,
			credit_score = EXCLUDED.credit_score,
			salary = EXCLUDED.salary,
			email = EXCLUDED.email,
			updated_at = now()`,
		c.Phone, c.Name, c.PreApprovedLimit, c.CreditScore, c.Salary, c.Email,
	)
	if err != nil {
		return fmt.Errorf("upsert customer %s: %w", c.Phone, err)
	}
	return nil
}
