package ledgerstore

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS expenses (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		payer_id BIGINT NOT NULL,
		amount DECIMAL(14,2) NOT NULL,
		expense_date DATE NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		reference VARCHAR(64) NOT NULL DEFAULT '',
		settled BOOLEAN NOT NULL DEFAULT FALSE,
		modified DATETIME(6) NOT NULL,
		INDEX idx_expenses_payer_date (payer_id, expense_date),
		INDEX idx_expenses_date (expense_date)
	)`,
	`CREATE TABLE IF NOT EXISTS expense_beneficiaries (
		expense_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		position INT NOT NULL,
		PRIMARY KEY (expense_id, user_id),
		INDEX idx_beneficiaries_user (user_id),
		CONSTRAINT fk_beneficiaries_expense FOREIGN KEY (expense_id) REFERENCES expenses (id) ON DELETE CASCADE
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS expenses (
		id BIGSERIAL PRIMARY KEY,
		payer_id BIGINT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		expense_date DATE NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		reference VARCHAR(64) NOT NULL DEFAULT '',
		settled BOOLEAN NOT NULL DEFAULT FALSE,
		modified TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_payer_date ON expenses (payer_id, expense_date)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses (expense_date)`,
	`CREATE TABLE IF NOT EXISTS expense_beneficiaries (
		expense_id BIGINT NOT NULL REFERENCES expenses (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL,
		position INT NOT NULL,
		PRIMARY KEY (expense_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_beneficiaries_user ON expense_beneficiaries (user_id)`,
}

// Migrate creates the ledger tables when they do not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := mysqlSchema
	if s.dialect == Postgres {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s ledger schema: %w", s.dialect, err)
		}
	}
	return nil
}
