package directory

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/repositories/ledgerstore"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// limitRowID pins the singleton spending limit to one primary key so the
// database itself refuses a second row.
const limitRowID = 1

// SQL reads users and groups from the tables owned by the account service
// and keeps the spending limit in spending_limits.
type SQL struct {
	db      *sql.DB
	dialect ledgerstore.Dialect
}

func NewSQL(db *sql.DB, dialect ledgerstore.Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

func (s *SQL) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)"), id).Scan(&exists)
	return exists, err
}

func (s *SQL) ResolveUserByEmail(ctx context.Context, email string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind("SELECT id FROM users WHERE LOWER(email) = ?"), strings.ToLower(strings.TrimSpace(email))).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Contact returns the address reminders are sent to.
func (s *SQL) Contact(ctx context.Context, id int64) (models.User, bool, error) {
	u := models.User{ID: id}
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind("SELECT COALESCE(email, ''), COALESCE(first_name, '') FROM users WHERE id = ?"), id).Scan(&u.Email, &u.FirstName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	return u, true, nil
}

func (s *SQL) GroupMembers(ctx context.Context, groupID int64) ([]int64, bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind("SELECT EXISTS(SELECT 1 FROM groups WHERE id = ?)"), groupID).Scan(&exists); err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind("SELECT group_id, user_id FROM group_members WHERE group_id = ? ORDER BY user_id"), groupID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	members := make([]int64, 0)
	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.GroupID, &m.UserID); err != nil {
			return nil, false, err
		}
		members = append(members, m.UserID)
	}
	return members, true, rows.Err()
}

func (s *SQL) GetLimit(ctx context.Context) (decimal.Decimal, bool, error) {
	var limit models.SpendingLimit
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind("SELECT id, amount, updated_at FROM spending_limits WHERE id = ?"), limitRowID).
		Scan(&limit.ID, &limit.Amount, &limit.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return limit.Amount, true, nil
}

func (s *SQL) CreateLimit(ctx context.Context, amount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind("INSERT INTO spending_limits (id, amount, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)"), limitRowID, amount)
	if isDuplicateKey(err) {
		return ErrLimitExists
	}
	return err
}

func (s *SQL) UpsertLimit(ctx context.Context, amount decimal.Decimal) error {
	q := "INSERT INTO spending_limits (id, amount, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON DUPLICATE KEY UPDATE amount = VALUES(amount), updated_at = CURRENT_TIMESTAMP"
	if s.dialect == ledgerstore.Postgres {
		q = "INSERT INTO spending_limits (id, amount, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT (id) DO UPDATE SET amount = EXCLUDED.amount, updated_at = CURRENT_TIMESTAMP"
	}
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(q), limitRowID, amount)
	return err
}

func (s *SQL) DeleteLimit(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind("DELETE FROM spending_limits WHERE id = ?"), limitRowID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLimitNotFound
	}
	return nil
}

// Migrate creates spending_limits. users and groups belong to other services.
func (s *SQL) Migrate(ctx context.Context) error {
	q := "CREATE TABLE IF NOT EXISTS spending_limits (id INT PRIMARY KEY, amount DECIMAL(14,2) NOT NULL, updated_at DATETIME NOT NULL)"
	if s.dialect == ledgerstore.Postgres {
		q = "CREATE TABLE IF NOT EXISTS spending_limits (id INT PRIMARY KEY, amount NUMERIC(14,2) NOT NULL, updated_at TIMESTAMPTZ NOT NULL)"
	}
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
