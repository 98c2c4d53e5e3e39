package ledgerstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"qiyana_splitledger/internal/models"
)

// Dialect captures the differences between the MySQL and Postgres drivers
// the store runs on.
type Dialect int

const (
	MySQL Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "mysql"
}

// Rebind rewrites ? placeholders into $n for Postgres.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const selectExpenses = `
	SELECT e.id, e.payer_id, e.amount, e.expense_date, e.description, e.reference, e.settled, e.modified
	FROM expenses e`

const beneficiaryExists = `EXISTS (SELECT 1 FROM expense_beneficiaries b WHERE b.expense_id = e.id AND b.user_id = ?)`

// whereClause renders the filter as the WHERE clause of selectExpenses.
// The settled column is a historical marker and is never filtered on.
func whereClause(f Filter) (string, []any) {
	switch f.kind {
	case filterPayerOnDate:
		return " WHERE e.payer_id = ? AND e.expense_date = ?", []any{f.userA, f.date}
	case filterParticipant:
		return " WHERE e.payer_id = ? OR " + beneficiaryExists, []any{f.userA, f.userA}
	case filterUpToDate:
		return " WHERE e.expense_date <= ?", []any{f.date}
	case filterPayerAndBeneficiary:
		return " WHERE e.payer_id = ? AND " + beneficiaryExists, []any{f.userA, f.userB}
	default:
		return "", nil
	}
}

func buildQuery(d Dialect, f Filter, forUpdate bool) (string, []any) {
	where, args := whereClause(f)
	q := selectExpenses + where + " ORDER BY e.id"
	if forUpdate {
		q += " FOR UPDATE"
	}
	return d.Rebind(q), args
}

// execer is the subset of *sql.DB and *sql.Tx the store needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

func (s *SQLStore) QueryUnsettled(ctx context.Context, f Filter) ([]models.Expense, error) {
	return queryExpenses(ctx, s.db, s.dialect, f, false)
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, now: s.now}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
	now     func() time.Time
}

func (t *sqlTx) QueryUnsettled(ctx context.Context, f Filter) ([]models.Expense, error) {
	return queryExpenses(ctx, t.tx, t.dialect, f, true)
}

func (t *sqlTx) Insert(ctx context.Context, e models.Expense) (int64, error) {
	modified := t.now().UTC().Truncate(time.Microsecond)
	insert := `INSERT INTO expenses (payer_id, amount, expense_date, description, reference, settled, modified) VALUES (?, ?, ?, ?, ?, ?, ?)`
	args := []any{e.PayerID, e.Amount, models.Day(e.Date), e.Description, e.Reference, e.Settled, modified}

	var id int64
	if t.dialect == Postgres {
		if err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(insert+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
	} else {
		res, err := t.tx.ExecContext(ctx, insert, args...)
		if err != nil {
			return 0, err
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	}

	stmt, err := t.tx.PrepareContext(ctx, t.dialect.Rebind(`INSERT INTO expense_beneficiaries (expense_id, user_id, position) VALUES (?, ?, ?)`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for pos, userID := range e.Beneficiaries {
		if _, err := stmt.ExecContext(ctx, id, userID, pos); err != nil {
			return 0, fmt.Errorf("insert beneficiary %d: %w", userID, err)
		}
	}
	return id, nil
}

// DeleteByID removes the expense only if it still carries the Modified
// stamp it was read with. Beneficiary rows go with it via ON DELETE CASCADE.
func (t *sqlTx) DeleteByID(ctx context.Context, id int64, modified time.Time) error {
	res, err := t.tx.ExecContext(ctx, t.dialect.Rebind(`DELETE FROM expenses WHERE id = ? AND modified = ?`), id, modified.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func queryExpenses(ctx context.Context, db execer, d Dialect, f Filter, forUpdate bool) ([]models.Expense, error) {
	q, args := buildQuery(d, f, forUpdate)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]models.Expense, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.PayerID, &e.Amount, &e.Date, &e.Description, &e.Reference, &e.Settled, &e.Modified); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = models.Day(e.Date)
		e.Modified = e.Modified.UTC()
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	bq, bargs := beneficiariesQuery(d, expenses)
	brows, err := db.QueryContext(ctx, bq, bargs...)
	if err != nil {
		return nil, err
	}
	defer brows.Close()

	for brows.Next() {
		var expenseID, userID int64
		if err := brows.Scan(&expenseID, &userID); err != nil {
			return nil, fmt.Errorf("scan beneficiary: %w", err)
		}
		if i, ok := index[expenseID]; ok {
			expenses[i].Beneficiaries = append(expenses[i].Beneficiaries, userID)
		}
	}
	return expenses, brows.Err()
}

func beneficiariesQuery(d Dialect, expenses []models.Expense) (string, []any) {
	marks := make([]string, len(expenses))
	args := make([]any, len(expenses))
	for i, e := range expenses {
		marks[i] = "?"
		args[i] = e.ID
	}
	q := `SELECT expense_id, user_id FROM expense_beneficiaries WHERE expense_id IN (` +
		strings.Join(marks, ", ") + `) ORDER BY expense_id, position`
	return d.Rebind(q), args
}
