// Package sqlite provides the SQLite-backed ledger storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
	sqlitemigrate "github.com/louisbranch/papertrade.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/domain"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// timestampLayout matches SQLite's CURRENT_TIMESTAMP default.
const timestampLayout = "2006-01-02 15:04:05"

// dateLayout matches SQLite's CURRENT_DATE default used by the daily tables.
const dateLayout = "2006-01-02"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ledgerView implements storage.Ledger against either the database handle or
// an open transaction.
type ledgerView struct {
	q dbtx
}

// Store persists ledger state in a single SQLite file.
type Store struct {
	sqlDB *sql.DB
	ledgerView
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, ledgerView: ledgerView{q: sqlDB}}, nil
}

// Migrate applies any pending migrations to the database at path and
// returns the names of the scripts it applied, in order.
func Migrate(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	defer sqlDB.Close()

	applied, err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "")
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return applied, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// WithTx runs fn against a transaction-bound ledger view.
func (s *Store) WithTx(ctx context.Context, fn func(storage.Ledger) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("transaction body is required")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&ledgerView{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateUser inserts a user if absent and reports whether the row is new.
func (l *ledgerView) CreateUser(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}
	result, err := l.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO discord_users (user_id) VALUES (?)`, userID)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return affected > 0, nil
}

// AllUsers lists every known user id.
func (l *ledgerView) AllUsers(ctx context.Context) ([]string, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT user_id FROM discord_users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateTransaction appends one CREDIT or DEBIT transaction.
func (l *ledgerView) CreateTransaction(ctx context.Context, insert domain.TransactionInsert) (domain.Transaction, error) {
	if insert.Type != domain.TransactionCredit && insert.Type != domain.TransactionDebit {
		return domain.Transaction{}, fmt.Errorf("invalid transaction type %q", insert.Type)
	}
	result, err := l.q.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount_cents, comment)
		 VALUES (?, ?, ?, ?)`,
		insert.UserID, string(insert.Type), insert.Amount.Cents(), insert.Comment)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Transaction{}, storage.ErrUnknownUser
		}
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return domain.Transaction{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		UserID:    insert.UserID,
		Type:      insert.Type,
		Amount:    insert.Amount,
		Comment:   insert.Comment,
	}, nil
}

// UserBalance sums a user's transactions, debits negative.
func (l *ledgerView) UserBalance(ctx context.Context, userID string) (money.Amount, error) {
	row := l.q.QueryRowContext(ctx,
		`SELECT COALESCE(
		    SUM(CASE WHEN type = 'DEBIT' THEN -amount_cents ELSE amount_cents END),
		    0
		 )
		 FROM transactions
		 WHERE user_id = ?`, userID)
	var cents int64
	if err := row.Scan(&cents); err != nil {
		return 0, fmt.Errorf("get user balance: %w", err)
	}
	return money.FromCents(cents), nil
}

// CreateOrder appends one trade order tied to its funding transaction.
func (l *ledgerView) CreateOrder(ctx context.Context, insert domain.OrderInsert) (domain.Order, error) {
	if insert.Type != domain.OrderBuy && insert.Type != domain.OrderSell {
		return domain.Order{}, fmt.Errorf("invalid order type %q", insert.Type)
	}
	result, err := l.q.ExecContext(ctx,
		`INSERT INTO orders (
		   user_id, transaction_id, type, security_name, security_price_cents, quantity
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		insert.UserID, insert.TransactionID, string(insert.Type),
		insert.SecurityName, insert.SecurityPrice.Cents(), insert.Quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Order{}, fmt.Errorf("create order: %w", storage.ErrUnknownUser)
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	return domain.Order{
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		UserID:        insert.UserID,
		TransactionID: insert.TransactionID,
		Type:          insert.Type,
		SecurityName:  insert.SecurityName,
		SecurityPrice: insert.SecurityPrice,
		Quantity:      insert.Quantity,
	}, nil
}

// OwnedSecurities aggregates net positions with quantity above zero.
func (l *ledgerView) OwnedSecurities(ctx context.Context, userID string) ([]domain.OwnedSecurity, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT *
		 FROM (
		     SELECT
		         security_name,
		         SUM(quantity * (CASE WHEN type = 'BUY' THEN 1 ELSE -1 END)) AS quantity,
		         SUM(security_price_cents * quantity * (CASE WHEN type = 'BUY' THEN 1 ELSE -1 END)) AS total_price_paid
		     FROM orders
		     WHERE user_id = ?
		     GROUP BY security_name
		 )
		 WHERE quantity > 0
		 ORDER BY security_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("get owned securities: %w", err)
	}
	defer rows.Close()

	var owned []domain.OwnedSecurity
	for rows.Next() {
		var security domain.OwnedSecurity
		var paidCents int64
		if err := rows.Scan(&security.Name, &security.Quantity, &paidCents); err != nil {
			return nil, fmt.Errorf("get owned securities: %w", err)
		}
		security.TotalPricePaid = money.FromCents(paidCents)
		owned = append(owned, security)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get owned securities: %w", err)
	}
	return owned, nil
}

// UserSecurityQuantity returns the net held quantity of one security.
func (l *ledgerView) UserSecurityQuantity(ctx context.Context, userID, securityName string) (int64, error) {
	row := l.q.QueryRowContext(ctx,
		`SELECT COALESCE(
		    SUM(quantity * (CASE WHEN type = 'BUY' THEN 1 ELSE -1 END)),
		    0
		 )
		 FROM orders
		 WHERE user_id = ? AND security_name = ?`, userID, securityName)
	var quantity int64
	if err := row.Scan(&quantity); err != nil {
		return 0, fmt.Errorf("get user security quantity: %w", err)
	}
	return quantity, nil
}

// CreateAllowance marks today's allowance grant for a user. A second grant on
// the same calendar day returns storage.ErrAlreadyExists.
func (l *ledgerView) CreateAllowance(ctx context.Context, userID string) error {
	_, err := l.q.ExecContext(ctx,
		`INSERT INTO allowances (user_id) VALUES (?)`, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return storage.ErrUnknownUser
		}
		return fmt.Errorf("create allowance: %w", err)
	}
	return nil
}

// AllowanceEligibleUsers lists users with no allowance in the window.
func (l *ledgerView) AllowanceEligibleUsers(ctx context.Context, windowDays int) ([]string, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("allowance window must be positive")
	}
	modifier := fmt.Sprintf("-%d days", windowDays)
	rows, err := l.q.QueryContext(ctx,
		`SELECT du.user_id
		 FROM discord_users du
		 LEFT JOIN allowances a
		     ON du.user_id = a.user_id
		     AND a.created_at > date('now', ?)
		 WHERE a.user_id IS NULL
		 ORDER BY du.user_id`, modifier)
	if err != nil {
		return nil, fmt.Errorf("list allowance-eligible users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("list allowance-eligible users: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list allowance-eligible users: %w", err)
	}
	return users, nil
}

// CreatePortfolioSnapshot stores today's portfolio valuation as JSON.
func (l *ledgerView) CreatePortfolioSnapshot(ctx context.Context, userID string, entries []domain.PortfolioEntry) error {
	if entries == nil {
		entries = []domain.PortfolioEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode portfolio snapshot: %w", err)
	}
	if _, err := l.q.ExecContext(ctx,
		`INSERT INTO portfolio_snapshots (user_id, data) VALUES (?, ?)`,
		userID, string(data)); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return storage.ErrUnknownUser
		}
		return fmt.Errorf("create portfolio snapshot: %w", err)
	}
	return nil
}

// UserPortfolioSnapshots lists a user's snapshots in ascending date order.
func (l *ledgerView) UserPortfolioSnapshots(ctx context.Context, userID string) ([]domain.PortfolioSnapshot, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT created_at, data
		 FROM portfolio_snapshots
		 WHERE user_id = ?
		 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list portfolio snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.PortfolioSnapshot
	for rows.Next() {
		var createdAt string
		var data string
		if err := rows.Scan(&createdAt, &data); err != nil {
			return nil, fmt.Errorf("list portfolio snapshots: %w", err)
		}
		when, err := time.ParseInLocation(dateLayout, createdAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot date %q: %w", createdAt, err)
		}
		var entries []domain.PortfolioEntry
		if err := json.Unmarshal([]byte(data), &entries); err != nil {
			return nil, fmt.Errorf("decode portfolio snapshot: %w", err)
		}
		snapshots = append(snapshots, domain.PortfolioSnapshot{
			CreatedAt: when,
			Entries:   entries,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list portfolio snapshots: %w", err)
	}
	return snapshots, nil
}

// RecordSecurityPrice appends one price observation for a security.
func (l *ledgerView) RecordSecurityPrice(ctx context.Context, name string, price money.Amount) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("security name is required")
	}
	if _, err := l.q.ExecContext(ctx,
		`INSERT INTO security_prices (name, price_cents) VALUES (?, ?)`,
		name, price.Cents()); err != nil {
		return fmt.Errorf("record security price: %w", err)
	}
	return nil
}

// SecurityPriceHistory lists price observations in ascending time order.
func (l *ledgerView) SecurityPriceHistory(ctx context.Context, name string) ([]domain.PricePoint, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT name, created_at, price_cents
		 FROM security_prices
		 WHERE name = ?
		 ORDER BY created_at ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("list security prices: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var point domain.PricePoint
		var createdAt string
		var cents int64
		if err := rows.Scan(&point.Name, &createdAt, &cents); err != nil {
			return nil, fmt.Errorf("list security prices: %w", err)
		}
		when, err := time.ParseInLocation(timestampLayout, createdAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse price timestamp %q: %w", createdAt, err)
		}
		point.CreatedAt = when
		point.Price = money.FromCents(cents)
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list security prices: %w", err)
	}
	return points, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ storage.Store = (*Store)(nil)
