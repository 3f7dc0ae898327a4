// Package account stores users and their purchases and answers whether a
// caller has a premium account.
package account

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mcncl/jsonflat/internal/errors"
)

// ErrUserNotFound is returned when no user has the requested username.
var ErrUserNotFound = stderrors.New("user not found")

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver accepts the driver names used in configuration.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	default:
		return "", errors.NewConfigError(fmt.Sprintf("unsupported database driver %q", name), errors.ErrInvalidOptions)
	}
}

func (d Driver) sqlDriver() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Driver) gooseDialect() string {
	if d == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// User is an account holder.
type User struct {
	ID        string
	Username  string
	Premium   bool
	CreatedAt time.Time
}

// Purchase is a completed payment that unlocked premium access.
type Purchase struct {
	UserID          string
	PaymentIntentID string
	Amount          int64
	PurchasedAt     time.Time
}

// Store is a database/sql backed account store.
type Store struct {
	db     *sql.DB
	driver Driver
	logger *slog.Logger
}

// NewStore wraps an open database. A nil logger discards log output.
func NewStore(db *sql.DB, driver Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{db: db, driver: driver, logger: logger}
}

// Open connects to the database and runs pending migrations. For SQLite,
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, driver Driver, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open(driver.sqlDriver(), dsn)
	if err != nil {
		return nil, errors.NewStorageError("failed to open account database", err)
	}
	if driver == DriverSQLite {
		// Each connection to an in-memory database sees its own copy.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("failed to ping account database", err)
	}

	s := NewStore(db, driver, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("failed to migrate account database", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GetUser returns the user with the given username.
func (s *Store) GetUser(ctx context.Context, username string) (*User, error) {
	return getUser(ctx, s.db, s.rebind, username)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getUser(ctx context.Context, q queryer, rebind func(string) string, username string) (*User, error) {
	var (
		u       User
		created dbTime
	)
	err := q.QueryRowContext(ctx,
		rebind("SELECT id, username, premium, created_at FROM users WHERE username = ?"),
		username).Scan(&u.ID, &u.Username, &u.Premium, &created)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewStorageError(fmt.Sprintf("no user named %q", username), ErrUserNotFound)
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to load user", err)
	}
	u.CreatedAt = created.Time
	return &u, nil
}

// EnsureUser returns the user with the given username, creating it when it
// does not exist yet.
func (s *Store) EnsureUser(ctx context.Context, username string) (*User, error) {
	return ensureUser(ctx, s.db, s.rebind, username)
}

func ensureUser(ctx context.Context, q queryer, rebind func(string) string, username string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.NewInputError("username cannot be empty", errors.ErrInvalidOptions)
	}

	u, err := getUser(ctx, q, rebind, username)
	if err == nil {
		return u, nil
	}
	if !stderrors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u = &User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	_, err = q.ExecContext(ctx,
		rebind("INSERT INTO users (id, username, premium, created_at) VALUES (?, ?, ?, ?)"),
		u.ID, u.Username, false, u.CreatedAt)
	if err != nil {
		// Another caller may have created the user in the meantime.
		if existing, getErr := getUser(ctx, q, rebind, username); getErr == nil {
			return existing, nil
		}
		return nil, errors.NewStorageError("failed to create user", err)
	}
	return u, nil
}

// IsPremium reports whether username has premium access. Unknown users and
// an empty username are not premium.
func (s *Store) IsPremium(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	var premium bool
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT premium FROM users WHERE username = ?"),
		username).Scan(&premium)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewStorageError("failed to look up premium status", err)
	}
	return premium, nil
}

// SetPremium updates the premium flag of an existing user.
func (s *Store) SetPremium(ctx context.Context, username string, premium bool) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE users SET premium = ? WHERE username = ?"),
		premium, username)
	if err != nil {
		return errors.NewStorageError("failed to update premium status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewStorageError(fmt.Sprintf("no user named %q", username), ErrUserNotFound)
	}
	s.logger.Info("premium status changed", "username", username, "premium", premium)
	return nil
}

// RecordPurchase stores a completed payment and grants premium access to
// username, creating the user if needed. Recording the same payment intent
// twice fails.
func (s *Store) RecordPurchase(ctx context.Context, username, paymentIntentID string, amount int64) (*Purchase, error) {
	if paymentIntentID == "" {
		return nil, errors.NewInputError("payment intent id cannot be empty", errors.ErrInvalidOptions)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := ensureUser(ctx, tx, s.rebind, username)
	if err != nil {
		return nil, err
	}

	p := &Purchase{
		UserID:          u.ID,
		PaymentIntentID: paymentIntentID,
		Amount:          amount,
		PurchasedAt:     time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind("INSERT INTO purchases (user_id, stripe_payment_intent_id, amount, purchased_at) VALUES (?, ?, ?, ?)"),
		p.UserID, p.PaymentIntentID, p.Amount, p.PurchasedAt); err != nil {
		return nil, errors.NewStorageError("failed to record purchase", err)
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind("UPDATE users SET premium = ? WHERE id = ?"),
		true, u.ID); err != nil {
		return nil, errors.NewStorageError("failed to grant premium status", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStorageError("failed to commit purchase", err)
	}

	s.logger.Info("purchase recorded", "username", username, "amount", amount)
	return p, nil
}

// ListPurchases returns the purchases of username, oldest first.
func (s *Store) ListPurchases(ctx context.Context, username string) ([]Purchase, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT p.user_id, p.stripe_payment_intent_id, p.amount, p.purchased_at
		FROM purchases p
		JOIN users u ON u.id = p.user_id
		WHERE u.username = ?
		ORDER BY p.purchased_at, p.stripe_payment_intent_id`), username)
	if err != nil {
		return nil, errors.NewStorageError("failed to list purchases", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var (
			p         Purchase
			purchased dbTime
		)
		if err := rows.Scan(&p.UserID, &p.PaymentIntentID, &p.Amount, &purchased); err != nil {
			return nil, errors.NewStorageError("failed to scan purchase", err)
		}
		p.PurchasedAt = purchased.Time
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to list purchases", err)
	}
	return purchases, nil
}
