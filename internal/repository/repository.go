package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("payment session not found")
	ErrSessionConflict = errors.New("payment session was changed by a concurrent checkout")
	ErrVersionConflict = errors.New("payment session version mismatch")
	ErrDuplicateOrder  = errors.New("order for this payment reference already exists")
	ErrOrderNotFound   = errors.New("order not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type UserRepository interface {
	GetUserProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
}

type CartRepository interface {
	FindLineItems(ctx context.Context, userID int64) ([]domain.CartLineItem, error)
	ClearCart(ctx context.Context, userID int64) error
}

type SessionRepository interface {
	CreatePaymentSession(ctx context.Context, session *domain.PaymentSession, supersedes *domain.PaymentSession) error
	GetCurrentSession(ctx context.Context, userID int64) (*domain.PaymentSession, error)
	UpdateSessionStatus(ctx context.Context, session *domain.PaymentSession, status domain.SessionStatus) error
}

type OrderRepository interface {
	RecordOrder(ctx context.Context, session *domain.PaymentSession, order *domain.Order) error
	GetOrderByPaymentReference(ctx context.Context, referenceID string) (*domain.Order, error)
	MarkOrderPublished(ctx context.Context, orderID uuid.UUID, messageID string) error
	GetUnpublishedOrders(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error)
}

type RepoInterface interface {
	UserRepository
	CartRepository
	SessionRepository
	OrderRepository
	Close() error
	RunMigrations(*Credentials) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

// NewRepositoryFromDB wraps an already opened pool.
func NewRepositoryFromDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
