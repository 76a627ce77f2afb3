// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/bidmarket-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrAdminNotFound возвращается, если счёт площадки не найден при расчёте продажи.
	ErrAdminNotFound = errors.New("platform account not found")
	// ErrProductNotFound возвращается, если продукт не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductNotVerified возвращается при операции с продуктом, не одобренным для продажи.
	ErrProductNotVerified = errors.New("product is not verified for sale")
	// ErrProductSoldOut возвращается при операции с уже проданным продуктом.
	ErrProductSoldOut = errors.New("product has already been sold")
	// ErrNotProductOwner возвращается при попытке продать чужой продукт.
	ErrNotProductOwner = errors.New("product belongs to another user")
	// ErrBidBelowOwn возвращается, если новая ставка не превышает предыдущую ставку того же пользователя.
	ErrBidBelowOwn = errors.New("bid must be higher than your previous bid")
	// ErrBidBelowHighest возвращается, если первая ставка пользователя не превышает текущую максимальную.
	ErrBidBelowHighest = errors.New("bid must be higher than the current highest bid")
	// ErrNoBids возвращается при расчёте продажи без единой ставки.
	ErrNoBids = errors.New("no bids found for product")
	// ErrEmptyCart возвращается при оформлении заказа с пустой корзиной.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrAlreadyInCart возвращается при повторном добавлении продукта в корзину.
	ErrAlreadyInCart = errors.New("product is already in cart")
	// ErrCartItemNotFound возвращается, если позиция корзины не найдена или принадлежит другому пользователю.
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrCategoryExists возвращается при создании категории с уже существующим названием.
	ErrCategoryExists = errors.New("category already exists")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrOwnProductReview возвращается при попытке продавца оставить отзыв о своём продукте.
	ErrOwnProductReview = errors.New("cannot review your own product")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет транзакцию при deadlock/serialization failure и сетевых сбоях.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login, email string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		login, email, passwordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, email, password_hash, role, balance, commission_balance, shipping_address, created_at
		 FROM users WHERE login = $1`,
		login,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, email, password_hash, role, balance, commission_balance, shipping_address, created_at
		 FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Login, &u.Email, &u.PasswordHash, &role,
		&u.Balance, &u.CommissionBalance, &u.ShippingAddress, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetBalance возвращает баланс и комиссионный баланс пользователя в центах.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (int64, int64, error) {
	var balance, commission int64
	err := r.pool.QueryRow(ctx,
		`SELECT balance, commission_balance FROM users WHERE id = $1`,
		userID,
	).Scan(&balance, &commission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrUserNotFound
		}
		return 0, 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, commission, nil
}

// SaveShippingAddress сохраняет адрес доставки пользователя.
func (r *PostgresRepository) SaveShippingAddress(ctx context.Context, userID int64, address string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET shipping_address = $2 WHERE id = $1`,
		userID, address,
	)
	if err != nil {
		return fmt.Errorf("save shipping address: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
