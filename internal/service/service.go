// Package service реализует бизнес-логику аукционного маркетплейса.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/bidmarket-system/internal/model"
	"github.com/mmeshcher/bidmarket-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput возвращается при отсутствии обязательных полей или недопустимых значениях.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCommission возвращается при проценте комиссии вне диапазона [0, 100].
	ErrInvalidCommission = errors.New("commission rate must be between 0 and 100")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login, email string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetBalance(ctx context.Context, userID int64) (int64, int64, error)
	SaveShippingAddress(ctx context.Context, userID int64, address string) error

	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*model.Product, error)
	ListVerifiedProducts(ctx context.Context) ([]model.ProductSummary, error)
	ListAllProducts(ctx context.Context) ([]model.ProductSummary, error)
	ListProductsBySeller(ctx context.Context, userID int64) ([]model.ProductSummary, error)
	ListSoldProducts(ctx context.Context) ([]model.ProductSummary, error)
	ListWonProducts(ctx context.Context, userID int64) ([]model.ProductSummary, error)
	VerifyProduct(ctx context.Context, id, priceCents, commission int64) (*model.Product, error)
	DeleteProduct(ctx context.Context, id, sellerID int64) error

	CreateCategory(ctx context.Context, title string, createdBy int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	UpdateCategory(ctx context.Context, id int64, title string) (*model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	UpsertReview(ctx context.Context, productID, userID int64, rating int32, comment string) (*model.Review, error)
	ListReviews(ctx context.Context, productID int64) ([]model.Review, error)

	PlaceBid(ctx context.Context, productID, userID, priceCents int64) (*model.Bid, error)
	GetHighestBid(ctx context.Context, productID int64) (*model.Bid, error)
	GetBidHistory(ctx context.Context, productID int64) ([]model.Bid, error)
	SellProduct(ctx context.Context, productID, sellerID int64, adminLogin string) (*model.Settlement, error)

	AddCartItem(ctx context.Context, userID, productID int64, quantity int32) (*model.CartItem, error)
	GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
	Checkout(ctx context.Context, userID int64, number string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)

	EnqueueNotification(ctx context.Context, key, recipient, subject, body string) error
}

// Service содержит бизнес-логику аукционного маркетплейса.
type Service struct {
	repo       Repository
	adminLogin string
	logger     *zap.Logger
}

// NewService создаёт новый сервис. adminLogin задаёт счёт площадки,
// на который зачисляется комиссия при расчёте продаж.
func NewService(repo Repository, adminLogin string, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		adminLogin: adminLogin,
		logger:     logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// toCents переводит денежную сумму из внешнего представления в центы.
func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// fromCents переводит центы во внешнее денежное представление.
func fromCents(v int64) float64 {
	return float64(v) / 100
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, email, password string) (int64, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, login, email, hashed)
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его запись.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetBalance возвращает баланс пользователя в виде структуры model.Balance.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	balance, commission, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Balance{
		Current:    fromCents(balance),
		Commission: fromCents(commission),
	}, nil
}

// GetShippingAddress возвращает адрес доставки пользователя.
func (s *Service) GetShippingAddress(ctx context.Context, userID int64) (string, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.ShippingAddress, nil
}

// SaveShippingAddress сохраняет адрес доставки пользователя.
func (s *Service) SaveShippingAddress(ctx context.Context, userID int64, address string) error {
	return s.repo.SaveShippingAddress(ctx, userID, address)
}

// CreateProductInput содержит данные нового продукта.
type CreateProductInput struct {
	Title       string
	Description string
	Category    string
	Brand       string
	ModelNumber string
	Price       float64
}

// CreateProduct выставляет новый продукт от имени продавца.
// Продукт создаётся неодобренным: до верификации администратором по нему
// нельзя ни ставить, ни покупать.
func (s *Service) CreateProduct(ctx context.Context, sellerID int64, in CreateProductInput) (*model.Product, error) {
	if in.Title == "" || in.Description == "" || in.Price <= 0 {
		return nil, fmt.Errorf("%w: title, description and positive price are required", ErrInvalidInput)
	}

	category := in.Category
	if category == "" {
		category = "All"
	}

	p := model.Product{
		SellerID:    sellerID,
		Title:       in.Title,
		Slug:        validation.Slugify(in.Title),
		Description: in.Description,
		Category:    category,
		Brand:       in.Brand,
		ModelNumber: in.ModelNumber,
		Price:       toCents(in.Price),
	}

	return s.repo.CreateProduct(ctx, p)
}

// GetProductBySlug возвращает продукт по slug.
func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return s.repo.GetProductBySlug(ctx, slug)
}

// ListVerifiedProducts возвращает одобренные продукты со сведениями о торгах.
func (s *Service) ListVerifiedProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return s.repo.ListVerifiedProducts(ctx)
}

// ListAllProducts возвращает все продукты (для администратора).
func (s *Service) ListAllProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return s.repo.ListAllProducts(ctx)
}

// ListProductsBySeller возвращает продукты пользователя.
func (s *Service) ListProductsBySeller(ctx context.Context, userID int64) ([]model.ProductSummary, error) {
	return s.repo.ListProductsBySeller(ctx, userID)
}

// ListSoldProducts возвращает проданные продукты.
func (s *Service) ListSoldProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return s.repo.ListSoldProducts(ctx)
}

// ListWonProducts возвращает продукты, выигранные пользователем.
func (s *Service) ListWonProducts(ctx context.Context, userID int64) ([]model.ProductSummary, error) {
	return s.repo.ListWonProducts(ctx, userID)
}

// VerifyProduct одобряет продукт для продажи, задавая стартовую цену и
// процент комиссии площадки.
func (s *Service) VerifyProduct(ctx context.Context, id int64, price float64, commission int64) (*model.Product, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if commission < 0 || commission > 100 {
		return nil, ErrInvalidCommission
	}
	return s.repo.VerifyProduct(ctx, id, toCents(price), commission)
}

// DeleteProduct удаляет непроданный продукт его владельцем.
func (s *Service) DeleteProduct(ctx context.Context, id, sellerID int64) error {
	return s.repo.DeleteProduct(ctx, id, sellerID)
}

// CreateCategory создаёт новую категорию.
func (s *Service) CreateCategory(ctx context.Context, title string, createdBy int64) (*model.Category, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return s.repo.CreateCategory(ctx, title, createdBy)
}

// ListCategories возвращает все категории.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// GetCategory возвращает категорию по идентификатору.
func (s *Service) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// UpdateCategory переименовывает категорию.
func (s *Service) UpdateCategory(ctx context.Context, id int64, title string) (*model.Category, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return s.repo.UpdateCategory(ctx, id, title)
}

// DeleteCategory удаляет категорию.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}

// UpsertReview создаёт или обновляет отзыв пользователя о продукте.
func (s *Service) UpsertReview(ctx context.Context, productID, userID int64, rating int32, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	return s.repo.UpsertReview(ctx, productID, userID, rating, comment)
}

// ListReviews возвращает отзывы о продукте.
func (s *Service) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	return s.repo.ListReviews(ctx, productID)
}
