package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/bidmarket-system/internal/model"
	"github.com/mmeshcher/bidmarket-system/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	balanceCurrent    int64
	balanceCommission int64
	balanceErr        error

	createdProduct *model.Product
	productErr     error

	settlement    *model.Settlement
	settlementErr error
	sellAdmin     string

	checkoutOrder *model.Order
	checkoutErr   error

	enqueued    []string
	enqueuedKey string
	enqueueErr  error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login, email string, passwordHash []byte) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) GetBalance(ctx context.Context, userID int64) (int64, int64, error) {
	return s.balanceCurrent, s.balanceCommission, s.balanceErr
}

func (s *stubRepo) SaveShippingAddress(ctx context.Context, userID int64, address string) error {
	return nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if s.productErr != nil {
		return nil, s.productErr
	}
	s.createdProduct = &p
	return &p, nil
}

func (s *stubRepo) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return nil, repository.ErrProductNotFound
}

func (s *stubRepo) ListVerifiedProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return nil, nil
}

func (s *stubRepo) ListAllProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return nil, nil
}

func (s *stubRepo) ListProductsBySeller(ctx context.Context, userID int64) ([]model.ProductSummary, error) {
	return nil, nil
}

func (s *stubRepo) ListSoldProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return nil, nil
}

func (s *stubRepo) ListWonProducts(ctx context.Context, userID int64) ([]model.ProductSummary, error) {
	return nil, nil
}

func (s *stubRepo) VerifyProduct(ctx context.Context, id, priceCents, commission int64) (*model.Product, error) {
	return &model.Product{ID: id, Price: priceCents, Commission: commission, IsVerified: true}, nil
}

func (s *stubRepo) DeleteProduct(ctx context.Context, id, sellerID int64) error { return nil }

func (s *stubRepo) CreateCategory(ctx context.Context, title string, createdBy int64) (*model.Category, error) {
	return &model.Category{Title: title, CreatedBy: createdBy}, nil
}

func (s *stubRepo) ListCategories(ctx context.Context) ([]model.Category, error) { return nil, nil }

func (s *stubRepo) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return nil, repository.ErrCategoryNotFound
}

func (s *stubRepo) UpdateCategory(ctx context.Context, id int64, title string) (*model.Category, error) {
	return &model.Category{ID: id, Title: title}, nil
}

func (s *stubRepo) DeleteCategory(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) UpsertReview(ctx context.Context, productID, userID int64, rating int32, comment string) (*model.Review, error) {
	return &model.Review{ProductID: productID, UserID: userID, Rating: rating, Comment: comment}, nil
}

func (s *stubRepo) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	return nil, nil
}

func (s *stubRepo) PlaceBid(ctx context.Context, productID, userID, priceCents int64) (*model.Bid, error) {
	return &model.Bid{ProductID: productID, UserID: userID, Price: priceCents}, nil
}

func (s *stubRepo) GetHighestBid(ctx context.Context, productID int64) (*model.Bid, error) {
	return nil, repository.ErrNoBids
}

func (s *stubRepo) GetBidHistory(ctx context.Context, productID int64) ([]model.Bid, error) {
	return nil, nil
}

func (s *stubRepo) SellProduct(ctx context.Context, productID, sellerID int64, adminLogin string) (*model.Settlement, error) {
	s.sellAdmin = adminLogin
	return s.settlement, s.settlementErr
}

func (s *stubRepo) AddCartItem(ctx context.Context, userID, productID int64, quantity int32) (*model.CartItem, error) {
	return &model.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}, nil
}

func (s *stubRepo) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return nil, nil
}

func (s *stubRepo) RemoveCartItem(ctx context.Context, userID, itemID int64) error { return nil }

func (s *stubRepo) Checkout(ctx context.Context, userID int64, number string) (*model.Order, error) {
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	order := *s.checkoutOrder
	order.Number = number
	return &order, nil
}

func (s *stubRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) EnqueueNotification(ctx context.Context, key, recipient, subject, body string) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.enqueuedKey = key
	s.enqueued = append(s.enqueued, subject+"|"+body)
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, "admin", zap.NewNop())
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := newTestService(repo)

	_, err := svc.RegisterUser(context.Background(), "login", "login@example.com", "pass")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Login:        "user",
			PasswordHash: hashed,
		},
	}
	svc := newTestService(repo)

	_, err = svc.AuthenticateUser(context.Background(), "user", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	u, err := svc.AuthenticateUser(context.Background(), "user", "correct")
	if err != nil {
		t.Fatalf("AuthenticateUser error: %v", err)
	}
	if u.ID != 1 {
		t.Fatalf("user ID = %d, want 1", u.ID)
	}
}

func TestGetBalance_ConvertsToDollars(t *testing.T) {
	repo := &stubRepo{
		balanceCurrent:    150,
		balanceCommission: 50,
	}
	svc := newTestService(repo)

	balance, err := svc.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if balance.Current != 1.5 {
		t.Fatalf("Current = %v, want 1.5", balance.Current)
	}
	if balance.Commission != 0.5 {
		t.Fatalf("Commission = %v, want 0.5", balance.Commission)
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	svc := newTestService(&stubRepo{})

	_, err := svc.CreateProduct(context.Background(), 1, CreateProductInput{Title: "X"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateProduct_SetsSlugAndCents(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	p, err := svc.CreateProduct(context.Background(), 7, CreateProductInput{
		Title:       "Vintage Camera",
		Description: "good one",
		Price:       199.99,
	})
	if err != nil {
		t.Fatalf("CreateProduct error: %v", err)
	}
	if p.Slug != "vintage-camera" {
		t.Fatalf("slug = %q, want %q", p.Slug, "vintage-camera")
	}
	if p.Price != 19999 {
		t.Fatalf("price = %d, want 19999", p.Price)
	}
	if p.Category != "All" {
		t.Fatalf("category = %q, want %q", p.Category, "All")
	}
}

func TestVerifyProduct_CommissionRange(t *testing.T) {
	svc := newTestService(&stubRepo{})

	for _, rate := range []int64{-1, 101} {
		if _, err := svc.VerifyProduct(context.Background(), 1, 100, rate); !errors.Is(err, ErrInvalidCommission) {
			t.Fatalf("rate %d: expected ErrInvalidCommission, got %v", rate, err)
		}
	}

	p, err := svc.VerifyProduct(context.Background(), 1, 100, 10)
	if err != nil {
		t.Fatalf("VerifyProduct error: %v", err)
	}
	if p.Price != 10000 {
		t.Fatalf("price = %d, want 10000", p.Price)
	}
}

func TestPlaceBid_RejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(&stubRepo{})

	for _, price := range []float64{0, -5} {
		if _, err := svc.PlaceBid(context.Background(), 1, 1, price); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("price %v: expected ErrInvalidInput, got %v", price, err)
		}
	}
}

func TestPlaceBid_ConvertsToCents(t *testing.T) {
	svc := newTestService(&stubRepo{})

	bid, err := svc.PlaceBid(context.Background(), 1, 2, 150.55)
	if err != nil {
		t.Fatalf("PlaceBid error: %v", err)
	}
	if bid.Price != 15055 {
		t.Fatalf("price = %d, want 15055", bid.Price)
	}
}

func TestSellProduct_EnqueuesWinnerNotification(t *testing.T) {
	repo := &stubRepo{
		settlement: &model.Settlement{
			ProductID:    10,
			ProductTitle: "Vintage Camera",
			WinnerID:     2,
			WinnerEmail:  "winner@example.com",
			BidPrice:     20000,
			Commission:   2000,
			FinalPrice:   18000,
		},
	}
	svc := newTestService(repo)

	st, err := svc.SellProduct(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("SellProduct error: %v", err)
	}
	if st.FinalPrice != 18000 {
		t.Fatalf("final price = %d, want 18000", st.FinalPrice)
	}
	if repo.sellAdmin != "admin" {
		t.Fatalf("admin login = %q, want %q", repo.sellAdmin, "admin")
	}
	if repo.enqueuedKey != "settlement-10" {
		t.Fatalf("notification key = %q, want %q", repo.enqueuedKey, "settlement-10")
	}
	if len(repo.enqueued) != 1 || !strings.Contains(repo.enqueued[0], "$200.00") {
		t.Fatalf("unexpected notification: %v", repo.enqueued)
	}
}

func TestSellProduct_PropagatesError(t *testing.T) {
	repo := &stubRepo{
		settlementErr: repository.ErrNoBids,
	}
	svc := newTestService(repo)

	_, err := svc.SellProduct(context.Background(), 10, 1)
	if !errors.Is(err, repository.ErrNoBids) {
		t.Fatalf("expected ErrNoBids, got %v", err)
	}
	if len(repo.enqueued) != 0 {
		t.Fatalf("no notification must be enqueued on failed settlement")
	}
}

func TestSellProduct_NotificationFailureDoesNotFailSale(t *testing.T) {
	repo := &stubRepo{
		settlement: &model.Settlement{ProductID: 10, BidPrice: 100},
		enqueueErr: errors.New("queue unavailable"),
	}
	svc := newTestService(repo)

	if _, err := svc.SellProduct(context.Background(), 10, 1); err != nil {
		t.Fatalf("SellProduct error: %v", err)
	}
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	repo := &stubRepo{
		checkoutErr: repository.ErrEmptyCart,
	}
	svc := newTestService(repo)

	_, err := svc.PlaceOrder(context.Background(), 1)
	if !errors.Is(err, repository.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestPlaceOrder_EnqueuesInvoice(t *testing.T) {
	repo := &stubRepo{
		checkoutOrder: &model.Order{
			ID:     1,
			UserID: 7,
			Total:  20000,
			Items: []model.OrderItem{
				{ProductID: 10, Title: "Vintage Camera", Price: 20000, Quantity: 1},
			},
		},
		getUser: &model.User{ID: 7, Login: "buyer", Email: "buyer@example.com"},
	}
	svc := newTestService(repo)

	order, err := svc.PlaceOrder(context.Background(), 7)
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if order.Number == "" {
		t.Fatalf("order number must be generated")
	}
	if repo.enqueuedKey != "order-"+order.Number {
		t.Fatalf("notification key = %q, want %q", repo.enqueuedKey, "order-"+order.Number)
	}
	if len(repo.enqueued) != 1 || !strings.Contains(repo.enqueued[0], "Total: $200.00") {
		t.Fatalf("unexpected notification: %v", repo.enqueued)
	}
}

func TestUpsertReview_RatingValidation(t *testing.T) {
	svc := newTestService(&stubRepo{})

	for _, rating := range []int32{0, 6} {
		if _, err := svc.UpsertReview(context.Background(), 1, 2, rating, "ok"); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("rating %d: expected ErrInvalidInput, got %v", rating, err)
		}
	}
}
