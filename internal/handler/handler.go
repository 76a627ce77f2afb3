// Package handler содержит HTTP-обработчики API сервиса bidmarket.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/bidmarket-system/internal/middleware"
	"github.com/mmeshcher/bidmarket-system/internal/model"
	"github.com/mmeshcher/bidmarket-system/internal/repository"
	"github.com/mmeshcher/bidmarket-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, email, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)
	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetShippingAddress(ctx context.Context, userID int64) (string, error)
	SaveShippingAddress(ctx context.Context, userID int64, address string) error

	CreateProduct(ctx context.Context, sellerID int64, in service.CreateProductInput) (*model.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*model.Product, error)
	ListVerifiedProducts(ctx context.Context) ([]model.ProductSummary, error)
	ListAllProducts(ctx context.Context) ([]model.ProductSummary, error)
	ListProductsBySeller(ctx context.Context, userID int64) ([]model.ProductSummary, error)
	ListSoldProducts(ctx context.Context) ([]model.ProductSummary, error)
	ListWonProducts(ctx context.Context, userID int64) ([]model.ProductSummary, error)
	VerifyProduct(ctx context.Context, id int64, price float64, commission int64) (*model.Product, error)
	DeleteProduct(ctx context.Context, id, sellerID int64) error

	CreateCategory(ctx context.Context, title string, createdBy int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	UpdateCategory(ctx context.Context, id int64, title string) (*model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	UpsertReview(ctx context.Context, productID, userID int64, rating int32, comment string) (*model.Review, error)
	ListReviews(ctx context.Context, productID int64) ([]model.Review, error)

	PlaceBid(ctx context.Context, productID, userID int64, price float64) (*model.Bid, error)
	GetHighestBid(ctx context.Context, productID int64) (*model.Bid, error)
	GetBidHistory(ctx context.Context, productID int64) ([]model.Bid, error)
	SellProduct(ctx context.Context, productID, sellerID int64) (*model.Settlement, error)

	AddCartItem(ctx context.Context, userID, productID int64, quantity int32) (*model.CartItem, error)
	GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
	PlaceOrder(ctx context.Context, userID int64) (*model.Order, error)
	GetOrders(ctx context.Context, userID int64) ([]model.Order, error)
}

// Handler реализует HTTP-обработчики API сервиса bidmarket.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

type registerRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, userID, model.RoleUser); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, u.ID, u.Role); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Logout сбрасывает cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// GetBalance возвращает баланс текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

type shippingAddressPayload struct {
	Address string `json:"address"`
}

// GetShippingAddress возвращает адрес доставки текущего пользователя.
func (h *Handler) GetShippingAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	address, err := h.service.GetShippingAddress(r.Context(), userID)
	if err != nil {
		h.logger.Error("get shipping address error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, shippingAddressPayload{Address: address})
}

// SaveShippingAddress сохраняет адрес доставки текущего пользователя.
func (h *Handler) SaveShippingAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req shippingAddressPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Address == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SaveShippingAddress(r.Context(), userID, req.Address); err != nil {
		h.logger.Error("save shipping address error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
