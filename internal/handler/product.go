package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/bidmarket-system/internal/middleware"
	"github.com/mmeshcher/bidmarket-system/internal/model"
	"github.com/mmeshcher/bidmarket-system/internal/repository"
	"github.com/mmeshcher/bidmarket-system/internal/service"
)

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

type productResponse struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Slug         string   `json:"slug"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Brand        string   `json:"brand,omitempty"`
	ModelNumber  string   `json:"model,omitempty"`
	Price        float64  `json:"price"`
	Commission   int64    `json:"commission"`
	IsVerified   bool     `json:"is_verified"`
	IsSoldOut    bool     `json:"is_sold_out"`
	SoldPrice    *float64 `json:"sold_price,omitempty"`
	BiddingPrice float64  `json:"bidding_price,omitempty"`
	TotalBids    int64    `json:"total_bids,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

func toProductResponse(p model.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		Category:    p.Category,
		Brand:       p.Brand,
		ModelNumber: p.ModelNumber,
		Price:       float64(p.Price) / 100,
		Commission:  p.Commission,
		IsVerified:  p.IsVerified,
		IsSoldOut:   p.IsSoldOut,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
	if p.SoldPrice != nil {
		v := float64(*p.SoldPrice) / 100
		resp.SoldPrice = &v
	}
	return resp
}

func toSummaryResponses(summaries []model.ProductSummary) []productResponse {
	resp := make([]productResponse, 0, len(summaries))
	for _, s := range summaries {
		pr := toProductResponse(s.Product)
		pr.BiddingPrice = float64(s.BiddingPrice) / 100
		pr.TotalBids = s.TotalBids
		resp = append(resp, pr)
	}
	return resp
}

type createProductRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	ModelNumber string  `json:"model"`
	Price       float64 `json:"price"`
}

// CreateProduct выставляет новый продукт от имени текущего пользователя.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), userID, service.CreateProductInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Brand:       req.Brand,
		ModelNumber: req.ModelNumber,
		Price:       req.Price,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("create product error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, toProductResponse(*p))
}

// ListProducts возвращает одобренные продукты со сведениями о торгах.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListVerifiedProducts(r.Context())
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

// ListAllProducts возвращает все продукты, включая неодобренные (для администратора).
func (h *Handler) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListAllProducts(r.Context())
	if err != nil {
		h.logger.Error("list all products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

// ListUserProducts возвращает продукты текущего пользователя.
func (h *Handler) ListUserProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	summaries, err := h.service.ListProductsBySeller(r.Context(), userID)
	if err != nil {
		h.logger.Error("list user products error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

// ListWonProducts возвращает продукты, выигранные текущим пользователем.
func (h *Handler) ListWonProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	summaries, err := h.service.ListWonProducts(r.Context(), userID)
	if err != nil {
		h.logger.Error("list won products error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

// ListSoldProducts возвращает проданные продукты.
func (h *Handler) ListSoldProducts(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListSoldProducts(r.Context())
	if err != nil {
		h.logger.Error("list sold products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

// GetProduct возвращает продукт по slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	p, err := h.service.GetProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.String("slug", slug))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(*p))
}

type verifyProductRequest struct {
	Price      float64 `json:"price"`
	Commission int64   `json:"commission"`
}

// VerifyProduct одобряет продукт для продажи (только администратор).
func (h *Handler) VerifyProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req verifyProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.VerifyProduct(r.Context(), id, req.Price, req.Commission)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidCommission):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrProductSoldOut):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("verify product error", zap.Error(err), zap.Int64("productID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(*p))
}

// DeleteProduct удаляет непроданный продукт его владельцем.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrNotProductOwner):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, repository.ErrProductSoldOut):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("delete product error", zap.Error(err), zap.Int64("productID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Title string `json:"title"`
}

// CreateCategory создаёт новую категорию (только администратор).
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.CreateCategory(r.Context(), req.Title, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrCategoryExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("create category error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, c)
}

// ListCategories возвращает все категории.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}

// GetCategory возвращает категорию по идентификатору.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("get category error", zap.Error(err), zap.Int64("categoryID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// UpdateCategory переименовывает категорию (только администратор).
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c, err := h.service.UpdateCategory(r.Context(), id, req.Title)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrCategoryNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrCategoryExists):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("update category error", zap.Error(err), zap.Int64("categoryID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

// DeleteCategory удаляет категорию (только администратор).
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("delete category error", zap.Error(err), zap.Int64("categoryID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type reviewRequest struct {
	Rating  int32  `json:"rating"`
	Comment string `json:"comment"`
}

// UpsertReview создаёт или обновляет отзыв текущего пользователя о продукте.
func (h *Handler) UpsertReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	productID, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	review, err := h.service.UpsertReview(r.Context(), productID, userID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrOwnProductReview):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			h.logger.Error("upsert review error", zap.Error(err), zap.Int64("productID", productID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, review)
}

// ListReviews возвращает отзывы о продукте.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), productID)
	if err != nil {
		h.logger.Error("list reviews error", zap.Error(err), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, reviews)
}
