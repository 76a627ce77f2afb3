package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bidmarket-system/internal/middleware"
	"github.com/mmeshcher/bidmarket-system/internal/model"
	"github.com/mmeshcher/bidmarket-system/internal/repository"
	"github.com/mmeshcher/bidmarket-system/internal/service"
)

type bidResponse struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	UserID    int64   `json:"user_id"`
	Price     float64 `json:"price"`
	CreatedAt string  `json:"created_at"`
}

func toBidResponse(b model.Bid) bidResponse {
	return bidResponse{
		ID:        b.ID,
		ProductID: b.ProductID,
		UserID:    b.UserID,
		Price:     float64(b.Price) / 100,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

type placeBidRequest struct {
	ProductID int64   `json:"product_id"`
	Price     float64 `json:"price"`
}

// PlaceBid размещает или повышает ставку текущего пользователя.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bid, err := h.service.PlaceBid(r.Context(), req.ProductID, userID, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrProductNotVerified),
			errors.Is(err, repository.ErrProductSoldOut),
			errors.Is(err, repository.ErrBidBelowOwn),
			errors.Is(err, repository.ErrBidBelowHighest):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("place bid error", zap.Error(err),
				zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, toBidResponse(*bid))
}

// GetBidHistory возвращает историю ставок на продукт.
func (h *Handler) GetBidHistory(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "productId")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bids, err := h.service.GetBidHistory(r.Context(), productID)
	if err != nil {
		h.logger.Error("get bid history error", zap.Error(err), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, toBidResponse(b))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetHighestBid возвращает текущую максимальную ставку на продукт.
func (h *Handler) GetHighestBid(w http.ResponseWriter, r *http.Request) {
	productID, err := parseIDParam(r, "productId")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bid, err := h.service.GetHighestBid(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrNoBids) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("get highest bid error", zap.Error(err), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toBidResponse(*bid))
}

type sellRequest struct {
	ProductID int64 `json:"product_id"`
}

type settlementResponse struct {
	ProductID  int64   `json:"product_id"`
	WinnerID   int64   `json:"winner_id"`
	BidPrice   float64 `json:"bid_price"`
	Commission float64 `json:"commission"`
	FinalPrice float64 `json:"final_price"`
}

// SellProduct продаёт продукт победителю торгов от имени владельца.
func (h *Handler) SellProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	st, err := h.service.SellProduct(r.Context(), req.ProductID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrNotProductOwner):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, repository.ErrProductSoldOut),
			errors.Is(err, repository.ErrNoBids):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, repository.ErrAdminNotFound):
			h.logger.Error("sell product error", zap.Error(err), zap.Int64("productID", req.ProductID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		default:
			h.logger.Error("sell product error", zap.Error(err),
				zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, settlementResponse{
		ProductID:  st.ProductID,
		WinnerID:   st.WinnerID,
		BidPrice:   float64(st.BidPrice) / 100,
		Commission: float64(st.Commission) / 100,
		FinalPrice: float64(st.FinalPrice) / 100,
	})
}

type cartItemResponse struct {
	ID       int64           `json:"id"`
	Quantity int32           `json:"quantity"`
	Product  productResponse `json:"product"`
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

// AddCartItem добавляет продукт в корзину текущего пользователя.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	item, err := h.service.AddCartItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, repository.ErrProductNotVerified),
			errors.Is(err, repository.ErrProductSoldOut),
			errors.Is(err, repository.ErrAlreadyInCart):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("add cart item error", zap.Error(err),
				zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, cartItemResponse{
		ID:       item.ID,
		Quantity: item.Quantity,
		Product:  toProductResponse(item.Product),
	})
}

// GetCartItems возвращает содержимое корзины текущего пользователя.
func (h *Handler) GetCartItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	items, err := h.service.GetCartItems(r.Context(), userID)
	if err != nil {
		h.logger.Error("get cart items error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, cartItemResponse{
			ID:       item.ID,
			Quantity: item.Quantity,
			Product:  toProductResponse(item.Product),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// RemoveCartItem удаляет позицию из корзины текущего пользователя.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	itemID, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveCartItem(r.Context(), userID, itemID); err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("remove cart item error", zap.Error(err),
			zap.Int64("userID", userID), zap.Int64("itemID", itemID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type orderItemResponse struct {
	ProductID int64   `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int32   `json:"quantity"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	Number    string              `json:"number"`
	Total     float64             `json:"total"`
	Items     []orderItemResponse `json:"items"`
	CreatedAt string              `json:"created_at"`
}

func toOrderResponse(o model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Title:     item.Title,
			Price:     float64(item.Price) / 100,
			Quantity:  item.Quantity,
		})
	}
	return orderResponse{
		ID:        o.ID,
		Number:    o.Number,
		Total:     float64(o.Total) / 100,
		Items:     items,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
}

// PlaceOrder оформляет заказ из корзины текущего пользователя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyCart) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("place order error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// GetOrderHistory возвращает заказы текущего пользователя.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("get order history error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.writeJSON(w, http.StatusOK, resp)
}
