package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/bidmarket-system/internal/model"
	"github.com/mmeshcher/bidmarket-system/internal/repository"
)

func TestPlaceBid_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		bidErr     error
		wantStatus int
	}{
		{name: "успешная ставка", wantStatus: http.StatusCreated},
		{name: "продукт не найден", bidErr: repository.ErrProductNotFound, wantStatus: http.StatusNotFound},
		{name: "продукт не одобрен", bidErr: repository.ErrProductNotVerified, wantStatus: http.StatusConflict},
		{name: "продукт продан", bidErr: repository.ErrProductSoldOut, wantStatus: http.StatusConflict},
		{name: "ставка ниже собственной", bidErr: repository.ErrBidBelowOwn, wantStatus: http.StatusConflict},
		{name: "ставка ниже максимальной", bidErr: repository.ErrBidBelowHighest, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				bid:    &model.Bid{ID: 1, ProductID: 10, UserID: 1, Price: 15000, CreatedAt: time.Now()},
				bidErr: tt.bidErr,
			}
			h := newTestHandler(t, svc)
			router := h.SetupRouter()

			body, _ := json.Marshal(placeBidRequest{ProductID: 10, Price: 150})
			req := httptest.NewRequest(http.MethodPost, "/api/bidding/bid", bytes.NewReader(body))
			req = authedRequest(t, h, req, 1, model.RoleUser)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestPlaceBid_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	body, _ := json.Marshal(placeBidRequest{ProductID: 10, Price: 150})
	req := httptest.NewRequest(http.MethodPost, "/api/bidding/bid", bytes.NewReader(body))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetBidHistory_Public(t *testing.T) {
	svc := &stubService{
		bids: []model.Bid{
			{ID: 2, ProductID: 10, UserID: 5, Price: 20000, CreatedAt: time.Now()},
			{ID: 1, ProductID: 10, UserID: 4, Price: 15000, CreatedAt: time.Now()},
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/bidding/10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var got []bidResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || got[0].Price != 200 {
		t.Fatalf("unexpected history: %+v", got)
	}
}

func TestSellProduct_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		sellErr    error
		wantStatus int
	}{
		{name: "успешная продажа", wantStatus: http.StatusOK},
		{name: "нет ставок", sellErr: repository.ErrNoBids, wantStatus: http.StatusConflict},
		{name: "чужой продукт", sellErr: repository.ErrNotProductOwner, wantStatus: http.StatusForbidden},
		{name: "уже продан", sellErr: repository.ErrProductSoldOut, wantStatus: http.StatusConflict},
		{name: "нет счёта площадки", sellErr: repository.ErrAdminNotFound, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				settlement: &model.Settlement{
					ProductID:  10,
					WinnerID:   2,
					BidPrice:   20000,
					Commission: 2000,
					FinalPrice: 18000,
				},
				settlementErr: tt.sellErr,
			}
			h := newTestHandler(t, svc)
			router := h.SetupRouter()

			body, _ := json.Marshal(sellRequest{ProductID: 10})
			req := httptest.NewRequest(http.MethodPost, "/api/bidding/sell", bytes.NewReader(body))
			req = authedRequest(t, h, req, 1, model.RoleUser)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantStatus)
			}

			if tt.sellErr == nil {
				var got settlementResponse
				if err := json.NewDecoder(rec.Result().Body).Decode(&got); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if got.BidPrice != 200 || got.Commission != 20 || got.FinalPrice != 180 {
					t.Fatalf("unexpected settlement: %+v", got)
				}
			}
		})
	}
}

func TestPlaceOrder_EmptyCartConflict(t *testing.T) {
	svc := &stubService{
		orderErr: repository.ErrEmptyCart,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/bidding/place-order", nil)
	req = authedRequest(t, h, req, 1, model.RoleUser)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestGetOrderHistory_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/bidding/orders/history", nil)
	req = authedRequest(t, h, req, 1, model.RoleUser)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestRemoveCartItem_NotFound(t *testing.T) {
	svc := &stubService{
		removeErr: repository.ErrCartItemNotFound,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/bidding/cart/5", nil)
	req = authedRequest(t, h, req, 1, model.RoleUser)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestVerifyProduct_RequiresAdmin(t *testing.T) {
	svc := &stubService{
		product: &model.Product{ID: 10, Price: 10000, IsVerified: true},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(verifyProductRequest{Price: 100, Commission: 10})

	req := httptest.NewRequest(http.MethodPatch, "/api/products/admin/verify/10", bytes.NewReader(body))
	req = authedRequest(t, h, req, 1, model.RoleUser)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}

	body, _ = json.Marshal(verifyProductRequest{Price: 100, Commission: 10})
	req = httptest.NewRequest(http.MethodPatch, "/api/products/admin/verify/10", bytes.NewReader(body))
	req = authedRequest(t, h, req, 2, model.RoleAdmin)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}
