package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/bidmarket-system/internal/invoice"
	"github.com/mmeshcher/bidmarket-system/internal/model"
)

// PlaceBid размещает или повышает ставку пользователя на продукт.
func (s *Service) PlaceBid(ctx context.Context, productID, userID int64, price float64) (*model.Bid, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: bid amount must be positive", ErrInvalidInput)
	}
	return s.repo.PlaceBid(ctx, productID, userID, toCents(price))
}

// GetHighestBid возвращает текущую максимальную ставку на продукт.
func (s *Service) GetHighestBid(ctx context.Context, productID int64) (*model.Bid, error) {
	return s.repo.GetHighestBid(ctx, productID)
}

// GetBidHistory возвращает историю ставок на продукт.
func (s *Service) GetBidHistory(ctx context.Context, productID int64) ([]model.Bid, error) {
	return s.repo.GetBidHistory(ctx, productID)
}

// SellProduct продаёт продукт победителю торгов. Комиссия площадки и выручка
// продавца зачисляются атомарно в одной транзакции, после чего победителю
// ставится в очередь письмо о выигрыше.
func (s *Service) SellProduct(ctx context.Context, productID, sellerID int64) (*model.Settlement, error) {
	st, err := s.repo.SellProduct(ctx, productID, sellerID, s.adminLogin)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("settlement-%d", st.ProductID)
	body := fmt.Sprintf(
		"Congratulations! You have won the auction for %q with a bid of $%.2f.\n"+
			"Please add the product to your cart and complete the checkout.",
		st.ProductTitle, fromCents(st.BidPrice),
	)
	if err := s.repo.EnqueueNotification(ctx, key, st.WinnerEmail,
		"Congratulations! You won the auction!", body); err != nil {
		s.logger.Error("failed to enqueue settlement notification",
			zap.Int64("product_id", st.ProductID), zap.Error(err))
	}

	return st, nil
}

// AddCartItem добавляет продукт в корзину пользователя.
func (s *Service) AddCartItem(ctx context.Context, userID, productID int64, quantity int32) (*model.CartItem, error) {
	if quantity <= 0 {
		quantity = 1
	}
	return s.repo.AddCartItem(ctx, userID, productID, quantity)
}

// GetCartItems возвращает содержимое корзины пользователя.
func (s *Service) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.repo.GetCartItems(ctx, userID)
}

// RemoveCartItem удаляет позицию из корзины пользователя.
func (s *Service) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	return s.repo.RemoveCartItem(ctx, userID, itemID)
}

// PlaceOrder оформляет заказ из корзины пользователя. Корзина очищается в той же
// транзакции, после чего покупателю ставится в очередь письмо со счётом.
func (s *Service) PlaceOrder(ctx context.Context, userID int64) (*model.Order, error) {
	number := uuid.NewString()

	order, err := s.repo.Checkout(ctx, userID, number)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user for order invoice",
			zap.Int64("user_id", userID), zap.Error(err))
		return order, nil
	}

	key := fmt.Sprintf("order-%s", order.Number)
	if err := s.repo.EnqueueNotification(ctx, key, u.Email,
		fmt.Sprintf("Your order %s", order.Number), invoice.Render(*order, *u)); err != nil {
		s.logger.Error("failed to enqueue order notification",
			zap.String("order", order.Number), zap.Error(err))
	}

	return order, nil
}

// GetOrders возвращает заказы пользователя.
func (s *Service) GetOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}
