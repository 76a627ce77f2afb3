package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/bidmarket-system/internal/model"
)

// lockProduct блокирует строку продукта на время транзакции.
// Через эту блокировку сериализуются все ставки и расчёт продажи по одному
// продукту: конкурирующая операция ждёт коммита и видит уже обновлённое
// состояние торгов.
func lockProduct(ctx context.Context, tx pgx.Tx, productID int64) (*model.Product, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID)
	return scanProduct(row)
}

// evaluateBid проверяет допустимость предлагаемой цены относительно
// собственной предыдущей ставки пользователя и текущей максимальной ставки.
// Правила: повторная ставка должна строго превышать предыдущую ставку того же
// пользователя; первая ставка должна строго превышать текущую максимальную.
func evaluateBid(own, highest *model.Bid, priceCents int64) error {
	if own != nil {
		if priceCents <= own.Price {
			return fmt.Errorf("%w: previous bid is %d", ErrBidBelowOwn, own.Price)
		}
		return nil
	}
	if highest != nil && priceCents <= highest.Price {
		return fmt.Errorf("%w: current highest bid is %d", ErrBidBelowHighest, highest.Price)
	}
	return nil
}

// splitCommission делит цену выигравшей ставки на комиссию площадки и выручку
// продавца. Всё в целых центах: final = price - commission, поэтому сумма
// частей всегда в точности равна цене ставки.
func splitCommission(priceCents, ratePercent int64) (commission, final int64) {
	commission = priceCents * ratePercent / 100
	final = priceCents - commission
	return commission, final
}

// PlaceBid регистрирует ставку пользователя на продукт.
// Повторная ставка обновляет цену существующей записи на месте, сохраняя
// исходный created_at; у пары (product, user) всегда не более одной записи.
func (r *PostgresRepository) PlaceBid(ctx context.Context, productID, userID, priceCents int64) (*model.Bid, error) {
	var bid *model.Bid
	err := r.withRetry(ctx, func() error {
		var err error
		bid, err = r.placeBidTx(ctx, productID, userID, priceCents)
		return err
	})
	return bid, err
}

func (r *PostgresRepository) placeBidTx(ctx context.Context, productID, userID, priceCents int64) (*model.Bid, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsVerified {
		return nil, ErrProductNotVerified
	}
	if product.IsSoldOut {
		return nil, ErrProductSoldOut
	}

	own, err := getBidForUpdate(ctx, tx, productID, userID)
	if err != nil {
		return nil, err
	}

	var highest *model.Bid
	if own == nil {
		highest, err = getHighestBid(ctx, tx, productID)
		if err != nil {
			return nil, err
		}
	}

	if err := evaluateBid(own, highest, priceCents); err != nil {
		return nil, err
	}

	var bid model.Bid
	if own != nil {
		bid = *own
		bid.Price = priceCents
		if _, err := tx.Exec(ctx,
			`UPDATE bids SET price = $2 WHERE id = $1`, own.ID, priceCents); err != nil {
			return nil, fmt.Errorf("update bid: %w", err)
		}
	} else {
		bid = model.Bid{ProductID: productID, UserID: userID, Price: priceCents}
		err := tx.QueryRow(ctx,
			`INSERT INTO bids (product_id, user_id, price) VALUES ($1, $2, $3) RETURNING id, created_at`,
			productID, userID, priceCents,
		).Scan(&bid.ID, &bid.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert bid: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &bid, nil
}

func getBidForUpdate(ctx context.Context, tx pgx.Tx, productID, userID int64) (*model.Bid, error) {
	var b model.Bid
	err := tx.QueryRow(ctx,
		`SELECT id, product_id, user_id, price, created_at FROM bids
		 WHERE product_id = $1 AND user_id = $2`,
		productID, userID,
	).Scan(&b.ID, &b.ProductID, &b.UserID, &b.Price, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select own bid: %w", err)
	}
	return &b, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getHighestBid возвращает максимальную ставку; при равенстве цен побеждает
// более ранняя запись.
func getHighestBid(ctx context.Context, q queryRower, productID int64) (*model.Bid, error) {
	var b model.Bid
	err := q.QueryRow(ctx,
		`SELECT id, product_id, user_id, price, created_at FROM bids
		 WHERE product_id = $1
		 ORDER BY price DESC, created_at ASC
		 LIMIT 1`,
		productID,
	).Scan(&b.ID, &b.ProductID, &b.UserID, &b.Price, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select highest bid: %w", err)
	}
	return &b, nil
}

// GetHighestBid возвращает текущую выигрывающую ставку по продукту.
func (r *PostgresRepository) GetHighestBid(ctx context.Context, productID int64) (*model.Bid, error) {
	bid, err := getHighestBid(ctx, r.pool, productID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, ErrNoBids
	}
	return bid, nil
}

// GetBidHistory возвращает все ставки по продукту, новые первыми.
func (r *PostgresRepository) GetBidHistory(ctx context.Context, productID int64) ([]model.Bid, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, user_id, price, created_at FROM bids
		 WHERE product_id = $1 ORDER BY created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bids: %w", err)
	}
	defer rows.Close()

	var res []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.ProductID, &b.UserID, &b.Price, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SellProduct выполняет расчёт продажи: определяет выигравшую ставку, делит
// её цену на комиссию площадки и выручку продавца и одной транзакцией
// применяет все три мутации (счёт площадки, баланс продавца, терминальное
// состояние продукта). Счёт площадки задаётся логином adminLogin; если он не
// найден, расчёт целиком откатывается.
func (r *PostgresRepository) SellProduct(ctx context.Context, productID, sellerID int64, adminLogin string) (*model.Settlement, error) {
	var st *model.Settlement
	err := r.withRetry(ctx, func() error {
		var err error
		st, err = r.sellProductTx(ctx, productID, sellerID, adminLogin)
		return err
	})
	return st, err
}

func (r *PostgresRepository) sellProductTx(ctx context.Context, productID, sellerID int64, adminLogin string) (*model.Settlement, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, ErrNotProductOwner
	}
	if product.IsSoldOut {
		return nil, ErrProductSoldOut
	}

	highest, err := getHighestBid(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if highest == nil {
		return nil, ErrNoBids
	}

	commission, final := splitCommission(highest.Price, product.Commission)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE users SET commission_balance = commission_balance + $1 WHERE login = $2`,
		commission, adminLogin,
	)
	if err != nil {
		return nil, fmt.Errorf("credit platform account: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrAdminNotFound
	}

	cmdTag, err = tx.Exec(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2`,
		final, product.SellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("credit seller: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE products SET is_sold_out = TRUE, sold_to = $2, sold_price = $3, updated_at = now()
		 WHERE id = $1`,
		productID, highest.UserID, final,
	); err != nil {
		return nil, fmt.Errorf("mark product sold: %w", err)
	}

	var winnerEmail string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, highest.UserID).Scan(&winnerEmail)
	if err != nil {
		return nil, fmt.Errorf("select winner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.Settlement{
		ProductID:    productID,
		ProductTitle: product.Title,
		WinnerID:     highest.UserID,
		WinnerEmail:  winnerEmail,
		BidPrice:     highest.Price,
		Commission:   commission,
		FinalPrice:   final,
	}, nil
}

// AddCartItem добавляет продукт в корзину пользователя.
func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, productID int64, quantity int32) (*model.CartItem, error) {
	product, err := r.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsVerified {
		return nil, ErrProductNotVerified
	}
	if product.IsSoldOut {
		return nil, ErrProductSoldOut
	}

	item := model.CartItem{UserID: userID, ProductID: productID, Quantity: quantity, Product: *product}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
		userID, productID, quantity,
	).Scan(&item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyInCart
		}
		return nil, fmt.Errorf("insert cart item: %w", err)
	}
	return &item, nil
}

// GetCartItems возвращает корзину пользователя вместе с данными продуктов.
func (r *PostgresRepository) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.user_id, c.product_id, c.quantity,
		        p.id, p.user_id, p.title, p.slug, p.description, p.category, p.brand, p.model_number,
		        p.price, p.commission, p.is_verified, p.is_sold_out, p.sold_to, p.sold_price, p.created_at, p.updated_at
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1
		 ORDER BY c.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	var res []model.CartItem
	for rows.Next() {
		var c model.CartItem
		p := &c.Product
		err := rows.Scan(&c.ID, &c.UserID, &c.ProductID, &c.Quantity,
			&p.ID, &p.SellerID, &p.Title, &p.Slug, &p.Description, &p.Category, &p.Brand, &p.ModelNumber,
			&p.Price, &p.Commission, &p.IsVerified, &p.IsSoldOut, &p.SoldTo, &p.SoldPrice, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// RemoveCartItem удаляет позицию корзины, принадлежащую пользователю.
func (r *PostgresRepository) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`,
		itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// Checkout превращает корзину пользователя в неизменяемый заказ и очищает её
// в той же транзакции. Итог считается по текущим ценам продуктов. Строка
// пользователя блокируется, чтобы сериализовать оформления одной корзины.
func (r *PostgresRepository) Checkout(ctx context.Context, userID int64, number string) (*model.Order, error) {
	var order *model.Order
	err := r.withRetry(ctx, func() error {
		var err error
		order, err = r.checkoutTx(ctx, userID, number)
		return err
	})
	return order, err
}

func (r *PostgresRepository) checkoutTx(ctx context.Context, userID int64, number string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user for update: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT p.id, p.title, p.price, c.quantity
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1
		 ORDER BY c.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}

	var items []model.OrderItem
	var total int64
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Title, &it.Price, &it.Quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		total += it.Price * int64(it.Quantity)
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order := &model.Order{Number: number, UserID: userID, Total: total, Items: items}
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (number, user_id, total) VALUES ($1, $2, $3) RETURNING id, created_at`,
		number, userID, total,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, title, price, quantity) VALUES ($1, $2, $3, $4, $5)`,
			order.ID, it.ProductID, it.Title, it.Price, it.Quantity,
		); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return order, nil
}

// GetOrdersByUser возвращает заказы пользователя с позициями, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, user_id, total, created_at FROM orders
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.Number, &o.UserID, &o.Total, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range res {
		itemRows, err := r.pool.Query(ctx,
			`SELECT product_id, title, price, quantity FROM order_items WHERE order_id = $1 ORDER BY id`,
			res[i].ID,
		)
		if err != nil {
			return nil, fmt.Errorf("select order items: %w", err)
		}
		for itemRows.Next() {
			var it model.OrderItem
			if err := itemRows.Scan(&it.ProductID, &it.Title, &it.Price, &it.Quantity); err != nil {
				itemRows.Close()
				return nil, fmt.Errorf("scan order item: %w", err)
			}
			res[i].Items = append(res[i].Items, it)
		}
		itemRows.Close()
		if err := itemRows.Err(); err != nil {
			return nil, fmt.Errorf("rows error: %w", err)
		}
	}

	return res, nil
}

// EnqueueNotification ставит письмо в очередь outbox. Ключ идемпотентный:
// повторная постановка с тем же ключом не создаёт дубликата.
func (r *PostgresRepository) EnqueueNotification(ctx context.Context, key, recipient, subject, body string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (key, recipient, subject, body)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO NOTHING`,
		key, recipient, subject, body,
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// PendingNotifications возвращает неотправленные уведомления, старые первыми.
func (r *PostgresRepository) PendingNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, key, recipient, subject, body, status, attempts, created_at, sent_at
		 FROM notifications
		 WHERE status = 'pending'
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		var status string
		if err := rows.Scan(&n.ID, &n.Key, &n.Recipient, &n.Subject, &n.Body, &status, &n.Attempts, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Status = model.NotificationStatus(status)
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationSent помечает уведомление доставленным.
func (r *PostgresRepository) MarkNotificationSent(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = 'sent', sent_at = now(), attempts = attempts + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkNotificationFailed увеличивает счётчик попыток; после maxAttempts
// уведомление переводится в терминальный статус failed.
func (r *PostgresRepository) MarkNotificationFailed(ctx context.Context, id int64, maxAttempts int32) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET attempts = attempts + 1,
		     status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
		 WHERE id = $1`,
		id, maxAttempts,
	)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}
