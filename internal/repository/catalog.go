package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/bidmarket-system/internal/model"
)

const productColumns = `id, user_id, title, slug, description, category, brand, model_number,
	price, commission, is_verified, is_sold_out, sold_to, sold_price, created_at, updated_at`

// summaryColumns дополняет продукт текущей ценой торгов (максимальная ставка,
// при её отсутствии — стартовая цена) и количеством ставок.
const summaryColumns = productColumns + `,
	COALESCE((SELECT b.price FROM bids b WHERE b.product_id = products.id
	          ORDER BY b.price DESC, b.created_at ASC LIMIT 1), price) AS bidding_price,
	(SELECT COUNT(*) FROM bids b WHERE b.product_id = products.id) AS total_bids`

// CreateProduct сохраняет новый продукт. При занятом slug подбирается
// свободный вариант с числовым суффиксом.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	slug := p.Slug
	for suffix := 1; ; suffix++ {
		var id int64
		err := r.pool.QueryRow(ctx,
			`INSERT INTO products (user_id, title, slug, description, category, brand, model_number, price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			p.SellerID, p.Title, slug, p.Description, p.Category, p.Brand, p.ModelNumber, p.Price,
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				slug = fmt.Sprintf("%s-%d", p.Slug, suffix)
				continue
			}
			return nil, fmt.Errorf("create product: %w", err)
		}
		return r.GetProductByID(ctx, id)
	}
}

// GetProductByID возвращает продукт по идентификатору.
func (r *PostgresRepository) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// GetProductBySlug возвращает продукт по slug.
func (r *PostgresRepository) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Title, &p.Slug, &p.Description, &p.Category,
		&p.Brand, &p.ModelNumber, &p.Price, &p.Commission, &p.IsVerified, &p.IsSoldOut,
		&p.SoldTo, &p.SoldPrice, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

// ListVerifiedProducts возвращает одобренные для продажи продукты со сведениями о торгах.
func (r *PostgresRepository) ListVerifiedProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return r.listSummaries(ctx,
		`SELECT `+summaryColumns+` FROM products WHERE is_verified ORDER BY created_at DESC`)
}

// ListAllProducts возвращает все продукты со сведениями о торгах.
func (r *PostgresRepository) ListAllProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return r.listSummaries(ctx,
		`SELECT `+summaryColumns+` FROM products ORDER BY created_at DESC`)
}

// ListProductsBySeller возвращает продукты, выставленные пользователем.
func (r *PostgresRepository) ListProductsBySeller(ctx context.Context, userID int64) ([]model.ProductSummary, error) {
	return r.listSummaries(ctx,
		`SELECT `+summaryColumns+` FROM products WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListSoldProducts возвращает проданные продукты.
func (r *PostgresRepository) ListSoldProducts(ctx context.Context) ([]model.ProductSummary, error) {
	return r.listSummaries(ctx,
		`SELECT `+summaryColumns+` FROM products WHERE is_sold_out ORDER BY updated_at DESC`)
}

// ListWonProducts возвращает продукты, выигранные пользователем на торгах.
func (r *PostgresRepository) ListWonProducts(ctx context.Context, userID int64) ([]model.ProductSummary, error) {
	return r.listSummaries(ctx,
		`SELECT `+summaryColumns+` FROM products WHERE sold_to = $1 ORDER BY updated_at DESC`, userID)
}

func (r *PostgresRepository) listSummaries(ctx context.Context, query string, args ...any) ([]model.ProductSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.ProductSummary
	for rows.Next() {
		var s model.ProductSummary
		err := rows.Scan(&s.ID, &s.SellerID, &s.Title, &s.Slug, &s.Description, &s.Category,
			&s.Brand, &s.ModelNumber, &s.Price, &s.Commission, &s.IsVerified, &s.IsSoldOut,
			&s.SoldTo, &s.SoldPrice, &s.CreatedAt, &s.UpdatedAt, &s.BiddingPrice, &s.TotalBids)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// VerifyProduct одобряет продукт для продажи, задавая стартовую цену и процент комиссии.
func (r *PostgresRepository) VerifyProduct(ctx context.Context, id, priceCents, commission int64) (*model.Product, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products SET is_verified = TRUE, price = $2, commission = $3, updated_at = now()
		 WHERE id = $1 AND NOT is_sold_out`,
		id, priceCents, commission,
	)
	if err != nil {
		return nil, fmt.Errorf("verify product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		p, err := r.GetProductByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p.IsSoldOut {
			return nil, ErrProductSoldOut
		}
		return nil, ErrProductNotFound
	}
	return r.GetProductByID(ctx, id)
}

// DeleteProduct удаляет непроданный продукт его владельцем вместе со ставками и отзывами.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id, sellerID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID int64
	var soldOut bool
	err = tx.QueryRow(ctx,
		`SELECT user_id, is_sold_out FROM products WHERE id = $1 FOR UPDATE`, id,
	).Scan(&ownerID, &soldOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("select product: %w", err)
	}

	if ownerID != sellerID {
		return ErrNotProductOwner
	}
	if soldOut {
		return ErrProductSoldOut
	}

	for _, q := range []string{
		`DELETE FROM bids WHERE product_id = $1`,
		`DELETE FROM reviews WHERE product_id = $1`,
		`DELETE FROM cart_items WHERE product_id = $1`,
		`DELETE FROM products WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CreateCategory создаёт новую категорию товаров.
func (r *PostgresRepository) CreateCategory(ctx context.Context, title string, createdBy int64) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (title, created_by) VALUES ($1, $2) RETURNING id, title, created_by, created_at`,
		title, createdBy,
	).Scan(&c.ID, &c.Title, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCategoryExists, title)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &c, nil
}

// ListCategories возвращает все категории.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, created_by, created_at FROM categories ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetCategory возвращает категорию по идентификатору.
func (r *PostgresRepository) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, created_by, created_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// UpdateCategory переименовывает категорию.
func (r *PostgresRepository) UpdateCategory(ctx context.Context, id int64, title string) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx,
		`UPDATE categories SET title = $2 WHERE id = $1 RETURNING id, title, created_by, created_at`,
		id, title,
	).Scan(&c.ID, &c.Title, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCategoryExists, title)
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return &c, nil
}

// DeleteCategory удаляет категорию.
func (r *PostgresRepository) DeleteCategory(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// UpsertReview создаёт отзыв о продукте либо обновляет существующий отзыв того же пользователя.
func (r *PostgresRepository) UpsertReview(ctx context.Context, productID, userID int64, rating int32, comment string) (*model.Review, error) {
	var sellerID int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM products WHERE id = $1`, productID,
	).Scan(&sellerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	if sellerID == userID {
		return nil, ErrOwnProductReview
	}

	var rev model.Review
	err = r.pool.QueryRow(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, comment)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (product_id, user_id) DO UPDATE
		 SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, edited = TRUE
		 RETURNING id, product_id, user_id, rating, comment, edited, created_at`,
		productID, userID, rating, comment,
	).Scan(&rev.ID, &rev.ProductID, &rev.UserID, &rev.Rating, &rev.Comment, &rev.Edited, &rev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert review: %w", err)
	}
	return &rev, nil
}

// ListReviews возвращает отзывы о продукте.
func (r *PostgresRepository) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, user_id, rating, comment, edited, created_at
		 FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var res []model.Review
	for rows.Next() {
		var rev model.Review
		if err := rows.Scan(&rev.ID, &rev.ProductID, &rev.UserID, &rev.Rating, &rev.Comment, &rev.Edited, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
